// Package scheduler drives the synchronization loop: select stale athletes,
// fetch and normalize their upstream history, insert what is new, stamp the
// athlete as checked, repeat until nothing is stale.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"athle-results-sync/internal/database"
	"athle-results-sync/internal/ffa"
	"athle-results-sync/internal/metrics"
	"athle-results-sync/internal/normalize"
	"athle-results-sync/internal/wa"
)

// Scheduler orchestrates batch synchronization of athlete results.
// Athletes within a batch are processed one at a time to bound the
// aggregate request rate against the upstream sources; concurrency lives
// inside a single athlete's multi-year fetch.
type Scheduler struct {
	db        *database.DB
	ffaClient *ffa.Client
	waClient  *wa.Client
	logger    *slog.Logger

	batchSize  int
	staleAfter time.Duration
	delay      time.Duration
}

// BatchStats aggregates the outcome of one staleness batch
type BatchStats struct {
	Selected     int
	Succeeded    int
	Failed       int
	RowsUpserted int
}

// New creates a scheduler
func New(db *database.DB, ffaClient *ffa.Client, waClient *wa.Client,
	batchSize int, staleAfter, delay time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		db:         db,
		ffaClient:  ffaClient,
		waClient:   waClient,
		logger:     logger,
		batchSize:  batchSize,
		staleAfter: staleAfter,
		delay:      delay,
	}
}

// IsWorldSeq reports whether a seq identifier belongs to the World
// Athletics namespace. Everything else is owned by the federation adapter.
func IsWorldSeq(seq string) bool {
	return strings.HasPrefix(seq, wa.SeqPrefix)
}

// Run processes staleness batches until one comes back empty (convergence).
// In one-shot mode it returns after the first batch; in loop mode it sleeps
// the configured delay between batches.
func (s *Scheduler) Run(ctx context.Context, loop bool) error {
	metrics.SchedulerActive.Set(1)
	defer metrics.SchedulerActive.Set(0)

	for {
		stats, err := s.RunBatch(ctx)
		if err != nil {
			return err
		}
		if stats.Selected == 0 {
			s.logger.Info("no stale athletes, nothing to do")
			return nil
		}
		if !loop {
			return nil
		}

		s.logger.Info("sleeping before next batch", "delay", s.delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.delay):
		}
	}
}

// RunBatch selects one batch of stale athletes and synchronizes them
// sequentially. A single athlete's failure is logged and counted but never
// aborts the batch.
func (s *Scheduler) RunBatch(ctx context.Context) (BatchStats, error) {
	stale, err := s.db.SelectStale(s.staleAfter, s.batchSize)
	if err != nil {
		return BatchStats{}, fmt.Errorf("failed to select stale athletes: %w", err)
	}

	stats := BatchStats{Selected: len(stale)}
	metrics.BatchesTotal.Inc()
	metrics.BatchSize.Observe(float64(len(stale)))

	if len(stale) == 0 {
		return stats, nil
	}

	s.logger.Info("processing batch",
		"selected", len(stale),
		"batch_size", s.batchSize,
		"stale_after", s.staleAfter)

	for _, athlete := range stale {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		inserted, err := s.SyncAthlete(ctx, athlete)
		if err != nil {
			s.logger.Error("athlete sync failed",
				"seq", athlete.Seq, "name", athlete.Name, "error", err)
			stats.Failed++
			metrics.AthletesSyncedTotal.WithLabelValues(metrics.ResultFailure).Inc()
			continue
		}

		stats.Succeeded++
		stats.RowsUpserted += inserted
		metrics.AthletesSyncedTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	}

	s.logger.Info("batch complete",
		"selected", stats.Selected,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"rows_upserted", stats.RowsUpserted)

	return stats, nil
}

// SyncAthlete runs the full fetch -> normalize -> incremental filter ->
// upsert path for one athlete and stamps last_update. The stamp is written
// even when the fetch found nothing: a permanently-empty athlete must not be
// re-selected every cycle. It also serves as the on-demand entry point for
// athletes not yet known to storage.
func (s *Scheduler) SyncAthlete(ctx context.Context, athlete *database.Athlete) (int, error) {
	rows, err := s.fetchCanonical(ctx, athlete)
	if err != nil {
		return 0, err
	}

	latest, err := s.db.LatestResultDate(athlete.Seq)
	if err != nil {
		return 0, err
	}
	fresh := normalize.FilterNew(rows, latest)

	attempted := 0
	if len(fresh) > 0 {
		attempted, err = s.db.UpsertResults(fresh)
		if err != nil {
			return 0, err
		}
		metrics.ResultRowsUpsertedTotal.Add(float64(attempted))
		s.logger.Info("upserted new results",
			"seq", athlete.Seq, "rows", attempted)
	} else {
		s.logger.Info("nothing new", "seq", athlete.Seq)
	}

	now := time.Now().UTC()
	athlete.LastUpdate = &now
	if err := s.db.UpsertAthlete(athlete); err != nil {
		return attempted, err
	}

	return attempted, nil
}

// SyncByName resolves a free-text name through the World Athletics search
// (top match wins) and synchronizes the resolved athlete. Returns a nil
// athlete when the name matches nobody; that is "no data found", not an
// error.
func (s *Scheduler) SyncByName(ctx context.Context, name string) (*database.Athlete, int, error) {
	identity, err := s.waClient.SearchCompetitor(ctx, name)
	if err != nil {
		return nil, 0, err
	}
	if identity == nil {
		return nil, 0, nil
	}

	athlete := &database.Athlete{
		Seq:       identity.Seq(),
		Name:      identity.FullName(),
		Club:      identity.Country,
		Sex:       sexLetter(identity.Gender),
		BirthYear: identity.BirthYear(),
	}
	if identity.BirthDate != "" {
		athlete.BirthDateRaw = &identity.BirthDate
	}

	inserted, err := s.SyncAthlete(ctx, athlete)
	return athlete, inserted, err
}

// fetchCanonical classifies the athlete's seq by namespace, fetches the raw
// full history from the owning adapter and normalizes it.
func (s *Scheduler) fetchCanonical(ctx context.Context, athlete *database.Athlete) ([]database.Result, error) {
	if IsWorldSeq(athlete.Seq) {
		id, err := strconv.Atoi(strings.TrimPrefix(athlete.Seq, wa.SeqPrefix))
		if err != nil {
			return nil, fmt.Errorf("malformed world athletics seq %q: %w", athlete.Seq, err)
		}

		start := time.Now()
		raw, err := s.waClient.FetchAll(ctx, id)
		metrics.FetchDuration.WithLabelValues(metrics.SourceWA).Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}
		metrics.RawRowsFetchedTotal.WithLabelValues(metrics.SourceWA).Add(float64(len(raw)))
		return normalize.FromWA(raw, athlete.Seq), nil
	}

	start := time.Now()
	raw, err := s.ffaClient.FetchAll(ctx, athlete.Seq)
	metrics.FetchDuration.WithLabelValues(metrics.SourceFFA).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	metrics.RawRowsFetchedTotal.WithLabelValues(metrics.SourceFFA).Add(float64(len(raw)))
	return normalize.FromFFA(raw, athlete.Seq), nil
}

func sexLetter(gender string) string {
	g := strings.TrimSpace(gender)
	if g == "" {
		return ""
	}
	return strings.ToUpper(g[:1])
}
