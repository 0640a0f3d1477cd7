package metrics

import (
	"context"
	"log/slog"
	"time"
)

// StatsDB is the slice of storage the collector reads
type StatsDB interface {
	CountAthletes() (int, error)
	CountStale(olderThan time.Duration) (int, error)
	CountAllResults() (int, error)
}

// StartStorageStatsCollector starts a background goroutine that periodically
// refreshes the storage gauges from the database
func StartStorageStatsCollector(ctx context.Context, db StatsDB, staleAfter, interval time.Duration) {
	logger := slog.Default()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect once immediately
	collectStorageStats(db, staleAfter, logger)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Storage stats collector stopping")
			return
		case <-ticker.C:
			collectStorageStats(db, staleAfter, logger)
		}
	}
}

func collectStorageStats(db StatsDB, staleAfter time.Duration, logger *slog.Logger) {
	if n, err := db.CountAthletes(); err != nil {
		logger.Error("Failed to count athletes", "error", err)
	} else {
		AthletesTracked.Set(float64(n))
	}

	if n, err := db.CountStale(staleAfter); err != nil {
		logger.Error("Failed to count stale athletes", "error", err)
	} else {
		AthletesStale.Set(float64(n))
	}

	if n, err := db.CountAllResults(); err != nil {
		logger.Error("Failed to count results", "error", err)
	} else {
		ResultRowsStored.Set(float64(n))
	}
}
