package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"athle-results-sync/internal/config"
	"athle-results-sync/internal/database"
	"athle-results-sync/internal/ffa"
	"athle-results-sync/internal/metrics"
	"athle-results-sync/internal/scheduler"
	"athle-results-sync/internal/wa"
)

func main() {
	// Define CLI flags; zero values defer to configuration
	batchSize := flag.Int("batch", 0, "Batch size (number of stale athletes per cycle)")
	staleDays := flag.Int("stale-days", 0, "Staleness threshold in days")
	delaySecs := flag.Int("delay", 0, "Inter-batch delay in seconds (loop mode)")
	loop := flag.Bool("loop", false, "Repeat batches until no athlete is stale")
	syncName := flag.String("sync-name", "", "Resolve a name via World Athletics, synchronize it and exit")
	syncSeq := flag.String("sync-seq", "", "Synchronize a single athlete by seq and exit")

	flag.Parse()

	// Load configuration; the process must not proceed without it
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// CLI flags override configuration
	if *batchSize > 0 {
		cfg.BatchSize = *batchSize
	}
	if *staleDays > 0 {
		cfg.StaleDays = *staleDays
	}
	if *delaySecs > 0 {
		cfg.DelaySeconds = *delaySecs
	}

	// Set up logger
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting athle-results-sync",
		"database", cfg.DatabasePath,
		"batch_size", cfg.BatchSize,
		"stale_days", cfg.StaleDays,
		"loop", *loop,
		"log_level", cfg.LogLevel)

	// Open database
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Init(); err != nil {
		logger.Error("Failed to initialize schema", "error", err)
		os.Exit(1)
	}

	// Create source clients
	ffaClient := ffa.NewClient(cfg.FFABaseURL, cfg.FetchTimeout(), cfg.YearMin, cfg.YearMax, logger)
	waClient := wa.NewClient(wa.Options{
		Endpoint:       cfg.WAEndpoint,
		APIKey:         cfg.WAAPIKey,
		Timeout:        cfg.FetchTimeout(),
		Concurrency:    cfg.WAConcurrency,
		RequestsPerSec: cfg.WARequestsPerSec,
		YearMin:        cfg.YearMin,
		YearMax:        cfg.YearMax,
		Logger:         logger,
	})

	sched := scheduler.New(db, ffaClient, waClient,
		cfg.BatchSize, cfg.StaleAfter(), cfg.Delay(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start metrics server if enabled
	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		go metrics.StartStorageStatsCollector(ctx, db, cfg.StaleAfter(), 30*time.Second)

		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())

		metricsAddr := fmt.Sprintf("%s:%d", cfg.MetricsHost, cfg.MetricsPort)
		metricsServer = &http.Server{Addr: metricsAddr, Handler: metricsMux}

		go func() {
			logger.Info("Metrics server listening", "addr", metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	switch {
	case *syncName != "":
		runSyncByName(ctx, sched, *syncName, logger)
	case *syncSeq != "":
		runSyncBySeq(ctx, sched, db, *syncSeq, logger)
	default:
		if err := sched.Run(ctx, *loop); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Scheduler stopped with error", "error", err)
		}
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown failed", "error", err)
		}
	}

	logger.Info("Done")
}

// runSyncByName is the on-demand scrape-on-miss path for an athlete not yet
// known to storage: resolve the name, then run the normal sync path.
func runSyncByName(ctx context.Context, sched *scheduler.Scheduler, name string, logger *slog.Logger) {
	athlete, inserted, err := sched.SyncByName(ctx, name)
	if err != nil {
		logger.Error("Sync by name failed", "name", name, "error", err)
		return
	}
	if athlete == nil {
		logger.Info("No competitor found", "name", name)
		return
	}
	logger.Info("Synchronized athlete",
		"seq", athlete.Seq, "name", athlete.Name, "rows_upserted", inserted)
}

func runSyncBySeq(ctx context.Context, sched *scheduler.Scheduler, db *database.DB, seq string, logger *slog.Logger) {
	athlete, err := db.GetAthlete(seq)
	if err != nil {
		logger.Error("Failed to look up athlete", "seq", seq, "error", err)
		return
	}
	if athlete == nil {
		// Not yet known: synchronize anyway, the upsert will create it
		athlete = &database.Athlete{Seq: seq}
	}

	inserted, err := sched.SyncAthlete(ctx, athlete)
	if err != nil {
		logger.Error("Sync failed", "seq", seq, "error", err)
		return
	}
	logger.Info("Synchronized athlete", "seq", seq, "rows_upserted", inserted)
}
