package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label value constants to prevent typos
const (
	// Sources
	SourceFFA = "ffa"
	SourceWA  = "wa"

	// Athlete sync outcomes
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Scheduler metrics
var (
	SchedulerActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_active",
			Help: "Whether the synchronization scheduler is running (1) or not (0)",
		},
	)

	BatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_batches_total",
			Help: "Total number of staleness batches processed",
		},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_batch_size",
			Help:    "Number of stale athletes selected per batch",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	AthletesSyncedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "athletes_synced_total",
			Help: "Total number of per-athlete synchronization attempts by outcome",
		},
		[]string{"result"},
	)

	ResultRowsUpsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "result_rows_upserted_total",
			Help: "Total number of new result rows sent to storage",
		},
	)
)

// Storage gauges, refreshed periodically by the stats collector
var (
	AthletesTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "athletes_tracked",
			Help: "Number of athlete identities in storage",
		},
	)

	AthletesStale = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "athletes_stale",
			Help: "Number of athletes past the staleness threshold",
		},
	)

	ResultRowsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "result_rows_stored",
			Help: "Number of result rows in storage",
		},
	)
)

// Source fetch metrics
var (
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_fetch_duration_seconds",
			Help:    "Full-history fetch latency per athlete by source",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"source"},
	)

	RawRowsFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raw_rows_fetched_total",
			Help: "Total number of raw result rows fetched by source",
		},
		[]string{"source"},
	)
)
