package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal counts finished generation jobs by terminal status.
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genflow_jobs_total",
			Help: "Total number of generation jobs by terminal status",
		},
		[]string{"status"},
	)

	// JobDuration tracks wall-clock time of a generation job in seconds.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genflow_job_duration_seconds",
			Help:    "Duration of generation jobs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~256s
		},
		[]string{"status"},
	)

	// GenerationCalls counts individual synthesis calls by outcome.
	GenerationCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genflow_generation_calls_total",
			Help: "Total number of single-image synthesis calls",
		},
		[]string{"outcome"},
	)

	// ArtifactsSaved counts persisted outputs by destination.
	ArtifactsSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genflow_artifacts_saved_total",
			Help: "Total number of generated images persisted",
		},
		[]string{"destination"},
	)

	// WorkersActive tracks the number of currently active workers.
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "genflow_workers_active",
			Help: "Number of worker goroutines currently processing a job",
		},
	)

	// CleanupFailures counts temp reference blobs that could not be deleted.
	CleanupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "genflow_cleanup_failures_total",
			Help: "Total number of temp reference blobs that failed to delete",
		},
	)
)
