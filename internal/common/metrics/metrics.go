// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	// SourceFetchTotal counts fetches per notification source; status is
	// "ok" or "error".
	SourceFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_source_fetch_total",
			Help: "Notification source fetches by outcome",
		},
		[]string{"source", "status"},
	)

	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_source_fetch_duration_seconds",
			Help:    "Duration of a single notification source fetch",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	FeedCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_feed_cache_lookups_total",
			Help: "Feed cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	RealtimeChannelsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_realtime_channels_active",
			Help: "Open realtime channels, one per subscribed user",
		},
	)

	RealtimeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_realtime_events_total",
			Help: "Change events received from the database by table",
		},
		[]string{"table"},
	)

	DeliveryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_delivery_total",
			Help: "Email and SMS deliveries by outcome",
		},
		[]string{"channel", "status"},
	)
)
