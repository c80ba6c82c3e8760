package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vodpipe_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vodpipe_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vodpipe_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Job pipeline metrics
var (
	JobsEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vodpipe_jobs_enqueued_total",
			Help: "Total number of transcode jobs enqueued",
		},
	)

	JobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vodpipe_jobs_finished_total",
			Help: "Total number of job runs by outcome",
		},
		[]string{"outcome"}, // "complete", "direct_play", "retry", "failed"
	)

	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vodpipe_job_duration_seconds",
			Help:    "Wall time of a single job run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600, 7200},
		},
	)

	JobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vodpipe_jobs_in_progress",
			Help: "Number of job runs currently executing",
		},
	)

	JobsAbortedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vodpipe_jobs_aborted_total",
			Help: "Total number of runs aborted by cancel, restart or the reaper",
		},
	)
)

// Reaper metrics
var (
	ReaperStaleTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vodpipe_reaper_stale_jobs_total",
			Help: "Total number of processing jobs failed as stale",
		},
	)

	ReaperPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vodpipe_reaper_pruned_jobs_total",
			Help: "Total number of finished jobs deleted after the retention window",
		},
	)

	ReaperLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vodpipe_reaper_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last reaper sweep",
		},
	)
)

// Streaming metrics
var (
	StreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vodpipe_stream_requests_total",
			Help: "Total number of stream responses by kind",
		},
		[]string{"kind"}, // "full", "partial", "manifest", "segment"
	)

	StreamBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vodpipe_stream_bytes_total",
			Help: "Total number of body bytes written by the streaming engine",
		},
	)
)
