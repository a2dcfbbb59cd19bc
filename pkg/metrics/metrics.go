package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BrandingRuns counts executions of the branding routine by result (applied|skipped|failed).
	BrandingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wintent_branding_runs_total",
			Help: "Total number of branding routine executions",
		},
		[]string{"trigger", "result"},
	)

	// FileUploads counts file-manager uploads by storage driver and result (success|failure).
	FileUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wintent_file_uploads_total",
			Help: "Total number of attachment uploads",
		},
		[]string{"storage", "result"},
	)

	// FaviconLookups counts client favicon lookups by result (found|missing|error).
	FaviconLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wintent_favicon_lookups_total",
			Help: "Total number of favicon attachment lookups",
		},
		[]string{"result"},
	)

	// PluginHooks counts lifecycle hook invocations by plugin, hook and result.
	PluginHooks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wintent_plugin_hooks_total",
			Help: "Total number of plugin lifecycle hook invocations",
		},
		[]string{"plugin", "hook", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wintent_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
