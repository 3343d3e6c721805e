package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics (admin surface)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibecoder_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vibecoder_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Model metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibecoder_change_notifications_total",
			Help: "Total change notifications delivered",
		},
		[]string{"kind"},
	)

	SavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibecoder_entity_saves_total",
			Help: "Total entity save operations",
		},
		[]string{"entity"},
	)

	SaveFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibecoder_entity_save_failures_total",
			Help: "Total failed entity save operations",
		},
		[]string{"entity"},
	)

	ValidationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vibecoder_validation_failures_total",
			Help: "Total model validation failures",
		},
	)

	// MCP tool metrics
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibecoder_mcp_tool_calls_total",
			Help: "Total MCP tool invocations",
		},
		[]string{"tool"},
	)

	ToolCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibecoder_mcp_tool_call_errors_total",
			Help: "Total MCP tool invocations that returned an error result",
		},
		[]string{"tool"},
	)

	// Write queue metrics
	WriteQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vibecoder_write_queue_depth",
			Help: "Pending jobs per write-queue shard",
		},
		[]string{"shard"},
	)

	WriteQueueRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vibecoder_write_queue_retries_total",
			Help: "Total best-effort write retries",
		},
	)

	WriteQueueDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vibecoder_write_queue_dropped_total",
			Help: "Total best-effort writes abandoned after exhausting retries",
		},
	)
)
