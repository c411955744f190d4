// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// LLMStreamDuration tracks how long the backend took to start streaming.
	LLMStreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_stream_duration_seconds",
			Help:    "Time until the completion backend returned a stream",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"model", "path", "status"},
	)

	// LLMStreamRetries counts retried streaming attempts.
	LLMStreamRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_stream_retries_total",
			Help: "Retried streaming completion attempts",
		},
		[]string{"model"},
	)

	// ProbeOutcomes counts probe-phase results.
	ProbeOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_probe_total",
			Help: "Probe phase outcomes (tools, no_tools, failed)",
		},
		[]string{"outcome"},
	)

	// ToolInvocations counts tool invocations by tool and outcome.
	ToolInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tool_invocations_total",
			Help: "Tool invocations by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)

	// ToolDuration tracks tool execution time.
	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tool_duration_seconds",
			Help:    "Tool execution duration",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 25},
		},
		[]string{"tool"},
	)

	// Rejections counts requests refused before reaching the backend.
	Rejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_rejections_total",
			Help: "Requests rejected by throttle or quota",
		},
		[]string{"reason", "tier"},
	)

	// MinutesDebited counts usage minutes charged to callers.
	MinutesDebited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_minutes_debited_total",
			Help: "Usage minutes debited",
		},
		[]string{"tier"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLMStream records metrics for a streaming completion call.
func RecordLLMStream(model, path, status string, duration float64) {
	LLMStreamDuration.WithLabelValues(model, path, status).Observe(duration)
}

// RecordTool records metrics for one tool invocation.
func RecordTool(tool, outcome string, duration float64) {
	ToolInvocations.WithLabelValues(tool, outcome).Inc()
	ToolDuration.WithLabelValues(tool).Observe(duration)
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
