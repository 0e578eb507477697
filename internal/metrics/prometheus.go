/*-------------------------------------------------------------------------
 *
 * prometheus.go
 *    Prometheus collectors for workflow, tool and LLM activity
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/metrics/prometheus.go
 *
 *-------------------------------------------------------------------------
 */

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	/* Request metrics */
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuronboard_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neuronboard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	/* Workflow metrics */
	planTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuronboard_plan_transitions_total",
			Help: "Total number of workflow plan status transitions",
		},
		[]string{"from", "to"},
	)

	checkpointsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuronboard_checkpoints_total",
			Help: "Total number of checkpoint decisions by action",
		},
		[]string{"action"},
	)

	activePartitions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "neuronboard_active_partitions",
			Help: "Number of live per-project workflow partitions",
		},
	)

	/* LLM metrics */
	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuronboard_llm_calls_total",
			Help: "Total number of LLM calls",
		},
		[]string{"model", "status"},
	)

	llmCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neuronboard_llm_call_duration_seconds",
			Help:    "LLM call duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"model"},
	)

	/* Tool metrics */
	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuronboard_tool_calls_total",
			Help: "Total number of tool calls",
		},
		[]string{"server", "status"},
	)

	toolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neuronboard_tool_call_duration_seconds",
			Help:    "Tool call duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"server"},
	)

	/* Notification metrics */
	eventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuronboard_events_published_total",
			Help: "Total number of notifications published per backend",
		},
		[]string{"backend", "status"},
	)
)

/* RecordHTTPRequest records an HTTP request */
func RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

/* RecordPlanTransition records a plan status change */
func RecordPlanTransition(from, to string) {
	planTransitionsTotal.WithLabelValues(from, to).Inc()
}

/* RecordCheckpointDecision records a resolved checkpoint */
func RecordCheckpointDecision(action string) {
	checkpointsTotal.WithLabelValues(action).Inc()
}

/* SetActivePartitions sets the live partition gauge */
func SetActivePartitions(n int) {
	activePartitions.Set(float64(n))
}

/* RecordLLMCall records an LLM call */
func RecordLLMCall(model, status string, duration time.Duration) {
	llmCallsTotal.WithLabelValues(model, status).Inc()
	llmCallDuration.WithLabelValues(model).Observe(duration.Seconds())
}

/* RecordToolCall records a tool call */
func RecordToolCall(server, status string, duration time.Duration) {
	toolCallsTotal.WithLabelValues(server, status).Inc()
	toolCallDuration.WithLabelValues(server).Observe(duration.Seconds())
}

/* RecordEventPublished records a notification delivery attempt */
func RecordEventPublished(backend, status string) {
	eventsPublishedTotal.WithLabelValues(backend, status).Inc()
}

/* Handler returns the Prometheus metrics handler */
func Handler() http.Handler {
	return promhttp.Handler()
}
