// Package metrics declares the Prometheus collectors for the build workflow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "model_builder"
)

// Variables declared for metrics.
var (
	PhaseTransitionCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orchestrator",
		Name:      "phase_transition_total",
		Help:      "Counter of build session phase transitions.",
	}, []string{"from", "to"})

	RejectedCommandCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orchestrator",
		Name:      "rejected_command_total",
		Help:      "Counter of commands rejected because of input errors or a busy session.",
	}, []string{"command", "reason"})

	BackendRequestCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "backend",
		Name:      "request_total",
		Help:      "Counter of requests sent to the backend.",
	}, []string{"operation", "outcome"})

	BackendRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "backend",
		Name:      "request_duration_seconds",
		Help:      "Histogram of backend request latency.",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
	}, []string{"operation"})

	ExperimentResultCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "training",
		Name:      "experiment_result_total",
		Help:      "Counter of experiment results by status.",
	}, []string{"status"})

	LiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "live_sessions",
		Help:      "Gauge of build sessions held by the server.",
	})

	RateLimitedCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "rate_limited_total",
		Help:      "Counter of requests refused by the rate limiter.",
	}, []string{"rule"})
)

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
