// Package metrics exposes Prometheus metrics for sync runs and remote API calls.
//
// Usage:
//
//	metrics.RecordItem("activities", metrics.OutcomeWritten)
//	metrics.RecordRun("routes", err, time.Since(start))
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Item outcomes.
const (
	OutcomeWritten = "written"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

var (
	// SyncItemsTotal counts processed items by sync kind and outcome.
	SyncItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stravation_sync_items_total",
			Help: "Total number of items processed by sync runs",
		},
		[]string{"kind", "outcome"},
	)

	// SyncRunsTotal counts finished runs by kind and status.
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stravation_sync_runs_total",
			Help: "Total number of sync runs",
		},
		[]string{"kind", "status"},
	)

	// SyncRunDuration tracks how long runs take.
	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stravation_sync_run_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"kind"},
	)

	// ExternalRequestsTotal counts HTTP calls to remote APIs by service and status class.
	ExternalRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stravation_external_requests_total",
			Help: "Total number of requests sent to remote APIs",
		},
		[]string{"service", "status"},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stravation_circuit_breaker_state",
			Help: "Circuit breaker state per remote API (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)
)

// RecordItem increments the item counter.
func RecordItem(kind, outcome string) {
	SyncItemsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordRun records a finished run.
func RecordRun(kind string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	SyncRunsTotal.WithLabelValues(kind, status).Inc()
	SyncRunDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordRequest counts one remote call. status is the HTTP code, or 0 for transport errors.
func RecordRequest(service string, status int) {
	ExternalRequestsTotal.WithLabelValues(service, statusClass(status)).Inc()
}

func statusClass(status int) string {
	switch {
	case status == 0:
		return "error"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status == 429:
		return "429"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
