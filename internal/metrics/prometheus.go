// Package metrics provides Prometheus metrics collection for the relay.
// It tracks stored vectors, evictions, subscribers, broadcast fan-out and
// ingest failures.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "vecrelay"
)

// LatencyBuckets defines histogram buckets for HTTP latency (in seconds).
var LatencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05,
	0.1, 0.25, 0.5, 1.0, 2.5, 5.0,
}

// =============================================================================
// Store Metrics
// =============================================================================

var (
	// VectorsStored tracks entries currently held by the store, including
	// expired entries that have not been swept yet.
	VectorsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vectors_stored",
			Help:      "Number of vector entries held by the store",
		},
	)

	// SessionsStored tracks non-empty session partitions.
	SessionsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_stored",
			Help:      "Number of session partitions held by the store",
		},
	)

	// VectorWrites counts puts by ingest source.
	VectorWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vector_writes_total",
			Help:      "Total vector writes by source",
		},
		[]string{"source"}, // http, ws
	)

	// VectorDeletes counts delete attempts by outcome.
	VectorDeletes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vector_deletes_total",
			Help:      "Total vector deletes by result",
		},
		[]string{"result"}, // deleted, not_found
	)

	// VectorsEvicted counts entries physically removed by the expiry sweep.
	VectorsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vectors_evicted_total",
			Help:      "Total expired vectors removed by the sweep",
		},
	)
)

// =============================================================================
// Fan-out Metrics
// =============================================================================

var (
	// Subscribers tracks live WebSocket subscriptions.
	Subscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Number of live subscriptions across all sessions",
		},
	)

	// Broadcasts counts broadcast calls.
	Broadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Total broadcast operations",
		},
	)

	// Deliveries counts per-subscriber delivery attempts by result.
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Total per-subscriber deliveries by result",
		},
		[]string{"result"}, // ok, failed
	)
)

// =============================================================================
// Ingest Metrics
// =============================================================================

var (
	// IngestErrors counts rejected submissions.
	IngestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_errors_total",
			Help:      "Total rejected vector submissions by source and error type",
		},
		[]string{"source", "error_type"},
	)

	// RateLimited counts requests or frames refused by the rate limiter.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total submissions refused by the rate limiter",
		},
		[]string{"surface"}, // http, ws
	)
)

// RecordWrite records a successful vector put.
func RecordWrite(source string) {
	VectorWrites.WithLabelValues(source).Inc()
}

// RecordIngestError records a rejected submission.
func RecordIngestError(source, errorType string) {
	IngestErrors.WithLabelValues(source, errorType).Inc()
}

// RecordDelivery records one delivery attempt.
func RecordDelivery(ok bool) {
	if ok {
		Deliveries.WithLabelValues("ok").Inc()
		return
	}
	Deliveries.WithLabelValues("failed").Inc()
}
