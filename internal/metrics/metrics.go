// Package metrics provides Prometheus metrics for the mag document engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mag"

var (
	// MutationsTotal tracks committed mutations per resource and operation.
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Total committed mutations",
		},
		[]string{"resource", "operation"}, // operation: create/update/delete
	)

	// ValidationFailures tracks rejected instances per resource and reason.
	ValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Total instances rejected by validation",
		},
		[]string{"resource", "reason"}, // reason: orphaned/invalid_fields/missing_fields/field/modifier
	)

	// HistoryAppends tracks version records written per operation.
	HistoryAppends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_appends_total",
			Help:      "Total version records appended",
		},
		[]string{"operation"}, // create/update/delete
	)

	// NoopUpdates tracks updates skipped because the payload matched storage.
	NoopUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "noop_updates_total",
			Help:      "Total updates skipped as no-ops",
		},
		[]string{"resource"},
	)

	// RequestDuration tracks HTTP handler latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// RequestsTotal tracks HTTP requests per endpoint and status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total HTTP requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	// StoreOps tracks document store operations.
	StoreOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_ops_total",
			Help:      "Total document store operations",
		},
		[]string{"operation", "status"}, // operation: find/insert/update/replace/remove, status: success/error
	)

	// AttachmentOps tracks file store operations.
	AttachmentOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attachment_ops_total",
			Help:      "Total attachment store operations",
		},
		[]string{"operation", "status"}, // operation: write/delete, status: success/error
	)
)

// IncMutation increments the mutation counter for a resource.
func IncMutation(resource, operation string) {
	MutationsTotal.WithLabelValues(resource, operation).Inc()
}

// IncValidationFailure increments the validation failure counter.
func IncValidationFailure(resource, reason string) {
	ValidationFailures.WithLabelValues(resource, reason).Inc()
}

// IncNoopUpdate increments the no-op update counter for a resource.
func IncNoopUpdate(resource string) {
	NoopUpdates.WithLabelValues(resource).Inc()
}

// ObserveStoreOp records a document store operation.
func ObserveStoreOp(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StoreOps.WithLabelValues(operation, status).Inc()
}

// ObserveAttachmentOp records a file store operation.
func ObserveAttachmentOp(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	AttachmentOps.WithLabelValues(operation, status).Inc()
}
