// Package metrics provides Prometheus metrics for the audit service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the audit service
type Metrics struct {
	// HTTP request metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Store metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec
	VersionsTotal          prometheus.Gauge
	CorruptReadsTotal      prometheus.Counter
	WordsAddedTotal        prometheus.Counter
	WordsRemovedTotal      prometheus.Counter
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{}

	m.HTTPRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audit_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.HTTPRequestsInFlight = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	m.StoreOperationsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_store_operations_total",
			Help: "Total number of version store operations",
		},
		[]string{"operation", "status"},
	)

	m.StoreOperationDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audit_store_operation_duration_seconds",
			Help:    "Duration of version store operations in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"},
	)

	m.VersionsTotal = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_versions",
			Help: "Number of versions in the log",
		},
	)

	m.CorruptReadsTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_store_corrupt_reads_total",
			Help: "Reads that found unreadable storage and returned an empty log",
		},
	)

	m.WordsAddedTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_words_added_total",
			Help: "Distinct words reported as added across all saved versions",
		},
	)

	m.WordsRemovedTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_words_removed_total",
			Help: "Distinct words reported as removed across all saved versions",
		},
	)

	return m
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordStoreOperation records a version store operation.
func (m *Metrics) RecordStoreOperation(operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.StoreOperationsTotal.WithLabelValues(operation, status).Inc()
	m.StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordAppend updates log size and word churn after a successful append.
func (m *Metrics) RecordAppend(logSize, added, removed int) {
	m.VersionsTotal.Set(float64(logSize))
	m.WordsAddedTotal.Add(float64(added))
	m.WordsRemovedTotal.Add(float64(removed))
}
