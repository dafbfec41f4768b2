package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StorageMetrics instruments ledger operations.
type StorageMetrics struct {
	operations *prometheus.CounterVec
	latencies  *prometheus.HistogramVec
}

// NewStorageMetrics creates Prometheus metric instrumentation for ledger accesses.
func NewStorageMetrics() *StorageMetrics {
	m := &StorageMetrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mpecdh_ledger_operations",
				Help: "How many ledger operations occur, partitioned by backend, operation and status.",
			},
			[]string{"backend", "operation", "status"},
		),
		latencies: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "mpecdh_ledger_latencies",
				Help: "How long ledger operations take, partitioned by backend and operation.",
			},
			[]string{"backend", "operation"},
		),
	}
	m.operations = registerOnce(m.operations).(*prometheus.CounterVec)
	m.latencies = registerOnce(m.latencies).(*prometheus.HistogramVec)
	return m
}

// Operations returns the counter for the ledger operation.
func (m *StorageMetrics) Operations(backend, operation, status string) prometheus.Counter {
	return m.operations.WithLabelValues(backend, operation, status)
}

// Latencies returns a new latency timer for the ledger operation.
func (m *StorageMetrics) Latencies(backend, operation string) *prometheus.Timer {
	return prometheus.NewTimer(m.latencies.WithLabelValues(backend, operation))
}
