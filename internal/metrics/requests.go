package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics instruments the HTTP API.
type RequestMetrics struct {
	// Counts of requests made to each endpoint.
	requestCounts *prometheus.CounterVec

	// Latencies of serving incoming requests.
	requestLatencies *prometheus.HistogramVec
}

// NewRequestMetrics creates the request collectors, registering them once.
func NewRequestMetrics() *RequestMetrics {
	m := &RequestMetrics{
		requestCounts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mpecdh_requests",
				Help: "How many API requests were made, partitioned by route and status.",
			},
			[]string{"route", "status"},
		),
		requestLatencies: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "mpecdh_request_latencies",
				Help: "How long requests take to process, partitioned by route.",
			},
			[]string{"route"},
		),
	}
	m.requestCounts = registerOnce(m.requestCounts).(*prometheus.CounterVec)
	m.requestLatencies = registerOnce(m.requestLatencies).(*prometheus.HistogramVec)
	return m
}

// RequestCounter returns the counter for the route and status.
func (m *RequestMetrics) RequestCounter(route, status string) prometheus.Counter {
	return m.requestCounts.WithLabelValues(route, status)
}

// RequestLatencies returns the latency observer for the route.
func (m *RequestMetrics) RequestLatencies(route string) prometheus.Observer {
	return m.requestLatencies.WithLabelValues(route)
}
