// Package metrics builds the store instrumentation and exports it in textfile format.
package metrics

import (
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the instruments for one session on a private registry.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestCount    *kitprometheus.Counter
	RequestDuration *kitprometheus.Histogram
}

// New registers the store instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	count := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskboard",
		Subsystem: "store",
		Name:      "requests_total",
		Help:      "Number of remote store requests.",
	}, []string{"method", "outcome"})

	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "taskboard",
		Subsystem: "store",
		Name:      "request_duration_seconds",
		Help:      "Remote store request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	reg.MustRegister(count, latency)

	return &Metrics{
		Registry:        reg,
		RequestCount:    kitprometheus.NewCounter(count),
		RequestDuration: kitprometheus.NewHistogram(latency),
	}
}

// WriteTextfile writes the registry in node-exporter textfile format.
// An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
