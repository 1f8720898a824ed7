package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the invocation collectors and the registry they live in.
type Metrics struct {
	Registry *prometheus.Registry

	// InvocationsTotal counts completed invocations by method and outcome
	// (void, value, value_with_outputs, error).
	InvocationsTotal *prometheus.CounterVec
	// InvocationDuration observes chain duration in seconds by method.
	InvocationDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		InvocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callpipe_invocations_total",
				Help: "Invocations that completed the pipeline, by outcome.",
			},
			[]string{"method", "outcome"},
		),
		InvocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "callpipe_invocation_duration_seconds",
				Help:    "Time spent in the rest of the pipeline, in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
	m.Registry.MustRegister(m.InvocationsTotal, m.InvocationDuration)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
