// Package metrics exposes Prometheus collectors for the mock server,
// adapted from the teacher's infrastructure/metrics package: counters for
// served requests, rate-limit denials, and inspector broadcast failures, a
// histogram of request duration, and a gauge of connected inspector
// clients, scoped by tenant.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector registered for the mock server.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	RateLimitDenials  *prometheus.CounterVec
	BroadcastFailures *prometheus.CounterVec
	InspectorClients  *prometheus.GaugeVec
}

// New creates and registers a Metrics instance against the default
// registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against a specific
// registerer, letting tests use a private registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mockserver_requests_total",
				Help: "Total number of mock requests served, by tenant and response status.",
			},
			[]string{"tenant", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mockserver_request_duration_seconds",
				Help:    "Request handling duration in seconds, excluding the artificial delay.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"tenant"},
		),
		RateLimitDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mockserver_rate_limit_denials_total",
				Help: "Total number of requests denied by the per-endpoint rate limiter.",
			},
			[]string{"tenant", "endpoint_id"},
		),
		BroadcastFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mockserver_inspector_broadcast_failures_total",
				Help: "Total number of failed inspector socket broadcasts.",
			},
			[]string{"tenant"},
		),
		InspectorClients: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mockserver_inspector_clients",
				Help: "Current number of connected inspector websocket clients.",
			},
			[]string{"tenant"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RequestsTotal,
			m.RequestDuration,
			m.RateLimitDenials,
			m.BroadcastFailures,
			m.InspectorClients,
		)
	}

	return m
}

// RecordRequest records a served request's status and duration.
func (m *Metrics) RecordRequest(tenant string, status int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(tenant, http.StatusText(status)).Inc()
	m.RequestDuration.WithLabelValues(tenant).Observe(duration.Seconds())
}

// RecordRateLimitDenial records one 429 response.
func (m *Metrics) RecordRateLimitDenial(tenant, endpointID string) {
	m.RateLimitDenials.WithLabelValues(tenant, endpointID).Inc()
}

// RecordBroadcastFailure records one failed inspector socket write.
func (m *Metrics) RecordBroadcastFailure(tenant string) {
	m.BroadcastFailures.WithLabelValues(tenant).Inc()
}

// SetInspectorClients reports the current connected-client count.
func (m *Metrics) SetInspectorClients(tenant string, n int) {
	m.InspectorClients.WithLabelValues(tenant).Set(float64(n))
}

// Handler returns the HTTP handler for the /metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
