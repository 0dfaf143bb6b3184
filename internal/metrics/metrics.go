// Package metrics exposes the proxy's Prometheus instrumentation,
// grounded on skywalker-88-stormgate's pkg/metrics package (the only
// example repo that actually wires prometheus/client_golang), and on
// the counter names the teacher's own MetricsCollector tracked in
// memory (internal/server/server.go) before we gave them labels and a
// registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every series the dispatcher, prober, and rate
// limiter contribute to.
type Metrics struct {
	requestsTotal           *prometheus.CounterVec
	requestDuration         *prometheus.HistogramVec
	backendRequestsTotal    *prometheus.CounterVec
	backendRequestDuration  *prometheus.HistogramVec
	backendHealthStatus     *prometheus.GaugeVec
	rateLimitRejectedTotal  *prometheus.CounterVec
}

// New builds and registers a Metrics against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgeproxy",
			Name:      "requests_total",
			Help:      "Total requests handled, labeled by matched route, method, and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "edgeproxy",
			Name:      "request_duration_seconds",
			Help:      "End-to-end request handling latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		backendRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgeproxy",
			Name:      "backend_requests_total",
			Help:      "Total requests forwarded to a backend, labeled by backend and status.",
		}, []string{"backend", "status"}),
		backendRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "edgeproxy",
			Name:      "backend_request_duration_seconds",
			Help:      "Upstream response latency, labeled by backend.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend"}),
		backendHealthStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "edgeproxy",
			Name:      "backend_health_status",
			Help:      "1 if the backend is currently healthy, 0 otherwise.",
		}, []string{"backend"}),
		rateLimitRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgeproxy",
			Name:      "rate_limit_rejected_total",
			Help:      "Total requests rejected by the rate limiter, labeled by route.",
		}, []string{"route"}),
	}
	reg.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.backendRequestsTotal,
		m.backendRequestDuration,
		m.backendHealthStatus,
		m.rateLimitRejectedTotal,
	)
	return m
}

// Handler returns the /metrics HTTP handler for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ObserveRequest records one completed request at the dispatcher level.
func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	statusLabel := statusClass(status)
	m.requestsTotal.WithLabelValues(route, method, statusLabel).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(d.Seconds())
	if status == http.StatusTooManyRequests {
		m.rateLimitRejectedTotal.WithLabelValues(route).Inc()
	}
}

// ObserveBackendRequest records one forwarded request's outcome.
func (m *Metrics) ObserveBackendRequest(backend string, status int, d time.Duration) {
	m.backendRequestsTotal.WithLabelValues(backend, statusClass(status)).Inc()
	m.backendRequestDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// SetBackendHealth re-seeds the health gauge for backend, called on
// every prober transition and once per backend after a reload (§4.8
// step 4's "gauge re-seeding").
func (m *Metrics) SetBackendHealth(backend string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	m.backendHealthStatus.WithLabelValues(backend).Set(v)
}

func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
