package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	errors        *prometheus.CounterVec
	notifications *prometheus.CounterVec
	generations   *prometheus.CounterVec
	sweep         *prometheus.CounterVec
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "supportdesk_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "supportdesk_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "supportdesk_http_errors_total",
			Help: "Failed requests by error code.",
		}, []string{"route", "method", "code"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "supportdesk_notifications_total",
			Help: "Notification attempts by event and outcome.",
		}, []string{"event", "outcome"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "supportdesk_ai_generations_total",
			Help: "AI reply generations by provider and outcome.",
		}, []string{"provider", "outcome"}),
		sweep: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "supportdesk_retention_tickets_total",
			Help: "Tickets handled by the retention manager by action.",
		}, []string{"action"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.duration, m.errors, m.notifications, m.generations, m.sweep,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordRequest observes a finished request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordNotification counts one notification outcome: sent, failed or disabled.
func (m *Metrics) RecordNotification(event, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(event, outcome).Inc()
}

// RecordGeneration counts one AI call outcome.
func (m *Metrics) RecordGeneration(provider, outcome string) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(provider, outcome).Inc()
}

// RecordSweep counts tickets handled by action: anonymized, deleted or failed.
func (m *Metrics) RecordSweep(action string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweep.WithLabelValues(action).Add(float64(n))
}
