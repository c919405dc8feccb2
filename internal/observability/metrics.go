package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's prometheus collectors. Each instance owns its
// registry, so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	errors            *prometheus.CounterVec
	ticketTransitions *prometheus.CounterVec
	approvalDecisions *prometheus.CounterVec
	activitySinkFails prometheus.Counter
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "support_desk_http_requests_total",
				Help: "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "support_desk_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "support_desk_http_errors_total",
				Help: "Error responses by route, method and error code",
			},
			[]string{"route", "method", "code"},
		),
		ticketTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "support_desk_ticket_transitions_total",
				Help: "Committed ticket status transitions",
			},
			[]string{"from", "to"},
		),
		approvalDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "support_desk_approval_decisions_total",
				Help: "Committed conversion approval decisions",
			},
			[]string{"side", "decision"},
		),
		activitySinkFails: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "support_desk_activity_sink_failures_total",
				Help: "Activities the stream sink failed to forward",
			},
		),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordTransition counts a committed status change.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.ticketTransitions.WithLabelValues(from, to).Inc()
}

// RecordApprovalDecision counts a committed approval decision.
func (m *Metrics) RecordApprovalDecision(side, decision string) {
	if m == nil {
		return
	}
	m.approvalDecisions.WithLabelValues(side, decision).Inc()
}

// RecordSinkFailure counts an activity the stream sink dropped.
func (m *Metrics) RecordSinkFailure() {
	if m == nil {
		return
	}
	m.activitySinkFails.Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
