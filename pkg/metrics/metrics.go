package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry and the collectors of the reconciliation
// engine. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	webhookTotal    *prometheus.CounterVec
	webhookDuration *prometheus.HistogramVec
	latePayments    prometheus.Counter
	gateDecisions   *prometheus.CounterVec
	invoices        *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New registers every collector under namespace, plus the Go runtime and
// process collectors.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		webhookTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhook",
				Name:      "callbacks_total",
				Help:      "Payment provider callbacks by outcome and reason.",
			},
			[]string{"outcome", "reason"},
		),
		webhookDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "webhook",
				Name:      "duration_seconds",
				Help:      "Time spent applying a payment callback.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"outcome"},
		),
		latePayments: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhook",
				Name:      "late_payments_total",
				Help:      "Success callbacks received for intents that were already expired or failed.",
			},
		),
		gateDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gate",
				Name:      "decisions_total",
				Help:      "Query gate decisions by result and tier.",
			},
			[]string{"result", "tier"},
		),
		invoices: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "billing",
				Name:      "invoices_total",
				Help:      "Checkout requests by purchase kind and whether a pending invoice was reused.",
			},
			[]string{"kind", "reused"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration by route pattern.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.webhookTotal,
		m.webhookDuration,
		m.latePayments,
		m.gateDecisions,
		m.invoices,
		m.httpDuration,
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveWebhook records a processed callback. Outcome is the response
// status ("success", "acknowledged", "ignored") or "rejected" for callbacks
// answered with an error status.
func (m *Metrics) ObserveWebhook(outcome, reason string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(outcome, reason).Inc()
	m.webhookDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// LatePayment counts a success callback that could not be honoured.
func (m *Metrics) LatePayment() {
	if m == nil {
		return
	}
	m.latePayments.Inc()
}

// GateDecision counts one query gate evaluation.
func (m *Metrics) GateDecision(allowed, premium bool) {
	if m == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	tier := "free"
	if premium {
		tier = "premium"
	}
	m.gateDecisions.WithLabelValues(result, tier).Inc()
}

// InvoiceCreated counts a checkout request.
func (m *Metrics) InvoiceCreated(kind string, reused bool) {
	if m == nil {
		return
	}
	m.invoices.WithLabelValues(kind, strconv.FormatBool(reused)).Inc()
}

// ObserveHTTP records one served request. Route should be the router pattern,
// not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
