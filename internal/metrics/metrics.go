package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the storefront collectors. A nil *Metrics is valid and
// records nothing, which keeps services usable without a registry.
type Metrics struct {
	Requests          *prometheus.CounterVec
	LatencyMS         *prometheus.HistogramVec
	ShippingAssigns   *prometheus.CounterVec
	Placements        *prometheus.CounterVec
	DispatchPolls     *prometheus.CounterVec
	DispatchTrackers  prometheus.Gauge
	PaymentFinalizers *prometheus.CounterVec
}

// New builds the collectors and registers them on reg when reg is non-nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		ShippingAssigns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "shipping",
			Name:      "assignments_total",
			Help:      "Shipping assignments by commit path and outcome.",
		}, []string{"path", "outcome"}),
		Placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "orders",
			Name:      "placements_total",
			Help:      "Cart completion attempts by result.",
		}, []string{"result"}),
		DispatchPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "dispatch",
			Name:      "polls_total",
			Help:      "Dispatch status polls by mapped stage.",
		}, []string{"stage"}),
		DispatchTrackers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storefront",
			Subsystem: "dispatch",
			Name:      "active_trackers",
			Help:      "Polling loops currently running.",
		}),
		PaymentFinalizers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "payment",
			Name:      "finalize_total",
			Help:      "Payment finalization attempts by provider kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.LatencyMS, m.ShippingAssigns, m.Placements, m.DispatchPolls, m.DispatchTrackers, m.PaymentFinalizers)
	}
	return m
}

func (m *Metrics) ObserveRequest(route, status string, ms float64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, status).Inc()
	m.LatencyMS.WithLabelValues(route).Observe(ms)
}

func (m *Metrics) ShippingAssign(path, outcome string) {
	if m == nil {
		return
	}
	m.ShippingAssigns.WithLabelValues(path, outcome).Inc()
}

func (m *Metrics) Placement(result string) {
	if m == nil {
		return
	}
	m.Placements.WithLabelValues(result).Inc()
}

func (m *Metrics) DispatchPoll(stage string) {
	if m == nil {
		return
	}
	m.DispatchPolls.WithLabelValues(stage).Inc()
}

func (m *Metrics) TrackerStarted() {
	if m == nil {
		return
	}
	m.DispatchTrackers.Inc()
}

func (m *Metrics) TrackerStopped() {
	if m == nil {
		return
	}
	m.DispatchTrackers.Dec()
}

func (m *Metrics) PaymentFinalize(kind, outcome string) {
	if m == nil {
		return
	}
	m.PaymentFinalizers.WithLabelValues(kind, outcome).Inc()
}

// Handler serves the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
