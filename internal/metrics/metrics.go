package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns the collectors exposed on /metrics.
type Registry struct {
	reg         *prometheus.Registry
	HTTP        *HTTPMetrics
	Fulfillment *FulfillmentMetrics
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{
		reg:         reg,
		HTTP:        NewHTTPMetrics(reg),
		Fulfillment: NewFulfillmentMetrics(reg),
	}
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// HTTPMetrics records request counts and latency per route pattern.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		return &HTTPMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})
	reg.MustRegister(requests, duration)
	return &HTTPMetrics{requests: requests, duration: duration}
}

func (m *HTTPMetrics) Observe(route, method string, status int, elapsed time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	route = normalizeLabel(route)
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// FulfillmentMetrics counts fulfillment steps by outcome.
type FulfillmentMetrics struct {
	steps     *prometheus.CounterVec
	lowStock  prometheus.Counter
	unitsSold prometheus.Counter
}

func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	steps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_steps_total",
		Help: "Fulfillment steps by step and outcome.",
	}, []string{"step", "outcome"})
	lowStock := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_low_events_total",
		Help: "Products that fell to or below the low stock threshold.",
	})
	unitsSold := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_units_shipped_total",
		Help: "Units removed from stock by shipped orders.",
	})
	reg.MustRegister(steps, lowStock, unitsSold)
	return &FulfillmentMetrics{steps: steps, lowStock: lowStock, unitsSold: unitsSold}
}

func (m *FulfillmentMetrics) Step(step string, err error) {
	if m == nil || m.steps == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.steps.WithLabelValues(normalizeLabel(step), outcome).Inc()
}

func (m *FulfillmentMetrics) LowStock() {
	if m == nil || m.lowStock == nil {
		return
	}
	m.lowStock.Inc()
}

func (m *FulfillmentMetrics) UnitsShipped(n int) {
	if m == nil || m.unitsSold == nil || n <= 0 {
		return
	}
	m.unitsSold.Add(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
