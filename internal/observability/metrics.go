package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Requests        *prometheus.CounterVec
	LatencyMS       *prometheus.HistogramVec
	GatewayCalls    *prometheus.CounterVec
	GatewayLatency  *prometheus.HistogramVec
	GatewayAttempts *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics registers the service collectors on reg. A nil reg gets a fresh registry.
func NewMetrics(service string, reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sales",
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sales",
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		GatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sales",
			Subsystem: service,
			Name:      "gateway_calls_total",
			Help:      "Outbound gateway calls by outcome, after retries.",
		}, []string{"service", "gateway", "outcome"}),
		GatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sales",
			Subsystem: service,
			Name:      "gateway_call_duration_ms",
			Help:      "Outbound gateway call latency in milliseconds, retries included.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"service", "gateway"}),
		GatewayAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sales",
			Subsystem: service,
			Name:      "gateway_attempts_total",
			Help:      "Individual outbound HTTP attempts, including retried ones.",
		}, []string{"service", "gateway"}),
		gatherer: reg,
	}
	reg.MustRegister(m.Requests, m.LatencyMS, m.GatewayCalls, m.GatewayLatency, m.GatewayAttempts)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request count and latency labelled by the chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	})
}

// ObserveGatewayCall records the final outcome of one logical gateway call.
func (m *Metrics) ObserveGatewayCall(service, gateway string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.GatewayCalls.WithLabelValues(service, gateway, outcome).Inc()
	m.GatewayLatency.WithLabelValues(service, gateway).Observe(float64(time.Since(started).Milliseconds()))
}

// ObserveGatewayAttempt counts a single HTTP attempt.
func (m *Metrics) ObserveGatewayAttempt(service, gateway string) {
	if m == nil {
		return
	}
	m.GatewayAttempts.WithLabelValues(service, gateway).Inc()
}
