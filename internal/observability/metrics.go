package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for inbound HTTP, outbound service calls and consumed events.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	callsTotal      *prometheus.CounterVec
	callDuration    *prometheus.HistogramVec
	callRetries     *prometheus.CounterVec
	eventsTotal     *prometheus.CounterVec
}

// NewMetrics initialises the registry and base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyhotel_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "easyhotel_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyhotel_service_calls_total",
		Help: "Outbound service call attempts by peer, method and outcome.",
	}, []string{"service", "method", "code", "outcome"})
	callDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "easyhotel_service_call_duration_seconds",
		Help:    "Outbound service call attempt duration per peer.",
		Buckets: prometheus.DefBuckets,
	}, []string{"service"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyhotel_service_call_retries_total",
		Help: "Outbound service call retries per peer.",
	}, []string{"service"})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyhotel_events_consumed_total",
		Help: "Domain events consumed by type and outcome.",
	}, []string{"type", "outcome"})
	registry.MustRegister(
		requests, duration, calls, callDuration, retries, events,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		callsTotal:      calls,
		callDuration:    callDuration,
		callRetries:     retries,
		eventsTotal:     events,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveServiceCall records one outbound attempt.
func (m *Metrics) ObserveServiceCall(service, method string, status int, success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.callsTotal.WithLabelValues(service, method, strconv.Itoa(status), outcome).Inc()
	m.callDuration.WithLabelValues(service).Observe(elapsed.Seconds())
}

// ObserveServiceRetry counts a scheduled retry.
func (m *Metrics) ObserveServiceRetry(service string) {
	if m == nil {
		return
	}
	m.callRetries.WithLabelValues(service).Inc()
}

// ObserveEvent counts a consumed event.
func (m *Metrics) ObserveEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.eventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
