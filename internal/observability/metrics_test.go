package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/users/{id}")

	req := httptest.NewRequest(http.MethodGet, "/users/42", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `easyhotel_http_requests_total{code="418",route="/users/{id}"} 1`)
	assert.Contains(t, body, `easyhotel_http_request_duration_seconds_bucket{route="/users/{id}"`)
}

func TestServiceCallMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveServiceCall("rooms", http.MethodGet, 503, false, 15*time.Millisecond)
	metrics.ObserveServiceCall("rooms", http.MethodGet, 200, true, 5*time.Millisecond)
	metrics.ObserveServiceRetry("rooms")

	body := scrape(t, metrics)
	assert.Contains(t, body, `easyhotel_service_calls_total{code="503",method="GET",outcome="failure",service="rooms"} 1`)
	assert.Contains(t, body, `easyhotel_service_calls_total{code="200",method="GET",outcome="success",service="rooms"} 1`)
	assert.Contains(t, body, `easyhotel_service_call_retries_total{service="rooms"} 1`)
}

func TestEventMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveEvent("reservation.created", "handled")
	metrics.ObserveEvent("", "malformed")

	body := scrape(t, metrics)
	assert.Contains(t, body, `easyhotel_events_consumed_total{outcome="handled",type="reservation.created"} 1`)
	assert.Contains(t, body, `easyhotel_events_consumed_total{outcome="malformed",type="unknown"} 1`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveServiceCall("rooms", http.MethodGet, 200, true, time.Millisecond)
	metrics.ObserveServiceRetry("rooms")
	metrics.ObserveEvent("payment.processed", "handled")

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
