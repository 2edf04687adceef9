package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveQuery(nil, 10*time.Millisecond)

	body := scrape(t, metrics)
	if !strings.Contains(body, "stockpulse_stock_query_duration_seconds") {
		t.Fatalf("expected body to contain query histogram, got: %s", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("expected go collector metrics, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/api/stock_data")

	req := httptest.NewRequest(http.MethodGet, "/api/stock_data", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, `stockpulse_http_requests_total{code="418",route="/api/stock_data"} 1`) {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, `stockpulse_http_request_duration_seconds_bucket{route="/api/stock_data"`) {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestObserveQueryOutcomes(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveQuery(nil, time.Millisecond)
	metrics.ObserveQuery(errors.New("boom"), time.Millisecond)
	metrics.ObserveQuery(fmt.Errorf("query: %w", context.DeadlineExceeded), time.Second)

	body := scrape(t, metrics)
	for _, want := range []string{
		`stockpulse_stock_queries_total{outcome="ok"} 1`,
		`stockpulse_stock_queries_total{outcome="error"} 1`,
		`stockpulse_stock_queries_total{outcome="timeout"} 1`,
		`stockpulse_stock_query_duration_seconds_count 3`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics, got: %s", want, body)
		}
	}
}

func TestDashboardCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveFetch(nil)
	metrics.ObserveSnapshot(true)
	metrics.ObserveSnapshot(false)
	metrics.ObserveSnapshot(false)

	body := scrape(t, metrics)
	for _, want := range []string{
		`stockpulse_dashboard_fetches_total{outcome="ok"} 1`,
		`stockpulse_snapshot_cache_total{result="hit"} 1`,
		`stockpulse_snapshot_cache_total{result="miss"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics, got: %s", want, body)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveQuery(nil, 0)
	metrics.ObserveFetch(nil)
	metrics.ObserveSnapshot(true)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from nil metrics, got %d", rr.Code)
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	if metrics.Middleware(next) == nil {
		t.Fatal("expected passthrough middleware")
	}
}
