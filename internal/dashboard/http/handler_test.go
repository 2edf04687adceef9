package dashboardhttp

import (
	"bytes"
	"context"
	"encoding/csv"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/guregu/null/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpulse/stockpulse/internal/dashboard"
	"github.com/stockpulse/stockpulse/internal/stocks"
	"github.com/stockpulse/stockpulse/internal/view"
)

type stubFetcher struct {
	records []stocks.StockRecord
	err     error
	block   chan struct{}
	calls   atomic.Int32
}

func (f *stubFetcher) FetchRecords(ctx context.Context) ([]stocks.StockRecord, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.records, f.err
}

type snapshotCounter struct {
	hits, misses int
}

func (c *snapshotCounter) ObserveSnapshot(hit bool) {
	if hit {
		c.hits++
		return
	}
	c.misses++
}

var fixedNow = time.Date(2024, 2, 15, 9, 30, 0, 0, time.UTC)

func sampleRecords() []stocks.StockRecord {
	return []stocks.StockRecord{
		{Date: "2024-01-10", Stock1: null.FloatFrom(100), Stock3: null.FloatFrom(50)},
		{Date: "2024-01-20", Stock1: null.FloatFrom(105.5), Stock3: null.FloatFrom(55)},
		{Date: "2024-02-01", Stock1: null.FloatFrom(103), Stock3: null.FloatFrom(0)},
		{Date: "2024-02-14", Stock1: null.FloatFrom(108.25), Stock3: null.FloatFrom(10)},
	}
}

func loadedFetcher() *stubFetcher {
	return &stubFetcher{records: sampleRecords()}
}

func failedFetcher(message string) *stubFetcher {
	return &stubFetcher{err: &dashboard.FetchError{Message: message}}
}

func loadingFetcher(t *testing.T) *stubFetcher {
	t.Helper()
	f := &stubFetcher{records: sampleRecords(), block: make(chan struct{})}
	t.Cleanup(func() { close(f.block) })
	return f
}

func newTestHandler(t *testing.T, fetcher *stubFetcher, cache *dashboard.Cache, observer SnapshotObserver) http.Handler {
	t.Helper()
	engine, err := view.NewEngine()
	require.NoError(t, err)
	store := dashboard.NewStore(context.Background(), fetcher, stocks.PropagateNonFinite, nil, nil, time.Minute)
	h := NewHandler(nil, store, engine, cache, observer)
	h.WithNow(func() time.Time { return fixedNow })
	if fetcher.block != nil {
		h.WithLoadWait(20 * time.Millisecond)
	} else {
		h.WithLoadWait(2 * time.Second)
	}
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func get(h http.Handler, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func visitCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatalf("response sets no %s cookie", sessionCookie)
	return nil
}

func TestDashboardLoadingState(t *testing.T) {
	rr := get(newTestHandler(t, loadingFetcher(t), nil, nil), "/")

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `class="spinner"`)
	assert.Contains(t, body, `http-equiv="refresh"`)
	assert.NotContains(t, body, "<svg")
	assert.NotContains(t, body, `type="date"`)
}

func TestDashboardErrorState(t *testing.T) {
	rr := get(newTestHandler(t, failedFetcher("Database query failed"), nil, nil), "/")

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Error: Database query failed")
	assert.NotContains(t, body, "<svg")
	assert.NotContains(t, body, `type="date"`)
	assert.NotContains(t, body, "spinner")
}

func TestDashboardDefaultRangeIsLastMonth(t *testing.T) {
	rr := get(newTestHandler(t, loadedFetcher(), nil, nil), "/")

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `value="2024-01-15"`)
	assert.Contains(t, body, `value="2024-02-15"`)
	assert.Contains(t, body, "<svg")
	assert.Contains(t, body, "3 of 4 records")
	assert.NotContains(t, body, "Jan 10")
	assert.Contains(t, body, "Stock 3 DoD: N/A %", "zero base propagates to a non-finite change")
}

func TestDashboardCustomRange(t *testing.T) {
	rr := get(newTestHandler(t, loadedFetcher(), nil, nil), "/?start=2024-01-10&end=2024-01-20")

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "2 of 4 records")
	assert.Contains(t, body, "Jan 10")
	assert.Contains(t, body, "/dashboard/export.csv?end=2024-01-20&amp;start=2024-01-10")
}

func TestDashboardEmptyRangeRendersEmptyChart(t *testing.T) {
	rr := get(newTestHandler(t, loadedFetcher(), nil, nil), "/?start=2024-02-10&end=2024-01-01")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "No data for the selected range")
	assert.Contains(t, rr.Body.String(), "0 of 4 records")
}

func TestDashboardInvalidRange(t *testing.T) {
	rr := get(newTestHandler(t, loadedFetcher(), nil, nil), "/?start=15/01/2024")

	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Invalid start date")
	assert.NotContains(t, body, "<svg")
}

func TestCSVExport(t *testing.T) {
	rr := get(newTestHandler(t, loadedFetcher(), nil, nil), "/dashboard/export.csv?start=2024-01-20&end=2024-02-14")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "stock-performance-2024-01-20-2024-02-14.csv")

	rows, err := csv.NewReader(strings.NewReader(rr.Body.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Date", "Stock 1", "Stock 3", "Stock 3 DoD (%)"},
		{"2024-01-20", "105.50", "55.00", "10.00"},
		{"2024-02-01", "103.00", "0.00", "-100.00"},
		{"2024-02-14", "108.25", "10.00", "N/A"},
	}, rows)
}

func TestExportsReflectSessionState(t *testing.T) {
	for _, target := range []string{"/dashboard/export.csv", "/dashboard/chart.png"} {
		rr := get(newTestHandler(t, loadingFetcher(t), nil, nil), target)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code, target)

		rr = get(newTestHandler(t, failedFetcher("Network Error"), nil, nil), target)
		assert.Equal(t, http.StatusBadGateway, rr.Code, target)
		assert.Contains(t, rr.Body.String(), "Network Error", target)

		rr = get(newTestHandler(t, loadedFetcher(), nil, nil), target+"?end=tomorrow")
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
		assert.JSONEq(t, `{"error":"Invalid end date, expected YYYY-MM-DD"}`, rr.Body.String(), target)
	}
}

func TestSnapshotNeedsData(t *testing.T) {
	rr := get(newTestHandler(t, loadedFetcher(), nil, nil), "/dashboard/chart.png?start=2024-02-14&end=2024-02-14")

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "at least two priced days")
}

func TestSnapshotIsCachedInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	counter := &snapshotCounter{}
	h := newTestHandler(t, loadedFetcher(), dashboard.NewCache(client, time.Minute), counter)

	first := get(h, "/dashboard/chart.png")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "image/png", first.Header().Get("Content-Type"))
	_, err := png.Decode(bytes.NewReader(first.Body.Bytes()))
	require.NoError(t, err)

	cookie := visitCookie(t, first)
	second := get(h, "/dashboard/chart.png", cookie)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
	assert.Equal(t, 1, counter.misses)
	assert.Equal(t, 1, counter.hits)
	assert.True(t, mr.Exists("stockpulse:snapshot:"+cookie.Value+":2024-01-15:2024-02-15"))
}

func TestSnapshotFallsBackWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	counter := &snapshotCounter{}
	rr := get(newTestHandler(t, loadedFetcher(), dashboard.NewCache(client, time.Minute), counter), "/dashboard/chart.png")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, counter.hits+counter.misses)
}

func TestDashboardSetsVisitCookie(t *testing.T) {
	rr := get(newTestHandler(t, loadedFetcher(), nil, nil), "/")

	require.Equal(t, http.StatusOK, rr.Code)
	cookie := visitCookie(t, rr)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
}

func TestDashboardNewVisitAfterFailureFetchesAgain(t *testing.T) {
	fetcher := failedFetcher("Network Error")
	h := newTestHandler(t, fetcher, nil, nil)

	first := get(h, "/")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Contains(t, first.Body.String(), "Error: Network Error")
	failedVisit := visitCookie(t, first)

	fetcher.err = nil
	fetcher.records = sampleRecords()

	fresh := get(h, "/")
	require.Equal(t, http.StatusOK, fresh.Code)
	assert.Contains(t, fresh.Body.String(), "<svg")
	assert.Equal(t, int32(2), fetcher.calls.Load())

	reload := get(h, "/", failedVisit)
	require.Equal(t, http.StatusOK, reload.Code)
	assert.Contains(t, reload.Body.String(), "<svg")
	assert.NotEqual(t, failedVisit.Value, visitCookie(t, reload).Value)
	assert.Equal(t, int32(3), fetcher.calls.Load())
}

func TestDashboardResumeKeepsFailedSession(t *testing.T) {
	fetcher := failedFetcher("Network Error")
	h := newTestHandler(t, fetcher, nil, nil)

	cookie := visitCookie(t, get(h, "/"))
	rr := get(h, "/?resume=1", cookie)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Error: Network Error")
	assert.Empty(t, rr.Result().Cookies())
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestDashboardRangeChangeReusesLoadedSession(t *testing.T) {
	fetcher := loadedFetcher()
	h := newTestHandler(t, fetcher, nil, nil)

	cookie := visitCookie(t, get(h, "/"))
	rr := get(h, "/?start=2024-01-10&end=2024-01-20", cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "2 of 4 records")
	assert.Equal(t, int32(1), fetcher.calls.Load())

	exported := get(h, "/dashboard/export.csv", cookie)
	require.Equal(t, http.StatusOK, exported.Code)
	assert.Equal(t, int32(1), fetcher.calls.Load())

	reload := get(h, "/", cookie)
	require.Equal(t, http.StatusOK, reload.Code)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestDashboardLoadingRefreshKeepsSession(t *testing.T) {
	fetcher := loadingFetcher(t)
	h := newTestHandler(t, fetcher, nil, nil)

	first := get(h, "/?start=2024-01-10")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Contains(t, first.Body.String(), `content="1; url=/?resume=1&amp;start=2024-01-10"`)

	refresh := get(h, "/?resume=1&start=2024-01-10", visitCookie(t, first))
	require.Equal(t, http.StatusOK, refresh.Code)
	assert.Contains(t, refresh.Body.String(), `class="spinner"`)
	assert.Empty(t, refresh.Result().Cookies())
	assert.Equal(t, int32(1), fetcher.calls.Load())
}
