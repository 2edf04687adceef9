package dashboardhttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/stockpulse/stockpulse/internal/dashboard"
	"github.com/stockpulse/stockpulse/internal/dashboard/export"
	"github.com/stockpulse/stockpulse/internal/platform/httpx"
	"github.com/stockpulse/stockpulse/internal/stocks"
	"github.com/stockpulse/stockpulse/internal/view"
)

const pageTitle = "Stock Performance"

// sessionCookie carries the ID of the visit's dashboard session.
const sessionCookie = "stockpulse_session"

// resumeParam marks the loading page's own reload, which keeps the visit's
// session instead of starting a new fetch.
const resumeParam = "resume"

// SessionStore hands out the per-visit dashboard sessions.
type SessionStore interface {
	Open(replaces string) *dashboard.Session
	Get(id string) (*dashboard.Session, bool)
}

// SnapshotObserver records snapshot cache hits and misses.
type SnapshotObserver interface {
	ObserveSnapshot(hit bool)
}

// Handler serves the dashboard page and its exports.
type Handler struct {
	logger       *slog.Logger
	sessions     SessionStore
	templates    *view.Engine
	cache        *dashboard.Cache
	observer     SnapshotObserver
	validate     *validator.Validate
	bufPool      sync.Pool
	now          func() time.Time
	loadWait     time.Duration
	secureCookie bool
}

// NewHandler constructs the dashboard HTTP handler. cache and observer may be
// nil.
func NewHandler(logger *slog.Logger, sessions SessionStore, templates *view.Engine, cache *dashboard.Cache, observer SnapshotObserver) *Handler {
	h := &Handler{
		logger:    logger,
		sessions:  sessions,
		templates: templates,
		cache:     cache,
		observer:  observer,
		validate:  validator.New(),
		now:       time.Now,
	}
	h.bufPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// WithLoadWait lets a request wait up to d for its session's fetch before
// rendering the loading state. Zero renders immediately.
func (h *Handler) WithLoadWait(d time.Duration) {
	if d >= 0 {
		h.loadWait = d
	}
}

// WithSecureCookie marks the session cookie Secure.
func (h *Handler) WithSecureCookie(secure bool) {
	h.secureCookie = secure
}

type pageView struct {
	Loading    bool
	Error      string
	Start      string
	End        string
	RangeError string
	Chart      template.HTML
	Count      int
	Total      int
	CSVURL     template.URL
	PNGURL     template.URL
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := view.TemplateData{Title: pageTitle}
	status := http.StatusOK

	session := h.pageSession(w, r)
	switch state := h.await(r.Context(), session).(type) {
	case dashboard.Loading:
		data.Refresh = resumeURL(r)
		data.Data = pageView{Loading: true}
	case dashboard.Failed:
		data.Data = pageView{Error: state.Message}
	case dashboard.Loaded:
		vm, err := h.buildPage(r, state.Records)
		if errors.Is(err, httpx.ErrValidation) {
			status = http.StatusBadRequest
		} else if err != nil {
			h.handleServerError(w, "render chart", err)
			return
		}
		data.Data = vm
	default:
		h.handleServerError(w, "dashboard state", fmt.Errorf("unexpected state %T", state))
		return
	}

	if err := h.templates.Render(w, status, "pages/dashboard.html", data); err != nil {
		h.handleServerError(w, "render template", err)
	}
}

func (h *Handler) buildPage(r *http.Request, records []stocks.ProcessedRecord) (pageView, error) {
	q, err := h.parseRange(r)
	vm := pageView{Start: q.Start, End: q.End, Total: len(records)}
	if err != nil {
		vm.RangeError = rangeMessage(err)
		return vm, err
	}
	filtered := stocks.FilterRange(records, q.dateRange)
	chart, err := dashboard.RenderChart(filtered)
	if err != nil {
		return vm, err
	}
	query := q.encode()
	vm.Chart = chart
	vm.Count = len(filtered)
	vm.CSVURL = template.URL("/dashboard/export.csv?" + query)
	vm.PNGURL = template.URL("/dashboard/chart.png?" + query)
	return vm, nil
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	records, q, ok := h.loadedRange(w, r, h.exportSession(w, r))
	if !ok {
		return
	}

	buf := h.bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.bufPool.Put(buf)
	}()

	if err := export.WriteSeriesCSV(buf, stocks.FilterRange(records, q.dateRange)); err != nil {
		h.handleServerError(w, "write csv", err)
		return
	}

	filename := fmt.Sprintf("stock-performance-%s-%s.csv", q.Start, q.End)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream csv", err)
	}
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	session := h.exportSession(w, r)
	records, q, ok := h.loadedRange(w, r, session)
	if !ok {
		return
	}
	filtered := stocks.FilterRange(records, q.dateRange)
	render := func(context.Context) ([]byte, error) {
		var buf bytes.Buffer
		if err := dashboard.RenderSnapshot(&buf, filtered); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	payload, err := h.snapshot(r.Context(), session.ID(), q, render)
	if errors.Is(err, dashboard.ErrInsufficientData) {
		httpx.Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		h.handleServerError(w, "render snapshot", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=60")
	if _, err := w.Write(payload); err != nil {
		h.logError("stream snapshot", err)
	}
}

// snapshot serves from the cache when one is configured. A failing cache is
// logged and bypassed.
func (h *Handler) snapshot(ctx context.Context, sessionID string, q rangeQuery, render func(context.Context) ([]byte, error)) ([]byte, error) {
	if !h.cache.Enabled() {
		return render(ctx)
	}
	key := dashboard.SnapshotKey(sessionID, q.Start, q.End)
	var rendered []byte
	var renderErr error
	payload, hit, err := h.cache.FetchBytes(ctx, key, func(ctx context.Context) ([]byte, error) {
		rendered, renderErr = render(ctx)
		return rendered, renderErr
	})
	if renderErr != nil {
		return nil, renderErr
	}
	if err != nil {
		h.logWarn("snapshot cache", err)
		if rendered != nil {
			return rendered, nil
		}
		return render(ctx)
	}
	if h.observer != nil {
		h.observer.ObserveSnapshot(hit)
	}
	return payload, nil
}

// loadedRange returns the session's records and the requested range, or
// writes the matching error response.
func (h *Handler) loadedRange(w http.ResponseWriter, r *http.Request, session *dashboard.Session) ([]stocks.ProcessedRecord, rangeQuery, bool) {
	switch state := h.await(r.Context(), session).(type) {
	case dashboard.Loading:
		httpx.RespondError(w, fmt.Errorf("%w: stock data is still loading", httpx.ErrUnavailable))
		return nil, rangeQuery{}, false
	case dashboard.Failed:
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrUpstream, state.Message))
		return nil, rangeQuery{}, false
	case dashboard.Loaded:
		q, err := h.parseRange(r)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, rangeMessage(err))
			return nil, rangeQuery{}, false
		}
		return state.Records, q, true
	default:
		h.handleServerError(w, "dashboard state", fmt.Errorf("unexpected state %T", state))
		return nil, rangeQuery{}, false
	}
}

// pageSession picks the session a page view renders. A plain page load starts
// a new fetch. The loading page's reload and range changes on loaded data
// keep the visit's session.
func (h *Handler) pageSession(w http.ResponseWriter, r *http.Request) *dashboard.Session {
	id := sessionIDFrom(r)
	if current, ok := h.sessions.Get(id); ok {
		query := r.URL.Query()
		switch current.State().(type) {
		case dashboard.Loading:
			return current
		case dashboard.Loaded:
			if query.Has(resumeParam) || query.Has("start") || query.Has("end") {
				return current
			}
		case dashboard.Failed:
			if query.Has(resumeParam) {
				return current
			}
		}
	}
	session := h.sessions.Open(id)
	h.setSessionCookie(w, session.ID())
	return session
}

// exportSession returns the visit's session, opening one for callers that
// never loaded the page.
func (h *Handler) exportSession(w http.ResponseWriter, r *http.Request) *dashboard.Session {
	if current, ok := h.sessions.Get(sessionIDFrom(r)); ok {
		return current
	}
	session := h.sessions.Open("")
	h.setSessionCookie(w, session.ID())
	return session
}

// await returns the session state, waiting up to loadWait for the fetch.
func (h *Handler) await(ctx context.Context, session *dashboard.Session) dashboard.State {
	if h.loadWait <= 0 {
		return session.State()
	}
	ctx, cancel := context.WithTimeout(ctx, h.loadWait)
	defer cancel()
	state, _ := session.Load(ctx)
	return state
}

func sessionIDFrom(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// resumeURL is the loading page's reload target. It keeps the requested range.
func resumeURL(r *http.Request) string {
	values := url.Values{}
	query := r.URL.Query()
	for _, key := range []string{"start", "end"} {
		if v := query.Get(key); v != "" {
			values.Set(key, v)
		}
	}
	values.Set(resumeParam, "1")
	return "/?" + values.Encode()
}

type rangeQuery struct {
	Start     string `validate:"omitempty,datetime=2006-01-02"`
	End       string `validate:"omitempty,datetime=2006-01-02"`
	dateRange stocks.DateRange
}

func (q rangeQuery) encode() string {
	values := url.Values{}
	values.Set("start", q.Start)
	values.Set("end", q.End)
	return values.Encode()
}

// parseRange reads start and end, defaulting to one month ago and today.
func (h *Handler) parseRange(r *http.Request) (rangeQuery, error) {
	q := rangeQuery{
		Start: strings.TrimSpace(r.URL.Query().Get("start")),
		End:   strings.TrimSpace(r.URL.Query().Get("end")),
	}
	if err := h.validate.Struct(q); err != nil {
		return q, fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	}

	today := stocks.CalendarDate(h.now())
	end := today
	if q.End != "" {
		end, _ = time.Parse(stocks.DateLayout, q.End)
	}
	start := today.AddDate(0, -1, 0)
	if q.Start != "" {
		start, _ = time.Parse(stocks.DateLayout, q.Start)
	}
	q.Start = start.Format(stocks.DateLayout)
	q.End = end.Format(stocks.DateLayout)
	q.dateRange = stocks.NewDateRange(start, end)
	return q, nil
}

func rangeMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid date range"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return fmt.Sprintf("Invalid %s date, expected YYYY-MM-DD", strings.Join(fields, " and "))
}

func (h *Handler) handleServerError(w http.ResponseWriter, context string, err error) {
	h.logError(context, err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (h *Handler) logError(context string, err error) {
	if h.logger != nil {
		h.logger.Error(context, slog.Any("error", err))
	}
}

func (h *Handler) logWarn(context string, err error) {
	if h.logger != nil {
		h.logger.Warn(context, slog.Any("error", err))
	}
}
