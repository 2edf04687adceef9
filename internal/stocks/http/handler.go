package stockhttp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/stockpulse/stockpulse/internal/platform/httpx"
	"github.com/stockpulse/stockpulse/internal/stocks"
)

// queryFailedMessage is the only failure detail callers ever see.
const queryFailedMessage = "Database query failed"

// StockService defines the data contract used by the handler.
type StockService interface {
	ListRecords(ctx context.Context) ([]stocks.StockRecord, error)
}

// Handler serves the stock data endpoint.
type Handler struct {
	logger  *slog.Logger
	service StockService
}

// NewHandler constructs the stock data HTTP handler.
func NewHandler(logger *slog.Logger, service StockService) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListRecords(r.Context())
	if err != nil {
		h.logError("fetch stock data", err)
		httpx.Error(w, http.StatusInternalServerError, queryFailedMessage)
		return
	}
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) logError(context string, err error) {
	if h.logger != nil {
		h.logger.Error(context, slog.Any("error", err))
	}
}
