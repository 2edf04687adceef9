package stockhttp

import "github.com/go-chi/chi/v5"

// MountRoutes registers the stock data endpoint onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/api/stock_data", h.handleList)
}
