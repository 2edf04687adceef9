package dashboardhttp

import "github.com/go-chi/chi/v5"

// MountRoutes registers the dashboard page and exports onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/", h.handleDashboard)
	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/export.csv", h.handleCSV)
		r.Get("/chart.png", h.handleSnapshot)
	})
}
