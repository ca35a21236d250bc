package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all breakdown routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/breakdown", func(r chi.Router) {
		r.Get("/", h.HandleGetBreakdown)
		r.Get("/exposure", h.HandleGetExposure)
		r.Get("/diagnostics", h.HandleGetDiagnostics)
	})
}
