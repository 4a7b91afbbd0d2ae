package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all earnings routes
func (h *Handler) RegisterRoutes(r chi.Router, stream *StreamHandler) {
	r.Route("/earnings", func(r chi.Router) {
		r.Get("/daily", h.HandleGetDaily)
		r.Get("/monthly", h.HandleGetMonthly)
		r.Get("/monthly/stream", stream.ServeHTTP)
	})
}
