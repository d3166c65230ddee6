package pickpack

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers pick-pack routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Get("/by-order/{orderID}", h.ShowByOrder)
	r.Post("/{id}/start-picking", h.transition(h.service.StartPicking))
	r.Post("/{id}/complete-picking", h.transition(h.service.CompletePicking))
	r.Post("/{id}/start-packing", h.transition(h.service.StartPacking))
	r.Post("/{id}/complete-packing", h.transition(h.service.CompletePacking))
}
