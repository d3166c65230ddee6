package inventory

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/low-stock", h.LowStock)
	r.Get("/lookup", h.Lookup)
	r.Get("/by-product/{productID}", h.ListByProduct)
	r.Get("/report/{productID}", h.StockReport)
	r.Post("/reserve", h.Reserve)
	r.Post("/release", h.Release)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Patch("/{id}", h.Patch)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/adjust", h.Adjust)
	r.Post("/{id}/count", h.Count)
	r.Get("/{id}/movements", h.Movements)
}
