package quotations

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches the quotation endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
	r.Get("/number/{docNumber}", h.ShowByNumber)

	r.Post("/{id}/submit", h.transition(func(r *http.Request, id int64) (*Quotation, error) {
		return h.service.Submit(r.Context(), id)
	}))
	r.Post("/{id}/accept", h.transition(func(r *http.Request, id int64) (*Quotation, error) {
		return h.service.Accept(r.Context(), id)
	}))
	r.Post("/{id}/reject", h.transition(func(r *http.Request, id int64) (*Quotation, error) {
		return h.service.Reject(r.Context(), id)
	}))
	r.Post("/{id}/convert", h.transition(func(r *http.Request, id int64) (*Quotation, error) {
		return h.service.Convert(r.Context(), id)
	}))
}
