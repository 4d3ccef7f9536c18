package purchaseorders

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches the purchase order endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
	r.Get("/number/{docNumber}", h.ShowByNumber)

	r.Post("/{id}/issue", h.transition(func(r *http.Request, id int64) (*PurchaseOrder, error) {
		return h.service.Issue(r.Context(), id)
	}))
	r.Post("/{id}/receive", h.transition(func(r *http.Request, id int64) (*PurchaseOrder, error) {
		return h.service.MarkReceived(r.Context(), id)
	}))
	r.Post("/{id}/close", h.transition(func(r *http.Request, id int64) (*PurchaseOrder, error) {
		return h.service.Close(r.Context(), id)
	}))
}
