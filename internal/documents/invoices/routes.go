package invoices

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stammy5/ampere-business-management-sub000/internal/platform/httpx"
)

// MountRoutes attaches the invoice endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
	r.Get("/number/{docNumber}", h.ShowByNumber)

	r.Post("/{id}/issue", h.transition(func(r *http.Request, id int64) (*Invoice, error) {
		return h.service.Issue(r.Context(), id)
	}))
	r.Post("/{id}/pay", h.transition(func(r *http.Request, id int64) (*Invoice, error) {
		paidAt, err := parsePaidAt(r)
		if err != nil {
			return nil, err
		}
		return h.service.MarkPaid(r.Context(), id, paidAt)
	}))
	r.Post("/{id}/void", h.transition(func(r *http.Request, id int64) (*Invoice, error) {
		return h.service.Void(r.Context(), id)
	}))
}

// parsePaidAt reads an optional payment timestamp from the body,
// defaulting to now.
func parsePaidAt(r *http.Request) (time.Time, error) {
	if r.ContentLength == 0 {
		return time.Now().UTC(), nil
	}
	var body struct {
		PaidAt *time.Time `json:"paid_at"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	if body.PaidAt == nil {
		return time.Now().UTC(), nil
	}
	return *body.PaidAt, nil
}
