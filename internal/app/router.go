package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stammy5/ampere-business-management-sub000/internal/documents/invoices"
	"github.com/stammy5/ampere-business-management-sub000/internal/documents/purchaseorders"
	"github.com/stammy5/ampere-business-management-sub000/internal/documents/quotations"
	"github.com/stammy5/ampere-business-management-sub000/internal/documents/summary"
	"github.com/stammy5/ampere-business-management-sub000/internal/observability"
	"github.com/stammy5/ampere-business-management-sub000/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	QuotationHandler     *quotations.Handler
	InvoiceHandler       *invoices.Handler
	PurchaseOrderHandler *purchaseorders.Handler
	SummaryHandler       *summary.Handler
	JobHandler           *jobs.Handler
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router with Ampere defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/quotations", params.QuotationHandler.MountRoutes)
		r.Route("/invoices", params.InvoiceHandler.MountRoutes)
		r.Route("/purchase-orders", params.PurchaseOrderHandler.MountRoutes)
		if params.SummaryHandler != nil {
			r.Route("/summary", params.SummaryHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
