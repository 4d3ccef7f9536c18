package summary

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stammy5/ampere-business-management-sub000/internal/platform/httpx"
)

// Handler exposes the tenant summary endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a summary handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches the summary endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.Show)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	tenantID, err := strconv.ParseInt(query.Get("tenant_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Tenant", "tenant_id query parameter is required")
		return
	}

	year := time.Now().Year()
	if v := query.Get("year"); v != "" {
		year, err = strconv.Atoi(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Year", "year must be an integer")
			return
		}
	}

	currencyCode := query.Get("currency")
	if currencyCode == "" {
		currencyCode = "SGD"
	}

	result, err := h.service.Build(r.Context(), tenantID, year, currencyCode)
	if err != nil {
		h.logger.Error("build summary failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
