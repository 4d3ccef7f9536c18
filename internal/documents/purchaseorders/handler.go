package purchaseorders

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stammy5/ampere-business-management-sub000/internal/platform/httpx"
)

// Handler exposes the purchase order REST endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a purchase order handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePurchaseOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}

	order, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.logger.Error("create purchase order failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "purchase order id must be an integer")
		return
	}

	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) ShowByNumber(w http.ResponseWriter, r *http.Request) {
	tenantID, err := strconv.ParseInt(r.URL.Query().Get("tenant_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Tenant", "tenant_id query parameter is required")
		return
	}

	order, err := h.service.GetByDocNumber(r.Context(), tenantID, chi.URLParam(r, "docNumber"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	req, err := parseListRequest(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", err.Error())
		return
	}

	orders, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list purchase orders failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"purchase_orders": orders,
		"total":           total,
	})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "purchase order id must be an integer")
		return
	}

	var req UpdatePurchaseOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}

	order, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.logger.Error("update purchase order failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) transition(fn func(r *http.Request, id int64) (*PurchaseOrder, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "purchase order id must be an integer")
			return
		}
		order, err := fn(r, id)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, order)
	}
}

func parseListRequest(r *http.Request) (ListPurchaseOrdersRequest, error) {
	query := r.URL.Query()

	tenantID, err := strconv.ParseInt(query.Get("tenant_id"), 10, 64)
	if err != nil {
		return ListPurchaseOrdersRequest{}, fmt.Errorf("tenant_id query parameter is required")
	}
	req := ListPurchaseOrdersRequest{TenantID: tenantID}

	if v := query.Get("supplier_id"); v != "" {
		supplierID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return req, fmt.Errorf("supplier_id must be an integer")
		}
		req.SupplierID = &supplierID
	}
	if v := query.Get("status"); v != "" {
		status := PurchaseOrderStatus(v)
		req.Status = &status
	}
	if t := parseDate(query.Get("date_from")); t != nil {
		req.DateFrom = t
	}
	if t := parseDate(query.Get("date_to")); t != nil {
		req.DateTo = t
	}
	if v := query.Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			req.Limit = limit
		}
	}
	if v := query.Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil {
			req.Offset = offset
		}
	}
	return req, nil
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}
