package purchaseorders

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stammy5/ampere-business-management-sub000/internal/numbering"
	"github.com/stammy5/ampere-business-management-sub000/internal/platform/httpx"
	"github.com/stammy5/ampere-business-management-sub000/internal/pricing"
)

// Service orchestrates purchase order flows. Amounts always come from
// the shared pricing engine.
type Service struct {
	repo              Repository
	issuer            *numbering.Issuer
	validate          *validator.Validate
	defaultTaxPercent float64
}

type numberingStore struct {
	repo Repository
}

func (s numberingStore) ListNumbers(ctx context.Context, tenantID int64, family numbering.Family, year int) ([]string, error) {
	return s.repo.ListNumbers(ctx, tenantID, year)
}

// NewService constructs a purchase order service.
func NewService(repo Repository, logger *slog.Logger, defaultTaxPercent float64, numberingRetries int) *Service {
	return &Service{
		repo:              repo,
		issuer:            numbering.NewIssuer(numberingStore{repo: repo}, numberingRetries, logger),
		validate:          validator.New(),
		defaultTaxPercent: defaultTaxPercent,
	}
}

// ObserveNumberConflicts registers a callback fired whenever a
// purchase order number race is lost and retried.
func (s *Service) ObserveNumberConflicts(fn func()) {
	s.issuer.OnConflict = func(numbering.Family) { fn() }
}

// Create validates the request, prices the lines, issues the PO number
// and persists everything in one transaction.
func (s *Service) Create(ctx context.Context, req CreatePurchaseOrderRequest) (*PurchaseOrder, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	if req.ExpectedDate != nil && req.ExpectedDate.Before(req.OrderDate) {
		return nil, fmt.Errorf("%w: expected_date must be on or after order_date", httpx.ErrValidation)
	}

	docTax := s.defaultTaxPercent
	if req.TaxPercent != nil {
		docTax = *req.TaxPercent
	}
	items := pricingItems(req.Lines, s.defaultTaxPercent)
	totals := pricing.AggregateTotals(items, pricing.Header{
		Currency:        req.Currency,
		DiscountPercent: req.DiscountPercent,
		TaxPercent:      docTax,
	})
	priced := pricing.PriceLineItems(items)

	order := PurchaseOrder{
		TenantID:        req.TenantID,
		ExternalRef:     uuid.NewString(),
		SupplierID:      req.SupplierID,
		OrderDate:       req.OrderDate,
		ExpectedDate:    req.ExpectedDate,
		Status:          PurchaseOrderStatusDraft,
		Currency:        req.Currency,
		DiscountPercent: req.DiscountPercent,
		TaxPercent:      docTax,
		Totals:          totals,
		Notes:           req.Notes,
	}

	var orderID int64
	_, err := s.issuer.Issue(ctx, req.TenantID, numbering.FamilyPurchaseOrder, req.OrderDate.Year(), func(ctx context.Context, number string) error {
		doc := order
		doc.DocNumber = number
		return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
			id, err := tx.Create(ctx, doc)
			if err != nil {
				if numbering.IsUniqueViolation(err) {
					return fmt.Errorf("create purchase order: %w", numbering.ErrConflict)
				}
				return fmt.Errorf("create purchase order: %w", err)
			}
			for i, p := range priced {
				if _, err := tx.InsertLine(ctx, lineFromPriced(id, p, req.Lines[i])); err != nil {
					return fmt.Errorf("insert purchase order line: %w", err)
				}
			}
			orderID = id
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return s.repo.Get(ctx, orderID)
}

// Update edits a DRAFT purchase order, repricing when lines change.
func (s *Service) Update(ctx context.Context, id int64, req UpdatePurchaseOrderRequest) (*PurchaseOrder, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}

	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get purchase order: %w", err)
	}
	if existing.Status != PurchaseOrderStatusDraft {
		return nil, fmt.Errorf("%w: only DRAFT purchase orders can be updated", httpx.ErrInvalidStatus)
	}

	updated := *existing
	if req.OrderDate != nil {
		updated.OrderDate = *req.OrderDate
	}
	if req.ExpectedDate != nil {
		updated.ExpectedDate = req.ExpectedDate
	}
	if req.DiscountPercent != nil {
		updated.DiscountPercent = *req.DiscountPercent
	}
	if req.TaxPercent != nil {
		updated.TaxPercent = *req.TaxPercent
	}
	if req.Notes != nil {
		updated.Notes = req.Notes
	}
	if updated.ExpectedDate != nil && updated.ExpectedDate.Before(updated.OrderDate) {
		return nil, fmt.Errorf("%w: expected_date must be on or after order_date", httpx.ErrValidation)
	}

	lines := linesToReqs(existing.Lines)
	if req.Lines != nil {
		lines = *req.Lines
	}
	items := pricingItems(lines, s.defaultTaxPercent)
	updated.Totals = pricing.AggregateTotals(items, pricing.Header{
		Currency:        updated.Currency,
		DiscountPercent: updated.DiscountPercent,
		TaxPercent:      updated.TaxPercent,
	})
	priced := pricing.PriceLineItems(items)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.Update(ctx, id, updated); err != nil {
			return fmt.Errorf("update purchase order: %w", err)
		}
		if err := tx.DeleteLines(ctx, id); err != nil {
			return fmt.Errorf("delete purchase order lines: %w", err)
		}
		for i, p := range priced {
			if _, err := tx.InsertLine(ctx, lineFromPriced(id, p, lines[i])); err != nil {
				return fmt.Errorf("insert purchase order line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.repo.Get(ctx, id)
}

// Issue moves a DRAFT purchase order to ISSUED.
func (s *Service) Issue(ctx context.Context, id int64) (*PurchaseOrder, error) {
	return s.transition(ctx, id, PurchaseOrderStatusDraft, PurchaseOrderStatusIssued)
}

// MarkReceived records goods receipt against an ISSUED purchase order.
func (s *Service) MarkReceived(ctx context.Context, id int64) (*PurchaseOrder, error) {
	return s.transition(ctx, id, PurchaseOrderStatusIssued, PurchaseOrderStatusReceived)
}

// Close finishes a RECEIVED purchase order.
func (s *Service) Close(ctx context.Context, id int64) (*PurchaseOrder, error) {
	return s.transition(ctx, id, PurchaseOrderStatusReceived, PurchaseOrderStatusClosed)
}

func (s *Service) transition(ctx context.Context, id int64, from, to PurchaseOrderStatus) (*PurchaseOrder, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get purchase order: %w", err)
	}
	if existing.Status != from {
		return nil, fmt.Errorf("%w: %s purchase orders cannot move to %s", httpx.ErrInvalidStatus, existing.Status, to)
	}
	if err := s.repo.UpdateStatus(ctx, id, to); err != nil {
		return nil, fmt.Errorf("update purchase order status: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Get retrieves a purchase order with its lines.
func (s *Service) Get(ctx context.Context, id int64) (*PurchaseOrder, error) {
	return s.repo.Get(ctx, id)
}

// GetByDocNumber retrieves a purchase order by its human-readable number.
func (s *Service) GetByDocNumber(ctx context.Context, tenantID int64, docNumber string) (*PurchaseOrder, error) {
	return s.repo.GetByDocNumber(ctx, tenantID, docNumber)
}

// List returns purchase orders matching the filter plus the unpaged count.
func (s *Service) List(ctx context.Context, req ListPurchaseOrdersRequest) ([]PurchaseOrder, int, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	if req.Limit == 0 {
		req.Limit = 50
	}
	return s.repo.List(ctx, req)
}

func lineFromPriced(orderID int64, p pricing.PricedLineItem, req LineItemReq) PurchaseOrderLine {
	return PurchaseOrderLine{
		PurchaseOrderID: orderID,
		Kind:            p.Kind,
		Description:     req.Description,
		Quantity:        p.Quantity,
		UnitPrice:       p.UnitPrice,
		DiscountPercent: p.DiscountPercent,
		DiscountAmount:  p.DiscountAmount,
		TaxPercent:      p.TaxPercent,
		TaxAmount:       p.TaxAmount,
		Subtotal:        p.Subtotal,
		LineTotal:       p.LineTotal,
		Notes:           req.Notes,
		LineOrder:       p.Order,
	}
}

func linesToReqs(lines []PurchaseOrderLine) []LineItemReq {
	reqs := make([]LineItemReq, 0, len(lines))
	for _, line := range lines {
		taxPercent := line.TaxPercent
		reqs = append(reqs, LineItemReq{
			Kind:            string(line.Kind),
			Description:     line.Description,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			DiscountPercent: line.DiscountPercent,
			TaxPercent:      &taxPercent,
			Notes:           line.Notes,
			LineOrder:       line.LineOrder,
		})
	}
	return reqs
}
