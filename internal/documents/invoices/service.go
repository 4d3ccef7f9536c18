package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stammy5/ampere-business-management-sub000/internal/numbering"
	"github.com/stammy5/ampere-business-management-sub000/internal/platform/httpx"
	"github.com/stammy5/ampere-business-management-sub000/internal/pricing"
)

// Service orchestrates invoice flows. Amounts always come from the
// shared pricing engine.
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

// NewService constructs an invoice service.
func NewService(repo Repository, logger *slog.Logger, defaultTaxPercent float64, numberingRetries int) *Service {
	return &Service{
		repo:              repo,
		issuer:            numbering.NewIssuer(numberingStore{repo: repo}, numberingRetries, logger),
		validate:          validator.New(),
		defaultTaxPercent: defaultTaxPercent,
	}
}

// ObserveNumberConflicts registers a callback fired whenever an
// invoice number race is lost and retried.
func (s *Service) ObserveNumberConflicts(fn func()) {
	s.issuer.OnConflict = func(numbering.Family) { fn() }
}

// Create validates the request, prices the lines, issues the invoice
// number and persists everything in one transaction.
func (s *Service) Create(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	if req.DueDate.Before(req.InvoiceDate) {
		return nil, fmt.Errorf("%w: due_date must be on or after invoice_date", httpx.ErrValidation)
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

	invoice := Invoice{
		TenantID:        req.TenantID,
		ExternalRef:     uuid.NewString(),
		ClientID:        req.ClientID,
		InvoiceDate:     req.InvoiceDate,
		DueDate:         req.DueDate,
		Status:          InvoiceStatusDraft,
		Currency:        req.Currency,
		DiscountPercent: req.DiscountPercent,
		TaxPercent:      docTax,
		Totals:          totals,
		Notes:           req.Notes,
	}

	var invoiceID int64
	_, err := s.issuer.Issue(ctx, req.TenantID, numbering.FamilyInvoice, req.InvoiceDate.Year(), func(ctx context.Context, number string) error {
		doc := invoice
		doc.DocNumber = number
		return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
			id, err := tx.Create(ctx, doc)
			if err != nil {
				if numbering.IsUniqueViolation(err) {
					return fmt.Errorf("create invoice: %w", numbering.ErrConflict)
				}
				return fmt.Errorf("create invoice: %w", err)
			}
			for i, p := range priced {
				if _, err := tx.InsertLine(ctx, lineFromPriced(id, p, req.Lines[i])); err != nil {
					return fmt.Errorf("insert invoice line: %w", err)
				}
			}
			invoiceID = id
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return s.repo.Get(ctx, invoiceID)
}

// Update edits a DRAFT invoice, repricing when lines change.
func (s *Service) Update(ctx context.Context, id int64, req UpdateInvoiceRequest) (*Invoice, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}

	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if existing.Status != InvoiceStatusDraft {
		return nil, fmt.Errorf("%w: only DRAFT invoices can be updated", httpx.ErrInvalidStatus)
	}

	updated := *existing
	if req.InvoiceDate != nil {
		updated.InvoiceDate = *req.InvoiceDate
	}
	if req.DueDate != nil {
		updated.DueDate = *req.DueDate
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
	if updated.DueDate.Before(updated.InvoiceDate) {
		return nil, fmt.Errorf("%w: due_date must be on or after invoice_date", httpx.ErrValidation)
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
			return fmt.Errorf("update invoice: %w", err)
		}
		if err := tx.DeleteLines(ctx, id); err != nil {
			return fmt.Errorf("delete invoice lines: %w", err)
		}
		for i, p := range priced {
			if _, err := tx.InsertLine(ctx, lineFromPriced(id, p, lines[i])); err != nil {
				return fmt.Errorf("insert invoice line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.repo.Get(ctx, id)
}

// Issue moves a DRAFT invoice to ISSUED, fixing its number in customer
// communication.
func (s *Service) Issue(ctx context.Context, id int64) (*Invoice, error) {
	return s.transition(ctx, id, InvoiceStatusDraft, InvoiceStatusIssued, nil)
}

// MarkPaid records payment of an ISSUED invoice.
func (s *Service) MarkPaid(ctx context.Context, id int64, paidAt time.Time) (*Invoice, error) {
	return s.transition(ctx, id, InvoiceStatusIssued, InvoiceStatusPaid, &paidAt)
}

// Void cancels an ISSUED invoice. The document number is never reused;
// the gap it leaves is permanent by design.
func (s *Service) Void(ctx context.Context, id int64) (*Invoice, error) {
	return s.transition(ctx, id, InvoiceStatusIssued, InvoiceStatusVoid, nil)
}

func (s *Service) transition(ctx context.Context, id int64, from, to InvoiceStatus, paidAt *time.Time) (*Invoice, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if existing.Status != from {
		return nil, fmt.Errorf("%w: %s invoices cannot move to %s", httpx.ErrInvalidStatus, existing.Status, to)
	}
	if err := s.repo.UpdateStatus(ctx, id, to, paidAt); err != nil {
		return nil, fmt.Errorf("update invoice status: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Get retrieves an invoice with its lines.
func (s *Service) Get(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.Get(ctx, id)
}

// GetByDocNumber retrieves an invoice by its human-readable number.
func (s *Service) GetByDocNumber(ctx context.Context, tenantID int64, docNumber string) (*Invoice, error) {
	return s.repo.GetByDocNumber(ctx, tenantID, docNumber)
}

// List returns invoices matching the filter plus the unpaged count.
func (s *Service) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	if req.Limit == 0 {
		req.Limit = 50
	}
	return s.repo.List(ctx, req)
}

func lineFromPriced(invoiceID int64, p pricing.PricedLineItem, req LineItemReq) InvoiceLine {
	return InvoiceLine{
		InvoiceID:       invoiceID,
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

func linesToReqs(lines []InvoiceLine) []LineItemReq {
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
