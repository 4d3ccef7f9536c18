package quotations

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

// Service orchestrates quotation flows. All monetary amounts come from
// the shared pricing engine; the service never does its own arithmetic.
type Service struct {
	repo              Repository
	issuer            *numbering.Issuer
	validate          *validator.Validate
	defaultTaxPercent float64
}

// numberingStore adapts the repository to the issuer's store port.
type numberingStore struct {
	repo Repository
}

func (s numberingStore) ListNumbers(ctx context.Context, tenantID int64, family numbering.Family, year int) ([]string, error) {
	return s.repo.ListNumbers(ctx, tenantID, year)
}

// NewService constructs a quotation service.
func NewService(repo Repository, logger *slog.Logger, defaultTaxPercent float64, numberingRetries int) *Service {
	return &Service{
		repo:              repo,
		issuer:            numbering.NewIssuer(numberingStore{repo: repo}, numberingRetries, logger),
		validate:          validator.New(),
		defaultTaxPercent: defaultTaxPercent,
	}
}

// ObserveNumberConflicts registers a callback fired whenever a
// quotation number race is lost and retried.
func (s *Service) ObserveNumberConflicts(fn func()) {
	s.issuer.OnConflict = func(numbering.Family) { fn() }
}

// Create validates the request, prices the lines, issues a document
// number and persists header plus lines in one transaction.
func (s *Service) Create(ctx context.Context, req CreateQuotationRequest) (*Quotation, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	if req.ValidUntil.Before(req.QuoteDate) {
		return nil, fmt.Errorf("%w: valid_until must be on or after quote_date", httpx.ErrValidation)
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

	quotation := Quotation{
		TenantID:        req.TenantID,
		ExternalRef:     uuid.NewString(),
		ClientID:        req.ClientID,
		QuoteDate:       req.QuoteDate,
		ValidUntil:      req.ValidUntil,
		Status:          QuotationStatusDraft,
		Currency:        req.Currency,
		DiscountPercent: req.DiscountPercent,
		TaxPercent:      docTax,
		Totals:          totals,
		Notes:           req.Notes,
	}

	var quotationID int64
	_, err := s.issuer.Issue(ctx, req.TenantID, numbering.FamilyQuotation, req.QuoteDate.Year(), func(ctx context.Context, number string) error {
		doc := quotation
		doc.DocNumber = number
		return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
			id, err := tx.Create(ctx, doc)
			if err != nil {
				if numbering.IsUniqueViolation(err) {
					return fmt.Errorf("create quotation: %w", numbering.ErrConflict)
				}
				return fmt.Errorf("create quotation: %w", err)
			}
			for i, p := range priced {
				if _, err := tx.InsertLine(ctx, lineFromPriced(id, p, req.Lines[i])); err != nil {
					return fmt.Errorf("insert quotation line: %w", err)
				}
			}
			quotationID = id
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return s.repo.Get(ctx, quotationID)
}

// Update edits a DRAFT quotation. When lines are supplied the totals are
// recomputed through the pricing engine and the lines replaced wholesale.
func (s *Service) Update(ctx context.Context, id int64, req UpdateQuotationRequest) (*Quotation, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}

	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	if existing.Status != QuotationStatusDraft {
		return nil, fmt.Errorf("%w: only DRAFT quotations can be updated", httpx.ErrInvalidStatus)
	}

	updated := *existing
	if req.QuoteDate != nil {
		updated.QuoteDate = *req.QuoteDate
	}
	if req.ValidUntil != nil {
		updated.ValidUntil = *req.ValidUntil
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
	if updated.ValidUntil.Before(updated.QuoteDate) {
		return nil, fmt.Errorf("%w: valid_until must be on or after quote_date", httpx.ErrValidation)
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
			return fmt.Errorf("update quotation: %w", err)
		}
		if err := tx.DeleteLines(ctx, id); err != nil {
			return fmt.Errorf("delete quotation lines: %w", err)
		}
		for i, p := range priced {
			if _, err := tx.InsertLine(ctx, lineFromPriced(id, p, lines[i])); err != nil {
				return fmt.Errorf("insert quotation line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.repo.Get(ctx, id)
}

// Submit moves a DRAFT quotation to SUBMITTED.
func (s *Service) Submit(ctx context.Context, id int64) (*Quotation, error) {
	return s.transition(ctx, id, QuotationStatusDraft, QuotationStatusSubmitted)
}

// Accept moves a SUBMITTED quotation to ACCEPTED.
func (s *Service) Accept(ctx context.Context, id int64) (*Quotation, error) {
	return s.transition(ctx, id, QuotationStatusSubmitted, QuotationStatusAccepted)
}

// Reject moves a SUBMITTED quotation to REJECTED.
func (s *Service) Reject(ctx context.Context, id int64) (*Quotation, error) {
	return s.transition(ctx, id, QuotationStatusSubmitted, QuotationStatusRejected)
}

// Convert marks an ACCEPTED quotation as CONVERTED once a downstream
// document has been raised from it.
func (s *Service) Convert(ctx context.Context, id int64) (*Quotation, error) {
	return s.transition(ctx, id, QuotationStatusAccepted, QuotationStatusConverted)
}

func (s *Service) transition(ctx context.Context, id int64, from, to QuotationStatus) (*Quotation, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	if existing.Status != from {
		return nil, fmt.Errorf("%w: %s quotations cannot move to %s", httpx.ErrInvalidStatus, existing.Status, to)
	}
	if err := s.repo.UpdateStatus(ctx, id, to); err != nil {
		return nil, fmt.Errorf("update quotation status: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Get retrieves a quotation with its lines.
func (s *Service) Get(ctx context.Context, id int64) (*Quotation, error) {
	return s.repo.Get(ctx, id)
}

// GetByDocNumber retrieves a quotation by its human-readable number.
func (s *Service) GetByDocNumber(ctx context.Context, tenantID int64, docNumber string) (*Quotation, error) {
	return s.repo.GetByDocNumber(ctx, tenantID, docNumber)
}

// List returns quotations matching the filter plus the unpaged count.
func (s *Service) List(ctx context.Context, req ListQuotationsRequest) ([]Quotation, int, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	if req.Limit == 0 {
		req.Limit = 50
	}
	return s.repo.List(ctx, req)
}

func lineFromPriced(quotationID int64, p pricing.PricedLineItem, req LineItemReq) QuotationLine {
	return QuotationLine{
		QuotationID:     quotationID,
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

// linesToReqs reconstructs request lines from stored ones so a
// header-only update reprices against the same inputs.
func linesToReqs(lines []QuotationLine) []LineItemReq {
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
