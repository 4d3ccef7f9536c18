package invoices

import (
	"time"

	"github.com/stammy5/ampere-business-management-sub000/internal/pricing"
)

type CreateInvoiceRequest struct {
	TenantID        int64         `json:"tenant_id" validate:"required,gt=0"`
	ClientID        int64         `json:"client_id" validate:"required,gt=0"`
	InvoiceDate     time.Time     `json:"invoice_date" validate:"required"`
	DueDate         time.Time     `json:"due_date" validate:"required"`
	Currency        string        `json:"currency" validate:"required,len=3"`
	DiscountPercent float64       `json:"discount_percent" validate:"gte=0,lte=100"`
	TaxPercent      *float64      `json:"tax_percent,omitempty" validate:"omitempty,gte=0"`
	Notes           *string       `json:"notes,omitempty"`
	Lines           []LineItemReq `json:"lines" validate:"required,min=1,dive"`
}

type LineItemReq struct {
	Kind            string   `json:"kind" validate:"omitempty,oneof=ITEM SECTION_HEADER"`
	Description     *string  `json:"description,omitempty"`
	Quantity        float64  `json:"quantity" validate:"gte=0"`
	UnitPrice       float64  `json:"unit_price" validate:"gte=0"`
	DiscountPercent float64  `json:"discount_percent" validate:"gte=0,lte=100"`
	TaxPercent      *float64 `json:"tax_percent,omitempty" validate:"omitempty,gte=0"`
	Notes           *string  `json:"notes,omitempty"`
	LineOrder       int      `json:"line_order" validate:"gte=0"`
}

type UpdateInvoiceRequest struct {
	InvoiceDate     *time.Time     `json:"invoice_date,omitempty"`
	DueDate         *time.Time     `json:"due_date,omitempty"`
	DiscountPercent *float64       `json:"discount_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	TaxPercent      *float64       `json:"tax_percent,omitempty" validate:"omitempty,gte=0"`
	Notes           *string        `json:"notes,omitempty"`
	Lines           *[]LineItemReq `json:"lines,omitempty" validate:"omitempty,min=1,dive"`
}

type ListInvoicesRequest struct {
	TenantID int64          `json:"tenant_id" validate:"required,gt=0"`
	ClientID *int64         `json:"client_id,omitempty"`
	Status   *InvoiceStatus `json:"status,omitempty"`
	DateFrom *time.Time     `json:"date_from,omitempty"`
	DateTo   *time.Time     `json:"date_to,omitempty"`
	Limit    int            `json:"limit" validate:"gte=0,lte=1000"`
	Offset   int            `json:"offset" validate:"gte=0"`
}

func pricingKind(kind string) pricing.LineKind {
	if kind == string(pricing.KindSectionHeader) {
		return pricing.KindSectionHeader
	}
	return pricing.KindItem
}

func pricingItems(lines []LineItemReq, defaultTaxPercent float64) []pricing.LineItem {
	items := make([]pricing.LineItem, 0, len(lines))
	for i, line := range lines {
		kind := pricingKind(line.Kind)
		taxPercent := 0.0
		if kind == pricing.KindItem {
			taxPercent = defaultTaxPercent
			if line.TaxPercent != nil {
				taxPercent = *line.TaxPercent
			}
		}
		order := line.LineOrder
		if order == 0 {
			order = i + 1
		}
		items = append(items, pricing.LineItem{
			Kind:            kind,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			DiscountPercent: line.DiscountPercent,
			TaxPercent:      taxPercent,
			Order:           order,
		})
	}
	return items
}
