package invoices

import (
	"time"

	"github.com/stammy5/ampere-business-management-sub000/internal/pricing"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft  InvoiceStatus = "DRAFT"
	InvoiceStatusIssued InvoiceStatus = "ISSUED"
	InvoiceStatusPaid   InvoiceStatus = "PAID"
	InvoiceStatusVoid   InvoiceStatus = "VOID"
)

type Invoice struct {
	ID              int64                  `json:"id" db:"id"`
	TenantID        int64                  `json:"tenant_id" db:"tenant_id"`
	DocNumber       string                 `json:"doc_number" db:"doc_number"`
	ExternalRef     string                 `json:"external_ref" db:"external_ref"`
	ClientID        int64                  `json:"client_id" db:"client_id"`
	InvoiceDate     time.Time              `json:"invoice_date" db:"invoice_date"`
	DueDate         time.Time              `json:"due_date" db:"due_date"`
	Status          InvoiceStatus          `json:"status" db:"status"`
	Currency        string                 `json:"currency" db:"currency"`
	DiscountPercent float64                `json:"discount_percent" db:"discount_percent"`
	TaxPercent      float64                `json:"tax_percent" db:"tax_percent"`
	Totals          pricing.DocumentTotals `json:"totals" db:"-"`
	Notes           *string                `json:"notes,omitempty" db:"notes"`
	PaidAt          *time.Time             `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt       time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at" db:"updated_at"`
	Lines           []InvoiceLine          `json:"lines,omitempty" db:"-"`
}

type InvoiceLine struct {
	ID              int64            `json:"id" db:"id"`
	InvoiceID       int64            `json:"invoice_id" db:"invoice_id"`
	Kind            pricing.LineKind `json:"kind" db:"kind"`
	Description     *string          `json:"description,omitempty" db:"description"`
	Quantity        float64          `json:"quantity" db:"quantity"`
	UnitPrice       float64          `json:"unit_price" db:"unit_price"`
	DiscountPercent float64          `json:"discount_percent" db:"discount_percent"`
	DiscountAmount  float64          `json:"discount_amount" db:"discount_amount"`
	TaxPercent      float64          `json:"tax_percent" db:"tax_percent"`
	TaxAmount       float64          `json:"tax_amount" db:"tax_amount"`
	Subtotal        float64          `json:"subtotal" db:"subtotal"`
	LineTotal       float64          `json:"line_total" db:"line_total"`
	Notes           *string          `json:"notes,omitempty" db:"notes"`
	LineOrder       int              `json:"line_order" db:"line_order"`
}
