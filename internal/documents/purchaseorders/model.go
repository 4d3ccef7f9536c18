package purchaseorders

import (
	"time"

	"github.com/stammy5/ampere-business-management-sub000/internal/pricing"
)

type PurchaseOrderStatus string

const (
	PurchaseOrderStatusDraft    PurchaseOrderStatus = "DRAFT"
	PurchaseOrderStatusIssued   PurchaseOrderStatus = "ISSUED"
	PurchaseOrderStatusReceived PurchaseOrderStatus = "RECEIVED"
	PurchaseOrderStatusClosed   PurchaseOrderStatus = "CLOSED"
)

type PurchaseOrder struct {
	ID              int64                  `json:"id" db:"id"`
	TenantID        int64                  `json:"tenant_id" db:"tenant_id"`
	DocNumber       string                 `json:"doc_number" db:"doc_number"`
	ExternalRef     string                 `json:"external_ref" db:"external_ref"`
	SupplierID      int64                  `json:"supplier_id" db:"supplier_id"`
	OrderDate       time.Time              `json:"order_date" db:"order_date"`
	ExpectedDate    *time.Time             `json:"expected_date,omitempty" db:"expected_date"`
	Status          PurchaseOrderStatus    `json:"status" db:"status"`
	Currency        string                 `json:"currency" db:"currency"`
	DiscountPercent float64                `json:"discount_percent" db:"discount_percent"`
	TaxPercent      float64                `json:"tax_percent" db:"tax_percent"`
	Totals          pricing.DocumentTotals `json:"totals" db:"-"`
	Notes           *string                `json:"notes,omitempty" db:"notes"`
	CreatedAt       time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at" db:"updated_at"`
	Lines           []PurchaseOrderLine    `json:"lines,omitempty" db:"-"`
}

type PurchaseOrderLine struct {
	ID              int64            `json:"id" db:"id"`
	PurchaseOrderID int64            `json:"purchase_order_id" db:"purchase_order_id"`
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
