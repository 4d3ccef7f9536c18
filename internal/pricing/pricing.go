// Package pricing is the single shared calculation engine for quotation,
// purchase order and invoice amounts. Every document code path must go
// through it; no handler or service re-implements the arithmetic.
package pricing

import "math"

// LineKind discriminates priced rows from grouping rows.
type LineKind string

const (
	// KindItem is a priced row.
	KindItem LineKind = "ITEM"
	// KindSectionHeader is a label-only divider row. It never contributes
	// to any total.
	KindSectionHeader LineKind = "SECTION_HEADER"
)

// DefaultTaxPercent is the standard GST rate applied when a document or
// line does not override it.
const DefaultTaxPercent = 9.0

// LineItem is the pricing input for one document row.
type LineItem struct {
	Kind            LineKind
	Quantity        float64
	UnitPrice       float64
	DiscountPercent float64
	TaxPercent      float64
	Order           int
}

// PricedLineItem carries the computed amounts for a line.
type PricedLineItem struct {
	LineItem
	Subtotal       float64
	DiscountAmount float64
	TaxableAmount  float64
	TaxAmount      float64
	LineTotal      float64
}

// Header holds the document-level pricing parameters. Currency is
// informational only; the engine performs no conversion.
type Header struct {
	Currency        string
	DiscountPercent float64
	TaxPercent      float64
}

// DocumentTotals is the aggregate output for a document. It is never
// mutated independently of the lines it was computed from.
type DocumentTotals struct {
	ItemsSubtotal          float64 `json:"items_subtotal"`
	ItemsDiscountTotal     float64 `json:"items_discount_total"`
	ItemsTaxTotal          float64 `json:"items_tax_total"`
	DocumentDiscountAmount float64 `json:"document_discount_amount"`
	DocumentTaxAmount      float64 `json:"document_tax_amount"`
	GrandTotal             float64 `json:"grand_total"`
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// PriceLineItem computes the per-line amounts. The step order is fixed:
// discount is applied before tax, and each multiplicative step is rounded
// to two decimals so stored documents reproduce byte-for-byte. The
// function is total: out-of-range inputs (negative quantity, discount
// above 100) flow through arithmetically without clamping.
func PriceLineItem(item LineItem) PricedLineItem {
	priced := PricedLineItem{LineItem: item}
	if item.Kind == KindSectionHeader {
		return priced
	}
	priced.Subtotal = Round2(item.Quantity * item.UnitPrice)
	priced.DiscountAmount = Round2(priced.Subtotal * item.DiscountPercent / 100)
	priced.TaxableAmount = priced.Subtotal - priced.DiscountAmount
	priced.TaxAmount = Round2(priced.TaxableAmount * item.TaxPercent / 100)
	priced.LineTotal = priced.TaxableAmount + priced.TaxAmount
	return priced
}

// PriceLineItems prices every row, preserving input order. Section
// headers pass through with zero amounts.
func PriceLineItems(items []LineItem) []PricedLineItem {
	priced := make([]PricedLineItem, 0, len(items))
	for _, item := range items {
		priced = append(priced, PriceLineItem(item))
	}
	return priced
}

// AggregateTotals prices every item and applies the document-level
// discount and tax. Document discount applies to the item subtotal net of
// line discounts; document tax applies to the remainder after the
// document discount. Line taxes are added back unreduced. Negative grand
// totals (discount above 100%) are returned as-is; validation is a caller
// concern.
func AggregateTotals(items []LineItem, header Header) DocumentTotals {
	var totals DocumentTotals
	for _, item := range items {
		if item.Kind == KindSectionHeader {
			continue
		}
		priced := PriceLineItem(item)
		totals.ItemsSubtotal += priced.Subtotal
		totals.ItemsDiscountTotal += priced.DiscountAmount
		totals.ItemsTaxTotal += priced.TaxAmount
	}

	discountedBase := totals.ItemsSubtotal - totals.ItemsDiscountTotal
	totals.DocumentDiscountAmount = Round2(discountedBase * header.DiscountPercent / 100)
	taxBase := discountedBase - totals.DocumentDiscountAmount
	totals.DocumentTaxAmount = Round2(taxBase * header.TaxPercent / 100)

	totals.GrandTotal = totals.ItemsSubtotal -
		totals.ItemsDiscountTotal -
		totals.DocumentDiscountAmount +
		totals.ItemsTaxTotal +
		totals.DocumentTaxAmount
	return totals
}
