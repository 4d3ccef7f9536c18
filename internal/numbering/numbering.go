// Package numbering defines the sequential document numbering scheme
// shared by invoices, quotations and purchase orders. Numbers look like
// INV-2024-0001 and count from 1 within each (prefix, year) partition.
//
// The scheme itself is pure; serialising concurrent issuance is the
// caller's job (see Issuer).
package numbering

import (
	"fmt"
	"strconv"
	"strings"
)

// Family selects the document number prefix.
type Family string

const (
	FamilyInvoice       Family = "INVOICE"
	FamilyQuotation     Family = "QUOTATION"
	FamilyPurchaseOrder Family = "PURCHASE_ORDER"
)

var prefixes = map[Family]string{
	FamilyInvoice:       "INV",
	FamilyQuotation:     "QUO",
	FamilyPurchaseOrder: "PO",
}

// Prefix returns the fixed prefix for the family, or empty for an
// unknown family.
func (f Family) Prefix() string {
	return prefixes[f]
}

// Valid reports whether the family is one of the known document families.
func (f Family) Valid() bool {
	_, ok := prefixes[f]
	return ok
}

// Format renders a document number. The counter is zero-padded to four
// digits; larger counters simply widen the number.
func Format(family Family, year, counter int) string {
	return fmt.Sprintf("%s-%d-%04d", family.Prefix(), year, counter)
}

// Next computes the next number for the (family, year) partition given
// the numbers already issued. Entries from other partitions are ignored,
// so callers may pass an unfiltered list. The maximum is taken over the
// parsed trailing counters, not raw string order, so numbers that have
// widened past four digits still rank above the zero-padded ones; a
// malformed trailing segment degrades to counter 0 rather than failing.
func Next(family Family, year int, existing []string) string {
	partition := fmt.Sprintf("%s-%d-", family.Prefix(), year)

	maxCounter := 0
	for _, number := range existing {
		if !strings.HasPrefix(number, partition) {
			continue
		}
		if counter := parseCounter(number); counter > maxCounter {
			maxCounter = counter
		}
	}
	return Format(family, year, maxCounter+1)
}

// Counter extracts the trailing counter segment of an issued number.
// Unparseable input yields 0.
func Counter(number string) int {
	return parseCounter(number)
}

// parseCounter extracts the trailing counter segment. Unparseable
// history yields 0 so numbering always proceeds.
func parseCounter(number string) int {
	idx := strings.LastIndex(number, "-")
	if idx < 0 || idx == len(number)-1 {
		return 0
	}
	counter, err := strconv.Atoi(number[idx+1:])
	if err != nil || counter < 0 {
		return 0
	}
	return counter
}
