package summary

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// StatsSource yields the per-year document count and grand total sum
// for one document family.
type StatsSource interface {
	Stats(ctx context.Context, tenantID int64, year int) (int64, float64, error)
}

// DocumentStats is one family's slice of the tenant summary.
type DocumentStats struct {
	Count        int64   `json:"count"`
	GrandTotal   float64 `json:"grand_total"`
	DisplayTotal string  `json:"display_total"`
}

// TenantSummary aggregates the year's documents across all families.
type TenantSummary struct {
	TenantID       int64         `json:"tenant_id"`
	Year           int           `json:"year"`
	Currency       string        `json:"currency"`
	Quotations     DocumentStats `json:"quotations"`
	Invoices       DocumentStats `json:"invoices"`
	PurchaseOrders DocumentStats `json:"purchase_orders"`
	GeneratedAt    time.Time     `json:"generated_at"`
}

// Service fans out to the three document repositories and caches the
// assembled summary.
type Service struct {
	quotations     StatsSource
	invoices       StatsSource
	purchaseOrders StatsSource
	cache          *Cache
	group          singleflight.Group
	logger         *slog.Logger
}

// NewService wires the document stat sources with the cache helper.
func NewService(quotations, invoices, purchaseOrders StatsSource, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		quotations:     quotations,
		invoices:       invoices,
		purchaseOrders: purchaseOrders,
		cache:          cache,
		logger:         logger,
	}
}

// Build assembles the tenant summary for one year. Concurrent callers
// for the same (tenant, year) share a single computation.
func (s *Service) Build(ctx context.Context, tenantID int64, year int, currencyCode string) (*TenantSummary, error) {
	key, err := s.cache.BuildKey(ctx, tenantID, year)
	if err != nil {
		return nil, fmt.Errorf("summary cache key: %w", err)
	}

	result, err, _ := s.group.Do(key, func() (interface{}, error) {
		var out TenantSummary
		err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
			return s.compute(ctx, tenantID, year, currencyCode)
		})
		if err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*TenantSummary), nil
}

// Invalidate drops all cached summaries. Called after jobs rewrite
// stored totals.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) compute(ctx context.Context, tenantID int64, year int, currencyCode string) (*TenantSummary, error) {
	out := TenantSummary{
		TenantID:    tenantID,
		Year:        year,
		Currency:    currencyCode,
		GeneratedAt: time.Now().UTC(),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		count, total, err := s.quotations.Stats(ctx, tenantID, year)
		if err != nil {
			return fmt.Errorf("quotation stats: %w", err)
		}
		out.Quotations = documentStats(count, total, currencyCode)
		return nil
	})
	g.Go(func() error {
		count, total, err := s.invoices.Stats(ctx, tenantID, year)
		if err != nil {
			return fmt.Errorf("invoice stats: %w", err)
		}
		out.Invoices = documentStats(count, total, currencyCode)
		return nil
	})
	g.Go(func() error {
		count, total, err := s.purchaseOrders.Stats(ctx, tenantID, year)
		if err != nil {
			return fmt.Errorf("purchase order stats: %w", err)
		}
		out.PurchaseOrders = documentStats(count, total, currencyCode)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

func documentStats(count int64, total float64, currencyCode string) DocumentStats {
	return DocumentStats{
		Count:        count,
		GrandTotal:   total,
		DisplayTotal: formatAmount(total, currencyCode),
	}
}

// formatAmount renders the total with its currency symbol and grouped
// digits, e.g. "SGD 12,345.67". Unknown codes fall back to a plain
// two-decimal rendering.
func formatAmount(total float64, currencyCode string) string {
	printer := message.NewPrinter(language.English)
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return printer.Sprintf("%.2f", total)
	}
	return printer.Sprintf("%v", currency.NarrowSymbol(unit.Amount(total)))
}
