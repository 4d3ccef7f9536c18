package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stammy5/ampere-business-management-sub000/internal/pricing"
)

// docTable describes one document family's storage layout.
type docTable struct {
	name      string
	linesName string
	fkColumn  string
}

var docTables = []docTable{
	{name: "quotations", linesName: "quotation_lines", fkColumn: "quotation_id"},
	{name: "invoices", linesName: "invoice_lines", fkColumn: "invoice_id"},
	{name: "purchase_orders", linesName: "purchase_order_lines", fkColumn: "purchase_order_id"},
}

// IntegrityChecker recomputes stored document totals from their lines
// and reports (or repairs) drift against the pricing engine.
type IntegrityChecker struct {
	pool       *pgxpool.Pool
	logger     *slog.Logger
	invalidate func(context.Context) error
}

// NewIntegrityChecker wires a checker. invalidate is called after a
// repair run changed stored totals; pass nil when no cache exists.
func NewIntegrityChecker(pool *pgxpool.Pool, logger *slog.Logger, invalidate func(context.Context) error) *IntegrityChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntegrityChecker{pool: pool, logger: logger, invalidate: invalidate}
}

// HandleTotalsIntegrityTask processes TaskTotalsIntegrity tasks.
func (c *IntegrityChecker) HandleTotalsIntegrityTask(ctx context.Context, t *asynq.Task) error {
	var payload TotalsIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	return c.Run(ctx, payload)
}

// Run executes the integrity check synchronously.
func (c *IntegrityChecker) Run(ctx context.Context, payload TotalsIntegrityPayload) error {
	var drifted, repaired int
	for _, table := range docTables {
		d, r, err := c.checkTable(ctx, table, payload)
		if err != nil {
			return fmt.Errorf("totals integrity %s: %w", table.name, err)
		}
		drifted += d
		repaired += r
	}

	c.logger.Info("totals integrity run finished",
		slog.String("job", TaskTotalsIntegrity),
		slog.Int64("tenant_id", payload.TenantID),
		slog.Int("drifted", drifted),
		slog.Int("repaired", repaired))

	if repaired > 0 && c.invalidate != nil {
		if err := c.invalidate(ctx); err != nil {
			c.logger.Warn("summary cache invalidation failed", slog.Any("error", err))
		}
	}
	return nil
}

type storedDoc struct {
	id              int64
	tenantID        int64
	docNumber       string
	currency        string
	discountPercent float64
	taxPercent      float64
	totals          pricing.DocumentTotals
}

func (c *IntegrityChecker) checkTable(ctx context.Context, table docTable, payload TotalsIntegrityPayload) (drifted, repaired int, err error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, doc_number, currency, discount_percent, tax_percent,
			items_subtotal, items_discount_total, items_tax_total,
			document_discount_amount, document_tax_amount, grand_total
		FROM %s WHERE ($1 = 0 OR tenant_id = $1)
	`, table.name)

	rows, err := c.pool.Query(ctx, query, payload.TenantID)
	if err != nil {
		return 0, 0, err
	}
	var docs []storedDoc
	for rows.Next() {
		var d storedDoc
		if err := rows.Scan(
			&d.id, &d.tenantID, &d.docNumber, &d.currency, &d.discountPercent, &d.taxPercent,
			&d.totals.ItemsSubtotal, &d.totals.ItemsDiscountTotal, &d.totals.ItemsTaxTotal,
			&d.totals.DocumentDiscountAmount, &d.totals.DocumentTaxAmount, &d.totals.GrandTotal,
		); err != nil {
			rows.Close()
			return 0, 0, err
		}
		docs = append(docs, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}

	for _, doc := range docs {
		items, err := c.loadItems(ctx, table, doc.id)
		if err != nil {
			return drifted, repaired, err
		}
		want := pricing.AggregateTotals(items, pricing.Header{
			Currency:        doc.currency,
			DiscountPercent: doc.discountPercent,
			TaxPercent:      doc.taxPercent,
		})
		if want == doc.totals {
			continue
		}
		drifted++
		c.logger.Warn("stored totals drifted from recomputation",
			slog.String("table", table.name),
			slog.String("doc_number", doc.docNumber),
			slog.Float64("stored_grand_total", doc.totals.GrandTotal),
			slog.Float64("computed_grand_total", want.GrandTotal))

		if !payload.Repair {
			continue
		}
		if err := c.repair(ctx, table, doc.id, want); err != nil {
			return drifted, repaired, err
		}
		repaired++
	}
	return drifted, repaired, nil
}

func (c *IntegrityChecker) loadItems(ctx context.Context, table docTable, docID int64) ([]pricing.LineItem, error) {
	query := fmt.Sprintf(`
		SELECT kind, quantity, unit_price, discount_percent, tax_percent, line_order
		FROM %s WHERE %s = $1 ORDER BY line_order, id
	`, table.linesName, table.fkColumn)

	rows, err := c.pool.Query(ctx, query, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []pricing.LineItem
	for rows.Next() {
		var item pricing.LineItem
		if err := rows.Scan(&item.Kind, &item.Quantity, &item.UnitPrice, &item.DiscountPercent, &item.TaxPercent, &item.Order); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (c *IntegrityChecker) repair(ctx context.Context, table docTable, docID int64, totals pricing.DocumentTotals) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			items_subtotal = $2, items_discount_total = $3, items_tax_total = $4,
			document_discount_amount = $5, document_tax_amount = $6, grand_total = $7,
			updated_at = NOW()
		WHERE id = $1
	`, table.name)
	_, err := c.pool.Exec(ctx, query, docID,
		totals.ItemsSubtotal, totals.ItemsDiscountTotal, totals.ItemsTaxTotal,
		totals.DocumentDiscountAmount, totals.DocumentTaxAmount, totals.GrandTotal)
	return err
}
