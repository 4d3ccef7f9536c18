package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stammy5/ampere-business-management-sub000/internal/platform/db"
	"github.com/stammy5/ampere-business-management-sub000/internal/platform/httpx"
)

// Repository describes persistence operations used by Service.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Invoice, error)
	GetByDocNumber(ctx context.Context, tenantID int64, docNumber string) (*Invoice, error)
	List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error)
	Create(ctx context.Context, invoice Invoice) (int64, error)
	Update(ctx context.Context, id int64, invoice Invoice) error
	UpdateStatus(ctx context.Context, id int64, status InvoiceStatus, paidAt *time.Time) error
	InsertLine(ctx context.Context, line InvoiceLine) (int64, error)
	DeleteLines(ctx context.Context, invoiceID int64) error
	ListNumbers(ctx context.Context, tenantID int64, year int) ([]string, error)
	Stats(ctx context.Context, tenantID int64, year int) (int64, float64, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a pgx-backed invoice repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const invoiceColumns = `id, tenant_id, doc_number, external_ref, client_id, invoice_date, due_date,
	status, currency, discount_percent, tax_percent,
	items_subtotal, items_discount_total, items_tax_total,
	document_discount_amount, document_tax_amount, grand_total,
	notes, paid_at, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Invoice, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM invoices WHERE id = $1`, invoiceColumns), id)
	return r.scanWithLines(ctx, row)
}

func (r *repository) GetByDocNumber(ctx context.Context, tenantID int64, docNumber string) (*Invoice, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM invoices WHERE tenant_id = $1 AND doc_number = $2`, invoiceColumns),
		tenantID, docNumber)
	return r.scanWithLines(ctx, row)
}

func (r *repository) scanWithLines(ctx context.Context, row pgx.Row) (*Invoice, error) {
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	lines, err := r.lines(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines
	return inv, nil
}

func (r *repository) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	conditions := []string{"tenant_id = $1"}
	args := []interface{}{req.TenantID}

	if req.ClientID != nil {
		args = append(args, *req.ClientID)
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if req.Status != nil {
		args = append(args, *req.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if req.DateFrom != nil {
		args = append(args, *req.DateFrom)
		conditions = append(conditions, fmt.Sprintf("invoice_date >= $%d", len(args)))
	}
	if req.DateTo != nil {
		args = append(args, *req.DateTo)
		conditions = append(conditions, fmt.Sprintf("invoice_date <= $%d", len(args)))
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM invoices %s", whereClause)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM invoices %s ORDER BY invoice_date DESC, id DESC LIMIT $%d OFFSET $%d`,
		invoiceColumns, whereClause, len(args)+1, len(args)+2)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO invoices (
			tenant_id, doc_number, external_ref, client_id, invoice_date, due_date,
			status, currency, discount_percent, tax_percent,
			items_subtotal, items_discount_total, items_tax_total,
			document_discount_amount, document_tax_amount, grand_total, notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING id
	`,
		inv.TenantID, inv.DocNumber, inv.ExternalRef, inv.ClientID, inv.InvoiceDate, inv.DueDate,
		inv.Status, inv.Currency, inv.DiscountPercent, inv.TaxPercent,
		inv.Totals.ItemsSubtotal, inv.Totals.ItemsDiscountTotal, inv.Totals.ItemsTaxTotal,
		inv.Totals.DocumentDiscountAmount, inv.Totals.DocumentTaxAmount, inv.Totals.GrandTotal,
		inv.Notes,
	).Scan(&id)
	return id, err
}

func (r *repository) Update(ctx context.Context, id int64, inv Invoice) error {
	_, err := r.db.Exec(ctx, `
		UPDATE invoices SET
			invoice_date = $2, due_date = $3, discount_percent = $4, tax_percent = $5,
			items_subtotal = $6, items_discount_total = $7, items_tax_total = $8,
			document_discount_amount = $9, document_tax_amount = $10, grand_total = $11,
			notes = $12, updated_at = NOW()
		WHERE id = $1
	`,
		id, inv.InvoiceDate, inv.DueDate, inv.DiscountPercent, inv.TaxPercent,
		inv.Totals.ItemsSubtotal, inv.Totals.ItemsDiscountTotal, inv.Totals.ItemsTaxTotal,
		inv.Totals.DocumentDiscountAmount, inv.Totals.DocumentTaxAmount, inv.Totals.GrandTotal,
		inv.Notes,
	)
	return err
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status InvoiceStatus, paidAt *time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE invoices SET status = $2, paid_at = $3, updated_at = NOW() WHERE id = $1`,
		id, status, paidAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) InsertLine(ctx context.Context, line InvoiceLine) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO invoice_lines (
			invoice_id, kind, description, quantity, unit_price,
			discount_percent, discount_amount, tax_percent, tax_amount,
			subtotal, line_total, notes, line_order
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id
	`,
		line.InvoiceID, line.Kind, line.Description, line.Quantity, line.UnitPrice,
		line.DiscountPercent, line.DiscountAmount, line.TaxPercent, line.TaxAmount,
		line.Subtotal, line.LineTotal, line.Notes, line.LineOrder,
	).Scan(&id)
	return id, err
}

func (r *repository) DeleteLines(ctx context.Context, invoiceID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id = $1`, invoiceID)
	return err
}

// ListNumbers feeds the numbering issuer with the issued numbers for one
// (tenant, year) partition; the issuer does not rely on order.
func (r *repository) ListNumbers(ctx context.Context, tenantID int64, year int) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT doc_number FROM invoices
		WHERE tenant_id = $1 AND doc_number LIKE 'INV-' || $2::text || '-%'
		ORDER BY doc_number DESC
	`, tenantID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

// Stats returns the invoice count and summed grand total for the year.
// VOID invoices are excluded.
func (r *repository) Stats(ctx context.Context, tenantID int64, year int) (int64, float64, error) {
	var count int64
	var total float64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(grand_total), 0) FROM invoices
		WHERE tenant_id = $1 AND EXTRACT(YEAR FROM invoice_date) = $2 AND status <> 'VOID'
	`, tenantID, year).Scan(&count, &total)
	return count, total, err
}

func (r *repository) lines(ctx context.Context, invoiceID int64) ([]InvoiceLine, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, invoice_id, kind, description, quantity, unit_price,
			discount_percent, discount_amount, tax_percent, tax_amount,
			subtotal, line_total, notes, line_order
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY line_order, id
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []InvoiceLine
	for rows.Next() {
		var line InvoiceLine
		if err := rows.Scan(
			&line.ID, &line.InvoiceID, &line.Kind, &line.Description, &line.Quantity, &line.UnitPrice,
			&line.DiscountPercent, &line.DiscountAmount, &line.TaxPercent, &line.TaxAmount,
			&line.Subtotal, &line.LineTotal, &line.Notes, &line.LineOrder,
		); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.TenantID, &inv.DocNumber, &inv.ExternalRef, &inv.ClientID, &inv.InvoiceDate, &inv.DueDate,
		&inv.Status, &inv.Currency, &inv.DiscountPercent, &inv.TaxPercent,
		&inv.Totals.ItemsSubtotal, &inv.Totals.ItemsDiscountTotal, &inv.Totals.ItemsTaxTotal,
		&inv.Totals.DocumentDiscountAmount, &inv.Totals.DocumentTaxAmount, &inv.Totals.GrandTotal,
		&inv.Notes, &inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
