package quotations

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stammy5/ampere-business-management-sub000/internal/platform/db"
	"github.com/stammy5/ampere-business-management-sub000/internal/platform/httpx"
)

// Repository describes persistence operations used by Service.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Quotation, error)
	GetByDocNumber(ctx context.Context, tenantID int64, docNumber string) (*Quotation, error)
	List(ctx context.Context, req ListQuotationsRequest) ([]Quotation, int, error)
	Create(ctx context.Context, quotation Quotation) (int64, error)
	Update(ctx context.Context, id int64, quotation Quotation) error
	UpdateStatus(ctx context.Context, id int64, status QuotationStatus) error
	InsertLine(ctx context.Context, line QuotationLine) (int64, error)
	DeleteLines(ctx context.Context, quotationID int64) error
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

// NewRepository constructs a pgx-backed quotation repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const quotationColumns = `id, tenant_id, doc_number, external_ref, client_id, quote_date, valid_until,
	status, currency, discount_percent, tax_percent,
	items_subtotal, items_discount_total, items_tax_total,
	document_discount_amount, document_tax_amount, grand_total,
	notes, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Quotation, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM quotations WHERE id = $1`, quotationColumns), id)
	return r.scanWithLines(ctx, row)
}

func (r *repository) GetByDocNumber(ctx context.Context, tenantID int64, docNumber string) (*Quotation, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM quotations WHERE tenant_id = $1 AND doc_number = $2`, quotationColumns),
		tenantID, docNumber)
	return r.scanWithLines(ctx, row)
}

func (r *repository) scanWithLines(ctx context.Context, row pgx.Row) (*Quotation, error) {
	q, err := scanQuotation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	lines, err := r.lines(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	q.Lines = lines
	return q, nil
}

func (r *repository) List(ctx context.Context, req ListQuotationsRequest) ([]Quotation, int, error) {
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
		conditions = append(conditions, fmt.Sprintf("quote_date >= $%d", len(args)))
	}
	if req.DateTo != nil {
		args = append(args, *req.DateTo)
		conditions = append(conditions, fmt.Sprintf("quote_date <= $%d", len(args)))
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM quotations %s", whereClause)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM quotations %s ORDER BY quote_date DESC, id DESC LIMIT $%d OFFSET $%d`,
		quotationColumns, whereClause, len(args)+1, len(args)+2)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var quotations []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, err
		}
		quotations = append(quotations, *q)
	}
	return quotations, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, q Quotation) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO quotations (
			tenant_id, doc_number, external_ref, client_id, quote_date, valid_until,
			status, currency, discount_percent, tax_percent,
			items_subtotal, items_discount_total, items_tax_total,
			document_discount_amount, document_tax_amount, grand_total, notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING id
	`,
		q.TenantID, q.DocNumber, q.ExternalRef, q.ClientID, q.QuoteDate, q.ValidUntil,
		q.Status, q.Currency, q.DiscountPercent, q.TaxPercent,
		q.Totals.ItemsSubtotal, q.Totals.ItemsDiscountTotal, q.Totals.ItemsTaxTotal,
		q.Totals.DocumentDiscountAmount, q.Totals.DocumentTaxAmount, q.Totals.GrandTotal,
		q.Notes,
	).Scan(&id)
	return id, err
}

func (r *repository) Update(ctx context.Context, id int64, q Quotation) error {
	_, err := r.db.Exec(ctx, `
		UPDATE quotations SET
			quote_date = $2, valid_until = $3, discount_percent = $4, tax_percent = $5,
			items_subtotal = $6, items_discount_total = $7, items_tax_total = $8,
			document_discount_amount = $9, document_tax_amount = $10, grand_total = $11,
			notes = $12, updated_at = NOW()
		WHERE id = $1
	`,
		id, q.QuoteDate, q.ValidUntil, q.DiscountPercent, q.TaxPercent,
		q.Totals.ItemsSubtotal, q.Totals.ItemsDiscountTotal, q.Totals.ItemsTaxTotal,
		q.Totals.DocumentDiscountAmount, q.Totals.DocumentTaxAmount, q.Totals.GrandTotal,
		q.Notes,
	)
	return err
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status QuotationStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotations SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) InsertLine(ctx context.Context, line QuotationLine) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO quotation_lines (
			quotation_id, kind, description, quantity, unit_price,
			discount_percent, discount_amount, tax_percent, tax_amount,
			subtotal, line_total, notes, line_order
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id
	`,
		line.QuotationID, line.Kind, line.Description, line.Quantity, line.UnitPrice,
		line.DiscountPercent, line.DiscountAmount, line.TaxPercent, line.TaxAmount,
		line.Subtotal, line.LineTotal, line.Notes, line.LineOrder,
	).Scan(&id)
	return id, err
}

func (r *repository) DeleteLines(ctx context.Context, quotationID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM quotation_lines WHERE quotation_id = $1`, quotationID)
	return err
}

// ListNumbers feeds the numbering issuer with the issued numbers for one
// (tenant, year) partition; the issuer does not rely on order.
func (r *repository) ListNumbers(ctx context.Context, tenantID int64, year int) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT doc_number FROM quotations
		WHERE tenant_id = $1 AND doc_number LIKE 'QUO-' || $2::text || '-%'
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

// Stats returns the quotation count and summed grand total for the year.
func (r *repository) Stats(ctx context.Context, tenantID int64, year int) (int64, float64, error) {
	var count int64
	var total float64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(grand_total), 0) FROM quotations
		WHERE tenant_id = $1 AND EXTRACT(YEAR FROM quote_date) = $2
	`, tenantID, year).Scan(&count, &total)
	return count, total, err
}

func (r *repository) lines(ctx context.Context, quotationID int64) ([]QuotationLine, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, quotation_id, kind, description, quantity, unit_price,
			discount_percent, discount_amount, tax_percent, tax_amount,
			subtotal, line_total, notes, line_order
		FROM quotation_lines WHERE quotation_id = $1 ORDER BY line_order, id
	`, quotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []QuotationLine
	for rows.Next() {
		var line QuotationLine
		if err := rows.Scan(
			&line.ID, &line.QuotationID, &line.Kind, &line.Description, &line.Quantity, &line.UnitPrice,
			&line.DiscountPercent, &line.DiscountAmount, &line.TaxPercent, &line.TaxAmount,
			&line.Subtotal, &line.LineTotal, &line.Notes, &line.LineOrder,
		); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func scanQuotation(row pgx.Row) (*Quotation, error) {
	var q Quotation
	err := row.Scan(
		&q.ID, &q.TenantID, &q.DocNumber, &q.ExternalRef, &q.ClientID, &q.QuoteDate, &q.ValidUntil,
		&q.Status, &q.Currency, &q.DiscountPercent, &q.TaxPercent,
		&q.Totals.ItemsSubtotal, &q.Totals.ItemsDiscountTotal, &q.Totals.ItemsTaxTotal,
		&q.Totals.DocumentDiscountAmount, &q.Totals.DocumentTaxAmount, &q.Totals.GrandTotal,
		&q.Notes, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &q, nil
}
