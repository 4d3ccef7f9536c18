package invoices

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/stammy5/ampere-business-management-sub000/internal/platform/httpx"
	"github.com/stammy5/ampere-business-management-sub000/internal/pricing"
)

type memoryRepo struct {
	invoices   map[int64]*Invoice
	lines      map[int64][]InvoiceLine
	nextID     int64
	createErrs []error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		invoices: make(map[int64]*Invoice),
		lines:    make(map[int64][]InvoiceLine),
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	clone := *inv
	clone.Lines = append([]InvoiceLine(nil), m.lines[id]...)
	return &clone, nil
}

func (m *memoryRepo) GetByDocNumber(ctx context.Context, tenantID int64, docNumber string) (*Invoice, error) {
	for _, inv := range m.invoices {
		if inv.TenantID == tenantID && inv.DocNumber == docNumber {
			return m.Get(ctx, inv.ID)
		}
	}
	return nil, httpx.ErrNotFound
}

func (m *memoryRepo) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	var out []Invoice
	for _, inv := range m.invoices {
		if inv.TenantID != req.TenantID {
			continue
		}
		if req.Status != nil && inv.Status != *req.Status {
			continue
		}
		out = append(out, *inv)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Create(ctx context.Context, inv Invoice) (int64, error) {
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	for _, existing := range m.invoices {
		if existing.TenantID == inv.TenantID && existing.DocNumber == inv.DocNumber {
			return 0, &pgconn.PgError{Code: "23505"}
		}
	}
	m.nextID++
	inv.ID = m.nextID
	now := time.Now()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	m.invoices[inv.ID] = &inv
	return inv.ID, nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, inv Invoice) error {
	existing, ok := m.invoices[id]
	if !ok {
		return httpx.ErrNotFound
	}
	inv.ID = id
	inv.TenantID = existing.TenantID
	inv.DocNumber = existing.DocNumber
	inv.ExternalRef = existing.ExternalRef
	inv.Status = existing.Status
	inv.Lines = nil
	m.invoices[id] = &inv
	return nil
}

func (m *memoryRepo) UpdateStatus(ctx context.Context, id int64, status InvoiceStatus, paidAt *time.Time) error {
	inv, ok := m.invoices[id]
	if !ok {
		return httpx.ErrNotFound
	}
	inv.Status = status
	inv.PaidAt = paidAt
	return nil
}

func (m *memoryRepo) InsertLine(ctx context.Context, line InvoiceLine) (int64, error) {
	m.nextID++
	line.ID = m.nextID
	m.lines[line.InvoiceID] = append(m.lines[line.InvoiceID], line)
	return line.ID, nil
}

func (m *memoryRepo) DeleteLines(ctx context.Context, invoiceID int64) error {
	delete(m.lines, invoiceID)
	return nil
}

func (m *memoryRepo) ListNumbers(ctx context.Context, tenantID int64, year int) ([]string, error) {
	prefix := fmt.Sprintf("INV-%d-", year)
	var numbers []string
	for _, inv := range m.invoices {
		if inv.TenantID == tenantID && strings.HasPrefix(inv.DocNumber, prefix) {
			numbers = append(numbers, inv.DocNumber)
		}
	}
	return numbers, nil
}

func (m *memoryRepo) Stats(ctx context.Context, tenantID int64, year int) (int64, float64, error) {
	var count int64
	var total float64
	for _, inv := range m.invoices {
		if inv.TenantID == tenantID && inv.InvoiceDate.Year() == year && inv.Status != InvoiceStatusVoid {
			count++
			total += inv.Totals.GrandTotal
		}
	}
	return count, total, nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, nil, pricing.DefaultTaxPercent, 3)
}

func validCreateRequest() CreateInvoiceRequest {
	zero := 0.0
	return CreateInvoiceRequest{
		TenantID:    1,
		ClientID:    7,
		InvoiceDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		DueDate:     time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
		Currency:    "SGD",
		Lines: []LineItemReq{
			{Quantity: 2, UnitPrice: 50, TaxPercent: &zero},
			{Quantity: 1, UnitPrice: 200, TaxPercent: &zero},
		},
		DiscountPercent: 5,
	}
}

func TestCreateComputesTotalsThroughEngine(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	req := validCreateRequest()
	req.TaxPercent = nil // falls back to the 9% default

	invoice, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, "INV-2025-0001", invoice.DocNumber)
	require.Equal(t, InvoiceStatusDraft, invoice.Status)
	require.NotEmpty(t, invoice.ExternalRef)
	require.Equal(t, 300.00, invoice.Totals.ItemsSubtotal)
	require.Equal(t, 15.00, invoice.Totals.DocumentDiscountAmount)
	require.Equal(t, 25.65, invoice.Totals.DocumentTaxAmount)
	require.Equal(t, 310.65, invoice.Totals.GrandTotal)
	require.Len(t, invoice.Lines, 2)
}

func TestCreateNumbersSequentially(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	for i := 1; i <= 3; i++ {
		invoice, err := svc.Create(context.Background(), validCreateRequest())
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("INV-2025-%04d", i), invoice.DocNumber)
	}
}

func TestCreateRetriesOnNumberConflict(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	repo.createErrs = []error{&pgconn.PgError{Code: "23505"}}
	invoice, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	require.Equal(t, "INV-2025-0001", invoice.DocNumber)
}

func TestCreateRejectsDueDateBeforeInvoiceDate(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	req := validCreateRequest()
	req.DueDate = req.InvoiceDate.AddDate(0, -1, 0)

	_, err := svc.Create(context.Background(), req)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestUpdateRecomputesTotals(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	zero := 0.0
	lines := []LineItemReq{{Quantity: 10, UnitPrice: 100, DiscountPercent: 10, TaxPercent: &zero}}
	discount := 0.0
	tax := 9.0
	updated, err := svc.Update(context.Background(), created.ID, UpdateInvoiceRequest{
		DiscountPercent: &discount,
		TaxPercent:      &tax,
		Lines:           &lines,
	})
	require.NoError(t, err)

	require.Equal(t, created.DocNumber, updated.DocNumber)
	require.Equal(t, 1000.00, updated.Totals.ItemsSubtotal)
	require.Equal(t, 100.00, updated.Totals.ItemsDiscountTotal)
	require.Equal(t, 81.00, updated.Totals.DocumentTaxAmount)
	require.Equal(t, 981.00, updated.Totals.GrandTotal)
}

func TestUpdateOnlyDraft(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	_, err = svc.Issue(context.Background(), created.ID)
	require.NoError(t, err)

	notes := "too late"
	_, err = svc.Update(context.Background(), created.ID, UpdateInvoiceRequest{Notes: &notes})
	require.ErrorIs(t, err, httpx.ErrInvalidStatus)
}

func TestLifecycleTransitions(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	// Cannot pay or void a draft.
	_, err = svc.MarkPaid(context.Background(), created.ID, time.Now())
	require.ErrorIs(t, err, httpx.ErrInvalidStatus)
	_, err = svc.Void(context.Background(), created.ID)
	require.ErrorIs(t, err, httpx.ErrInvalidStatus)

	issued, err := svc.Issue(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusIssued, issued.Status)

	paidAt := time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)
	paid, err := svc.MarkPaid(context.Background(), created.ID, paidAt)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	require.Equal(t, paidAt, *paid.PaidAt)

	// A paid invoice cannot be voided.
	_, err = svc.Void(context.Background(), created.ID)
	require.ErrorIs(t, err, httpx.ErrInvalidStatus)
}

func TestVoidKeepsNumberRetired(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	first, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	_, err = svc.Issue(context.Background(), first.ID)
	require.NoError(t, err)
	voided, err := svc.Void(context.Background(), first.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusVoid, voided.Status)

	// The next invoice does not reuse the voided number.
	second, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	require.Equal(t, "INV-2025-0002", second.DocNumber)
}

func TestStatsExcludeVoid(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	first, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	_, err = svc.Issue(context.Background(), first.ID)
	require.NoError(t, err)
	_, err = svc.Void(context.Background(), first.ID)
	require.NoError(t, err)

	count, total, err := repo.Stats(context.Background(), 1, 2025)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.Equal(t, 310.65, total)
}
