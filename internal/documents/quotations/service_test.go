package quotations

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
	quotations map[int64]*Quotation
	lines      map[int64][]QuotationLine
	nextID     int64
	createErrs []error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		quotations: make(map[int64]*Quotation),
		lines:      make(map[int64][]QuotationLine),
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (*Quotation, error) {
	q, ok := m.quotations[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	clone := *q
	clone.Lines = append([]QuotationLine(nil), m.lines[id]...)
	return &clone, nil
}

func (m *memoryRepo) GetByDocNumber(ctx context.Context, tenantID int64, docNumber string) (*Quotation, error) {
	for _, q := range m.quotations {
		if q.TenantID == tenantID && q.DocNumber == docNumber {
			return m.Get(ctx, q.ID)
		}
	}
	return nil, httpx.ErrNotFound
}

func (m *memoryRepo) List(ctx context.Context, req ListQuotationsRequest) ([]Quotation, int, error) {
	var out []Quotation
	for _, q := range m.quotations {
		if q.TenantID != req.TenantID {
			continue
		}
		if req.Status != nil && q.Status != *req.Status {
			continue
		}
		out = append(out, *q)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Create(ctx context.Context, q Quotation) (int64, error) {
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	for _, existing := range m.quotations {
		if existing.TenantID == q.TenantID && existing.DocNumber == q.DocNumber {
			return 0, &pgconn.PgError{Code: "23505"}
		}
	}
	m.nextID++
	q.ID = m.nextID
	now := time.Now()
	q.CreatedAt = now
	q.UpdatedAt = now
	m.quotations[q.ID] = &q
	return q.ID, nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, q Quotation) error {
	existing, ok := m.quotations[id]
	if !ok {
		return httpx.ErrNotFound
	}
	q.ID = id
	q.TenantID = existing.TenantID
	q.DocNumber = existing.DocNumber
	q.ExternalRef = existing.ExternalRef
	q.Status = existing.Status
	q.Lines = nil
	m.quotations[id] = &q
	return nil
}

func (m *memoryRepo) UpdateStatus(ctx context.Context, id int64, status QuotationStatus) error {
	q, ok := m.quotations[id]
	if !ok {
		return httpx.ErrNotFound
	}
	q.Status = status
	return nil
}

func (m *memoryRepo) InsertLine(ctx context.Context, line QuotationLine) (int64, error) {
	m.nextID++
	line.ID = m.nextID
	m.lines[line.QuotationID] = append(m.lines[line.QuotationID], line)
	return line.ID, nil
}

func (m *memoryRepo) DeleteLines(ctx context.Context, quotationID int64) error {
	delete(m.lines, quotationID)
	return nil
}

func (m *memoryRepo) ListNumbers(ctx context.Context, tenantID int64, year int) ([]string, error) {
	prefix := fmt.Sprintf("QUO-%d-", year)
	var numbers []string
	for _, q := range m.quotations {
		if q.TenantID == tenantID && strings.HasPrefix(q.DocNumber, prefix) {
			numbers = append(numbers, q.DocNumber)
		}
	}
	return numbers, nil
}

func (m *memoryRepo) Stats(ctx context.Context, tenantID int64, year int) (int64, float64, error) {
	var count int64
	var total float64
	for _, q := range m.quotations {
		if q.TenantID == tenantID && q.QuoteDate.Year() == year {
			count++
			total += q.Totals.GrandTotal
		}
	}
	return count, total, nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, nil, pricing.DefaultTaxPercent, 3)
}

func validCreateRequest() CreateQuotationRequest {
	zero := 0.0
	return CreateQuotationRequest{
		TenantID:   1,
		ClientID:   7,
		QuoteDate:  time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		ValidUntil: time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
		Currency:   "SGD",
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

	quotation, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, "QUO-2025-0001", quotation.DocNumber)
	require.Equal(t, QuotationStatusDraft, quotation.Status)
	require.NotEmpty(t, quotation.ExternalRef)
	require.Equal(t, 300.00, quotation.Totals.ItemsSubtotal)
	require.Equal(t, 15.00, quotation.Totals.DocumentDiscountAmount)
	require.Equal(t, 25.65, quotation.Totals.DocumentTaxAmount)
	require.Equal(t, 310.65, quotation.Totals.GrandTotal)
	require.Len(t, quotation.Lines, 2)
	require.Equal(t, 100.00, quotation.Lines[0].Subtotal)
	require.Equal(t, 1, quotation.Lines[0].LineOrder)
}

func TestCreateSectionHeadersContributeNothing(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	req := validCreateRequest()
	label := "Electrical works"
	req.Lines = append([]LineItemReq{
		{Kind: string(pricing.KindSectionHeader), Description: &label, Quantity: 3, UnitPrice: 999},
	}, req.Lines...)

	quotation, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, 300.00, quotation.Totals.ItemsSubtotal)
	require.Equal(t, 310.65, quotation.Totals.GrandTotal)
	require.Len(t, quotation.Lines, 3)
	require.Zero(t, quotation.Lines[0].LineTotal)
	require.Equal(t, pricing.KindSectionHeader, quotation.Lines[0].Kind)
}

func TestCreateNumbersSequentially(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	for i := 1; i <= 3; i++ {
		quotation, err := svc.Create(context.Background(), validCreateRequest())
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("QUO-2025-%04d", i), quotation.DocNumber)
	}
}

func TestCreateRetriesOnNumberConflict(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	// A concurrent winner took QUO-2025-0001 between the read and the
	// insert; the first attempt hits the unique index.
	repo.createErrs = []error{&pgconn.PgError{Code: "23505"}}
	seeded, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	// The retry refreshed the partition, so no number was skipped twice.
	require.Equal(t, "QUO-2025-0001", seeded.DocNumber)

	next, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	require.Equal(t, "QUO-2025-0002", next.DocNumber)
}

func TestCreateRejectsInvalidDates(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	req := validCreateRequest()
	req.ValidUntil = req.QuoteDate.AddDate(0, -1, 0)

	_, err := svc.Create(context.Background(), req)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateRejectsMissingLines(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	req := validCreateRequest()
	req.Lines = nil

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
	updated, err := svc.Update(context.Background(), created.ID, UpdateQuotationRequest{
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
	require.Len(t, updated.Lines, 1)
}

func TestUpdateOnlyDraft(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), created.ID)
	require.NoError(t, err)

	notes := "too late"
	_, err = svc.Update(context.Background(), created.ID, UpdateQuotationRequest{Notes: &notes})
	require.ErrorIs(t, err, httpx.ErrInvalidStatus)
}

func TestStatusTransitions(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	// Accept before submit is invalid.
	_, err = svc.Accept(context.Background(), created.ID)
	require.ErrorIs(t, err, httpx.ErrInvalidStatus)

	submitted, err := svc.Submit(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, QuotationStatusSubmitted, submitted.Status)

	accepted, err := svc.Accept(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, QuotationStatusAccepted, accepted.Status)

	converted, err := svc.Convert(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, QuotationStatusConverted, converted.Status)
}

func TestGetByDocNumber(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	found, err := svc.GetByDocNumber(context.Background(), 1, created.DocNumber)
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)

	_, err = svc.GetByDocNumber(context.Background(), 2, created.DocNumber)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}
