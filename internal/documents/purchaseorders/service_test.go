package purchaseorders

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
	orders     map[int64]*PurchaseOrder
	lines      map[int64][]PurchaseOrderLine
	nextID     int64
	createErrs []error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		orders: make(map[int64]*PurchaseOrder),
		lines:  make(map[int64][]PurchaseOrderLine),
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (*PurchaseOrder, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	clone := *order
	clone.Lines = append([]PurchaseOrderLine(nil), m.lines[id]...)
	return &clone, nil
}

func (m *memoryRepo) GetByDocNumber(ctx context.Context, tenantID int64, docNumber string) (*PurchaseOrder, error) {
	for _, order := range m.orders {
		if order.TenantID == tenantID && order.DocNumber == docNumber {
			return m.Get(ctx, order.ID)
		}
	}
	return nil, httpx.ErrNotFound
}

func (m *memoryRepo) List(ctx context.Context, req ListPurchaseOrdersRequest) ([]PurchaseOrder, int, error) {
	var out []PurchaseOrder
	for _, order := range m.orders {
		if order.TenantID != req.TenantID {
			continue
		}
		if req.Status != nil && order.Status != *req.Status {
			continue
		}
		out = append(out, *order)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Create(ctx context.Context, order PurchaseOrder) (int64, error) {
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	for _, existing := range m.orders {
		if existing.TenantID == order.TenantID && existing.DocNumber == order.DocNumber {
			return 0, &pgconn.PgError{Code: "23505"}
		}
	}
	m.nextID++
	order.ID = m.nextID
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	m.orders[order.ID] = &order
	return order.ID, nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, order PurchaseOrder) error {
	existing, ok := m.orders[id]
	if !ok {
		return httpx.ErrNotFound
	}
	order.ID = id
	order.TenantID = existing.TenantID
	order.DocNumber = existing.DocNumber
	order.ExternalRef = existing.ExternalRef
	order.Status = existing.Status
	order.Lines = nil
	m.orders[id] = &order
	return nil
}

func (m *memoryRepo) UpdateStatus(ctx context.Context, id int64, status PurchaseOrderStatus) error {
	order, ok := m.orders[id]
	if !ok {
		return httpx.ErrNotFound
	}
	order.Status = status
	return nil
}

func (m *memoryRepo) InsertLine(ctx context.Context, line PurchaseOrderLine) (int64, error) {
	m.nextID++
	line.ID = m.nextID
	m.lines[line.PurchaseOrderID] = append(m.lines[line.PurchaseOrderID], line)
	return line.ID, nil
}

func (m *memoryRepo) DeleteLines(ctx context.Context, orderID int64) error {
	delete(m.lines, orderID)
	return nil
}

func (m *memoryRepo) ListNumbers(ctx context.Context, tenantID int64, year int) ([]string, error) {
	prefix := fmt.Sprintf("PO-%d-", year)
	var numbers []string
	for _, order := range m.orders {
		if order.TenantID == tenantID && strings.HasPrefix(order.DocNumber, prefix) {
			numbers = append(numbers, order.DocNumber)
		}
	}
	return numbers, nil
}

func (m *memoryRepo) Stats(ctx context.Context, tenantID int64, year int) (int64, float64, error) {
	var count int64
	var total float64
	for _, order := range m.orders {
		if order.TenantID == tenantID && order.OrderDate.Year() == year {
			count++
			total += order.Totals.GrandTotal
		}
	}
	return count, total, nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, nil, pricing.DefaultTaxPercent, 3)
}

func validCreateRequest() CreatePurchaseOrderRequest {
	zero := 0.0
	expected := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	return CreatePurchaseOrderRequest{
		TenantID:     1,
		SupplierID:   12,
		OrderDate:    time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		ExpectedDate: &expected,
		Currency:     "SGD",
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

	order, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, "PO-2025-0001", order.DocNumber)
	require.Equal(t, PurchaseOrderStatusDraft, order.Status)
	require.NotEmpty(t, order.ExternalRef)
	require.Equal(t, 300.00, order.Totals.ItemsSubtotal)
	require.Equal(t, 15.00, order.Totals.DocumentDiscountAmount)
	require.Equal(t, 25.65, order.Totals.DocumentTaxAmount)
	require.Equal(t, 310.65, order.Totals.GrandTotal)
	require.Len(t, order.Lines, 2)
}

func TestCreateNumbersSequentially(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	for i := 1; i <= 3; i++ {
		order, err := svc.Create(context.Background(), validCreateRequest())
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("PO-2025-%04d", i), order.DocNumber)
	}
}

func TestCreateRetriesOnNumberConflict(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	repo.createErrs = []error{&pgconn.PgError{Code: "23505"}}
	order, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	require.Equal(t, "PO-2025-0001", order.DocNumber)
}

func TestCreateRejectsExpectedDateBeforeOrderDate(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	req := validCreateRequest()
	early := req.OrderDate.AddDate(0, -1, 0)
	req.ExpectedDate = &early

	_, err := svc.Create(context.Background(), req)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateAllowsMissingExpectedDate(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	req := validCreateRequest()
	req.ExpectedDate = nil

	order, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.Nil(t, order.ExpectedDate)
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
	updated, err := svc.Update(context.Background(), created.ID, UpdatePurchaseOrderRequest{
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
	_, err = svc.Update(context.Background(), created.ID, UpdatePurchaseOrderRequest{Notes: &notes})
	require.ErrorIs(t, err, httpx.ErrInvalidStatus)
}

func TestLifecycleTransitions(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	// Cannot receive or close before issuing.
	_, err = svc.MarkReceived(context.Background(), created.ID)
	require.ErrorIs(t, err, httpx.ErrInvalidStatus)
	_, err = svc.Close(context.Background(), created.ID)
	require.ErrorIs(t, err, httpx.ErrInvalidStatus)

	issued, err := svc.Issue(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, PurchaseOrderStatusIssued, issued.Status)

	received, err := svc.MarkReceived(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, PurchaseOrderStatusReceived, received.Status)

	closed, err := svc.Close(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, PurchaseOrderStatusClosed, closed.Status)
}

func TestNumberingIsolatedPerTenant(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	first, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	require.Equal(t, "PO-2025-0001", first.DocNumber)

	other := validCreateRequest()
	other.TenantID = 2
	second, err := svc.Create(context.Background(), other)
	require.NoError(t, err)
	require.Equal(t, "PO-2025-0001", second.DocNumber)
}
