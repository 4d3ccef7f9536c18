package numbering

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	numbers map[string]bool
	listErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{numbers: make(map[string]bool)}
}

func (s *memoryStore) ListNumbers(ctx context.Context, tenantID int64, family Family, year int) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]string, 0, len(s.numbers))
	for n := range s.numbers {
		out = append(out, n)
	}
	return out, nil
}

func (s *memoryStore) persist(ctx context.Context, number string) error {
	if s.numbers[number] {
		return fmt.Errorf("insert: %w", ErrConflict)
	}
	s.numbers[number] = true
	return nil
}

func TestIssuerIssuesSequentially(t *testing.T) {
	store := newMemoryStore()
	issuer := NewIssuer(store, 3, nil)

	for i := 1; i <= 3; i++ {
		number, err := issuer.Issue(context.Background(), 1, FamilyInvoice, 2025, store.persist)
		require.NoError(t, err)
		require.Equal(t, Format(FamilyInvoice, 2025, i), number)
	}
}

func TestIssuerRetriesAfterConflict(t *testing.T) {
	store := newMemoryStore()
	// Simulate a concurrent winner: the first computed number is already
	// taken by the time persist runs.
	store.numbers["INV-2025-0001"] = true
	stale := []string{}
	calls := 0
	staleStore := storeFunc(func(ctx context.Context, tenantID int64, family Family, year int) ([]string, error) {
		calls++
		if calls == 1 {
			return stale, nil
		}
		return store.ListNumbers(ctx, tenantID, family, year)
	})

	issuer := NewIssuer(staleStore, 3, nil)
	number, err := issuer.Issue(context.Background(), 1, FamilyInvoice, 2025, store.persist)
	require.NoError(t, err)
	require.Equal(t, "INV-2025-0002", number)
	require.Equal(t, 2, calls)
}

func TestIssuerExhaustsAttempts(t *testing.T) {
	store := newMemoryStore()
	alwaysConflict := func(ctx context.Context, number string) error {
		return ErrConflict
	}

	issuer := NewIssuer(store, 2, nil)
	_, err := issuer.Issue(context.Background(), 1, FamilyQuotation, 2025, alwaysConflict)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrConflict)
}

func TestIssuerCrossesFourDigitBoundary(t *testing.T) {
	store := newMemoryStore()
	store.numbers["INV-2024-9999"] = true
	store.numbers["INV-2024-10000"] = true

	issuer := NewIssuer(store, 3, nil)
	number, err := issuer.Issue(context.Background(), 1, FamilyInvoice, 2024, store.persist)
	require.NoError(t, err)
	require.Equal(t, "INV-2024-10001", number)
}

func TestIssuerObservesConflicts(t *testing.T) {
	store := newMemoryStore()
	store.numbers["INV-2025-0001"] = true
	stale := []string{}
	calls := 0
	staleStore := storeFunc(func(ctx context.Context, tenantID int64, family Family, year int) ([]string, error) {
		calls++
		if calls == 1 {
			return stale, nil
		}
		return store.ListNumbers(ctx, tenantID, family, year)
	})

	issuer := NewIssuer(staleStore, 3, nil)
	var observed []Family
	issuer.OnConflict = func(family Family) {
		observed = append(observed, family)
	}

	_, err := issuer.Issue(context.Background(), 1, FamilyInvoice, 2025, store.persist)
	require.NoError(t, err)
	require.Equal(t, []Family{FamilyInvoice}, observed)
}

func TestIssuerStopsOnNonConflictError(t *testing.T) {
	store := newMemoryStore()
	boom := errors.New("connection reset")
	calls := 0
	persist := func(ctx context.Context, number string) error {
		calls++
		return boom
	}

	issuer := NewIssuer(store, 5, nil)
	_, err := issuer.Issue(context.Background(), 1, FamilyQuotation, 2025, persist)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestIssuerPropagatesStoreError(t *testing.T) {
	store := newMemoryStore()
	store.listErr = errors.New("db down")

	issuer := NewIssuer(store, 3, nil)
	_, err := issuer.Issue(context.Background(), 1, FamilyInvoice, 2025, store.persist)
	require.ErrorContains(t, err, "list issued numbers")
}

type storeFunc func(ctx context.Context, tenantID int64, family Family, year int) ([]string, error)

func (f storeFunc) ListNumbers(ctx context.Context, tenantID int64, family Family, year int) ([]string, error) {
	return f(ctx, tenantID, family, year)
}
