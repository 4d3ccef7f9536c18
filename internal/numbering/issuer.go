package numbering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrConflict signals that a computed number lost a concurrent issuance
// race and the attempt should be retried with refreshed input.
var ErrConflict = errors.New("numbering: document number already taken")

// Store supplies the issued numbers for one tenant partition.
type Store interface {
	ListNumbers(ctx context.Context, tenantID int64, family Family, year int) ([]string, error)
}

// Issuer turns the pure numbering scheme into a collision-safe service.
// It relies on the persistence layer enforcing a unique constraint on
// the formatted number: when two requests compute the same next counter,
// exactly one insert commits and the loser retries against the refreshed
// partition.
type Issuer struct {
	store       Store
	maxAttempts int
	logger      *slog.Logger

	// OnConflict, when set, observes every lost numbering race.
	OnConflict func(family Family)
}

// NewIssuer constructs an Issuer. maxAttempts values below 1 fall back
// to a single attempt.
func NewIssuer(store Store, maxAttempts int, logger *slog.Logger) *Issuer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Issuer{store: store, maxAttempts: maxAttempts, logger: logger}
}

// Issue computes the next number for the partition and invokes persist
// with it. persist must return ErrConflict (possibly wrapped) when the
// number collided; any other error aborts immediately.
func (i *Issuer) Issue(ctx context.Context, tenantID int64, family Family, year int, persist func(ctx context.Context, number string) error) (string, error) {
	var lastErr error
	for attempt := 0; attempt < i.maxAttempts; attempt++ {
		existing, err := i.store.ListNumbers(ctx, tenantID, family, year)
		if err != nil {
			return "", fmt.Errorf("numbering: list issued numbers: %w", err)
		}

		number := Next(family, year, existing)
		err = persist(ctx, number)
		if err == nil {
			return number, nil
		}
		if !errors.Is(err, ErrConflict) {
			return "", err
		}

		lastErr = err
		if i.OnConflict != nil {
			i.OnConflict(family)
		}
		if i.logger != nil {
			i.logger.Warn("document number conflict, retrying",
				slog.String("number", number),
				slog.Int("attempt", attempt+1),
			)
		}
	}
	return "", fmt.Errorf("numbering: exhausted %d attempts: %w", i.maxAttempts, lastErr)
}

// IsUniqueViolation reports whether err is a PostgreSQL unique
// constraint violation. Repositories use it to map insert failures on
// the doc number index to ErrConflict.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
