package outbox

import (
	"context"
	"time"

	domain "carimport/internal/domain/outbox"
)

// Store defines the interface for outbox entry persistence.
type Store interface {
	// GetByID retrieves an outbox entry by its ID.
	// PRE: id is non-empty
	// POST: Returns the entry or an error wrapping storage.ErrNotFound
	GetByID(ctx context.Context, id string) (domain.Entry, error)

	// Save persists an outbox entry.
	// PRE: entry has been validated
	// POST: Entry is persisted (insert or update)
	Save(ctx context.Context, e domain.Entry) error

	// ListDue returns pending or retrying entries due at now.
	// PRE: limit > 0
	// POST: Returns up to limit entries, earliest due first
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Entry, error)

	// List returns entries for the admin console, newest first.
	// An empty status lists every entry.
	List(ctx context.Context, status, actionType string, limit int) ([]domain.Entry, error)

	// CountByStatus returns entry totals keyed by status.
	CountByStatus(ctx context.Context) (map[string]int, error)

	// Delete removes an outbox entry.
	// PRE: the entry is terminal
	Delete(ctx context.Context, id string) error
}
