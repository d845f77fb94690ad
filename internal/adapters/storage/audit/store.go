package audit

import (
	"context"
	"time"

	domain "carimport/internal/domain/audit"
)

// Store defines the interface for audit event persistence.
type Store interface {
	// Save persists an audit event.
	// PRE: event carries an ID and timestamp
	// POST: Event is persisted
	Save(ctx context.Context, event domain.Event) error

	// List returns audit events with optional filtering.
	// PRE: limit > 0
	// POST: Returns events ordered by timestamp desc
	List(ctx context.Context, filter Filter, limit int) ([]domain.Event, error)

	// GetByID retrieves a specific audit event.
	GetByID(ctx context.Context, id string) (domain.Event, error)
}

// Filter defines query parameters for listing audit events. Zero values match everything.
type Filter struct {
	Category     domain.Category
	Action       domain.Action
	Severity     domain.Severity
	ActorID      string
	ResourceType string
	ResourceID   string
	From         time.Time
	To           time.Time
}
