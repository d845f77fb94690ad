package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"carimport/internal/domain/audit"
	domainOutbox "carimport/internal/domain/outbox"
)

// ErrForbidden is returned when the caller may not act on a resource.
var ErrForbidden = errors.New("not allowed")

// AuditRecorder persists audit events.
type AuditRecorder interface {
	Save(ctx context.Context, event audit.Event) error
}

// OutboxWriter queues side effects for the outbox worker.
type OutboxWriter interface {
	Save(ctx context.Context, e domainOutbox.Entry) error
}

func nowFrom(now func() time.Time) time.Time {
	if now == nil {
		return time.Now().UTC()
	}
	return now().UTC()
}

func newID(gen func() string) string {
	if gen == nil {
		return uuid.NewString()
	}
	return gen()
}

// recordAudit saves an audit event. A failure is logged, the caller's change stands.
func recordAudit(ctx context.Context, store AuditRecorder, event audit.Event) {
	if store == nil {
		return
	}
	if err := store.Save(ctx, event); err != nil {
		slog.Error("audit_save_failed", "category", event.Category, "action", event.Action,
			"resource_id", event.ResourceID, "error", err)
	}
}
