package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	outboxStore "carimport/internal/adapters/storage/outbox"
	"carimport/internal/domain/audit"
	domain "carimport/internal/domain/outbox"
)

// ErrActionFailed is returned when a manual retry ran and the action failed again.
var ErrActionFailed = errors.New("outbox action failed")

// ActionExecutor performs one kind of outbox action.
type ActionExecutor interface {
	// Execute runs the external action for the entry.
	// Returns an external reference (provider message ID, OCR provider) and any error.
	Execute(ctx context.Context, entry domain.Entry) (string, error)
}

// ActionExecutorFunc adapts a function to ActionExecutor.
type ActionExecutorFunc func(ctx context.Context, entry domain.Entry) (string, error)

// Execute calls f.
func (f ActionExecutorFunc) Execute(ctx context.Context, entry domain.Entry) (string, error) {
	return f(ctx, entry)
}

// Outbox backoff defaults.
const (
	DefaultOutboxBaseDelay = 30 * time.Second
	DefaultOutboxMaxDelay  = time.Hour
	DefaultOutboxBatchSize = 20
)

// OutboxProcessor delivers queued side effects with exponential backoff.
type OutboxProcessor struct {
	store     outboxStore.Store
	executors map[string]ActionExecutor
	audit     AuditRecorder
	now       func() time.Time
	baseDelay time.Duration
	maxDelay  time.Duration
	batchSize int
}

// OutboxOption configures an OutboxProcessor.
type OutboxOption func(*OutboxProcessor)

// WithOutboxClock overrides the processor clock.
func WithOutboxClock(now func() time.Time) OutboxOption {
	return func(p *OutboxProcessor) { p.now = now }
}

// WithOutboxBackoff sets the base and maximum retry delay.
func WithOutboxBackoff(base, maxDelay time.Duration) OutboxOption {
	return func(p *OutboxProcessor) {
		p.baseDelay = base
		p.maxDelay = maxDelay
	}
}

// WithOutboxAudit records admin retry and abandon actions.
func WithOutboxAudit(store AuditRecorder) OutboxOption {
	return func(p *OutboxProcessor) { p.audit = store }
}

// NewOutboxProcessor creates a processor that dispatches entries by action type.
func NewOutboxProcessor(store outboxStore.Store, executors map[string]ActionExecutor, opts ...OutboxOption) *OutboxProcessor {
	p := &OutboxProcessor{
		store:     store,
		executors: executors,
		now:       time.Now,
		baseDelay: DefaultOutboxBaseDelay,
		maxDelay:  DefaultOutboxMaxDelay,
		batchSize: DefaultOutboxBatchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessResult summarises one pass over the outbox.
type ProcessResult struct {
	Attempted int
	Succeeded int
	Failed    int
	Skipped   int // listed but still backing off
}

// ProcessPending runs every due pending or retrying entry once.
// PRE: Context is valid
// POST: Attempted entries are saved as done, retrying or failed
func (p *OutboxProcessor) ProcessPending(ctx context.Context) (ProcessResult, error) {
	var res ProcessResult
	entries, err := p.store.ListDue(ctx, p.now().UTC(), p.batchSize)
	if err != nil {
		return res, fmt.Errorf("list pending outbox entries: %w", err)
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if !entry.IsDue(p.now(), p.baseDelay, p.maxDelay) {
			res.Skipped++
			continue
		}
		res.Attempted++
		ok, err := p.run(ctx, entry)
		if err != nil {
			slog.Error("outbox_save_failed", "entry_id", entry.ID, "error", err)
		}
		if ok {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}

	if res.Attempted > 0 {
		slog.Info("outbox_pass_complete", "attempted", res.Attempted, "succeeded", res.Succeeded,
			"failed", res.Failed, "skipped", res.Skipped)
	}
	return res, nil
}

// run executes one entry and saves the outcome. ok reports delivery success.
func (p *OutboxProcessor) run(ctx context.Context, entry domain.Entry) (ok bool, err error) {
	entry.MarkAttempt(p.now().UTC())

	executor, found := p.executors[entry.ActionType]
	if !found {
		// Nothing can ever deliver it.
		entry.Attempts = entry.MaxAttempts
		entry.MarkFailed(fmt.Errorf("no executor registered for action type %q", entry.ActionType))
		slog.Error("outbox_no_executor", "entry_id", entry.ID, "action_type", entry.ActionType)
		return false, p.store.Save(ctx, entry)
	}

	externalID, execErr := executor.Execute(ctx, entry)
	if execErr != nil {
		entry.MarkFailed(execErr)
		entry.ScheduleNext(p.baseDelay, p.maxDelay)
		slog.Warn("outbox_action_failed", "entry_id", entry.ID, "action_type", entry.ActionType,
			"attempt", entry.Attempts, "max_attempts", entry.MaxAttempts, "error", execErr.Error())
	} else {
		entry.MarkSuccess(externalID)
		slog.Info("outbox_action_succeeded", "entry_id", entry.ID, "action_type", entry.ActionType,
			"external_id", externalID)
	}
	return execErr == nil, p.store.Save(ctx, entry)
}

// RetryEntry runs an entry immediately on admin request. Exhausted entries get
// a fresh attempt budget first.
// PRE: entryID names an entry that is not done or abandoned
// POST: Entry is attempted once and saved; the execution error is returned
func (p *OutboxProcessor) RetryEntry(ctx context.Context, entryID string, actor audit.Actor) error {
	entry, err := p.store.GetByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("get outbox entry: %w", err)
	}
	if entry.Status == domain.StatusDone || entry.Status == domain.StatusAbandoned {
		return domain.ErrAlreadyTerminal
	}
	if entry.Attempts >= entry.MaxAttempts {
		if err := entry.ResetForRetry(); err != nil {
			return err
		}
	}

	ok, saveErr := p.run(ctx, entry)
	recordAudit(ctx, p.audit, audit.NewEvent(actor, audit.CategorySystem, audit.ActionRetry).
		WithResource("outbox", entryID).
		WithDescription("manual outbox retry of " + entry.ActionType))
	if saveErr != nil {
		return fmt.Errorf("save outbox entry: %w", saveErr)
	}
	if !ok {
		updated, err := p.store.GetByID(ctx, entryID)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrActionFailed, updated.ErrorMessage)
	}
	return nil
}

// AbandonEntry stops further delivery attempts for an entry.
// PRE: entryID is non-empty
// POST: Entry status set to abandoned
func (p *OutboxProcessor) AbandonEntry(ctx context.Context, entryID string, actor audit.Actor) error {
	entry, err := p.store.GetByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("get outbox entry: %w", err)
	}
	if err := entry.MarkAbandoned(); err != nil {
		return err
	}
	if err := p.store.Save(ctx, entry); err != nil {
		return err
	}
	recordAudit(ctx, p.audit, audit.NewEvent(actor, audit.CategorySystem, audit.ActionStatusChange).
		WithSeverity(audit.SeverityWarning).
		WithResource("outbox", entryID).
		WithDescription("outbox entry abandoned"))
	slog.Info("outbox_entry_abandoned", "entry_id", entryID, "actor_id", actor.ID)
	return nil
}
