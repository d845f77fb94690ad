package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status constants for outbox entry lifecycle.
const (
	StatusPending   = "pending"
	StatusRetrying  = "retrying"
	StatusDone      = "done"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
)

// Action types handled by the worker.
const (
	ActionTypeEmail       = "email"
	ActionTypeDocumentOCR = "document_ocr"
)

// DefaultMaxAttempts applies when an entry is created without a limit.
const DefaultMaxAttempts = 5

// Domain errors.
var (
	ErrEmptyActionType = errors.New("action type is required")
	ErrEmptyPayload    = errors.New("payload is required")
	ErrMissingCreated  = errors.New("created_at must be set")
	ErrNotRetryable    = errors.New("entry cannot be retried in its current state")
	ErrAlreadyTerminal = errors.New("entry is already done or abandoned")
)

// Entry is one side effect waiting to be delivered to an external service.
type Entry struct {
	ID              string
	ActionType      string
	Payload         string // JSON
	Status          string
	Attempts        int
	MaxAttempts     int
	LastAttemptedAt time.Time
	NextAttemptAt   time.Time // zero means due now
	CreatedAt       time.Time
	ExternalID      string // provider message ID, OCR provider name
	ErrorMessage    string
}

// NewEntry marshals payload and returns a pending entry.
// PRE: payload is JSON-encodable
// POST: Entry is pending with DefaultMaxAttempts
func NewEntry(id, actionType string, payload any, now time.Time) (Entry, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal %s payload: %w", actionType, err)
	}
	e := Entry{
		ID:          id,
		ActionType:  actionType,
		Payload:     string(data),
		Status:      StatusPending,
		MaxAttempts: DefaultMaxAttempts,
		CreatedAt:   now,
	}
	return e, e.Validate()
}

// Validate checks that the Entry has valid data.
// PRE: Entry struct is populated
// POST: Returns nil if valid; MaxAttempts defaulted when unset
func (e *Entry) Validate() error {
	if e.ActionType == "" {
		return ErrEmptyActionType
	}
	if e.Payload == "" || e.Payload == "null" {
		return ErrEmptyPayload
	}
	if e.CreatedAt.IsZero() {
		return ErrMissingCreated
	}
	if e.MaxAttempts <= 0 {
		e.MaxAttempts = DefaultMaxAttempts
	}
	return nil
}

// Decode unmarshals the payload into v.
func (e *Entry) Decode(v any) error {
	if err := json.Unmarshal([]byte(e.Payload), v); err != nil {
		return fmt.Errorf("decode %s payload %s: %w", e.ActionType, e.ID, err)
	}
	return nil
}

// CanRetry reports whether the worker may attempt the entry again.
func (e *Entry) CanRetry() bool {
	return (e.Status == StatusPending || e.Status == StatusRetrying || e.Status == StatusFailed) &&
		e.Attempts < e.MaxAttempts
}

// IsTerminal reports whether the entry will never run again without admin action.
func (e *Entry) IsTerminal() bool {
	switch e.Status {
	case StatusDone, StatusAbandoned:
		return true
	case StatusFailed:
		return e.Attempts >= e.MaxAttempts
	}
	return false
}

// IsDue reports whether enough backoff time has passed since the last attempt.
func (e *Entry) IsDue(now time.Time, base, maxDelay time.Duration) bool {
	if e.Attempts == 0 || e.LastAttemptedAt.IsZero() {
		return true
	}
	return !now.Before(e.LastAttemptedAt.Add(e.NextRetryDelay(base, maxDelay)))
}

// ScheduleNext sets NextAttemptAt from the backoff after the latest attempt.
// POST: NextAttemptAt = LastAttemptedAt + NextRetryDelay
func (e *Entry) ScheduleNext(base, maxDelay time.Duration) {
	e.NextAttemptAt = e.LastAttemptedAt.Add(e.NextRetryDelay(base, maxDelay))
}

// MarkAttempt records an attempt.
// POST: Attempts incremented, LastAttemptedAt = now, status retrying
func (e *Entry) MarkAttempt(now time.Time) {
	e.Attempts++
	e.LastAttemptedAt = now
	e.Status = StatusRetrying
}

// MarkSuccess marks the entry as delivered.
// POST: Status done, error cleared
func (e *Entry) MarkSuccess(externalID string) {
	e.Status = StatusDone
	e.ExternalID = externalID
	e.ErrorMessage = ""
}

// MarkFailed records the failure; the entry stays retrying until attempts run out.
// POST: ErrorMessage set; Status failed when Attempts >= MaxAttempts
func (e *Entry) MarkFailed(err error) {
	e.ErrorMessage = err.Error()
	if e.Attempts >= e.MaxAttempts {
		e.Status = StatusFailed
	}
}

// MarkAbandoned stops further delivery attempts.
func (e *Entry) MarkAbandoned() error {
	if e.Status == StatusDone || e.Status == StatusAbandoned {
		return ErrAlreadyTerminal
	}
	e.Status = StatusAbandoned
	return nil
}

// ResetForRetry gives an exhausted entry a fresh attempt budget.
// PRE: Entry is failed
// POST: Status pending, Attempts zero, due now
func (e *Entry) ResetForRetry() error {
	if e.Status != StatusFailed && e.Status != StatusRetrying {
		return ErrNotRetryable
	}
	e.Status = StatusPending
	e.Attempts = 0
	e.NextAttemptAt = time.Time{}
	e.ErrorMessage = ""
	return nil
}

// NextRetryDelay is 2^attempts * base, capped at maxDelay.
func (e *Entry) NextRetryDelay(base, maxDelay time.Duration) time.Duration {
	if e.Attempts >= 30 {
		return maxDelay
	}
	delay := base * (1 << e.Attempts)
	if delay > maxDelay || delay <= 0 {
		return maxDelay
	}
	return delay
}
