package outbox

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"carimport/internal/adapters/storage"
	domain "carimport/internal/domain/outbox"
)

const selectColumns = `SELECT id, action_type, payload, status, attempts, max_attempts, last_attempted_at,
	next_attempt_at, created_at, external_id, error_message FROM outbox`

// SQLStore implements the outbox Store over storage.SQLDB.
type SQLStore struct {
	db storage.SQLDB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore creates a new outbox store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

// GetByID retrieves an outbox entry by its ID.
func (s *SQLStore) GetByID(ctx context.Context, id string) (domain.Entry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Entry{}, storage.NotFound("outbox entry", id)
	}
	return e, err
}

// Save persists an outbox entry (insert or update).
func (s *SQLStore) Save(ctx context.Context, e domain.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outbox (id, action_type, payload, status, attempts, max_attempts, last_attempted_at,
			next_attempt_at, created_at, external_id, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   action_type=excluded.action_type, payload=excluded.payload, status=excluded.status,
		   attempts=excluded.attempts, max_attempts=excluded.max_attempts,
		   last_attempted_at=excluded.last_attempted_at, next_attempt_at=excluded.next_attempt_at,
		   external_id=excluded.external_id, error_message=excluded.error_message`,
		e.ID, e.ActionType, e.Payload, e.Status, e.Attempts, e.MaxAttempts,
		storage.FormatTime(e.LastAttemptedAt), storage.FormatTime(e.NextAttemptAt), storage.FormatTime(e.CreatedAt),
		e.ExternalID, e.ErrorMessage)
	return err
}

// ListDue returns pending or retrying entries whose next attempt is not after now.
// Entries that are still backing off never fill the batch.
func (s *SQLStore) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Entry, error) {
	return s.query(ctx, selectColumns+` WHERE status IN (?, ?) AND next_attempt_at <= ?
		ORDER BY next_attempt_at ASC, created_at ASC, id LIMIT ?`,
		domain.StatusPending, domain.StatusRetrying, storage.FormatTime(now), limit)
}

// List returns entries for the admin console, newest first.
func (s *SQLStore) List(ctx context.Context, status, actionType string, limit int) ([]domain.Entry, error) {
	query := selectColumns + " WHERE 1=1"
	var args []any
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	if actionType != "" {
		query += " AND action_type = ?"
		args = append(args, actionType)
	}
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, limit)
	return s.query(ctx, query, args...)
}

// CountByStatus returns entry totals keyed by status.
func (s *SQLStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	return storage.CountGrouped(ctx, s.db, "SELECT status, COUNT(*) FROM outbox GROUP BY status")
}

// Delete removes an outbox entry.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM outbox WHERE id = ?", id)
	return err
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) ([]domain.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(scan func(dest ...any) error) (domain.Entry, error) {
	var e domain.Entry
	var createdAt, lastAttemptedAt, nextAttemptAt string
	err := scan(&e.ID, &e.ActionType, &e.Payload, &e.Status, &e.Attempts, &e.MaxAttempts,
		&lastAttemptedAt, &nextAttemptAt, &createdAt, &e.ExternalID, &e.ErrorMessage)
	if err != nil {
		return domain.Entry{}, err
	}
	e.CreatedAt = storage.ParseTime(createdAt)
	e.LastAttemptedAt = storage.ParseTime(lastAttemptedAt)
	e.NextAttemptAt = storage.ParseTime(nextAttemptAt)
	return e, nil
}
