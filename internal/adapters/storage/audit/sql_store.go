package audit

import (
	"context"
	"database/sql"
	"errors"

	"carimport/internal/adapters/storage"
	domain "carimport/internal/domain/audit"
)

const selectColumns = `SELECT id, timestamp, category, action, severity, actor_id, actor_email, actor_role,
	resource_id, resource_type, description, ip_address, user_agent, metadata FROM audit_event`

// SQLStore implements the audit Store over storage.SQLDB.
type SQLStore struct {
	db storage.SQLDB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore creates a new audit event store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

// Save persists an audit event. Events are append-only.
func (s *SQLStore) Save(ctx context.Context, e domain.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_event (id, timestamp, category, action, severity, actor_id, actor_email, actor_role,
			resource_id, resource_type, description, ip_address, user_agent, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, storage.FormatTime(e.Timestamp), string(e.Category), string(e.Action), string(e.Severity),
		e.ActorID, e.ActorEmail, e.ActorRole, e.ResourceID, e.ResourceType, e.Description,
		e.IPAddress, e.UserAgent, e.Metadata)
	return err
}

// List returns audit events with optional filtering, newest first.
func (s *SQLStore) List(ctx context.Context, filter Filter, limit int) ([]domain.Event, error) {
	query := selectColumns + " WHERE 1=1"
	var args []any
	add := func(clause string, v any) {
		query += clause
		args = append(args, v)
	}
	if filter.Category != "" {
		add(" AND category = ?", string(filter.Category))
	}
	if filter.Action != "" {
		add(" AND action = ?", string(filter.Action))
	}
	if filter.Severity != "" {
		add(" AND severity = ?", string(filter.Severity))
	}
	if filter.ActorID != "" {
		add(" AND actor_id = ?", filter.ActorID)
	}
	if filter.ResourceType != "" {
		add(" AND resource_type = ?", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		add(" AND resource_id = ?", filter.ResourceID)
	}
	if !filter.From.IsZero() {
		add(" AND timestamp >= ?", storage.FormatTime(filter.From))
	}
	if !filter.To.IsZero() {
		add(" AND timestamp <= ?", storage.FormatTime(filter.To))
	}
	if limit <= 0 {
		limit = 100
	}
	add(" ORDER BY timestamp DESC, id LIMIT ?", limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetByID retrieves a specific audit event.
func (s *SQLStore) GetByID(ctx context.Context, id string) (domain.Event, error) {
	e, err := scanEvent(s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Event{}, storage.NotFound("audit event", id)
	}
	return e, err
}

func scanEvent(scan func(dest ...any) error) (domain.Event, error) {
	var e domain.Event
	var timestamp string
	err := scan(&e.ID, &timestamp, &e.Category, &e.Action, &e.Severity, &e.ActorID, &e.ActorEmail, &e.ActorRole,
		&e.ResourceID, &e.ResourceType, &e.Description, &e.IPAddress, &e.UserAgent, &e.Metadata)
	if err != nil {
		return domain.Event{}, err
	}
	e.Timestamp = storage.ParseTime(timestamp)
	return e, nil
}
