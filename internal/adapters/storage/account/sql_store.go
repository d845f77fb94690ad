package account

import (
	"context"
	"database/sql"
	"errors"

	"carimport/internal/adapters/storage"
	domain "carimport/internal/domain/account"
)

const selectColumns = "SELECT id, email, name, phone, password_hash, role, status, created_at, failed_logins, locked_until FROM account"

// SQLStore implements Store over storage.SQLDB.
type SQLStore struct {
	db storage.SQLDB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore creates a new account store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

// GetByID retrieves an Account by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error wrapping storage.ErrNotFound
func (s *SQLStore) GetByID(ctx context.Context, id string) (domain.Account, error) {
	entity, err := scanAccount(s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, storage.NotFound("account", id)
	}
	return entity, err
}

// GetByEmail retrieves an Account by email. The lookup is case-insensitive.
// PRE: email is non-empty
// POST: Returns the entity or an error wrapping storage.ErrNotFound
func (s *SQLStore) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	email = domain.NormalizeEmail(email)
	entity, err := scanAccount(s.db.QueryRowContext(ctx, selectColumns+" WHERE email = ?", email).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, storage.NotFound("account", email)
	}
	return entity, err
}

// Save persists an Account (insert or update).
// PRE: entity has been validated
// POST: Entity is persisted; created_at is never overwritten
func (s *SQLStore) Save(ctx context.Context, entity domain.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO account (id, email, name, phone, password_hash, role, status, created_at, failed_logins, locked_until)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   email=excluded.email, name=excluded.name, phone=excluded.phone,
		   password_hash=excluded.password_hash, role=excluded.role, status=excluded.status,
		   failed_logins=excluded.failed_logins, locked_until=excluded.locked_until`,
		entity.ID,
		domain.NormalizeEmail(entity.Email),
		entity.Name,
		entity.Phone,
		entity.PasswordHash,
		entity.Role,
		entity.Status,
		storage.FormatTime(entity.CreatedAt),
		entity.FailedLogins,
		storage.FormatTime(entity.LockedUntil),
	)
	return err
}

// Delete removes an Account.
// PRE: id is non-empty
// POST: Entity with given id is removed
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM account WHERE id = ?", id)
	return err
}

// List retrieves Accounts matching the filter.
// PRE: filter has valid parameters
// POST: Returns matching entities, newest first unless Sort says otherwise
func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]domain.Account, error) {
	where, args := listWhereClause(filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := selectColumns + where + sortClause(filter) + " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Account
	for rows.Next() {
		entity, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// Count returns the number of accounts matching the filter.
// PRE: none
// POST: Returns count >= 0
func (s *SQLStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	where, args := listWhereClause(filter)
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM account"+where, args...).Scan(&count)
	return count, err
}

func listWhereClause(filter ListFilter) (string, []any) {
	where := " WHERE 1=1"
	var args []any
	if filter.Role != "" {
		where += " AND role = ?"
		args = append(args, filter.Role)
	}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		where += ` AND (LOWER(email) LIKE ? ESCAPE '\' OR LOWER(name) LIKE ? ESCAPE '\')`
		term := storage.LikePattern(filter.Search)
		args = append(args, term, term)
	}
	return where, args
}

// sortClause returns a safe ORDER BY clause. Only allowed columns are accepted.
func sortClause(filter ListFilter) string {
	allowed := map[string]string{
		"email": "email", "name": "name",
		"role": "role", "created_at": "created_at",
	}
	col, ok := allowed[filter.Sort]
	if !ok {
		return " ORDER BY created_at DESC, id"
	}
	dir := "ASC"
	if filter.Dir == "desc" {
		dir = "DESC"
	}
	return " ORDER BY " + col + " " + dir + ", id"
}

func scanAccount(scan func(dest ...any) error) (domain.Account, error) {
	var entity domain.Account
	var createdAt, lockedUntil string
	err := scan(
		&entity.ID,
		&entity.Email,
		&entity.Name,
		&entity.Phone,
		&entity.PasswordHash,
		&entity.Role,
		&entity.Status,
		&createdAt,
		&entity.FailedLogins,
		&lockedUntil,
	)
	if err != nil {
		return domain.Account{}, err
	}
	entity.CreatedAt = storage.ParseTime(createdAt)
	entity.LockedUntil = storage.ParseTime(lockedUntil)
	return entity, nil
}
