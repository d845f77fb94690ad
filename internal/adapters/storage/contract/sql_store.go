package contract

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"carimport/internal/adapters/storage"
	domain "carimport/internal/domain/contract"
)

const selectColumns = `SELECT id, number, request_id, account_id, vehicle_description, vin, price_cents, deposit_cents,
	status, created_at, sent_at, signed_at, cancelled_at FROM contract`

// SQLStore implements Store over storage.SQLDB.
type SQLStore struct {
	db storage.SQLDB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore creates a new contract store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

// GetByID retrieves a contract by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error wrapping storage.ErrNotFound
func (s *SQLStore) GetByID(ctx context.Context, id string) (domain.Contract, error) {
	c, err := scanContract(s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Contract{}, storage.NotFound("contract", id)
	}
	return c, err
}

// Save persists a contract (insert or update). Number, request and account
// are fixed once created.
// PRE: entity has been validated and carries a number from NextNumber
// POST: Entity is persisted
func (s *SQLStore) Save(ctx context.Context, c domain.Contract) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contract (id, number, request_id, account_id, vehicle_description, vin, price_cents, deposit_cents,
			status, created_at, sent_at, signed_at, cancelled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   vehicle_description=excluded.vehicle_description, vin=excluded.vin,
		   price_cents=excluded.price_cents, deposit_cents=excluded.deposit_cents, status=excluded.status,
		   sent_at=excluded.sent_at, signed_at=excluded.signed_at, cancelled_at=excluded.cancelled_at`,
		c.ID, c.Number, c.RequestID, c.AccountID, c.VehicleDescription, c.VIN, c.PriceCents, c.DepositCents,
		c.Status, storage.FormatTime(c.CreatedAt), storage.FormatTime(c.SentAt),
		storage.FormatTime(c.SignedAt), storage.FormatTime(c.CancelledAt))
	return err
}

// List retrieves contracts matching the filter, newest first.
func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]domain.Contract, error) {
	where, args := listWhereClause(filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, selectColumns+where+" ORDER BY created_at DESC, id LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Contract
	for rows.Next() {
		c, err := scanContract(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// Count returns the number of contracts matching the filter.
func (s *SQLStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	where, args := listWhereClause(filter)
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contract"+where, args...).Scan(&n)
	return n, err
}

// CountByStatus returns contract totals keyed by status.
func (s *SQLStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	return storage.CountGrouped(ctx, s.db, "SELECT status, COUNT(*) FROM contract GROUP BY status")
}

// NextNumber allocates the next contract number for year.
// POST: Numbers are unique and increase by one within a year, starting at 1
func (s *SQLStore) NextNumber(ctx context.Context, year int) (string, error) {
	seq, err := storage.NextSequence(ctx, s.db, fmt.Sprintf("contract-%d", year))
	if err != nil {
		return "", fmt.Errorf("allocate contract number: %w", err)
	}
	return domain.FormatNumber(year, seq), nil
}

func listWhereClause(filter ListFilter) (string, []any) {
	where := " WHERE 1=1"
	var args []any
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.AccountID != "" {
		where += " AND account_id = ?"
		args = append(args, filter.AccountID)
	}
	if filter.RequestID != "" {
		where += " AND request_id = ?"
		args = append(args, filter.RequestID)
	}
	return where, args
}

func scanContract(scan func(dest ...any) error) (domain.Contract, error) {
	var c domain.Contract
	var createdAt, sentAt, signedAt, cancelledAt string
	err := scan(&c.ID, &c.Number, &c.RequestID, &c.AccountID, &c.VehicleDescription, &c.VIN, &c.PriceCents,
		&c.DepositCents, &c.Status, &createdAt, &sentAt, &signedAt, &cancelledAt)
	if err != nil {
		return domain.Contract{}, err
	}
	c.CreatedAt = storage.ParseTime(createdAt)
	c.SentAt = storage.ParseTime(sentAt)
	c.SignedAt = storage.ParseTime(signedAt)
	c.CancelledAt = storage.ParseTime(cancelledAt)
	return c, nil
}
