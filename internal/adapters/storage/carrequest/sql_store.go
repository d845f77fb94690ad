package carrequest

import (
	"context"
	"database/sql"
	"errors"

	"carimport/internal/adapters/storage"
	domain "carimport/internal/domain/carrequest"
)

const selectColumns = `SELECT id, reference, account_id, contact_name, contact_email, contact_phone, country,
	make, model, year_from, year_to, budget_cents, fuel, transmission, max_mileage_km, color, notes,
	status, admin_notes, assigned_to, created_at, updated_at FROM car_request`

// SQLStore implements Store over storage.SQLDB.
type SQLStore struct {
	db storage.SQLDB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore creates a new car request store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

// GetByID retrieves a request by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error wrapping storage.ErrNotFound
func (s *SQLStore) GetByID(ctx context.Context, id string) (domain.CarRequest, error) {
	entity, err := scanRequest(s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CarRequest{}, storage.NotFound("car request", id)
	}
	return entity, err
}

// GetByReference retrieves a request by its public reference.
func (s *SQLStore) GetByReference(ctx context.Context, reference string) (domain.CarRequest, error) {
	entity, err := scanRequest(s.db.QueryRowContext(ctx, selectColumns+" WHERE reference = ?", reference).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CarRequest{}, storage.NotFound("car request", reference)
	}
	return entity, err
}

// Save persists a request (insert or update).
// PRE: entity has been validated
// POST: Entity is persisted; reference and created_at never change on update;
// an anonymous request may be linked to an account once, never relinked
func (s *SQLStore) Save(ctx context.Context, r domain.CarRequest) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO car_request (id, reference, account_id, contact_name, contact_email, contact_phone, country,
			make, model, year_from, year_to, budget_cents, fuel, transmission, max_mileage_km, color, notes,
			status, admin_notes, assigned_to, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   account_id=CASE WHEN car_request.account_id = '' THEN excluded.account_id ELSE car_request.account_id END,
		   contact_name=excluded.contact_name, contact_email=excluded.contact_email,
		   contact_phone=excluded.contact_phone, country=excluded.country,
		   make=excluded.make, model=excluded.model, year_from=excluded.year_from, year_to=excluded.year_to,
		   budget_cents=excluded.budget_cents, fuel=excluded.fuel, transmission=excluded.transmission,
		   max_mileage_km=excluded.max_mileage_km, color=excluded.color, notes=excluded.notes,
		   status=excluded.status, admin_notes=excluded.admin_notes, assigned_to=excluded.assigned_to,
		   updated_at=excluded.updated_at`,
		r.ID, r.Reference, r.AccountID, r.ContactName, r.ContactEmail, r.ContactPhone, r.Country,
		r.Make, r.Model, r.YearFrom, r.YearTo, r.BudgetCents, r.Fuel, r.Transmission, r.MaxMileageKm,
		r.Color, r.Notes, r.Status, r.AdminNotes, r.AssignedTo,
		storage.FormatTime(r.CreatedAt), storage.FormatTime(r.UpdatedAt))
	return err
}

// List retrieves requests matching the filter.
// PRE: filter has valid parameters
// POST: Returns matching entities, newest first unless Sort says otherwise
func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]domain.CarRequest, error) {
	where, args := listWhereClause(filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, selectColumns+where+sortClause(filter)+" LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.CarRequest
	for rows.Next() {
		r, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Count returns the number of requests matching the filter.
func (s *SQLStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	where, args := listWhereClause(filter)
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM car_request"+where, args...).Scan(&n)
	return n, err
}

// CountByStatus returns request totals keyed by status. Statuses with no
// requests are absent.
func (s *SQLStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	return storage.CountGrouped(ctx, s.db, "SELECT status, COUNT(*) FROM car_request GROUP BY status")
}

// CountByMonth returns request totals keyed by "YYYY-MM" for requests created
// at or after since (a storage timestamp).
func (s *SQLStore) CountByMonth(ctx context.Context, since string) (map[string]int, error) {
	return storage.CountGrouped(ctx, s.db,
		"SELECT SUBSTR(created_at, 1, 7), COUNT(*) FROM car_request WHERE created_at >= ? GROUP BY SUBSTR(created_at, 1, 7)",
		since)
}

func listWhereClause(filter ListFilter) (string, []any) {
	where := " WHERE 1=1"
	var args []any
	if filter.AccountID != "" {
		where += " AND account_id = ?"
		args = append(args, filter.AccountID)
	}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		where += ` AND (LOWER(reference) LIKE ? ESCAPE '\' OR LOWER(contact_name) LIKE ? ESCAPE '\'
			OR LOWER(contact_email) LIKE ? ESCAPE '\' OR LOWER(make) LIKE ? ESCAPE '\' OR LOWER(model) LIKE ? ESCAPE '\')`
		term := storage.LikePattern(filter.Search)
		args = append(args, term, term, term, term, term)
	}
	return where, args
}

// sortClause returns a safe ORDER BY clause. Only allowed columns are accepted.
func sortClause(filter ListFilter) string {
	allowed := map[string]string{
		"created_at": "created_at", "budget": "budget_cents",
		"status": "status", "make": "make",
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

func scanRequest(scan func(dest ...any) error) (domain.CarRequest, error) {
	var r domain.CarRequest
	var createdAt, updatedAt string
	err := scan(&r.ID, &r.Reference, &r.AccountID, &r.ContactName, &r.ContactEmail, &r.ContactPhone, &r.Country,
		&r.Make, &r.Model, &r.YearFrom, &r.YearTo, &r.BudgetCents, &r.Fuel, &r.Transmission, &r.MaxMileageKm,
		&r.Color, &r.Notes, &r.Status, &r.AdminNotes, &r.AssignedTo, &createdAt, &updatedAt)
	if err != nil {
		return domain.CarRequest{}, err
	}
	r.CreatedAt = storage.ParseTime(createdAt)
	r.UpdatedAt = storage.ParseTime(updatedAt)
	return r, nil
}
