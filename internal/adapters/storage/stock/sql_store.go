package stock

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"carimport/internal/adapters/storage"
	domain "carimport/internal/domain/stock"
)

const selectColumns = `SELECT id, make, model, year, mileage_km, fuel, transmission, price_cents, color, description,
	images, status, created_at, updated_at FROM stock_car`

// SQLStore implements Store over storage.SQLDB. Image keys are kept as a JSON
// array in a TEXT column, in display order.
type SQLStore struct {
	db storage.SQLDB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore creates a new stock store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

// GetByID retrieves a car by its ID.
func (s *SQLStore) GetByID(ctx context.Context, id string) (domain.Car, error) {
	c, err := scanCar(s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Car{}, storage.NotFound("stock car", id)
	}
	return c, err
}

// Save persists a car (insert or update).
// PRE: entity has been validated
// POST: Entity is persisted
func (s *SQLStore) Save(ctx context.Context, c domain.Car) error {
	images := c.Images
	if images == nil {
		images = []string{}
	}
	data, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("marshal stock images: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO stock_car (id, make, model, year, mileage_km, fuel, transmission, price_cents, color, description,
			images, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   make=excluded.make, model=excluded.model, year=excluded.year, mileage_km=excluded.mileage_km,
		   fuel=excluded.fuel, transmission=excluded.transmission, price_cents=excluded.price_cents,
		   color=excluded.color, description=excluded.description, images=excluded.images,
		   status=excluded.status, updated_at=excluded.updated_at`,
		c.ID, c.Make, c.Model, c.Year, c.MileageKm, c.Fuel, c.Transmission, c.PriceCents, c.Color, c.Description,
		string(data), c.Status, storage.FormatTime(c.CreatedAt), storage.FormatTime(c.UpdatedAt))
	return err
}

// Delete removes a car. Its images are removed by the caller.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM stock_car WHERE id = ?", id)
	return err
}

// List returns cars matching the filter, newest first unless Sort says otherwise.
func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]domain.Car, error) {
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

	var results []domain.Car
	for rows.Next() {
		c, err := scanCar(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// Count returns the number of cars matching the filter.
func (s *SQLStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	where, args := listWhereClause(filter)
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM stock_car"+where, args...).Scan(&n)
	return n, err
}

// CountByStatus returns stock totals keyed by status.
func (s *SQLStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	return storage.CountGrouped(ctx, s.db, "SELECT status, COUNT(*) FROM stock_car GROUP BY status")
}

func listWhereClause(filter ListFilter) (string, []any) {
	where := " WHERE 1=1"
	var args []any
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Make != "" {
		where += " AND LOWER(make) = ?"
		args = append(args, strings.ToLower(strings.TrimSpace(filter.Make)))
	}
	if filter.Fuel != "" {
		where += " AND fuel = ?"
		args = append(args, filter.Fuel)
	}
	if filter.MaxPriceCents > 0 {
		where += " AND price_cents <= ?"
		args = append(args, filter.MaxPriceCents)
	}
	return where, args
}

// sortClause returns a safe ORDER BY clause. Only allowed columns are accepted.
func sortClause(filter ListFilter) string {
	allowed := map[string]string{
		"price": "price_cents", "year": "year",
		"mileage": "mileage_km", "created_at": "created_at",
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

func scanCar(scan func(dest ...any) error) (domain.Car, error) {
	var c domain.Car
	var images, createdAt, updatedAt string
	err := scan(&c.ID, &c.Make, &c.Model, &c.Year, &c.MileageKm, &c.Fuel, &c.Transmission, &c.PriceCents,
		&c.Color, &c.Description, &images, &c.Status, &createdAt, &updatedAt)
	if err != nil {
		return domain.Car{}, err
	}
	if images != "" {
		if err := json.Unmarshal([]byte(images), &c.Images); err != nil {
			return domain.Car{}, fmt.Errorf("stock car %s: decode images: %w", c.ID, err)
		}
	}
	c.CreatedAt = storage.ParseTime(createdAt)
	c.UpdatedAt = storage.ParseTime(updatedAt)
	return c, nil
}
