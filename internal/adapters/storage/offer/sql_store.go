package offer

import (
	"context"
	"database/sql"
	"errors"

	"carimport/internal/adapters/storage"
	domain "carimport/internal/domain/offer"
)

const selectColumns = `SELECT id, request_id, vehicle_description, price_cents, listing_url, message, status,
	expires_at, created_by, created_at, responded_at FROM offer`

// SQLStore implements Store over storage.SQLDB.
type SQLStore struct {
	db storage.SQLDB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore creates a new offer store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

// GetByID retrieves an offer by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error wrapping storage.ErrNotFound
func (s *SQLStore) GetByID(ctx context.Context, id string) (domain.Offer, error) {
	o, err := scanOffer(s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Offer{}, storage.NotFound("offer", id)
	}
	return o, err
}

// Save persists an offer (insert or update). Only the answer fields change on update.
// PRE: entity has been validated; the request row exists
// POST: Entity is persisted
func (s *SQLStore) Save(ctx context.Context, o domain.Offer) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO offer (id, request_id, vehicle_description, price_cents, listing_url, message, status,
			expires_at, created_by, created_at, responded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status=excluded.status, responded_at=excluded.responded_at`,
		o.ID, o.RequestID, o.VehicleDescription, o.PriceCents, o.ListingURL, o.Message, o.Status,
		storage.FormatTime(o.ExpiresAt), o.CreatedBy, storage.FormatTime(o.CreatedAt), storage.FormatTime(o.RespondedAt))
	return err
}

// ListByRequest returns the offers sent for a request, newest first.
func (s *SQLStore) ListByRequest(ctx context.Context, requestID string) ([]domain.Offer, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+" WHERE request_id = ? ORDER BY created_at DESC, id", requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Offer
	for rows.Next() {
		o, err := scanOffer(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, o)
	}
	return results, rows.Err()
}

// CountByStatus returns offer totals keyed by status.
func (s *SQLStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	return storage.CountGrouped(ctx, s.db, "SELECT status, COUNT(*) FROM offer GROUP BY status")
}

func scanOffer(scan func(dest ...any) error) (domain.Offer, error) {
	var o domain.Offer
	var expiresAt, createdAt, respondedAt string
	err := scan(&o.ID, &o.RequestID, &o.VehicleDescription, &o.PriceCents, &o.ListingURL, &o.Message, &o.Status,
		&expiresAt, &o.CreatedBy, &createdAt, &respondedAt)
	if err != nil {
		return domain.Offer{}, err
	}
	o.ExpiresAt = storage.ParseTime(expiresAt)
	o.CreatedAt = storage.ParseTime(createdAt)
	o.RespondedAt = storage.ParseTime(respondedAt)
	return o, nil
}
