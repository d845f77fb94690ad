package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"carimport/internal/adapters/storage"
	domain "carimport/internal/domain/document"
)

const selectColumns = `SELECT id, account_id, request_id, kind, blob_key, file_name, content_type, size_bytes, sha256,
	status, fields, raw_text, provider, ocr_error, review_note, reviewed_by, reviewed_at, created_at, updated_at
	FROM document`

// SQLStore implements Store over storage.SQLDB. Extracted fields are kept as a
// JSON object in a TEXT column.
type SQLStore struct {
	db storage.SQLDB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore creates a new document store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

// GetByID retrieves a document by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error wrapping storage.ErrNotFound
func (s *SQLStore) GetByID(ctx context.Context, id string) (domain.Document, error) {
	d, err := scanDocument(s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, storage.NotFound("document", id)
	}
	return d, err
}

// GetByAccountSHA finds an earlier upload of the same file by the same account.
func (s *SQLStore) GetByAccountSHA(ctx context.Context, accountID, sha256 string) (domain.Document, error) {
	d, err := scanDocument(s.db.QueryRowContext(ctx, selectColumns+" WHERE account_id = ? AND sha256 = ?", accountID, sha256).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, storage.NotFound("document", sha256)
	}
	return d, err
}

// Save persists a document (insert or update). The file identity columns
// never change after the upload.
// PRE: entity has been validated
// POST: Entity is persisted
func (s *SQLStore) Save(ctx context.Context, d domain.Document) error {
	fields, err := json.Marshal(d.Fields)
	if err != nil {
		return fmt.Errorf("marshal document fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO document (id, account_id, request_id, kind, blob_key, file_name, content_type, size_bytes, sha256,
			status, fields, raw_text, provider, ocr_error, review_note, reviewed_by, reviewed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   request_id=excluded.request_id, kind=excluded.kind, status=excluded.status, fields=excluded.fields,
		   raw_text=excluded.raw_text, provider=excluded.provider, ocr_error=excluded.ocr_error,
		   review_note=excluded.review_note, reviewed_by=excluded.reviewed_by,
		   reviewed_at=excluded.reviewed_at, updated_at=excluded.updated_at`,
		d.ID, d.AccountID, d.RequestID, d.Kind, d.BlobKey, d.FileName, d.ContentType, d.SizeBytes, d.SHA256,
		d.Status, string(fields), d.RawText, d.Provider, d.OCRError, d.ReviewNote, d.ReviewedBy,
		storage.FormatTime(d.ReviewedAt), storage.FormatTime(d.CreatedAt), storage.FormatTime(d.UpdatedAt))
	return err
}

// List retrieves documents matching the filter. The review queue is oldest
// first; every other listing is newest first.
func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]domain.Document, error) {
	where, args := listWhereClause(filter)
	order := " ORDER BY created_at DESC, id"
	if filter.AwaitingReview {
		order = " ORDER BY created_at ASC, id"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, selectColumns+where+order+" LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Document
	for rows.Next() {
		d, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// Count returns the number of documents matching the filter.
func (s *SQLStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	where, args := listWhereClause(filter)
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM document"+where, args...).Scan(&n)
	return n, err
}

func listWhereClause(filter ListFilter) (string, []any) {
	where := " WHERE 1=1"
	var args []any
	if filter.AccountID != "" {
		where += " AND account_id = ?"
		args = append(args, filter.AccountID)
	}
	if filter.RequestID != "" {
		where += " AND request_id = ?"
		args = append(args, filter.RequestID)
	}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.AwaitingReview {
		where += " AND status IN (?, ?)"
		args = append(args, domain.StatusExtracted, domain.StatusOCRFailed)
	}
	return where, args
}

func scanDocument(scan func(dest ...any) error) (domain.Document, error) {
	var d domain.Document
	var fields, reviewedAt, createdAt, updatedAt string
	err := scan(&d.ID, &d.AccountID, &d.RequestID, &d.Kind, &d.BlobKey, &d.FileName, &d.ContentType, &d.SizeBytes,
		&d.SHA256, &d.Status, &fields, &d.RawText, &d.Provider, &d.OCRError, &d.ReviewNote, &d.ReviewedBy,
		&reviewedAt, &createdAt, &updatedAt)
	if err != nil {
		return domain.Document{}, err
	}
	if fields != "" {
		if err := json.Unmarshal([]byte(fields), &d.Fields); err != nil {
			return domain.Document{}, fmt.Errorf("document %s: decode fields: %w", d.ID, err)
		}
	}
	d.ReviewedAt = storage.ParseTime(reviewedAt)
	d.CreatedAt = storage.ParseTime(createdAt)
	d.UpdatedAt = storage.ParseTime(updatedAt)
	return d, nil
}
