// Package storagetest opens throwaway databases for store and handler tests.
package storagetest

import (
	"context"
	"testing"

	"carimport/internal/adapters/storage"
)

// Open returns a migrated in-memory SQLite database.
// PRE: called from a test
// POST: The database is closed when the test finishes
func Open(t testing.TB) *storage.TimedDB {
	t.Helper()
	ctx := context.Background()
	raw, dialect, err := storage.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	db := storage.NewTimedDB(raw, dialect, nil, 0)
	t.Cleanup(func() { db.Close() })
	if err := storage.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}
