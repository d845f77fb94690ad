package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"
)

// openTestDB creates an unmigrated in-memory SQLite database for testing.
func openTestDB(t *testing.T) *TimedDB {
	t.Helper()
	raw, dialect, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	db := NewTimedDB(raw, dialect, nil, 0)
	t.Cleanup(func() { db.Close() })
	return db
}

// getTableNames returns sorted table names from sqlite_master, excluding internal tables.
func getTableNames(t *testing.T, db SQLDB) []string {
	t.Helper()
	rows, err := db.QueryContext(context.Background(),
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		t.Fatalf("failed to query sqlite_master: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan table name: %v", err)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// expectedTables is the sorted list of tables after all migrations.
var expectedTables = []string{
	"account",
	"audit_event",
	"blog_post",
	"car_request",
	"contract",
	"document",
	"offer",
	"outbox",
	"schema_version",
	"sequence",
	"stock_car",
}

// TestMigrate_Fresh verifies all migrations apply cleanly to an empty database.
func TestMigrate_Fresh(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("Migrate failed on fresh db: %v", err)
	}
	version, err := SchemaVersion(ctx, db)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != LatestVersion() {
		t.Errorf("version = %d, want %d", version, LatestVersion())
	}

	tables := getTableNames(t, db)
	if strings.Join(tables, ",") != strings.Join(expectedTables, ",") {
		t.Errorf("tables mismatch\ngot:  %v\nwant: %v", tables, expectedTables)
	}
}

// TestMigrate_Idempotent verifies a second run is a no-op.
func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("first Migrate failed: %v", err)
	}
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
	var rows int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version").Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != len(migrations) {
		t.Errorf("schema_version rows = %d, want %d", rows, len(migrations))
	}
}

// TestMigrate_VersionProgression verifies SchemaVersion reports 0 before migration.
func TestMigrate_VersionProgression(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	v, err := SchemaVersion(ctx, db)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if v != 0 {
		t.Errorf("initial version = %d, want 0", v)
	}
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if v, _ = SchemaVersion(ctx, db); v != LatestVersion() {
		t.Errorf("post-migration version = %d, want %d", v, LatestVersion())
	}
}

// TestMigrate_DataSurvival verifies existing rows survive a re-run.
func TestMigrate_DataSurvival(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO account (id, email, role, created_at) VALUES (?, ?, ?, ?)`,
		"a1", "admin@example.com", "admin", FormatTime(time.Now()))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
	var email string
	if err := db.QueryRowContext(ctx, "SELECT email FROM account WHERE id = ?", "a1").Scan(&email); err != nil {
		t.Fatalf("account lost after migration: %v", err)
	}
}

func TestRebind(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		in      string
		want    string
	}{
		{"sqlite untouched", DialectSQLite, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = ? AND b = ?"},
		{"postgres numbered", DialectPostgres, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{"quoted literal kept", DialectPostgres, "SELECT '?' , x FROM t WHERE a = ?", "SELECT '?' , x FROM t WHERE a = $1"},
		{"escape clause", DialectPostgres, `WHERE LOWER(a) LIKE ? ESCAPE '\' AND b = ?`, `WHERE LOWER(a) LIKE $1 ESCAPE '\' AND b = $2`},
		{"no placeholders", DialectPostgres, "SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Rebind(tt.dialect, tt.in); got != tt.want {
				t.Errorf("Rebind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDialectFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want Dialect
	}{
		{"postgres://u:p@db.supabase.co:5432/postgres", DialectPostgres},
		{"postgresql://localhost/carimport", DialectPostgres},
		{"carimport.db", DialectSQLite},
		{":memory:", DialectSQLite},
	}
	for _, tt := range tests {
		if got := DialectFromURL(tt.url); got != tt.want {
			t.Errorf("DialectFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestTimeRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 890, time.UTC)
	if got := ParseTime(FormatTime(ts)); !got.Equal(ts) {
		t.Errorf("round trip = %v, want %v", got, ts)
	}
	if FormatTime(time.Time{}) != "" {
		t.Error("zero time should format as empty string")
	}
	if !ParseTime("").IsZero() || !ParseTime("garbage").IsZero() {
		t.Error("empty or malformed input should parse as zero time")
	}
}

func TestLikePattern(t *testing.T) {
	if got := LikePattern("  BMW_50%  "); got != `%bmw\_50\%%` {
		t.Errorf("LikePattern = %q", got)
	}
}

func TestNextSequence(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := Migrate(ctx, db); err != nil {
		t.Fatal(err)
	}
	for want := 1; want <= 3; want++ {
		got, err := NextSequence(ctx, db, "contract-2026")
		if err != nil {
			t.Fatalf("NextSequence: %v", err)
		}
		if got != want {
			t.Errorf("NextSequence = %d, want %d", got, want)
		}
	}
	if got, _ := NextSequence(ctx, db, "contract-2027"); got != 1 {
		t.Errorf("new sequence starts at %d, want 1", got)
	}
}

func TestNotFound(t *testing.T) {
	err := NotFound("car request", "r1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("NotFound should wrap ErrNotFound: %v", err)
	}
	if err.Error() != "car request r1: not found" {
		t.Errorf("message = %q", err.Error())
	}
}
