package storage

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"carimport/internal/adapters/http/perf"
)

// SQLDB is the database interface used by all stores.
// Queries use ? placeholders; implementations rebind them for the dialect.
type SQLDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error)
	Dialect() Dialect
}

// DefaultSlowQuery is the default threshold for slow query warnings.
const DefaultSlowQuery = 50 * time.Millisecond

// TimedDB wraps a *sql.DB to rebind placeholders, log slow queries and
// optionally record timings to a collector.
type TimedDB struct {
	db        *sql.DB
	dialect   Dialect
	collector *perf.Collector
	threshold time.Duration
}

// Compile-time check that *TimedDB satisfies SQLDB.
var _ SQLDB = (*TimedDB)(nil)

// NewTimedDB wraps db. A zero threshold uses DefaultSlowQuery.
// PRE: db is a valid database connection
// POST: Returns a TimedDB that logs slow queries and records to collector (may be nil)
func NewTimedDB(db *sql.DB, dialect Dialect, collector *perf.Collector, threshold time.Duration) *TimedDB {
	if threshold <= 0 {
		threshold = DefaultSlowQuery
	}
	return &TimedDB{
		db:        db,
		dialect:   dialect,
		collector: collector,
		threshold: threshold,
	}
}

// RawDB returns the underlying *sql.DB (needed for migrations and pool config).
func (t *TimedDB) RawDB() *sql.DB {
	return t.db
}

// Dialect reports the SQL flavour of the connection.
func (t *TimedDB) Dialect() Dialect {
	return t.dialect
}

// statementName is the leading keyword and table of a query, e.g. "SELECT car_request".
func statementName(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	verb := strings.ToUpper(fields[0])
	for i, f := range fields {
		u := strings.ToUpper(f)
		if (u == "FROM" || u == "INTO" || u == "UPDATE") && i+1 < len(fields) {
			return verb + " " + strings.Trim(fields[i+1], "(")
		}
	}
	return verb
}

func (t *TimedDB) observe(op, query string, start time.Time) {
	elapsed := time.Since(start)
	durationMs := float64(elapsed.Microseconds()) / 1000.0
	name := statementName(query)

	if elapsed >= t.threshold {
		slog.Warn("slow_query", "op", op, "statement", name, "duration_ms", durationMs)
	} else {
		slog.Debug("query", "op", op, "statement", name, "duration_ms", durationMs)
	}

	if t.collector != nil {
		t.collector.Record(perf.Entry{
			Kind:       perf.KindQuery,
			Path:       name,
			DurationMs: durationMs,
			Timestamp:  start,
		})
	}
}

// ExecContext runs a statement with timing.
func (t *TimedDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := t.db.ExecContext(ctx, Rebind(t.dialect, query), args...)
	t.observe("exec", query, start)
	return result, err
}

// QueryContext runs a query with timing.
func (t *TimedDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := t.db.QueryContext(ctx, Rebind(t.dialect, query), args...)
	t.observe("query", query, start)
	return rows, err
}

// QueryRowContext runs a single-row query with timing.
func (t *TimedDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := t.db.QueryRowContext(ctx, Rebind(t.dialect, query), args...)
	t.observe("query_row", query, start)
	return row
}

// BeginTx starts a transaction whose statements are rebound the same way.
// PRE: ctx is valid
// POST: transaction started, timing recorded to collector
func (t *TimedDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	start := time.Now()
	tx, err := t.db.BeginTx(ctx, opts)
	t.observe("begin", "BEGIN", start)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, dialect: t.dialect}, nil
}

// Close closes the underlying database connection.
func (t *TimedDB) Close() error {
	return t.db.Close()
}

// PingContext verifies the database connection.
func (t *TimedDB) PingContext(ctx context.Context) error {
	return t.db.PingContext(ctx)
}

// Tx is a transaction that rebinds placeholders for its dialect.
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
}

// ExecContext runs a statement inside the transaction.
func (x *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return x.tx.ExecContext(ctx, Rebind(x.dialect, query), args...)
}

// QueryContext runs a query inside the transaction.
func (x *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return x.tx.QueryContext(ctx, Rebind(x.dialect, query), args...)
}

// QueryRowContext runs a single-row query inside the transaction.
func (x *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return x.tx.QueryRowContext(ctx, Rebind(x.dialect, query), args...)
}

// Commit commits the transaction.
func (x *Tx) Commit() error { return x.tx.Commit() }

// Rollback aborts the transaction. Safe to call after Commit.
func (x *Tx) Rollback() error { return x.tx.Rollback() }

// NextSequence atomically increments the named counter and returns the new value.
// PRE: the sequence table exists (see Migrate)
// POST: Returns a value strictly greater than any previously returned for name
func NextSequence(ctx context.Context, db SQLDB, name string) (int, error) {
	var v int
	err := db.QueryRowContext(ctx,
		`INSERT INTO sequence (name, value) VALUES (?, 1)
		 ON CONFLICT(name) DO UPDATE SET value = sequence.value + 1
		 RETURNING value`, name).Scan(&v)
	return v, err
}

// CountGrouped runs a two-column "key, COUNT(*)" query and returns the counts by key.
func CountGrouped(ctx context.Context, db SQLDB, query string, args ...any) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rows.Err()
}
