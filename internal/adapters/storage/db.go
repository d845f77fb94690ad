package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL flavour behind a connection.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// TimeLayout is how timestamps are stored in TEXT columns on both dialects.
// Values are UTC and fixed width so string order is time order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned (wrapped) by store lookups that match no row.
var ErrNotFound = errors.New("not found")

// NotFound wraps ErrNotFound with the entity kind and key.
func NotFound(kind, key string) error {
	return fmt.Errorf("%s %s: %w", kind, key, ErrNotFound)
}

// DialectFromURL picks the dialect from a database URL.
// postgres:// and postgresql:// URLs use Postgres, anything else is a SQLite path.
func DialectFromURL(url string) Dialect {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// Open connects to the database named by url and applies per-dialect settings.
// PRE: url is a Postgres URL or a SQLite path (":memory:" allowed)
// POST: Returns a pinged connection and its dialect
func Open(ctx context.Context, url string) (*sql.DB, Dialect, error) {
	dialect := DialectFromURL(url)
	driver := "sqlite"
	dsn := url
	if dialect == DialectPostgres {
		driver = "postgres"
	} else {
		dsn = strings.TrimPrefix(dsn, "sqlite://")
		if !strings.Contains(dsn, "_pragma=") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open %s database: %w", dialect, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("ping %s database: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		// One writer at a time; an in-memory database is per-connection.
		db.SetMaxOpenConns(1)
		if !strings.HasPrefix(dsn, ":memory:") {
			if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
				db.Close()
				return nil, "", fmt.Errorf("failed to enable WAL mode: %w", err)
			}
		}
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}
	return db, dialect, nil
}

// Rebind rewrites ? placeholders to $1..$n for Postgres. Question marks inside
// single-quoted literals are left alone.
func Rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			fmt.Fprintf(&b, "$%d", n)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// FormatTime renders t for a TEXT column; the zero time becomes "".
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// ParseTime reads a TEXT timestamp; empty or malformed values give the zero time.
func ParseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{TimeLayout, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// BoolInt converts a bool to the INTEGER used in portable schemas.
func BoolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// LikePattern lowercases s and wraps it for a LOWER(col) LIKE ? search,
// escaping LIKE wildcards.
func LikePattern(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
	return "%" + s + "%"
}
