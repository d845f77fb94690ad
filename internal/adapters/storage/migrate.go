package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// migration is one forward-only schema step. Statements use types that mean
// the same thing on SQLite and Postgres: TEXT, INTEGER, BIGINT, REAL.
type migration struct {
	version     int
	description string
	statements  []string
}

var migrations = []migration{
	{
		version:     1,
		description: "accounts and car requests",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS account (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL UNIQUE,
				name TEXT NOT NULL DEFAULT '',
				phone TEXT NOT NULL DEFAULT '',
				password_hash TEXT NOT NULL DEFAULT '',
				role TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'active',
				created_at TEXT NOT NULL,
				failed_logins INTEGER NOT NULL DEFAULT 0,
				locked_until TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS car_request (
				id TEXT PRIMARY KEY,
				reference TEXT NOT NULL UNIQUE,
				account_id TEXT NOT NULL DEFAULT '',
				contact_name TEXT NOT NULL,
				contact_email TEXT NOT NULL,
				contact_phone TEXT NOT NULL DEFAULT '',
				country TEXT NOT NULL DEFAULT '',
				make TEXT NOT NULL,
				model TEXT NOT NULL DEFAULT '',
				year_from INTEGER NOT NULL DEFAULT 0,
				year_to INTEGER NOT NULL DEFAULT 0,
				budget_cents BIGINT NOT NULL,
				fuel TEXT NOT NULL,
				transmission TEXT NOT NULL,
				max_mileage_km INTEGER NOT NULL DEFAULT 0,
				color TEXT NOT NULL DEFAULT '',
				notes TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				admin_notes TEXT NOT NULL DEFAULT '',
				assigned_to TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_car_request_status ON car_request(status, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_car_request_account ON car_request(account_id)`,
		},
	},
	{
		version:     2,
		description: "offers and contracts",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS offer (
				id TEXT PRIMARY KEY,
				request_id TEXT NOT NULL REFERENCES car_request(id),
				vehicle_description TEXT NOT NULL,
				price_cents BIGINT NOT NULL,
				listing_url TEXT NOT NULL DEFAULT '',
				message TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				expires_at TEXT NOT NULL DEFAULT '',
				created_by TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				responded_at TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_offer_request ON offer(request_id)`,
			`CREATE TABLE IF NOT EXISTS contract (
				id TEXT PRIMARY KEY,
				number TEXT NOT NULL UNIQUE,
				request_id TEXT NOT NULL REFERENCES car_request(id),
				account_id TEXT NOT NULL,
				vehicle_description TEXT NOT NULL,
				vin TEXT NOT NULL DEFAULT '',
				price_cents BIGINT NOT NULL,
				deposit_cents BIGINT NOT NULL DEFAULT 0,
				status TEXT NOT NULL,
				created_at TEXT NOT NULL,
				sent_at TEXT NOT NULL DEFAULT '',
				signed_at TEXT NOT NULL DEFAULT '',
				cancelled_at TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS sequence (
				name TEXT PRIMARY KEY,
				value INTEGER NOT NULL
			)`,
		},
	},
	{
		version:     3,
		description: "documents",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS document (
				id TEXT PRIMARY KEY,
				account_id TEXT NOT NULL,
				request_id TEXT NOT NULL DEFAULT '',
				kind TEXT NOT NULL,
				blob_key TEXT NOT NULL,
				file_name TEXT NOT NULL DEFAULT '',
				content_type TEXT NOT NULL,
				size_bytes BIGINT NOT NULL,
				sha256 TEXT NOT NULL,
				status TEXT NOT NULL,
				fields TEXT NOT NULL DEFAULT '{}',
				raw_text TEXT NOT NULL DEFAULT '',
				provider TEXT NOT NULL DEFAULT '',
				ocr_error TEXT NOT NULL DEFAULT '',
				review_note TEXT NOT NULL DEFAULT '',
				reviewed_by TEXT NOT NULL DEFAULT '',
				reviewed_at TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_document_account_sha ON document(account_id, sha256)`,
			`CREATE INDEX IF NOT EXISTS idx_document_status ON document(status)`,
		},
	},
	{
		version:     4,
		description: "public catalog",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS blog_post (
				id TEXT PRIMARY KEY,
				slug TEXT NOT NULL UNIQUE,
				title TEXT NOT NULL,
				summary TEXT NOT NULL DEFAULT '',
				body_markdown TEXT NOT NULL,
				cover_image TEXT NOT NULL DEFAULT '',
				published INTEGER NOT NULL DEFAULT 0,
				published_at TEXT NOT NULL DEFAULT '',
				author_id TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS stock_car (
				id TEXT PRIMARY KEY,
				make TEXT NOT NULL,
				model TEXT NOT NULL,
				year INTEGER NOT NULL,
				mileage_km INTEGER NOT NULL,
				fuel TEXT NOT NULL,
				transmission TEXT NOT NULL,
				price_cents BIGINT NOT NULL,
				color TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				images TEXT NOT NULL DEFAULT '[]',
				status TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_stock_car_status ON stock_car(status)`,
		},
	},
	{
		version:     5,
		description: "outbox and audit log",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS outbox (
				id TEXT PRIMARY KEY,
				action_type TEXT NOT NULL,
				payload TEXT NOT NULL,
				status TEXT NOT NULL,
				attempts INTEGER NOT NULL DEFAULT 0,
				max_attempts INTEGER NOT NULL DEFAULT 5,
				last_attempted_at TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				external_id TEXT NOT NULL DEFAULT '',
				error_message TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status, created_at)`,
			`CREATE TABLE IF NOT EXISTS audit_event (
				id TEXT PRIMARY KEY,
				timestamp TEXT NOT NULL,
				category TEXT NOT NULL,
				action TEXT NOT NULL,
				severity TEXT NOT NULL,
				actor_id TEXT NOT NULL DEFAULT '',
				actor_email TEXT NOT NULL DEFAULT '',
				actor_role TEXT NOT NULL DEFAULT '',
				resource_id TEXT NOT NULL DEFAULT '',
				resource_type TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				ip_address TEXT NOT NULL DEFAULT '',
				user_agent TEXT NOT NULL DEFAULT '',
				metadata TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_event_timestamp ON audit_event(timestamp)`,
		},
	},
	{
		version:     6,
		description: "outbox due time",
		statements: []string{
			`ALTER TABLE outbox ADD COLUMN next_attempt_at TEXT NOT NULL DEFAULT ''`,
			`UPDATE outbox SET next_attempt_at = last_attempted_at WHERE status = 'retrying'`,
			`CREATE INDEX IF NOT EXISTS idx_outbox_due ON outbox(status, next_attempt_at)`,
		},
	},
}

// LatestVersion is the schema version after all migrations are applied.
func LatestVersion() int {
	return migrations[len(migrations)-1].version
}

// SchemaVersion returns the applied schema version, 0 for a fresh database.
func SchemaVersion(ctx context.Context, db SQLDB) (int, error) {
	if err := ensureVersionTable(ctx, db); err != nil {
		return 0, err
	}
	var v sql.NullInt64
	if err := db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v.Int64), nil
}

func ensureVersionTable(ctx context.Context, db SQLDB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}
	return nil
}

// Migrate applies every pending migration, each in its own transaction.
// PRE: db is connected
// POST: SchemaVersion == LatestVersion; already-applied steps are skipped
func Migrate(ctx context.Context, db SQLDB) error {
	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return err
		}
		slog.Info("schema_migrated", "version", m.version, "description", m.description)
	}
	return nil
}

func apply(ctx context.Context, db SQLDB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d: begin: %w", m.version, err)
	}
	defer tx.Rollback()

	for i, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d statement %d: %w", m.version, i+1, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_version (version, description, applied_at) VALUES (?, ?, ?)",
		m.version, m.description, FormatTime(time.Now())); err != nil {
		return fmt.Errorf("migration %d: record version: %w", m.version, err)
	}
	return tx.Commit()
}
