// Package migrations applies the per-tenant schema. Migrations are
// idempotent: every statement uses IF NOT EXISTS / IF EXISTS guards so
// Apply can run safely on every engine start, adapted from the teacher's
// embed.FS lexical-order migration runner.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// LegacyMethodColumnDetected reports whether the endpoints table still
// carries the historical "method" column. Endpoints were once scoped to a
// single HTTP method; they are now path-only and dispatch to rules for
// per-method behavior (spec.md §4.5). Its presence means the tenant's
// database predates that redesign.
func LegacyMethodColumnDetected(ctx context.Context, db *sql.DB, dialect string) (bool, error) {
	switch dialect {
	case "sqlite":
		rows, err := db.QueryContext(ctx, `PRAGMA table_info(endpoints)`)
		if err != nil {
			return false, nil // table doesn't exist yet
		}
		defer rows.Close()
		for rows.Next() {
			var cid int
			var name, ctype string
			var notnull, pk int
			var dflt sql.NullString
			if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
				return false, err
			}
			if name == "method" {
				return true, nil
			}
		}
		return false, rows.Err()
	case "postgres":
		var exists bool
		err := db.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'endpoints' AND column_name = 'method'
			)
		`).Scan(&exists)
		if err != nil {
			return false, nil
		}
		return exists, nil
	default:
		return false, fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}
}

// Apply drops the legacy endpoint schema if detected (a one-way,
// data-losing migration preserved for compatibility per spec.md §9's open
// question) and then idempotently ensures the current schema exists.
func Apply(ctx context.Context, db *sql.DB, dialect string) (droppedLegacy bool, err error) {
	legacy, err := LegacyMethodColumnDetected(ctx, db, dialect)
	if err != nil {
		return false, fmt.Errorf("detect legacy schema: %w", err)
	}

	if legacy {
		for _, stmt := range dropLegacyStatements {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return false, fmt.Errorf("drop legacy schema: %w", err)
			}
		}
	}

	stmts, ok := createStatements[dialect]
	if !ok {
		return false, fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return false, fmt.Errorf("apply migration: %w", err)
		}
	}

	return legacy, nil
}

// dropLegacyStatements removes the method-scoped endpoints table along with
// its dependent rules and logs — they cannot be meaningfully preserved once
// their owning endpoint rows are gone.
var dropLegacyStatements = []string{
	`DROP TABLE IF EXISTS mock_rules`,
	`DROP TABLE IF EXISTS request_logs`,
	`DROP TABLE IF EXISTS endpoints`,
}

var createStatements = map[string][]string{
	"sqlite": {
		`CREATE TABLE IF NOT EXISTS endpoints (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL UNIQUE,
			response_body TEXT NOT NULL DEFAULT '{}',
			status_code INTEGER NOT NULL DEFAULT 200,
			delay_ms INTEGER NOT NULL DEFAULT 0,
			rate_limit INTEGER NOT NULL DEFAULT 60,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS mock_rules (
			id TEXT PRIMARY KEY,
			endpoint_id TEXT NOT NULL REFERENCES endpoints(id) ON DELETE CASCADE,
			name TEXT NOT NULL DEFAULT '',
			priority INTEGER NOT NULL DEFAULT 0,
			match_method TEXT NOT NULL DEFAULT '',
			match_path TEXT NOT NULL DEFAULT '',
			match_headers TEXT NOT NULL DEFAULT '{}',
			response_body TEXT NOT NULL,
			response_headers TEXT NOT NULL DEFAULT '{}',
			response_status INTEGER NOT NULL DEFAULT 200,
			delay_ms INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mock_rules_endpoint ON mock_rules(endpoint_id)`,
		`CREATE TABLE IF NOT EXISTS request_logs (
			id TEXT PRIMARY KEY,
			endpoint_id TEXT NOT NULL,
			method TEXT NOT NULL,
			path TEXT NOT NULL,
			headers TEXT NOT NULL DEFAULT '{}',
			body TEXT,
			timestamp TEXT NOT NULL,
			matched_rule_id TEXT,
			matched_rule_name TEXT,
			path_params TEXT,
			response_status INTEGER NOT NULL,
			response_time_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_request_logs_endpoint_ts ON request_logs(endpoint_id, timestamp DESC)`,
	},
	"postgres": {
		`CREATE TABLE IF NOT EXISTS endpoints (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL UNIQUE,
			response_body TEXT NOT NULL DEFAULT '{}',
			status_code INTEGER NOT NULL DEFAULT 200,
			delay_ms INTEGER NOT NULL DEFAULT 0,
			rate_limit INTEGER NOT NULL DEFAULT 60,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS mock_rules (
			id TEXT PRIMARY KEY,
			endpoint_id TEXT NOT NULL REFERENCES endpoints(id) ON DELETE CASCADE,
			name TEXT NOT NULL DEFAULT '',
			priority INTEGER NOT NULL DEFAULT 0,
			match_method TEXT NOT NULL DEFAULT '',
			match_path TEXT NOT NULL DEFAULT '',
			match_headers TEXT NOT NULL DEFAULT '{}',
			response_body TEXT NOT NULL,
			response_headers TEXT NOT NULL DEFAULT '{}',
			response_status INTEGER NOT NULL DEFAULT 200,
			delay_ms INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mock_rules_endpoint ON mock_rules(endpoint_id)`,
		`CREATE TABLE IF NOT EXISTS request_logs (
			id TEXT PRIMARY KEY,
			endpoint_id TEXT NOT NULL,
			method TEXT NOT NULL,
			path TEXT NOT NULL,
			headers TEXT NOT NULL DEFAULT '{}',
			body TEXT,
			timestamp TEXT NOT NULL,
			matched_rule_id TEXT,
			matched_rule_name TEXT,
			path_params TEXT,
			response_status INTEGER NOT NULL,
			response_time_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_request_logs_endpoint_ts ON request_logs(endpoint_id, timestamp DESC)`,
	},
}
