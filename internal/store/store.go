// Package store implements the endpoint store (C5): durable per-tenant
// storage for endpoints, rules, and request logs, plus the read-through
// rules cache described in spec.md §4.5.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/benscrane/relay-sub000/internal/logging"
	"github.com/benscrane/relay-sub000/internal/model"
	"github.com/benscrane/relay-sub000/internal/store/migrations"
)

// Store is one tenant's isolated SQL-backed storage.
type Store struct {
	db      *sql.DB
	dialect string
	cache   *ruleCache
}

// Open connects to the tenant's database and applies the idempotent schema
// migration. dialect is "sqlite" (default, embedded, CGo-free via
// modernc.org/sqlite) or "postgres" (via lib/pq) for deployments that want
// one shared Postgres instance with per-tenant schemas/databases instead of
// per-tenant SQLite files. OpenWithCacheTTL lets callers override the rules
// cache's TTL (RULES_CACHE_TTL); Open uses the spec.md §4.5 default of 60s.
// logger may be nil, in which case migration steps go unlogged.
func Open(ctx context.Context, dialect, dsn string, logger *logging.Logger) (*Store, error) {
	return OpenWithCacheTTL(ctx, dialect, dsn, defaultRulesCacheTTL, logger)
}

// OpenWithCacheTTL is Open with an explicit rules-cache TTL.
func OpenWithCacheTTL(ctx context.Context, dialect, dsn string, rulesCacheTTL time.Duration, logger *logging.Logger) (*Store, error) {
	if dialect == "" {
		dialect = "sqlite"
	}

	driver := dialect
	if dialect == "sqlite" {
		driver = "sqlite"
	} else if dialect == "postgres" {
		driver = "postgres"
	} else {
		return nil, fmt.Errorf("store: unsupported dialect %q", dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	if dialect == "sqlite" {
		db.SetMaxOpenConns(1) // single-writer semantics per spec.md §5
		// SQLite leaves foreign keys off by default; mock_rules' ON DELETE
		// CASCADE only takes effect with them on.
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	droppedLegacy, err := migrations.Apply(ctx, db, dialect)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	if logger != nil {
		logger.LogMigration(ctx, "apply schema", droppedLegacy)
	}

	return &Store{db: db, dialect: dialect, cache: newRuleCache(rulesCacheTTL)}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// rebind rewrites "?" placeholders into the dialect's native style.
func (s *Store) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func timeFormat(t time.Time) interface{} {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
