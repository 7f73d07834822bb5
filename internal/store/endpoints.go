package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/benscrane/relay-sub000/internal/model"
)

// ErrDuplicatePath is returned when creating an endpoint whose path pattern
// already exists for the tenant (spec.md §3's uniqueness invariant).
var ErrDuplicatePath = errors.New("store: duplicate endpoint path")

// ErrNotFound is returned by Get/Update/Delete operations that address a
// missing row.
var ErrNotFound = errors.New("store: not found")

// CreateEndpoint inserts a new endpoint, generating an "ep_"-prefixed ID.
func (s *Store) CreateEndpoint(ctx context.Context, e model.Endpoint) (model.Endpoint, error) {
	if e.ID == "" {
		e.ID = "ep_" + uuid.NewString()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.StatusCode == 0 {
		e.StatusCode = 200
	}
	if e.RateLimit == 0 {
		e.RateLimit = 60
	}

	_, err := s.exec(ctx, `
		INSERT INTO endpoints (id, path, response_body, status_code, delay_ms, rate_limit, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Path, e.ResponseBody, e.StatusCode, e.DelayMS, e.RateLimit, timeFormat(e.CreatedAt), timeFormat(e.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return model.Endpoint{}, ErrDuplicatePath
		}
		return model.Endpoint{}, fmt.Errorf("create endpoint: %w", err)
	}
	return e, nil
}

// GetEndpoint fetches a single endpoint by ID.
func (s *Store) GetEndpoint(ctx context.Context, id string) (model.Endpoint, error) {
	row := s.queryRow(ctx, `
		SELECT id, path, response_body, status_code, delay_ms, rate_limit, created_at, updated_at
		FROM endpoints WHERE id = ?
	`, id)
	return scanEndpoint(row)
}

// ListEndpoints returns every endpoint for the tenant ordered by creation
// time ascending, the order spec.md §4.5 specifies for plain listing.
func (s *Store) ListEndpoints(ctx context.Context) ([]model.Endpoint, error) {
	rows, err := s.query(ctx, `
		SELECT id, path, response_body, status_code, delay_ms, rate_limit, created_at, updated_at
		FROM endpoints ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	defer rows.Close()

	var out []model.Endpoint
	for rows.Next() {
		e, err := scanEndpointRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateEndpoint applies a partial update (zero-value fields are left
// unchanged by the caller building the merged struct beforehand).
func (s *Store) UpdateEndpoint(ctx context.Context, e model.Endpoint) (model.Endpoint, error) {
	e.UpdatedAt = time.Now().UTC()
	res, err := s.exec(ctx, `
		UPDATE endpoints SET path = ?, response_body = ?, status_code = ?, delay_ms = ?, rate_limit = ?, updated_at = ?
		WHERE id = ?
	`, e.Path, e.ResponseBody, e.StatusCode, e.DelayMS, e.RateLimit, timeFormat(e.UpdatedAt), e.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Endpoint{}, ErrDuplicatePath
		}
		return model.Endpoint{}, fmt.Errorf("update endpoint: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Endpoint{}, ErrNotFound
	}
	return e, nil
}

// DeleteEndpoint removes the endpoint; the database's ON DELETE CASCADE
// removes its rules and the cache is invalidated immediately since the
// cascade itself has no way to signal the in-process rules cache.
func (s *Store) DeleteEndpoint(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM endpoints WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete endpoint: %w", err)
	}
	s.cache.invalidate(id)
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEndpoint(row *sql.Row) (model.Endpoint, error) {
	var e model.Endpoint
	var created, updated string
	err := row.Scan(&e.ID, &e.Path, &e.ResponseBody, &e.StatusCode, &e.DelayMS, &e.RateLimit, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Endpoint{}, ErrNotFound
		}
		return model.Endpoint{}, err
	}
	e.CreatedAt = parseTime(created)
	e.UpdatedAt = parseTime(updated)
	return e, nil
}

func scanEndpointRows(rows *sql.Rows) (model.Endpoint, error) {
	var e model.Endpoint
	var created, updated string
	if err := rows.Scan(&e.ID, &e.Path, &e.ResponseBody, &e.StatusCode, &e.DelayMS, &e.RateLimit, &created, &updated); err != nil {
		return model.Endpoint{}, err
	}
	e.CreatedAt = parseTime(created)
	e.UpdatedAt = parseTime(updated)
	return e, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, sub := range []string{"UNIQUE constraint failed", "duplicate key value", "unique constraint"} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}
