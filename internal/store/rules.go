package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/benscrane/relay-sub000/internal/model"
)

// CreateRule inserts a new rule and invalidates its endpoint's rule cache.
func (s *Store) CreateRule(ctx context.Context, r model.Rule) (model.Rule, error) {
	if r.ID == "" {
		r.ID = "rul_" + uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	if r.ResponseStatus == 0 {
		r.ResponseStatus = 200
	}

	matchHeaders, _ := json.Marshal(nonNilMap(r.MatchHeaders))
	responseHeaders, _ := json.Marshal(nonNilMap(r.ResponseHeaders))

	_, err := s.exec(ctx, `
		INSERT INTO mock_rules
		(id, endpoint_id, name, priority, match_method, match_path, match_headers,
		 response_body, response_headers, response_status, delay_ms, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.EndpointID, r.Name, r.Priority, r.MatchMethod, r.MatchPath, string(matchHeaders),
		r.ResponseBody, string(responseHeaders), r.ResponseStatus, r.DelayMS, boolToInt(r.Active),
		timeFormat(r.CreatedAt), timeFormat(r.UpdatedAt))
	if err != nil {
		return model.Rule{}, fmt.Errorf("create rule: %w", err)
	}

	s.cache.invalidate(r.EndpointID)
	return r, nil
}

// UpdateRule applies a partial update and invalidates the endpoint's cache.
// The owning endpoint is looked up by rule ID, since the caller may not
// set r.EndpointID.
func (s *Store) UpdateRule(ctx context.Context, r model.Rule) (model.Rule, error) {
	var endpointID string
	err := s.queryRow(ctx, `SELECT endpoint_id FROM mock_rules WHERE id = ?`, r.ID).Scan(&endpointID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Rule{}, ErrNotFound
	}
	if err != nil {
		return model.Rule{}, fmt.Errorf("lookup rule: %w", err)
	}
	r.EndpointID = endpointID

	r.UpdatedAt = time.Now().UTC()
	matchHeaders, _ := json.Marshal(nonNilMap(r.MatchHeaders))
	responseHeaders, _ := json.Marshal(nonNilMap(r.ResponseHeaders))

	res, err := s.exec(ctx, `
		UPDATE mock_rules SET
			name = ?, priority = ?, match_method = ?, match_path = ?, match_headers = ?,
			response_body = ?, response_headers = ?, response_status = ?, delay_ms = ?, active = ?, updated_at = ?
		WHERE id = ?
	`, r.Name, r.Priority, r.MatchMethod, r.MatchPath, string(matchHeaders),
		r.ResponseBody, string(responseHeaders), r.ResponseStatus, r.DelayMS, boolToInt(r.Active),
		timeFormat(r.UpdatedAt), r.ID)
	if err != nil {
		return model.Rule{}, fmt.Errorf("update rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Rule{}, ErrNotFound
	}

	s.cache.invalidate(r.EndpointID)
	return r, nil
}

// DeleteRule removes a rule by ID, invalidating its endpoint's cache. The
// endpoint ID is looked up first since the caller may not know it.
func (s *Store) DeleteRule(ctx context.Context, id string) error {
	var endpointID string
	err := s.queryRow(ctx, `SELECT endpoint_id FROM mock_rules WHERE id = ?`, id).Scan(&endpointID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup rule: %w", err)
	}

	if _, err := s.exec(ctx, `DELETE FROM mock_rules WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	s.cache.invalidate(endpointID)
	return nil
}

// RulesForEndpoint returns all rules belonging to an endpoint, served from
// the TTL cache when fresh (spec.md §4.5).
func (s *Store) RulesForEndpoint(ctx context.Context, endpointID string) ([]model.Rule, error) {
	if cached, ok := s.cache.get(endpointID); ok {
		return cached, nil
	}

	rows, err := s.query(ctx, `
		SELECT id, endpoint_id, name, priority, match_method, match_path, match_headers,
		       response_body, response_headers, response_status, delay_ms, active, created_at, updated_at
		FROM mock_rules WHERE endpoint_id = ?
	`, endpointID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []model.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.cache.set(endpointID, out)
	return out, nil
}

// ListRulesByEndpoint is the admin-surface listing (bypasses the cache so
// admin reads always see the latest state; the cache exists solely to
// speed the request-handling hot path).
func (s *Store) ListRulesByEndpoint(ctx context.Context, endpointID string) ([]model.Rule, error) {
	rows, err := s.query(ctx, `
		SELECT id, endpoint_id, name, priority, match_method, match_path, match_headers,
		       response_body, response_headers, response_status, delay_ms, active, created_at, updated_at
		FROM mock_rules WHERE endpoint_id = ? ORDER BY created_at ASC
	`, endpointID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []model.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRule(rows *sql.Rows) (model.Rule, error) {
	var r model.Rule
	var matchHeaders, responseHeaders, created, updated string
	var active int
	err := rows.Scan(&r.ID, &r.EndpointID, &r.Name, &r.Priority, &r.MatchMethod, &r.MatchPath, &matchHeaders,
		&r.ResponseBody, &responseHeaders, &r.ResponseStatus, &r.DelayMS, &active, &created, &updated)
	if err != nil {
		return model.Rule{}, err
	}
	_ = json.Unmarshal([]byte(matchHeaders), &r.MatchHeaders)
	_ = json.Unmarshal([]byte(responseHeaders), &r.ResponseHeaders)
	r.Active = active != 0
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)
	return r, nil
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
