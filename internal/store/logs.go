package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/benscrane/relay-sub000/internal/model"
)

// DefaultLogLimit and MaxLogLimit bound GET /__internal/logs per spec.md §3.
const (
	DefaultLogLimit = 50
	MaxLogLimit     = 500
)

// InsertLog appends an immutable request-log row. Logs are never mutated
// after creation.
func (s *Store) InsertLog(ctx context.Context, l model.RequestLog) (model.RequestLog, error) {
	if l.ID == "" {
		l.ID = "req_" + uuid.NewString()
	}

	_, err := s.exec(ctx, `
		INSERT INTO request_logs
		(id, endpoint_id, method, path, headers, body, timestamp, matched_rule_id, matched_rule_name,
		 path_params, response_status, response_time_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.EndpointID, l.Method, l.Path, l.Headers, l.Body, timeFormat(l.Timestamp),
		l.MatchedRuleID, l.MatchedRuleName, l.PathParams, l.ResponseStatus, l.ResponseTimeMS)
	if err != nil {
		return model.RequestLog{}, fmt.Errorf("insert log: %w", err)
	}
	return l, nil
}

// ListLogs returns logs ordered timestamp descending, optionally scoped to
// an endpoint. A non-positive limit falls back to DefaultLogLimit and a
// limit above MaxLogLimit is capped at MaxLogLimit.
func (s *Store) ListLogs(ctx context.Context, endpointID string, limit int) ([]model.RequestLog, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	if limit > MaxLogLimit {
		limit = MaxLogLimit
	}

	var rows *sql.Rows
	var err error
	if endpointID == "" {
		rows, err = s.query(ctx, `
			SELECT id, endpoint_id, method, path, headers, body, timestamp, matched_rule_id,
			       matched_rule_name, path_params, response_status, response_time_ms
			FROM request_logs ORDER BY timestamp DESC LIMIT ?
		`, limit)
	} else {
		rows, err = s.query(ctx, `
			SELECT id, endpoint_id, method, path, headers, body, timestamp, matched_rule_id,
			       matched_rule_name, path_params, response_status, response_time_ms
			FROM request_logs WHERE endpoint_id = ? ORDER BY timestamp DESC LIMIT ?
		`, endpointID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var out []model.RequestLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ClearLogs deletes logs, scoped to an endpoint if one is given, or
// tenant-wide otherwise.
func (s *Store) ClearLogs(ctx context.Context, endpointID string) error {
	var err error
	if endpointID == "" {
		_, err = s.exec(ctx, `DELETE FROM request_logs`)
	} else {
		_, err = s.exec(ctx, `DELETE FROM request_logs WHERE endpoint_id = ?`, endpointID)
	}
	if err != nil {
		return fmt.Errorf("clear logs: %w", err)
	}
	return nil
}

func scanLog(rows *sql.Rows) (model.RequestLog, error) {
	var l model.RequestLog
	var ts string
	err := rows.Scan(&l.ID, &l.EndpointID, &l.Method, &l.Path, &l.Headers, &l.Body, &ts,
		&l.MatchedRuleID, &l.MatchedRuleName, &l.PathParams, &l.ResponseStatus, &l.ResponseTimeMS)
	if err != nil {
		return model.RequestLog{}, err
	}
	l.Timestamp = parseTime(ts)
	return l, nil
}
