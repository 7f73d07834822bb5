// Package model holds the data types persisted and served by a tenant's
// mock engine: endpoints, rules, and request logs.
package model

import "time"

// Endpoint is the coarse-grained routing target for a tenant.
type Endpoint struct {
	ID           string    `json:"id" db:"id"`
	Path         string    `json:"path" db:"path"`
	ResponseBody string    `json:"response_body" db:"response_body"`
	StatusCode   int       `json:"status_code" db:"status_code"`
	DelayMS      int       `json:"delay_ms" db:"delay_ms"`
	RateLimit    int       `json:"rate_limit" db:"rate_limit"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Rule is a conditional override layered on top of an endpoint's defaults.
type Rule struct {
	ID              string            `json:"id" db:"id"`
	EndpointID      string            `json:"endpoint_id" db:"endpoint_id"`
	Name            string            `json:"name,omitempty" db:"name"`
	Priority        int               `json:"priority" db:"priority"`
	MatchMethod     string            `json:"match_method,omitempty" db:"match_method"`
	MatchPath       string            `json:"match_path,omitempty" db:"match_path"`
	MatchHeaders    map[string]string `json:"match_headers,omitempty" db:"-"`
	ResponseBody    string            `json:"response_body" db:"response_body"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty" db:"-"`
	ResponseStatus  int               `json:"response_status" db:"response_status"`
	DelayMS         int               `json:"delay_ms" db:"delay_ms"`
	Active          bool              `json:"active" db:"active"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}

// RequestLog is the immutable record of a served request.
type RequestLog struct {
	ID              string    `json:"id" db:"id"`
	EndpointID      string    `json:"endpoint_id" db:"endpoint_id"`
	Method          string    `json:"method" db:"method"`
	Path            string    `json:"path" db:"path"`
	Headers         string    `json:"headers" db:"headers"`
	Body            *string   `json:"body" db:"body"`
	Timestamp       time.Time `json:"timestamp" db:"timestamp"`
	MatchedRuleID   *string   `json:"matched_rule_id" db:"matched_rule_id"`
	MatchedRuleName *string   `json:"matched_rule_name" db:"matched_rule_name"`
	PathParams      *string   `json:"path_params" db:"path_params"`
	ResponseStatus  int       `json:"response_status" db:"response_status"`
	ResponseTimeMS  int64     `json:"response_time_ms" db:"response_time_ms"`
}
