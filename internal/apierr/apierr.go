// Package apierr defines the typed error used throughout the admin surface
// and the request handler to carry an HTTP status alongside a
// machine-readable code, adapted from the teacher's ServiceError pattern.
package apierr

import "fmt"

// Error is a structured error with an HTTP status, a machine-readable code,
// and optional extra detail fields merged into the JSON error envelope.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetail attaches an extra field to the error's JSON payload.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func new_(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// NotFound builds a 404 error.
func NotFound(message string) *Error { return new_(404, "NOT_FOUND", message) }

// BadRequest builds a 400 error.
func BadRequest(message string) *Error { return new_(400, "BAD_REQUEST", message) }

// Unauthorized builds a 401 error.
func Unauthorized(message string) *Error { return new_(401, "UNAUTHORIZED", message) }

// Conflict builds a 409 error.
func Conflict(message string) *Error { return new_(409, "CONFLICT", message) }

// Internal builds a 500 error, wrapping the cause for logging.
func Internal(message string, cause error) *Error {
	e := new_(500, "INTERNAL", message)
	e.Err = cause
	return e
}

// RateLimitExceeded builds the 429 response body mandated by spec.md §4.4.
func RateLimitExceeded(limit, retryAfterSeconds int) *Error {
	return new_(429, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded").
		WithDetail("limit", limit).
		WithDetail("retryAfter", retryAfterSeconds)
}
