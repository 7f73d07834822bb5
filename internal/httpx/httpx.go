// Package httpx provides small JSON response helpers shared by the public
// mock surface and the internal admin surface, adapted from the teacher's
// infrastructure/httputil package.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/benscrane/relay-sub000/internal/apierr"
)

// WriteJSON writes v as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorEnvelope is the flat {"error": "..."} shape spec.md's admin surface
// and not-found responses use.
type errorEnvelope struct {
	Error string `json:"error"`
}

// WriteError writes the flat {"error": message} envelope used by spec.md's
// admin and not-found error responses.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, errorEnvelope{Error: message})
}

// WriteAPIError writes an *apierr.Error's status, message, code, and any
// extra Details, all merged into one JSON object.
func WriteAPIError(w http.ResponseWriter, err *apierr.Error) {
	body := map[string]interface{}{"error": err.Message}
	if err.Code != "" {
		body["code"] = err.Code
	}
	for k, v := range err.Details {
		body[k] = v
	}
	WriteJSON(w, err.Status, body)
}

// dataEnvelope wraps a single payload under "data", the shape every admin
// CRUD response uses (spec.md §6).
type dataEnvelope struct {
	Data interface{} `json:"data"`
}

// WriteData writes {"data": v} with the given status.
func WriteData(w http.ResponseWriter, status int, v interface{}) {
	WriteJSON(w, status, dataEnvelope{Data: v})
}

// WriteSuccess writes the {"success": true} envelope used by admin delete
// endpoints.
func WriteSuccess(w http.ResponseWriter) {
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// DecodeJSON decodes the request body into v, writing a 400 error and
// returning false on failure.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		WriteError(w, http.StatusBadRequest, "request body is required")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
