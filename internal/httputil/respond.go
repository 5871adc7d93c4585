// Package httputil provides small helpers for the JSON request/response envelope.
package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the failure envelope: success=false plus a human-readable
// error string. Internal details never appear here.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the failure envelope with the given status and message.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Success: false, Error: message})
}

// ParseJSONOrError decodes the request body into v. On a malformed body it
// writes a 400 failure envelope and returns false.
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
