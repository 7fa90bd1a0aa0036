package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// Envelope is the canonical JSON body every endpoint returns. Success
// responses carry Data; failures carry Errors keyed by field or "request".
type Envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Data    any                 `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// Error represents an API failure together with the HTTP status to emit.
type Error struct {
	Code    string
	Message string
	Status  int
	Fields  map[string][]string
}

// NewError constructs a new Error with the provided parameters.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    sanitize(code, 80),
		Message: sanitize(message, 512),
		Status:  status,
	}
}

// WithFields attaches per-field validation messages to the error payload.
func (e Error) WithFields(fields map[string][]string) Error {
	if len(fields) == 0 {
		return e
	}
	copied := make(map[string][]string, len(fields))
	for k, v := range fields {
		copied[k] = append([]string(nil), v...)
	}
	e.Fields = copied
	return e
}

// WriteJSON writes a success envelope with the given status and data.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, Envelope{Success: true, Data: data})
}

// WriteMessage writes a success envelope carrying only a message.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, Envelope{Success: true, Message: message})
}

// WriteError writes the structured error as a failure envelope.
func WriteError(_ context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	errors := err.Fields
	if len(errors) == 0 {
		errors = map[string][]string{"request": {err.Code}}
	}

	writeEnvelope(w, status, Envelope{
		Success: false,
		Message: err.Message,
		Errors:  errors,
	})
}

func writeEnvelope(w http.ResponseWriter, status int, envelope Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope)
}

func sanitize(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.TrimSpace(value)
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
