// Package engine implements the auto-match decision logic: notification
// scheduling, auto-accept evaluation, manual response processing, expiry
// sweeping, and history aggregation.
package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by engine operations.
var (
	// ErrConflict is returned when a status transition loses an
	// optimistic-concurrency race or targets an already-terminal invitation.
	ErrConflict = errors.New("invitation already resolved or changed concurrently")

	// ErrNotFound is returned when the freelancer or invitation is unknown.
	ErrNotFound = errors.New("not found")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed input, rejected before any state change.
type ValidationError struct {
	Fields []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends a field error.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field failed validation.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// AsValidationError unwraps err into a *ValidationError if possible.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
