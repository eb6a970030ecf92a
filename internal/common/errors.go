// Package common defines shared sentinel errors and random-token helpers used
// across Lockbox components. Callers should use errors.Is to match the
// sentinel values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")

	// Auth errors.
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Authorization errors.
	ErrForbidden = errors.New("forbidden")

	// Throttling.
	ErrRateLimited = errors.New("rate limited")

	// Crypto failures (key length, malformed ciphertext, tag mismatch).
	// Never exposed to clients except as a generic internal error.
	ErrCrypto = errors.New("crypto error")

	// Catch-all.
	ErrInternal = errors.New("internal error")
)

// FieldError describes a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries per-field messages for rejected input. It matches
// errors.Is(err, ErrValidation) so callers can map it uniformly.
type ValidationError struct {
	Fields []FieldError
}

// ErrValidation is the sentinel all ValidationError values unwrap to.
var ErrValidation = errors.New("validation error")

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation error"
	}
	return fmt.Sprintf("validation error: %s: %s", e.Fields[0].Field, e.Fields[0].Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Invalid appends another rejected field and returns the receiver for chaining.
func (e *ValidationError) Invalid(field, message string) *ValidationError {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
	return e
}
