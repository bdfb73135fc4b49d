package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by version-checked updates when the stored version moved on
	ErrConflict = errors.New("version conflict")
	// ErrStoreClosed is returned by operations against a disposed store
	ErrStoreClosed = errors.New("store closed")
	// ErrSessionLoading is returned when an authorization decision is requested before
	// the session finished resolving its identity
	ErrSessionLoading = errors.New("session is still loading")
	// ErrInvalidCredentials is returned by a credential exchange that rejected the caller
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError carries field-level messages for input that failed schema constraints
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a message for field, keeping the first message seen
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

// OrNil returns nil when no field failed
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// AuthorizationError is returned when the acting identity lacks a required role
type AuthorizationError struct {
	Action   string
	Required []Role
}

func (e *AuthorizationError) Error() string {
	roles := make([]string, len(e.Required))
	for i, r := range e.Required {
		roles[i] = string(r)
	}
	return fmt.Sprintf("not authorized to %s: requires role %s", e.Action, strings.Join(roles, " or "))
}

// ExternalServiceError wraps a failure of an out-of-process collaborator
// (credential exchange, file storage, generative AI)
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// NotFoundError wraps ErrNotFound with the collection and id that were missing
func NotFoundError(collection, id string) error {
	return fmt.Errorf("%s %q: %w", collection, id, ErrNotFound)
}

// IsValidation reports whether err is or wraps a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsAuthorization reports whether err is or wraps an AuthorizationError
func IsAuthorization(err error) bool {
	var a *AuthorizationError
	return errors.As(err, &a)
}

// IsExternal reports whether err is or wraps an ExternalServiceError
func IsExternal(err error) bool {
	var x *ExternalServiceError
	return errors.As(err, &x)
}
