// Package domain contains the core business types for Warden.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations and resource failures.
// Authentication and authorization failures are NOT errors: they are ordinary
// boolean outcomes returned by the services.

var (
	// ===========================================
	// Validation Errors
	// ===========================================

	// ErrBadUsername indicates the username failed shape validation.
	ErrBadUsername = errors.New("username must be 9-30 characters of letters, dots or underscores")

	// ErrBadPassword indicates the password failed shape validation.
	ErrBadPassword = errors.New("password does not meet requirements")

	// ErrBadAccountLevel indicates the account level is not a defined value.
	ErrBadAccountLevel = errors.New("account level is not a defined value")

	// ===========================================
	// Integrity Errors
	// ===========================================

	// ErrDuplicateUsername indicates the datastore rejected a second row with the same username.
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ===========================================
	// Hashing Errors
	// ===========================================

	// ErrHashingUnavailable indicates the hashing primitive could not produce a valid hash.
	ErrHashingUnavailable = errors.New("password hashing unavailable")

	// ===========================================
	// Resource Errors
	// ===========================================

	// ErrPoolExhausted indicates no connection became free before the acquire
	// timeout, or the wait queue was full.
	ErrPoolExhausted = errors.New("connection pool exhausted")

	// ErrDatastoreUnavailable indicates the datastore failed a round trip.
	ErrDatastoreUnavailable = errors.New("datastore unavailable")
)

// ErrorCode is the machine-readable code surfaced to the router layer.
type ErrorCode string

const (
	CodeBadUser              ErrorCode = "BAD_USER"
	CodeBadPassword          ErrorCode = "BAD_PASSWORD"
	CodeBadAccountLevel      ErrorCode = "BAD_ACCOUNT_LEVEL"
	CodeHashError            ErrorCode = "HASH_ERROR"
	CodeDuplicateUsername    ErrorCode = "DUPLICATE_USERNAME"
	CodeRecordNotFound       ErrorCode = "REC_NOT_FOUND"
	CodePoolExhausted        ErrorCode = "POOL_EXHAUSTED"
	CodeDatastoreUnavailable ErrorCode = "DATASTORE_UNAVAILABLE"
	CodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// CodeOf maps an error to its upward error code.
// Pool exhaustion is checked before datastore failures because a backend may
// wrap both.
func CodeOf(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrBadUsername):
		return CodeBadUser
	case errors.Is(err, ErrBadPassword):
		return CodeBadPassword
	case errors.Is(err, ErrBadAccountLevel):
		return CodeBadAccountLevel
	case errors.Is(err, ErrHashingUnavailable):
		return CodeHashError
	case errors.Is(err, ErrDuplicateUsername):
		return CodeDuplicateUsername
	case errors.Is(err, ErrUserNotFound):
		return CodeRecordNotFound
	case errors.Is(err, ErrPoolExhausted):
		return CodePoolExhausted
	case errors.Is(err, ErrDatastoreUnavailable):
		return CodeDatastoreUnavailable
	default:
		return CodeInternal
	}
}

// IsValidation reports whether err was rejected before any I/O.
func IsValidation(err error) bool {
	return errors.Is(err, ErrBadUsername) ||
		errors.Is(err, ErrBadPassword) ||
		errors.Is(err, ErrBadAccountLevel)
}

// IsResource reports whether err is a pool or datastore failure.
func IsResource(err error) bool {
	return errors.Is(err, ErrPoolExhausted) || errors.Is(err, ErrDatastoreUnavailable)
}

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., a username).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}
