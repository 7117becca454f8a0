// Package shared contains the error taxonomy used across the domain and
// application layers. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation   = errors.New("validation error")
	ErrInvalidInput = errors.New("invalid input")

	// Sync errors. Each one is caught at the per-student boundary of a
	// sync cycle and never aborts the cycle.
	ErrRemoteUnavailable = errors.New("remote unavailable")
	ErrRemoteRejected    = errors.New("remote rejected request")
	ErrPersistence       = errors.New("persistence failure")
	ErrNotify            = errors.New("notification failure")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "student", "settings", "codeforces"
	Op      string // Operation that failed, e.g., "Reconcile", "Save"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Student domain errors
var (
	ErrStudentNotFound = NewDomainError("student", "Find", ErrNotFound, "student not found")
	ErrInvalidHandle   = NewDomainError("student", "Validate", ErrInvalidInput, "invalid Codeforces handle")
)

// Settings domain errors
var (
	ErrSettingNotFound   = NewDomainError("settings", "Find", ErrNotFound, "setting not found")
	ErrInvalidSchedule   = NewDomainError("settings", "Validate", ErrInvalidInput, "invalid cron schedule")
	ErrInvalidSettingKey = NewDomainError("settings", "Validate", ErrInvalidInput, "setting key cannot be empty")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidInput)
}

// IsRemote checks if the error came from the remote account API.
func IsRemote(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable) || errors.Is(err, ErrRemoteRejected)
}

// IsRetryable reports whether a later attempt may succeed.
// Rejections are deterministic and never retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable)
}

// Kind names the error category for logs and cycle reports.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRemoteUnavailable):
		return "remote_unavailable"
	case errors.Is(err, ErrRemoteRejected):
		return "remote_rejected"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrNotify):
		return "notify"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case IsValidation(err):
		return "validation"
	default:
		return "unknown"
	}
}
