package services

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means the request carried no credential at all.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInvalidCredential means a credential was presented but could not be verified.
	ErrInvalidCredential = errors.New("invalid or expired credential")
	// ErrInvalidCredentials is a failed username/password login.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrNotFound covers both missing tasks and tasks owned by someone else.
	ErrNotFound = errors.New("task not found")
	// ErrUsernameTaken is a registration conflict.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrStorage wraps any persistence failure not classified above.
	ErrStorage = errors.New("storage failure")
)

// ValidationError reports bad input with the specific reason.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Reason
}

func newValidationError(reason string) error {
	return &ValidationError{Reason: reason}
}

// IsValidationError reports whether err is, or wraps, a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
