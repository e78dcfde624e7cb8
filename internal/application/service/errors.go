package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound hides whether a record exists for another user
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated is returned when no caller identity is present
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrConflict is returned when the document status does not allow the operation
	ErrConflict = errors.New("document state conflict")

	// ErrExtractionUnavailable wraps extraction failures and timeouts
	ErrExtractionUnavailable = errors.New("extraction unavailable")

	// ErrRetrievalFailure is returned when every download candidate failed
	ErrRetrievalFailure = errors.New("could not download file")

	// ErrPersistence wraps store failures
	ErrPersistence = errors.New("persistence failure")
)

// ValidationError reports a bad input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
