package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store. This is the generic version of the entity-specific not found
	// errors below.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g. a second session for the same day).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// Entity-specific "not found" errors

	ErrLearnerNotFound    = fmt.Errorf("%w: learner", ErrNotFound)
	ErrSessionNotFound    = fmt.Errorf("%w: session", ErrNotFound)
	ErrMessageNotFound    = fmt.Errorf("%w: message", ErrNotFound)
	ErrGradeNotFound      = fmt.Errorf("%w: grade", ErrNotFound)
	ErrReviewItemNotFound = fmt.Errorf("%w: review item", ErrNotFound)
	ErrPromptNotFound     = fmt.Errorf("%w: daily prompt", ErrNotFound)
	ErrSummaryNotFound    = fmt.Errorf("%w: weekly summary", ErrNotFound)

	// ErrPromptAlreadyAnswered is returned when marking a prompt answered
	// that has already been consumed. Prompts are answered at most once.
	ErrPromptAlreadyAnswered = errors.New("daily prompt already answered")
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreError is a custom error type for store-specific errors with
// additional context.
type StoreError struct {
	Entity    string // The entity type (e.g. "learner", "grade")
	Operation string // The operation that failed (e.g. "create", "update")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation,
// message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
