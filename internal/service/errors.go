package service

import (
	"errors"
	"fmt"
)

// Common service-level errors.
var (
	// ErrVoiceCapReached is returned when the learner has already spent
	// today's voice-turn allowance.
	ErrVoiceCapReached = errors.New("daily voice turn limit reached")

	// ErrAudioTooLong is returned when a voice turn exceeds the maximum
	// allowed audio duration.
	ErrAudioTooLong = errors.New("audio exceeds maximum duration")

	// ErrEmptyTurn is returned when a turn carries no usable content.
	ErrEmptyTurn = errors.New("turn content is empty")

	// ErrWipeNotConfirmed is returned when a data wipe is requested
	// without the confirmation step.
	ErrWipeNotConfirmed = errors.New("wipe requires explicit confirmation")

	// ErrInvalidSetting is returned when a settings update carries a
	// value outside the accepted set.
	ErrInvalidSetting = errors.New("invalid setting value")
)

// ServiceError is a structured error type for service operations.
// It wraps an underlying error with operation context.
type ServiceError struct {
	// Operation is the name of the operation that failed.
	Operation string

	// Message is a human-readable description of the error.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As chains.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
