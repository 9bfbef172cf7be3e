package llm

import "errors"

// Common errors returned by Coach implementations
var (
	// ErrGradingFailed is returned when a grading call fails for any general reason
	ErrGradingFailed = errors.New("failed to grade learner turn")

	// ErrInvalidResponse is returned when the model response cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the model blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during model call")

	// ErrInvalidConfig is returned when the coach configuration is invalid
	ErrInvalidConfig = errors.New("invalid coach configuration")
)
