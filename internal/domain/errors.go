package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job cannot be found in the store
	ErrJobNotFound = errors.New("job not found")

	// ErrDuplicateID is returned when a generated job id is already taken
	ErrDuplicateID = errors.New("duplicate job id")

	// ErrInvalidTransition is returned when a job is not in a state the
	// requested transition may start from
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrMaxAttemptsExceeded is returned when a transient failure happens on
	// the last allowed attempt
	ErrMaxAttemptsExceeded = errors.New("max attempts exceeded")

	// ErrPermanentFailure wraps job failures that must not be retried
	ErrPermanentFailure = errors.New("permanent job failure")
)

// ValidationKind classifies why a words batch was rejected
type ValidationKind int

const (
	// EmptyInput means the batch was missing, not a list, or empty
	EmptyInput ValidationKind = iota + 1
	// NonStringElement means the batch contained something other than a string
	NonStringElement
)

// ValidationError is returned when submitted words are rejected
type ValidationError struct {
	Kind ValidationKind
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case EmptyInput:
		return "Words array cannot be empty"
	case NonStringElement:
		return "All words must be strings"
	default:
		return fmt.Sprintf("invalid words (kind %d)", int(e.Kind))
	}
}

// NewValidationError creates a validation error of the given kind
func NewValidationError(kind ValidationKind) error {
	return &ValidationError{Kind: kind}
}

// IsValidationError reports whether err is a ValidationError, optionally of
// a specific kind (pass 0 to match any kind)
func IsValidationError(err error, kind ValidationKind) bool {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	return kind == 0 || ve.Kind == kind
}

// RetryableError wraps infrastructure errors for which the queue delivery
// should be requeued as-is
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
