package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when a bill or receipt does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSubmitInFlight is returned when a submission is already outstanding
	// for the same form. The second call is ignored.
	ErrSubmitInFlight = errors.New("submission already in flight")
)

// ValidationError is a user-correctable input problem. It is recovered
// locally: the user is warned and may retry immediately.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError builds a ValidationError for field, using err's text as reason.
func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Reason: err.Error(), Err: err}
}

// SubmissionError reports that the persistence collaborator rejected a bill.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return "submit bill: " + e.Err.Error()
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// ListFetchError reports that the bill list could not be loaded. Message is
// shown verbatim in the error view.
type ListFetchError struct {
	Err error
}

func (e *ListFetchError) Error() string {
	return e.Err.Error()
}

func (e *ListFetchError) Unwrap() error { return e.Err }
