package booking

import (
	"errors"
	"fmt"

	"rungroj/internal/validation"
)

const (
	FieldDates    = "dates"
	FieldLocation = "location"
)

var (
	// ErrAuthRequired routes the caller to sign-in; the form was preserved.
	ErrAuthRequired = errors.New("booking: authentication required")
	// ErrSubmitting rejects a second submit while one is in flight.
	ErrSubmitting = errors.New("booking: submission in progress")
	// ErrNotEditable rejects form edits while submitting or after success.
	ErrNotEditable   = errors.New("booking: form is not editable")
	ErrClosed        = errors.New("booking: workflow closed")
	ErrDraftNotFound = errors.New("booking: draft not found")
	ErrDraftMismatch = errors.New("booking: draft belongs to another vehicle")
)

// ValidationError is raised before any network call.
type ValidationError struct {
	Field  string
	Result validation.Result
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("booking: invalid %s: %s", e.Field, e.Reason)
}

// DateConflictError is the store's overlap signal. Message is the server text
// shown under the date fields.
type DateConflictError struct {
	Message string
	Err     error
}

func (e *DateConflictError) Error() string {
	return "booking: conflict: " + e.Message
}

func (e *DateConflictError) Unwrap() error { return e.Err }

// SubmissionError wraps any other failure of the create call.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return "booking: submit failed: " + e.Err.Error()
}

func (e *SubmissionError) Unwrap() error { return e.Err }
