package models

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionOpen is returned when a join arrives for a member who is already tracked
	ErrSessionOpen = errors.New("voice session already open")

	// ErrForbidden is returned when a member may not modify a calendar event
	ErrForbidden = errors.New("only the event author or a bot administrator can change this event")
)

// ValidationError represents invalid user input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError for the given field
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError represents a missing entity
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Kind)
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// IsValidation reports whether err is a validation failure meant for the user
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrForbidden)
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// NotifyResult is the outcome of a best-effort notification.
// Callers are free to ignore it.
type NotifyResult struct {
	Delivered bool
	Err       error
}

// NotifyOK returns a successful NotifyResult
func NotifyOK() NotifyResult {
	return NotifyResult{Delivered: true}
}

// NotifyFailed returns a NotifyResult carrying err
func NotifyFailed(err error) NotifyResult {
	return NotifyResult{Err: err}
}

// NotifySkipped returns a NotifyResult for a notification that had nowhere to go
func NotifySkipped() NotifyResult {
	return NotifyResult{}
}
