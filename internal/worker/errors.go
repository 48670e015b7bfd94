package worker

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// The job error taxonomy. Every variant decides its retryability at
// compile time through the Retryable method; the worker never inspects
// error strings to classify an outcome.

type retryClassifier interface {
	Retryable() bool
}

// IsRetryable reports the retryability classification of err, walking the
// wrap chain. Unclassified errors are treated as non-retryable.
func IsRetryable(err error) bool {
	var rc retryClassifier
	if errors.As(err, &rc) {
		return rc.Retryable()
	}
	return false
}

// ParseError is a malformed job frame. Never retryable: replaying the same
// bytes cannot succeed.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string   { return fmt.Sprintf("malformed job payload: %v", e.Err) }
func (e *ParseError) Unwrap() error   { return e.Err }
func (e *ParseError) Retryable() bool { return false }

// FieldError is one field-level validation failure.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e FieldError) String() string { return e.Field + ": " + e.Reason }

// ValidationError carries the specific field errors, not just "invalid".
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return "job validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Retryable() bool { return false }

// FieldMessages flattens the field errors for the job result.
func (e *ValidationError) FieldMessages() []string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.String()
	}
	return msgs
}

// ContactNotFoundError is a job addressed to an unknown contact.
type ContactNotFoundError struct {
	ContactID int64
}

func (e *ContactNotFoundError) Error() string   { return fmt.Sprintf("contact %d not found", e.ContactID) }
func (e *ContactNotFoundError) Retryable() bool { return false }

// PhoneNumberNotFoundError is a contact without a usable phone number.
type PhoneNumberNotFoundError struct {
	ContactID int64
}

func (e *PhoneNumberNotFoundError) Error() string {
	return fmt.Sprintf("contact %d has no phone number", e.ContactID)
}
func (e *PhoneNumberNotFoundError) Retryable() bool { return false }

// TimeoutError is a job that exceeded its wall-clock budget.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string   { return fmt.Sprintf("job timed out after %s", e.Timeout) }
func (e *TimeoutError) Retryable() bool { return true }

// TransportError is a store or queue connectivity failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string   { return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error   { return e.Err }
func (e *TransportError) Retryable() bool { return true }
