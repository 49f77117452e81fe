package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a lookup of an id no store knows about.
var ErrNotFound = errors.New("not found")

// ValidationError reports a malformed input: a raw record that cannot be
// normalized or an argument outside its allowed range.
type ValidationError struct {
	RecordID string // empty when the record has no usable id
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("record %q: invalid %s: %s", e.RecordID, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidStateError reports an operation attempted on an empty or illegal
// collection. Message is safe to show to users.
type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string {
	return e.Message
}

// InvalidState builds an InvalidStateError.
func InvalidState(message string) error {
	return &InvalidStateError{Message: message}
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsInvalidState reports whether err wraps an InvalidStateError.
func IsInvalidState(err error) bool {
	var se *InvalidStateError
	return errors.As(err, &se)
}
