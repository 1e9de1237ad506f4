package normalize

import (
	"errors"
	"fmt"
)

var (
	ErrEmpty        = errors.New("value is empty")
	ErrNotNumber    = errors.New("value is not a number")
	ErrNegative     = errors.New("value must not be negative")
	ErrBadForm      = errors.New("form must be 5 results from W, D, L")
	ErrUnknownField = errors.New("unknown field")
	ErrInconsistent = errors.New("fields are inconsistent")
)

// ValidationError reports the first field or cross-field check a record
// failed. The whole record is rejected.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func fieldError(field, value string, err error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: err.Error(), Err: err}
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
