package obs

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingEssentialField aborts a run: rows can no longer be attributed
	// to blocks or grid cells.
	ErrMissingEssentialField = errors.New("missing essential field")

	// ErrMissingOptionalField narrows coverage only; callers degrade to an
	// empty or default category and continue.
	ErrMissingOptionalField = errors.New("missing optional field")

	// ErrOutOfRange marks a computed bin outside the valid grid window.
	ErrOutOfRange = errors.New("index out of range")

	// ErrExternalLookup marks a failed reference-dataset query.
	ErrExternalLookup = errors.New("external lookup failed")
)

// FieldError reports which role/column triggered a field error.
type FieldError struct {
	Role   Role
	Column string
	Err    error
}

func (e *FieldError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%v: no column mapped for role %q", e.Err, e.Role)
	}
	return fmt.Sprintf("%v: role %q (column %q)", e.Err, e.Role, e.Column)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
