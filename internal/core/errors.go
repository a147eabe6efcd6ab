package core

import (
	"errors"
	"strings"
)

var (
	// ErrAuthenticationRequired means the request carried no valid session.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrAccessDenied covers both a missing record and a record owned by
	// someone else; callers cannot tell the two apart.
	ErrAccessDenied = errors.New("access denied")
	// ErrValidation is wrapped by every ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned by stores when no record matches an id.
	ErrNotFound = errors.New("transaction not found")
)

// ValidationError reports a rejected operation together with the offending
// fields or the underlying cause.
type ValidationError struct {
	Op      string
	Missing []string
	Err     error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(" rejected")
	if len(e.Missing) > 0 {
		b.WriteString(": missing ")
		b.WriteString(strings.Join(e.Missing, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}
