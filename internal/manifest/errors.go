package manifest

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Parse. Use errors.Is to match.
var (
	// ErrMissingField indicates a required field was absent, either at the
	// top level or inside a [bundles.<alias>] entry.
	ErrMissingField = errors.New("manifest: missing required field")

	// ErrMalformed indicates a syntax error or a field with the wrong shape
	// (e.g. bundles not a table).
	ErrMalformed = errors.New("manifest: malformed")
)

// MissingFieldError reports which required field was absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("manifest: missing required field %q", e.Field)
}

func (e *MissingFieldError) Unwrap() error {
	return ErrMissingField
}

// MalformedError reports a structural or syntax problem, naming the
// offending key when known.
type MalformedError struct {
	Key    string
	Reason string
}

func (e *MalformedError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("manifest: malformed: %s", e.Reason)
	}
	return fmt.Sprintf("manifest: malformed key %q: %s", e.Key, e.Reason)
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformed
}
