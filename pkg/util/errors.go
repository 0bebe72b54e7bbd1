// Package util provides logging, shared error types and small helpers.
package util

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRequest   = errors.New("invalid run request")
	ErrValidationFailed = errors.New("validation failed")
	ErrNoCredentials    = errors.New("no credentials available")
	ErrEmptyList        = errors.New("list is empty")
)

// ValidationError carries every problem found in one pass, so an operator
// fixes a request file once instead of once per field.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return "validation failed:\n  - " + strings.Join(e.Errors, "\n  - ")
}

// Unwrap makes errors.Is(err, ErrValidationFailed) hold.
func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder accumulates problems; the zero value is ready to use.
type ValidationBuilder struct {
	errors []string
}

// Add records message when ok is false.
func (v *ValidationBuilder) Add(ok bool, message string) *ValidationBuilder {
	if !ok {
		v.errors = append(v.errors, message)
	}
	return v
}

func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// Merge records err. A nested ValidationError contributes each of its
// messages rather than one combined line.
func (v *ValidationBuilder) Merge(err error) *ValidationBuilder {
	if err == nil {
		return v
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		v.errors = append(v.errors, ve.Errors...)
		return v
	}
	v.errors = append(v.errors, err.Error())
	return v
}

func (v *ValidationBuilder) HasErrors() bool { return len(v.errors) > 0 }

// Build returns nil when nothing was recorded.
func (v *ValidationBuilder) Build() error {
	if !v.HasErrors() {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

// ListFileError reports a host, command or matrix file that could not be used.
type ListFileError struct {
	Path string
	Err  error
}

func (e *ListFileError) Error() string {
	return fmt.Sprintf("list file %s: %v", e.Path, e.Err)
}

func (e *ListFileError) Unwrap() error { return e.Err }
