package util

import (
	"errors"
	"os"
	"strings"
	"testing"
)

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("devices are required")
		if !strings.Contains(err.Error(), "devices are required") {
			t.Errorf("Error message should contain the error: %s", err)
		}
		if !errors.Is(err, ErrValidationFailed) {
			t.Errorf("ValidationError should unwrap to ErrValidationFailed")
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("field1 is required", "field2 is invalid")
		msg := err.Error()
		if !strings.Contains(msg, "field1") || !strings.Contains(msg, "field2") {
			t.Errorf("Error message should contain all errors: %s", msg)
		}
	})
}

func TestValidationBuilder(t *testing.T) {
	t.Run("no errors", func(t *testing.T) {
		v := &ValidationBuilder{}
		v.Add(true, "this should not appear")
		if v.HasErrors() {
			t.Error("Should not have errors when all conditions are true")
		}
		if err := v.Build(); err != nil {
			t.Errorf("Build() should return nil when no errors: %v", err)
		}
	})

	t.Run("with errors", func(t *testing.T) {
		err := (&ValidationBuilder{}).
			Add(false, "first error").
			Add(true, "this passes").
			AddErrorf("formatted error: %d", 42).
			Build()
		if err == nil {
			t.Fatal("Build() should return error")
		}
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("Expected *ValidationError, got %T", err)
		}
		if len(validationErr.Errors) != 2 {
			t.Errorf("Expected 2 errors, got %d", len(validationErr.Errors))
		}
	})
}

func TestListFileError(t *testing.T) {
	err := &ListFileError{Path: "hosts.txt", Err: os.ErrNotExist}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("ListFileError should unwrap to the underlying error")
	}
	if !strings.Contains(err.Error(), "hosts.txt") {
		t.Errorf("Error message should contain path: %s", err)
	}
}

func TestValidationBuilder_Merge(t *testing.T) {
	nested := NewValidationError("confirm minutes must be positive", "at time is required")

	err := (&ValidationBuilder{}).
		Merge(nil).
		Merge(nested).
		Merge(errors.New("unknown install action \"later\"")).
		Build()

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected *ValidationError, got %T", err)
	}
	if len(ve.Errors) != 3 {
		t.Errorf("Expected nested messages flattened to 3, got %q", ve.Errors)
	}
}
