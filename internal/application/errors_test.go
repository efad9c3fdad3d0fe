package application

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"title": "title is required"}}
	if got := withFields.Error(); got != "validation failed" {
		t.Fatalf("expected generic message, got %q", got)
	}
	if !withFields.HasErrors() || (&ValidationError{}).HasErrors() {
		t.Fatalf("unexpected HasErrors result")
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("start", "start is required")
	other := &ValidationError{FieldErrors: map[string]string{"category": "unknown category"}}
	base.merge(other)
	base.merge(nil)

	if len(base.FieldErrors) != 2 || base.FieldErrors["category"] != "unknown category" {
		t.Fatalf("unexpected merged fields: %v", base.FieldErrors)
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrNotFound, "not_found"},
		{fmt.Errorf("wrapped: %w", ErrAlreadyExists), "already_exists"},
		{ErrUnparseable, "unparseable"},
		{ErrNotConfigured, "not_configured"},
		{&ValidationError{FieldErrors: map[string]string{"title": "required"}}, "validation"},
		{errors.New("boom"), "unexpected"},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
