package model

import "testing"

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Code: ErrNotFound, Message: "job 'job_123' not found"}
	want := "NOT_FOUND: job 'job_123' not found"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("job", "job_abc")
	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Message != "job 'job_abc' not found" {
		t.Errorf("Message = %q, want %q", err.Message, "job 'job_abc' not found")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("Invalid request",
		FieldError{Field: "name", Message: "required"},
		FieldError{Field: "constraints.required_network", Message: "unknown"},
	)
	if err.Code != ErrValidation {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidation)
	}
	if len(err.Details) != 2 {
		t.Fatalf("Details len = %d, want 2", len(err.Details))
	}
	if err.Details[0].Field != "name" {
		t.Errorf("Details[0].Field = %q, want name", err.Details[0].Field)
	}
}

func TestInvalidTransitionError(t *testing.T) {
	err := &InvalidTransitionError{Entity: "job", ID: "job_1", From: "SUCCEEDED", To: "RUNNING"}
	want := "invalid job state transition: SUCCEEDED -> RUNNING (entity job_1)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
