package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		code         ErrorCode
		message      string
		wantCategory ErrorCategory
	}{
		{"validation", ErrCodeValidation, "endpoint is not a valid URL", CategoryPermanent},
		{"duplicate", ErrCodeDuplicateAgent, "id taken", CategoryPermanent},
		{"not_found", ErrCodeNotFound, "no such agent", CategoryPermanent},
		{"degraded", ErrCodeDependencyDegraded, "embedding gateway down", CategoryTransient},
		{"conflict", ErrCodeConflict, "swept concurrently", CategoryTransient},
		{"internal", ErrCodeInternal, "internal error", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message)
			if err.Code() != tt.code {
				t.Errorf("Code() = %v, want %v", err.Code(), tt.code)
			}
			if err.Category() != tt.wantCategory {
				t.Errorf("Category() = %v, want %v", err.Category(), tt.wantCategory)
			}
			if err.Error() != tt.message {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.message)
			}
			if err.Timestamp().IsZero() {
				t.Error("Timestamp() should not be zero")
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	if New(ErrCodeValidation, "bad fields").Retryable() {
		t.Error("validation errors should not be retryable")
	}
	if !New(ErrCodeDependencyDegraded, "gateway down").Retryable() {
		t.Error("degraded dependency should be retryable")
	}
	// Explicit override wins over the category default.
	err := New(ErrCodeValidation, "bad fields", WithRetryable(true))
	if !err.Retryable() {
		t.Error("WithRetryable(true) should override category default")
	}
}

func TestWrapPreservesCode(t *testing.T) {
	inner := DuplicateAgent("agent-1", WithRequestID("req-9"))
	wrapped := Wrap(inner, "registering agent")

	if wrapped.Code() != ErrCodeDuplicateAgent {
		t.Errorf("Code() = %v, want DUPLICATE_AGENT", wrapped.Code())
	}
	if wrapped.AgentID() != "agent-1" {
		t.Errorf("AgentID() = %q, want agent-1", wrapped.AgentID())
	}
	if wrapped.RequestID() != "req-9" {
		t.Errorf("RequestID() = %q, want req-9", wrapped.RequestID())
	}
	if !errors.Is(wrapped, inner) {
		t.Error("wrapped error should match inner via errors.Is")
	}
}

func TestWrapContextErrors(t *testing.T) {
	err := Wrap(context.DeadlineExceeded, "embedding call")
	if err.Code() != ErrCodeTimeout {
		t.Errorf("Code() = %v, want TIMEOUT", err.Code())
	}

	err = Wrap(context.Canceled, "embedding call")
	if err.Code() != ErrCodeCanceled {
		t.Errorf("Code() = %v, want CANCELED", err.Code())
	}
}

func TestWrapUnknownError(t *testing.T) {
	err := Wrap(fmt.Errorf("disk on fire"), "checkpointing")
	if err.Code() != ErrCodeInternal {
		t.Errorf("Code() = %v, want INTERNAL", err.Code())
	}
}

func TestIs(t *testing.T) {
	err := Wrap(NotFound("agent-7"), "heartbeat")
	if !Is(err, ErrCodeNotFound) {
		t.Error("Is should find NOT_FOUND through the chain")
	}
	if Is(err, ErrCodeConflict) {
		t.Error("Is should not match a different code")
	}
	if Is(errors.New("plain"), ErrCodeNotFound) {
		t.Error("Is should not match a plain error")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(PermissionDenied("nope")); got != ErrCodePermissionDenied {
		t.Errorf("CodeOf = %v, want PERMISSION_DENIED", got)
	}
	if got := CodeOf(errors.New("plain")); got != ErrCodeInternal {
		t.Errorf("CodeOf = %v, want INTERNAL for plain errors", got)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	orig := DuplicateAgent("agent-1",
		WithRequestID("req-42"),
		WithMetadata("endpoint", "https://a.example.com"),
	)

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var decoded Error
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if decoded.Code() != orig.Code() {
		t.Errorf("Code = %v, want %v", decoded.Code(), orig.Code())
	}
	if decoded.AgentID() != "agent-1" {
		t.Errorf("AgentID = %q, want agent-1", decoded.AgentID())
	}
	if decoded.Metadata()["endpoint"] != "https://a.example.com" {
		t.Errorf("Metadata endpoint missing: %v", decoded.Metadata())
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidation, 400},
		{ErrCodeUnauthenticated, 401},
		{ErrCodePermissionDenied, 403},
		{ErrCodeNotFound, 404},
		{ErrCodeDuplicateAgent, 409},
		{ErrCodeConflict, 409},
		{ErrCodeRegistrationFailed, 422},
		{ErrCodeRateLimited, 429},
		{ErrCodeInternal, 500},
		{ErrCodeDependencyDegraded, 503},
	}
	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestToProblem(t *testing.T) {
	err := DuplicateAgent("agent-1", WithRequestID("req-1"))
	p := ToProblem(err, "/agents/agent-1")

	if p.Type != ProblemTypePrefix+"duplicate-agent" {
		t.Errorf("Type = %q", p.Type)
	}
	if p.Status != 409 {
		t.Errorf("Status = %d, want 409", p.Status)
	}
	if p.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want req-1", p.RequestID)
	}
	if p.Instance != "/agents/agent-1" {
		t.Errorf("Instance = %q", p.Instance)
	}
	if p.Timestamp == "" {
		t.Error("Timestamp should be set")
	}
}

func TestToProblemSanitizesInternal(t *testing.T) {
	err := Internal("nil deref in sweep", WithCause(errors.New("panic: runtime error")))
	p := ToProblem(err, "/agents")

	if strings.Contains(p.Detail, "nil deref") || strings.Contains(p.Detail, "panic") {
		t.Errorf("internal detail leaked: %q", p.Detail)
	}
	if p.Status != 500 {
		t.Errorf("Status = %d, want 500", p.Status)
	}
}

func TestToProblemPlainError(t *testing.T) {
	p := ToProblem(errors.New("something odd"), "")
	if p.Type != ProblemTypePrefix+"internal" {
		t.Errorf("plain errors should map to internal, got %q", p.Type)
	}
	if strings.Contains(p.Detail, "something odd") {
		t.Errorf("plain error detail leaked: %q", p.Detail)
	}
}
