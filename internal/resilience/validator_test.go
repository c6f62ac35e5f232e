package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nferro/voxloom/pkg/transcribe/mock"
)

func TestValidator_PassesThrough(t *testing.T) {
	inner := &mock.Validator{Text: "hello world", HasCredentials: true}
	v := NewValidator(inner, CircuitBreakerConfig{})

	text, err := v.Validate(context.Background(), []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello world" {
		t.Errorf("text = %q, want %q", text, "hello world")
	}
	if !v.Configured() {
		t.Error("Configured() = false, want true")
	}
}

func TestValidator_OpensAfterRepeatedFailures(t *testing.T) {
	inner := &mock.Validator{Err: errTest, HasCredentials: true}
	v := NewValidator(inner, CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Hour,
	})

	_, _ = v.Validate(context.Background(), nil)
	_, _ = v.Validate(context.Background(), nil)

	if v.State() != StateOpen {
		t.Fatalf("state = %v, want open after repeated failures", v.State())
	}

	_, err := v.Validate(context.Background(), nil)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if got := inner.CallCount(); got != 2 {
		t.Errorf("inner called %d times, want 2 (open breaker fails fast)", got)
	}
}

func TestValidator_UnconfiguredDelegates(t *testing.T) {
	v := NewValidator(&mock.Validator{}, CircuitBreakerConfig{})
	if v.Configured() {
		t.Error("Configured() = true, want false")
	}
}
