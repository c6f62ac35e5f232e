package resilience

import (
	"context"

	"github.com/nferro/voxloom/pkg/transcribe"
)

// Compile-time interface check.
var _ transcribe.Validator = (*Validator)(nil)

// Validator wraps a [transcribe.Validator] with a circuit breaker. While the
// breaker is open, Validate fails fast with [ErrCircuitOpen], which the
// transcription pipeline absorbs by keeping the local transcript.
type Validator struct {
	inner   transcribe.Validator
	breaker *CircuitBreaker
}

// NewValidator wraps inner with a breaker built from cfg.
func NewValidator(inner transcribe.Validator, cfg CircuitBreakerConfig) *Validator {
	if cfg.Name == "" {
		cfg.Name = "validator"
	}
	return &Validator{
		inner:   inner,
		breaker: NewCircuitBreaker(cfg),
	}
}

// Validate implements transcribe.Validator.
func (v *Validator) Validate(ctx context.Context, raw []byte) (string, error) {
	var text string
	err := v.breaker.Execute(func() error {
		var err error
		text, err = v.inner.Validate(ctx, raw)
		return err
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// Configured reports whether the wrapped validator has credentials.
func (v *Validator) Configured() bool {
	return v.inner.Configured()
}

// State exposes the breaker state for readiness reporting.
func (v *Validator) State() State {
	return v.breaker.State()
}
