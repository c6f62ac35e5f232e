// Package mock provides test doubles for the transcribe package interfaces.
//
// Use Local to return a controlled candidate and inspect the waveforms it was
// given. Use Validator to script remote results and failures.
package mock

import (
	"context"
	"sync"

	"github.com/nferro/voxloom/pkg/audio"
	"github.com/nferro/voxloom/pkg/transcribe"
)

// Compile-time interface checks.
var (
	_ transcribe.Local     = (*Local)(nil)
	_ transcribe.Validator = (*Validator)(nil)
)

// Local is a mock implementation of transcribe.Local.
type Local struct {
	mu sync.Mutex

	// Candidate is returned from Transcribe when Err is nil.
	Candidate transcribe.Candidate

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Calls records every waveform passed to Transcribe.
	Calls []audio.Waveform
}

// Transcribe records the call and returns Candidate, Err.
func (l *Local) Transcribe(_ context.Context, w audio.Waveform) (transcribe.Candidate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Calls = append(l.Calls, w)
	if l.Err != nil {
		return transcribe.Candidate{}, l.Err
	}
	return l.Candidate, nil
}

// CallCount returns the number of recorded Transcribe calls. Thread-safe.
func (l *Local) CallCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Calls)
}

// Validator is a mock implementation of transcribe.Validator.
type Validator struct {
	mu sync.Mutex

	// Text is returned from Validate when Err is nil.
	Text string

	// Err, if non-nil, is returned as the error from Validate.
	Err error

	// HasCredentials is what Configured reports. Defaults to false, matching
	// an unconfigured validator.
	HasCredentials bool

	// Calls records every raw audio payload passed to Validate.
	Calls [][]byte
}

// Validate records the call and returns Text, Err.
func (v *Validator) Validate(_ context.Context, raw []byte) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Calls = append(v.Calls, raw)
	if v.Err != nil {
		return "", v.Err
	}
	return v.Text, nil
}

// Configured reports HasCredentials.
func (v *Validator) Configured() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.HasCredentials
}

// CallCount returns the number of recorded Validate calls. Thread-safe.
func (v *Validator) CallCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.Calls)
}
