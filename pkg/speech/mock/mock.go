// Package mock provides a test double for the speech.Synthesizer interface.
package mock

import (
	"context"
	"sync"

	"github.com/nferro/voxloom/pkg/speech"
)

// Compile-time interface check.
var _ speech.Synthesizer = (*Synthesizer)(nil)

// SynthesizeCall records a single invocation of Synthesizer.Synthesize.
type SynthesizeCall struct {
	Text     string
	Language string
}

// Synthesizer is a mock implementation of speech.Synthesizer.
type Synthesizer struct {
	mu sync.Mutex

	// Audio is returned from Synthesize when Err is nil.
	Audio []byte

	// Err, if non-nil, is returned as the error from Synthesize.
	Err error

	// Calls records every invocation.
	Calls []SynthesizeCall
}

// Synthesize records the call and returns Audio, Err.
func (s *Synthesizer) Synthesize(_ context.Context, text, language string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, SynthesizeCall{Text: text, Language: language})
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Audio, nil
}

// CallCount returns the number of recorded calls. Thread-safe.
func (s *Synthesizer) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}
