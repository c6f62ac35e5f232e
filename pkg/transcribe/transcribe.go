// Package transcribe defines the provider abstractions of the two-stage
// transcription setup: an always-available local transcriber operating on a
// normalized waveform, and an optional remote validator operating on the
// original encoded audio bytes.
//
// Implementations must be safe for concurrent use.
package transcribe

import (
	"context"
	"strings"

	"github.com/nferro/voxloom/pkg/audio"
)

// DefaultLanguage is assumed when a transcriber does not report a language.
const DefaultLanguage = "en"

// Source identifies which transcriber produced a candidate.
type Source string

const (
	// SourceLocal marks a candidate produced by the offline model.
	SourceLocal Source = "local"

	// SourceRemote marks a candidate produced by the remote transcription API.
	SourceRemote Source = "remote"
)

// Candidate is a single transcription result. Text is trimmed of surrounding
// whitespace; Language is a short code and never empty (see [NewCandidate]).
type Candidate struct {
	Text     string
	Language string
	Source   Source
}

// NewCandidate builds a Candidate with the trimming and language-default
// invariants applied.
func NewCandidate(text, language string, source Source) Candidate {
	if language == "" {
		language = DefaultLanguage
	}
	return Candidate{
		Text:     strings.TrimSpace(text),
		Language: language,
		Source:   source,
	}
}

// Local is the offline speech-to-text model abstraction. Transcribe never
// performs network access beyond a loopback model server; it is always
// invoked, regardless of connectivity.
type Local interface {
	// Transcribe converts a canonical waveform into a [Candidate] with
	// Source == SourceLocal. The waveform may be empty, in which case the
	// candidate's Text is empty.
	Transcribe(ctx context.Context, w audio.Waveform) (Candidate, error)
}

// Validator is the optional remote transcription API abstraction. It consumes
// the original encoded audio bytes rather than the normalized waveform: the
// remote service does its own decoding.
type Validator interface {
	// Validate transcribes raw encoded audio and returns the remote text.
	// Errors (network, auth, timeout) are returned to the pipeline, which
	// absorbs them; they never abort an exchange.
	Validate(ctx context.Context, raw []byte) (string, error)

	// Configured reports whether the validator has credentials and may be
	// invoked at all. An unconfigured validator is skipped without a
	// connectivity probe.
	Configured() bool
}
