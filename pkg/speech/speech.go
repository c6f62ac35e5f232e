// Package speech defines the Synthesizer abstraction over text-to-speech
// backends. The core invokes a synthesizer with (text, language) after each
// resolved exchange; synthesis failures are logged, never fatal.
//
// Implementations must be safe for concurrent use.
package speech

import "context"

// Synthesizer converts response text into playable audio.
type Synthesizer interface {
	// Synthesize renders text in the given language and returns encoded
	// audio (WAV) suitable for playback by the presentation layer. language
	// is a short code such as "en"; implementations may ignore it when the
	// backend is monolingual.
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
}
