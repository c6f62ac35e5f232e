// Package coqui provides a local Coqui TTS-backed [speech.Synthesizer] that
// targets the standard Coqui TTS server (ghcr.io/coqui-ai/tts-cpu). Synthesis
// is performed via GET /api/tts with URL query parameters; the server returns
// a complete WAV file per utterance.
//
// Typical usage:
//
//	s := coqui.New("http://localhost:5002",
//	    coqui.WithSpeaker("p225"),
//	    coqui.WithTimeout(15*time.Second),
//	)
//	wav, err := s.Synthesize(ctx, "Hi there!", "en")
package coqui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nferro/voxloom/pkg/speech"
)

const (
	defaultTimeout = 30 * time.Second
	apiTTSEndpoint = "/api/tts"
)

// Compile-time interface assertion.
var _ speech.Synthesizer = (*Synthesizer)(nil)

// Option is a functional option for configuring a Synthesizer.
type Option func(*Synthesizer)

// WithSpeaker sets the speaker_id query parameter for multi-speaker models.
// Empty (the default) uses the server's default voice.
func WithSpeaker(id string) Option {
	return func(s *Synthesizer) { s.speakerID = id }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(s *Synthesizer) { s.httpClient.Timeout = d }
}

// Synthesizer implements [speech.Synthesizer] against a standard Coqui TTS
// server. Safe for concurrent use.
type Synthesizer struct {
	serverURL  string
	speakerID  string
	httpClient *http.Client
}

// New creates a Synthesizer for the Coqui server at serverURL
// (e.g., "http://localhost:5002").
func New(serverURL string, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		serverURL:  serverURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Synthesize performs a single GET /api/tts request and returns the WAV bytes.
func (s *Synthesizer) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("coqui: text must not be empty")
	}

	params := url.Values{}
	params.Set("text", text)
	if s.speakerID != "" {
		params.Set("speaker_id", s.speakerID)
	}
	if language != "" {
		params.Set("language_id", language)
	}

	endpoint := s.serverURL + apiTTSEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read response body: %w", err)
	}
	return data, nil
}
