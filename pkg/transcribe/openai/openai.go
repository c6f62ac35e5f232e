// Package openai provides a [transcribe.Validator] backed by the OpenAI audio
// transcription API (whisper-1).
//
// The validator is treated strictly as a text corrector: it receives the
// original encoded audio bytes and returns text only. Language detection
// stays with the local transcriber.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nferro/voxloom/pkg/transcribe"
)

// defaultTimeout bounds a single validation round-trip. Remote validation is
// best-effort; a slow API must not stall the exchange.
const defaultTimeout = 5 * time.Second

// Compile-time assertion that Validator implements transcribe.Validator.
var _ transcribe.Validator = (*Validator)(nil)

// Option is a functional option for configuring a Validator.
type Option func(*Validator)

// WithModel overrides the transcription model. Defaults to whisper-1.
func WithModel(model string) Option {
	return func(v *Validator) { v.model = model }
}

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(v *Validator) { v.baseURL = url }
}

// WithTimeout sets the per-request deadline. Defaults to 5 s.
func WithTimeout(d time.Duration) Option {
	return func(v *Validator) { v.timeout = d }
}

// Validator implements [transcribe.Validator] using the OpenAI API. Safe for
// concurrent use.
type Validator struct {
	client     oai.Client
	model      string
	baseURL    string
	timeout    time.Duration
	configured bool
}

// New constructs a Validator. An empty apiKey yields an unconfigured
// validator: Configured reports false and Validate refuses to run. This lets
// callers wire the validator unconditionally and gate invocation on
// credentials, mirroring the pipeline's should-validate check.
func New(apiKey string, opts ...Option) *Validator {
	v := &Validator{
		model:      string(oai.AudioModelWhisper1),
		timeout:    defaultTimeout,
		configured: apiKey != "",
	}
	for _, o := range opts {
		o(v)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if v.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(v.baseURL))
	}
	v.client = oai.NewClient(reqOpts...)
	return v
}

// Configured implements transcribe.Validator.
func (v *Validator) Configured() bool { return v.configured }

// Validate implements transcribe.Validator. It uploads the original encoded
// audio bytes and returns the transcribed text. All failures — auth, network,
// deadline — surface as errors for the pipeline to absorb.
func (v *Validator) Validate(ctx context.Context, raw []byte) (string, error) {
	if !v.configured {
		return "", errors.New("openai: validator has no API key")
	}
	if len(raw) == 0 {
		return "", errors.New("openai: empty audio payload")
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	resp, err := v.client.Audio.Transcriptions.New(ctx, oai.AudioTranscriptionNewParams{
		Model: oai.AudioModel(v.model),
		File:  oai.File(bytes.NewReader(raw), "audio.wav", "audio/wav"),
	})
	if err != nil {
		return "", fmt.Errorf("openai: transcription request: %w", err)
	}
	return resp.Text, nil
}
