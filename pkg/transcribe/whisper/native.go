// This file contains the Native implementation backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/nferro/voxloom/pkg/audio"
	"github.com/nferro/voxloom/pkg/transcribe"
)

// Compile-time assertion that Native satisfies transcribe.Local.
var _ transcribe.Local = (*Native)(nil)

// Native implements [transcribe.Local] using the whisper.cpp Go bindings
// (CGO), eliminating HTTP overhead entirely. The model is loaded once at
// construction and shared across all calls; each Transcribe call creates its
// own whisper context, so concurrent calls do not interfere.
type Native struct {
	model    whisperlib.Model
	language string

	// Guards model.Close against in-flight inference.
	mu     sync.RWMutex
	closed bool
}

// NativeOption is a functional option for configuring a Native transcriber.
type NativeOption func(*Native)

// WithNativeLanguage sets the language code for transcription (e.g., "en",
// "de"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(n *Native) { n.language = lang }
}

// NewNative loads the whisper.cpp model from modelPath. The caller must call
// Close when the transcriber is no longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*Native, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	n := &Native{
		model:    model,
		language: transcribe.DefaultLanguage,
	}
	for _, o := range opts {
		o(n)
	}
	return n, nil
}

// Close releases the whisper model. Transcribe calls after Close fail.
func (n *Native) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	return n.model.Close()
}

// Transcribe runs whisper.cpp inference on the canonical waveform using a
// fresh context and returns the concatenated segment text.
func (n *Native) Transcribe(ctx context.Context, w audio.Waveform) (transcribe.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return transcribe.Candidate{}, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	if len(w) == 0 {
		return transcribe.NewCandidate("", n.language, transcribe.SourceLocal), nil
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return transcribe.Candidate{}, errors.New("whisper: transcriber is closed")
	}

	// Each whisper context is NOT thread-safe, but the model can be shared
	// across goroutines.
	wctx, err := n.model.NewContext()
	if err != nil {
		return transcribe.Candidate{}, fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(n.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", n.language, "error", err)
	}

	if err := wctx.Process([]float32(w), nil, nil, nil); err != nil {
		return transcribe.Candidate{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return transcribe.Candidate{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return transcribe.NewCandidate(strings.Join(parts, " "), n.language, transcribe.SourceLocal), nil
}
