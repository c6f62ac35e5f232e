package exchange_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/nferro/voxloom/internal/exchange"
	"github.com/nferro/voxloom/internal/memory"
	"github.com/nferro/voxloom/internal/observe"
	"github.com/nferro/voxloom/internal/pipeline"
	"github.com/nferro/voxloom/internal/resolver"
	"github.com/nferro/voxloom/pkg/audio"
	speechmock "github.com/nferro/voxloom/pkg/speech/mock"
	"github.com/nferro/voxloom/pkg/transcribe"
	"github.com/nferro/voxloom/pkg/transcribe/mock"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func testWAV(t *testing.T) []byte {
	t.Helper()
	wave := make(audio.Waveform, audio.CanonicalRate/10)
	return audio.EncodeWaveformWAV(wave)
}

// newExchanger wires an offline exchanger around a scripted local
// transcriber and a fresh in-memory store.
func newExchanger(t *testing.T, local *mock.Local, store memory.Store, opts ...exchange.Option) *exchange.Exchanger {
	t.Helper()
	m := testMetrics(t)
	p := pipeline.New(local, pipeline.WithMetrics(m))
	r := resolver.New(store, resolver.WithMetrics(m))
	opts = append(opts, exchange.WithMetrics(m))
	return exchange.New(p, r, opts...)
}

func TestVoiceExchange(t *testing.T) {
	local := &mock.Local{
		Candidate: transcribe.NewCandidate("hello assistant", "en", transcribe.SourceLocal),
	}
	store := memory.NewMemStore()
	ex := newExchanger(t, local, store)

	res, err := ex.Voice(context.Background(), testWAV(t))
	if err != nil {
		t.Fatalf("Voice: %v", err)
	}
	if res.Transcript != "hello assistant" {
		t.Errorf("Transcript = %q", res.Transcript)
	}
	if res.Response != "Hi there! How can I help you?" {
		t.Errorf("Response = %q", res.Response)
	}
	if res.Source != transcribe.SourceLocal {
		t.Errorf("Source = %q, want local", res.Source)
	}
	if store.Len() != 1 {
		t.Errorf("store rows = %d, want 1", store.Len())
	}
}

func TestVoiceEmptyTranscriptAbandons(t *testing.T) {
	local := &mock.Local{
		Candidate: transcribe.NewCandidate("   ", "en", transcribe.SourceLocal),
	}
	store := memory.NewMemStore()
	synth := &speechmock.Synthesizer{Audio: []byte("wav")}
	ex := newExchanger(t, local, store, exchange.WithSynthesizer(synth))

	res, err := ex.Voice(context.Background(), testWAV(t))
	if err != nil {
		t.Fatalf("Voice: %v", err)
	}
	if res.Transcript != "" || res.Response != "" || res.Audio != nil {
		t.Errorf("Result = %+v, want zero", res)
	}
	if store.Len() != 0 {
		t.Errorf("store rows = %d, want 0 for abandoned exchange", store.Len())
	}
	if synth.CallCount() != 0 {
		t.Errorf("synthesizer called %d times for abandoned exchange", synth.CallCount())
	}
}

func TestVoiceSynthesizesResponse(t *testing.T) {
	local := &mock.Local{
		Candidate: transcribe.NewCandidate("danke schön", "de", transcribe.SourceLocal),
	}
	synth := &speechmock.Synthesizer{Audio: []byte("RIFF-ish")}
	ex := newExchanger(t, local, memory.NewMemStore(), exchange.WithSynthesizer(synth))

	res, err := ex.Voice(context.Background(), testWAV(t))
	if err != nil {
		t.Fatalf("Voice: %v", err)
	}
	if !bytes.Equal(res.Audio, []byte("RIFF-ish")) {
		t.Errorf("Audio = %q, want synthesized bytes", res.Audio)
	}
	if synth.CallCount() != 1 {
		t.Fatalf("synthesizer calls = %d, want 1", synth.CallCount())
	}
	call := synth.Calls[0]
	if call.Text != res.Response {
		t.Errorf("synthesized text = %q, want response %q", call.Text, res.Response)
	}
	if call.Language != "de" {
		t.Errorf("synthesis language = %q, want detected %q", call.Language, "de")
	}
}

func TestVoiceSynthesisFailureIsNotFatal(t *testing.T) {
	local := &mock.Local{
		Candidate: transcribe.NewCandidate("hello", "en", transcribe.SourceLocal),
	}
	synth := &speechmock.Synthesizer{Err: errors.New("tts server down")}
	ex := newExchanger(t, local, memory.NewMemStore(), exchange.WithSynthesizer(synth))

	res, err := ex.Voice(context.Background(), testWAV(t))
	if err != nil {
		t.Fatalf("Voice: %v", err)
	}
	if res.Response == "" {
		t.Error("Response empty after synthesis failure")
	}
	if res.Audio != nil {
		t.Errorf("Audio = %q, want nil after synthesis failure", res.Audio)
	}
}

func TestTextExchange(t *testing.T) {
	store := memory.NewMemStore()
	ex := newExchanger(t, &mock.Local{}, store)

	res, err := ex.Text(context.Background(), "what is your name")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if res.Response != "I'm your hybrid voice assistant." {
		t.Errorf("Response = %q", res.Response)
	}
	if res.Language != "en" {
		t.Errorf("Language = %q, want en", res.Language)
	}
	if store.Len() != 1 {
		t.Errorf("store rows = %d, want 1", store.Len())
	}
}

func TestTextEmptyInput(t *testing.T) {
	store := memory.NewMemStore()
	ex := newExchanger(t, &mock.Local{}, store)

	res, err := ex.Text(context.Background(), "")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if res.Response != "" {
		t.Errorf("Response = %q, want empty", res.Response)
	}
	if store.Len() != 0 {
		t.Errorf("store rows = %d, want 0", store.Len())
	}
}
