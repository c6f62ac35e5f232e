// Package exchange orchestrates one full assistant exchange: capture bytes
// in, response (and optionally synthesized speech) out.
//
// A voice exchange runs strictly sequentially: normalize and transcribe,
// reconcile, resolve, persist, synthesize. There is no cross-exchange
// coupling, so any number of exchanges may run concurrently; the memory
// store serializes writes itself.
package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/nferro/voxloom/internal/observe"
	"github.com/nferro/voxloom/internal/pipeline"
	"github.com/nferro/voxloom/internal/resolver"
	"github.com/nferro/voxloom/pkg/speech"
	"github.com/nferro/voxloom/pkg/transcribe"
)

// Result is the outcome of one exchange.
type Result struct {
	// Transcript is the recognized user text. Empty when nothing usable was
	// heard; the rest of the result is then empty too.
	Transcript string `json:"transcript"`

	// Language is the detected language code of the transcript.
	Language string `json:"language"`

	// Source reports which transcriber produced the transcript.
	Source transcribe.Source `json:"source,omitempty"`

	// Response is the assistant's reply.
	Response string `json:"response"`

	// Audio is the synthesized reply as WAV bytes. Nil when no synthesizer
	// is configured or synthesis failed.
	Audio []byte `json:"audio,omitempty"`
}

// Exchanger runs exchanges against a transcription pipeline and a resolver.
// Safe for concurrent use.
type Exchanger struct {
	pipeline *pipeline.Pipeline
	resolver *resolver.Resolver
	synth    speech.Synthesizer
	metrics  *observe.Metrics
}

// Option configures an [Exchanger].
type Option func(*Exchanger)

// WithSynthesizer enables spoken replies. Synthesis failures are logged and
// never fail an exchange.
func WithSynthesizer(s speech.Synthesizer) Option {
	return func(e *Exchanger) { e.synth = s }
}

// WithMetrics sets the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Exchanger) { e.metrics = m }
}

// New creates an Exchanger.
func New(p *pipeline.Pipeline, r *resolver.Resolver, opts ...Option) *Exchanger {
	e := &Exchanger{pipeline: p, resolver: r}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e
}

// Voice runs a full voice exchange on raw capture bytes.
//
// An empty transcript abandons the exchange: nothing is resolved or
// recorded and the zero Result is returned with a nil error.
func (e *Exchanger) Voice(ctx context.Context, raw []byte) (Result, error) {
	ctx, span := observe.StartSpan(ctx, "exchange.Voice")
	defer span.End()
	start := time.Now()
	defer func() {
		e.metrics.ExchangeDuration.Record(ctx, time.Since(start).Seconds())
	}()

	tr := e.pipeline.Transcribe(ctx, raw)
	if tr.Text == "" {
		observe.Logger(ctx).Info("empty transcript, exchange abandoned")
		return Result{}, nil
	}

	res := Result{Transcript: tr.Text, Language: tr.Language, Source: tr.Source}
	res.Response = e.respond(ctx, tr.Text)
	res.Audio = e.speak(ctx, res.Response, tr.Language)
	return res, nil
}

// Text runs a typed exchange, skipping transcription.
func (e *Exchanger) Text(ctx context.Context, input string) (Result, error) {
	ctx, span := observe.StartSpan(ctx, "exchange.Text")
	defer span.End()

	if input == "" {
		return Result{}, nil
	}

	res := Result{Transcript: input, Language: transcribe.DefaultLanguage}
	res.Response = e.respond(ctx, input)
	res.Audio = e.speak(ctx, res.Response, res.Language)
	return res, nil
}

// respond resolves input to a response. Persistence failures are demoted to
// a log line here; the user still gets the reply.
func (e *Exchanger) respond(ctx context.Context, input string) string {
	response, err := e.resolver.Resolve(ctx, input)
	if err != nil {
		if errors.Is(err, resolver.ErrPersist) {
			observe.Logger(ctx).Warn("exchange resolved but not persisted", "error", err)
		} else {
			observe.Logger(ctx).Error("resolve failed", "error", err)
		}
	}
	return response
}

// speak synthesizes the response, best-effort.
func (e *Exchanger) speak(ctx context.Context, text, language string) []byte {
	if e.synth == nil || text == "" {
		return nil
	}

	start := time.Now()
	wav, err := e.synth.Synthesize(ctx, text, language)
	e.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		e.metrics.RecordProviderError(ctx, "coqui", "tts")
		observe.Logger(ctx).Warn("speech synthesis failed", "error", err)
		return nil
	}
	return wav
}
