// Package pipeline reconciles offline and online speech recognition into a
// single transcript.
//
// The local transcriber always runs, so the assistant keeps working with no
// network at all. When the host is online and a remote validator is
// configured, the raw capture is also sent out for validation and the two
// transcripts are reconciled: a disagreement (after trimming, ignoring case)
// means the remote engine heard something different, and its text wins while
// the locally detected language is kept. Every degraded path collapses to
// the local result; callers never see transcription errors, only an empty
// transcript when nothing usable was heard.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel/metric"

	"github.com/nferro/voxloom/internal/netprobe"
	"github.com/nferro/voxloom/internal/observe"
	"github.com/nferro/voxloom/pkg/audio"
	"github.com/nferro/voxloom/pkg/transcribe"
)

// Transcript is the reconciled output of one capture.
type Transcript struct {
	// Text is the final transcript, trimmed. Empty when nothing usable was
	// recognized.
	Text string

	// Language is the BCP-47-ish language code detected by the local
	// transcriber, "en" when unknown.
	Language string

	// Source reports which candidate supplied Text.
	Source transcribe.Source
}

// Pipeline runs capture bytes through decode, local transcription, and
// optional remote validation. Safe for concurrent use.
type Pipeline struct {
	local     transcribe.Local
	validator transcribe.Validator
	prober    *netprobe.Prober
	metrics   *observe.Metrics
}

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithValidator sets the remote validator. Without one the pipeline is
// purely offline.
func WithValidator(v transcribe.Validator) Option {
	return func(p *Pipeline) { p.validator = v }
}

// WithProber sets the connectivity prober consulted before remote
// validation. Defaults to a prober with stock settings.
func WithProber(pr *netprobe.Prober) Option {
	return func(p *Pipeline) { p.prober = pr }
}

// WithMetrics sets the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a Pipeline around the given local transcriber.
func New(local transcribe.Local, opts ...Option) *Pipeline {
	p := &Pipeline{local: local}
	for _, opt := range opts {
		opt(p)
	}
	if p.prober == nil {
		p.prober = netprobe.New()
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Transcribe decodes raw capture bytes and returns the reconciled
// transcript. raw is not retained after the call returns.
//
// Decode and transcription failures are absorbed: the worst outcome is an
// empty Transcript with language "en". Only ctx cancellation during local
// transcription is treated as fatal by the local provider itself.
func (p *Pipeline) Transcribe(ctx context.Context, raw []byte) Transcript {
	ctx, span := observe.StartSpan(ctx, "pipeline.Transcribe")
	defer span.End()
	log := observe.Logger(ctx)

	wave, err := audio.DecodeAndNormalize(raw)
	if err != nil {
		log.Warn("capture decode failed", "error", err)
		return Transcript{Language: transcribe.DefaultLanguage}
	}

	local := p.transcribeLocal(ctx, wave)

	remoteText, ok := p.validateRemote(ctx, raw)
	if !ok {
		p.metrics.RecordReconciliation(ctx, string(transcribe.SourceLocal))
		return Transcript{Text: local.Text, Language: local.Language, Source: transcribe.SourceLocal}
	}

	return p.reconcile(ctx, local, remoteText)
}

// transcribeLocal runs the offline transcriber, absorbing failures into an
// empty candidate.
func (p *Pipeline) transcribeLocal(ctx context.Context, wave audio.Waveform) transcribe.Candidate {
	start := time.Now()
	cand, err := p.local.Transcribe(ctx, wave)
	p.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordProviderError(ctx, "whisper", "stt")
		observe.Logger(ctx).Warn("local transcription failed", "error", err)
		return transcribe.NewCandidate("", "", transcribe.SourceLocal)
	}
	return cand
}

// validateRemote returns the remote transcript when connectivity, credentials,
// and the request all line up. ok is false on every degraded path.
func (p *Pipeline) validateRemote(ctx context.Context, raw []byte) (text string, ok bool) {
	if p.validator == nil || !p.validator.Configured() {
		return "", false
	}
	if !p.prober.Online(ctx) {
		observe.Logger(ctx).Debug("offline, skipping remote validation")
		return "", false
	}

	start := time.Now()
	text, err := p.validator.Validate(ctx, raw)
	p.metrics.ValidationDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordProviderError(ctx, "openai", "validation")
		observe.Logger(ctx).Warn("remote validation failed", "error", err)
		return "", false
	}
	return strings.TrimSpace(text), true
}

// reconcile applies the tie-break between the local candidate and the remote
// transcript: a trimmed, case-insensitive difference means the remote text
// wins, but the locally detected language is authoritative either way.
func (p *Pipeline) reconcile(ctx context.Context, local transcribe.Candidate, remoteText string) Transcript {
	if remoteText == "" || strings.EqualFold(local.Text, remoteText) {
		p.metrics.RecordReconciliation(ctx, string(transcribe.SourceLocal))
		return Transcript{Text: local.Text, Language: local.Language, Source: transcribe.SourceLocal}
	}

	distance := matchr.DamerauLevenshtein(strings.ToLower(local.Text), strings.ToLower(remoteText))
	p.metrics.RecordReconciliation(ctx, string(transcribe.SourceRemote))
	p.metrics.CorrectionDistance.Record(ctx, int64(distance),
		metric.WithAttributes(observe.Attr("language", local.Language)))
	observe.Logger(ctx).Info("remote transcript won reconciliation",
		"local", local.Text, "remote", remoteText, "distance", distance)

	return Transcript{Text: remoteText, Language: local.Language, Source: transcribe.SourceRemote}
}
