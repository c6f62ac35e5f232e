// Package observe provides application-wide observability primitives for
// Voxloom: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Voxloom metrics.
const meterName = "github.com/nferro/voxloom"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks local speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// ValidationDuration tracks remote transcript validation latency.
	ValidationDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// ExchangeDuration tracks end-to-end exchange latency (audio in to
	// response out).
	ExchangeDuration metric.Float64Histogram

	// CorrectionDistance tracks the Damerau-Levenshtein distance between the
	// local and remote transcripts whenever the remote text wins
	// reconciliation. A drifting distribution indicates local model decay.
	CorrectionDistance metric.Int64Histogram

	// --- Counters ---

	// Reconciliations counts reconciled transcriptions. Use with attribute:
	//   attribute.String("source", "local"|"remote")
	Reconciliations metric.Int64Counter

	// RecallLookups counts memory recall lookups. Use with attribute:
	//   attribute.String("result", "hit"|"miss")
	RecallLookups metric.Int64Counter

	// RuleMatches counts resolver rule firings. Use with attribute:
	//   attribute.String("rule", ...)
	RuleMatches metric.Int64Counter

	// --- Error counters ---

	// StorageErrors counts memory store failures. Use with attribute:
	//   attribute.String("op", "recall"|"append"|"recent")
	StorageErrors metric.Int64Counter

	// ProviderErrors counts transcription/synthesis provider failures. Use
	// with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveStreams tracks the number of open websocket capture streams.
	ActiveStreams metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("voxloom.stt.duration",
		metric.WithDescription("Latency of local speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ValidationDuration, err = m.Float64Histogram("voxloom.validation.duration",
		metric.WithDescription("Latency of remote transcript validation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("voxloom.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExchangeDuration, err = m.Float64Histogram("voxloom.exchange.duration",
		metric.WithDescription("End-to-end exchange latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CorrectionDistance, err = m.Int64Histogram("voxloom.reconciliation.correction_distance",
		metric.WithDescription("Edit distance between local and remote transcripts when the remote text wins."),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 3, 5, 8, 13, 21, 34),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Reconciliations, err = m.Int64Counter("voxloom.reconciliation.outcomes",
		metric.WithDescription("Total reconciled transcriptions by winning source."),
	); err != nil {
		return nil, err
	}
	if met.RecallLookups, err = m.Int64Counter("voxloom.memory.recall_lookups",
		metric.WithDescription("Total memory recall lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.RuleMatches, err = m.Int64Counter("voxloom.resolver.rule_matches",
		metric.WithDescription("Total resolver rule firings by rule name."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.StorageErrors, err = m.Int64Counter("voxloom.memory.errors",
		metric.WithDescription("Total memory store failures by operation."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voxloom.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveStreams, err = m.Int64UpDownCounter("voxloom.active_streams",
		metric.WithDescription("Number of open websocket capture streams."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxloom.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordReconciliation records a reconciliation outcome with the winning
// source attribute.
func (m *Metrics) RecordReconciliation(ctx context.Context, source string) {
	m.Reconciliations.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordRecall records a memory recall lookup outcome.
func (m *Metrics) RecordRecall(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.RecallLookups.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
}

// RecordStorageError records a memory store failure for the given operation.
func (m *Metrics) RecordStorageError(ctx context.Context, op string) {
	m.StorageErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("op", op)),
	)
}

// RecordProviderError records a provider failure with the standard attribute
// set.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
