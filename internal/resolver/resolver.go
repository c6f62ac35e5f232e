// Package resolver turns a user utterance into a response.
//
// Resolution has exactly two stages. First the memory store is consulted: if
// any past exchange's input contains the current input as a substring, the
// stored response is replayed verbatim and nothing is written. Otherwise an
// ordered rule table produces the response and the new exchange is appended
// to the store.
//
// Storage failures never suppress a response. A failed write is logged,
// counted, and reported to the caller as an error wrapping [ErrPersist]
// alongside the still-valid response text.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nferro/voxloom/internal/memory"
	"github.com/nferro/voxloom/internal/observe"
)

// ErrPersist indicates the response was produced but could not be persisted.
// Callers should still deliver the response and surface the error to
// operators only.
var ErrPersist = errors.New("resolver: exchange not persisted")

// Resolver resolves user input to response text against a memory store and
// the built-in rule table. Safe for concurrent use.
type Resolver struct {
	store   memory.Store
	rules   []Rule
	clock   func() time.Time
	metrics *observe.Metrics
}

// Option configures a [Resolver].
type Option func(*Resolver)

// WithClock overrides the time source used by time-sensitive rules.
// Primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(r *Resolver) { r.clock = clock }
}

// WithRules replaces the built-in rule table. The fallback still applies
// when no rule matches.
func WithRules(rules []Rule) Option {
	return func(r *Resolver) { r.rules = rules }
}

// WithMetrics sets the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// New creates a Resolver backed by the given store.
func New(store memory.Store, opts ...Option) *Resolver {
	r := &Resolver{
		store: store,
		rules: defaultRules,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// Resolve returns the response for userInput.
//
// The input is lower-cased before matching, so resolution is
// case-insensitive end to end. A recall hit short-circuits: the stored
// response is returned and the exchange is not re-recorded, which keeps
// Resolve idempotent for repeated inputs. On a miss the first matching rule
// responds and the exchange is appended.
//
// The returned response is always usable. The error is non-nil only for
// persistence problems and then wraps [ErrPersist].
func (r *Resolver) Resolve(ctx context.Context, userInput string) (string, error) {
	ctx, span := observe.StartSpan(ctx, "resolver.Resolve")
	defer span.End()

	input := strings.ToLower(userInput)

	recalled, err := r.store.Recall(ctx, input)
	switch {
	case err == nil:
		r.metrics.RecordRecall(ctx, true)
		observe.Logger(ctx).Debug("recall hit", "input", input)
		return recalled, nil
	case errors.Is(err, memory.ErrNotFound):
		r.metrics.RecordRecall(ctx, false)
	default:
		// A broken store must not silence the assistant; fall through to
		// the rules and report the failure with the response.
		r.metrics.RecordStorageError(ctx, "recall")
		observe.Logger(ctx).Warn("recall failed", "error", err)
	}

	rule := r.match(input)
	response := rule.Respond(r.clock())
	r.metrics.RuleMatches.Add(ctx, 1, ruleAttr(rule.Name))

	if _, err := r.store.Append(ctx, input, response); err != nil {
		r.metrics.RecordStorageError(ctx, "append")
		observe.Logger(ctx).Error("append exchange failed", "error", err)
		return response, fmt.Errorf("resolver: append exchange: %w", errors.Join(ErrPersist, err))
	}
	return response, nil
}

func ruleAttr(name string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("rule", name))
}

// match returns the first rule whose Match accepts input, or the fallback.
func (r *Resolver) match(input string) Rule {
	for _, rule := range r.rules {
		if rule.Match(input) {
			return rule
		}
	}
	return fallbackRule
}
