// Package app wires all Voxloom subsystems into a running service.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithTranscriber, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nferro/voxloom/internal/config"
	"github.com/nferro/voxloom/internal/exchange"
	"github.com/nferro/voxloom/internal/health"
	"github.com/nferro/voxloom/internal/memory"
	"github.com/nferro/voxloom/internal/memory/postgres"
	"github.com/nferro/voxloom/internal/netprobe"
	"github.com/nferro/voxloom/internal/observe"
	"github.com/nferro/voxloom/internal/pipeline"
	"github.com/nferro/voxloom/internal/resilience"
	"github.com/nferro/voxloom/internal/resolver"
	"github.com/nferro/voxloom/internal/server"
	"github.com/nferro/voxloom/pkg/speech"
	"github.com/nferro/voxloom/pkg/speech/coqui"
	"github.com/nferro/voxloom/pkg/transcribe"
	"github.com/nferro/voxloom/pkg/transcribe/openai"
	"github.com/nferro/voxloom/pkg/transcribe/whisper"
)

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config

	store     memory.Store
	local     transcribe.Local
	validator transcribe.Validator
	synth     speech.Synthesizer
	metrics   *observe.Metrics

	httpServer *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects an exchange log instead of creating one from config.
func WithStore(s memory.Store) Option {
	return func(a *App) { a.store = s }
}

// WithTranscriber injects a local transcriber instead of creating one from
// config.
func WithTranscriber(l transcribe.Local) Option {
	return func(a *App) { a.local = l }
}

// WithValidator injects a remote validator instead of creating one from
// config.
func WithValidator(v transcribe.Validator) Option {
	return func(a *App) { a.validator = v }
}

// WithSynthesizer injects a speech synthesizer instead of creating one from
// config.
func WithSynthesizer(s speech.Synthesizer) Option {
	return func(a *App) { a.synth = s }
}

// WithMetrics injects a metrics instance instead of the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. Use Option functions
// to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	if err := a.initTranscriber(); err != nil {
		return nil, fmt.Errorf("app: init transcriber: %w", err)
	}
	a.initValidator()
	a.initSynthesizer()
	a.initServer()

	return a, nil
}

// initStore sets up the exchange log from config or uses the injected one.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	switch a.cfg.Memory.Driver {
	case config.MemoryPostgres:
		store, err := postgres.NewStore(ctx, a.cfg.Memory.PostgresDSN)
		if err != nil {
			return err
		}
		a.store = store
		slog.Info("exchange log ready", "driver", "postgres")
	default:
		a.store = memory.NewMemStore()
		slog.Info("exchange log ready", "driver", "memory")
	}

	a.closers = append(a.closers, func() error {
		a.store.Close()
		return nil
	})
	return nil
}

// initTranscriber builds the configured local transcriber.
func (a *App) initTranscriber() error {
	if a.local != nil {
		return nil
	}

	switch a.cfg.STT.Engine {
	case config.STTWhisperNative:
		var opts []whisper.NativeOption
		if lang := a.cfg.STT.Language; lang != "" && lang != "auto" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		native, err := whisper.NewNative(a.cfg.STT.ModelPath, opts...)
		if err != nil {
			return err
		}
		a.local = native
		a.closers = append(a.closers, native.Close)
		slog.Info("local transcriber ready", "engine", "whisper-native", "model", a.cfg.STT.ModelPath)

	default:
		var opts []whisper.Option
		if a.cfg.STT.Model != "" {
			opts = append(opts, whisper.WithModel(a.cfg.STT.Model))
		}
		if a.cfg.STT.Language != "" {
			opts = append(opts, whisper.WithLanguage(a.cfg.STT.Language))
		}
		client, err := whisper.New(a.cfg.STT.URL, opts...)
		if err != nil {
			return err
		}
		a.local = client
		slog.Info("local transcriber ready", "engine", "whisper", "url", a.cfg.STT.URL)
	}
	return nil
}

// initValidator builds the remote validator. An empty API key yields an
// unconfigured validator, which the pipeline treats as offline-only mode.
func (a *App) initValidator() {
	if a.validator != nil {
		return
	}

	var opts []openai.Option
	if a.cfg.Validator.Model != "" {
		opts = append(opts, openai.WithModel(a.cfg.Validator.Model))
	}
	if a.cfg.Validator.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(a.cfg.Validator.BaseURL))
	}
	if a.cfg.Validator.Timeout > 0 {
		opts = append(opts, openai.WithTimeout(a.cfg.Validator.Timeout.Std()))
	}
	// The breaker keeps a flapping validation API from adding its timeout
	// to every exchange.
	a.validator = resilience.NewValidator(
		openai.New(a.cfg.Validator.APIKey, opts...),
		resilience.CircuitBreakerConfig{Name: "openai-validator"},
	)
}

// initSynthesizer builds the TTS client when one is configured.
func (a *App) initSynthesizer() {
	if a.synth != nil || a.cfg.TTS.URL == "" {
		return
	}

	var opts []coqui.Option
	if a.cfg.TTS.Speaker != "" {
		opts = append(opts, coqui.WithSpeaker(a.cfg.TTS.Speaker))
	}
	a.synth = coqui.New(a.cfg.TTS.URL, opts...)
	slog.Info("speech synthesis ready", "url", a.cfg.TTS.URL)
}

// initServer assembles pipeline, resolver, exchanger, and the HTTP server.
func (a *App) initServer() {
	var probeOpts []netprobe.Option
	if a.cfg.Probe.URL != "" {
		probeOpts = append(probeOpts, netprobe.WithURL(a.cfg.Probe.URL))
	}
	if a.cfg.Probe.Timeout > 0 {
		probeOpts = append(probeOpts, netprobe.WithTimeout(a.cfg.Probe.Timeout.Std()))
	}

	p := pipeline.New(a.local,
		pipeline.WithValidator(a.validator),
		pipeline.WithProber(netprobe.New(probeOpts...)),
		pipeline.WithMetrics(a.metrics),
	)
	r := resolver.New(a.store, resolver.WithMetrics(a.metrics))

	exOpts := []exchange.Option{exchange.WithMetrics(a.metrics)}
	if a.synth != nil {
		exOpts = append(exOpts, exchange.WithSynthesizer(a.synth))
	}
	ex := exchange.New(p, r, exOpts...)

	checkers := []health.Checker{health.StoreChecker(a.store)}
	if a.cfg.STT.Engine == config.STTWhisperServer && a.cfg.STT.URL != "" {
		checkers = append(checkers, health.HTTPChecker("stt", a.cfg.STT.URL))
	}

	srv := server.New(ex, a.store,
		server.WithMetrics(a.metrics),
		server.WithHealth(health.New(checkers...)),
		server.WithCaptureLimits(a.cfg.Capture.ListenTimeout.Std(), a.cfg.Capture.MaxPhraseDuration.Std()),
		server.WithHistoryLimit(a.cfg.Memory.HistoryLimit),
	)

	a.httpServer = &http.Server{
		Addr:    a.cfg.Server.ListenAddr,
		Handler: srv.Handler(),
	}
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("listening", "addr", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return a.httpServer.Shutdown(context.Background())
	})

	return g.Wait()
}

// Shutdown releases all subsystem resources in order.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
