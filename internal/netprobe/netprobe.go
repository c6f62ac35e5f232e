// Package netprobe answers the single question "is the internet reachable
// right now?" for the reconciliation pipeline's should-validate decision.
//
// The probe fails closed: any error — DNS failure, timeout, unexpected
// status — reports offline, so the pipeline silently stays on the local
// transcriber rather than stalling an exchange on a dead network.
package netprobe

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultProbeURL = "https://www.google.com/generate_204"
	defaultTimeout  = 3 * time.Second
)

// Option is a functional option for configuring a Prober.
type Option func(*Prober)

// WithURL overrides the probe endpoint. The endpoint should answer HEAD
// requests cheaply; any status below 500 counts as reachable.
func WithURL(url string) Option {
	return func(p *Prober) { p.url = url }
}

// WithTimeout sets the probe deadline. Defaults to 3 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) { p.timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client. Mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Prober) { p.httpClient = hc }
}

// Prober performs bounded connectivity checks. Safe for concurrent use.
type Prober struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
}

// New returns a Prober with the default endpoint and timeout.
func New(opts ...Option) *Prober {
	p := &Prober{
		url:        defaultProbeURL,
		timeout:    defaultTimeout,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Online reports whether the probe endpoint is reachable within the
// configured timeout. Every failure path returns false.
func (p *Prober) Online(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		slog.Debug("netprobe: build request failed", "error", err)
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		slog.Debug("netprobe: unreachable", "url", p.url, "error", err)
		return false
	}
	resp.Body.Close()

	return resp.StatusCode < http.StatusInternalServerError
}
