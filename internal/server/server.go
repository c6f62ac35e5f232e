// Package server exposes the assistant over HTTP.
//
// Routes:
//
//   - POST /v1/voice   — multipart WAV upload, one full voice exchange.
//   - POST /v1/text    — JSON text exchange.
//   - GET  /v1/history — recent exchange records, read-only.
//   - GET  /v1/stream  — websocket capture stream (see stream.go).
//   - GET  /healthz, /readyz, /metrics — operational endpoints.
//
// All /v1 routes run behind [observe.Middleware] for tracing and request
// metrics.
package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nferro/voxloom/internal/exchange"
	"github.com/nferro/voxloom/internal/health"
	"github.com/nferro/voxloom/internal/memory"
	"github.com/nferro/voxloom/internal/observe"
)

// maxUploadSlack is added on top of the raw audio budget to cover container
// headers and multipart framing.
const maxUploadSlack = 64 * 1024

// Server handles the assistant's HTTP surface. Construct with [New], mount
// via [Server.Handler].
type Server struct {
	exchanger *exchange.Exchanger
	store     memory.Store
	health    *health.Handler
	metrics   *observe.Metrics

	listenTimeout time.Duration
	maxAudioBytes int64
	historyLimit  int
}

// Option configures a [Server].
type Option func(*Server)

// WithHealth mounts the given health handler at /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics sets the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithCaptureLimits sets the stream listen timeout and the maximum phrase
// duration. The duration cap is converted to a byte budget assuming the
// richest supported capture format (48 kHz stereo PCM16).
func WithCaptureLimits(listenTimeout, maxPhrase time.Duration) Option {
	return func(s *Server) {
		s.listenTimeout = listenTimeout
		s.maxAudioBytes = int64(maxPhrase.Seconds() * 48000 * 2 * 2)
	}
}

// WithHistoryLimit caps how many records /v1/history returns per request.
func WithHistoryLimit(limit int) Option {
	return func(s *Server) { s.historyLimit = limit }
}

// New creates a Server around an exchanger and the exchange log.
func New(ex *exchange.Exchanger, store memory.Store, opts ...Option) *Server {
	s := &Server{
		exchanger:     ex,
		store:         store,
		listenTimeout: 6 * time.Second,
		maxAudioBytes: int64((15 * time.Second).Seconds() * 48000 * 2 * 2),
		historyLimit:  50,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.health == nil {
		s.health = health.New(health.StoreChecker(store))
	}
	return s
}

// Handler returns the fully routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	api := http.NewServeMux()
	api.HandleFunc("POST /v1/voice", s.handleVoice)
	api.HandleFunc("POST /v1/text", s.handleText)
	api.HandleFunc("GET /v1/history", s.handleHistory)
	api.HandleFunc("GET /v1/stream", s.handleStream)
	mux.Handle("/v1/", observe.Middleware(s.metrics)(api))

	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// handleVoice runs one voice exchange on an uploaded capture. The multipart
// form must carry the WAV bytes in an "audio" file field.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxAudioBytes+maxUploadSlack)

	file, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, `multipart "audio" file field is required`)
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, s.maxAudioBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read audio: "+err.Error())
		return
	}
	if int64(len(raw)) > s.maxAudioBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "capture exceeds the maximum phrase duration")
		return
	}

	res, err := s.exchanger.Voice(r.Context(), raw)
	if err != nil {
		observe.Logger(r.Context()).Error("voice exchange failed", "error", err)
		writeError(w, http.StatusInternalServerError, "exchange failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// textRequest is the body of POST /v1/text.
type textRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, `"text" must not be empty`)
		return
	}

	res, err := s.exchanger.Text(r.Context(), req.Text)
	if err != nil {
		observe.Logger(r.Context()).Error("text exchange failed", "error", err)
		writeError(w, http.StatusInternalServerError, "exchange failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// historyResponse is the body of GET /v1/history.
type historyResponse struct {
	Records []memory.Record `json:"records"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := s.historyLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, `"limit" must be a positive integer`)
			return
		}
		if n < limit {
			limit = n
		}
	}

	records, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		observe.Logger(r.Context()).Error("history lookup failed", "error", err)
		s.metrics.RecordStorageError(r.Context(), "recent")
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Records: records})
}

// errorResponse is the JSON error body shared by all handlers.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}
