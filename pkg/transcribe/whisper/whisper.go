// Package whisper provides local whisper.cpp-backed implementations of
// [transcribe.Local].
//
// Two variants are available:
//
//   - [Client] talks to a running whisper-server binary (REST API at
//     POST /inference) over loopback HTTP. This is the default and avoids
//     CGO entirely.
//   - [Native] (native.go) uses the whisper.cpp CGO bindings directly,
//     eliminating HTTP overhead. The whisper.cpp static library must be
//     available at link time.
//
// Usage:
//
//	c, err := whisper.New("http://localhost:8080",
//	    whisper.WithLanguage("auto"),
//	)
//	cand, err := c.Transcribe(ctx, waveform)
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/nferro/voxloom/pkg/audio"
	"github.com/nferro/voxloom/pkg/transcribe"
)

const (
	defaultTimeout  = 30 * time.Second
	inferenceRoute  = "/inference"
	defaultLanguage = "auto"
)

// Compile-time assertion that Client implements transcribe.Local.
var _ transcribe.Local = (*Client)(nil)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithModel sets the model identifier forwarded to the whisper-server
// (e.g., "base", "small"). When empty the server uses whichever model it was
// started with — this is the default.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithLanguage sets the language hint sent to the server. "auto" (the
// default) asks whisper.cpp to detect the language per utterance.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s, which
// bounds model latency on slow CPUs.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client. Mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// Client implements [transcribe.Local] against a whisper-server instance.
// Safe for concurrent use; each Transcribe call is an independent request.
type Client struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a Client for the whisper-server at serverURL
// (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Client, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	c := &Client{
		serverURL:  serverURL,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// inferenceResponse is the JSON body returned by whisper-server. The language
// field is present when language detection is enabled.
type inferenceResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Transcribe encodes the waveform as a 16 kHz mono WAV file and submits it to
// the server's /inference endpoint as multipart/form-data. The returned
// candidate carries the detected language when the server reports one, "en"
// otherwise.
func (c *Client) Transcribe(ctx context.Context, w audio.Waveform) (transcribe.Candidate, error) {
	if len(w) == 0 {
		return transcribe.NewCandidate("", "", transcribe.SourceLocal), nil
	}

	wav := audio.EncodeWaveformWAV(w)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return transcribe.Candidate{}, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return transcribe.Candidate{}, fmt.Errorf("whisper: write wav data: %w", err)
	}
	if c.language != "" {
		if err := mw.WriteField("language", c.language); err != nil {
			return transcribe.Candidate{}, fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if c.model != "" {
		if err := mw.WriteField("model", c.model); err != nil {
			return transcribe.Candidate{}, fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return transcribe.Candidate{}, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+inferenceRoute, &body)
	if err != nil {
		return transcribe.Candidate{}, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transcribe.Candidate{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return transcribe.Candidate{}, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transcribe.Candidate{}, fmt.Errorf("whisper: read response body: %w", err)
	}

	var result inferenceResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return transcribe.Candidate{}, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	return transcribe.NewCandidate(result.Text, result.Language, transcribe.SourceLocal), nil
}
