package netprobe_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nferro/voxloom/internal/netprobe"
)

func TestOnline_Reachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := netprobe.New(netprobe.WithURL(srv.URL))
	if !p.Online(context.Background()) {
		t.Error("expected online against a healthy server")
	}
}

func TestOnline_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := netprobe.New(netprobe.WithURL(srv.URL))
	if p.Online(context.Background()) {
		t.Error("expected offline for HTTP 500")
	}
}

func TestOnline_Unreachable(t *testing.T) {
	// Closed server: the connection is refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := netprobe.New(netprobe.WithURL(url), netprobe.WithTimeout(500*time.Millisecond))
	if p.Online(context.Background()) {
		t.Error("expected offline for refused connection")
	}
}

func TestOnline_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer func() {
		close(block)
		srv.Close()
	}()

	p := netprobe.New(netprobe.WithURL(srv.URL), netprobe.WithTimeout(50*time.Millisecond))
	start := time.Now()
	if p.Online(context.Background()) {
		t.Error("expected offline on timeout")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("probe took %v, should fail fast", elapsed)
	}
}
