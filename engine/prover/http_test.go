package prover

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSidecar records calls and serves a fixed proof.
type fakeSidecar struct {
	mu          sync.Mutex
	reset       ResetRequest
	connect     ConnectRequest
	calls       []string
	sessions    []string
	failConnect int
	proof       []byte
}

func (f *fakeSidecar) router() http.Handler {
	r := chi.NewRouter()
	r.Post(ResetPath, func(w http.ResponseWriter, r *http.Request) {
		f.record("reset", "")
		var req ResetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.reset = req
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ResetResponse{Session: "session-1"})
	})
	r.Post(ConnectPath, func(w http.ResponseWriter, r *http.Request) {
		f.record("connect", r.Header.Get(SessionHeader))
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failConnect > 0 {
			f.failConnect--
			http.Error(w, "tls handshake failed", http.StatusBadGateway)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&f.connect); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	})
	r.Post(StartNotarizePath, func(w http.ResponseWriter, r *http.Request) {
		f.record("start", r.Header.Get(SessionHeader))
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post(FinalizeNotarizePath, func(w http.ResponseWriter, r *http.Request) {
		f.record("finalize", r.Header.Get(SessionHeader))
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(f.proof)
	})
	return r
}

func (f *fakeSidecar) record(call, session string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if session != "" {
		f.sessions = append(f.sessions, session)
	}
}

func (f *fakeSidecar) snapshot() (ResetRequest, ConnectRequest, []string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reset, f.connect, append([]string(nil), f.calls...), append([]string(nil), f.sessions...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHTTPProverFullSession(t *testing.T) {
	sidecar := &fakeSidecar{proof: []byte{0x00, 0x01, 0xfe, 0xff}}
	srv := httptest.NewServer(sidecar.router())
	defer srv.Close()

	p, err := NewFactory(srv.URL+"/", srv.Client(), testLogger())("127.0.0.1", 7047, "httpbin.org")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, p.Reset(ctx))
	require.NoError(t, p.Connect(ctx, "httpbin.org", 443))
	require.NoError(t, p.StartNotarize(ctx))
	proof, err := p.FinalizeNotarize(ctx)
	require.NoError(t, err)

	reset, connect, calls, sessions := sidecar.snapshot()
	assert.Equal(t, sidecar.proof, proof)
	assert.Equal(t, ResetRequest{NotaryHost: "127.0.0.1", NotaryPort: 7047, ServerName: "httpbin.org"}, reset)
	assert.Equal(t, ConnectRequest{Host: "httpbin.org", Port: 443}, connect)
	assert.Equal(t, []string{"reset", "connect", "start", "finalize"}, calls)
	assert.Equal(t, []string{"session-1", "session-1", "session-1"}, sessions)
}

func TestHTTPProverRequiresReset(t *testing.T) {
	sidecar := &fakeSidecar{}
	srv := httptest.NewServer(sidecar.router())
	defer srv.Close()

	p, err := NewHTTPProver(srv.URL, "127.0.0.1", 7047, "httpbin.org", nil, testLogger())
	require.NoError(t, err)

	require.ErrorIs(t, p.Connect(context.Background(), "httpbin.org", 443), ErrNoSession)
	require.ErrorIs(t, p.StartNotarize(context.Background()), ErrNoSession)
	_, err = p.FinalizeNotarize(context.Background())
	require.ErrorIs(t, err, ErrNoSession)
	_, _, calls, _ := sidecar.snapshot()
	assert.Empty(t, calls)
}

func TestHTTPProverStatusError(t *testing.T) {
	sidecar := &fakeSidecar{failConnect: 1}
	srv := httptest.NewServer(sidecar.router())
	defer srv.Close()

	p, err := NewHTTPProver(srv.URL, "127.0.0.1", 7047, "httpbin.org", srv.Client(), testLogger())
	require.NoError(t, err)
	require.NoError(t, p.Reset(context.Background()))

	err = p.Connect(context.Background(), "httpbin.org", 443)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "connect", statusErr.Op)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, "tls handshake failed", statusErr.Body)

	// The second attempt goes through.
	require.NoError(t, p.Connect(context.Background(), "httpbin.org", 443))
}

func TestHTTPProverUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p, err := NewHTTPProver(url, "127.0.0.1", 7047, "httpbin.org", nil, testLogger())
	require.NoError(t, err)
	require.Error(t, p.Reset(context.Background()))
}

func TestNewHTTPProverRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "127.0.0.1:7048", "ftp://127.0.0.1", "http://"} {
		_, err := NewHTTPProver(raw, "127.0.0.1", 7047, "httpbin.org", nil, testLogger())
		assert.Error(t, err, raw)
	}
}
