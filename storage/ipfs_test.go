package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/tlsn-notary-demo/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIPFS serves the version and MFS commands of the IPFS HTTP API from
// memory.
type fakeIPFS struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newFakeIPFS() *fakeIPFS {
	return &fakeIPFS{files: make(map[string][]byte)}
}

func (f *fakeIPFS) router() http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v0", func(r chi.Router) {
		r.Post("/version", func(w http.ResponseWriter, r *http.Request) {
			writeIPFSJSON(w, http.StatusOK, map[string]string{"Version": "0.20.0", "Commit": ""})
		})
		r.Post("/files/write", func(w http.ResponseWriter, r *http.Request) {
			data, err := readIPFSUpload(r)
			if err != nil {
				writeIPFSError(w, err.Error())
				return
			}
			f.mu.Lock()
			f.files[r.URL.Query().Get("arg")] = data
			f.mu.Unlock()
			w.WriteHeader(http.StatusOK)
		})
		r.Post("/files/read", func(w http.ResponseWriter, r *http.Request) {
			data, ok := f.file(r.URL.Query().Get("arg"))
			if !ok {
				writeIPFSError(w, "file does not exist")
				return
			}
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
		})
		r.Post("/files/stat", func(w http.ResponseWriter, r *http.Request) {
			data, ok := f.file(r.URL.Query().Get("arg"))
			if !ok {
				writeIPFSError(w, "file does not exist")
				return
			}
			writeIPFSJSON(w, http.StatusOK, map[string]any{
				"Hash":           "bafkreitestcid",
				"Size":           len(data),
				"CumulativeSize": len(data),
				"Blocks":         0,
				"Type":           "file",
			})
		})
	})
	return r
}

func (f *fakeIPFS) file(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[path]
	return data, ok
}

func (f *fakeIPFS) put(path string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = data
}

// readIPFSUpload returns the first file part of a multipart upload.
func readIPFSUpload(r *http.Request) ([]byte, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(part.Header.Get("Content-Type"), "application/x-directory") {
			continue
		}
		return io.ReadAll(part)
	}
}

func writeIPFSJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeIPFSError(w http.ResponseWriter, message string) {
	writeIPFSJSON(w, http.StatusInternalServerError, map[string]any{
		"Message": message,
		"Code":    0,
		"Type":    "error",
	})
}

func newTestIPFSBackend(t *testing.T, srv *httptest.Server) *IPFSBackend {
	t.Helper()
	host, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)

	backend, err := NewIPFSBackend(host, port, "/archive/", 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return backend
}

func TestIPFSBackend(t *testing.T) {
	fake := newFakeIPFS()
	srv := httptest.NewServer(fake.router())
	defer srv.Close()

	backend := newTestIPFSBackend(t, srv)
	ctx := context.Background()
	pub := []byte("-----BEGIN PUBLIC KEY-----\n...\n-----END PUBLIC KEY-----\n")

	assert.True(t, backend.Available(ctx))

	id, err := backend.Store(ctx, pub, interfaces.PubkeyType)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ComputeID(pub), id)

	stored, ok := fake.file("/archive/pubkey/" + id.String())
	require.True(t, ok, "file written under <root>/<type>/<id>")
	assert.Equal(t, pub, stored)

	fetched, err := backend.Fetch(ctx, id, interfaces.PubkeyType)
	require.NoError(t, err)
	assert.Equal(t, pub, fetched)

	t.Run("missing id", func(t *testing.T) {
		_, err := backend.Fetch(ctx, interfaces.ComputeID([]byte("other")), interfaces.PubkeyType)
		assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
	})

	t.Run("content does not match id", func(t *testing.T) {
		wantID := interfaces.ComputeID([]byte("expected"))
		fake.put("/archive/proof/"+wantID.String(), []byte("tampered"))

		_, err := backend.Fetch(ctx, wantID, interfaces.ProofType)
		require.Error(t, err)
		assert.False(t, errors.Is(err, interfaces.ErrContentNotFound))
		assert.Contains(t, err.Error(), "hashes to")
	})
}

func TestIPFSBackendNodeDown(t *testing.T) {
	srv := httptest.NewServer(newFakeIPFS().router())
	backend := newTestIPFSBackend(t, srv)
	srv.Close()

	ctx := context.Background()
	assert.False(t, backend.Available(ctx))

	_, err := backend.Store(ctx, []byte("proof"), interfaces.ProofType)
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)

	_, err = backend.Fetch(ctx, interfaces.ComputeID([]byte("proof")), interfaces.ProofType)
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
}
