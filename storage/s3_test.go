package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/tlsn-notary-demo/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves a single path-style bucket from memory.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
	denied  map[string]bool
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{
		bucket:  bucket,
		objects: make(map[string][]byte),
		denied:  make(map[string]bool),
	}
}

func (f *fakeS3) router() http.Handler {
	r := chi.NewRouter()
	r.Head("/{bucket}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "bucket") != f.bucket {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Put("/{bucket}/*", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "bucket") != f.bucket {
			writeS3Error(w, http.StatusNotFound, "NoSuchBucket")
			return
		}
		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeS3Error(w, http.StatusBadRequest, "IncompleteBody")
			return
		}
		f.mu.Lock()
		f.objects[chi.URLParam(r, "*")] = data
		f.mu.Unlock()

		sum := md5.Sum(data)
		w.Header().Set("ETag", fmt.Sprintf("%q", hex.EncodeToString(sum[:])))
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/{bucket}/*", func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		f.mu.Lock()
		data, ok := f.objects[key]
		denied := f.denied[key]
		f.mu.Unlock()

		switch {
		case denied:
			writeS3Error(w, http.StatusForbidden, "AccessDenied")
		case !ok:
			writeS3Error(w, http.StatusNotFound, "NoSuchKey")
		default:
			w.Header().Set("Content-Type", "application/octet-stream")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
		}
	})
	return r
}

func (f *fakeS3) object(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	return data, ok
}

func (f *fakeS3) deny(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denied[key] = true
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message><RequestId>test</RequestId></Error>`, code, code)
}

func newTestS3Backend(t *testing.T, endpoint, bucket string) *S3Backend {
	t.Helper()
	backend, err := NewS3Backend(S3Config{
		Bucket:    bucket,
		Prefix:    "/demo/",
		Region:    "eu-west-1",
		Endpoint:  endpoint,
		AccessKey: "AKID",
		SecretKey: "SECRET",
		PathStyle: true,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return backend
}

func TestS3Backend(t *testing.T) {
	fake := newFakeS3("proofs")
	srv := httptest.NewServer(fake.router())
	defer srv.Close()

	backend := newTestS3Backend(t, srv.URL, "proofs")
	ctx := context.Background()
	proof := []byte("notarized transcript")

	assert.True(t, backend.Available(ctx))

	id, err := backend.Store(ctx, proof, interfaces.ProofType)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ComputeID(proof), id)

	stored, ok := fake.object("demo/proof/" + id.String())
	require.True(t, ok, "object stored under <prefix>/<type>/<id>")
	assert.Equal(t, proof, stored)

	fetched, err := backend.Fetch(ctx, id, interfaces.ProofType)
	require.NoError(t, err)
	assert.Equal(t, proof, fetched)

	t.Run("missing id", func(t *testing.T) {
		_, err := backend.Fetch(ctx, interfaces.ComputeID([]byte("other")), interfaces.ProofType)
		assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
	})

	t.Run("other content type", func(t *testing.T) {
		_, err := backend.Fetch(ctx, id, interfaces.PubkeyType)
		assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
	})

	t.Run("access denied", func(t *testing.T) {
		deniedID := interfaces.ComputeID([]byte("secret"))
		fake.deny("demo/proof/" + deniedID.String())

		_, err := backend.Fetch(ctx, deniedID, interfaces.ProofType)
		require.Error(t, err)
		assert.NotErrorIs(t, err, interfaces.ErrContentNotFound)
	})
}

func TestS3BackendUnknownBucket(t *testing.T) {
	srv := httptest.NewServer(newFakeS3("proofs").router())
	defer srv.Close()

	backend := newTestS3Backend(t, srv.URL, "elsewhere")
	assert.False(t, backend.Available(context.Background()))

	_, err := backend.Store(context.Background(), []byte("proof"), interfaces.ProofType)
	assert.Error(t, err)
}
