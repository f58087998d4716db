package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/tlsn-notary-demo/interfaces"
)

// ContentIDHeader carries the hex SHA-256 of a served artifact.
const ContentIDHeader = "X-Content-ID"

const (
	pemContentType   = "application/x-pem-file"
	proofContentType = "application/octet-stream"
)

// RequestError provides structured error information for HTTP responses.
type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Handler serves notary identity and proof artifacts.
type Handler struct {
	layout  interfaces.DataLayout
	archive interfaces.StorageBackend
	log     *slog.Logger
}

// NewHandler serves artifacts from layout. archive may be nil, in which case
// archive lookups answer 404.
func NewHandler(layout interfaces.DataLayout, archive interfaces.StorageBackend, log *slog.Logger) *Handler {
	return &Handler{
		layout:  layout,
		archive: archive,
		log:     log,
	}
}

// HandleNotaryPubkey serves the notary public key.
//
// URL format: GET /api/public/notary_pubkey
func (h *Handler) HandleNotaryPubkey(w http.ResponseWriter, r *http.Request) {
	data, err := h.readArtifact(h.layout.PublicKeyPath(), "notary public key")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeArtifact(w, pemContentType, data)
}

// HandleProof serves the latest locally persisted proof.
//
// URL format: GET /api/public/proof
func (h *Handler) HandleProof(w http.ResponseWriter, r *http.Request) {
	data, err := h.readArtifact(h.layout.ProofPath(), "proof")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeArtifact(w, proofContentType, data)
}

// HandleArchivedProof serves a proof from the archive by content ID.
//
// URL format: GET /api/public/proofs/{content_id}
func (h *Handler) HandleArchivedProof(w http.ResponseWriter, r *http.Request) {
	h.serveArchived(w, r, interfaces.ProofType, proofContentType)
}

// HandleArchivedNotaryPubkey serves a notary public key from the archive by
// content ID.
//
// URL format: GET /api/public/notary_pubkeys/{content_id}
func (h *Handler) HandleArchivedNotaryPubkey(w http.ResponseWriter, r *http.Request) {
	h.serveArchived(w, r, interfaces.PubkeyType, pemContentType)
}

func (h *Handler) serveArchived(w http.ResponseWriter, r *http.Request, contentType interfaces.ContentType, mimeType string) {
	id, err := interfaces.NewContentIDFromHex(chi.URLParam(r, "content_id"))
	if err != nil {
		h.writeError(w, r, &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("invalid content ID: %w", err)})
		return
	}

	if h.archive == nil {
		h.writeError(w, r, &RequestError{StatusCode: http.StatusNotFound, Err: errors.New("no archive configured")})
		return
	}

	data, err := h.archive.Fetch(r.Context(), id, contentType)
	switch {
	case errors.Is(err, interfaces.ErrContentNotFound):
		h.writeError(w, r, &RequestError{StatusCode: http.StatusNotFound, Err: fmt.Errorf("%s %s not found", contentType, id)})
		return
	case errors.Is(err, interfaces.ErrBackendUnavailable):
		h.writeError(w, r, &RequestError{StatusCode: http.StatusServiceUnavailable, Err: err})
		return
	case err != nil:
		h.writeError(w, r, &RequestError{StatusCode: http.StatusBadGateway, Err: err})
		return
	}

	h.writeArtifact(w, mimeType, data)
}

func (h *Handler) readArtifact(path, what string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &RequestError{StatusCode: http.StatusNotFound, Err: fmt.Errorf("%s not available yet", what)}
	} else if err != nil {
		return nil, &RequestError{StatusCode: http.StatusInternalServerError, Err: fmt.Errorf("could not read %s: %w", what, err)}
	}
	return data, nil
}

func (h *Handler) writeArtifact(w http.ResponseWriter, mimeType string, data []byte) {
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set(ContentIDHeader, interfaces.ComputeID(data).String())
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		status = reqErr.StatusCode
	}

	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", "path", r.URL.Path, "status", status, "err", err)
	} else {
		h.log.Debug("Request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	http.Error(w, err.Error(), status)
}
