// Package prover talks to a prover sidecar that wraps the notarization
// engine behind a small HTTP API.
package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ruteri/tlsn-notary-demo/interfaces"
)

const (
	SessionHeader = "X-Prover-Session"

	ResetPath            = "/v1/prover/reset"
	ConnectPath          = "/v1/prover/connect"
	StartNotarizePath    = "/v1/prover/notarize/start"
	FinalizeNotarizePath = "/v1/prover/notarize/finalize"

	// maxErrorBody caps how much of an error response is kept.
	maxErrorBody = 4096
	// maxProofSize caps the proof returned by finalize.
	maxProofSize = 64 << 20
)

var ErrNoSession = errors.New("prover session not established, call Reset first")

// StatusError is a non-2xx response from the sidecar.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("prover %s returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("prover %s returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// ResetRequest binds a prover session to a notary and a target server name.
type ResetRequest struct {
	NotaryHost string `json:"notary_host"`
	NotaryPort int    `json:"notary_port"`
	ServerName string `json:"server_name"`
}

type ResetResponse struct {
	Session string `json:"session"`
}

type ConnectRequest struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// HTTPProver implements interfaces.Prover against the sidecar API.
type HTTPProver struct {
	baseURL string
	client  *http.Client
	reset   ResetRequest
	log     *slog.Logger

	mu      sync.Mutex
	session string
}

func NewHTTPProver(baseURL string, notaryHost string, notaryPort int, serverName string, client *http.Client, log *slog.Logger) (*HTTPProver, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid prover URL %q", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	if log == nil {
		log = slog.Default()
	}
	return &HTTPProver{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		reset: ResetRequest{
			NotaryHost: notaryHost,
			NotaryPort: notaryPort,
			ServerName: serverName,
		},
		log: log.With("component", "prover"),
	}, nil
}

// NewFactory returns a ProverFactory creating HTTPProvers against baseURL.
func NewFactory(baseURL string, client *http.Client, log *slog.Logger) interfaces.ProverFactory {
	return func(notaryHost string, notaryPort int, serverName string) (interfaces.Prover, error) {
		return NewHTTPProver(baseURL, notaryHost, notaryPort, serverName, client, log)
	}
}

// Reset opens a new sidecar session, discarding any previous one.
func (p *HTTPProver) Reset(ctx context.Context) error {
	body, err := p.post(ctx, "reset", ResetPath, "", p.reset)
	if err != nil {
		return err
	}

	var resp ResetResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("could not parse reset response: %w", err)
	}
	if resp.Session == "" {
		return errors.New("reset response carries no session")
	}

	p.mu.Lock()
	p.session = resp.Session
	p.mu.Unlock()

	p.log.Debug("Prover session established", "prover_session", resp.Session)
	return nil
}

func (p *HTTPProver) Connect(ctx context.Context, host string, port int) error {
	session, err := p.currentSession()
	if err != nil {
		return err
	}
	_, err = p.post(ctx, "connect", ConnectPath, session, ConnectRequest{Host: host, Port: port})
	return err
}

func (p *HTTPProver) StartNotarize(ctx context.Context) error {
	session, err := p.currentSession()
	if err != nil {
		return err
	}
	_, err = p.post(ctx, "start_notarize", StartNotarizePath, session, nil)
	return err
}

// FinalizeNotarize returns the raw response body as the proof.
func (p *HTTPProver) FinalizeNotarize(ctx context.Context) ([]byte, error) {
	session, err := p.currentSession()
	if err != nil {
		return nil, err
	}
	return p.post(ctx, "finalize_notarize", FinalizeNotarizePath, session, nil)
}

func (p *HTTPProver) currentSession() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == "" {
		return "", ErrNoSession
	}
	return p.session, nil
}

func (p *HTTPProver) post(ctx context.Context, op, path, session string, payload any) ([]byte, error) {
	var reqBody io.Reader = http.NoBody
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("could not encode %s request: %w", op, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not reach prover for %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProofSize+1))
	if err != nil {
		return nil, fmt.Errorf("could not read %s response: %w", op, err)
	}
	if len(body) > maxProofSize {
		return nil, fmt.Errorf("%s response exceeds %d bytes", op, maxProofSize)
	}

	p.log.Debug("Prover call complete", "op", op, "status", resp.StatusCode, "duration", time.Since(start))
	return body, nil
}

var _ interfaces.Prover = (*HTTPProver)(nil)
