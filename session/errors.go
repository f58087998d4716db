package session

import (
	"fmt"
	"time"
)

// ConnectivityError means the notary never accepted a connection within the
// readiness timeout. It does not consume the retry budget.
type ConnectivityError struct {
	Addr    string
	Timeout time.Duration
	Err     error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("notary at %s not reachable within %s: %v", e.Addr, e.Timeout, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// TransientServiceError is a retryable setup call that still failed after
// the whole retry budget.
type TransientServiceError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *TransientServiceError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *TransientServiceError) Unwrap() error { return e.Err }

// ProtocolError is a failed notarization call. These are never retried.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// SessionError wraps the cause of a failed session together with the state
// the session was in when it failed.
type SessionError struct {
	State State
	Err   error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session failed in state %s: %v", e.State, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }
