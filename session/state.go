package session

import (
	"fmt"
	"log/slog"
	"sync"
)

// State is a step of the session lifecycle.
type State string

const (
	StateInit         State = "INIT"
	StateServiceReady State = "SERVICE_READY"
	StateConnected    State = "CONNECTED"
	StateNotarizing   State = "NOTARIZING"
	StateFinalized    State = "FINALIZED"
	StatePersisted    State = "PERSISTED"
	StateFailed       State = "FAILED"
)

var transitions = map[State]State{
	StateInit:         StateServiceReady,
	StateServiceReady: StateConnected,
	StateConnected:    StateNotarizing,
	StateNotarizing:   StateFinalized,
	StateFinalized:    StatePersisted,
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StatePersisted || s == StateFailed
}

// stateMachine enforces the session lifecycle
// INIT -> SERVICE_READY -> CONNECTED -> NOTARIZING -> FINALIZED -> PERSISTED,
// with FAILED reachable from every non-terminal state.
type stateMachine struct {
	mu      sync.Mutex
	current State
	log     *slog.Logger
}

func newStateMachine(log *slog.Logger) *stateMachine {
	return &stateMachine{current: StateInit, log: log}
}

func (m *stateMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Transition moves to next. An illegal transition leaves the state unchanged
// and returns an error.
func (m *stateMachine) Transition(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.current
	if from.Terminal() {
		return fmt.Errorf("illegal transition %s -> %s: %s is terminal", from, next, from)
	}
	if next != StateFailed && transitions[from] != next {
		return fmt.Errorf("illegal transition %s -> %s", from, next)
	}

	m.current = next
	m.log.Info("Session state changed", "from", from, "to", next)
	return nil
}
