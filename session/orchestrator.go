// Package session drives one notarization session: it waits for the notary
// to listen, sets up the prover with bounded retries, runs the single-shot
// notarization calls and persists the resulting proof.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/ruteri/tlsn-notary-demo/common"
	"github.com/ruteri/tlsn-notary-demo/interfaces"
	"github.com/ruteri/tlsn-notary-demo/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = common.PackageName + "/session"

// Orchestrator sequences the external engine calls of a session. It runs one
// session at a time.
type Orchestrator struct {
	newProver interfaces.ProverFactory
	archive   interfaces.StorageBackend
	log       *slog.Logger
	tracer    trace.Tracer

	current atomic.Pointer[stateMachine]
}

func NewOrchestrator(newProver interfaces.ProverFactory, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		newProver: newProver,
		log:       log,
		tracer:    otel.Tracer(tracerName),
	}
}

// WithArchive replicates every persisted proof to backend. A failed archive
// write fails the session; the local artifact is kept.
func (o *Orchestrator) WithArchive(backend interfaces.StorageBackend) *Orchestrator {
	no := o.clone()
	no.archive = backend
	return no
}

// WithTracer overrides the tracer taken from the global provider.
func (o *Orchestrator) WithTracer(tracer trace.Tracer) *Orchestrator {
	no := o.clone()
	no.tracer = tracer
	return no
}

// clone copies the configuration of o. Session state is not carried over.
func (o *Orchestrator) clone() *Orchestrator {
	return &Orchestrator{
		newProver: o.newProver,
		archive:   o.archive,
		log:       o.log,
		tracer:    o.tracer,
	}
}

// State returns the state of the most recent session, INIT if none ran.
func (o *Orchestrator) State() State {
	if sm := o.current.Load(); sm != nil {
		return sm.State()
	}
	return StateInit
}

// Run executes one session and returns the path of the written proof.
//
// Reset and Connect are retried per d.Retry; StartNotarize and
// FinalizeNotarize are attempted once. Every failure is returned as a
// *SessionError whose cause is a *ConnectivityError, *TransientServiceError,
// *ProtocolError or a plain persistence error.
func (o *Orchestrator) Run(ctx context.Context, d Descriptor) (proofPath string, err error) {
	sessionID := uuid.NewString()
	log := o.log.With("session_id", sessionID)
	sm := newStateMachine(log)
	o.current.Store(sm)

	ctx, span := o.tracer.Start(ctx, "session.run", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("session.target", d.TargetURL),
		attribute.String("session.notary", d.NotaryAddr()),
	))
	defer span.End()

	defer func() {
		if err == nil {
			return
		}
		failedIn := sm.State()
		if terr := sm.Transition(StateFailed); terr != nil {
			log.Error("Failed to mark session as failed", "err", terr)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("Session failed", "state", failedIn, "err", err)
		err = &SessionError{State: failedIn, Err: err}
	}()

	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("invalid session descriptor: %w", err)
	}
	target, err := ParseTarget(d.TargetURL)
	if err != nil {
		return "", err
	}

	log.Info("Starting session", "target", target.String(), "notary", d.NotaryAddr())

	err = o.step(ctx, "readiness", func(ctx context.Context) error {
		return WaitForListener(ctx, d.NotaryAddr(), d.ReadinessTimeout, d.ReadinessInterval, log)
	})
	if err != nil {
		return "", err
	}

	prover, err := o.newProver(d.NotaryHost, d.NotaryPort, target.ServerName)
	if err != nil {
		return "", fmt.Errorf("failed to create prover: %w", err)
	}

	if err := o.retryStep(ctx, log, d.Retry, "reset", prover.Reset); err != nil {
		return "", err
	}
	if err := sm.Transition(StateServiceReady); err != nil {
		return "", err
	}

	err = o.retryStep(ctx, log, d.Retry, "connect", func(ctx context.Context) error {
		return prover.Connect(ctx, target.ServerName, target.Port)
	})
	if err != nil {
		return "", err
	}
	if err := sm.Transition(StateConnected); err != nil {
		return "", err
	}

	err = o.step(ctx, "start_notarize", func(ctx context.Context) error {
		if err := prover.StartNotarize(ctx); err != nil {
			return &ProtocolError{Op: "start_notarize", Err: err}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if err := sm.Transition(StateNotarizing); err != nil {
		return "", err
	}

	var proof interfaces.ProofArtifact
	err = o.step(ctx, "finalize_notarize", func(ctx context.Context) error {
		data, err := prover.FinalizeNotarize(ctx)
		if err != nil {
			return &ProtocolError{Op: "finalize_notarize", Err: err}
		}
		proof = data
		return nil
	})
	if err != nil {
		return "", err
	}
	if err := sm.Transition(StateFinalized); err != nil {
		return "", err
	}

	err = o.step(ctx, "persist", func(ctx context.Context) error {
		path, err := o.persist(ctx, log, d.DataDir, proof)
		proofPath = path
		return err
	})
	if err != nil {
		return "", err
	}
	if err := sm.Transition(StatePersisted); err != nil {
		return "", err
	}

	log.Info("Session complete", "proof", proofPath, "size", len(proof))
	return proofPath, nil
}

func (o *Orchestrator) persist(ctx context.Context, log *slog.Logger, dataDir string, proof interfaces.ProofArtifact) (string, error) {
	if len(proof) == 0 {
		log.Warn("Engine returned an empty proof")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	path := interfaces.DataLayout{Dir: dataDir}.ProofPath()
	if err := storage.WriteFileAtomic(path, proof, 0644); err != nil {
		return "", fmt.Errorf("failed to write proof: %w", err)
	}
	log.Info("Proof written", "path", path)

	if o.archive == nil {
		return path, nil
	}

	id, err := o.archive.Store(ctx, proof, interfaces.ProofType)
	if err != nil {
		return "", fmt.Errorf("failed to archive proof to %s: %w", o.archive.Name(), err)
	}
	log.Info("Proof archived", "content_id", id.String(), "archive", o.archive.Name())
	return path, nil
}

// step runs fn in a child span named after the step.
func (o *Orchestrator) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, "session."+name)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (o *Orchestrator) retryStep(ctx context.Context, log *slog.Logger, policy RetryPolicy, op string, fn func(context.Context) error) error {
	return o.step(ctx, op, func(ctx context.Context) error {
		attempts, err := Retry(ctx, policy, log, op, fn)
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("retry.attempts", attempts))
		if err != nil {
			return &TransientServiceError{Op: op, Attempts: attempts, Err: err}
		}
		return nil
	})
}
