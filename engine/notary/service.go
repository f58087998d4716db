// Package notary manages the lifecycle of the notary server the prover talks to.
package notary

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/tlsn-notary-demo/interfaces"
)

// ExternalService stands for a notary that is already running and managed
// elsewhere. Its lifecycle calls only log.
type ExternalService struct {
	addr string
	log  *slog.Logger
}

func NewExternalService(host string, port int, log *slog.Logger) *ExternalService {
	if log == nil {
		log = slog.Default()
	}
	return &ExternalService{addr: fmt.Sprintf("%s:%d", host, port), log: log}
}

func (s *ExternalService) Start(ctx context.Context) error {
	s.log.Info("Using externally managed notary", "addr", s.addr)
	return nil
}

func (s *ExternalService) Stop(ctx context.Context) error {
	return nil
}

// stopGrace bounds Stop when the caller's context is already cancelled.
const stopGrace = 10 * time.Second

// WithService starts svc, runs fn and stops svc again. Stop runs on every
// exit path, including a panic in fn. A stop failure is returned only when fn
// succeeded; otherwise it is logged and fn's error wins.
func WithService(ctx context.Context, svc interfaces.NotaryService, log *slog.Logger, fn func(ctx context.Context) error) (err error) {
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start notary: %w", err)
	}

	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopGrace)
		defer cancel()

		stopErr := svc.Stop(stopCtx)
		if stopErr == nil {
			return
		}
		if err != nil {
			log.Warn("Failed to stop notary", "err", stopErr)
			return
		}
		err = fmt.Errorf("failed to stop notary: %w", stopErr)
	}()

	return fn(ctx)
}

var _ interfaces.NotaryService = (*ExternalService)(nil)
