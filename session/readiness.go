package session

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"
)

const (
	DefaultReadinessTimeout  = 10 * time.Second
	DefaultReadinessInterval = 500 * time.Millisecond
)

// WaitForListener polls addr with TCP dials until one is accepted or timeout
// elapses. It returns a *ConnectivityError carrying the last dial error, at
// the latest timeout plus one interval after it was called.
func WaitForListener(ctx context.Context, addr string, timeout, interval time.Duration, log *slog.Logger) error {
	if interval <= 0 {
		interval = DefaultReadinessInterval
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &net.Dialer{Timeout: interval}
	var lastErr error
	for attempt := 1; ; attempt++ {
		conn, err := dialer.DialContext(waitCtx, "tcp", addr)
		if err == nil {
			_ = conn.Close()
			log.Debug("Notary is accepting connections", "addr", addr, "attempts", attempt)
			return nil
		}
		lastErr = err
		log.Debug("Notary not accepting connections yet", "addr", addr, "attempt", attempt, "err", err)

		select {
		case <-waitCtx.Done():
			if ctxErr := ctx.Err(); ctxErr != nil {
				lastErr = errors.Join(ctxErr, lastErr)
			}
			return &ConnectivityError{Addr: addr, Timeout: timeout, Err: lastErr}
		case <-time.After(interval):
		}
	}
}
