package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultRetryAttempts  = 3
	DefaultRetryBaseDelay = time.Second
)

// RetryPolicy bounds how often an idempotent setup call is attempted.
// The wait before attempt k+1 is BaseDelay * 2^(k-1).
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: DefaultRetryAttempts, BaseDelay: DefaultRetryBaseDelay}
}

func (p RetryPolicy) Validate() error {
	var errs []error
	if p.Attempts < 1 {
		errs = append(errs, fmt.Errorf("retry attempts must be at least 1, got %d", p.Attempts))
	}
	if p.BaseDelay < 0 {
		errs = append(errs, fmt.Errorf("retry base delay must not be negative, got %s", p.BaseDelay))
	}
	return errors.Join(errs...)
}

// backOff returns a deterministic doubling schedule stopping after
// Attempts-1 waits.
func (p RetryPolicy) backOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BaseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = time.Duration(math.MaxInt64)
	exp.MaxElapsedTime = 0
	exp.Reset()

	retries := p.Attempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(exp, uint64(retries))
}

// Delays lists the waits the policy inserts between attempts.
func (p RetryPolicy) Delays() []time.Duration {
	b := p.backOff()
	var delays []time.Duration
	for d := b.NextBackOff(); d != backoff.Stop; d = b.NextBackOff() {
		delays = append(delays, d)
	}
	return delays
}

// Retry calls fn until it succeeds or the policy is exhausted. It returns the
// number of attempts made and, on failure, the error of the last attempt
// unchanged. Cancelling ctx stops further attempts and returns ctx.Err().
func Retry(ctx context.Context, policy RetryPolicy, log *slog.Logger, op string, fn func(context.Context) error) (int, error) {
	attempts := 0
	operation := func() error {
		attempts++
		return fn(ctx)
	}
	notify := func(err error, delay time.Duration) {
		log.Warn("Attempt failed, retrying",
			"op", op,
			"attempt", attempts,
			"max_attempts", policy.Attempts,
			"delay", delay,
			"err", err)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(policy.backOff(), ctx), notify)
	return attempts, err
}
