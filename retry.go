package xclaim

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/trickstertwo/xlog"
)

// Retrier executes fallible operations with bounded exponential backoff and
// jitter. Every error is treated as retryable; operations wrapped here are
// expected to be idempotent (blob PUT/GET/DELETE, enqueue). Callers needing
// stronger guarantees can inspect errors with IsTransient.
type Retrier struct {
	maxAttempts int
	initial     time.Duration
	multiplier  float64
	maxBackoff  time.Duration
	logger      *xlog.Logger
}

// NewRetrier builds a Retrier. maxAttempts below 1 is invalid input.
func NewRetrier(maxAttempts int, initial time.Duration, multiplier float64, maxBackoff time.Duration, logger *xlog.Logger) (*Retrier, error) {
	if maxAttempts < 1 {
		return nil, &ConfigError{Field: "RetryMaxAttempts", Reason: "must be >= 1"}
	}
	if multiplier < 1.0 {
		return nil, &ConfigError{Field: "RetryBackoffMultiplier", Reason: "must be >= 1.0"}
	}
	if logger == nil {
		logger = xlog.Default()
	}
	return &Retrier{
		maxAttempts: maxAttempts,
		initial:     initial,
		multiplier:  multiplier,
		maxBackoff:  maxBackoff,
		logger:      logger,
	}, nil
}

// Do runs op up to maxAttempts times, sleeping between attempts. A context
// interruption during the backoff sleep aborts the attempt loop and
// propagates the last cause; in-flight transport calls are not interrupted.
func (r *Retrier) Do(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if attempt == r.maxAttempts {
			break
		}
		delay := r.backoffDelay(attempt)
		r.logger.Warn().
			Int("attempt", attempt).
			Int("max_attempts", r.maxAttempts).
			Dur("delay", delay).
			Err(lastErr).
			Msg("xclaim: operation failed, retrying")

		select {
		case <-ctx.Done():
			return &RetryExhaustedError{Attempts: attempt, Err: lastErr}
		case <-time.After(delay):
		}
	}
	return &RetryExhaustedError{Attempts: r.maxAttempts, Err: lastErr}
}

// RetryValue runs op through r and returns its value on success.
func RetryValue[T any](ctx context.Context, r *Retrier, op func() (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func() error {
		v, err := op()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// backoffDelay computes min(initial * multiplier^(attempt-1), maxBackoff)
// scaled by a jitter factor uniformly sampled in [0.75, 1.25], floored at 0.
func (r *Retrier) backoffDelay(attempt int) time.Duration {
	exp := float64(r.initial) * math.Pow(r.multiplier, float64(attempt-1))
	base := time.Duration(exp)
	if base > r.maxBackoff {
		base = r.maxBackoff
	}
	jitter := 0.75 + rand.Float64()*0.5
	d := time.Duration(float64(base) * jitter)
	if d < 0 {
		d = 0
	}
	return d
}
