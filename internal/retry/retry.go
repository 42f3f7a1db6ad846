// Package retry provides an explicit retry policy consumed by the
// transaction fetcher and the price resolver, so backoff behavior is
// configured in one place instead of inline loops.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"solana-wallet-pnl/internal/domain"
)

// Default policy values.
const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxDelay    = 10 * time.Second
	DefaultMultiplier  = 2.0
	DefaultJitter      = 0.2
)

// Policy describes how an operation is retried: attempt ceiling, backoff
// schedule, and which error kinds are retryable.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      float64 // 0..1, fraction of the delay randomized

	// Retryable decides whether an error warrants another attempt.
	// Nil means the default classification (rate limits and upstream outages).
	Retryable func(error) bool
}

// DefaultPolicy returns the policy used by upstream clients unless
// overridden through configuration.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Multiplier:  DefaultMultiplier,
		Jitter:      DefaultJitter,
	}
}

// IsRetryable is the default error classification: rate limits are always
// retried, upstream outages are retried until the ceiling.
func IsRetryable(err error) bool {
	return errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrUpstreamUnavailable)
}

// Do runs fn until it succeeds, a non-retryable error occurs, the attempt
// ceiling is reached, or the context is cancelled. The last error is wrapped
// so callers can still classify it with errors.Is.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.delay(attempt - 1)):
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) {
			return err
		}
	}

	return fmt.Errorf("max attempts (%d) exceeded: %w", maxAttempts, lastErr)
}

// delay computes the backoff before the given retry (1-based), with jitter.
func (p Policy) delay(retry int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	mult := p.Multiplier
	if mult <= 1 {
		mult = DefaultMultiplier
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}

	d := float64(base)
	for i := 1; i < retry; i++ {
		d *= mult
		if d >= float64(maxDelay) {
			break
		}
	}
	if d > float64(maxDelay) {
		d = float64(maxDelay)
	}

	if p.Jitter > 0 {
		j := rand.Float64() * p.Jitter * d
		if rand.IntN(2) == 0 {
			d -= j
		} else {
			d += j
		}
	}

	return time.Duration(d)
}
