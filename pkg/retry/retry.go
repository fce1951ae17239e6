// Package retry wraps backend operations with bounded exponential backoff.
//
// Adapters never retry internally; they compose a Controller around each
// wire attempt. Only errors classified retryable (transient network, rate
// limited, service unavailable) are re-attempted. With MaxRetries = N the
// operation runs at most N+1 times.
package retry

import (
	"context"
	"time"

	"github.com/sublate/sublate/pkg/provider"
)

// Controller holds the retry policy for one adapter instance.
type Controller struct {
	// MaxRetries is the number of re-attempts after the first failure.
	MaxRetries int

	// BaseDelay is the first backoff delay; attempt k sleeps
	// BaseDelay * 2^k.
	BaseDelay time.Duration

	// TimeBudget optionally bounds the total wall-clock time across all
	// attempts and delays. Zero means no budget; each attempt is bounded
	// only by the transport timeout and the caller's context.
	TimeBudget time.Duration

	// MinAttemptTimeout floors the per-attempt deadline derived from the
	// time budget, so late attempts still get a usable slice.
	MinAttemptTimeout time.Duration

	// IsRetryable classifies errors. Nil means provider.IsRetryable.
	IsRetryable func(error) bool

	// OnRetry is invoked before each re-attempt with the zero-based
	// index of the attempt that just failed. Optional.
	OnRetry func(attempt int, err error)

	// sleep is replaceable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Defaults applied by New.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
)

// New returns a Controller with defaults filled in.
func New(maxRetries int, baseDelay time.Duration) *Controller {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return &Controller{MaxRetries: maxRetries, BaseDelay: baseDelay}
}

// Do runs op under the controller's policy and returns its result.
//
// When a TimeBudget is set, each attempt runs under a derived deadline of
// max(MinAttemptTimeout, remaining - plannedNextDelay): the controller
// never promises more wall-clock time than it has left, and the planned
// backoff delay is already accounted for before the attempt starts.
func Do[T any](ctx context.Context, c *Controller, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	isRetryable := c.IsRetryable
	if isRetryable == nil {
		isRetryable = provider.IsRetryable
	}
	sleep := c.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	baseDelay := c.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}

	var deadline time.Time
	if c.TimeBudget > 0 {
		deadline = time.Now().Add(c.TimeBudget)
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			timeout := remaining - c.delay(attempt, baseDelay)
			if timeout < c.MinAttemptTimeout {
				timeout = c.MinAttemptTimeout
			}
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		}

		v, err := op(attemptCtx)
		cancel()
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !isRetryable(err) || attempt >= c.MaxRetries {
			return zero, lastErr
		}

		d := c.delay(attempt, baseDelay)
		if !deadline.IsZero() {
			if remaining := time.Until(deadline); d > remaining {
				d = remaining
			}
			if d < 0 {
				d = 0
			}
		}
		if c.OnRetry != nil {
			c.OnRetry(attempt, err)
		}
		if err := sleep(ctx, d); err != nil {
			return zero, lastErr
		}
	}
}

// delay computes BaseDelay * 2^attempt with overflow protection.
func (c *Controller) delay(attempt int, base time.Duration) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	return base << uint(attempt)
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
