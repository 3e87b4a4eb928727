// Package retry provides a bounded-attempt loop with exponential backoff and
// a cancellation-aware sleep, decoupled from the operation being retried.
package retry

import (
	"context"
	"errors"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultMaxDelay    = 2 * time.Minute
)

// Policy controls how Do schedules attempts.
type Policy struct {
	// MaxAttempts bounds the total number of attempts (defaults to 3).
	MaxAttempts int
	// BaseDelay is slept before the second attempt and doubles per attempt
	// up to MaxDelay. Zero disables sleeping between attempts.
	BaseDelay time.Duration
	// MaxDelay caps the backoff growth (defaults to 2 minutes).
	MaxDelay time.Duration
	// Classify decides whether an attempt error is worth retrying. When nil,
	// every error except a cancellation is retried. Deadline errors are left
	// to Classify: an attempt-scoped timeout may be retried while the parent
	// context is still live.
	Classify func(error) bool
	// Sleeper overrides how backoff sleeps are performed (useful for tests).
	Sleeper func(time.Duration)
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return p.MaxAttempts
}

func (p Policy) maxDelay() time.Duration {
	if p.MaxDelay <= 0 {
		return defaultMaxDelay
	}
	return p.MaxDelay
}

// Delay returns the backoff before the attempt following the given 1-based
// attempt number: BaseDelay, then doubled per attempt, capped at MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	maxDelay := p.maxDelay()
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if p.Classify == nil {
		return true
	}
	return p.Classify(err)
}

// Do runs op until it succeeds, the attempt budget is exhausted, the error is
// classified as not retryable, or ctx is done. It returns the number of
// attempts made alongside the last error.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) (int, error) {
	if op == nil {
		return 0, errors.New("retry: nil operation")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	attempts := p.attempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return attempt - 1, lastErr
			}
			return attempt - 1, err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return attempt, nil
		}
		if attempt >= attempts || !p.retryable(lastErr) {
			return attempt, lastErr
		}

		if err := p.sleep(ctx, p.Delay(attempt)); err != nil {
			return attempt, lastErr
		}
	}

	return attempts, lastErr
}

// Do runs op under the given policy. See Policy.Do.
func Do(ctx context.Context, policy Policy, op func(context.Context) error) (int, error) {
	return policy.Do(ctx, op)
}

func (p Policy) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if p.Sleeper != nil {
		p.Sleeper(delay)
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
