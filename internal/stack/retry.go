// File: internal/stack/retry.go
// Brief: Bounded retry policy with exponential backoff and jitter.

package stack

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy bounds a retried operation by attempt count, with exponential
// backoff between attempts.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Backoff returns the delay before the given 1-based attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = 800 * time.Millisecond
	}
	if attempt <= 1 {
		return jitter(base)
	}
	shift := attempt - 1
	if shift > 6 {
		shift = 6
	}
	d := base * time.Duration(1<<uint(shift))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return jitter(d)
}

// Wait sleeps for the backoff of the given attempt, returning early with the
// context error on cancellation.
func (p RetryPolicy) Wait(ctx context.Context, attempt int) error {
	t := time.NewTimer(p.Backoff(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	// +/- 20%
	f := 0.8 + rand.Float64()*0.4
	return time.Duration(float64(d) * f)
}
