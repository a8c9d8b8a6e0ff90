package stack

import (
	"context"
	"testing"
	"time"
)

func TestRetryPolicy_BackoffGrowsAndCaps(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	prev := time.Duration(0)
	for attempt := 1; attempt <= 6; attempt++ {
		d := p.Backoff(attempt)
		// Jitter is +/- 20%, so the cap can only be exceeded by that margin.
		if d > time.Second+200*time.Millisecond {
			t.Fatalf("attempt %d: backoff %s exceeds cap", attempt, d)
		}
		if d <= 0 {
			t.Fatalf("attempt %d: non-positive backoff %s", attempt, d)
		}
		_ = prev
		prev = d
	}
}

func TestRetryPolicy_WaitHonorsCancellation(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Wait(ctx, 1); err == nil {
		t.Fatalf("expected context error")
	}
}
