package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a minimum interval between request starts. All
// provider calls for one upstream share a single limiter so that
// concurrent chapter generation cannot burst past the provider's
// request-per-minute ceiling.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{interval: interval}
}

// Acquire blocks until a request slot is available or ctx is done.
// Each caller reserves the next slot up front, so waiters are served
// in arrival order and a cancelled waiter does not hand its slot back.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	if l == nil || l.interval <= 0 {
		return ctx.Err()
	}

	l.mu.Lock()
	now := time.Now()
	slot := l.next
	if slot.Before(now) {
		slot = now
	}
	l.next = slot.Add(l.interval)
	l.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
