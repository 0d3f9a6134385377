package harvest

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultThrottleBackoff = 60 * time.Second

// Limiter enforces a minimum spacing between portal requests. On top of
// the steady token bucket it keeps a hold-off horizon that gets pushed
// out whenever the portal signals throttling, so every caller waits out
// the penalty, not just the request that tripped it.
type Limiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	holdOff time.Time
}

// NewLimiter spaces requests at least minInterval apart, allowing
// bursts of up to burst immediate requests after idle periods.
func NewLimiter(minInterval time.Duration, burst int) *Limiter {
	if minInterval <= 0 {
		minInterval = 2 * time.Second
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Every(minInterval), burst),
	}
}

// Wait blocks until the next request may go out. It first sits out any
// throttle hold-off, then waits for the token bucket.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	holdOff := l.holdOff
	l.mu.Unlock()

	if time.Now().Before(holdOff) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(holdOff)):
		}
	}

	return l.limiter.Wait(ctx)
}

// RecordThrottle pushes the hold-off horizon after the portal returned
// a throttling response. A non-positive duration applies the default
// 60 second penalty.
func (l *Limiter) RecordThrottle(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if d <= 0 {
		d = defaultThrottleBackoff
	}
	until := time.Now().Add(d)
	if until.After(l.holdOff) {
		l.holdOff = until
	}
}

// Allow reports whether a request could go out right now without
// blocking.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	holdOff := l.holdOff
	l.mu.Unlock()

	if time.Now().Before(holdOff) {
		return false
	}
	return l.limiter.Allow()
}
