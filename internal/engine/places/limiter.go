package places

import (
	"context"
	"sync"
	"time"
)

// Limiter hands out one permit at a time and spaces permits at least
// minDelay apart.
type Limiter struct {
	mu       sync.Mutex
	minDelay time.Duration
	last     time.Time
}

func NewLimiter(minDelay time.Duration) *Limiter {
	return &Limiter{minDelay: minDelay}
}

// Wait blocks until a permit is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.last.IsZero() {
		if wait := l.minDelay - time.Since(l.last); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	l.last = time.Now()
	return nil
}
