package util

import (
	"context"
	"golang.org/x/time/rate"
	"time"
)

// Limiter is a token bucket bounding how often watch mode re-runs the
// analysis.
type Limiter struct {
	inner *rate.Limiter
}

// NewLimiter allows r events per second with bursts of b.
func NewLimiter(r float64, b int) *Limiter {
	return &Limiter{inner: rate.NewLimiter(rate.Limit(r), b)}
}

// PerMinute returns a limiter admitting n runs per minute, one at a time.
// It returns nil when n is not positive, meaning unlimited.
func PerMinute(n int) *Limiter {
	if n <= 0 {
		return nil
	}
	return NewLimiter(float64(n)/60, 1)
}

func (l *Limiter) Allow(n int) bool {
	return l.inner.AllowN(time.Now(), n)
}

// Wait blocks until n tokens are available or ctx is done.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	return l.inner.WaitN(ctx, n)
}
