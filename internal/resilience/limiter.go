package resilience

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter is a token bucket that backs off when a provider answers 429 and
// recovers gradually on success. Rate moves between initial/4 and the
// initial rate.
type Limiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	initial rate.Limit
	min     rate.Limit
	current rate.Limit
}

// NewLimiter creates a limiter allowing perSecond events with the given
// burst. A non-positive perSecond disables limiting.
func NewLimiter(perSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	r := rate.Limit(perSecond)
	if perSecond <= 0 {
		r = rate.Inf
	}
	return &Limiter{
		limiter: rate.NewLimiter(r, burst),
		initial: r,
		min:     r / 4,
		current: r,
	}
}

// Wait blocks until a call may proceed.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// OnSuccess raises the rate by 20% up to the initial rate.
func (l *Limiter) OnSuccess() {
	if l == nil || l.initial == rate.Inf {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current >= l.initial {
		return
	}
	l.current = min(l.current*1.2, l.initial)
	l.limiter.SetLimit(l.current)
}

// OnRateLimit halves the rate.
func (l *Limiter) OnRateLimit() {
	if l == nil || l.initial == rate.Inf {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = max(l.current*0.5, l.min)
	l.limiter.SetLimit(l.current)
	zap.L().Warn("rate limited: reducing outbound rate",
		zap.Float64("new_rate", float64(l.current)),
	)
}

// Limit returns the current rate.
func (l *Limiter) Limit() rate.Limit {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Gate bundles the limiter, breaker, retry policy and per-call deadline that
// guard one outbound provider.
type Gate struct {
	Name    string
	Limiter *Limiter
	Breaker *CircuitBreaker
	Retry   RetryConfig
	Timeout time.Duration
}

// Call runs fn through the gate. Each attempt waits for the limiter and is
// bounded by Timeout; only transient errors are retried.
func Call[T any](ctx context.Context, g *Gate, fn func(ctx context.Context) (T, error)) (T, error) {
	retry := g.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = RetryLogger(g.Name, "call")
	}

	attempt := func(ctx context.Context) (T, error) {
		var zero T
		if err := g.Limiter.Wait(ctx); err != nil {
			return zero, err
		}
		if g.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.Timeout)
			defer cancel()
		}
		val, err := fn(ctx)
		switch {
		case err == nil:
			g.Limiter.OnSuccess()
		case IsRateLimited(err):
			g.Limiter.OnRateLimit()
		}
		return val, err
	}

	if g.Breaker == nil {
		return DoVal(ctx, retry, attempt)
	}
	return DoVal(ctx, retry, func(ctx context.Context) (T, error) {
		return Execute(ctx, g.Breaker, attempt)
	})
}
