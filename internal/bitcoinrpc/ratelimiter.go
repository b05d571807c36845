package bitcoinrpc

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"
)

// rateLimiter wraps a token bucket rate limiter for a specific provider.
type rateLimiter struct {
	limiter *rate.Limiter
	name    string
}

// newRateLimiter creates a rate limiter allowing rps requests per second.
func newRateLimiter(name string, rps int) *rateLimiter {
	slog.Debug("rate limiter created", "provider", name, "rps", rps)
	return &rateLimiter{
		// Burst(1) spreads requests evenly across the second instead of
		// letting a whole second's allowance fire at once.
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		name:    name,
	}
}

// Wait blocks until the rate limiter allows another request or ctx is cancelled.
func (rl *rateLimiter) Wait(ctx context.Context) error {
	if err := rl.limiter.Wait(ctx); err != nil {
		slog.Warn("rate limiter wait cancelled", "provider", rl.name, "error", err)
		return err
	}
	return nil
}

// Name returns the provider name this limiter is associated with.
func (rl *rateLimiter) Name() string {
	return rl.name
}
