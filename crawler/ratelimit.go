package crawler

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket shared across all workers, gating HTTP fetches
// at a configured requests-per-second rate. The refill rate equals
// rate_limit and the capacity is rate_limit rounded down (at least one
// token); ordering among waiters is not FIFO-fair, only the global rate is
// conformant.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds a RateLimiter admitting rps requests per second, with
// a burst of rps tokens rounded down and never less than one, so a rate below
// one request per second still admits the first request at once.
func NewRateLimiter(rps float64) *RateLimiter {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks (cooperatively) until a token is available or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Check reports whether a token is immediately available without blocking
// or consuming it.
func (r *RateLimiter) Check() bool {
	return r.limiter.Tokens() >= 1
}
