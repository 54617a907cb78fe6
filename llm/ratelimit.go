package llm

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/mindforge-ai/mindforge/errs"
)

// RateLimiter enforces a token-bucket limit on outbound generation calls,
// grounded on the teacher's AdaptiveRateLimiter (features/model/middleware/
// ratelimit.go) but process-local only: Non-goals exclude distributed
// consensus across instances, so the cluster-coordinated variant (Pulse
// replicated map) has no home here.
//
// The gateway's rate limiter is process-wide (spec §5): one RateLimiter
// instance is shared by every call through a given Gateway.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter constructs a RateLimiter allowing ratePerSecond sustained
// requests with burst allowed immediately.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Wait blocks until a token is available or ctx's deadline elapses. On the
// latter it returns a RateLimited error (spec §4.2: "the gateway sleeps
// until the next token is available or the caller's timeout elapses").
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return errs.Wrap(errs.KindRateLimited, err, "llm: rate limit wait exceeded caller timeout")
	}
	return nil
}
