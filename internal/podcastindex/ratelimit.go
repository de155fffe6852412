package podcastindex

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces outbound requests so at most maxRequests are sent per
// window, allowing a burst of maxRequests. A nil limiter never blocks.
type RateLimiter struct {
	lim *rate.Limiter
}

// NewRateLimiter allows maxRequests per window. It returns nil when
// maxRequests or window is not positive.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	if maxRequests <= 0 || window <= 0 {
		return nil
	}
	every := rate.Every(window / time.Duration(maxRequests))
	return &RateLimiter{lim: rate.NewLimiter(every, maxRequests)}
}

// Wait blocks until a request may be sent or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return nil
	}
	return rl.lim.Wait(ctx)
}
