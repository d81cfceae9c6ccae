package toolservice

import (
	"context"

	"golang.org/x/time/rate"

	"meridian/pkg/errors"
)

// limiter throttles outgoing calls to the tool service
type limiter struct {
	limiter *rate.Limiter
}

// newLimiter allows requestsPerMinute with a burst of a tenth of that.
// Zero or negative disables throttling.
func newLimiter(requestsPerMinute int) *limiter {
	if requestsPerMinute <= 0 {
		return &limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}

	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &limiter{limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)}
}

func (l *limiter) wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(errors.ErrRateLimitExceeded, "tool service limiter: %v", err)
	}
	return nil
}
