package toolservice

import (
	"context"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"meridian/pkg/errors"
)

// Backoff is the delay schedule between attempts
type Backoff string

const (
	BackoffExponential Backoff = "exponential"
	BackoffLinear      Backoff = "linear"
	BackoffFixed       Backoff = "fixed"
)

// RetryPolicy controls how failed calls are retried
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Backoff      Backoff
	Multiplier   float64
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   2,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Backoff:      BackoffExponential,
		Multiplier:   2.0,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Multiplier <= 0 {
		p.Multiplier = def.Multiplier
	}
	if p.Backoff == "" {
		p.Backoff = def.Backoff
	}
	return p
}

// do runs fn until it succeeds, fails permanently or runs out of attempts.
// onRetry is called before every repeated attempt.
func (p RetryPolicy) do(ctx context.Context, fn func() error, onRetry func(attempt int, err error)) error {
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) || attempt == p.MaxRetries {
			break
		}

		if onRetry != nil {
			onRetry(attempt+1, err)
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "retry cancelled")
		case <-time.After(p.delay(attempt)):
		}
	}

	return lastErr
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	var d time.Duration
	switch p.Backoff {
	case BackoffExponential:
		d = time.Duration(float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt)))
	case BackoffLinear:
		d = p.InitialDelay * time.Duration(1+attempt)
	default:
		d = p.InitialDelay
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// statusError carries a non-2xx response from the tool service
type statusError struct {
	code    int
	message string
}

func (e *statusError) Error() string {
	if e.message == "" {
		return http.StatusText(e.code)
	}
	return e.message
}

func (e *statusError) StatusCode() int { return e.code }

func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var status *statusError
	if errors.As(err, &status) {
		return status.code == http.StatusTooManyRequests ||
			status.code == http.StatusRequestTimeout ||
			status.code >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{"connection refused", "connection reset", "broken pipe", "eof"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
