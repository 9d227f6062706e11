package dispatch

import (
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// RetryPolicy configures the in-call retry behavior of the push transport.
// These retries happen inside a single Send; retries across poll cycles are
// governed by the dispatcher's MaxAttempts instead.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy returns sensible defaults for push gateway calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    250 * time.Millisecond,
		MaxWait:    5 * time.Second,
	}
}

// backoff determines the wait before the next retry attempt. It respects the
// Retry-After header if present, otherwise uses exponential backoff with full
// jitter clamped to [MinWait, MaxWait].
func (p RetryPolicy) backoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
				wait := time.Duration(seconds) * time.Second
				if wait > p.MaxWait {
					wait = p.MaxWait
				}
				return wait
			}
			if t, err := http.ParseTime(retryAfter); err == nil {
				wait := time.Until(t)
				if wait <= 0 {
					return p.MinWait
				}
				if wait > p.MaxWait {
					wait = p.MaxWait
				}
				return wait
			}
		}
	}

	base := float64(p.MinWait) * math.Pow(2, float64(attempt))
	maxWait := float64(p.MaxWait)
	if base > maxWait {
		base = maxWait
	}

	minWait := float64(p.MinWait)
	if base <= minWait {
		return p.MinWait
	}
	jittered := minWait + rand.Float64()*(base-minWait)
	return time.Duration(jittered)
}
