// Package ratelimit builds token bucket limiters for the client transport.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// NewRateLimiter creates a new rate limiter with specified requests per minute.
// It uses a token bucket algorithm where tokens are replenished continuously
// at the rate of requestsPerMinute/60 per second, with a burst capacity equal
// to requestsPerMinute. A non-positive value returns nil, meaning unlimited.
func NewRateLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return nil
	}

	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute)
}

// PerHost returns a lookup that keeps one limiter per host, each allowing
// requestsPerMinute. Limiters are created on first use and kept for the
// lifetime of the lookup.
func PerHost(requestsPerMinute int) func(host string) *rate.Limiter {
	var limiters sync.Map

	return func(host string) *rate.Limiter {
		if l, ok := limiters.Load(host); ok {
			//nolint:forcetypeassert // Map only stores limiters
			return l.(*rate.Limiter)
		}

		l, _ := limiters.LoadOrStore(host, NewRateLimiter(requestsPerMinute))

		//nolint:forcetypeassert // Map only stores limiters
		return l.(*rate.Limiter)
	}
}
