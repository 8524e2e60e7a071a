// Package ratelimiter throttles request lines on a single connection with a
// token bucket from golang.org/x/time/rate.
package ratelimiter

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Config describes one bucket.
type Config struct {
	// RequestsPerSecond is the sustained rate. Zero disables limiting.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"min=0"`

	// Burst is the bucket capacity. Zero means one second's worth of tokens.
	Burst int `mapstructure:"burst" yaml:"burst" validate:"min=0"`
}

// Enabled reports whether the config limits anything.
func (c Config) Enabled() bool {
	return c.RequestsPerSecond > 0
}

// RateLimiter is a token bucket. A nil *RateLimiter allows everything, so
// callers can hold one unconditionally.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New returns a limiter for cfg, or nil when cfg disables limiting.
func New(cfg Config) *RateLimiter {
	if !cfg.Enabled() {
		return nil
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
	}
}

// Allow consumes a token if one is available.
func (r *RateLimiter) Allow() bool {
	if r == nil {
		return true
	}
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Tokens returns the tokens currently in the bucket. An unlimited limiter
// reports -1.
func (r *RateLimiter) Tokens() float64 {
	if r == nil {
		return -1
	}
	return r.limiter.Tokens()
}
