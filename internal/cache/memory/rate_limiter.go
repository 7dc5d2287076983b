// Package memory provides in-process implementations of the bot's shared
// state interfaces for single-instance deployments without Redis.
package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/emojibot/internal/domain"
)

// RateLimiter implements domain.RateLimiter with one token bucket per key.
// A bucket refills limit tokens per window and bursts up to limit.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter *rate.Limiter
	limit   int
	window  time.Duration
}

// NewRateLimiter creates an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{buckets: make(map[string]*bucket)}
}

// Allow consumes one token from key's bucket.
func (rl *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return false, nil
	}

	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok || b.limit != limit || b.window != window {
		b = &bucket{
			limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
			limit:   limit,
			window:  window,
		}
		rl.buckets[key] = b
	}
	rl.mu.Unlock()

	return b.limiter.Allow(), nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
