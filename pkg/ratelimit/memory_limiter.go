package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryRateLimiter implements RateLimiter with per-process token buckets.
// Used when Redis is not configured.
type MemoryRateLimiter struct {
	config    *Config
	total     atomic.Int64
	blocked   atomic.Int64
	buckets   map[string]*tokenBucket
	lastSweep time.Time
	mu        sync.Mutex
	now       func() time.Time
}

// NewMemoryRateLimiter creates a new in-memory rate limiter
func NewMemoryRateLimiter(config *Config) *MemoryRateLimiter {
	if config == nil {
		config = DefaultConfig()
	}

	return &MemoryRateLimiter{
		config:  config,
		buckets: make(map[string]*tokenBucket),
		now:     time.Now,
	}
}

// Allow takes one token from the client's bucket for the category.
func (r *MemoryRateLimiter) Allow(_ context.Context, clientID string, category string) (bool, time.Duration, error) {
	if !r.config.Enabled {
		return true, 0, nil
	}

	r.total.Add(1)

	limit := r.config.limitFor(category)
	key := category + ":" + clientID
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweep(now)

	bucket, ok := r.buckets[key]
	if !ok {
		bucket = &tokenBucket{tokens: float64(limit.BurstSize), lastRefill: now}
		r.buckets[key] = bucket
	}

	rate := refillRate(limit)
	elapsed := now.Sub(bucket.lastRefill).Seconds()
	bucket.tokens = min(float64(limit.BurstSize), bucket.tokens+elapsed*rate)
	bucket.lastRefill = now

	if bucket.tokens >= 1 {
		bucket.tokens--
		return true, 0, nil
	}

	r.blocked.Add(1)
	if rate <= 0 {
		return false, limit.WindowSize, nil
	}
	wait := time.Duration((1 - bucket.tokens) / rate * float64(time.Second))
	return false, max(wait, time.Second), nil
}

// refillRate is tokens per second.
func refillRate(limit RateLimit) float64 {
	return float64(limit.RequestsPerMinute) / 60
}

// sweep drops buckets idle for longer than the cleanup interval. Caller holds mu.
func (r *MemoryRateLimiter) sweep(now time.Time) {
	if r.config.CleanupInterval <= 0 || now.Sub(r.lastSweep) < r.config.CleanupInterval {
		return
	}
	r.lastSweep = now
	for key, bucket := range r.buckets {
		if now.Sub(bucket.lastRefill) > r.config.CleanupInterval {
			delete(r.buckets, key)
		}
	}
}

// Limit returns the configured limit of a category.
func (r *MemoryRateLimiter) Limit(category string) RateLimit {
	return r.config.limitFor(category)
}

// GetStats returns rate limiting statistics
func (r *MemoryRateLimiter) GetStats() RateLimiterStats {
	r.mu.Lock()
	active := len(r.buckets)
	r.mu.Unlock()

	return RateLimiterStats{
		TotalRequests:   r.total.Load(),
		BlockedRequests: r.blocked.Load(),
		ActiveClients:   active,
	}
}
