package ratelimit

import (
	"context"
	"time"
)

// RateLimiter decides whether a client may call an endpoint category.
type RateLimiter interface {
	Allow(ctx context.Context, clientID string, category string) (bool, time.Duration, error)
	Limit(category string) RateLimit
	GetStats() RateLimiterStats
}

// RateLimit defines the configuration for rate limiting
type RateLimit struct {
	RequestsPerMinute int           `json:"requestsPerMinute"`
	BurstSize         int           `json:"burstSize"`
	WindowSize        time.Duration `json:"windowSize"`
}

// RateLimiterStats provides statistics about rate limiting
type RateLimiterStats struct {
	TotalRequests   int64 `json:"totalRequests"`
	BlockedRequests int64 `json:"blockedRequests"`
	ActiveClients   int   `json:"activeClients"`
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}
