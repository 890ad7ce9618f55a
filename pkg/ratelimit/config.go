package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Category names used by the HTTP surface.
const (
	CategoryTelemetry    = "telemetry"
	CategoryReservations = "reservations"
	CategoryAssignments  = "assignments"
	CategoryAlerts       = "alerts"
	CategoryHealth       = "health"
	CategoryDefault      = "default"
)

// Config holds the configuration for rate limiting
type Config struct {
	// Limits per endpoint category
	Limits map[string]RateLimit `json:"limits"`

	// Redis key prefix for rate limiting data
	RedisKeyPrefix string `json:"redisKeyPrefix"`

	// How often the memory limiter drops idle buckets
	CleanupInterval time.Duration `json:"cleanupInterval"`

	Enabled bool `json:"enabled"`
}

// DefaultConfig returns a default rate limiting configuration
func DefaultConfig() *Config {
	return &Config{
		Limits: map[string]RateLimit{
			// Drivers report every few seconds; keyed per vehicle
			CategoryTelemetry: {RequestsPerMinute: 120, BurstSize: 30, WindowSize: time.Minute},

			CategoryReservations: {RequestsPerMinute: 30, BurstSize: 10, WindowSize: time.Minute},
			CategoryAssignments:  {RequestsPerMinute: 30, BurstSize: 10, WindowSize: time.Minute},
			CategoryAlerts:       {RequestsPerMinute: 60, BurstSize: 20, WindowSize: time.Minute},

			// Health check - very permissive
			CategoryHealth: {RequestsPerMinute: 1000, BurstSize: 100, WindowSize: time.Minute},

			CategoryDefault: {RequestsPerMinute: 120, BurstSize: 30, WindowSize: time.Minute},
		},
		RedisKeyPrefix:  "shuttle:ratelimit:",
		CleanupInterval: 5 * time.Minute,
		Enabled:         true,
	}
}

// LoadConfigFromEnv overlays RATE_LIMIT_ENABLED and RATE_LIMIT_TELEMETRY_PER_MINUTE.
func LoadConfigFromEnv() *Config {
	config := DefaultConfig()

	if val := os.Getenv("RATE_LIMIT_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			config.Enabled = enabled
		}
	}

	if val := os.Getenv("RATE_LIMIT_TELEMETRY_PER_MINUTE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			limit := config.Limits[CategoryTelemetry]
			limit.RequestsPerMinute = n
			limit.BurstSize = n
			config.Limits[CategoryTelemetry] = limit
		}
	}

	return config
}

// limitFor returns the limit of a category, falling back to the default one.
func (c *Config) limitFor(category string) RateLimit {
	if limit, ok := c.Limits[category]; ok {
		return limit
	}
	return c.Limits[CategoryDefault]
}

var endpointCategories = map[string]string{
	"POST:/api/v1/vehicles/:id/telemetry": CategoryTelemetry,
	"POST:/api/v1/vehicles/:id/occupancy": CategoryTelemetry,

	"POST:/api/v1/reservations":     CategoryReservations,
	"DELETE:/api/v1/reservations/*": CategoryReservations,
	"POST:/api/v1/reservations/*":   CategoryReservations,

	"POST:/api/v1/assignments":     CategoryAssignments,
	"POST:/api/v1/assignments/*":   CategoryAssignments,
	"PATCH:/api/v1/assignments/*":  CategoryAssignments,
	"DELETE:/api/v1/assignments/*": CategoryAssignments,

	"POST:/api/v1/alerts":     CategoryAlerts,
	"PATCH:/api/v1/alerts/*":  CategoryAlerts,
	"POST:/api/v1/alerts/*":   CategoryAlerts,
	"DELETE:/api/v1/alerts/*": CategoryAlerts,

	"GET:/api/v1/health": CategoryHealth,
}

// CategoryFor maps a method and gin route template to a limit category.
func CategoryFor(method, route string) string {
	endpoint := method + ":" + route
	if category, ok := endpointCategories[endpoint]; ok {
		return category
	}

	for pattern, category := range endpointCategories {
		if matchesPattern(endpoint, pattern) {
			return category
		}
	}

	return CategoryDefault
}

// matchesPattern checks if an endpoint matches a pattern with a trailing wildcard
func matchesPattern(endpoint, pattern string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(endpoint, prefix)
	}
	return endpoint == pattern
}
