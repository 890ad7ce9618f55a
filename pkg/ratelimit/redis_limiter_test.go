package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func testConfig() *Config {
	config := DefaultConfig()
	config.Limits[CategoryTelemetry] = RateLimit{RequestsPerMinute: 3, BurstSize: 3, WindowSize: time.Minute}
	return config
}

func TestRedisRateLimiter_BlocksAfterBurst(t *testing.T) {
	limiter := NewRedisRateLimiter(setupTestRedis(t), testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, reset, err := limiter.Allow(ctx, "vehicle:v1", CategoryTelemetry)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
		assert.Zero(t, reset)
	}

	allowed, reset, err := limiter.Allow(ctx, "vehicle:v1", CategoryTelemetry)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, reset, time.Duration(0))

	stats := limiter.GetStats()
	assert.Equal(t, int64(4), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.BlockedRequests)
}

func TestRedisRateLimiter_WindowReset(t *testing.T) {
	limiter := NewRedisRateLimiter(setupTestRedis(t), testConfig())
	ctx := context.Background()

	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		allowed, _, err := limiter.Allow(ctx, "vehicle:v1", CategoryTelemetry)
		require.NoError(t, err)
		require.True(t, allowed)
	}
	allowed, _, err := limiter.Allow(ctx, "vehicle:v1", CategoryTelemetry)
	require.NoError(t, err)
	assert.False(t, allowed)

	now = now.Add(61 * time.Second)
	allowed, _, err = limiter.Allow(ctx, "vehicle:v1", CategoryTelemetry)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisRateLimiter_ClientsAndCategoriesAreIndependent(t *testing.T) {
	limiter := NewRedisRateLimiter(setupTestRedis(t), testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := limiter.Allow(ctx, "vehicle:v1", CategoryTelemetry)
		require.NoError(t, err)
	}

	allowed, _, err := limiter.Allow(ctx, "vehicle:v2", CategoryTelemetry)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, err = limiter.Allow(ctx, "vehicle:v1", CategoryDefault)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisRateLimiter_Disabled(t *testing.T) {
	config := testConfig()
	config.Enabled = false
	limiter := NewRedisRateLimiter(setupTestRedis(t), config)

	for i := 0; i < 10; i++ {
		allowed, _, err := limiter.Allow(context.Background(), "vehicle:v1", CategoryTelemetry)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	assert.Zero(t, limiter.GetStats().TotalRequests)
}

func TestMemoryRateLimiter_RefillsOverTime(t *testing.T) {
	config := testConfig()
	config.Limits[CategoryTelemetry] = RateLimit{RequestsPerMinute: 60, BurstSize: 2, WindowSize: time.Minute}
	limiter := NewMemoryRateLimiter(config)

	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(ctx, "vehicle:v1", CategoryTelemetry)
		require.NoError(t, err)
		require.True(t, allowed)
	}

	allowed, wait, err := limiter.Allow(ctx, "vehicle:v1", CategoryTelemetry)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, time.Second, wait)

	now = now.Add(time.Second)
	allowed, _, err = limiter.Allow(ctx, "vehicle:v1", CategoryTelemetry)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestMemoryRateLimiter_SweepsIdleBuckets(t *testing.T) {
	config := testConfig()
	config.CleanupInterval = time.Minute
	limiter := NewMemoryRateLimiter(config)

	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	_, _, err := limiter.Allow(ctx, "vehicle:v1", CategoryTelemetry)
	require.NoError(t, err)
	_, _, err = limiter.Allow(ctx, "vehicle:v2", CategoryTelemetry)
	require.NoError(t, err)
	assert.Equal(t, 2, limiter.GetStats().ActiveClients)

	now = now.Add(2 * time.Minute)
	_, _, err = limiter.Allow(ctx, "vehicle:v3", CategoryTelemetry)
	require.NoError(t, err)
	assert.Equal(t, 1, limiter.GetStats().ActiveClients)
}

func TestCategoryFor(t *testing.T) {
	tests := []struct {
		method, route, want string
	}{
		{"POST", "/api/v1/vehicles/:id/telemetry", CategoryTelemetry},
		{"POST", "/api/v1/reservations", CategoryReservations},
		{"DELETE", "/api/v1/reservations/:id", CategoryReservations},
		{"PATCH", "/api/v1/assignments/:id", CategoryAssignments},
		{"GET", "/api/v1/health", CategoryHealth},
		{"GET", "/api/v1/vehicles", CategoryDefault},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.route, func(t *testing.T) {
			assert.Equal(t, tt.want, CategoryFor(tt.method, tt.route))
		})
	}
}
