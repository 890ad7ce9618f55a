package redis

import (
	"testing"
	"time"

	"shuttle-backend/internal/config"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientAgainstMiniredis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := config.DefaultRedisConfig()
	cfg.Host = mr.Host()
	cfg.Port = mr.Port()

	client := NewClient(cfg)
	defer client.Close()

	assert.True(t, client.IsConnected())
	status := client.HealthCheck()
	assert.True(t, status.IsConnected)
	assert.Equal(t, mr.Addr(), status.ConnectionInfo)
	assert.False(t, status.LastPing.IsZero())
}

func TestHealthCheckReportsOutage(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr(), DialTimeout: 200 * time.Millisecond}))
	defer client.Close()

	mr.Close()

	status := client.HealthCheck()
	assert.False(t, status.IsConnected)
	assert.NotEmpty(t, status.Error)
	assert.False(t, client.IsConnected())
}

func TestBuildOptionsPrefersURL(t *testing.T) {
	cfg := config.DefaultRedisConfig()
	cfg.URL = "redis://:secret@cache.internal:6380/2"
	cfg.PoolSize = 7

	opt := buildOptions(cfg)
	assert.Equal(t, "cache.internal:6380", opt.Addr)
	assert.Equal(t, "secret", opt.Password)
	assert.Equal(t, 2, opt.DB)
	assert.Equal(t, 7, opt.PoolSize)

	cfg.URL = "::bad::"
	opt = buildOptions(cfg)
	assert.Equal(t, "localhost:6379", opt.Addr)
}

func TestGetConnectionStatsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	defer client.Close()

	stats := client.GetConnectionStats()
	for _, key := range []string{"hits", "misses", "timeouts", "totalConns", "idleConns", "staleConns", "isConnected"} {
		assert.Contains(t, stats, key)
	}
}
