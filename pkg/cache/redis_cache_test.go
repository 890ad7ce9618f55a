package cache

import (
	"context"
	"testing"
	"time"

	"shuttle-backend/internal/models"
	"shuttle-backend/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*RedisCacheManager, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	config := DefaultCacheConfig()
	config.KeyPrefix = "test:"
	config.TagPrefix = "test_tag:"
	return NewRedisCacheManager(client, config), mr
}

func TestRedisCacheManager_VehicleOperations(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(t)

	vehicle := &models.Vehicle{
		ID:           "shuttle-1",
		Name:         "Shuttle 1",
		Capacity:     12,
		Occupancy:    3,
		Status:       models.VehicleStatusActive,
		CurrentRoute: "campus-loop",
		Direction:    models.DirectionTo,
	}

	t.Run("SetVehicle", func(t *testing.T) {
		require.NoError(t, manager.SetVehicle(ctx, vehicle, 30*time.Second))
	})

	t.Run("GetVehicle", func(t *testing.T) {
		got, err := manager.GetVehicle(ctx, "shuttle-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, vehicle.Name, got.Name)
		assert.Equal(t, 3, got.Occupancy)
		assert.Equal(t, "campus-loop", got.CurrentRoute)
	})

	t.Run("GetVehicle_Miss", func(t *testing.T) {
		got, err := manager.GetVehicle(ctx, "unknown")
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("InvalidateVehicle", func(t *testing.T) {
		require.NoError(t, manager.InvalidateVehicle(ctx, "shuttle-1"))
		got, err := manager.GetVehicle(ctx, "shuttle-1")
		assert.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestRedisCacheManager_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	manager, mr := newTestManager(t)

	require.NoError(t, manager.SetVehicle(ctx, &models.Vehicle{ID: "v1"}, time.Minute))
	mr.FastForward(2 * time.Minute)

	got, err := manager.GetVehicle(ctx, "v1")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisCacheManager_VehicleListInvalidation(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(t)

	vehicles := []*models.Vehicle{{ID: "a"}, {ID: "b"}}
	require.NoError(t, manager.SetVehicleList(ctx, "all", vehicles, time.Minute))

	got, err := manager.GetVehicleList(ctx, "all")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// mutating a member drops the list
	require.NoError(t, manager.InvalidateVehicle(ctx, "b"))
	got, err = manager.GetVehicleList(ctx, "all")
	require.NoError(t, err)
	assert.Nil(t, got)

	// so does mutating a vehicle the list never contained
	require.NoError(t, manager.SetVehicleList(ctx, "all", vehicles, time.Minute))
	require.NoError(t, manager.InvalidateVehicle(ctx, "c"))
	got, err = manager.GetVehicleList(ctx, "all")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisCacheManager_GenericOperations(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(t)

	type shape struct {
		Points []float64 `json:"points"`
	}

	require.NoError(t, manager.Set(ctx, "shape:r1:to", shape{Points: []float64{1, 2}}, time.Hour))

	var out shape
	found, err := manager.Get(ctx, "shape:r1:to", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []float64{1, 2}, out.Points)

	found, err = manager.Get(ctx, "shape:r1:fro", &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, manager.Delete(ctx, manager.buildKey("generic", "shape:r1:to")))
	found, err = manager.Get(ctx, "shape:r1:to", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCacheManager_TaggingSystem(t *testing.T) {
	ctx := context.Background()
	manager, mr := newTestManager(t)

	require.NoError(t, manager.SetVehicle(ctx, &models.Vehicle{ID: "v1", CurrentRoute: "r1"}, time.Minute))
	require.NoError(t, manager.SetVehicle(ctx, &models.Vehicle{ID: "v2", CurrentRoute: "r1"}, time.Minute))
	require.NoError(t, manager.SetVehicle(ctx, &models.Vehicle{ID: "v3", CurrentRoute: "r2"}, time.Minute))

	require.NoError(t, manager.InvalidateByTag(ctx, "route:r1"))

	assert.False(t, mr.Exists("test:vehicle:v1"))
	assert.False(t, mr.Exists("test:vehicle:v2"))
	assert.True(t, mr.Exists("test:vehicle:v3"))
	assert.Equal(t, 2, manager.GetCacheStats(ctx).EvictionCount)

	// unknown tags are a no-op
	assert.NoError(t, manager.InvalidateByTag(ctx, "route:none"))
}

func TestRedisCacheManager_Stats(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(t)

	require.NoError(t, manager.SetVehicle(ctx, &models.Vehicle{ID: "v1"}, time.Minute))
	_, _ = manager.GetVehicle(ctx, "v1")
	_, _ = manager.GetVehicle(ctx, "v1")
	_, _ = manager.GetVehicle(ctx, "missing")

	stats := manager.GetCacheStats(ctx)
	assert.Equal(t, int64(2), stats.TotalHits)
	assert.Equal(t, int64(1), stats.TotalMisses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 0.001)
	assert.Equal(t, 1, stats.KeyCount)
}

func TestRedisCacheManager_HealthCheck(t *testing.T) {
	ctx := context.Background()
	manager, mr := newTestManager(t)

	assert.NoError(t, manager.HealthCheck(ctx))
	mr.Close()
	assert.Error(t, manager.HealthCheck(ctx))
}

func TestCacheConfigTTLs(t *testing.T) {
	config := DefaultCacheConfig()
	assert.Equal(t, config.VehicleDataTTL, config.GetTTLForDataType("vehicle"))
	assert.Equal(t, config.VehicleListTTL, config.GetTTLForDataType("vehicle_list"))
	assert.Equal(t, config.RouteShapeTTL, config.GetTTLForDataType("route_shape"))
	assert.Equal(t, config.VehicleDataTTL, config.GetTTLForDataType("other"))
}
