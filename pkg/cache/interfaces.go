package cache

import (
	"context"
	"time"

	"shuttle-backend/internal/models"
)

// CacheManager is the read-through cache used for vehicle snapshots and
// route shapes. A miss returns nil without error.
type CacheManager interface {
	GetVehicle(ctx context.Context, vehicleID string) (*models.Vehicle, error)
	SetVehicle(ctx context.Context, vehicle *models.Vehicle, ttl time.Duration) error
	// InvalidateVehicle drops the snapshot and every list that contained it.
	InvalidateVehicle(ctx context.Context, vehicleID string) error

	GetVehicleList(ctx context.Context, key string) ([]*models.Vehicle, error)
	SetVehicleList(ctx context.Context, key string, vehicles []*models.Vehicle, ttl time.Duration) error

	// Get reports whether the key was found.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	TagKey(ctx context.Context, key string, tags ...string) error
	InvalidateByTag(ctx context.Context, tag string) error

	GetCacheStats(ctx context.Context) CacheStats
	HealthCheck(ctx context.Context) error
	Close() error
}

type CacheStats struct {
	HitRate       float64 `json:"hitRate"`
	MissRate      float64 `json:"missRate"`
	MemoryUsage   int64   `json:"memoryUsage"`
	KeyCount      int     `json:"keyCount"`
	EvictionCount int     `json:"evictionCount"`
	TotalHits     int64   `json:"totalHits"`
	TotalMisses   int64   `json:"totalMisses"`
}
