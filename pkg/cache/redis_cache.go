package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"shuttle-backend/internal/models"
	"shuttle-backend/pkg/redis"

	goredis "github.com/redis/go-redis/v9"
)

const vehicleListsTag = "vehicle_lists"

type RedisCacheManager struct {
	client *redis.Client
	config CacheConfig

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

func NewRedisCacheManager(redisClient *redis.Client, config CacheConfig) *RedisCacheManager {
	return &RedisCacheManager{
		client: redisClient,
		config: config,
	}
}

func (r *RedisCacheManager) rdb() *goredis.Client {
	return r.client.GetClient()
}

func (r *RedisCacheManager) GetVehicle(ctx context.Context, vehicleID string) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	found, err := r.getJSON(ctx, r.buildKey("vehicle", vehicleID), &vehicle)
	if err != nil || !found {
		return nil, err
	}
	return &vehicle, nil
}

func (r *RedisCacheManager) SetVehicle(ctx context.Context, vehicle *models.Vehicle, ttl time.Duration) error {
	key := r.buildKey("vehicle", vehicle.ID)
	if err := r.setJSON(ctx, key, vehicle, ttl); err != nil {
		return fmt.Errorf("failed to set vehicle in cache: %w", err)
	}

	tags := []string{"vehicle:" + vehicle.ID}
	if vehicle.CurrentRoute != "" {
		tags = append(tags, "route:"+vehicle.CurrentRoute)
	}
	if err := r.TagKey(ctx, key, tags...); err != nil {
		log.Printf("Warning: failed to tag cache key %s: %v", key, err)
	}
	return nil
}

func (r *RedisCacheManager) InvalidateVehicle(ctx context.Context, vehicleID string) error {
	if err := r.InvalidateByTag(ctx, "vehicle:"+vehicleID); err != nil {
		return err
	}
	// a new vehicle is in no list yet but still changes every list
	return r.InvalidateByTag(ctx, vehicleListsTag)
}

func (r *RedisCacheManager) GetVehicleList(ctx context.Context, key string) ([]*models.Vehicle, error) {
	var vehicles []*models.Vehicle
	found, err := r.getJSON(ctx, r.buildKey("vehicle_list", key), &vehicles)
	if err != nil || !found {
		return nil, err
	}
	return vehicles, nil
}

func (r *RedisCacheManager) SetVehicleList(ctx context.Context, key string, vehicles []*models.Vehicle, ttl time.Duration) error {
	cacheKey := r.buildKey("vehicle_list", key)
	if err := r.setJSON(ctx, cacheKey, vehicles, ttl); err != nil {
		return fmt.Errorf("failed to set vehicle list in cache: %w", err)
	}

	tags := []string{vehicleListsTag}
	for _, v := range vehicles {
		tags = append(tags, "vehicle:"+v.ID)
	}
	if err := r.TagKey(ctx, cacheKey, tags...); err != nil {
		log.Printf("Warning: failed to tag cache key %s: %v", cacheKey, err)
	}
	return nil
}

func (r *RedisCacheManager) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	return r.getJSON(ctx, r.buildKey("generic", key), dest)
}

func (r *RedisCacheManager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return r.setJSON(ctx, r.buildKey("generic", key), value, ttl)
}

// Delete removes a fully built key and its tag bookkeeping.
func (r *RedisCacheManager) Delete(ctx context.Context, key string) error {
	if err := r.removeKeyTags(ctx, key); err != nil {
		log.Printf("Warning: failed to remove tags for key %s: %v", key, err)
	}
	return r.rdb().Del(ctx, key).Err()
}

// TagKey records key under each tag, both directions, so InvalidateByTag
// can find it. Tag sets outlive the data they point at.
func (r *RedisCacheManager) TagKey(ctx context.Context, key string, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	tagTTL := r.config.VehicleDataTTL * 4

	pipe := r.rdb().Pipeline()
	keyTagsKey := r.buildTagKey("key_tags", key)
	pipe.SAdd(ctx, keyTagsKey, tags)
	pipe.Expire(ctx, keyTagsKey, tagTTL)

	for _, tag := range tags {
		tagKeysKey := r.buildTagKey("tag_keys", tag)
		pipe.SAdd(ctx, tagKeysKey, key)
		pipe.Expire(ctx, tagKeysKey, tagTTL)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisCacheManager) InvalidateByTag(ctx context.Context, tag string) error {
	tagKeysKey := r.buildTagKey("tag_keys", tag)

	keys, err := r.rdb().SMembers(ctx, tagKeysKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get keys for tag %s: %w", tag, err)
	}
	if len(keys) == 0 {
		return nil
	}

	pipe := r.rdb().Pipeline()
	for _, key := range keys {
		pipe.Del(ctx, key)
		pipe.Del(ctx, r.buildTagKey("key_tags", key))
	}
	pipe.Del(ctx, tagKeysKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to invalidate keys for tag %s: %w", tag, err)
	}

	r.evictions.Add(int64(len(keys)))
	return nil
}

func (r *RedisCacheManager) GetCacheStats(ctx context.Context) CacheStats {
	hits := r.hits.Load()
	misses := r.misses.Load()

	stats := CacheStats{
		TotalHits:     hits,
		TotalMisses:   misses,
		EvictionCount: int(r.evictions.Load()),
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
		stats.MissRate = float64(misses) / float64(total)
	}

	if info, err := r.rdb().Info(ctx, "memory").Result(); err == nil {
		stats.MemoryUsage = parseUsedMemory(info)
	}
	if keys, err := r.rdb().Keys(ctx, r.config.KeyPrefix+"*").Result(); err == nil {
		stats.KeyCount = len(keys)
	}
	return stats
}

func (r *RedisCacheManager) HealthCheck(ctx context.Context) error {
	return r.rdb().Ping(ctx).Err()
}

func (r *RedisCacheManager) Close() error {
	return r.client.Close()
}

func (r *RedisCacheManager) getJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := r.rdb().Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		r.misses.Add(1)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s from cache: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	r.hits.Add(1)
	return true, nil
}

func (r *RedisCacheManager) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return r.rdb().Set(ctx, key, data, ttl).Err()
}

func (r *RedisCacheManager) buildKey(keyType, identifier string) string {
	return fmt.Sprintf("%s%s:%s", r.config.KeyPrefix, keyType, identifier)
}

func (r *RedisCacheManager) buildTagKey(keyType, identifier string) string {
	return fmt.Sprintf("%s%s:%s", r.config.TagPrefix, keyType, identifier)
}

func (r *RedisCacheManager) removeKeyTags(ctx context.Context, key string) error {
	keyTagsKey := r.buildTagKey("key_tags", key)
	tags, err := r.rdb().SMembers(ctx, keyTagsKey).Result()
	if err != nil {
		return err
	}

	pipe := r.rdb().Pipeline()
	for _, tag := range tags {
		pipe.SRem(ctx, r.buildTagKey("tag_keys", tag), key)
	}
	pipe.Del(ctx, keyTagsKey)
	_, err = pipe.Exec(ctx)
	return err
}

func parseUsedMemory(info string) int64 {
	for _, line := range strings.Split(info, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "used_memory:"); ok {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}
