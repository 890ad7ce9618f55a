package cache

import (
	"shuttle-backend/pkg/redis"
)

func NewCacheManager(redisClient *redis.Client, config CacheConfig) CacheManager {
	return NewRedisCacheManager(redisClient, config)
}

func NewDefaultCacheManager(redisClient *redis.Client) CacheManager {
	return NewRedisCacheManager(redisClient, DefaultCacheConfig())
}
