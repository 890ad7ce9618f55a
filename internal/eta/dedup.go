package eta

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupSet remembers keys for a while. MarkIfAbsent reports true only for the
// caller that added the key.
type DedupSet interface {
	MarkIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisDedupSet shares the set between server instances.
type RedisDedupSet struct {
	client *redis.Client
	prefix string
}

func NewRedisDedupSet(client *redis.Client, prefix string) *RedisDedupSet {
	return &RedisDedupSet{client: client, prefix: prefix}
}

func (s *RedisDedupSet) MarkIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+key, 1, ttl).Result()
}

// MemoryDedupSet is the single-instance fallback.
type MemoryDedupSet struct {
	mu        sync.Mutex
	expiry    map[string]time.Time
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryDedupSet() *MemoryDedupSet {
	return &MemoryDedupSet{expiry: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryDedupSet) MarkIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > ttl {
		for k, exp := range s.expiry {
			if !now.Before(exp) {
				delete(s.expiry, k)
			}
		}
		s.lastSweep = now
	}

	if exp, ok := s.expiry[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.expiry[key] = now.Add(ttl)
	return true, nil
}

func (s *MemoryDedupSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expiry)
}
