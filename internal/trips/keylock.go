package trips

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shuttle-backend/internal/services"
)

// KeyedLock hands out one exclusive slot per key. Waiting is bounded.
type KeyedLock struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewKeyedLock() *KeyedLock {
	return &KeyedLock{slots: make(map[string]chan struct{})}
}

func (l *KeyedLock) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Acquire waits up to timeout for key. The returned func releases it.
func (l *KeyedLock) Acquire(ctx context.Context, key string, timeout time.Duration) (func(), error) {
	ch := l.slot(key)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s after %v", services.ErrLockTimeout, key, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
