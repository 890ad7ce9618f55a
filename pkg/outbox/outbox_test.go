package outbox

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		QueueSize:     4,
		Workers:       1,
		RetryAttempts: 2,
		RetryBackoff:  time.Millisecond,
		TaskTimeout:   time.Second,
	}
}

func TestOutboxRunsTasks(t *testing.T) {
	o := New(testConfig())
	o.Start()

	done := make(chan struct{})
	require.NoError(t, o.Enqueue(Task{Name: "ping", Run: func(ctx context.Context) error {
		close(done)
		return nil
	}}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	o.Stop()

	stats := o.GetStats()
	assert.Equal(t, int64(1), stats.Enqueued)
	assert.Equal(t, int64(1), stats.Processed)
	assert.Equal(t, int64(0), stats.Failed)
}

func TestOutboxRetriesWithBackoff(t *testing.T) {
	o := New(testConfig())
	var calls atomic.Int32
	require.NoError(t, o.Enqueue(Task{Name: "flaky", Run: func(ctx context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("temporary")
		}
		return nil
	}}))

	o.Start()
	require.Eventually(t, func() bool { return o.GetStats().Processed == 1 }, time.Second, 5*time.Millisecond)
	o.Stop()

	assert.Equal(t, int32(3), calls.Load())
	stats := o.GetStats()
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, int64(2), stats.Retries)
}

func TestOutboxPermanentErrorIsNotRetried(t *testing.T) {
	o := New(testConfig())
	var calls atomic.Int32
	require.NoError(t, o.Enqueue(Task{Name: "bad", Run: func(ctx context.Context) error {
		calls.Add(1)
		return Permanent(errors.New("rejected"))
	}}))

	o.Start()
	o.Stop()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(1), o.GetStats().Failed)
}

func TestOutboxDropsWhenFull(t *testing.T) {
	o := New(testConfig())
	noop := Task{Name: "noop", Run: func(ctx context.Context) error { return nil }}
	for i := 0; i < 4; i++ {
		require.NoError(t, o.Enqueue(noop))
	}

	err := o.Enqueue(noop)
	assert.True(t, errors.Is(err, ErrQueueFull))
	assert.Equal(t, int64(1), o.GetStats().Dropped)

	o.Start()
	o.Stop()
	assert.Equal(t, int64(4), o.GetStats().Processed)

	assert.True(t, errors.Is(o.Enqueue(noop), ErrStopped))
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, ValidateConfig(DefaultConfig()))

	bad := DefaultConfig()
	bad.Workers = 0
	assert.Equal(t, ErrInvalidWorkers, ValidateConfig(bad))

	bad = DefaultConfig()
	bad.QueueSize = 0
	assert.Equal(t, ErrInvalidQueueSize, ValidateConfig(bad))
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("OUTBOX_WORKERS", "5")
	t.Setenv("OUTBOX_RETRY_BACKOFF", "250ms")
	t.Setenv("OUTBOX_QUEUE_SIZE", "-1")

	config := LoadConfigFromEnv()
	assert.Equal(t, 5, config.Workers)
	assert.Equal(t, 250*time.Millisecond, config.RetryBackoff)
	assert.Equal(t, DefaultConfig().QueueSize, config.QueueSize)
}
