package websocket

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	FlushInterval time.Duration
	// MaxPending caps the number of distinct queued keys; on overflow the
	// oldest EvictBatch keys are dropped.
	MaxPending   int
	EvictBatch   int
	AuthTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration
	PongWait     time.Duration
}

func DefaultConfig() Config {
	return Config{
		FlushInterval: 500 * time.Millisecond,
		MaxPending:    1000,
		EvictBatch:    100,
		AuthTimeout:   5 * time.Second,
		WriteTimeout:  10 * time.Second,
		PingInterval:  54 * time.Second,
		PongWait:      60 * time.Second,
	}
}

func LoadConfigFromEnv() Config {
	config := DefaultConfig()

	if val := os.Getenv("BROADCAST_MAX_PENDING"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			config.MaxPending = n
		}
	}
	if val := os.Getenv("WS_AUTH_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			config.AuthTimeout = d
		}
	}

	if config.EvictBatch > config.MaxPending {
		config.EvictBatch = config.MaxPending
	}
	return config
}
