package outbox

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	QueueSize     int           `json:"queueSize"`
	Workers       int           `json:"workers"`
	RetryAttempts int           `json:"retryAttempts"`
	RetryBackoff  time.Duration `json:"retryBackoff"` // doubled on every retry
	TaskTimeout   time.Duration `json:"taskTimeout"`
}

var (
	ErrInvalidQueueSize     = fmt.Errorf("invalid queue size: must be greater than 0")
	ErrInvalidWorkers       = fmt.Errorf("invalid worker count: must be greater than 0")
	ErrInvalidRetryAttempts = fmt.Errorf("invalid retry attempts: must be greater than or equal to 0")
	ErrInvalidRetryBackoff  = fmt.Errorf("invalid retry backoff: must be greater than or equal to 0")
)

func DefaultConfig() Config {
	return Config{
		QueueSize:     256,
		Workers:       2,
		RetryAttempts: 3,
		RetryBackoff:  1 * time.Second,
		TaskTimeout:   10 * time.Second,
	}
}

// LoadConfigFromEnv overlays OUTBOX_* variables on the defaults.
func LoadConfigFromEnv() Config {
	config := DefaultConfig()

	if val := os.Getenv("OUTBOX_QUEUE_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			config.QueueSize = size
		}
	}
	if val := os.Getenv("OUTBOX_WORKERS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			config.Workers = n
		}
	}
	if val := os.Getenv("OUTBOX_RETRY_ATTEMPTS"); val != "" {
		if attempts, err := strconv.Atoi(val); err == nil && attempts >= 0 {
			config.RetryAttempts = attempts
		}
	}
	if val := os.Getenv("OUTBOX_RETRY_BACKOFF"); val != "" {
		if backoff, err := time.ParseDuration(val); err == nil {
			config.RetryBackoff = backoff
		}
	}
	if val := os.Getenv("OUTBOX_TASK_TIMEOUT"); val != "" {
		if timeout, err := time.ParseDuration(val); err == nil && timeout > 0 {
			config.TaskTimeout = timeout
		}
	}

	return config
}

func ValidateConfig(config Config) error {
	if config.QueueSize <= 0 {
		return ErrInvalidQueueSize
	}
	if config.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if config.RetryAttempts < 0 {
		return ErrInvalidRetryAttempts
	}
	if config.RetryBackoff < 0 {
		return ErrInvalidRetryBackoff
	}
	return nil
}
