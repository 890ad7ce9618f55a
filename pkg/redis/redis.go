package redis

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"shuttle-backend/internal/config"

	"github.com/redis/go-redis/v9"
)

// Client wraps a go-redis client with a background health check that
// rebuilds the connection pool with exponential backoff after failures.
type Client struct {
	mu          sync.RWMutex
	client      *redis.Client
	config      config.RedisConfig
	isConnected bool

	reconnectChan chan struct{}
	ctx           context.Context
	cancel        context.CancelFunc
}

type HealthStatus struct {
	IsConnected    bool          `json:"isConnected"`
	LastPing       time.Time     `json:"lastPing"`
	ResponseTime   time.Duration `json:"responseTime"`
	ConnectionInfo string        `json:"connectionInfo"`
	Error          string        `json:"error,omitempty"`
}

// NewClient connects using cfg and starts the health and reconnect loops.
func NewClient(cfg config.RedisConfig) *Client {
	c := newClient(cfg)
	c.connect()
	go c.healthCheckLoop(30 * time.Second)
	go c.reconnectLoop()
	return c
}

// Wrap adopts an existing go-redis client without background loops.
func Wrap(rdb *redis.Client) *Client {
	c := newClient(config.RedisConfig{Host: rdb.Options().Addr})
	c.client = rdb
	c.isConnected = true
	return c
}

func newClient(cfg config.RedisConfig) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		config:        cfg,
		reconnectChan: make(chan struct{}, 1),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// buildOptions prefers REDIS_URL and falls back to host and port.
func buildOptions(cfg config.RedisConfig) *redis.Options {
	opt := &redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			log.Printf("Failed to parse Redis URL: %v, falling back to host:port", err)
		} else {
			opt = parsed
		}
	}

	opt.PoolSize = cfg.PoolSize
	opt.MinIdleConns = cfg.MinIdleConns
	opt.MaxRetries = cfg.MaxRetries
	opt.MinRetryBackoff = cfg.RetryDelay
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout
	opt.PoolTimeout = cfg.PoolTimeout
	return opt
}

func (c *Client) connect() {
	client := redis.NewClient(buildOptions(c.config))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := client.Ping(ctx).Err()

	c.mu.Lock()
	c.client = client
	c.isConnected = err == nil
	c.mu.Unlock()

	if err != nil {
		log.Printf("Redis connection test failed: %v", err)
		return
	}
	log.Printf("Redis connected successfully")
}

// GetClient returns the Redis client instance (thread-safe)
func (c *Client) GetClient() *redis.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *Client) setConnected(ok bool) {
	c.mu.Lock()
	c.isConnected = ok
	c.mu.Unlock()
}

// HealthCheck pings Redis and schedules a reconnect on failure.
func (c *Client) HealthCheck() HealthStatus {
	client := c.GetClient()
	status := HealthStatus{ConnectionInfo: c.address()}
	if client == nil {
		status.Error = "Redis client not initialized"
		return status
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	start := time.Now()
	err := client.Ping(ctx).Err()
	status.ResponseTime = time.Since(start)
	status.LastPing = time.Now()
	status.IsConnected = err == nil
	c.setConnected(status.IsConnected)

	if err != nil {
		status.Error = err.Error()
		c.triggerReconnect()
	}
	return status
}

func (c *Client) address() string {
	if c.config.Port == "" {
		return c.config.Host
	}
	return fmt.Sprintf("%s:%s", c.config.Host, c.config.Port)
}

func (c *Client) triggerReconnect() {
	select {
	case c.reconnectChan <- struct{}{}:
	default:
	}
}

func (c *Client) healthCheckLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if status := c.HealthCheck(); !status.IsConnected {
				log.Printf("Redis health check failed: %s", status.Error)
			}
		}
	}
}

func (c *Client) reconnectLoop() {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.reconnectChan:
			if c.IsConnected() {
				continue
			}

			log.Printf("Attempting to reconnect to Redis...")
			if old := c.GetClient(); old != nil {
				old.Close()
			}
			c.connect()

			if c.IsConnected() {
				log.Println("Successfully reconnected to Redis")
				backoff = time.Second
				continue
			}

			log.Printf("Reconnection failed, retrying in %v", backoff)
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			c.triggerReconnect()
		}
	}
}

// Close stops the background loops and the connection pool.
func (c *Client) Close() error {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *Client) GetConnectionStats() map[string]interface{} {
	client := c.GetClient()
	if client == nil {
		return map[string]interface{}{"error": "Redis client not initialized"}
	}

	stats := client.PoolStats()
	return map[string]interface{}{
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"totalConns":  stats.TotalConns,
		"idleConns":   stats.IdleConns,
		"staleConns":  stats.StaleConns,
		"isConnected": c.IsConnected(),
	}
}
