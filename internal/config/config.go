package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type Config struct {
	Port           string
	StoreDriver    string
	MongoURI       string
	JWTSecret      string
	JWTExpiry      string
	AllowedOrigins []string

	RouteCatalogFile        string
	GoogleMapsAPIKey        string
	FirebaseCredentialsFile string
	FirebaseProjectID       string

	Redis RedisConfig
	Loops LoopConfig
}

// RedisConfig configures the shared Redis client. Redis is optional: with
// Enabled false the server falls back to in-process caches.
type RedisConfig struct {
	Enabled      bool
	URL          string
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	RetryDelay   time.Duration
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
}

// LoopConfig holds the tick intervals of the background loops.
type LoopConfig struct {
	TripSynthInterval         time.Duration
	ReservationReaperInterval time.Duration
	ETAInterval               time.Duration
	BroadcastFlushInterval    time.Duration
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Host:         "localhost",
		Port:         "6379",
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		RetryDelay:   500 * time.Millisecond,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	}
}

func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		TripSynthInterval:         30 * time.Second,
		ReservationReaperInterval: time.Minute,
		ETAInterval:               15 * time.Second,
		BroadcastFlushInterval:    500 * time.Millisecond,
	}
}

func Load() *Config {
	// .env is optional; deployments set real environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg := &Config{
		Port:                    getEnv("PORT", "8080"),
		StoreDriver:             getEnv("STORE_DRIVER", StoreMongo),
		MongoURI:                os.Getenv("MONGO_URI"),
		JWTSecret:               os.Getenv("JWT_SECRET"),
		JWTExpiry:               os.Getenv("JWT_EXPIRY"),
		AllowedOrigins:          splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		RouteCatalogFile:        getEnv("ROUTE_CATALOG_FILE", "config/routes.yaml"),
		GoogleMapsAPIKey:        os.Getenv("GOOGLE_MAPS_API_KEY"),
		FirebaseCredentialsFile: os.Getenv("FIREBASE_CREDENTIALS_FILE"),
		FirebaseProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
		Redis:                   loadRedisConfig(),
		Loops:                   loadLoopConfig(),
	}

	if cfg.StoreDriver != StoreMongo && cfg.StoreDriver != StoreMemory {
		log.Fatalf("STORE_DRIVER must be %q or %q, got %q", StoreMongo, StoreMemory, cfg.StoreDriver)
	}
	if cfg.StoreDriver == StoreMongo && cfg.MongoURI == "" {
		log.Fatal("MONGO_URI environment variable is not set")
	}

	return cfg
}

func loadRedisConfig() RedisConfig {
	cfg := DefaultRedisConfig()
	cfg.URL = os.Getenv("REDIS_URL")
	cfg.Host = getEnv("REDIS_HOST", cfg.Host)
	cfg.Port = getEnv("REDIS_PORT", cfg.Port)
	cfg.Password = os.Getenv("REDIS_PASSWORD")
	cfg.DB = getEnvInt("REDIS_DB", cfg.DB)
	cfg.PoolSize = getEnvInt("REDIS_POOL_SIZE", cfg.PoolSize)
	cfg.MaxRetries = getEnvInt("REDIS_MAX_RETRIES", cfg.MaxRetries)
	cfg.DialTimeout = getEnvDuration("REDIS_DIAL_TIMEOUT", cfg.DialTimeout)
	cfg.Enabled = getEnvBool("REDIS_ENABLED", cfg.URL != "" || os.Getenv("REDIS_HOST") != "")
	return cfg
}

func loadLoopConfig() LoopConfig {
	cfg := DefaultLoopConfig()
	cfg.TripSynthInterval = getEnvDuration("TRIP_SYNTH_INTERVAL", cfg.TripSynthInterval)
	cfg.ReservationReaperInterval = getEnvDuration("RESERVATION_REAPER_INTERVAL", cfg.ReservationReaperInterval)
	cfg.ETAInterval = getEnvDuration("ETA_INTERVAL", cfg.ETAInterval)
	cfg.BroadcastFlushInterval = getEnvDuration("BROADCAST_FLUSH_INTERVAL", cfg.BroadcastFlushInterval)
	return cfg
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n >= 0 {
			return n
		}
		log.Printf("Ignoring invalid %s=%q", key, val)
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
		log.Printf("Ignoring invalid %s=%q", key, val)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
		log.Printf("Ignoring invalid %s=%q", key, val)
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
