package trips

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	LockTimeout time.Duration
	// MinTripAge is how long a trip must have run before it may complete.
	MinTripAge time.Duration
	// IdleDebounce is how long a vehicle must stay idle and empty.
	IdleDebounce time.Duration
	// WindowRetention bounds the age of buffered points.
	WindowRetention   time.Duration
	MinDistanceMeters float64
	MinDuration       time.Duration
}

func DefaultConfig() Config {
	return Config{
		LockTimeout:       5 * time.Second,
		MinTripAge:        60 * time.Second,
		IdleDebounce:      2 * time.Minute,
		WindowRetention:   15 * time.Minute,
		MinDistanceMeters: 50,
		MinDuration:       60 * time.Second,
	}
}

func LoadConfigFromEnv() Config {
	config := DefaultConfig()

	if val := os.Getenv("TRIP_LOCK_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			config.LockTimeout = d
		}
	}
	if val := os.Getenv("TRIP_IDLE_DEBOUNCE"); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d >= 0 {
			config.IdleDebounce = d
		}
	}
	if val := os.Getenv("TRIP_WINDOW_RETENTION"); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			config.WindowRetention = d
		}
	}
	if val := os.Getenv("TRIP_MIN_DISTANCE_METERS"); val != "" {
		if m, err := strconv.ParseFloat(val, 64); err == nil && m >= 0 {
			config.MinDistanceMeters = m
		}
	}

	return config
}
