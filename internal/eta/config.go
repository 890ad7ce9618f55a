package eta

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// HighDemandThreshold is the combined count (riders on board plus riders
	// waiting) above which a route direction is in high demand.
	HighDemandThreshold int
	SignalTTL           time.Duration
	// SpeedMetersPerSecond is the assumed average shuttle speed.
	SpeedMetersPerSecond float64
	// Thresholds are in minutes; 1 means "arriving now".
	Thresholds []int
	DedupTTL   time.Duration
}

func DefaultConfig() Config {
	return Config{
		HighDemandThreshold:  4,
		SignalTTL:            10 * time.Minute,
		SpeedMetersPerSecond: 8,
		Thresholds:           []int{5, 2, 1},
		DedupTTL:             30 * time.Minute,
	}
}

func LoadConfigFromEnv() Config {
	config := DefaultConfig()

	if val := os.Getenv("DEMAND_THRESHOLD"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n >= 0 {
			config.HighDemandThreshold = n
		}
	}
	if val := os.Getenv("DEMAND_SIGNAL_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			config.SignalTTL = d
		}
	}
	if val := os.Getenv("ETA_SPEED_MPS"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil && v > 0 {
			config.SpeedMetersPerSecond = v
		}
	}
	if val := os.Getenv("ETA_DEDUP_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			config.DedupTTL = d
		}
	}

	return config
}
