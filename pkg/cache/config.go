package cache

import "time"

type CacheConfig struct {
	VehicleDataTTL time.Duration `json:"vehicleDataTTL"`
	VehicleListTTL time.Duration `json:"vehicleListTTL"`
	RouteShapeTTL  time.Duration `json:"routeShapeTTL"`
	KeyPrefix      string        `json:"keyPrefix"`
	TagPrefix      string        `json:"tagPrefix"`
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		VehicleDataTTL: 30 * time.Second,
		VehicleListTTL: 10 * time.Second,
		RouteShapeTTL:  24 * time.Hour,
		KeyPrefix:      "shuttle:",
		TagPrefix:      "shuttle_tag:",
	}
}

// GetTTLForDataType returns the TTL for "vehicle", "vehicle_list" or
// "route_shape"; unknown types get the vehicle TTL.
func (c CacheConfig) GetTTLForDataType(dataType string) time.Duration {
	switch dataType {
	case "vehicle_list":
		return c.VehicleListTTL
	case "route_shape":
		return c.RouteShapeTTL
	default:
		return c.VehicleDataTTL
	}
}
