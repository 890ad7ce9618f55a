package models

import "time"

type TripRecord struct {
	ID              string     `bson:"_id" json:"id"`
	VehicleID       string     `bson:"vehicle_id" json:"vehicleId"`
	RouteID         string     `bson:"route_id,omitempty" json:"routeId,omitempty"`
	DriverID        string     `bson:"driver_id,omitempty" json:"driverId,omitempty"`
	StartTime       time.Time  `bson:"start_time" json:"startTime"`
	EndTime         time.Time  `bson:"end_time" json:"endTime"`
	DistanceKm      float64    `bson:"distance_km" json:"distanceKm"`
	DurationSeconds float64    `bson:"duration_seconds" json:"durationSeconds"`
	AverageSpeedKmh float64    `bson:"average_speed_kmh" json:"averageSpeedKmh"`
	Path            []Location `bson:"path" json:"path"`
	CreatedAt       time.Time  `bson:"created_at" json:"createdAt"`
}
