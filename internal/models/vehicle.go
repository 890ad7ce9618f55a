package models

import (
	"time"
)

// Vehicle statuses
const (
	VehicleStatusIdle   = "idle"
	VehicleStatusActive = "active"
)

// Directions a route can be run in
const (
	DirectionTo  = "to"
	DirectionFro = "fro"
)

type Vehicle struct {
	ID              string     `bson:"_id" json:"id"`
	Name            string     `bson:"name" json:"name"`
	Capacity        int        `bson:"capacity" json:"capacity"`
	Occupancy       int        `bson:"occupancy" json:"occupancy"`
	Status          string     `bson:"status" json:"status"`
	CurrentRoute    string     `bson:"current_route,omitempty" json:"currentRoute,omitempty"`
	Direction       string     `bson:"direction" json:"direction"`
	LastLocation    Location   `bson:"last_location" json:"lastLocation"`
	DemandHigh      bool       `bson:"demand_high" json:"demandHigh"`
	DemandTimestamp *time.Time `bson:"demand_timestamp,omitempty" json:"demandTimestamp,omitempty"`
	CreatedAt       time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `bson:"updated_at" json:"updatedAt"`
}

type Location struct {
	Lat       float64   `bson:"lat" json:"lat"`
	Lon       float64   `bson:"lon" json:"lon"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// IsBusy reports whether telemetry says the vehicle is running a trip.
func (v *Vehicle) IsBusy() bool {
	return v.Status == VehicleStatusActive || v.Occupancy > 0
}

// ClampOccupancy keeps occupancy within [0, capacity].
func (v *Vehicle) ClampOccupancy() {
	if v.Occupancy < 0 {
		v.Occupancy = 0
	}
	if v.Capacity > 0 && v.Occupancy > v.Capacity {
		v.Occupancy = v.Capacity
	}
}

// ValidDirection reports whether d is one of the two route directions.
func ValidDirection(d string) bool {
	return d == DirectionTo || d == DirectionFro
}
