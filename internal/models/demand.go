package models

import "time"

type DemandSignal struct {
	ID        string    `bson:"_id" json:"id"`
	VehicleID string    `bson:"vehicle_id,omitempty" json:"vehicleId,omitempty"`
	RouteID   string    `bson:"route_id" json:"routeId"`
	Direction string    `bson:"direction" json:"direction"`
	Lat       float64   `bson:"lat" json:"lat"`
	Lon       float64   `bson:"lon" json:"lon"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	ExpiresAt time.Time `bson:"expires_at" json:"expiresAt"`
	High      bool      `bson:"high" json:"high"`
}

// Expired reports whether the signal is past its expiry at now.
func (d *DemandSignal) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

// DeviceToken is a rider's push registration.
type DeviceToken struct {
	Token     string    `bson:"_id" json:"token"`
	UserID    string    `bson:"user_id" json:"userId"`
	Platform  string    `bson:"platform,omitempty" json:"platform,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}
