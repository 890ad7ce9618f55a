package models

import (
	"time"
)

// Roles a real-time connection or alert audience can carry.
const (
	RoleRider  = "rider"
	RoleDriver = "driver"
	RoleAdmin  = "admin"
)

type Alert struct {
	ID         string     `bson:"_id" json:"id"`
	RouteID    string     `bson:"route_id,omitempty" json:"routeId,omitempty"`
	VehicleID  string     `bson:"vehicle_id,omitempty" json:"vehicleId,omitempty"`
	Type       string     `bson:"type" json:"type" validate:"required,oneof=delay breakdown detour capacity general"`
	Message    string     `bson:"message" json:"message" validate:"required"`
	Severity   string     `bson:"severity" json:"severity" validate:"required,oneof=low medium high critical"`
	Audience   []string   `bson:"audience,omitempty" json:"audience,omitempty"`
	Timestamp  time.Time  `bson:"timestamp" json:"timestamp"`
	Resolved   bool       `bson:"resolved" json:"resolved"`
	ResolvedAt *time.Time `bson:"resolved_at,omitempty" json:"resolvedAt,omitempty"`
}
