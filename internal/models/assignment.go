package models

import "time"

type Assignment struct {
	ID        string    `bson:"_id" json:"id"`
	DriverID  string    `bson:"driver_id" json:"driverId"`
	VehicleID string    `bson:"vehicle_id" json:"vehicleId"`
	RouteID   string    `bson:"route_id" json:"routeId"`
	Direction string    `bson:"direction" json:"direction"`
	Active    bool      `bson:"active" json:"active"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// AssignmentPatch carries the optional fields of an assignment update.
type AssignmentPatch struct {
	DriverID  *string `json:"driverId,omitempty"`
	VehicleID *string `json:"vehicleId,omitempty"`
	RouteID   *string `json:"routeId,omitempty"`
	Direction *string `json:"direction,omitempty" validate:"omitempty,oneof=to fro"`
}

// Apply copies the set fields onto a.
func (p AssignmentPatch) Apply(a *Assignment) {
	if p.DriverID != nil {
		a.DriverID = *p.DriverID
	}
	if p.VehicleID != nil {
		a.VehicleID = *p.VehicleID
	}
	if p.RouteID != nil {
		a.RouteID = *p.RouteID
	}
	if p.Direction != nil {
		a.Direction = *p.Direction
	}
}

// ConflictsWith reports which uniqueness key a shares with other, if any.
func (a *Assignment) ConflictsWith(other *Assignment) (string, bool) {
	switch {
	case other.DriverID == a.DriverID:
		return "driver", true
	case other.VehicleID == a.VehicleID:
		return "vehicle", true
	case other.RouteID == a.RouteID && other.Direction == a.Direction:
		return "route_direction", true
	}
	return "", false
}
