package mongostore

import (
	"fmt"

	"shuttle-backend/internal/models"

	"go.mongodb.org/mongo-driver/bson"
)

// Older app builds wrote the route reference under several names. They are
// folded into the canonical field here and nowhere else.
var legacyRouteFields = []string{"route_id", "routeId", "line_id", "lineId", "currentRoute"}

func legacyRoute(raw bson.Raw) string {
	for _, field := range legacyRouteFields {
		val, err := raw.LookupErr(field)
		if err != nil {
			continue
		}
		if s, ok := val.StringValueOK(); ok && s != "" {
			return s
		}
	}
	return ""
}

func decodeVehicle(raw bson.Raw) (*models.Vehicle, error) {
	var v models.Vehicle
	if err := bson.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode vehicle: %w", err)
	}
	if v.CurrentRoute == "" {
		v.CurrentRoute = legacyRoute(raw)
	}
	if v.Status == "" {
		v.Status = models.VehicleStatusIdle
	}
	if v.Direction == "" {
		v.Direction = models.DirectionTo
	}
	return &v, nil
}

func decodeReservation(raw bson.Raw) (*models.Reservation, error) {
	var r models.Reservation
	if err := bson.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("failed to decode reservation: %w", err)
	}
	if r.RouteID == "" {
		r.RouteID = legacyRoute(raw)
	}
	return &r, nil
}
