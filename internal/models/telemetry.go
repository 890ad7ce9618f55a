package models

import (
	"errors"
	"strings"
	"time"
)

// TelemetrySample is the canonical shape of one vehicle report after ingestion.
type TelemetrySample struct {
	VehicleID string    `json:"vehicleId" validate:"required"`
	Lat       float64   `json:"lat" validate:"min=-90,max=90"`
	Lon       float64   `json:"lon" validate:"min=-180,max=180"`
	Occupancy *int      `json:"occupancy,omitempty" validate:"omitempty,min=0"`
	Status    *string   `json:"status,omitempty"`
	RouteID   *string   `json:"routeId,omitempty"`
	Direction *string   `json:"direction,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Normalize canonicalizes enum spellings and fills a missing timestamp.
func (s *TelemetrySample) Normalize(now time.Time) error {
	s.VehicleID = strings.TrimSpace(s.VehicleID)
	if s.VehicleID == "" {
		return errors.New("vehicleId is required")
	}
	if s.Lat < -90 || s.Lat > 90 || s.Lon < -180 || s.Lon > 180 {
		return errors.New("coordinates out of range")
	}
	if s.Occupancy != nil && *s.Occupancy < 0 {
		return errors.New("occupancy must not be negative")
	}
	if s.Status != nil {
		st := strings.ToLower(strings.TrimSpace(*s.Status))
		switch st {
		case VehicleStatusActive, VehicleStatusIdle:
		case "running", "in_service", "on_trip":
			st = VehicleStatusActive
		case "stopped", "parked", "off_duty":
			st = VehicleStatusIdle
		default:
			return errors.New("unknown status " + *s.Status)
		}
		s.Status = &st
	}
	if s.Direction != nil {
		d := strings.ToLower(strings.TrimSpace(*s.Direction))
		if !ValidDirection(d) {
			return errors.New("direction must be to or fro")
		}
		s.Direction = &d
	}
	if s.RouteID != nil {
		r := strings.TrimSpace(*s.RouteID)
		s.RouteID = &r
	}
	if s.Timestamp.IsZero() || s.Timestamp.After(now.Add(time.Minute)) {
		s.Timestamp = now
	}
	return nil
}
