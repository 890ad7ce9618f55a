package services

import (
	"context"
)

// Event types pushed to connected clients.
const (
	EventVehicleUpdate              = "vehicle_update"
	EventReservationUpdate          = "reservation_update"
	EventDemandUpdate               = "demand_update"
	EventAssignmentDirectionChanged = "assignment_direction_changed"
	EventAlertCreated               = "alert_created"
	EventAlertResolved              = "alert_resolved"
	EventAlertDeleted               = "alert_deleted"
	EventTripCompleted              = "trip_completed"
)

// Broadcaster delivers events to connected clients. Queue coalesces by
// (eventType, dedupeKey) until the next flush; an empty dedupeKey is never
// coalesced. BroadcastImmediate skips the queue; a non-empty audience limits
// delivery to those roles.
type Broadcaster interface {
	Queue(eventType string, data interface{}, dedupeKey string)
	BroadcastImmediate(eventType string, data interface{}, audience ...string)
}

// DemandEvaluator is told how much the combined demand of a route direction
// just changed; the current store state already includes the change.
// vehicleID names the vehicle whose occupancy moved, or is empty for
// reservation changes.
type DemandEvaluator interface {
	EvaluateDemand(ctx context.Context, routeID, direction, vehicleID string, delta int) error
}

type nopBroadcaster struct{}

func (nopBroadcaster) Queue(string, interface{}, string)                 {}
func (nopBroadcaster) BroadcastImmediate(string, interface{}, ...string) {}
