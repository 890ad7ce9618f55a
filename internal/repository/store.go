// Package repository defines the Fleet State Store: the only component that
// persists cross-process state. Invariants that span documents are enforced
// inside WithTransaction.
package repository

import (
	"context"
	"errors"
	"time"

	"shuttle-backend/internal/models"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
)

// Tx is the view of the store inside one transaction. Reads observe the
// transaction's own writes; nothing is visible to other callers until commit.
type Tx interface {
	// Claim registers intent to write the given logical keys. Two concurrent
	// transactions claiming the same key cannot both commit.
	Claim(ctx context.Context, keys ...string) error

	GetVehicle(ctx context.Context, id string) (*models.Vehicle, error)
	PutVehicle(ctx context.Context, v *models.Vehicle) error

	GetAssignment(ctx context.Context, id string) (*models.Assignment, error)
	// FindAssignmentConflicts returns active assignments sharing the driver,
	// the vehicle or the (route, direction) pair with a.
	FindAssignmentConflicts(ctx context.Context, a *models.Assignment) ([]*models.Assignment, error)
	FindActiveAssignmentByDriver(ctx context.Context, driverID string) (*models.Assignment, error)
	PutAssignment(ctx context.Context, a *models.Assignment) error

	FindWaitingReservationByUser(ctx context.Context, userID string) (*models.Reservation, error)
	PutReservation(ctx context.Context, r *models.Reservation) error
}

// FleetStore is implemented by the MongoDB store and the in-process store.
type FleetStore interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	CreateVehicle(ctx context.Context, v *models.Vehicle) error
	GetVehicle(ctx context.Context, id string) (*models.Vehicle, error)
	ListVehicles(ctx context.Context) ([]*models.Vehicle, error)

	GetAssignment(ctx context.Context, id string) (*models.Assignment, error)
	FindActiveAssignmentByVehicle(ctx context.Context, vehicleID string) (*models.Assignment, error)
	FindActiveAssignmentByRoute(ctx context.Context, routeID, direction string) (*models.Assignment, error)
	ListActiveAssignments(ctx context.Context) ([]*models.Assignment, error)

	// ListWaitingReservations returns waiting reservations on the route
	// direction created at or after createdAfter.
	ListWaitingReservations(ctx context.Context, routeID, direction string, createdAfter time.Time) ([]*models.Reservation, error)
	// FindWaitingReservationsBefore is a range query on created_at.
	FindWaitingReservationsBefore(ctx context.Context, cutoff time.Time) ([]*models.Reservation, error)
	// TransitionReservations moves the given reservations from status from to
	// status to in one batch. Reservations no longer in from are left alone
	// and are not returned.
	TransitionReservations(ctx context.Context, ids []string, from, to string) ([]*models.Reservation, error)

	InsertTrip(ctx context.Context, t *models.TripRecord) error
	ListTrips(ctx context.Context, vehicleID string, limit int) ([]*models.TripRecord, error)

	InsertDemandSignal(ctx context.Context, d *models.DemandSignal) error
	LatestDemandSignal(ctx context.Context, routeID, direction string) (*models.DemandSignal, error)

	CreateAlert(ctx context.Context, a *models.Alert) error
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	UpdateAlert(ctx context.Context, a *models.Alert) error
	DeleteAlert(ctx context.Context, id string) error
	ListAlerts(ctx context.Context, unresolvedOnly bool) ([]*models.Alert, error)

	SaveDeviceToken(ctx context.Context, t *models.DeviceToken) error
	DeviceTokensForUser(ctx context.Context, userID string) ([]*models.DeviceToken, error)
	DeleteDeviceToken(ctx context.Context, token string) error

	Ping(ctx context.Context) error
}

// Claim keys used by the services.
func DriverKey(driverID string) string          { return "driver:" + driverID }
func VehicleKey(vehicleID string) string        { return "vehicle:" + vehicleID }
func RouteKey(routeID, direction string) string { return "route:" + routeID + ":" + direction }
func ReservationUserKey(userID string) string   { return "reservation_user:" + userID }
