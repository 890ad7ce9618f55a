package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"shuttle-backend/internal/catalog"
	"shuttle-backend/internal/models"
	"shuttle-backend/internal/repository"
	"shuttle-backend/pkg/cache"

	"github.com/google/uuid"
)

// AssignmentService keeps at most one active assignment per driver, per
// vehicle and per (route, direction).
type AssignmentService struct {
	store       repository.FleetStore
	catalog     *catalog.Catalog
	broadcaster Broadcaster
	cache       cache.CacheManager
	now         func() time.Time
}

func NewAssignmentService(store repository.FleetStore) *AssignmentService {
	return &AssignmentService{
		store:       store,
		broadcaster: nopBroadcaster{},
		now:         time.Now,
	}
}

// SetCatalog enables route and direction checks against the stop catalog.
func (s *AssignmentService) SetCatalog(c *catalog.Catalog) {
	s.catalog = c
}

func (s *AssignmentService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SetCacheManager lets assignment writes drop stale vehicle snapshots.
func (s *AssignmentService) SetCacheManager(c cache.CacheManager) {
	s.cache = c
}

type CreateAssignmentRequest struct {
	DriverID  string `json:"driverId" validate:"required"`
	VehicleID string `json:"vehicleId" validate:"required"`
	RouteID   string `json:"routeId" validate:"required"`
	Direction string `json:"direction" validate:"required,oneof=to fro"`
}

type SwitchDirectionRequest struct {
	Direction string `json:"direction" validate:"required,oneof=to fro"`
}

func (s *AssignmentService) Create(ctx context.Context, req *CreateAssignmentRequest) (*models.Assignment, error) {
	now := s.now()
	a := &models.Assignment{
		ID:        uuid.NewString(),
		DriverID:  strings.TrimSpace(req.DriverID),
		VehicleID: strings.TrimSpace(req.VehicleID),
		RouteID:   strings.TrimSpace(req.RouteID),
		Direction: req.Direction,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.validate(a); err != nil {
		return nil, err
	}

	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		return s.write(ctx, tx, a)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateVehicle(ctx, a.VehicleID)
	log.Printf("Assignment %s created: driver=%s vehicle=%s route=%s/%s", a.ID, a.DriverID, a.VehicleID, a.RouteID, a.Direction)
	return a, nil
}

// Update applies patch to an active assignment and re-checks uniqueness
// against every other active assignment.
func (s *AssignmentService) Update(ctx context.Context, id string, patch models.AssignmentPatch) (*models.Assignment, error) {
	var updated *models.Assignment
	var released string
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		current, err := tx.GetAssignment(ctx, id)
		if err != nil {
			return storeError(err, "assignment", id)
		}
		if !current.Active {
			return notFoundError("active assignment", id)
		}

		next := *current
		patch.Apply(&next)
		next.UpdatedAt = s.now()
		if err := s.validate(&next); err != nil {
			return err
		}

		if err := s.write(ctx, tx, &next); err != nil {
			return err
		}
		if next.VehicleID != current.VehicleID {
			if err := tx.Claim(ctx, repository.VehicleKey(current.VehicleID)); err != nil {
				return err
			}
			if err := s.releaseVehicle(ctx, tx, current); err != nil {
				return err
			}
			released = current.VehicleID
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateVehicle(ctx, updated.VehicleID)
	if released != "" {
		s.invalidateVehicle(ctx, released)
	}
	return updated, nil
}

// Delete deactivates the assignment and takes its vehicle off the route.
// Deleting an inactive one is a no-op.
func (s *AssignmentService) Delete(ctx context.Context, id string) error {
	var vehicleID string
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		a, err := tx.GetAssignment(ctx, id)
		if err != nil {
			return storeError(err, "assignment", id)
		}
		if !a.Active {
			return nil
		}
		if err := tx.Claim(ctx, repository.DriverKey(a.DriverID), repository.VehicleKey(a.VehicleID)); err != nil {
			return err
		}
		a.Active = false
		a.UpdatedAt = s.now()
		if err := tx.PutAssignment(ctx, a); err != nil {
			return err
		}
		vehicleID = a.VehicleID
		return s.releaseVehicle(ctx, tx, a)
	})
	if err != nil {
		return err
	}
	if vehicleID != "" {
		s.invalidateVehicle(ctx, vehicleID)
	}
	return nil
}

// SwitchDirection flips the direction of the driver's own active assignment.
// The (route, direction) uniqueness check is not repeated here.
func (s *AssignmentService) SwitchDirection(ctx context.Context, driverID, direction string) (*models.Assignment, error) {
	if !models.ValidDirection(direction) {
		return nil, validationError("direction must be %q or %q", models.DirectionTo, models.DirectionFro)
	}

	var switched *models.Assignment
	var changed bool
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.Claim(ctx, repository.DriverKey(driverID)); err != nil {
			return err
		}
		a, err := tx.FindActiveAssignmentByDriver(ctx, driverID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return notFoundError("active assignment for driver", driverID)
			}
			return err
		}
		switched = a
		if a.Direction == direction {
			return nil
		}

		a.Direction = direction
		a.UpdatedAt = s.now()
		if err := tx.PutAssignment(ctx, a); err != nil {
			return err
		}
		changed = true
		return s.moveVehicle(ctx, tx, a)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.invalidateVehicle(ctx, switched.VehicleID)
		s.broadcaster.Queue(EventAssignmentDirectionChanged, switched, switched.ID)
	}
	return switched, nil
}

func (s *AssignmentService) ListActive(ctx context.Context) ([]*models.Assignment, error) {
	return s.store.ListActiveAssignments(ctx)
}

func (s *AssignmentService) Get(ctx context.Context, id string) (*models.Assignment, error) {
	a, err := s.store.GetAssignment(ctx, id)
	if err != nil {
		return nil, storeError(err, "assignment", id)
	}
	return a, nil
}

func (s *AssignmentService) validate(a *models.Assignment) error {
	if a.DriverID == "" || a.VehicleID == "" || a.RouteID == "" {
		return validationError("driverId, vehicleId and routeId are required")
	}
	if !models.ValidDirection(a.Direction) {
		return validationError("direction must be %q or %q", models.DirectionTo, models.DirectionFro)
	}
	if s.catalog != nil {
		if _, ok := s.catalog.Stops(a.RouteID, a.Direction); !ok {
			return validationError("route %s has no %s direction", a.RouteID, a.Direction)
		}
	}
	return nil
}

// write claims every uniqueness key of a, rejects any other active holder of
// those keys, then stores a and points its vehicle at the route.
func (s *AssignmentService) write(ctx context.Context, tx repository.Tx, a *models.Assignment) error {
	err := tx.Claim(ctx,
		repository.DriverKey(a.DriverID),
		repository.VehicleKey(a.VehicleID),
		repository.RouteKey(a.RouteID, a.Direction),
	)
	if err != nil {
		return err
	}

	if _, err := tx.GetVehicle(ctx, a.VehicleID); err != nil {
		return storeError(err, "vehicle", a.VehicleID)
	}

	conflicts, err := tx.FindAssignmentConflicts(ctx, a)
	if err != nil {
		return err
	}
	for _, other := range conflicts {
		if other.ID == a.ID {
			continue
		}
		if field, ok := a.ConflictsWith(other); ok {
			kind := ErrAlreadyAssigned
			if field == "route_direction" {
				kind = ErrConstraintViolation
			}
			return conflictError(kind,
				"one active assignment per "+field,
				other.ID,
				"an active assignment already holds this "+strings.ReplaceAll(field, "_", " "),
			)
		}
	}

	if err := tx.PutAssignment(ctx, a); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return conflictError(ErrAlreadyAssigned, "one active assignment per driver and vehicle", "", err.Error())
		}
		return err
	}
	return s.moveVehicle(ctx, tx, a)
}

func (s *AssignmentService) moveVehicle(ctx context.Context, tx repository.Tx, a *models.Assignment) error {
	v, err := tx.GetVehicle(ctx, a.VehicleID)
	if err != nil {
		return storeError(err, "vehicle", a.VehicleID)
	}
	if v.CurrentRoute == a.RouteID && v.Direction == a.Direction {
		return nil
	}
	v.CurrentRoute = a.RouteID
	v.Direction = a.Direction
	v.UpdatedAt = s.now()
	return tx.PutVehicle(ctx, v)
}

// releaseVehicle clears the route of a's vehicle if it still points at a's
// route direction.
func (s *AssignmentService) releaseVehicle(ctx context.Context, tx repository.Tx, a *models.Assignment) error {
	v, err := tx.GetVehicle(ctx, a.VehicleID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if v.CurrentRoute != a.RouteID || v.Direction != a.Direction {
		return nil
	}
	v.CurrentRoute = ""
	v.UpdatedAt = s.now()
	return tx.PutVehicle(ctx, v)
}

func (s *AssignmentService) invalidateVehicle(ctx context.Context, vehicleID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateVehicle(ctx, vehicleID); err != nil {
		log.Printf("Failed to invalidate cached vehicle %s: %v", vehicleID, err)
	}
}
