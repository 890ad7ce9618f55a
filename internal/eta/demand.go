package eta

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"shuttle-backend/internal/models"
	"shuttle-backend/internal/repository"
	"shuttle-backend/internal/services"
	"shuttle-backend/pkg/cache"

	"github.com/google/uuid"
)

// DemandUpdate is the payload of a demand_update event.
type DemandUpdate struct {
	RouteID   string    `json:"routeId"`
	Direction string    `json:"direction"`
	VehicleID string    `json:"vehicleId,omitempty"`
	High      bool      `json:"high"`
	Combined  int       `json:"combined"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// DemandEngine watches the combined demand of each route direction and
// records a DemandSignal whenever it crosses the threshold.
type DemandEngine struct {
	store       repository.FleetStore
	broadcaster services.Broadcaster
	cache       cache.CacheManager
	config      Config
	now         func() time.Time

	// evaluations are serialized so the crossing check and the signal write
	// cannot interleave
	mu sync.Mutex
}

func NewDemandEngine(store repository.FleetStore, config Config) *DemandEngine {
	return &DemandEngine{
		store:  store,
		config: config,
		now:    time.Now,
	}
}

func (e *DemandEngine) SetBroadcaster(b services.Broadcaster) {
	e.broadcaster = b
}

func (e *DemandEngine) SetCacheManager(c cache.CacheManager) {
	e.cache = c
}

// EvaluateDemand fires on the rising edge (before <= threshold < after) and
// on the falling edge back down. Moves that stay on one side fire nothing.
// An occupancy delta from a vehicle that is not the pair's assigned vehicle
// is not part of the combined estimate and is ignored.
func (e *DemandEngine) EvaluateDemand(ctx context.Context, routeID, direction, vehicleID string, delta int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	vehicle, err := e.assignedVehicle(ctx, routeID, direction)
	if err != nil {
		return err
	}
	if vehicleID != "" && (vehicle == nil || vehicle.ID != vehicleID) {
		return nil
	}
	waiting, err := e.store.ListWaitingReservations(ctx, routeID, direction, time.Time{})
	if err != nil {
		return fmt.Errorf("failed to count waiting riders: %w", err)
	}

	after := len(waiting)
	if vehicle != nil {
		after += vehicle.Occupancy
	}
	before := after - delta
	limit := e.config.HighDemandThreshold

	var high bool
	switch {
	case before <= limit && after > limit:
		high = true
	case before > limit && after <= limit:
		high = false
	default:
		return nil
	}

	if latest, err := e.store.LatestDemandSignal(ctx, routeID, direction); err == nil {
		if latest.High == high && !latest.Expired(e.now()) {
			// a concurrent evaluation already recorded this edge
			return nil
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to load latest demand signal: %w", err)
	}

	return e.record(ctx, routeID, direction, vehicle, high, after)
}

func (e *DemandEngine) assignedVehicle(ctx context.Context, routeID, direction string) (*models.Vehicle, error) {
	a, err := e.store.FindActiveAssignmentByRoute(ctx, routeID, direction)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find assignment: %w", err)
	}
	v, err := e.store.GetVehicle(ctx, a.VehicleID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load vehicle %s: %w", a.VehicleID, err)
	}
	return v, nil
}

func (e *DemandEngine) record(ctx context.Context, routeID, direction string, vehicle *models.Vehicle, high bool, combined int) error {
	now := e.now()
	signal := &models.DemandSignal{
		ID:        uuid.NewString(),
		RouteID:   routeID,
		Direction: direction,
		Timestamp: now,
		ExpiresAt: now.Add(e.config.SignalTTL),
		High:      high,
	}
	if vehicle != nil {
		signal.VehicleID = vehicle.ID
		signal.Lat = vehicle.LastLocation.Lat
		signal.Lon = vehicle.LastLocation.Lon
	}

	if err := e.store.InsertDemandSignal(ctx, signal); err != nil {
		return fmt.Errorf("failed to insert demand signal: %w", err)
	}

	if vehicle != nil {
		if err := e.flagVehicle(ctx, vehicle.ID, high, now); err != nil {
			return err
		}
	}

	log.Printf("Demand on %s/%s is now %s (combined %d)", routeID, direction, demandLabel(high), combined)
	if e.broadcaster != nil {
		e.broadcaster.Queue(services.EventDemandUpdate, DemandUpdate{
			RouteID:   routeID,
			Direction: direction,
			VehicleID: signal.VehicleID,
			High:      high,
			Combined:  combined,
			Threshold: e.config.HighDemandThreshold,
			Timestamp: now,
		}, models.RouteKey{RouteID: routeID, Direction: direction}.String())
	}
	return nil
}

func (e *DemandEngine) flagVehicle(ctx context.Context, vehicleID string, high bool, now time.Time) error {
	err := e.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.Claim(ctx, repository.VehicleKey(vehicleID)); err != nil {
			return err
		}
		v, err := tx.GetVehicle(ctx, vehicleID)
		if err != nil {
			return err
		}
		v.DemandHigh = high
		v.DemandTimestamp = &now
		v.UpdatedAt = now
		return tx.PutVehicle(ctx, v)
	})
	if err != nil {
		return fmt.Errorf("failed to flag vehicle %s: %w", vehicleID, err)
	}

	if e.cache != nil {
		if err := e.cache.InvalidateVehicle(ctx, vehicleID); err != nil {
			log.Printf("Failed to invalidate cached vehicle %s: %v", vehicleID, err)
		}
	}
	return nil
}

func demandLabel(high bool) string {
	if high {
		return "high"
	}
	return "normal"
}
