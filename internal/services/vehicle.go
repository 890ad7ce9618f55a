package services

import (
	"context"
	"log"
	"strings"
	"time"

	"shuttle-backend/internal/catalog"
	"shuttle-backend/internal/models"
	"shuttle-backend/internal/repository"
	"shuttle-backend/pkg/cache"

	"github.com/google/uuid"
)

const allVehiclesKey = "all_vehicles"

type VehicleService struct {
	store        repository.FleetStore
	catalog      *catalog.Catalog
	cacheManager cache.CacheManager
	cacheConfig  cache.CacheConfig
	broadcaster  Broadcaster
	demand       DemandEvaluator
	now          func() time.Time
}

func NewVehicleService(store repository.FleetStore) *VehicleService {
	return &VehicleService{
		store:       store,
		cacheConfig: cache.DefaultCacheConfig(),
		broadcaster: nopBroadcaster{},
		now:         time.Now,
	}
}

func (s *VehicleService) SetCatalog(c *catalog.Catalog) {
	s.catalog = c
}

// SetCacheManager enables the read-through snapshot cache.
func (s *VehicleService) SetCacheManager(cacheManager cache.CacheManager) {
	s.cacheManager = cacheManager
}

func (s *VehicleService) SetCacheConfig(config cache.CacheConfig) {
	s.cacheConfig = config
}

func (s *VehicleService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

func (s *VehicleService) SetDemandEvaluator(d DemandEvaluator) {
	s.demand = d
}

type RegisterVehicleRequest struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Capacity int    `json:"capacity" validate:"required,min=1,max=200"`
}

type AdjustOccupancyRequest struct {
	Delta int `json:"delta" validate:"required"`
}

type StartTripRequest struct {
	RouteID   string `json:"routeId" validate:"required"`
	Direction string `json:"direction" validate:"required,oneof=to fro"`
}

func (s *VehicleService) RegisterVehicle(ctx context.Context, req *RegisterVehicleRequest) (*models.Vehicle, error) {
	if req.Capacity <= 0 {
		return nil, validationError("capacity must be positive")
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}

	now := s.now()
	vehicle := &models.Vehicle{
		ID:        id,
		Name:      req.Name,
		Capacity:  req.Capacity,
		Status:    models.VehicleStatusIdle,
		Direction: models.DirectionTo,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateVehicle(ctx, vehicle); err != nil {
		return nil, storeError(err, "vehicle", id)
	}

	s.invalidate(ctx, id)
	return vehicle, nil
}

func (s *VehicleService) GetVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	if s.cacheManager != nil {
		cached, err := s.cacheManager.GetVehicle(ctx, id)
		if err == nil && cached != nil {
			return cached, nil
		}
		if err != nil {
			log.Printf("Cache error for GetVehicle(%s): %v", id, err)
		}
	}

	vehicle, err := s.store.GetVehicle(ctx, id)
	if err != nil {
		return nil, storeError(err, "vehicle", id)
	}

	if s.cacheManager != nil {
		ttl := s.cacheConfig.GetTTLForDataType("vehicle")
		if err := s.cacheManager.SetVehicle(ctx, vehicle, ttl); err != nil {
			log.Printf("Failed to cache vehicle %s: %v", id, err)
		}
	}
	return vehicle, nil
}

func (s *VehicleService) ListVehicles(ctx context.Context) ([]*models.Vehicle, error) {
	if s.cacheManager != nil {
		cached, err := s.cacheManager.GetVehicleList(ctx, allVehiclesKey)
		if err == nil && cached != nil {
			return cached, nil
		}
		if err != nil {
			log.Printf("Cache error for ListVehicles: %v", err)
		}
	}

	vehicles, err := s.store.ListVehicles(ctx)
	if err != nil {
		return nil, err
	}

	if s.cacheManager != nil {
		ttl := s.cacheConfig.GetTTLForDataType("vehicle_list")
		if err := s.cacheManager.SetVehicleList(ctx, allVehiclesKey, vehicles, ttl); err != nil {
			log.Printf("Failed to cache vehicle list: %v", err)
		}
	}
	return vehicles, nil
}

// SubmitTelemetry records one vehicle report. Occupancy is clamped to
// capacity; demand is re-evaluated when occupancy moved.
func (s *VehicleService) SubmitTelemetry(ctx context.Context, sample *models.TelemetrySample) (*models.Vehicle, error) {
	if err := sample.Normalize(s.now()); err != nil {
		return nil, validationError("%v", err)
	}
	if sample.RouteID != nil && *sample.RouteID != "" && s.catalog != nil {
		if _, ok := s.catalog.Route(*sample.RouteID); !ok {
			return nil, validationError("unknown route %s", *sample.RouteID)
		}
	}

	return s.mutate(ctx, sample.VehicleID, func(v *models.Vehicle) {
		v.LastLocation = models.Location{Lat: sample.Lat, Lon: sample.Lon, Timestamp: sample.Timestamp}
		if sample.Occupancy != nil {
			v.Occupancy = *sample.Occupancy
		}
		if sample.Status != nil {
			v.Status = *sample.Status
		}
		if sample.RouteID != nil {
			v.CurrentRoute = *sample.RouteID
		}
		if sample.Direction != nil {
			v.Direction = *sample.Direction
		}
	})
}

// AdjustOccupancy applies a boarding (+) or alighting (-) delta.
func (s *VehicleService) AdjustOccupancy(ctx context.Context, id string, delta int) (*models.Vehicle, error) {
	if delta == 0 {
		return nil, validationError("delta must not be zero")
	}
	return s.mutate(ctx, id, func(v *models.Vehicle) {
		v.Occupancy += delta
	})
}

func (s *VehicleService) StartTrip(ctx context.Context, id string, req *StartTripRequest) (*models.Vehicle, error) {
	if !models.ValidDirection(req.Direction) {
		return nil, validationError("direction must be %q or %q", models.DirectionTo, models.DirectionFro)
	}
	if s.catalog != nil {
		if _, ok := s.catalog.Stops(req.RouteID, req.Direction); !ok {
			return nil, validationError("route %s has no %s direction", req.RouteID, req.Direction)
		}
	}
	return s.mutate(ctx, id, func(v *models.Vehicle) {
		v.Status = models.VehicleStatusActive
		v.CurrentRoute = req.RouteID
		v.Direction = req.Direction
	})
}

// StopTrip idles the vehicle and unloads it.
func (s *VehicleService) StopTrip(ctx context.Context, id string) (*models.Vehicle, error) {
	return s.mutate(ctx, id, func(v *models.Vehicle) {
		v.Status = models.VehicleStatusIdle
		v.Occupancy = 0
	})
}

func (s *VehicleService) ListTrips(ctx context.Context, vehicleID string, limit int) ([]*models.TripRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.store.ListTrips(ctx, vehicleID, limit)
}

// mutate runs apply on the stored vehicle inside a transaction, then
// invalidates the cache, queues the update and re-evaluates demand.
func (s *VehicleService) mutate(ctx context.Context, id string, apply func(v *models.Vehicle)) (*models.Vehicle, error) {
	var updated *models.Vehicle
	var before models.Vehicle

	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.Claim(ctx, repository.VehicleKey(id)); err != nil {
			return err
		}
		v, err := tx.GetVehicle(ctx, id)
		if err != nil {
			return storeError(err, "vehicle", id)
		}
		before = *v

		apply(v)
		v.ClampOccupancy()
		v.UpdatedAt = s.now()
		if err := tx.PutVehicle(ctx, v); err != nil {
			return err
		}
		updated = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	s.broadcaster.Queue(EventVehicleUpdate, updated, updated.ID)
	s.evaluateOccupancyChange(ctx, &before, updated)
	return updated, nil
}

// evaluateOccupancyChange reports the occupancy delta against the pairs the
// vehicle reported before and after. Demand counts a vehicle's load only on
// the pair it holds an active assignment for, so the evaluator ignores the
// report for any other pair.
func (s *VehicleService) evaluateOccupancyChange(ctx context.Context, before, after *models.Vehicle) {
	if s.demand == nil {
		return
	}
	delta := after.Occupancy - before.Occupancy
	if delta == 0 {
		return
	}
	if after.CurrentRoute != "" {
		s.evaluate(ctx, after.CurrentRoute, after.Direction, after.ID, delta)
	}
	if before.CurrentRoute != "" && (before.CurrentRoute != after.CurrentRoute || before.Direction != after.Direction) {
		s.evaluate(ctx, before.CurrentRoute, before.Direction, after.ID, delta)
	}
}

func (s *VehicleService) evaluate(ctx context.Context, routeID, direction, vehicleID string, delta int) {
	if err := s.demand.EvaluateDemand(ctx, routeID, direction, vehicleID, delta); err != nil {
		log.Printf("Demand evaluation failed for %s/%s: %v", routeID, direction, err)
	}
}

func (s *VehicleService) invalidate(ctx context.Context, id string) {
	if s.cacheManager == nil {
		return
	}
	if err := s.cacheManager.InvalidateVehicle(ctx, id); err != nil {
		log.Printf("Failed to invalidate cached vehicle %s: %v", id, err)
	}
}
