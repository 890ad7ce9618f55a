// Package trips turns the stream of vehicle snapshots into trip records.
// State per vehicle lives in process memory and is rebuilt from scratch
// after a restart.
package trips

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"shuttle-backend/internal/models"
	"shuttle-backend/internal/repository"
	"shuttle-backend/internal/services"
	"shuttle-backend/pkg/geo"

	"github.com/google/uuid"
)

type entry struct {
	active    bool
	window    []models.Location
	tripStart time.Time
	idleSince time.Time
	routeID   string
	driverID  string
}

type Synthesizer struct {
	store       repository.FleetStore
	broadcaster services.Broadcaster
	config      Config
	locks       *KeyedLock
	now         func() time.Time

	mu      sync.Mutex
	entries map[string]*entry

	running atomic.Bool
}

func NewSynthesizer(store repository.FleetStore, config Config) *Synthesizer {
	return &Synthesizer{
		store:   store,
		config:  config,
		locks:   NewKeyedLock(),
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

func (s *Synthesizer) SetBroadcaster(b services.Broadcaster) {
	s.broadcaster = b
}

// RunOnce makes one pass over every vehicle. A pass that starts while
// another is still running returns immediately.
func (s *Synthesizer) RunOnce(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		log.Println("Trip synthesis pass still running, skipping")
		return nil
	}
	defer s.running.Store(false)

	vehicles, err := s.store.ListVehicles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list vehicles: %w", err)
	}

	for _, v := range vehicles {
		if err := s.ProcessVehicle(ctx, v); err != nil {
			if errors.Is(err, services.ErrLockTimeout) {
				log.Printf("Skipping vehicle %s this pass: %v", v.ID, err)
				continue
			}
			log.Printf("Trip synthesis failed for vehicle %s: %v", v.ID, err)
		}
	}
	return nil
}

// ProcessVehicle advances the trip state of one vehicle under its lock.
func (s *Synthesizer) ProcessVehicle(ctx context.Context, v *models.Vehicle) error {
	release, err := s.locks.Acquire(ctx, v.ID, s.config.LockTimeout)
	if err != nil {
		return err
	}
	defer release()

	return s.step(ctx, v, s.entry(v.ID))
}

func (s *Synthesizer) entry(vehicleID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[vehicleID]
	if !ok {
		e = &entry{}
		s.entries[vehicleID] = e
	}
	return e
}

func (s *Synthesizer) reset(vehicleID string) {
	s.mu.Lock()
	delete(s.entries, vehicleID)
	s.mu.Unlock()
}

func (s *Synthesizer) step(ctx context.Context, v *models.Vehicle, e *entry) error {
	now := s.now()
	point := v.LastLocation
	if point.Timestamp.IsZero() {
		point.Timestamp = now
	}
	busy := v.IsBusy()

	if !e.active {
		if !busy {
			return nil
		}
		e.active = true
		e.window = []models.Location{point}
		e.tripStart = now
		e.idleSince = time.Time{}
		e.routeID = v.CurrentRoute
		e.driverID = s.driverFor(ctx, v.ID)
		return nil
	}

	if !busy {
		if e.idleSince.IsZero() {
			e.idleSince = now
		}
		if now.Sub(e.tripStart) > s.config.MinTripAge && now.Sub(e.idleSince) >= s.config.IdleDebounce {
			return s.complete(ctx, v.ID, e)
		}
		return nil
	}

	e.idleSince = time.Time{}
	if last := e.window[len(e.window)-1]; point.Timestamp.After(last.Timestamp) {
		e.window = append(e.window, point)
	}
	e.window = prune(e.window, now.Add(-s.config.WindowRetention))
	return nil
}

func (s *Synthesizer) complete(ctx context.Context, vehicleID string, e *entry) error {
	record, ok := s.summarize(vehicleID, e)
	if !ok {
		s.reset(vehicleID)
		return nil
	}

	if err := s.store.InsertTrip(ctx, record); err != nil {
		// entry is kept so the next pass retries
		return fmt.Errorf("failed to persist trip: %w", err)
	}
	s.reset(vehicleID)

	log.Printf("Trip %s recorded for vehicle %s: %.2f km in %.0fs", record.ID, vehicleID, record.DistanceKm, record.DurationSeconds)
	if s.broadcaster != nil {
		s.broadcaster.Queue(services.EventTripCompleted, record, record.ID)
	}
	return nil
}

// summarize builds the trip record, or reports false for GPS noise.
func (s *Synthesizer) summarize(vehicleID string, e *entry) (*models.TripRecord, bool) {
	if len(e.window) < 2 {
		return nil, false
	}

	points := make([]geo.Point, len(e.window))
	for i, loc := range e.window {
		points[i] = geo.Point{Lat: loc.Lat, Lon: loc.Lon}
	}
	distance := geo.PathMeters(points)
	first, last := e.window[0], e.window[len(e.window)-1]
	duration := last.Timestamp.Sub(first.Timestamp)

	if distance < s.config.MinDistanceMeters || duration < s.config.MinDuration {
		log.Printf("Discarding trip candidate for vehicle %s: %.0fm in %v", vehicleID, distance, duration)
		return nil, false
	}

	km := distance / 1000
	return &models.TripRecord{
		ID:              uuid.NewString(),
		VehicleID:       vehicleID,
		RouteID:         e.routeID,
		DriverID:        e.driverID,
		StartTime:       first.Timestamp,
		EndTime:         last.Timestamp,
		DistanceKm:      km,
		DurationSeconds: duration.Seconds(),
		AverageSpeedKmh: km / duration.Hours(),
		Path:            append([]models.Location(nil), e.window...),
		CreatedAt:       s.now(),
	}, true
}

func (s *Synthesizer) driverFor(ctx context.Context, vehicleID string) string {
	a, err := s.store.FindActiveAssignmentByVehicle(ctx, vehicleID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Printf("Failed to look up assignment for vehicle %s: %v", vehicleID, err)
		}
		return ""
	}
	return a.DriverID
}

// prune drops points older than cutoff, keeping at least the newest one.
func prune(window []models.Location, cutoff time.Time) []models.Location {
	i := 0
	for i < len(window)-1 && window[i].Timestamp.Before(cutoff) {
		i++
	}
	if i == 0 {
		return window
	}
	return append([]models.Location(nil), window[i:]...)
}
