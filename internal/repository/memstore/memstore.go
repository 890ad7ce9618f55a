// Package memstore is an in-process FleetStore. Transactions are serialized
// behind one mutex, so every transaction observes a consistent snapshot and
// commits atomically. It backs local development and the service tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"shuttle-backend/internal/models"
	"shuttle-backend/internal/repository"
)

type Store struct {
	mu           sync.Mutex
	vehicles     map[string]models.Vehicle
	assignments  map[string]models.Assignment
	reservations map[string]models.Reservation
	trips        []models.TripRecord
	signals      []models.DemandSignal
	alerts       map[string]models.Alert
	tokens       map[string]models.DeviceToken
}

func New() *Store {
	return &Store{
		vehicles:     make(map[string]models.Vehicle),
		assignments:  make(map[string]models.Assignment),
		reservations: make(map[string]models.Reservation),
		alerts:       make(map[string]models.Alert),
		tokens:       make(map[string]models.DeviceToken),
	}
}

var _ repository.FleetStore = (*Store)(nil)

// WithTransaction runs fn with exclusive access. Writes are staged and only
// applied when fn returns nil.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:        s,
		vehicles:     make(map[string]models.Vehicle),
		assignments:  make(map[string]models.Assignment),
		reservations: make(map[string]models.Reservation),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, v := range tx.vehicles {
		s.vehicles[id] = v
	}
	for id, a := range tx.assignments {
		s.assignments[id] = a
	}
	for id, r := range tx.reservations {
		s.reservations[id] = r
	}
	return nil
}

func (s *Store) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.vehicles[v.ID]; exists {
		return repository.ErrDuplicate
	}
	s.vehicles[v.ID] = *v
	return nil
}

func (s *Store) GetVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vehicles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

func (s *Store) ListVehicles(ctx context.Context) ([]*models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		v := v
		out = append(out, &v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (s *Store) FindActiveAssignmentByVehicle(ctx context.Context, vehicleID string) (*models.Assignment, error) {
	return s.findAssignment(func(a *models.Assignment) bool { return a.VehicleID == vehicleID })
}

func (s *Store) FindActiveAssignmentByRoute(ctx context.Context, routeID, direction string) (*models.Assignment, error) {
	return s.findAssignment(func(a *models.Assignment) bool {
		return a.RouteID == routeID && a.Direction == direction
	})
}

func (s *Store) findAssignment(match func(*models.Assignment) bool) (*models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		a := a
		if a.Active && match(&a) {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) ListActiveAssignments(ctx context.Context) ([]*models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Assignment
	for _, a := range s.assignments {
		a := a
		if a.Active {
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListWaitingReservations(ctx context.Context, routeID, direction string, createdAfter time.Time) ([]*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Reservation
	for _, r := range s.reservations {
		r := r
		if r.Status == models.ReservationWaiting && r.RouteID == routeID &&
			r.Direction == direction && !r.CreatedAt.Before(createdAfter) {
			out = append(out, &r)
		}
	}
	sortReservations(out)
	return out, nil
}

func (s *Store) FindWaitingReservationsBefore(ctx context.Context, cutoff time.Time) ([]*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Reservation
	for _, r := range s.reservations {
		r := r
		if r.Status == models.ReservationWaiting && r.CreatedAt.Before(cutoff) {
			out = append(out, &r)
		}
	}
	sortReservations(out)
	return out, nil
}

func (s *Store) TransitionReservations(ctx context.Context, ids []string, from, to string) ([]*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var out []*models.Reservation
	for _, id := range ids {
		r, ok := s.reservations[id]
		if !ok || r.Status != from {
			continue
		}
		r.Status = to
		r.UpdatedAt = now
		s.reservations[id] = r
		out = append(out, &r)
	}
	return out, nil
}

func (s *Store) InsertTrip(ctx context.Context, t *models.TripRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.trips {
		if existing.ID == t.ID {
			return repository.ErrDuplicate
		}
	}
	cp := *t
	cp.Path = append([]models.Location(nil), t.Path...)
	s.trips = append(s.trips, cp)
	return nil
}

func (s *Store) ListTrips(ctx context.Context, vehicleID string, limit int) ([]*models.TripRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.TripRecord
	for i := len(s.trips) - 1; i >= 0; i-- {
		t := s.trips[i]
		if vehicleID != "" && t.VehicleID != vehicleID {
			continue
		}
		out = append(out, &t)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) InsertDemandSignal(ctx context.Context, d *models.DemandSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, *d)
	return nil
}

func (s *Store) LatestDemandSignal(ctx context.Context, routeID, direction string) (*models.DemandSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.signals) - 1; i >= 0; i-- {
		d := s.signals[i]
		if d.RouteID == routeID && d.Direction == direction {
			return &d, nil
		}
	}
	return nil, repository.ErrNotFound
}

// DemandSignals returns every recorded signal, oldest first.
func (s *Store) DemandSignals() []models.DemandSignal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.DemandSignal(nil), s.signals...)
}

func (s *Store) CreateAlert(ctx context.Context, a *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = *a
	return nil
}

func (s *Store) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (s *Store) UpdateAlert(ctx context.Context, a *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[a.ID]; !ok {
		return repository.ErrNotFound
	}
	s.alerts[a.ID] = *a
	return nil
}

func (s *Store) DeleteAlert(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.alerts, id)
	return nil
}

func (s *Store) ListAlerts(ctx context.Context, unresolvedOnly bool) ([]*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Alert
	for _, a := range s.alerts {
		a := a
		if unresolvedOnly && a.Resolved {
			continue
		}
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (s *Store) SaveDeviceToken(ctx context.Context, t *models.DeviceToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[t.Token] = *t
	return nil
}

func (s *Store) DeviceTokensForUser(ctx context.Context, userID string) ([]*models.DeviceToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.DeviceToken
	for _, t := range s.tokens {
		t := t
		if t.UserID == userID {
			out = append(out, &t)
		}
	}
	return out, nil
}

func (s *Store) DeleteDeviceToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func sortReservations(rs []*models.Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].ID < rs[j].ID
		}
		return rs[i].CreatedAt.Before(rs[j].CreatedAt)
	})
}
