package memstore

import (
	"context"

	"shuttle-backend/internal/models"
	"shuttle-backend/internal/repository"
)

// memTx stages writes on top of the committed maps. The store mutex is held
// for the lifetime of the transaction.
type memTx struct {
	store        *Store
	vehicles     map[string]models.Vehicle
	assignments  map[string]models.Assignment
	reservations map[string]models.Reservation
}

// Claim is a no-op: transactions are already serialized.
func (tx *memTx) Claim(ctx context.Context, keys ...string) error {
	return ctx.Err()
}

func (tx *memTx) GetVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	if v, ok := tx.vehicles[id]; ok {
		return &v, nil
	}
	if v, ok := tx.store.vehicles[id]; ok {
		return &v, nil
	}
	return nil, repository.ErrNotFound
}

func (tx *memTx) PutVehicle(ctx context.Context, v *models.Vehicle) error {
	tx.vehicles[v.ID] = *v
	return nil
}

func (tx *memTx) GetAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	if a, ok := tx.assignments[id]; ok {
		return &a, nil
	}
	if a, ok := tx.store.assignments[id]; ok {
		return &a, nil
	}
	return nil, repository.ErrNotFound
}

func (tx *memTx) eachAssignment(fn func(a models.Assignment)) {
	for id, a := range tx.store.assignments {
		if _, staged := tx.assignments[id]; staged {
			continue
		}
		fn(a)
	}
	for _, a := range tx.assignments {
		fn(a)
	}
}

func (tx *memTx) FindAssignmentConflicts(ctx context.Context, want *models.Assignment) ([]*models.Assignment, error) {
	var out []*models.Assignment
	tx.eachAssignment(func(a models.Assignment) {
		if !a.Active {
			return
		}
		if _, conflict := want.ConflictsWith(&a); conflict {
			out = append(out, &a)
		}
	})
	return out, nil
}

func (tx *memTx) FindActiveAssignmentByDriver(ctx context.Context, driverID string) (*models.Assignment, error) {
	var found *models.Assignment
	tx.eachAssignment(func(a models.Assignment) {
		if found == nil && a.Active && a.DriverID == driverID {
			found = &a
		}
	})
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

func (tx *memTx) PutAssignment(ctx context.Context, a *models.Assignment) error {
	tx.assignments[a.ID] = *a
	return nil
}

func (tx *memTx) FindWaitingReservationByUser(ctx context.Context, userID string) (*models.Reservation, error) {
	for id, r := range tx.store.reservations {
		if staged, ok := tx.reservations[id]; ok {
			r = staged
		}
		if r.UserID == userID && r.Status == models.ReservationWaiting {
			return &r, nil
		}
	}
	for id, r := range tx.reservations {
		if _, committed := tx.store.reservations[id]; committed {
			continue
		}
		if r.UserID == userID && r.Status == models.ReservationWaiting {
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (tx *memTx) PutReservation(ctx context.Context, r *models.Reservation) error {
	tx.reservations[r.ID] = *r
	return nil
}
