package mongostore

import (
	"context"
	"time"

	"shuttle-backend/internal/models"
	"shuttle-backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoTx runs every call on the session context handed to WithTransaction.
type mongoTx struct {
	store *Store
}

func (tx *mongoTx) Claim(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		_, err := tx.store.guards.UpdateOne(ctx,
			bson.M{"_id": key},
			bson.M{
				"$inc": bson.M{"version": 1},
				"$set": bson.M{"touched_at": time.Now()},
			},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return translate(err)
		}
	}
	return nil
}

func (tx *mongoTx) GetVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	raw, err := tx.store.vehicles.FindOne(ctx, bson.M{"_id": id}).Raw()
	if err != nil {
		return nil, translate(err)
	}
	return decodeVehicle(raw)
}

func (tx *mongoTx) PutVehicle(ctx context.Context, v *models.Vehicle) error {
	_, err := tx.store.vehicles.ReplaceOne(ctx, bson.M{"_id": v.ID}, v, options.Replace().SetUpsert(true))
	return translate(err)
}

func (tx *mongoTx) GetAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	var a models.Assignment
	if err := tx.store.assignments.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (tx *mongoTx) FindAssignmentConflicts(ctx context.Context, want *models.Assignment) ([]*models.Assignment, error) {
	filter := bson.M{
		"active": true,
		"$or": bson.A{
			bson.M{"driver_id": want.DriverID},
			bson.M{"vehicle_id": want.VehicleID},
			bson.M{"route_id": want.RouteID, "direction": want.Direction},
		},
	}
	cursor, err := tx.store.assignments.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*models.Assignment
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (tx *mongoTx) FindActiveAssignmentByDriver(ctx context.Context, driverID string) (*models.Assignment, error) {
	var a models.Assignment
	err := tx.store.assignments.FindOne(ctx, bson.M{"driver_id": driverID, "active": true}).Decode(&a)
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (tx *mongoTx) PutAssignment(ctx context.Context, a *models.Assignment) error {
	_, err := tx.store.assignments.ReplaceOne(ctx, bson.M{"_id": a.ID}, a, options.Replace().SetUpsert(true))
	return translate(err)
}

func (tx *mongoTx) FindWaitingReservationByUser(ctx context.Context, userID string) (*models.Reservation, error) {
	raw, err := tx.store.reservations.FindOne(ctx, bson.M{
		"user_id": userID,
		"status":  models.ReservationWaiting,
	}).Raw()
	if err != nil {
		return nil, translate(err)
	}
	return decodeReservation(raw)
}

func (tx *mongoTx) PutReservation(ctx context.Context, r *models.Reservation) error {
	_, err := tx.store.reservations.ReplaceOne(ctx, bson.M{"_id": r.ID}, r, options.Replace().SetUpsert(true))
	return translate(err)
}

var _ repository.Tx = (*mongoTx)(nil)
