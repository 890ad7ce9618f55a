// Package mongostore implements the FleetStore on MongoDB. Multi-document
// invariants run inside session transactions; Claim upserts guard documents
// so that two transactions touching the same logical key write-conflict and
// one of them is retried against the other's committed state.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shuttle-backend/internal/models"
	"shuttle-backend/internal/repository"
	"shuttle-backend/pkg/database"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// Collection names
const (
	VehiclesCollection      = "vehicles"
	AssignmentsCollection   = "assignments"
	ReservationsCollection  = "reservations"
	TripsCollection         = "trips"
	DemandSignalsCollection = "demand_signals"
	AlertsCollection        = "alerts"
	DeviceTokensCollection  = "device_tokens"
	GuardsCollection        = "tx_guards"
)

const opTimeout = 10 * time.Second

type Store struct {
	db           *mongo.Database
	vehicles     *mongo.Collection
	assignments  *mongo.Collection
	reservations *mongo.Collection
	trips        *mongo.Collection
	signals      *mongo.Collection
	alerts       *mongo.Collection
	tokens       *mongo.Collection
	guards       *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		db:           db,
		vehicles:     db.Collection(VehiclesCollection),
		assignments:  db.Collection(AssignmentsCollection),
		reservations: db.Collection(ReservationsCollection),
		trips:        db.Collection(TripsCollection),
		signals:      db.Collection(DemandSignalsCollection),
		alerts:       db.Collection(AlertsCollection),
		tokens:       db.Collection(DeviceTokensCollection),
		guards:       db.Collection(GuardsCollection),
	}
}

var _ repository.FleetStore = (*Store)(nil)

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	sess, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, &mongoTx{store: s})
	}, txOpts)
	return translate(err)
}

func (s *Store) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := s.vehicles.InsertOne(ctx, v)
	return translate(err)
}

func (s *Store) GetVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	raw, err := s.vehicles.FindOne(ctx, bson.M{"_id": id}).Raw()
	if err != nil {
		return nil, translate(err)
	}
	return decodeVehicle(raw)
}

func (s *Store) ListVehicles(ctx context.Context) ([]*models.Vehicle, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	cursor, err := s.vehicles.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var vehicles []*models.Vehicle
	for cursor.Next(ctx) {
		v, err := decodeVehicle(cursor.Current)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, cursor.Err()
}

func (s *Store) GetAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	return findOne[models.Assignment](ctx, s.assignments, bson.M{"_id": id})
}

func (s *Store) FindActiveAssignmentByVehicle(ctx context.Context, vehicleID string) (*models.Assignment, error) {
	return findOne[models.Assignment](ctx, s.assignments, bson.M{"vehicle_id": vehicleID, "active": true})
}

func (s *Store) FindActiveAssignmentByRoute(ctx context.Context, routeID, direction string) (*models.Assignment, error) {
	return findOne[models.Assignment](ctx, s.assignments, bson.M{
		"route_id": routeID, "direction": direction, "active": true,
	})
}

func (s *Store) ListActiveAssignments(ctx context.Context) ([]*models.Assignment, error) {
	return findMany[models.Assignment](ctx, s.assignments, bson.M{"active": true},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func (s *Store) ListWaitingReservations(ctx context.Context, routeID, direction string, createdAfter time.Time) ([]*models.Reservation, error) {
	filter := bson.M{
		"route_id":   routeID,
		"direction":  direction,
		"status":     models.ReservationWaiting,
		"created_at": bson.M{"$gte": createdAfter},
	}
	return s.findReservations(ctx, filter)
}

func (s *Store) FindWaitingReservationsBefore(ctx context.Context, cutoff time.Time) ([]*models.Reservation, error) {
	filter := bson.M{
		"status":     models.ReservationWaiting,
		"created_at": bson.M{"$lt": cutoff},
	}
	return s.findReservations(ctx, filter)
}

func (s *Store) findReservations(ctx context.Context, filter bson.M) ([]*models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	cursor, err := s.reservations.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*models.Reservation
	for cursor.Next(ctx) {
		r, err := decodeReservation(cursor.Current)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, cursor.Err()
}

// TransitionReservations stamps every still-matching document with a batch
// id in one UpdateMany, then reads back exactly the stamped documents.
func (s *Store) TransitionReservations(ctx context.Context, ids []string, from, to string) ([]*models.Reservation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	batchID := uuid.NewString()
	_, err := s.reservations.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "status": from},
		bson.M{"$set": bson.M{
			"status":        to,
			"updated_at":    time.Now(),
			"transition_id": batchID,
		}},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to transition reservations: %w", err)
	}
	return s.findReservations(ctx, bson.M{"transition_id": batchID})
}

func (s *Store) InsertTrip(ctx context.Context, t *models.TripRecord) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := s.trips.InsertOne(ctx, t)
	return translate(err)
}

func (s *Store) ListTrips(ctx context.Context, vehicleID string, limit int) ([]*models.TripRecord, error) {
	filter := bson.M{}
	if vehicleID != "" {
		filter["vehicle_id"] = vehicleID
	}
	opts := options.Find().SetSort(bson.D{{Key: "end_time", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return findMany[models.TripRecord](ctx, s.trips, filter, opts)
}

func (s *Store) InsertDemandSignal(ctx context.Context, d *models.DemandSignal) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := s.signals.InsertOne(ctx, d)
	return translate(err)
}

func (s *Store) LatestDemandSignal(ctx context.Context, routeID, direction string) (*models.DemandSignal, error) {
	return findOne[models.DemandSignal](ctx, s.signals,
		bson.M{"route_id": routeID, "direction": direction},
		options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}}))
}

func (s *Store) CreateAlert(ctx context.Context, a *models.Alert) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := s.alerts.InsertOne(ctx, a)
	return translate(err)
}

func (s *Store) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	return findOne[models.Alert](ctx, s.alerts, bson.M{"_id": id})
}

func (s *Store) UpdateAlert(ctx context.Context, a *models.Alert) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	result, err := s.alerts.ReplaceOne(ctx, bson.M{"_id": a.ID}, a)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAlert(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	result, err := s.alerts.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) ListAlerts(ctx context.Context, unresolvedOnly bool) ([]*models.Alert, error) {
	filter := bson.M{}
	if unresolvedOnly {
		filter["resolved"] = false
	}
	return findMany[models.Alert](ctx, s.alerts, filter,
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}))
}

func (s *Store) SaveDeviceToken(ctx context.Context, t *models.DeviceToken) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := s.tokens.ReplaceOne(ctx, bson.M{"_id": t.Token}, t, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) DeviceTokensForUser(ctx context.Context, userID string) ([]*models.DeviceToken, error) {
	return findMany[models.DeviceToken](ctx, s.tokens, bson.M{"user_id": userID})
}

func (s *Store) DeleteDeviceToken(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := s.tokens.DeleteOne(ctx, bson.M{"_id": token})
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return database.Health(ctx, s.db)
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, opts ...*options.FindOneOptions) (*T, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var out T
	if err := coll.FindOne(ctx, filter, opts...).Decode(&out); err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func findMany[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, opts ...*options.FindOptions) ([]*T, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*T
	for cursor.Next(ctx) {
		var item T
		if err := cursor.Decode(&item); err != nil {
			return nil, err
		}
		out = append(out, &item)
	}
	return out, cursor.Err()
}

// translate maps driver errors onto the repository sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
	}
	return err
}
