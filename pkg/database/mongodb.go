package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

const defaultDatabase = "shuttle_fleet"

// Connect establishes a connection to MongoDB and makes sure the indexes the
// store relies on exist. Transactions need a replica set or sharded cluster.
func Connect(mongoURI string) (*mongo.Database, error) {
	cs, err := connstring.ParseAndValidate(mongoURI)
	if err != nil {
		return nil, fmt.Errorf("invalid MongoDB URI: %v", err)
	}

	clientOptions := options.Client().ApplyURI(mongoURI)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	log.Println("Successfully connected to MongoDB")

	dbName := cs.Database
	if dbName == "" {
		dbName = defaultDatabase
	}

	db := client.Database(dbName)

	if err := createIndexes(db); err != nil {
		log.Printf("Warning: Failed to create indexes: %v", err)
	}

	return db, nil
}

// activeOnly and waitingOnly scope the unique indexes to live documents so
// history can repeat the same driver, vehicle or user.
var (
	activeOnly  = bson.D{{Key: "active", Value: true}}
	waitingOnly = bson.D{{Key: "status", Value: "waiting"}}
)

// IndexSpec lists the indexes per collection. Exposed for tests.
func IndexSpec() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		"vehicles": {
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "current_route", Value: 1}, {Key: "direction", Value: 1}}},
			{Keys: bson.D{{Key: "updated_at", Value: -1}}},
		},
		"assignments": {
			{
				Keys:    bson.D{{Key: "driver_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(activeOnly).SetName("uniq_active_driver"),
			},
			{
				Keys:    bson.D{{Key: "vehicle_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(activeOnly).SetName("uniq_active_vehicle"),
			},
			// Not unique: switching direction may leave two active
			// assignments on one route direction.
			{Keys: bson.D{{Key: "route_id", Value: 1}, {Key: "direction", Value: 1}, {Key: "active", Value: 1}}},
		},
		"reservations": {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(waitingOnly).SetName("uniq_waiting_user"),
			},
			{Keys: bson.D{{Key: "route_id", Value: 1}, {Key: "direction", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "transition_id", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		"trips": {
			{Keys: bson.D{{Key: "vehicle_id", Value: 1}, {Key: "end_time", Value: -1}}},
			{Keys: bson.D{{Key: "route_id", Value: 1}}},
		},
		"demand_signals": {
			{Keys: bson.D{{Key: "route_id", Value: 1}, {Key: "direction", Value: 1}, {Key: "timestamp", Value: -1}}},
			// plain index: expired signals stay on record
			{Keys: bson.D{{Key: "expires_at", Value: 1}}},
		},
		"alerts": {
			{Keys: bson.D{{Key: "resolved", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "route_id", Value: 1}}},
			{Keys: bson.D{{Key: "vehicle_id", Value: 1}, {Key: "resolved", Value: 1}}},
		},
		"device_tokens": {
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
	}
}

func createIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var failed int
	for name, indexes := range IndexSpec() {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			log.Printf("Failed to create %s indexes: %v", name, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d collections failed index creation", failed)
	}

	log.Println("Database indexes created successfully")
	return nil
}

// Disconnect closes the MongoDB connection
func Disconnect(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %v", err)
	}

	log.Println("Disconnected from MongoDB")
	return nil
}

// Health checks the database connection health
func Health(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return db.Client().Ping(ctx, nil)
}
