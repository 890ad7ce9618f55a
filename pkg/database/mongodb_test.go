package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestConnectRejectsInvalidURI(t *testing.T) {
	_, err := Connect("not-a-mongo-uri")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid MongoDB URI")
}

func TestIndexSpecUniqueIndexesArePartial(t *testing.T) {
	spec := IndexSpec()

	for _, coll := range []string{"assignments", "reservations"} {
		var unique int
		for _, idx := range spec[coll] {
			if idx.Options == nil || idx.Options.Unique == nil || !*idx.Options.Unique {
				continue
			}
			unique++
			assert.NotNil(t, idx.Options.PartialFilterExpression, "%s unique index must be partial", coll)
		}
		assert.Greater(t, unique, 0, coll)
	}
}

func TestIndexSpecKeepsDemandSignals(t *testing.T) {
	for coll, indexes := range IndexSpec() {
		for _, idx := range indexes {
			if idx.Options == nil {
				continue
			}
			assert.Nil(t, idx.Options.ExpireAfterSeconds, "%s must not carry a TTL index", coll)
		}
	}

	var hasExpiry bool
	for _, idx := range IndexSpec()["demand_signals"] {
		keys := idx.Keys.(bson.D)
		if len(keys) == 1 && keys[0].Key == "expires_at" {
			hasExpiry = true
		}
	}
	assert.True(t, hasExpiry, "demand_signals keeps an expires_at index for lookups")
}

func TestHealthReportsUnreachableServer(t *testing.T) {
	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI("mongodb://127.0.0.1:1").
		SetServerSelectionTimeout(200*time.Millisecond))
	require.NoError(t, err)
	defer client.Disconnect(ctx)

	assert.Error(t, Health(ctx, client.Database("shuttle_test")))
}
