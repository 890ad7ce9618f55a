package eta

import (
	"context"
	"testing"
	"time"

	"shuttle-backend/internal/models"
	"shuttle-backend/internal/repository/memstore"
	"shuttle-backend/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(store *memstore.Store) (*DemandEngine, *recordingBroadcaster) {
	engine := NewDemandEngine(store, DefaultConfig())
	engine.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	b := &recordingBroadcaster{}
	engine.SetBroadcaster(b)
	return engine, b
}

func setOccupancy(t *testing.T, store *memstore.Store, n int) {
	updateVehicle(t, store, func(v *models.Vehicle) { v.Occupancy = n })
}

func TestDemandCrossingFiresOnce(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedAssignedVehicle(t, store, 4)
	engine, b := newTestEngine(store)

	// 4 -> 5 crosses
	setOccupancy(t, store, 5)
	require.NoError(t, engine.EvaluateDemand(ctx, "campus-loop", "to", "v1", 1))

	signals := store.DemandSignals()
	require.Len(t, signals, 1)
	assert.True(t, signals[0].High)
	assert.Equal(t, "v1", signals[0].VehicleID)
	assert.Equal(t, signals[0].Timestamp.Add(DefaultConfig().SignalTTL), signals[0].ExpiresAt)
	assert.Equal(t, 10*time.Minute, DefaultConfig().SignalTTL)

	v, err := store.GetVehicle(ctx, "v1")
	require.NoError(t, err)
	assert.True(t, v.DemandHigh)
	require.NotNil(t, v.DemandTimestamp)

	events := b.all()
	require.Len(t, events, 1)
	assert.Equal(t, services.EventDemandUpdate, events[0].Type)
	assert.Equal(t, "campus-loop:to", events[0].DedupeKey)
	update := events[0].Data.(DemandUpdate)
	assert.Equal(t, 5, update.Combined)

	// 5 -> 6 stays above
	setOccupancy(t, store, 6)
	require.NoError(t, engine.EvaluateDemand(ctx, "campus-loop", "to", "v1", 1))
	assert.Len(t, store.DemandSignals(), 1)
	assert.Len(t, b.all(), 1)
}

func TestDemandFallingEdgeClearsFlag(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedAssignedVehicle(t, store, 4)
	engine, _ := newTestEngine(store)

	setOccupancy(t, store, 6)
	require.NoError(t, engine.EvaluateDemand(ctx, "campus-loop", "to", "v1", 2))

	setOccupancy(t, store, 3)
	require.NoError(t, engine.EvaluateDemand(ctx, "campus-loop", "to", "v1", -3))

	signals := store.DemandSignals()
	require.Len(t, signals, 2)
	assert.False(t, signals[1].High)

	v, err := store.GetVehicle(ctx, "v1")
	require.NoError(t, err)
	assert.False(t, v.DemandHigh)
}

func TestDemandCountsWaitingRiders(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedAssignedVehicle(t, store, 3)
	engine, _ := newTestEngine(store)

	addReservation(t, store, "r1", "u1", 0)
	require.NoError(t, engine.EvaluateDemand(ctx, "campus-loop", "to", "", 1))
	assert.Empty(t, store.DemandSignals(), "3 aboard + 1 waiting is not above 4")

	addReservation(t, store, "r2", "u2", 1)
	require.NoError(t, engine.EvaluateDemand(ctx, "campus-loop", "to", "", 1))
	assert.Len(t, store.DemandSignals(), 1)
}

func TestDemandWithoutAssignedVehicle(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	engine, b := newTestEngine(store)

	for i, user := range []string{"u1", "u2", "u3", "u4", "u5"} {
		addReservation(t, store, "r"+user, user, i%2)
	}
	require.NoError(t, engine.EvaluateDemand(ctx, "campus-loop", "to", "", 1))

	signals := store.DemandSignals()
	require.Len(t, signals, 1)
	assert.Empty(t, signals[0].VehicleID)
	assert.Len(t, b.all(), 1)
}

func TestDemandRepeatedEdgeIsRecordedOnce(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedAssignedVehicle(t, store, 5)
	engine, _ := newTestEngine(store)

	// two callers both saw their own +1 land on 5
	require.NoError(t, engine.EvaluateDemand(ctx, "campus-loop", "to", "", 1))
	require.NoError(t, engine.EvaluateDemand(ctx, "campus-loop", "to", "", 1))

	assert.Len(t, store.DemandSignals(), 1)
}

func TestDemandIgnoresUnassignedVehicle(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedAssignedVehicle(t, store, 0)
	require.NoError(t, store.CreateVehicle(ctx, &models.Vehicle{
		ID: "v2", Capacity: 12, Occupancy: 1, Status: models.VehicleStatusActive,
		CurrentRoute: "campus-loop", Direction: models.DirectionTo,
	}))
	engine, b := newTestEngine(store)

	for i, user := range []string{"u1", "u2", "u3", "u4", "u5"} {
		addReservation(t, store, "r"+user, user, i%2)
	}

	// v2 still reports the route but v1 holds it; 5 waiting is unchanged
	require.NoError(t, engine.EvaluateDemand(ctx, "campus-loop", "to", "v2", 1))
	assert.Empty(t, store.DemandSignals())
	assert.Empty(t, b.all())
}

func TestDemandAfterAssignmentDeleted(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedAssignedVehicle(t, store, 0)
	engine, _ := newTestEngine(store)

	assignments := services.NewAssignmentService(store)
	vehicles := services.NewVehicleService(store)
	vehicles.SetDemandEvaluator(engine)

	active, err := store.ListActiveAssignments(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.NoError(t, assignments.Delete(ctx, active[0].ID))

	v, err := store.GetVehicle(ctx, "v1")
	require.NoError(t, err)
	assert.Empty(t, v.CurrentRoute)

	for i, user := range []string{"u1", "u2", "u3", "u4", "u5"} {
		addReservation(t, store, "r"+user, user, i%2)
	}
	_, err = vehicles.AdjustOccupancy(ctx, "v1", 1)
	require.NoError(t, err)
	assert.Empty(t, store.DemandSignals())
}
