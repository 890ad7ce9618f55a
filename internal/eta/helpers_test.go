package eta

import (
	"context"
	"sync"
	"testing"
	"time"

	"shuttle-backend/internal/catalog"
	"shuttle-backend/internal/models"
	"shuttle-backend/internal/repository"
	"shuttle-backend/internal/repository/memstore"
	"shuttle-backend/internal/services"
	"shuttle-backend/pkg/geo"

	"github.com/stretchr/testify/require"
)

var origin = geo.Point{Lat: 51.5, Lon: -0.12}

type event struct {
	Type      string
	Data      interface{}
	DedupeKey string
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []event
}

func (b *recordingBroadcaster) Queue(eventType string, data interface{}, dedupeKey string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event{Type: eventType, Data: data, DedupeKey: dedupeKey})
}

func (b *recordingBroadcaster) BroadcastImmediate(eventType string, data interface{}, audience ...string) {
	b.Queue(eventType, data, "")
}

func (b *recordingBroadcaster) all() []event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]event(nil), b.events...)
}

// stopsNorth lays stops out along a meridian at the given distances.
func stopsNorth(meters ...float64) []catalog.Stop {
	stops := make([]catalog.Stop, len(meters))
	for i, m := range meters {
		p := geo.OffsetNorth(origin, m)
		stops[i] = catalog.Stop{Sequence: i, Lat: p.Lat, Lon: p.Lon}
	}
	return stops
}

func newTestCatalog(t *testing.T, stops []catalog.Stop) *catalog.Catalog {
	c, err := catalog.New([]catalog.Route{{
		ID:         "campus-loop",
		Directions: map[string][]catalog.Stop{models.DirectionTo: stops},
	}})
	require.NoError(t, err)
	return c
}

// seedAssignedVehicle creates v1 running campus-loop "to" for driver d1.
func seedAssignedVehicle(t *testing.T, store *memstore.Store, occupancy int) {
	ctx := context.Background()
	require.NoError(t, store.CreateVehicle(ctx, &models.Vehicle{
		ID: "v1", Capacity: 12, Occupancy: occupancy, Status: models.VehicleStatusActive, Direction: models.DirectionTo,
	}))
	_, err := services.NewAssignmentService(store).Create(ctx, &services.CreateAssignmentRequest{
		DriverID: "d1", VehicleID: "v1", RouteID: "campus-loop", Direction: models.DirectionTo,
	})
	require.NoError(t, err)
}

func updateVehicle(t *testing.T, store *memstore.Store, fn func(v *models.Vehicle)) {
	err := store.WithTransaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		v, err := tx.GetVehicle(ctx, "v1")
		if err != nil {
			return err
		}
		fn(v)
		return tx.PutVehicle(ctx, v)
	})
	require.NoError(t, err)
}

func placeVehicle(t *testing.T, store *memstore.Store, metersNorth float64) {
	p := geo.OffsetNorth(origin, metersNorth)
	updateVehicle(t, store, func(v *models.Vehicle) {
		v.LastLocation = models.Location{Lat: p.Lat, Lon: p.Lon, Timestamp: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	})
}

func addReservation(t *testing.T, store *memstore.Store, id, userID string, source int) {
	err := store.WithTransaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.PutReservation(ctx, &models.Reservation{
			ID:             id,
			RouteID:        "campus-loop",
			Direction:      models.DirectionTo,
			UserID:         userID,
			SourceSequence: source,
			DestSequence:   source + 1,
			Status:         models.ReservationWaiting,
			CreatedAt:      time.Date(2026, 3, 2, 8, 55, 0, 0, time.UTC),
		})
	})
	require.NoError(t, err)
}
