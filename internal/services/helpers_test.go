package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"shuttle-backend/internal/catalog"
	"shuttle-backend/internal/models"
	"shuttle-backend/internal/repository/memstore"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type queuedEvent struct {
	Type      string
	Data      interface{}
	DedupeKey string
	Audience  []string
	Immediate bool
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []queuedEvent
}

func (b *recordingBroadcaster) Queue(eventType string, data interface{}, dedupeKey string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, queuedEvent{Type: eventType, Data: data, DedupeKey: dedupeKey})
}

func (b *recordingBroadcaster) BroadcastImmediate(eventType string, data interface{}, audience ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, queuedEvent{Type: eventType, Data: data, Audience: audience, Immediate: true})
}

func (b *recordingBroadcaster) ofType(eventType string) []queuedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []queuedEvent
	for _, e := range b.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type MockDemandEvaluator struct {
	mock.Mock
}

func (m *MockDemandEvaluator) EvaluateDemand(ctx context.Context, routeID, direction, vehicleID string, delta int) error {
	args := m.Called(routeID, direction, vehicleID, delta)
	return args.Error(0)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

const testRoutes = `
routes:
  - id: campus-loop
    name: Campus Loop
    directions:
      to:
        - {sequence: 0, name: Gate, lat: 12.9700, lon: 77.5900}
        - {sequence: 1, name: Library, lat: 12.9720, lon: 77.5910}
        - {sequence: 2, name: Labs, lat: 12.9740, lon: 77.5920}
        - {sequence: 3, name: Hostel, lat: 12.9760, lon: 77.5930}
      fro:
        - {sequence: 0, name: Hostel, lat: 12.9760, lon: 77.5930}
        - {sequence: 1, name: Gate, lat: 12.9700, lon: 77.5900}
`

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse([]byte(testRoutes))
	require.NoError(t, err)
	return c
}

func seedVehicle(t *testing.T, store *memstore.Store, id string, capacity int) *models.Vehicle {
	t.Helper()
	v := &models.Vehicle{
		ID:        id,
		Name:      "Shuttle " + id,
		Capacity:  capacity,
		Status:    models.VehicleStatusIdle,
		Direction: models.DirectionTo,
	}
	require.NoError(t, store.CreateVehicle(context.Background(), v))
	return v
}
