package routing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"shuttle-backend/internal/catalog"
	"shuttle-backend/pkg/cache"
	"shuttle-backend/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

type fakeDirections struct {
	mu       sync.Mutex
	calls    int
	failFull bool
	failAll  bool
}

func (f *fakeDirections) Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.failAll || (f.failFull && len(r.Waypoints) > 0) {
		return nil, nil, errors.New("OVER_QUERY_LIMIT")
	}

	stopsOnPath := append(append([]string{r.Origin}, r.Waypoints...), r.Destination)
	var path []maps.LatLng
	var legs []*maps.Leg
	for i, s := range stopsOnPath {
		var lat, lng float64
		fmt.Sscanf(s, "%f,%f", &lat, &lng)
		path = append(path, maps.LatLng{Lat: lat, Lng: lng})
		if i > 0 {
			legs = append(legs, &maps.Leg{Distance: maps.Distance{Meters: 500}, Duration: time.Minute})
		}
	}
	return []maps.Route{{OverviewPolyline: maps.Polyline{Points: maps.Encode(path)}, Legs: legs}}, nil, nil
}

func (f *fakeDirections) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testCatalog(t *testing.T) *catalog.Catalog {
	c, err := catalog.New([]catalog.Route{{
		ID: "campus-loop",
		Directions: map[string][]catalog.Stop{
			"to": {
				{Sequence: 0, Lat: 40.0, Lon: -83.0},
				{Sequence: 1, Lat: 40.005, Lon: -83.0},
				{Sequence: 2, Lat: 40.01, Lon: -83.0},
			},
			"fro": {
				{Sequence: 0, Lat: 40.01, Lon: -83.0},
			},
		},
	}})
	require.NoError(t, err)
	return c
}

func TestShapeFromSingleRequest(t *testing.T) {
	client := &fakeDirections{}
	service := NewShapeServiceWithClient(client, testCatalog(t))

	shape, err := service.Shape(context.Background(), "campus-loop", "to")
	require.NoError(t, err)

	assert.Equal(t, 1, client.callCount())
	assert.False(t, shape.Segmented)
	require.Len(t, shape.Legs, 2)
	assert.Equal(t, 1, shape.Legs[1].FromSequence)
	assert.Equal(t, 500, shape.Legs[1].DistanceMeters)
	assert.Equal(t, 60.0, shape.Legs[0].DurationSeconds)

	points, err := maps.DecodePolyline(shape.Polyline)
	require.NoError(t, err)
	assert.Len(t, points, 3)
}

func TestShapeFallsBackToSegments(t *testing.T) {
	client := &fakeDirections{failFull: true}
	service := NewShapeServiceWithClient(client, testCatalog(t))

	shape, err := service.Shape(context.Background(), "campus-loop", "to")
	require.NoError(t, err)

	assert.Equal(t, 3, client.callCount())
	assert.True(t, shape.Segmented)
	assert.Len(t, shape.Legs, 2)

	points, err := maps.DecodePolyline(shape.Polyline)
	require.NoError(t, err)
	assert.Len(t, points, 3, "shared segment endpoints appear once")
	assert.InDelta(t, 40.01, points[2].Lat, 1e-5)
}

func TestShapeUnavailable(t *testing.T) {
	service := NewShapeServiceWithClient(&fakeDirections{failAll: true}, testCatalog(t))

	_, err := service.Shape(context.Background(), "campus-loop", "to")
	assert.True(t, errors.Is(err, ErrShapeUnavailable))
}

func TestShapeUnknownRoute(t *testing.T) {
	service := NewShapeServiceWithClient(&fakeDirections{}, testCatalog(t))

	_, err := service.Shape(context.Background(), "nowhere", "to")
	assert.True(t, errors.Is(err, ErrUnknownRoute))

	_, err = service.Shape(context.Background(), "campus-loop", "fro")
	assert.True(t, errors.Is(err, ErrUnknownRoute), "a single stop has no shape")
}

func TestShapeIsCached(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	defer rdb.Close()

	config := cache.DefaultCacheConfig()
	config.KeyPrefix = "test:"
	client := &fakeDirections{}
	service := NewShapeServiceWithClient(client, testCatalog(t))
	service.SetCacheManager(cache.NewCacheManager(rdb, config), time.Hour)

	first, err := service.Shape(context.Background(), "campus-loop", "to")
	require.NoError(t, err)
	second, err := service.Shape(context.Background(), "campus-loop", "to")
	require.NoError(t, err)

	assert.Equal(t, 1, client.callCount())
	assert.Equal(t, first.Polyline, second.Polyline)
	assert.Equal(t, first.Legs, second.Legs)

	mr.FastForward(2 * time.Hour)
	_, err = service.Shape(context.Background(), "campus-loop", "to")
	require.NoError(t, err)
	assert.Equal(t, 2, client.callCount())
}
