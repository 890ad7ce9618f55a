package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMeters(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Point
		expected float64
		delta    float64
	}{
		{"same point", Point{40.7128, -74.0060}, Point{40.7128, -74.0060}, 0, 0.001},
		{"one degree latitude", Point{0, 0}, Point{1, 0}, 111195, 50},
		{"nyc to philadelphia", Point{40.7128, -74.0060}, Point{39.9526, -75.1652}, 129600, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, DistanceMeters(tt.a, tt.b), tt.delta)
		})
	}
}

func TestPathMeters(t *testing.T) {
	start := Point{Lat: 51.5, Lon: -0.12}
	path := []Point{start, OffsetNorth(start, 200), OffsetNorth(start, 400)}

	assert.InDelta(t, 400, PathMeters(path), 0.5)
	assert.Equal(t, 0.0, PathMeters(path[:1]))
	assert.Equal(t, 0.0, PathMeters(nil))
}

func TestNearest(t *testing.T) {
	origin := Point{Lat: 10, Lon: 10}
	stops := []Point{OffsetNorth(origin, 1000), OffsetNorth(origin, 50), OffsetNorth(origin, 500)}

	idx, dist := Nearest(origin, stops)
	assert.Equal(t, 1, idx)
	assert.InDelta(t, 50, dist, 0.5)

	idx, _ = Nearest(origin, nil)
	assert.Equal(t, -1, idx)
}
