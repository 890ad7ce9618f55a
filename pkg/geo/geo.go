// Package geo holds the great-circle helpers shared by trip synthesis and ETA.
package geo

import "math"

const earthRadiusMeters = 6371000

type Point struct {
	Lat float64
	Lon float64
}

// DistanceMeters returns the haversine distance between a and b.
func DistanceMeters(a, b Point) float64 {
	lat1Rad := a.Lat * math.Pi / 180
	lat2Rad := b.Lat * math.Pi / 180
	deltaLat := (b.Lat - a.Lat) * math.Pi / 180
	deltaLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// PathMeters sums the leg distances along an ordered path.
func PathMeters(path []Point) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += DistanceMeters(path[i-1], path[i])
	}
	return total
}

// Nearest returns the index of the point in candidates closest to p and its
// distance. It returns -1 when candidates is empty.
func Nearest(p Point, candidates []Point) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	for i, c := range candidates {
		if d := DistanceMeters(p, c); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

// OffsetNorth returns the point metres north of p. Used to build fixtures and
// synthetic paths.
func OffsetNorth(p Point, meters float64) Point {
	return Point{Lat: p.Lat + (meters/earthRadiusMeters)*180/math.Pi, Lon: p.Lon}
}
