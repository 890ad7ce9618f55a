// Package eta derives demand signals and stop arrival estimates from fleet
// state, and notifies waiting riders as their shuttle gets close.
package eta

import (
	"shuttle-backend/internal/catalog"
	"shuttle-backend/pkg/geo"
)

// RouteDistance is the distance in metres a vehicle at pos still has to
// travel, following stop order, to reach the stop with sequence target.
// The stop nearest pos counts as already reached. ok is false when the
// target is behind the vehicle or not on the route.
func RouteDistance(stops []catalog.Stop, pos geo.Point, target int) (meters float64, ok bool) {
	targetIdx := -1
	points := make([]geo.Point, len(stops))
	for i, s := range stops {
		points[i] = s.Point()
		if s.Sequence == target {
			targetIdx = i
		}
	}
	if targetIdx < 0 {
		return 0, false
	}

	nearest, dist := geo.Nearest(pos, points)
	switch {
	case nearest == targetIdx:
		return dist, true
	case nearest > targetIdx:
		return 0, false
	}

	meters = geo.DistanceMeters(pos, points[nearest+1])
	meters += geo.PathMeters(points[nearest+1 : targetIdx+1])
	return meters, true
}

// Minutes converts a distance to travel time at speed metres per second.
func Minutes(meters, speed float64) float64 {
	return meters / speed / 60
}
