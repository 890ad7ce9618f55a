// Package routing asks the Google Maps Directions API for road-following
// route shapes.
package routing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"shuttle-backend/internal/catalog"
	"shuttle-backend/pkg/cache"

	"googlemaps.github.io/maps"
)

var (
	// ErrShapeUnavailable means neither the full request nor the per-segment
	// fallback produced a shape. No straight-line stand-in is returned.
	ErrShapeUnavailable = errors.New("route shape unavailable")
	ErrUnknownRoute     = errors.New("unknown route direction")
)

type Leg struct {
	FromSequence    int     `json:"fromSequence"`
	ToSequence      int     `json:"toSequence"`
	DistanceMeters  int     `json:"distanceMeters"`
	DurationSeconds float64 `json:"durationSeconds"`
}

type Shape struct {
	RouteID   string `json:"routeId"`
	Direction string `json:"direction"`
	// Polyline is Google's encoded polyline format.
	Polyline    string    `json:"polyline"`
	Legs        []Leg     `json:"legs"`
	Segmented   bool      `json:"segmented"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// DirectionsClient is satisfied by *maps.Client.
type DirectionsClient interface {
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
}

type ShapeService struct {
	client  DirectionsClient
	catalog *catalog.Catalog
	cache   cache.CacheManager
	ttl     time.Duration
}

// NewShapeService creates a ShapeService with the given API key.
func NewShapeService(apiKey string, cat *catalog.Catalog) (*ShapeService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return NewShapeServiceWithClient(client, cat), nil
}

func NewShapeServiceWithClient(client DirectionsClient, cat *catalog.Catalog) *ShapeService {
	return &ShapeService{
		client:  client,
		catalog: cat,
		ttl:     cache.DefaultCacheConfig().GetTTLForDataType("route_shape"),
	}
}

func (s *ShapeService) SetCacheManager(c cache.CacheManager, ttl time.Duration) {
	s.cache = c
	if ttl > 0 {
		s.ttl = ttl
	}
}

// Shape returns the shape for one direction of a route, from cache when
// possible.
func (s *ShapeService) Shape(ctx context.Context, routeID, direction string) (*Shape, error) {
	stops, ok := s.catalog.Stops(routeID, direction)
	if !ok || len(stops) < 2 {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownRoute, routeID, direction)
	}

	key := "route_shape:" + routeID + ":" + direction
	if s.cache != nil {
		var cached Shape
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			log.Printf("Failed to read cached shape %s: %v", key, err)
		} else if found {
			return &cached, nil
		}
	}

	shape, err := s.whole(ctx, stops)
	if err != nil {
		log.Printf("Directions request for %s/%s failed, trying per segment: %v", routeID, direction, err)
		shape, err = s.segmented(ctx, stops)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrShapeUnavailable, err)
		}
	}
	shape.RouteID = routeID
	shape.Direction = direction
	shape.GeneratedAt = time.Now()

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, shape, s.ttl); err != nil {
			log.Printf("Failed to cache shape %s: %v", key, err)
		}
	}
	return shape, nil
}

func (s *ShapeService) whole(ctx context.Context, stops []catalog.Stop) (*Shape, error) {
	req := &maps.DirectionsRequest{
		Origin:      latLng(stops[0]),
		Destination: latLng(stops[len(stops)-1]),
		Mode:        maps.TravelModeDriving,
	}
	for _, stop := range stops[1 : len(stops)-1] {
		req.Waypoints = append(req.Waypoints, latLng(stop))
	}

	route, err := s.first(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(route.Legs) != len(stops)-1 {
		return nil, fmt.Errorf("expected %d legs, got %d", len(stops)-1, len(route.Legs))
	}

	shape := &Shape{Polyline: route.OverviewPolyline.Points}
	for i, leg := range route.Legs {
		shape.Legs = append(shape.Legs, toLeg(stops[i], stops[i+1], leg))
	}
	return shape, nil
}

func (s *ShapeService) segmented(ctx context.Context, stops []catalog.Stop) (*Shape, error) {
	shape := &Shape{Segmented: true}
	var path []maps.LatLng

	for i := 0; i+1 < len(stops); i++ {
		route, err := s.first(ctx, &maps.DirectionsRequest{
			Origin:      latLng(stops[i]),
			Destination: latLng(stops[i+1]),
			Mode:        maps.TravelModeDriving,
		})
		if err != nil {
			return nil, fmt.Errorf("segment %d-%d: %w", stops[i].Sequence, stops[i+1].Sequence, err)
		}
		if len(route.Legs) == 0 {
			return nil, fmt.Errorf("segment %d-%d: no legs", stops[i].Sequence, stops[i+1].Sequence)
		}

		points, err := route.OverviewPolyline.Decode()
		if err != nil {
			return nil, fmt.Errorf("segment %d-%d: %w", stops[i].Sequence, stops[i+1].Sequence, err)
		}
		if len(path) > 0 && len(points) > 0 {
			// each segment starts where the previous one ended
			points = points[1:]
		}
		path = append(path, points...)
		shape.Legs = append(shape.Legs, toLeg(stops[i], stops[i+1], route.Legs[0]))
	}

	shape.Polyline = maps.Encode(path)
	return shape, nil
}

func (s *ShapeService) first(ctx context.Context, req *maps.DirectionsRequest) (*maps.Route, error) {
	routes, _, err := s.client.Directions(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 {
		return nil, errors.New("no route found")
	}
	return &routes[0], nil
}

func toLeg(from, to catalog.Stop, leg *maps.Leg) Leg {
	return Leg{
		FromSequence:    from.Sequence,
		ToSequence:      to.Sequence,
		DistanceMeters:  leg.Distance.Meters,
		DurationSeconds: leg.Duration.Seconds(),
	}
}

func latLng(stop catalog.Stop) string {
	return strconv.FormatFloat(stop.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(stop.Lon, 'f', 6, 64)
}
