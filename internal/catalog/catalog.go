// Package catalog loads the static route and stop layout the fleet runs on.
package catalog

import (
	"fmt"
	"os"
	"sort"

	"shuttle-backend/pkg/geo"

	"gopkg.in/yaml.v3"
)

type Stop struct {
	Sequence int     `yaml:"sequence" json:"sequence"`
	Name     string  `yaml:"name" json:"name"`
	Lat      float64 `yaml:"lat" json:"lat"`
	Lon      float64 `yaml:"lon" json:"lon"`
}

func (s Stop) Point() geo.Point {
	return geo.Point{Lat: s.Lat, Lon: s.Lon}
}

type Route struct {
	ID         string            `yaml:"id" json:"id"`
	Name       string            `yaml:"name" json:"name"`
	Directions map[string][]Stop `yaml:"directions" json:"directions"`
}

type file struct {
	Routes []Route `yaml:"routes"`
}

// Catalog is read-only after Load and safe for concurrent use.
type Catalog struct {
	routes map[string]Route
}

// Load reads a YAML catalog from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog. Stops are sorted by sequence.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse route catalog: %w", err)
	}
	return New(f.Routes)
}

// New builds a catalog from already-decoded routes.
func New(routes []Route) (*Catalog, error) {
	c := &Catalog{routes: make(map[string]Route, len(routes))}
	for _, r := range routes {
		if r.ID == "" {
			return nil, fmt.Errorf("route without id")
		}
		if _, dup := c.routes[r.ID]; dup {
			return nil, fmt.Errorf("duplicate route %s", r.ID)
		}
		for dir, stops := range r.Directions {
			if dir != "to" && dir != "fro" {
				return nil, fmt.Errorf("route %s: unknown direction %q", r.ID, dir)
			}
			sort.Slice(stops, func(i, j int) bool { return stops[i].Sequence < stops[j].Sequence })
			for i := 1; i < len(stops); i++ {
				if stops[i].Sequence == stops[i-1].Sequence {
					return nil, fmt.Errorf("route %s/%s: duplicate stop sequence %d", r.ID, dir, stops[i].Sequence)
				}
			}
		}
		c.routes[r.ID] = r
	}
	return c, nil
}

// Route returns the route with the given id.
func (c *Catalog) Route(id string) (Route, bool) {
	r, ok := c.routes[id]
	return r, ok
}

// Stops returns the ordered stops for one direction of a route.
func (c *Catalog) Stops(routeID, direction string) ([]Stop, bool) {
	r, ok := c.routes[routeID]
	if !ok {
		return nil, false
	}
	stops, ok := r.Directions[direction]
	return stops, ok && len(stops) > 0
}

// MaxSequence returns the highest stop sequence for the route direction, or -1.
func (c *Catalog) MaxSequence(routeID, direction string) int {
	stops, ok := c.Stops(routeID, direction)
	if !ok {
		return -1
	}
	return stops[len(stops)-1].Sequence
}

// Routes lists every route id, sorted.
func (c *Catalog) Routes() []string {
	ids := make([]string, 0, len(c.routes))
	for id := range c.routes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
