package mapsync

import (
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// GeoJSONAdapter is a MapLibraryAdapter that keeps the map as GeoJSON.
// Web clients can draw FeatureCollection directly; the CLI writes it to disk.
type GeoJSONAdapter struct {
	mu      sync.Mutex
	route   *geojson.Feature
	markers []*geojson.Feature
	vehicle *geojson.Feature
	center  orb.Point
	zoom    int
	moves   int
}

var _ MapLibraryAdapter = (*GeoJSONAdapter)(nil)

// NewGeoJSONAdapter returns an empty adapter.
func NewGeoJSONAdapter() *GeoJSONAdapter {
	return &GeoJSONAdapter{}
}

func (g *GeoJSONAdapter) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.route = nil
	g.markers = nil
	g.vehicle = nil
}

func (g *GeoJSONAdapter) DrawRoute(path []LatLng) {
	ls := make(orb.LineString, 0, len(path))
	for _, p := range path {
		ls = append(ls, point(p))
	}
	f := geojson.NewFeature(ls)
	f.Properties["kind"] = "route"

	g.mu.Lock()
	defer g.mu.Unlock()
	g.route = f
}

func (g *GeoJSONAdapter) AddMarker(m Marker) {
	f := geojson.NewFeature(point(m.At))
	f.Properties["kind"] = string(m.Kind)
	if m.Label != "" {
		f.Properties["label"] = m.Label
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.markers = append(g.markers, f)
}

func (g *GeoJSONAdapter) MoveVehicle(at LatLng) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.vehicle == nil {
		g.vehicle = geojson.NewFeature(point(at))
		g.vehicle.Properties["kind"] = "vehicle"
	} else {
		g.vehicle.Geometry = point(at)
	}
	g.moves++
}

func (g *GeoJSONAdapter) SetView(center LatLng, zoom int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.center = point(center)
	g.zoom = zoom
}

// FeatureCollection returns the current map as a new collection: route
// first, then static markers, then the vehicle.
func (g *GeoJSONAdapter) FeatureCollection() *geojson.FeatureCollection {
	g.mu.Lock()
	defer g.mu.Unlock()

	fc := geojson.NewFeatureCollection()
	if g.route != nil {
		fc.Append(g.route)
	}
	for _, m := range g.markers {
		fc.Append(m)
	}
	if g.vehicle != nil {
		fc.Append(g.vehicle)
	}
	return fc
}

// Vehicle returns the vehicle position and whether one is shown.
func (g *GeoJSONAdapter) Vehicle() (orb.Point, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.vehicle == nil {
		return orb.Point{}, false
	}
	return g.vehicle.Geometry.(orb.Point), true
}

// View returns the current center and zoom.
func (g *GeoJSONAdapter) View() (orb.Point, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.center, g.zoom
}

// Moves counts vehicle updates since creation.
func (g *GeoJSONAdapter) Moves() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.moves
}

// Bound returns the bounding box of everything drawn.
func (g *GeoJSONAdapter) Bound() orb.Bound {
	fc := g.FeatureCollection()
	if len(fc.Features) == 0 {
		return orb.Bound{}
	}
	b := fc.Features[0].Geometry.Bound()
	for _, f := range fc.Features[1:] {
		b = b.Union(f.Geometry.Bound())
	}
	return b
}

// orb points are [lng, lat].
func point(p LatLng) orb.Point {
	return orb.Point{p.Lng, p.Lat}
}
