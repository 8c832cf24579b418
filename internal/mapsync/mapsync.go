// Package mapsync keeps a map view in step with the loaded route and the
// playback cursor. The map itself sits behind MapLibraryAdapter.
package mapsync

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkordes/fleet-playback/internal/domain"
)

// LatLng is a map position.
type LatLng struct {
	Lat float64
	Lng float64
}

// MarkerKind classifies static markers.
type MarkerKind string

const (
	MarkerStart    MarkerKind = "start"
	MarkerEnd      MarkerKind = "end"
	MarkerStop     MarkerKind = "stop"
	MarkerLandmark MarkerKind = "landmark"
)

// Marker is a static marker drawn once per route.
type Marker struct {
	Kind  MarkerKind
	At    LatLng
	Label string
}

// Landmark is a fixed place (terminal, destination) shown on every route.
type Landmark struct {
	Name string
	At   LatLng
}

// FocusCommand pans and zooms the map without touching playback.
type FocusCommand struct {
	At   LatLng
	Zoom int
}

// DefaultFocusZoom is used when a FocusCommand has no zoom.
const DefaultFocusZoom = 15

// MapLibraryAdapter is implemented by whatever draws the map.
type MapLibraryAdapter interface {
	// Reset removes every layer and marker.
	Reset()
	// DrawRoute draws the route polyline.
	DrawRoute(path []LatLng)
	// AddMarker adds a static marker.
	AddMarker(m Marker)
	// MoveVehicle places the single vehicle marker, creating it if needed.
	MoveVehicle(at LatLng)
	// SetView centers the map.
	SetView(center LatLng, zoom int)
}

// MapSync renders snapshots onto an adapter. A route is drawn once per
// snapshot identity; cursor changes only move the vehicle.
type MapSync struct {
	mu        sync.Mutex
	adapter   MapLibraryAdapter
	landmarks []Landmark
	log       *slog.Logger

	rendered domain.SnapshotID
	coords   []domain.Coordinate
	index    int
}

// New returns a MapSync drawing onto adapter.
func New(adapter MapLibraryAdapter, landmarks []Landmark, log *slog.Logger) *MapSync {
	if log == nil {
		log = slog.Default()
	}
	return &MapSync{adapter: adapter, landmarks: landmarks, log: log, index: -1}
}

// Render shows snapshot with the vehicle at index. A nil or empty snapshot
// clears the map. index is clamped to the route.
func (m *MapSync) Render(snapshot *domain.RouteSnapshot, index int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if snapshot == nil || snapshot.IsEmpty() {
		if m.rendered != 0 || m.coords != nil {
			m.adapter.Reset()
			m.drawLandmarks()
		}
		m.rendered = 0
		m.coords = nil
		m.index = -1
		return
	}

	index = min(max(index, 0), snapshot.Len()-1)

	if snapshot.ID != m.rendered {
		m.reinit(snapshot)
		m.index = -1
	}
	if index != m.index {
		m.adapter.MoveVehicle(toLatLng(m.coords[index]))
		m.index = index
	}
}

// MoveTo moves the vehicle on the route already drawn.
func (m *MapSync) MoveTo(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.coords) == 0 {
		return
	}
	index = min(max(index, 0), len(m.coords)-1)
	if index == m.index {
		return
	}
	m.adapter.MoveVehicle(toLatLng(m.coords[index]))
	m.index = index
}

// Focus pans the map.
func (m *MapSync) Focus(cmd FocusCommand) {
	if cmd.Zoom <= 0 {
		cmd.Zoom = DefaultFocusZoom
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adapter.SetView(cmd.At, cmd.Zoom)
}

// Run applies focus commands from cmds until ctx is done or cmds is closed.
func (m *MapSync) Run(ctx context.Context, cmds <-chan FocusCommand) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-cmds:
			if !ok {
				return
			}
			m.Focus(cmd)
		}
	}
}

// Rendered returns the identity of the snapshot on the map.
func (m *MapSync) Rendered() domain.SnapshotID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rendered
}

func (m *MapSync) reinit(s *domain.RouteSnapshot) {
	m.adapter.Reset()

	path := make([]LatLng, len(s.Coordinates))
	for i, c := range s.Coordinates {
		path[i] = toLatLng(c)
	}
	m.adapter.DrawRoute(path)
	m.adapter.AddMarker(Marker{Kind: MarkerStart, At: path[0], Label: s.Coordinates[0].Timestamp})
	m.adapter.AddMarker(Marker{Kind: MarkerEnd, At: path[len(path)-1], Label: s.Coordinates[len(path)-1].Timestamp})
	for _, st := range s.Stops {
		m.adapter.AddMarker(Marker{
			Kind:  MarkerStop,
			At:    LatLng{Lat: st.Latitude, Lng: st.Longitude},
			Label: stopLabel(st),
		})
	}
	m.drawLandmarks()
	m.adapter.SetView(path[0], DefaultFocusZoom)

	m.rendered = s.ID
	m.coords = s.Coordinates
	m.log.Debug("map reinitialized", "snapshot", uint64(s.ID), "points", len(path), "stops", len(s.Stops))
}

func (m *MapSync) drawLandmarks() {
	for _, l := range m.landmarks {
		m.adapter.AddMarker(Marker{Kind: MarkerLandmark, At: l.At, Label: l.Name})
	}
}

func stopLabel(s domain.Stop) string {
	label := s.FromLabel + " - " + s.ToLabel + " (" + s.DurationLabel + ")"
	if s.Address != nil && *s.Address != "" {
		label = *s.Address + ", " + label
	}
	return label
}

func toLatLng(c domain.Coordinate) LatLng {
	return LatLng{Lat: c.Latitude, Lng: c.Longitude}
}
