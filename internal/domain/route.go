// Package domain holds the value types shared by the route playback engine
// and the route data service. It has no dependencies on other internal packages.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Coordinate is a single normalized GPS sample. Latitude and Longitude are
// finite and within range; Timestamp is carried through as the service sent it.
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// Stop is a dwell detected along a route.
type Stop struct {
	FromLabel     string  `json:"fromLabel"`
	ToLabel       string  `json:"toLabel"`
	DurationLabel string  `json:"durationLabel"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Address       *string `json:"address,omitempty"`
}

// TripSummary is the aggregate reported by the route data service.
// A nil field means the service did not know the value.
type TripSummary struct {
	TotalMileage         *float64       `json:"totalMileage,omitempty"`
	TotalActiveTime      *time.Duration `json:"totalActiveTime,omitempty"`
	TotalIdleTime        *time.Duration `json:"totalIdleTime,omitempty"`
	TotalFuelConsumption *float64       `json:"totalFuelConsumption,omitempty"`
	MaxSpeed             *float64       `json:"maxSpeed,omitempty"`
	AvgSpeed             *float64       `json:"avgSpeed,omitempty"`
	NumberOfStops        *int           `json:"numberOfStops,omitempty"`
}

// SnapshotOrigin records whether a snapshot came from the persisted store or
// from an ad-hoc date range query.
type SnapshotOrigin string

const (
	OriginStored  SnapshotOrigin = "STORED"
	OriginFetched SnapshotOrigin = "FETCHED"
)

// SnapshotID identifies one loaded route. Every successful load produces a
// new ID, even when the coordinates are identical to the previous load.
// The zero value means no snapshot.
type SnapshotID uint64

// RouteSnapshot is the full result of one successful route load.
// Consumers must treat it as immutable; a reload produces a new snapshot.
type RouteSnapshot struct {
	ID          SnapshotID
	TripID      uuid.UUID // uuid.Nil when loaded by car and date range only
	CarID       uuid.UUID
	From        string
	To          string
	Coordinates []Coordinate
	Stops       []Stop
	TripSummary *TripSummary
	Origin      SnapshotOrigin
}

// Len returns the number of coordinates in the snapshot.
func (s RouteSnapshot) Len() int { return len(s.Coordinates) }

// IsEmpty reports whether the snapshot has no coordinates.
func (s RouteSnapshot) IsEmpty() bool { return len(s.Coordinates) == 0 }

// PlaybackState is the externally visible state of the timeline.
// Snapshot is the identity of the route the cursor belongs to.
type PlaybackState struct {
	Snapshot     SnapshotID
	CurrentIndex int
	IsPlaying    bool
	Speed        time.Duration
}
