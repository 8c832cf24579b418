package domain

import (
	"time"

	"github.com/google/uuid"
)

// Trip is a vehicle journey known to the route data service. The playback
// engine only ever sees its ID; the service uses CarID to pick positions.
type Trip struct {
	ID        uuid.UUID
	CarID     uuid.UUID
	Name      string
	StartedAt time.Time
	EndedAt   *time.Time // nil while the trip is still open
	CreatedAt time.Time
}

// Position is one raw GPS fix reported by a vehicle.
type Position struct {
	CarID      uuid.UUID
	Latitude   float64
	Longitude  float64
	SpeedKmh   *float64
	FuelLevelL *float64
	RecordedAt time.Time
}

// StoredRoute is a route persisted for a trip so later visits do not need
// to rebuild it from raw positions.
type StoredRoute struct {
	TripID      uuid.UUID
	CarID       uuid.UUID
	From        time.Time
	To          time.Time
	Coordinates []Coordinate
	Stops       []Stop
	Summary     *TripSummary
	StoredAt    time.Time
}
