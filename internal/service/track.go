package service

import (
	"time"

	"github.com/pkordes/fleet-playback/internal/domain"
	"github.com/pkordes/fleet-playback/internal/routestats"
)

// StopConfig tunes dwell detection.
type StopConfig struct {
	// RadiusM is how far, in metres, the vehicle may drift from where it
	// halted and still count as stopped.
	RadiusM float64
	// MinDwell is the shortest halt reported as a stop.
	MinDwell time.Duration
}

// DefaultStopConfig matches what dispatchers expect to see as a stop.
var DefaultStopConfig = StopConfig{RadiusM: 100, MinDwell: 5 * time.Minute}

// track is a route assembled from raw positions.
type track struct {
	coords  []domain.Coordinate
	stops   []domain.Stop
	summary *domain.TripSummary
}

// buildTrack turns positions (oldest first) into coordinates, stops and a
// summary. Labels and timestamps are rendered in loc.
func buildTrack(positions []domain.Position, loc *time.Location, cfg StopConfig) track {
	coords := make([]domain.Coordinate, len(positions))
	for i, p := range positions {
		coords[i] = domain.Coordinate{
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Timestamp: p.RecordedAt.In(loc).Format(domain.WireLayout),
		}
	}

	stops, idle := detectStops(positions, loc, cfg)
	return track{
		coords:  coords,
		stops:   stops,
		summary: summarize(positions, coords, len(stops), idle),
	}
}

// detectStops finds runs of positions that stay within cfg.RadiusM of the
// first fix of the run for at least cfg.MinDwell. It returns the stops and
// the total time spent in them.
func detectStops(positions []domain.Position, loc *time.Location, cfg StopConfig) ([]domain.Stop, time.Duration) {
	stops := []domain.Stop{}
	var idle time.Duration
	radiusKm := cfg.RadiusM / 1000

	for i := 0; i < len(positions); {
		anchor := coordOf(positions[i])
		j := i
		for j+1 < len(positions) && routestats.HaversineKm(anchor, coordOf(positions[j+1])) <= radiusKm {
			j++
		}

		dwell := positions[j].RecordedAt.Sub(positions[i].RecordedAt)
		if j > i && dwell >= cfg.MinDwell {
			lat, lng := centroid(positions[i : j+1])
			stops = append(stops, domain.Stop{
				FromLabel:     positions[i].RecordedAt.In(loc).Format("15:04"),
				ToLabel:       positions[j].RecordedAt.In(loc).Format("15:04"),
				DurationLabel: routestats.FormatDuration(dwell),
				Latitude:      lat,
				Longitude:     lng,
			})
			idle += dwell
			i = j + 1
			continue
		}
		i++
	}
	return stops, idle
}

// summarize derives the trip summary. Values the positions cannot support
// (no speeds, fewer than two fuel readings) stay nil.
func summarize(positions []domain.Position, coords []domain.Coordinate, numStops int, idle time.Duration) *domain.TripSummary {
	if len(positions) == 0 {
		return nil
	}

	mileage := routestats.DistanceKm(coords)
	elapsed := positions[len(positions)-1].RecordedAt.Sub(positions[0].RecordedAt)
	active := max(elapsed-idle, 0)

	s := &domain.TripSummary{
		TotalMileage:    &mileage,
		TotalActiveTime: &active,
		TotalIdleTime:   &idle,
		NumberOfStops:   &numStops,
	}

	if active > 0 {
		avg := mileage / active.Hours()
		s.AvgSpeed = &avg
	}

	var maxSpeed *float64
	for _, p := range positions {
		if p.SpeedKmh != nil && (maxSpeed == nil || *p.SpeedKmh > *maxSpeed) {
			v := *p.SpeedKmh
			maxSpeed = &v
		}
	}
	s.MaxSpeed = maxSpeed

	// Fuel used is the sum of drops between consecutive readings; rises are
	// refuels and are ignored.
	var (
		prev     *float64
		used     float64
		readings int
	)
	for _, p := range positions {
		if p.FuelLevelL == nil {
			continue
		}
		readings++
		if prev != nil && *p.FuelLevelL < *prev {
			used += *prev - *p.FuelLevelL
		}
		prev = p.FuelLevelL
	}
	if readings >= 2 {
		s.TotalFuelConsumption = &used
	}

	return s
}

func coordOf(p domain.Position) domain.Coordinate {
	return domain.Coordinate{Latitude: p.Latitude, Longitude: p.Longitude}
}

func centroid(ps []domain.Position) (float64, float64) {
	var lat, lng float64
	for _, p := range ps {
		lat += p.Latitude
		lng += p.Longitude
	}
	n := float64(len(ps))
	return lat / n, lng / n
}
