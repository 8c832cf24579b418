// Package routestats computes distance and display statistics for a route.
package routestats

import (
	"fmt"
	"math"
	"time"

	"github.com/pkordes/fleet-playback/internal/domain"
)

// EarthRadiusKm is the mean Earth radius used by HaversineKm.
const EarthRadiusKm = 6371.0

// DistanceSource tells the dashboard where the distance figure came from.
type DistanceSource string

const (
	SourceAPI        DistanceSource = "API"
	SourceCalculated DistanceSource = "CALCULATED"
)

// Stats is the statistics panel for one snapshot. Pointer fields are nil
// when the service did not report the value.
type Stats struct {
	TotalPoints     int
	DistanceKm      float64
	DistanceSource  DistanceSource
	TotalStops      int
	ActiveTime      *time.Duration
	IdleTime        *time.Duration
	FuelConsumption *float64
	MaxSpeed        *float64
	AvgSpeed        *float64
}

// HaversineKm returns the great-circle distance between a and b.
func HaversineKm(a, b domain.Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// DistanceKm sums HaversineKm over consecutive pairs. A pair in which either
// end is not a usable coordinate contributes nothing.
func DistanceKm(coords []domain.Coordinate) float64 {
	var total float64
	for i := 1; i < len(coords); i++ {
		if !usable(coords[i-1]) || !usable(coords[i]) {
			continue
		}
		total += HaversineKm(coords[i-1], coords[i])
	}
	return total
}

// Derive builds the statistics panel for a snapshot. The service-reported
// mileage wins over the computed distance when present.
func Derive(s domain.RouteSnapshot) Stats {
	st := Stats{
		TotalPoints:    len(s.Coordinates),
		DistanceKm:     DistanceKm(s.Coordinates),
		DistanceSource: SourceCalculated,
		TotalStops:     len(s.Stops),
	}

	sum := s.TripSummary
	if sum == nil {
		return st
	}
	if sum.TotalMileage != nil {
		st.DistanceKm = *sum.TotalMileage
		st.DistanceSource = SourceAPI
	}
	if sum.NumberOfStops != nil {
		st.TotalStops = *sum.NumberOfStops
	}
	st.ActiveTime = sum.TotalActiveTime
	st.IdleTime = sum.TotalIdleTime
	st.FuelConsumption = sum.TotalFuelConsumption
	st.MaxSpeed = sum.MaxSpeed
	st.AvgSpeed = sum.AvgSpeed
	return st
}

// FormatDuration renders d the way the dashboard labels durations:
// "1h 05m", "12m", "45s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func usable(c domain.Coordinate) bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) ||
		math.IsInf(c.Latitude, 0) || math.IsInf(c.Longitude, 0) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}
