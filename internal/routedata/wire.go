// Package routedata is the client for the route data service, and the home
// of the JSON shapes both sides of that service speak.
package routedata

import (
	"fmt"
	"time"

	"github.com/pkordes/fleet-playback/internal/domain"
	"github.com/pkordes/fleet-playback/internal/normalize"
)

// Response is the body of every route data service endpoint.
// Coordinates are left loosely typed; callers normalize them.
type Response struct {
	Success     bool                  `json:"success"`
	Coordinates []normalize.RawRecord `json:"coordinates,omitempty"`
	Stops       []domain.Stop         `json:"stops,omitempty"`
	TripSummary *TripSummary          `json:"tripSummary,omitempty"`
	From        string                `json:"from,omitempty"`
	To          string                `json:"to,omitempty"`
	Error       string                `json:"error,omitempty"`
}

// TripSummary is the wire form of domain.TripSummary. Durations travel as
// whole seconds.
type TripSummary struct {
	TotalMileage         *float64 `json:"totalMileage"`
	TotalActiveTime      *int64   `json:"totalActiveTime"`
	TotalIdleTime        *int64   `json:"totalIdleTime"`
	TotalFuelConsumption *float64 `json:"totalFuelConsumption"`
	MaxSpeed             *float64 `json:"maxSpeed"`
	AvgSpeed             *float64 `json:"avgSpeed"`
	NumberOfStops        *int     `json:"numberOfStops"`
}

// Snapshot converts the response into a snapshot without identity or origin;
// the route store assigns both. Returns domain.ErrDataQuality when no
// coordinate survives normalization.
func (r Response) Snapshot() (domain.RouteSnapshot, error) {
	coords := normalize.Normalize(r.Coordinates)
	if len(coords) == 0 {
		if len(r.Coordinates) == 0 {
			return domain.RouteSnapshot{}, fmt.Errorf("%w: service returned no coordinates", domain.ErrDataQuality)
		}
		return domain.RouteSnapshot{}, fmt.Errorf("%w: none of %d coordinates are usable", domain.ErrDataQuality, len(r.Coordinates))
	}
	return domain.RouteSnapshot{
		From:        r.From,
		To:          r.To,
		Coordinates: coords,
		Stops:       r.Stops,
		TripSummary: r.TripSummary.toDomain(),
	}, nil
}

// NewResponse builds a successful response for a snapshot.
func NewResponse(s domain.RouteSnapshot) Response {
	records := make([]normalize.RawRecord, 0, len(s.Coordinates))
	for _, c := range s.Coordinates {
		rec := normalize.RawRecord{"lat": c.Latitude, "lng": c.Longitude}
		if c.Timestamp != "" {
			rec["timestamp"] = c.Timestamp
		}
		records = append(records, rec)
	}
	stops := s.Stops
	if stops == nil {
		stops = []domain.Stop{}
	}
	return Response{
		Success:     true,
		Coordinates: records,
		Stops:       stops,
		TripSummary: summaryFromDomain(s.TripSummary),
		From:        s.From,
		To:          s.To,
	}
}

// ErrorResponse builds a success=false response carrying msg.
func ErrorResponse(msg string) Response {
	return Response{Success: false, Error: msg}
}

func (w *TripSummary) toDomain() *domain.TripSummary {
	if w == nil {
		return nil
	}
	return &domain.TripSummary{
		TotalMileage:         w.TotalMileage,
		TotalActiveTime:      seconds(w.TotalActiveTime),
		TotalIdleTime:        seconds(w.TotalIdleTime),
		TotalFuelConsumption: w.TotalFuelConsumption,
		MaxSpeed:             w.MaxSpeed,
		AvgSpeed:             w.AvgSpeed,
		NumberOfStops:        w.NumberOfStops,
	}
}

func summaryFromDomain(s *domain.TripSummary) *TripSummary {
	if s == nil {
		return nil
	}
	return &TripSummary{
		TotalMileage:         s.TotalMileage,
		TotalActiveTime:      wholeSeconds(s.TotalActiveTime),
		TotalIdleTime:        wholeSeconds(s.TotalIdleTime),
		TotalFuelConsumption: s.TotalFuelConsumption,
		MaxSpeed:             s.MaxSpeed,
		AvgSpeed:             s.AvgSpeed,
		NumberOfStops:        s.NumberOfStops,
	}
}

func seconds(v *int64) *time.Duration {
	if v == nil {
		return nil
	}
	d := time.Duration(*v) * time.Second
	return &d
}

func wholeSeconds(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	s := int64(d.Round(time.Second) / time.Second)
	return &s
}
