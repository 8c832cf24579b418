// Package normalize turns loosely typed GPS records from the route data
// service into validated coordinates.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/pkordes/fleet-playback/internal/domain"
)

// RawRecord is one coordinate object as decoded from JSON.
type RawRecord map[string]any

var (
	latKeys  = []string{"Latitude", "latitude", "lat"}
	lngKeys  = []string{"Longitude", "longitude", "lng", "lon"}
	timeKeys = []string{"Timestamp", "timestamp", "time"}
)

// Normalize converts records into coordinates, preserving order. Records with
// a missing, non-numeric, non-finite or out-of-range latitude or longitude
// are dropped without error.
func Normalize(records []RawRecord) []domain.Coordinate {
	out := make([]domain.Coordinate, 0, len(records))
	for _, r := range records {
		c, ok := Record(r)
		if !ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Record converts a single record. ok is false when the record would be
// dropped by Normalize.
func Record(r RawRecord) (domain.Coordinate, bool) {
	lat, ok := number(lookup(r, latKeys))
	if !ok || lat < -90 || lat > 90 {
		return domain.Coordinate{}, false
	}
	lng, ok := number(lookup(r, lngKeys))
	if !ok || lng < -180 || lng > 180 {
		return domain.Coordinate{}, false
	}
	c := domain.Coordinate{Latitude: lat, Longitude: lng}
	if ts, ok := lookup(r, timeKeys).(string); ok {
		c.Timestamp = ts
	}
	return c, true
}

func lookup(r RawRecord, keys []string) any {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// number accepts the shapes encoding/json produces for a numeric field,
// plus numeric strings.
func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
