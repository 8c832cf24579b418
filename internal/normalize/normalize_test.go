package normalize_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/fleet-playback/internal/domain"
	"github.com/pkordes/fleet-playback/internal/normalize"
)

func TestNormalize_DropsUnparsable(t *testing.T) {
	in := []normalize.RawRecord{
		{"Latitude": "10.5", "Longitude": "20.25"},
		{"Latitude": "abc", "Longitude": "20"},
		{"Latitude": 11.0, "Longitude": 21.0},
	}

	got := normalize.Normalize(in)

	assert.Equal(t, []domain.Coordinate{
		{Latitude: 10.5, Longitude: 20.25},
		{Latitude: 11, Longitude: 21},
	}, got)
}

func TestNormalize_KeyAliases(t *testing.T) {
	in := []normalize.RawRecord{
		{"lat": 1.0, "lng": 2.0, "timestamp": "2024/03/01 08:00:00"},
		{"lat": 3.0, "lon": 4.0},
		{"latitude": "5", "longitude": "6", "time": "t"},
	}

	got := normalize.Normalize(in)

	require.Len(t, got, 3)
	assert.Equal(t, domain.Coordinate{Latitude: 1, Longitude: 2, Timestamp: "2024/03/01 08:00:00"}, got[0])
	assert.Equal(t, domain.Coordinate{Latitude: 3, Longitude: 4}, got[1])
	assert.Equal(t, domain.Coordinate{Latitude: 5, Longitude: 6, Timestamp: "t"}, got[2])
}

func TestNormalize_RejectsOutOfRangeAndMissing(t *testing.T) {
	in := []normalize.RawRecord{
		{"Latitude": 91.0, "Longitude": 0.0},
		{"Latitude": 0.0, "Longitude": -180.5},
		{"Latitude": 0.0},
		{"Latitude": nil, "Longitude": 1.0},
		{"Latitude": true, "Longitude": 1.0},
		{"Latitude": "NaN", "Longitude": 1.0},
		{"Latitude": "-90", "Longitude": "180"},
	}

	got := normalize.Normalize(in)

	assert.Equal(t, []domain.Coordinate{{Latitude: -90, Longitude: 180}}, got)
}

func TestNormalize_JSONNumber(t *testing.T) {
	var in []normalize.RawRecord
	dec := json.NewDecoder(strings.NewReader(`[{"lat": 48.1351, "lng": 11.582}]`))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&in))

	got := normalize.Normalize(in)

	assert.Equal(t, []domain.Coordinate{{Latitude: 48.1351, Longitude: 11.582}}, got)
}

func TestNormalize_EmptyInput(t *testing.T) {
	assert.Empty(t, normalize.Normalize(nil))
	assert.NotNil(t, normalize.Normalize(nil))
}

func TestNormalize_OrderPreservedAndNeverGrows(t *testing.T) {
	in := make([]normalize.RawRecord, 0, 50)
	for i := 0; i < 50; i++ {
		if i%3 == 0 {
			in = append(in, normalize.RawRecord{"Latitude": "x", "Longitude": "y"})
			continue
		}
		in = append(in, normalize.RawRecord{"Latitude": float64(i), "Longitude": float64(-i)})
	}

	got := normalize.Normalize(in)

	assert.LessOrEqual(t, len(got), len(in))
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].Latitude, got[i].Latitude)
	}
}
