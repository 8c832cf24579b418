package handler

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/oapi-codegen/runtime"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/pkordes/fleet-playback/internal/domain"
)

// Export formats accepted by ?format=.
const (
	formatCSV     = "csv"
	formatGeoJSON = "geojson"
)

// csvHeaders defines the column names written as the first row of a CSV export.
var csvHeaders = []string{"seq", "lat", "lng", "timestamp"}

// ExportStoredRoute handles GET /api/routes/trips/{tripId}/export.
// It returns the trip's stored route as CSV (one row per point, the
// default) or, with ?format=geojson, as a FeatureCollection holding the
// route line and one point per stop.
func (s *Server) ExportStoredRoute(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathUUID(r, "tripId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	format := formatCSV
	if err := runtime.BindQueryParameter("form", true, false, "format", r.URL.Query(), &format); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if format != formatCSV && format != formatGeoJSON {
		writeError(w, http.StatusBadRequest, "format must be csv or geojson")
		return
	}

	snap, err := s.routes.StoredRoute(r.Context(), tripID)
	if err != nil {
		s.fail(w, r, err, "no stored route for this trip")
		return
	}

	if format == formatGeoJSON {
		writeJSON(w, http.StatusOK, routeFeatures(snap))
		return
	}

	body := routeCSV(snap)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="route-`+tripID.String()+`.csv"`)
	w.Header().Set("Content-Length", strconv.Itoa(body.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = body.WriteTo(w)
}

// routeCSV encodes the route's points. Writes to a bytes.Buffer cannot fail.
func routeCSV(snap domain.RouteSnapshot) *bytes.Buffer {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	_ = cw.Write(csvHeaders)
	for i, c := range snap.Coordinates {
		_ = cw.Write([]string{
			strconv.Itoa(i),
			strconv.FormatFloat(c.Latitude, 'f', -1, 64),
			strconv.FormatFloat(c.Longitude, 'f', -1, 64),
			c.Timestamp,
		})
	}
	cw.Flush()
	return &buf
}

// routeFeatures builds the GeoJSON view of a route. GeoJSON positions are
// [lng, lat].
func routeFeatures(snap domain.RouteSnapshot) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	line := make(orb.LineString, 0, len(snap.Coordinates))
	for _, c := range snap.Coordinates {
		line = append(line, orb.Point{c.Longitude, c.Latitude})
	}
	route := geojson.NewFeature(line)
	route.Properties["kind"] = "route"
	route.Properties["tripId"] = snap.TripID.String()
	route.Properties["from"] = snap.From
	route.Properties["to"] = snap.To
	fc.Append(route)

	for _, st := range snap.Stops {
		f := geojson.NewFeature(orb.Point{st.Longitude, st.Latitude})
		f.Properties["kind"] = "stop"
		f.Properties["from"] = st.FromLabel
		f.Properties["to"] = st.ToLabel
		f.Properties["duration"] = st.DurationLabel
		if st.Address != nil {
			f.Properties["address"] = *st.Address
		}
		fc.Append(f)
	}
	return fc
}
