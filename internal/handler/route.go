package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/fleet-playback/internal/routedata"
)

// GetStoredRoute handles GET /api/routes/trips/{tripId}.
func (s *Server) GetStoredRoute(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathUUID(r, "tripId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := s.routes.StoredRoute(r.Context(), tripID)
	if err != nil {
		s.fail(w, r, err, "no stored route for this trip")
		return
	}
	writeJSON(w, http.StatusOK, routedata.NewResponse(snap))
}

// GetRouteByDateRange handles GET /api/routes/cars/{carId}?from=&to=.
// A window without positions answers 200 with no coordinates.
func (s *Server) GetRouteByDateRange(w http.ResponseWriter, r *http.Request) {
	carID, err := pathUUID(r, "carId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, to, err := window(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := s.routes.RouteByDateRange(r.Context(), carID, from, to)
	if err != nil {
		s.fail(w, r, err, "car not found")
		return
	}
	writeJSON(w, http.StatusOK, routedata.NewResponse(snap))
}

// StoreRoute handles GET /api/routes/trips/{tripId}/store?from=&to=.
func (s *Server) StoreRoute(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathUUID(r, "tripId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, to, err := window(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := s.routes.StoreRoute(r.Context(), tripID, from, to)
	if err != nil {
		s.fail(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, routedata.NewResponse(snap))
}

// --- parameter binding ------------------------------------------------------

// pathUUID binds a "simple" style uuid path parameter the way generated
// oapi-codegen servers do.
func pathUUID(r *http.Request, name string) (openapi_types.UUID, error) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid format for parameter %s: %w", name, err)
	}
	return id, nil
}

// window binds the required from/to query parameters. Their format is
// checked by the service.
func window(r *http.Request) (from, to string, err error) {
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "from", q, &from); err != nil {
		return "", "", err
	}
	if err := runtime.BindQueryParameter("form", true, true, "to", q, &to); err != nil {
		return "", "", err
	}
	return from, to, nil
}
