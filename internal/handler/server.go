// Package handler implements the HTTP surface of the route data service.
// All handlers are methods on Server; Handler() registers them on a chi router.
// Methods are split into files by concern (health.go, route.go, export.go)
// but share the same Server struct so they can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/fleet-playback/internal/domain"
)

// RouteServicer defines the route operations the handlers depend on.
// Declared here, in the consumer, so tests can inject a mock without a
// database.
type RouteServicer interface {
	StoredRoute(ctx context.Context, tripID uuid.UUID) (domain.RouteSnapshot, error)
	RouteByDateRange(ctx context.Context, carID uuid.UUID, from, to string) (domain.RouteSnapshot, error)
	StoreRoute(ctx context.Context, tripID uuid.UUID, from, to string) (domain.RouteSnapshot, error)
}

// Server serves every API endpoint.
type Server struct {
	routes RouteServicer
	log    *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
// A nil logger falls back to slog.Default().
func NewServer(routes RouteServicer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{routes: routes, log: log}
}

// Handler returns a chi router with every endpoint registered.
// Mount it under "/" in main.go after the shared middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Route("/api/routes", func(r chi.Router) {
		r.Get("/trips/{tripId}", s.GetStoredRoute)
		r.Get("/trips/{tripId}/store", s.StoreRoute)
		r.Get("/trips/{tripId}/export", s.ExportStoredRoute)
		r.Get("/cars/{carId}", s.GetRouteByDateRange)
	})
	return r
}
