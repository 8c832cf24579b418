// Package service contains the business logic of the route data service.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// No SQL lives here; services depend on repo interfaces.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/fleet-playback/internal/domain"
	"github.com/pkordes/fleet-playback/internal/repo"
)

// RouteService builds routes from raw positions and manages stored routes.
type RouteService struct {
	trips     repo.TripRepo
	positions repo.PositionRepo
	stored    repo.StoredRouteRepo

	loc   *time.Location
	stops StopConfig
	log   *slog.Logger
}

// RouteServiceOptions configures a RouteService. Zero values fall back to
// UTC, DefaultStopConfig and slog.Default.
type RouteServiceOptions struct {
	Location *time.Location
	Stops    StopConfig
	Logger   *slog.Logger
}

// NewRouteService constructs a RouteService backed by the provided repos.
func NewRouteService(trips repo.TripRepo, positions repo.PositionRepo, stored repo.StoredRouteRepo, opts RouteServiceOptions) *RouteService {
	s := &RouteService{
		trips:     trips,
		positions: positions,
		stored:    stored,
		loc:       opts.Location,
		stops:     opts.Stops,
		log:       opts.Logger,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.stops.RadiusM <= 0 {
		s.stops.RadiusM = DefaultStopConfig.RadiusM
	}
	if s.stops.MinDwell <= 0 {
		s.stops.MinDwell = DefaultStopConfig.MinDwell
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// StoredRoute returns the route persisted for tripID.
// Returns domain.ErrNotFound when the trip has none.
func (s *RouteService) StoredRoute(ctx context.Context, tripID uuid.UUID) (domain.RouteSnapshot, error) {
	if tripID == uuid.Nil {
		return domain.RouteSnapshot{}, fmt.Errorf("%w: trip id is required", domain.ErrValidation)
	}
	sr, err := s.stored.GetByTripID(ctx, tripID)
	if err != nil {
		return domain.RouteSnapshot{}, fmt.Errorf("service.RouteService.StoredRoute: %w", err)
	}
	return s.snapshotOf(sr), nil
}

// RouteByDateRange assembles the track of carID between from and to
// (domain.WireLayout). A window without positions yields an empty snapshot.
func (s *RouteService) RouteByDateRange(ctx context.Context, carID uuid.UUID, from, to string) (domain.RouteSnapshot, error) {
	if carID == uuid.Nil {
		return domain.RouteSnapshot{}, fmt.Errorf("%w: car id is required", domain.ErrValidation)
	}
	start, end, err := domain.ParseWindow(from, to, s.loc)
	if err != nil {
		return domain.RouteSnapshot{}, err
	}

	positions, err := s.positions.ListByCar(ctx, carID, start, end)
	if err != nil {
		return domain.RouteSnapshot{}, fmt.Errorf("service.RouteService.RouteByDateRange: %w", err)
	}

	t := buildTrack(positions, s.loc, s.stops)
	s.log.DebugContext(ctx, "route assembled", "car_id", carID, "positions", len(positions), "stops", len(t.stops))
	return domain.RouteSnapshot{
		CarID:       carID,
		From:        start.Format(domain.WireLayout),
		To:          end.Format(domain.WireLayout),
		Coordinates: t.coords,
		Stops:       t.stops,
		TripSummary: t.summary,
		Origin:      domain.OriginFetched,
	}, nil
}

// StoreRoute assembles the track of the trip's car over the window and
// persists it as the trip's stored route, replacing any previous one.
// Returns domain.ErrNotFound for an unknown trip and domain.ErrValidation
// when the window holds no positions.
func (s *RouteService) StoreRoute(ctx context.Context, tripID uuid.UUID, from, to string) (domain.RouteSnapshot, error) {
	if tripID == uuid.Nil {
		return domain.RouteSnapshot{}, fmt.Errorf("%w: trip id is required", domain.ErrValidation)
	}
	start, end, err := domain.ParseWindow(from, to, s.loc)
	if err != nil {
		return domain.RouteSnapshot{}, err
	}

	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return domain.RouteSnapshot{}, fmt.Errorf("service.RouteService.StoreRoute: %w", err)
	}

	positions, err := s.positions.ListByCar(ctx, trip.CarID, start, end)
	if err != nil {
		return domain.RouteSnapshot{}, fmt.Errorf("service.RouteService.StoreRoute: %w", err)
	}
	if len(positions) == 0 {
		return domain.RouteSnapshot{}, fmt.Errorf("%w: no positions recorded in the selected window", domain.ErrValidation)
	}

	t := buildTrack(positions, s.loc, s.stops)
	saved, err := s.stored.Upsert(ctx, domain.StoredRoute{
		TripID:      trip.ID,
		CarID:       trip.CarID,
		From:        start,
		To:          end,
		Coordinates: t.coords,
		Stops:       t.stops,
		Summary:     t.summary,
	})
	if err != nil {
		return domain.RouteSnapshot{}, fmt.Errorf("service.RouteService.StoreRoute: %w", err)
	}

	s.log.InfoContext(ctx, "route stored", "trip_id", trip.ID, "car_id", trip.CarID, "points", len(t.coords), "stops", len(t.stops))
	return s.snapshotOf(saved), nil
}

func (s *RouteService) snapshotOf(sr domain.StoredRoute) domain.RouteSnapshot {
	return domain.RouteSnapshot{
		TripID:      sr.TripID,
		CarID:       sr.CarID,
		From:        sr.From.In(s.loc).Format(domain.WireLayout),
		To:          sr.To.In(s.loc).Format(domain.WireLayout),
		Coordinates: sr.Coordinates,
		Stops:       sr.Stops,
		TripSummary: sr.Summary,
		Origin:      domain.OriginStored,
	}
}
