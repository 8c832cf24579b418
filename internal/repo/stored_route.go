package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pkordes/fleet-playback/internal/domain"
)

// StoredRouteRepo persists one assembled route per trip. Coordinates, stops
// and the summary are stored as JSONB.
type StoredRouteRepo interface {
	// GetByTripID returns domain.ErrNotFound when the trip has no stored route.
	GetByTripID(ctx context.Context, tripID uuid.UUID) (domain.StoredRoute, error)

	// Upsert replaces the stored route of route.TripID and returns the row as saved.
	Upsert(ctx context.Context, route domain.StoredRoute) (domain.StoredRoute, error)
}

type pgStoredRouteRepo struct {
	db db
}

// NewStoredRouteRepo constructs a StoredRouteRepo backed by the provided db connection.
func NewStoredRouteRepo(db db) StoredRouteRepo {
	return &pgStoredRouteRepo{db: db}
}

const storedRouteColumns = `trip_id, car_id, from_ts, to_ts, coordinates, stops, summary, stored_at`

func (r *pgStoredRouteRepo) GetByTripID(ctx context.Context, tripID uuid.UUID) (domain.StoredRoute, error) {
	q := `SELECT ` + storedRouteColumns + ` FROM stored_routes WHERE trip_id = @trip_id`

	result, err := scanStoredRoute(r.db.QueryRow(ctx, q, pgx.NamedArgs{"trip_id": tripID}))
	if err != nil {
		return domain.StoredRoute{}, fmt.Errorf("repo.StoredRouteRepo.GetByTripID: %w", err)
	}
	return result, nil
}

func (r *pgStoredRouteRepo) Upsert(ctx context.Context, route domain.StoredRoute) (domain.StoredRoute, error) {
	q := `
		INSERT INTO stored_routes (trip_id, car_id, from_ts, to_ts, coordinates, stops, summary)
		VALUES (@trip_id, @car_id, @from_ts, @to_ts, @coordinates, @stops, @summary)
		ON CONFLICT (trip_id) DO UPDATE
		SET car_id      = EXCLUDED.car_id,
		    from_ts     = EXCLUDED.from_ts,
		    to_ts       = EXCLUDED.to_ts,
		    coordinates = EXCLUDED.coordinates,
		    stops       = EXCLUDED.stops,
		    summary     = EXCLUDED.summary,
		    stored_at   = now()
		RETURNING ` + storedRouteColumns

	coords := route.Coordinates
	if coords == nil {
		coords = []domain.Coordinate{}
	}
	stops := route.Stops
	if stops == nil {
		stops = []domain.Stop{}
	}

	args := pgx.NamedArgs{
		"trip_id":     route.TripID,
		"car_id":      route.CarID,
		"from_ts":     route.From,
		"to_ts":       route.To,
		"coordinates": coords,
		"stops":       stops,
		"summary":     route.Summary, // nil becomes NULL
	}

	result, err := scanStoredRoute(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.StoredRoute{}, fmt.Errorf("repo.StoredRouteRepo.Upsert: %w", err)
	}
	return result, nil
}

// scanStoredRoute relies on pgx decoding JSONB straight into the Go types.
func scanStoredRoute(s scanner) (domain.StoredRoute, error) {
	var sr domain.StoredRoute
	err := s.Scan(&sr.TripID, &sr.CarID, &sr.From, &sr.To, &sr.Coordinates, &sr.Stops, &sr.Summary, &sr.StoredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StoredRoute{}, domain.ErrNotFound
		}
		return domain.StoredRoute{}, err
	}
	return sr, nil
}
