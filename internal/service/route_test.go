package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/fleet-playback/internal/domain"
	"github.com/pkordes/fleet-playback/internal/repo"
	"github.com/pkordes/fleet-playback/internal/service"
)

// ---- mock repos ------------------------------------------------------------

// mockTripRepo is a hand-written test double for repo.TripRepo.
type mockTripRepo struct {
	create  func(ctx context.Context, trip domain.Trip) (domain.Trip, error)
	getByID func(ctx context.Context, id uuid.UUID) (domain.Trip, error)
}

func (m *mockTripRepo) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	return m.create(ctx, trip)
}
func (m *mockTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	return m.getByID(ctx, id)
}

// mockPositionRepo is a hand-written test double for repo.PositionRepo.
type mockPositionRepo struct {
	insert    func(ctx context.Context, positions []domain.Position) (int64, error)
	listByCar func(ctx context.Context, carID uuid.UUID, from, to time.Time) ([]domain.Position, error)
}

func (m *mockPositionRepo) Insert(ctx context.Context, positions []domain.Position) (int64, error) {
	return m.insert(ctx, positions)
}
func (m *mockPositionRepo) ListByCar(ctx context.Context, carID uuid.UUID, from, to time.Time) ([]domain.Position, error) {
	return m.listByCar(ctx, carID, from, to)
}

// mockStoredRouteRepo is a hand-written test double for repo.StoredRouteRepo.
type mockStoredRouteRepo struct {
	getByTripID func(ctx context.Context, tripID uuid.UUID) (domain.StoredRoute, error)
	upsert      func(ctx context.Context, route domain.StoredRoute) (domain.StoredRoute, error)
}

func (m *mockStoredRouteRepo) GetByTripID(ctx context.Context, tripID uuid.UUID) (domain.StoredRoute, error) {
	return m.getByTripID(ctx, tripID)
}
func (m *mockStoredRouteRepo) Upsert(ctx context.Context, route domain.StoredRoute) (domain.StoredRoute, error) {
	return m.upsert(ctx, route)
}

// compile-time checks: mocks must satisfy the repo interfaces.
var (
	_ repo.TripRepo        = (*mockTripRepo)(nil)
	_ repo.PositionRepo    = (*mockPositionRepo)(nil)
	_ repo.StoredRouteRepo = (*mockStoredRouteRepo)(nil)
)

// ---- helpers ---------------------------------------------------------------

var day = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// drivingPositions returns a short drive with one 10-minute halt in the middle.
func drivingPositions(carID uuid.UUID) []domain.Position {
	speed := func(v float64) *float64 { return &v }
	at := func(min int) time.Time { return day.Add(8*time.Hour + time.Duration(min)*time.Minute) }
	return []domain.Position{
		{CarID: carID, Latitude: 52.5000, Longitude: 13.4000, SpeedKmh: speed(40), FuelLevelL: speed(50), RecordedAt: at(0)},
		{CarID: carID, Latitude: 52.5100, Longitude: 13.4000, SpeedKmh: speed(55), FuelLevelL: speed(49.5), RecordedAt: at(2)},
		{CarID: carID, Latitude: 52.5200, Longitude: 13.4000, SpeedKmh: speed(0), RecordedAt: at(4)},
		{CarID: carID, Latitude: 52.5201, Longitude: 13.4001, SpeedKmh: speed(0), RecordedAt: at(9)},
		{CarID: carID, Latitude: 52.5200, Longitude: 13.4002, SpeedKmh: speed(0), FuelLevelL: speed(60), RecordedAt: at(14)},
		{CarID: carID, Latitude: 52.5300, Longitude: 13.4000, SpeedKmh: speed(62), FuelLevelL: speed(59), RecordedAt: at(16)},
	}
}

func newRouteService(trips repo.TripRepo, positions repo.PositionRepo, stored repo.StoredRouteRepo) *service.RouteService {
	return service.NewRouteService(trips, positions, stored, service.RouteServiceOptions{})
}

// ---- RouteByDateRange ------------------------------------------------------

func TestRouteService_RouteByDateRange_OK(t *testing.T) {
	carID := uuid.New()
	svc := newRouteService(nil, &mockPositionRepo{
		listByCar: func(_ context.Context, id uuid.UUID, from, to time.Time) ([]domain.Position, error) {
			assert.Equal(t, carID, id)
			assert.Equal(t, day, from)
			assert.Equal(t, day.Add(24*time.Hour-time.Second), to)
			return drivingPositions(carID), nil
		},
	}, nil)

	got, err := svc.RouteByDateRange(context.Background(), carID, "2024/03/01 00:00:00", "2024/03/01 23:59:59")

	require.NoError(t, err)
	assert.Equal(t, domain.OriginFetched, got.Origin)
	require.Len(t, got.Coordinates, 6)
	assert.Equal(t, "2024/03/01 08:00:00", got.Coordinates[0].Timestamp)
	require.Len(t, got.Stops, 1)
	assert.Equal(t, "08:04", got.Stops[0].FromLabel)
	assert.Equal(t, "08:14", got.Stops[0].ToLabel)
	assert.Equal(t, "10m", got.Stops[0].DurationLabel)

	sum := got.TripSummary
	require.NotNil(t, sum)
	assert.Equal(t, 1, *sum.NumberOfStops)
	assert.Equal(t, 10*time.Minute, *sum.TotalIdleTime)
	assert.Equal(t, 6*time.Minute, *sum.TotalActiveTime)
	assert.Equal(t, 62.0, *sum.MaxSpeed)
	assert.InDelta(t, 1.5, *sum.TotalFuelConsumption, 1e-9, "refuel must not count as consumption")
	assert.InDelta(t, 3.34, *sum.TotalMileage, 0.05)
	assert.NotNil(t, sum.AvgSpeed)
}

func TestRouteService_RouteByDateRange_EmptyWindow(t *testing.T) {
	svc := newRouteService(nil, &mockPositionRepo{
		listByCar: func(context.Context, uuid.UUID, time.Time, time.Time) ([]domain.Position, error) {
			return nil, nil
		},
	}, nil)

	got, err := svc.RouteByDateRange(context.Background(), uuid.New(), "2024/03/01 00:00:00", "2024/03/01 23:59:59")

	require.NoError(t, err)
	assert.Empty(t, got.Coordinates)
	assert.Nil(t, got.TripSummary)
}

func TestRouteService_RouteByDateRange_Validation(t *testing.T) {
	svc := newRouteService(nil, &mockPositionRepo{}, nil)

	_, err := svc.RouteByDateRange(context.Background(), uuid.Nil, "2024/03/01 00:00:00", "2024/03/01 23:59:59")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.RouteByDateRange(context.Background(), uuid.New(), "yesterday", "2024/03/01 23:59:59")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.RouteByDateRange(context.Background(), uuid.New(), "2024/03/02 00:00:00", "2024/03/01 23:59:59")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRouteService_RouteByDateRange_RepoError(t *testing.T) {
	svc := newRouteService(nil, &mockPositionRepo{
		listByCar: func(context.Context, uuid.UUID, time.Time, time.Time) ([]domain.Position, error) {
			return nil, errors.New("connection reset")
		},
	}, nil)

	_, err := svc.RouteByDateRange(context.Background(), uuid.New(), "2024/03/01 00:00:00", "2024/03/01 23:59:59")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "service.RouteService.RouteByDateRange")
}

func TestRouteService_UsesConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	carID := uuid.New()
	var gotFrom time.Time
	svc := service.NewRouteService(nil, &mockPositionRepo{
		listByCar: func(_ context.Context, _ uuid.UUID, from, _ time.Time) ([]domain.Position, error) {
			gotFrom = from
			return []domain.Position{{CarID: carID, Latitude: 1, Longitude: 1, RecordedAt: day.Add(7 * time.Hour)}}, nil
		},
	}, nil, service.RouteServiceOptions{Location: loc})

	got, err := svc.RouteByDateRange(context.Background(), carID, "2024/03/01 08:00:00", "2024/03/01 09:00:00")

	require.NoError(t, err)
	assert.Equal(t, day.Add(7*time.Hour), gotFrom.UTC())
	assert.Equal(t, "2024/03/01 08:00:00", got.Coordinates[0].Timestamp)
}

// ---- StoredRoute -----------------------------------------------------------

func TestRouteService_StoredRoute_OK(t *testing.T) {
	tripID := uuid.New()
	svc := newRouteService(nil, nil, &mockStoredRouteRepo{
		getByTripID: func(_ context.Context, id uuid.UUID) (domain.StoredRoute, error) {
			return domain.StoredRoute{
				TripID:      id,
				From:        day,
				To:          day.Add(time.Hour),
				Coordinates: []domain.Coordinate{{Latitude: 1, Longitude: 2}},
			}, nil
		},
	})

	got, err := svc.StoredRoute(context.Background(), tripID)

	require.NoError(t, err)
	assert.Equal(t, domain.OriginStored, got.Origin)
	assert.Equal(t, tripID, got.TripID)
	assert.Equal(t, "2024/03/01 00:00:00", got.From)
	assert.Equal(t, "2024/03/01 01:00:00", got.To)
}

func TestRouteService_StoredRoute_NotFound(t *testing.T) {
	svc := newRouteService(nil, nil, &mockStoredRouteRepo{
		getByTripID: func(context.Context, uuid.UUID) (domain.StoredRoute, error) {
			return domain.StoredRoute{}, domain.ErrNotFound
		},
	})

	_, err := svc.StoredRoute(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ---- StoreRoute ------------------------------------------------------------

func TestRouteService_StoreRoute_OK(t *testing.T) {
	tripID, carID := uuid.New(), uuid.New()
	var saved domain.StoredRoute

	svc := newRouteService(
		&mockTripRepo{
			getByID: func(_ context.Context, id uuid.UUID) (domain.Trip, error) {
				return domain.Trip{ID: id, CarID: carID}, nil
			},
		},
		&mockPositionRepo{
			listByCar: func(_ context.Context, id uuid.UUID, _, _ time.Time) ([]domain.Position, error) {
				assert.Equal(t, carID, id, "positions must be looked up by the trip's car")
				return drivingPositions(carID), nil
			},
		},
		&mockStoredRouteRepo{
			upsert: func(_ context.Context, r domain.StoredRoute) (domain.StoredRoute, error) {
				saved = r
				r.StoredAt = time.Now()
				return r, nil
			},
		},
	)

	got, err := svc.StoreRoute(context.Background(), tripID, "2024/03/01 08:00:00", "2024/03/01 09:00:00")

	require.NoError(t, err)
	assert.Equal(t, tripID, saved.TripID)
	assert.Equal(t, carID, saved.CarID)
	assert.Len(t, saved.Coordinates, 6)
	assert.Len(t, saved.Stops, 1)
	assert.Equal(t, domain.OriginStored, got.Origin)
	assert.Equal(t, "2024/03/01 08:00:00", got.From)
	assert.Len(t, got.Coordinates, 6)
}

func TestRouteService_StoreRoute_TripNotFound(t *testing.T) {
	svc := newRouteService(
		&mockTripRepo{
			getByID: func(context.Context, uuid.UUID) (domain.Trip, error) {
				return domain.Trip{}, domain.ErrNotFound
			},
		},
		&mockPositionRepo{},
		&mockStoredRouteRepo{},
	)

	_, err := svc.StoreRoute(context.Background(), uuid.New(), "2024/03/01 08:00:00", "2024/03/01 09:00:00")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRouteService_StoreRoute_NoPositions(t *testing.T) {
	svc := newRouteService(
		&mockTripRepo{
			getByID: func(_ context.Context, id uuid.UUID) (domain.Trip, error) {
				return domain.Trip{ID: id, CarID: uuid.New()}, nil
			},
		},
		&mockPositionRepo{
			listByCar: func(context.Context, uuid.UUID, time.Time, time.Time) ([]domain.Position, error) {
				return nil, nil
			},
		},
		&mockStoredRouteRepo{},
	)

	_, err := svc.StoreRoute(context.Background(), uuid.New(), "2024/03/01 08:00:00", "2024/03/01 09:00:00")

	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "no positions")
}
