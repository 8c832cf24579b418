package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pkordes/fleet-playback/internal/domain"
)

// PositionRepo defines the persistence operations for raw GPS fixes.
type PositionRepo interface {
	// Insert bulk-loads positions with COPY and returns the number written.
	Insert(ctx context.Context, positions []domain.Position) (int64, error)

	// ListByCar returns the fixes of carID recorded within [from, to],
	// oldest first. An empty window yields an empty slice, not an error.
	ListByCar(ctx context.Context, carID uuid.UUID, from, to time.Time) ([]domain.Position, error)
}

type pgPositionRepo struct {
	db db
}

// NewPositionRepo constructs a PositionRepo backed by the provided db connection.
func NewPositionRepo(db db) PositionRepo {
	return &pgPositionRepo{db: db}
}

var positionColumns = []string{"car_id", "latitude", "longitude", "speed_kmh", "fuel_level_l", "recorded_at"}

func (r *pgPositionRepo) Insert(ctx context.Context, positions []domain.Position) (int64, error) {
	if len(positions) == 0 {
		return 0, nil
	}
	n, err := r.db.CopyFrom(ctx, pgx.Identifier{"positions"}, positionColumns,
		pgx.CopyFromSlice(len(positions), func(i int) ([]any, error) {
			p := positions[i]
			return []any{p.CarID, p.Latitude, p.Longitude, p.SpeedKmh, p.FuelLevelL, p.RecordedAt}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("repo.PositionRepo.Insert: %w", err)
	}
	return n, nil
}

func (r *pgPositionRepo) ListByCar(ctx context.Context, carID uuid.UUID, from, to time.Time) ([]domain.Position, error) {
	const q = `
		SELECT car_id, latitude, longitude, speed_kmh, fuel_level_l, recorded_at
		FROM positions
		WHERE car_id = @car_id
		  AND recorded_at BETWEEN @from AND @to
		ORDER BY recorded_at, id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"car_id": carID, "from": from, "to": to})
	if err != nil {
		return nil, fmt.Errorf("repo.PositionRepo.ListByCar: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Position, error) {
		var p domain.Position
		err := row.Scan(&p.CarID, &p.Latitude, &p.Longitude, &p.SpeedKmh, &p.FuelLevelL, &p.RecordedAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("repo.PositionRepo.ListByCar: scan: %w", err)
	}
	return out, nil
}
