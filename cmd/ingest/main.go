// Package main loads a trip and its car's GPS fixes into the route data
// service's database. Input is a JSON document on stdin or in -file:
//
//	{"trip": {"carId": "...", "name": "...", "startedAt": "2024-03-01T06:00:00Z"},
//	 "positions": [{"lat": 52.5, "lng": 13.4, "speedKmh": 40, "recordedAt": "..."}]}
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/pkordes/fleet-playback/internal/config"
	"github.com/pkordes/fleet-playback/internal/repo"
)

func main() {
	_ = godotenv.Load()

	file := flag.String("file", "-", "batch file, - for stdin")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(context.Background(), cfg.DatabaseURL, *file, logger); err != nil {
		logger.Error("ingest failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dsn, file string, log *slog.Logger) error {
	var in io.Reader = os.Stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	trip, positions, err := readBatch(in)
	if err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("open pool: %w", err)
	}
	defer pool.Close()

	// Trip and fixes land together or not at all.
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created, err := repo.NewTripRepo(tx).Create(ctx, trip)
	if err != nil {
		return err
	}
	n, err := repo.NewPositionRepo(tx).Insert(ctx, positions)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.Info("batch ingested", "trip_id", created.ID, "car_id", created.CarID, "positions", n)
	fmt.Println(created.ID)
	return nil
}
