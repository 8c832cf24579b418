// Package main is a headless playback client for the route data service.
// It loads a trip's stored route (or a car's track over a window), plays it
// back on the timeline, and writes the resulting map layers as GeoJSON.
//
//	playback -trip <uuid>                       # stored route
//	playback -car <uuid> -from-date 2024-03-01  # raw track for a day
//	playback -trip <uuid> -car <uuid> -from-date 2024-03-01 -store
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/pkordes/fleet-playback/internal/config"
	"github.com/pkordes/fleet-playback/internal/domain"
	"github.com/pkordes/fleet-playback/internal/mapsync"
	"github.com/pkordes/fleet-playback/internal/playback"
	"github.com/pkordes/fleet-playback/internal/routedata"
	"github.com/pkordes/fleet-playback/internal/routestats"
	"github.com/pkordes/fleet-playback/internal/routestore"
	"github.com/pkordes/fleet-playback/internal/timeline"
)

type options struct {
	trip, car          string
	query              domain.DateRangeQuery
	store, fetch       bool
	play               bool
	speed              time.Duration
	out                string
	focusLat, focusLng float64
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.trip, "trip", "", "trip id whose stored route is loaded")
	flag.StringVar(&opts.car, "car", "", "car id whose track is fetched over the window")
	flag.StringVar(&opts.query.FromDate, "from-date", "", "window start date (YYYY-MM-DD)")
	flag.StringVar(&opts.query.ToDate, "to-date", "", "window end date (YYYY-MM-DD); defaults to -from-date")
	flag.StringVar(&opts.query.FromTime, "from-time", "", "window start time (HH:mm), default 00:00")
	flag.StringVar(&opts.query.ToTime, "to-time", "", "window end time (HH:mm), default 23:59:59")
	flag.BoolVar(&opts.fetch, "fetch", false, "fetch the raw track even when the trip has a stored route")
	flag.BoolVar(&opts.store, "store", false, "store the window as the trip's route")
	flag.BoolVar(&opts.play, "play", true, "play the route to the end before writing output")
	flag.DurationVar(&opts.speed, "speed", 0, "tick interval, overrides PLAYBACK_SPEED")
	flag.StringVar(&opts.out, "out", "-", "GeoJSON output file, - for stdout")
	flag.Float64Var(&opts.focusLat, "focus-lat", 0, "pan the map here after playback (with -focus-lng)")
	flag.Float64Var(&opts.focusLng, "focus-lng", 0, "pan the map here after playback (with -focus-lat)")
	flag.Parse()

	if opts.query.ToDate == "" {
		opts.query.ToDate = opts.query.FromDate
	}

	cfg, err := config.LoadPlayback()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}
	if opts.speed > 0 {
		cfg.Speed = opts.speed
	}

	// Logs go to stderr so stdout can carry the GeoJSON.
	logger := config.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Error("playback failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.PlaybackConfig, opts options, log *slog.Logger) error {
	tripID, err := parseID("trip", opts.trip)
	if err != nil {
		return err
	}
	carID, err := parseID("car", opts.car)
	if err != nil {
		return err
	}

	client, err := routedata.NewClient(cfg.RouteAPIURL,
		routedata.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		routedata.WithLogger(log),
	)
	if err != nil {
		return err
	}

	adapter := mapsync.NewGeoJSONAdapter()
	sess := playback.NewSession(
		routestore.New(client, log),
		timeline.New(timeline.WithSpeed(cfg.Speed), timeline.WithLogger(log)),
		mapsync.New(adapter, nil, log),
		log,
	)
	defer sess.Close()

	if err := load(ctx, sess.Store, tripID, carID, opts); err != nil {
		if msg := sess.Store.ErrorMessage(); msg != "" {
			return fmt.Errorf("%s: %w", msg, err)
		}
		return err
	}

	snap, ok := sess.Store.Snapshot()
	if !ok {
		return errors.New("no route to play")
	}
	logStats(log, sess.Store.State(), snap, sess)

	if opts.play {
		if err := playToEnd(ctx, sess, snap.Len(), log); err != nil {
			return err
		}
	}

	if opts.focusLat != 0 || opts.focusLng != 0 {
		sess.Map.Focus(mapsync.FocusCommand{At: mapsync.LatLng{Lat: opts.focusLat, Lng: opts.focusLng}})
	}

	return writeGeoJSON(opts.out, adapter)
}

// load drives the route store: stored route first, then the raw track when
// there is none (or -fetch), then an optional store.
func load(ctx context.Context, store *routestore.Store, tripID, carID uuid.UUID, opts options) error {
	if tripID != uuid.Nil {
		if err := store.CheckStoredRoute(ctx, tripID); err != nil {
			return err
		}
	}

	if opts.store {
		return store.StoreRouteData(ctx, tripID, opts.query)
	}

	if carID != uuid.Nil && (opts.fetch || !store.HasStoredRoute()) {
		store.EnterEditing()
		if err := store.FetchRouteDataByDate(ctx, carID, opts.query); err != nil {
			if store.NoData() {
				store.CancelEditing()
			}
			return err
		}
	}
	return nil
}

// playToEnd plays from the first point and returns once the timeline pauses
// itself on the last point, or ctx ends.
func playToEnd(ctx context.Context, sess *playback.Session, length int, log *slog.Logger) error {
	done := make(chan struct{})
	var once sync.Once

	sess.OnFrame(func(st domain.PlaybackState, at domain.Coordinate) {
		log.Debug("frame", "index", st.CurrentIndex, "lat", at.Latitude, "lng", at.Longitude, "timestamp", at.Timestamp)
		if !st.IsPlaying && st.CurrentIndex == length-1 {
			once.Do(func() { close(done) })
		}
	})

	sess.Timeline.Reset()
	if !sess.Timeline.Play() {
		log.Info("route too short to play", "points", length)
		return nil
	}
	log.Info("playback started", "points", length, "speed", sess.Timeline.State().Speed.String())

	select {
	case <-done:
		log.Info("playback finished", "points", length)
		return nil
	case <-ctx.Done():
		sess.Timeline.Pause()
		return ctx.Err()
	}
}

func logStats(log *slog.Logger, state routestore.State, snap domain.RouteSnapshot, sess *playback.Session) {
	st, ok := sess.Stats()
	if !ok {
		return
	}
	attrs := []any{
		"state", state.String(),
		"origin", snap.Origin,
		"from", snap.From,
		"to", snap.To,
		"points", st.TotalPoints,
		"distance_km", st.DistanceKm,
		"distance_source", st.DistanceSource,
		"stops", st.TotalStops,
	}
	if st.ActiveTime != nil {
		attrs = append(attrs, "active", routestats.FormatDuration(*st.ActiveTime))
	}
	if st.IdleTime != nil {
		attrs = append(attrs, "idle", routestats.FormatDuration(*st.IdleTime))
	}
	if st.MaxSpeed != nil {
		attrs = append(attrs, "max_speed_kmh", *st.MaxSpeed)
	}
	if st.AvgSpeed != nil {
		attrs = append(attrs, "avg_speed_kmh", *st.AvgSpeed)
	}
	if st.FuelConsumption != nil {
		attrs = append(attrs, "fuel_l", *st.FuelConsumption)
	}
	log.Info("route statistics", attrs...)
}

func writeGeoJSON(path string, adapter *mapsync.GeoJSONAdapter) error {
	b, err := json.MarshalIndent(adapter.FeatureCollection(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	b = append(b, '\n')
	if path == "-" {
		_, err = os.Stdout.Write(b)
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func parseID(name, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("-%s: %w", name, err)
	}
	return id, nil
}
