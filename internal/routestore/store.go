// Package routestore reconciles the route shown for a trip between the
// persisted copy on the route data service and ad-hoc date range fetches.
package routestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/pkordes/fleet-playback/internal/domain"
	"github.com/pkordes/fleet-playback/internal/routedata"
)

// State is the reconciliation state of the store.
type State int

const (
	NoRoute State = iota
	StoredFound
	Fetched
	Editing
)

func (s State) String() string {
	switch s {
	case NoRoute:
		return "NO_ROUTE"
	case StoredFound:
		return "STORED_FOUND"
	case Fetched:
		return "FETCHED"
	case Editing:
		return "EDITING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const msgNoData = "No route data found for the selected period"

// RouteDataService is the subset of the route data client the store needs.
type RouteDataService interface {
	StoredRouteByTrip(ctx context.Context, tripID uuid.UUID) (routedata.Response, error)
	RouteByDateRange(ctx context.Context, carID uuid.UUID, from, to string) (routedata.Response, error)
	StoreRoute(ctx context.Context, tripID uuid.UUID, from, to string) (routedata.Response, error)
}

// Store holds at most one route snapshot.
//
// Concurrent calls are last-write-wins: starting any load cancels the one
// in flight, and the superseded caller gets domain.ErrSuperseded without
// touching state. A failed load never changes the snapshot or
// HasStoredRoute; it only sets ErrorMessage.
type Store struct {
	mu       sync.Mutex
	notifyMu sync.Mutex

	svc RouteDataService
	log *slog.Logger

	state      State
	beforeEdit State
	tripID     uuid.UUID
	snapshot   *domain.RouteSnapshot
	hasStored  bool
	errMsg     string
	noData     bool

	lastID domain.SnapshotID
	seq    uint64
	cancel context.CancelFunc
	closed bool

	listeners map[int]func(*domain.RouteSnapshot)
	nextID    int
}

// New returns an empty Store in state NoRoute.
func New(svc RouteDataService, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		svc:       svc,
		log:       log,
		listeners: make(map[int]func(*domain.RouteSnapshot)),
	}
}

// OnChange registers fn to be called after every snapshot identity change,
// with nil when the snapshot is cleared. fn runs outside the store's lock
// but must not call back into the Store.
func (s *Store) OnChange(fn func(*domain.RouteSnapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// CheckStoredRoute loads the persisted route for a trip. Moving to a
// different trip first discards the previous trip's snapshot. When the
// service has no usable stored route the store ends in NoRoute with no
// snapshot and a nil error; a service failure keeps whatever is shown.
func (s *Store) CheckStoredRoute(ctx context.Context, tripID uuid.UUID) error {
	if tripID == uuid.Nil {
		return s.rejectInput(fmt.Errorf("routestore.Store.CheckStoredRoute: %w: trip id is required", domain.ErrValidation))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	cleared := false
	if tripID != s.tripID {
		s.tripID = tripID
		s.hasStored = false
		s.state = NoRoute
		s.noData = false
		if s.snapshot != nil {
			s.snapshot = nil
			cleared = true
		}
	}
	s.errMsg = ""
	ctx, seq := s.beginLocked(ctx)
	s.commit(cleared)

	resp, err := s.svc.StoredRouteByTrip(ctx, tripID)
	var snap domain.RouteSnapshot
	if err == nil {
		snap, err = resp.Snapshot()
	}

	s.mu.Lock()
	if !s.finishLocked(seq) {
		s.mu.Unlock()
		return fmt.Errorf("routestore.Store.CheckStoredRoute: %w", domain.ErrSuperseded)
	}

	switch {
	case err == nil:
		snap.TripID = tripID
		s.install(snap, domain.OriginStored)
		s.hasStored = true
		s.state = StoredFound
		s.log.Info("stored route loaded", "trip_id", tripID, "points", snap.Len(), "snapshot", uint64(s.snapshot.ID))
		s.commit(true)
		return nil

	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrDataQuality):
		changed := s.snapshot != nil
		s.snapshot = nil
		s.hasStored = false
		s.state = NoRoute
		s.log.Info("no stored route", "trip_id", tripID, "reason", err)
		s.commit(changed)
		return nil

	default:
		wrapped := fmt.Errorf("routestore.Store.CheckStoredRoute: %w", err)
		s.failLocked(wrapped)
		return wrapped
	}
}

// FetchRouteDataByDate loads the raw track of a car over the query window.
// On success the snapshot is replaced with Origin FETCHED; HasStoredRoute
// is left as it was.
func (s *Store) FetchRouteDataByDate(ctx context.Context, carID uuid.UUID, q domain.DateRangeQuery) error {
	if carID == uuid.Nil {
		return s.rejectInput(fmt.Errorf("routestore.Store.FetchRouteDataByDate: %w: car id is required", domain.ErrValidation))
	}
	from, to, err := q.Window()
	if err != nil {
		return s.rejectInput(fmt.Errorf("routestore.Store.FetchRouteDataByDate: %w", err))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	ctx, seq := s.beginLocked(ctx)
	s.mu.Unlock()

	resp, err := s.svc.RouteByDateRange(ctx, carID, from, to)
	var snap domain.RouteSnapshot
	if err == nil {
		snap, err = resp.Snapshot()
	}

	s.mu.Lock()
	if !s.finishLocked(seq) {
		s.mu.Unlock()
		return fmt.Errorf("routestore.Store.FetchRouteDataByDate: %w", domain.ErrSuperseded)
	}
	if err != nil {
		wrapped := fmt.Errorf("routestore.Store.FetchRouteDataByDate: %w", err)
		s.failLocked(wrapped)
		return wrapped
	}

	snap.CarID = carID
	snap.TripID = s.tripID
	if snap.From == "" {
		snap.From, snap.To = from, to
	}
	s.install(snap, domain.OriginFetched)
	s.state = Fetched
	s.log.Info("route fetched", "car_id", carID, "from", from, "to", to, "points", snap.Len(), "snapshot", uint64(s.snapshot.ID))
	s.commit(true)
	return nil
}

// StoreRouteData asks the service to persist the trip's route over the
// query window and shows what was stored.
func (s *Store) StoreRouteData(ctx context.Context, tripID uuid.UUID, q domain.DateRangeQuery) error {
	if tripID == uuid.Nil {
		return s.rejectInput(fmt.Errorf("routestore.Store.StoreRouteData: %w: trip id is required", domain.ErrValidation))
	}
	from, to, err := q.Window()
	if err != nil {
		return s.rejectInput(fmt.Errorf("routestore.Store.StoreRouteData: %w", err))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	ctx, seq := s.beginLocked(ctx)
	s.mu.Unlock()

	resp, err := s.svc.StoreRoute(ctx, tripID, from, to)
	var snap domain.RouteSnapshot
	if err == nil {
		snap, err = resp.Snapshot()
	}

	s.mu.Lock()
	if !s.finishLocked(seq) {
		s.mu.Unlock()
		return fmt.Errorf("routestore.Store.StoreRouteData: %w", domain.ErrSuperseded)
	}
	if err != nil {
		wrapped := fmt.Errorf("routestore.Store.StoreRouteData: %w", err)
		s.failLocked(wrapped)
		return wrapped
	}

	snap.TripID = tripID
	if snap.From == "" {
		snap.From, snap.To = from, to
	}
	s.tripID = tripID
	s.install(snap, domain.OriginStored)
	s.hasStored = true
	s.state = StoredFound
	s.log.Info("route stored", "trip_id", tripID, "from", from, "to", to, "points", snap.Len(), "snapshot", uint64(s.snapshot.ID))
	s.commit(true)
	return nil
}

// EnterEditing switches to Editing so a new window can be chosen.
// The snapshot is untouched.
func (s *Store) EnterEditing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Editing {
		return
	}
	s.beforeEdit = s.state
	s.state = Editing
}

// CancelEditing leaves Editing and returns to the state it was entered from.
func (s *Store) CancelEditing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Editing {
		return
	}
	s.state = s.beforeEdit
}

// Snapshot returns a copy of the current snapshot, if any.
func (s *Store) Snapshot() (domain.RouteSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return domain.RouteSnapshot{}, false
	}
	return *s.snapshot, true
}

// State returns the reconciliation state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HasStoredRoute reports whether the current trip has a persisted route.
func (s *Store) HasStoredRoute() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasStored
}

// ErrorMessage is the user-facing text of the last failure, or "".
func (s *Store) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// NoData reports whether the last load came back without usable points.
func (s *Store) NoData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.noData
}

// Busy reports whether a load is in flight.
func (s *Store) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Close cancels any load in flight and drops listeners.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	clear(s.listeners)
}

// beginLocked cancels the load in flight and starts a new one.
func (s *Store) beginLocked(parent context.Context) (context.Context, uint64) {
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.seq++
	s.cancel = cancel
	return ctx, s.seq
}

// finishLocked reports whether seq is still the latest load and, if so,
// releases its context.
func (s *Store) finishLocked(seq uint64) bool {
	if s.closed || seq != s.seq {
		return false
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return true
}

func (s *Store) install(snap domain.RouteSnapshot, origin domain.SnapshotOrigin) {
	s.lastID++
	snap.ID = s.lastID
	snap.Origin = origin
	s.snapshot = &snap
	s.errMsg = ""
	s.noData = false
}

// failLocked records a failed load and releases mu.
func (s *Store) failLocked(err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.log.Info("route load canceled", "error", err)
		s.mu.Unlock()
		return
	}
	s.errMsg = userMessage(err)
	if errors.Is(err, domain.ErrDataQuality) {
		s.noData = true
	}
	s.log.Warn("route load failed", "error", err)
	s.mu.Unlock()
}

func (s *Store) rejectInput(err error) error {
	s.mu.Lock()
	s.errMsg = userMessage(err)
	s.mu.Unlock()
	return err
}

// commit must be called with mu held. It releases mu and, when changed is
// true, hands the current snapshot to every listener.
func (s *Store) commit(changed bool) {
	if !changed {
		s.mu.Unlock()
		return
	}
	var snap *domain.RouteSnapshot
	if s.snapshot != nil {
		cp := *s.snapshot
		snap = &cp
	}
	fns := make([]func(*domain.RouteSnapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// userMessage maps an error to the text shown next to the route controls.
func userMessage(err error) string {
	var apiErr *routedata.APIError
	switch {
	case errors.Is(err, domain.ErrValidation):
		msg := err.Error()
		if i := strings.Index(msg, domain.ErrValidation.Error()+": "); i >= 0 {
			return msg[i+len(domain.ErrValidation.Error())+2:]
		}
		return msg
	case errors.Is(err, domain.ErrDataQuality):
		return msgNoData
	case errors.Is(err, domain.ErrNotFound):
		return "No stored route for this trip"
	case errors.As(err, &apiErr):
		return "Route service error: " + apiErr.Message
	default:
		return "Route service unavailable, please try again"
	}
}
