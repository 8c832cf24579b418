// Package playback wires a route store, a timeline and a map together for
// one viewer. A Session is the single owner of the loaded snapshot and the
// playback cursor.
package playback

import (
	"log/slog"
	"sync"

	"github.com/pkordes/fleet-playback/internal/domain"
	"github.com/pkordes/fleet-playback/internal/mapsync"
	"github.com/pkordes/fleet-playback/internal/routestats"
	"github.com/pkordes/fleet-playback/internal/routestore"
	"github.com/pkordes/fleet-playback/internal/timeline"
)

// Session propagates store changes to the timeline and the map, and
// timeline changes to the map.
type Session struct {
	Store    *routestore.Store
	Timeline *timeline.Controller
	Map      *mapsync.MapSync

	log *slog.Logger

	mu       sync.Mutex
	snapshot *domain.RouteSnapshot
	frames   []func(domain.PlaybackState, domain.Coordinate)

	unsubStore    func()
	unsubTimeline func()
	closeOnce     sync.Once
}

// NewSession subscribes to store and tl. Session.Close also closes both.
func NewSession(store *routestore.Store, tl *timeline.Controller, m *mapsync.MapSync, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	s := &Session{Store: store, Timeline: tl, Map: m, log: log}
	s.unsubStore = store.OnChange(s.onSnapshot)
	s.unsubTimeline = tl.OnChange(s.onPlayback)
	return s
}

// OnFrame registers fn to receive the cursor state and the vehicle position
// each time the cursor changes on a loaded route.
func (s *Session) OnFrame(fn func(domain.PlaybackState, domain.Coordinate)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, fn)
}

// Stats derives the statistics panel for the loaded route.
func (s *Session) Stats() (routestats.Stats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return routestats.Stats{}, false
	}
	return routestats.Derive(*s.snapshot), true
}

// Current returns the vehicle position under the cursor.
func (s *Session) Current() (domain.Coordinate, bool) {
	st := s.Timeline.State()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil || st.Snapshot != s.snapshot.ID || st.CurrentIndex >= s.snapshot.Len() {
		return domain.Coordinate{}, false
	}
	return s.snapshot.Coordinates[st.CurrentIndex], true
}

// Close stops playback, cancels loads in flight and detaches listeners.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.unsubStore()
		s.unsubTimeline()
		s.Timeline.Close()
		s.Store.Close()
	})
}

// onSnapshot publishes snap before the timeline is reloaded. Until Load
// clears the old timer, its ticks still carry the old identity and are
// dropped by onPlayback.
func (s *Session) onSnapshot(snap *domain.RouteSnapshot) {
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()

	// Draw first so the reset below only moves the vehicle.
	s.Map.Render(snap, 0)

	if snap == nil {
		s.Timeline.Load(0, 0)
		return
	}
	s.Timeline.Load(snap.ID, snap.Len())
	s.log.Debug("session loaded snapshot", "snapshot", uint64(snap.ID), "origin", snap.Origin, "points", snap.Len())
}

func (s *Session) onPlayback(st domain.PlaybackState) {
	s.mu.Lock()
	snap := s.snapshot
	frames := s.frames
	s.mu.Unlock()

	if snap == nil || st.Snapshot != snap.ID || st.CurrentIndex >= snap.Len() {
		return
	}
	s.Map.MoveTo(st.CurrentIndex)
	for _, fn := range frames {
		fn(st, snap.Coordinates[st.CurrentIndex])
	}
}
