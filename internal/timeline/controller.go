// Package timeline drives the playback cursor over a loaded route: play,
// pause, scrub and speed changes on top of a single repeating timer.
package timeline

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pkordes/fleet-playback/internal/domain"
)

// DefaultSpeed is the tick interval used until SetSpeed is called.
const DefaultSpeed = 500 * time.Millisecond

// Mode is the coarse playback state.
type Mode int

const (
	Stopped Mode = iota
	Paused
	Playing
)

func (m Mode) String() string {
	switch m {
	case Stopped:
		return "stopped"
	case Paused:
		return "paused"
	case Playing:
		return "playing"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Controller owns the playback cursor for one route at a time.
// At most one timer is live; every tick carries the generation it was
// started with, and ticks from a torn-down timer are dropped.
//
// Listeners registered with OnChange run synchronously after each change
// and must not call back into the Controller.
type Controller struct {
	mu       sync.Mutex
	notifyMu sync.Mutex

	sched Scheduler
	log   *slog.Logger

	snapshot domain.SnapshotID
	length   int
	index    int
	playing  bool
	stopped  bool // true after Reset, until the cursor moves
	speed    time.Duration

	stopTimer func()
	gen       uint64
	closed    bool

	listeners map[int]func(domain.PlaybackState)
	nextID    int
}

// Option configures a Controller.
type Option func(*Controller)

// WithScheduler replaces the TickerScheduler, mainly for tests.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) { c.sched = s }
}

// WithSpeed sets the initial tick interval.
func WithSpeed(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.speed = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// New returns a Controller with no route loaded.
func New(opts ...Option) *Controller {
	c := &Controller{
		sched:     TickerScheduler{},
		log:       slog.Default(),
		speed:     DefaultSpeed,
		stopped:   true,
		listeners: make(map[int]func(domain.PlaybackState)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnChange registers fn to receive the state after every change.
func (c *Controller) OnChange(fn func(domain.PlaybackState)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Load points the controller at a route with the given identity and length.
// A different identity always resets, even at equal length.
func (c *Controller) Load(id domain.SnapshotID, length int) {
	c.mu.Lock()
	if c.closed || (id == c.snapshot && length == c.length) {
		c.mu.Unlock()
		return
	}
	c.snapshot = id
	c.length = max(length, 0)
	c.resetLocked()
	c.log.Debug("timeline loaded", "snapshot", uint64(id), "length", c.length)
	c.commit()
}

// Reset stops playback and rewinds to the first point.
func (c *Controller) Reset() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.resetLocked()
	c.commit()
}

// Play starts advancing one point per tick. It reports false, and does
// nothing, when already playing or when the cursor is on the last point.
func (c *Controller) Play() bool {
	c.mu.Lock()
	if c.closed || c.playing || c.index >= c.length-1 {
		c.mu.Unlock()
		return false
	}
	c.playing = true
	c.stopped = false
	c.startTimerLocked()
	c.commit()
	return true
}

// Pause stops the timer and keeps the cursor where it is.
func (c *Controller) Pause() {
	c.mu.Lock()
	if c.closed || !c.playing {
		c.mu.Unlock()
		return
	}
	c.clearTimerLocked()
	c.playing = false
	c.commit()
}

// SetIndex moves the cursor to i, clamped to the route. While playing the
// timer keeps its phase: the next tick fires when it would have anyway and
// advances from the new position. Landing on the last point pauses.
func (c *Controller) SetIndex(i int) {
	c.mu.Lock()
	if c.closed || c.length == 0 {
		c.mu.Unlock()
		return
	}
	c.moveLocked(min(max(i, 0), c.length-1))
	c.commit()
}

// SetSpeed changes the tick interval. While playing the timer is restarted
// so the new interval applies from now.
func (c *Controller) SetSpeed(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("timeline.Controller.SetSpeed: %w: speed must be positive, got %s", domain.ErrValidation, d)
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.speed = d
	if c.playing {
		c.clearTimerLocked()
		c.startTimerLocked()
	}
	c.commit()
	return nil
}

// StepForward moves one point ahead; no-op on the last point.
func (c *Controller) StepForward() {
	c.mu.Lock()
	if c.closed || c.index >= c.length-1 {
		c.mu.Unlock()
		return
	}
	c.moveLocked(c.index + 1)
	c.commit()
}

// StepBackward moves one point back; no-op on the first point.
func (c *Controller) StepBackward() {
	c.mu.Lock()
	if c.closed || c.index <= 0 {
		c.mu.Unlock()
		return
	}
	c.moveLocked(c.index - 1)
	c.commit()
}

// State returns the current playback state.
func (c *Controller) State() domain.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Mode returns the coarse playback mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.playing:
		return Playing
	case c.stopped:
		return Stopped
	default:
		return Paused
	}
}

// Len returns the length of the loaded route.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.length
}

// Close stops the timer and drops all listeners. The controller ignores
// every call afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.clearTimerLocked()
	c.playing = false
	c.closed = true
	clear(c.listeners)
}

func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen || !c.playing {
		c.mu.Unlock()
		return
	}
	c.moveLocked(c.index + 1)
	c.commit()
}

// moveLocked sets the cursor and auto-pauses on the last point.
func (c *Controller) moveLocked(i int) {
	c.index = i
	c.stopped = false
	if c.playing && c.index >= c.length-1 {
		c.index = c.length - 1
		c.clearTimerLocked()
		c.playing = false
	}
}

func (c *Controller) resetLocked() {
	c.clearTimerLocked()
	c.index = 0
	c.playing = false
	c.stopped = true
}

func (c *Controller) startTimerLocked() {
	c.gen++
	gen := c.gen
	c.stopTimer = c.sched.Every(c.speed, func() { c.tick(gen) })
}

// clearTimerLocked is idempotent.
func (c *Controller) clearTimerLocked() {
	c.gen++
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
}

func (c *Controller) stateLocked() domain.PlaybackState {
	return domain.PlaybackState{Snapshot: c.snapshot, CurrentIndex: c.index, IsPlaying: c.playing, Speed: c.speed}
}

// commit must be called with mu held; it releases mu and delivers the new
// state to listeners in the order changes were made.
func (c *Controller) commit() {
	st := c.stateLocked()
	fns := make([]func(domain.PlaybackState), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}
