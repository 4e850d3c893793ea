// Package tracker runs the simulation loop.
//
// One ticker goroutine drives the clock. Each tick that advances the clock
// produces a frame of ship positions, appends every ship's position to its
// trail and publishes the result to subscribers. When the route set changes,
// trails are dropped and a fresh frame is built at the current clock time.
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/searoute/internal/fleet"
	"github.com/star/searoute/internal/metrics"
	"github.com/star/searoute/internal/route"
	"github.com/star/searoute/internal/simclock"
)

// Config holds tracker configuration loaded from environment variables.
type Config struct {
	TickInterval  time.Duration // Wall-clock time between clock ticks (default: 100ms)
	TrailCapacity int           // Samples kept per ship (default: 5)
}

// Update is what subscribers receive after each produced frame.
type Update struct {
	Frame  *fleet.Frame
	Trails map[string][]route.Position
	Clock  simclock.State
}

// Tracker owns the simulation clock, the latest frame and the per-ship trails.
// Safe for concurrent use by multiple goroutines.
type Tracker struct {
	// stepMu serializes the loop's clock step and frame with Reset, so a
	// frame computed before a reset is never published after it.
	stepMu sync.Mutex

	mu     sync.RWMutex
	latest *fleet.Frame
	trails map[string]*simclock.Trail

	config Config
	clock  *simclock.Clock
	pos    *fleet.Positioner
	store  *route.Store
	logger *slog.Logger

	// Route set the current trails were built from.
	currentLoadedAt time.Time

	subMu sync.Mutex
	subs  map[chan Update]struct{}

	ticks       atomic.Int64
	frames      atomic.Int64
	frameErrors atomic.Int64
	cutovers    atomic.Int64
}

// New creates a tracker around an existing clock.
func New(config Config, clock *simclock.Clock, pos *fleet.Positioner, store *route.Store, logger *slog.Logger) *Tracker {
	if config.TickInterval <= 0 {
		config.TickInterval = 100 * time.Millisecond
	}
	if config.TrailCapacity <= 0 {
		config.TrailCapacity = simclock.DefaultTrailCapacity
	}

	logger.Info("tracker initialized",
		"tick_interval_ms", config.TickInterval.Milliseconds(),
		"trail_capacity", config.TrailCapacity,
	)

	return &Tracker{
		trails: make(map[string]*simclock.Trail),
		config: config,
		clock:  clock,
		pos:    pos,
		store:  store,
		logger: logger,
		subs:   make(map[chan Update]struct{}),
	}
}

// Clock returns the simulation clock.
func (t *Tracker) Clock() *simclock.Clock {
	return t.clock
}

// Latest returns the most recent frame, or nil before the first one.
func (t *Tracker) Latest() *fleet.Frame {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest
}

// Trails returns a copy of every ship's trail, oldest sample first.
func (t *Tracker) Trails() map[string][]route.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.trailsLocked()
}

func (t *Tracker) trailsLocked() map[string][]route.Position {
	out := make(map[string][]route.Position, len(t.trails))
	for name, tr := range t.trails {
		out[name] = tr.Positions()
	}
	return out
}

// Snapshot returns the latest frame, trails and clock state together.
func (t *Tracker) Snapshot() Update {
	t.mu.RLock()
	u := Update{Frame: t.latest, Trails: t.trailsLocked()}
	t.mu.RUnlock()
	u.Clock = t.clock.State()
	return u
}

// StartClock resumes the simulation clock from its current time.
func (t *Tracker) StartClock() {
	t.clock.Start()
	metrics.SetSimulationRunning(true)
	t.logger.Info("simulation started", "simulation_time", t.clock.Time())
}

// StopClock halts the simulation clock. No further frames are produced until restarted.
func (t *Tracker) StopClock() {
	t.clock.Stop()
	metrics.SetSimulationRunning(false)
	t.logger.Info("simulation stopped", "simulation_time", t.clock.Time())
}

// SetSpeed changes the clock speed multiplier.
func (t *Tracker) SetSpeed(speed float64) error {
	if err := t.clock.SetSpeed(speed); err != nil {
		return err
	}
	t.logger.Info("simulation speed changed", "speed", speed)
	return nil
}

// Reset moves the clock back to 0, drops trails and publishes a frame at 0.
func (t *Tracker) Reset(ctx context.Context) error {
	t.stepMu.Lock()
	defer t.stepMu.Unlock()

	t.clock.Reset()
	t.mu.Lock()
	for _, tr := range t.trails {
		tr.Clear()
	}
	t.mu.Unlock()
	metrics.SetSimulationTime(0)
	t.logger.Info("simulation reset")

	if t.store.Get() == nil {
		return nil
	}
	return t.produce(ctx, 0, false)
}

// Subscribe registers for updates. Slow subscribers only see the newest update.
// Call the returned function to unsubscribe.
func (t *Tracker) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 1)
	t.subMu.Lock()
	t.subs[ch] = struct{}{}
	t.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.subMu.Lock()
			delete(t.subs, ch)
			t.subMu.Unlock()
		})
	}
}

// publish delivers u to every subscriber without blocking the loop.
func (t *Tracker) publish(u Update) {
	t.subMu.Lock()
	defer t.subMu.Unlock()

	for ch := range t.subs {
		select {
		case ch <- u:
			continue
		default:
		}
		// Full: replace the stale update with the new one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- u:
		default:
		}
	}
}

// Stats returns tracker statistics.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	ships := len(t.trails)
	var lastFrame time.Time
	var simTime float64
	if t.latest != nil {
		lastFrame = t.latest.ComputedAt
		simTime = t.latest.SimTime
	}
	t.mu.RUnlock()

	t.subMu.Lock()
	subscribers := len(t.subs)
	t.subMu.Unlock()

	return Stats{
		Ships:         ships,
		Ticks:         t.ticks.Load(),
		Frames:        t.frames.Load(),
		FrameErrors:   t.frameErrors.Load(),
		Cutovers:      t.cutovers.Load(),
		Subscribers:   subscribers,
		LastFrameAt:   lastFrame,
		LastFrameTime: simTime,
		TrailCapacity: t.config.TrailCapacity,
	}
}

// Stats holds tracker statistics for the simulation endpoint.
type Stats struct {
	Ships         int       `json:"ships"`
	Ticks         int64     `json:"ticks"`
	Frames        int64     `json:"frames"`
	FrameErrors   int64     `json:"frame_errors"`
	Cutovers      int64     `json:"cutovers"`
	Subscribers   int       `json:"subscribers"`
	LastFrameAt   time.Time `json:"last_frame_at"`
	LastFrameTime float64   `json:"last_frame_simulation_time"`
	TrailCapacity int       `json:"trail_capacity"`
}
