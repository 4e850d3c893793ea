package tracker

import (
	"context"
	"time"

	"github.com/star/searoute/internal/metrics"
	"github.com/star/searoute/internal/simclock"
)

// Start runs the simulation loop. It waits for a route set, builds the initial
// frame, then on every tick:
//   - picks up route set changes (cutover)
//   - advances the clock if it is running
//   - computes the frame, extends trails and publishes the update
//
// Blocks until ctx is cancelled.
func (t *Tracker) Start(ctx context.Context) {
	if !t.waitForRoutes(ctx) {
		return
	}

	t.warmup(ctx)

	ticker := time.NewTicker(t.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("tracker stopped")
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

// waitForRoutes blocks until a route set is available in the store,
// checking every second. Returns false if ctx is cancelled.
func (t *Tracker) waitForRoutes(ctx context.Context) bool {
	if t.store.Get() != nil {
		return true
	}

	t.logger.Info("tracker waiting for routes...")
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if t.store.Get() != nil {
				t.logger.Info("routes available, starting tracker")
				return true
			}
		}
	}
}

// warmup builds trails for the current route set and publishes the frame at
// the current clock time.
func (t *Tracker) warmup(ctx context.Context) {
	t.stepMu.Lock()
	defer t.stepMu.Unlock()

	rs := t.store.Get()
	if rs == nil {
		return
	}

	start := time.Now()
	t.rebuild(rs.Routes, rs.LoadedAt)
	if err := t.produce(ctx, t.clock.Time(), false); err != nil {
		t.logger.Warn("warmup frame failed", "error", err)
		return
	}
	metrics.SetRoutesLoaded(len(rs.Routes))

	t.logger.Info("tracker warmup complete",
		"ships", len(rs.Routes),
		"simulation_time", t.clock.Time(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// tick runs one iteration of the loop.
func (t *Tracker) tick(ctx context.Context) {
	t.stepMu.Lock()
	defer t.stepMu.Unlock()

	if t.routesChanged() {
		t.performCutover(ctx)
		return
	}

	simTime, ok := t.clock.Tick()
	if !ok {
		return
	}
	t.ticks.Add(1)
	metrics.RecordTick(simTime)

	if err := t.produce(ctx, simTime, true); err != nil {
		t.logger.Warn("frame generation failed", "simulation_time", simTime, "error", err)
	}
}

// produce computes the frame at simTime, optionally appends it to the trails,
// and publishes the result.
func (t *Tracker) produce(ctx context.Context, simTime float64, extendTrails bool) error {
	frame, err := t.pos.FrameAt(ctx, simTime)
	if err != nil {
		t.frameErrors.Add(1)
		return err
	}

	t.mu.Lock()
	t.latest = frame
	if extendTrails {
		for _, s := range frame.Ships {
			tr, ok := t.trails[s.Route]
			if !ok {
				tr = simclock.NewTrail(t.config.TrailCapacity)
				t.trails[s.Route] = tr
			}
			tr.Push(s.Position)
		}
	}
	u := Update{Frame: frame, Trails: t.trailsLocked()}
	t.mu.Unlock()

	t.frames.Add(1)
	u.Clock = t.clock.State()
	t.publish(u)
	return nil
}
