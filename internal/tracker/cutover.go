package tracker

import (
	"context"
	"time"

	"github.com/star/searoute/internal/metrics"
	"github.com/star/searoute/internal/route"
	"github.com/star/searoute/internal/simclock"
)

// routesChanged checks if the route set has been replaced since the trails were built.
func (t *Tracker) routesChanged() bool {
	rs := t.store.Get()
	if rs == nil {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return !rs.LoadedAt.Equal(t.currentLoadedAt)
}

// rebuild replaces all trails with empty ones for the given routes.
func (t *Tracker) rebuild(routes []route.Route, loadedAt time.Time) {
	trails := make(map[string]*simclock.Trail, len(routes))
	for _, r := range routes {
		trails[r.Name] = simclock.NewTrail(t.config.TrailCapacity)
	}

	t.mu.Lock()
	t.trails = trails
	t.currentLoadedAt = loadedAt
	t.mu.Unlock()
}

// performCutover switches the tracker to the current route set.
//
// Positions from the old set would draw trails that jump across the map, so
// every trail is dropped and a frame is rebuilt at the current clock time.
// The clock itself is left alone.
func (t *Tracker) performCutover(ctx context.Context) {
	rs := t.store.Get()
	if rs == nil {
		return
	}

	t.mu.RLock()
	oldLoadedAt := t.currentLoadedAt
	t.mu.RUnlock()

	t.logger.Info("route cutover starting",
		"old_route_set_loaded_at", oldLoadedAt.UTC().Format(time.RFC3339),
		"new_route_set_loaded_at", rs.LoadedAt.UTC().Format(time.RFC3339),
		"routes", len(rs.Routes),
	)

	start := time.Now()
	t.rebuild(rs.Routes, rs.LoadedAt)
	if err := t.produce(ctx, t.clock.Time(), false); err != nil {
		t.logger.Warn("cutover frame failed", "error", err)
	}

	t.cutovers.Add(1)
	metrics.IncCutovers()
	metrics.SetRoutesLoaded(len(rs.Routes))

	t.logger.Info("route cutover complete",
		"duration_ms", time.Since(start).Milliseconds(),
		"routes", len(rs.Routes),
	)
}
