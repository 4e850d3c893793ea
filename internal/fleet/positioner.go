// Package fleet computes frames of ship positions for the loaded route set.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/star/searoute/internal/metrics"
	"github.com/star/searoute/internal/route"
)

// ErrNoRouteSet is returned when no routes have been loaded yet.
var ErrNoRouteSet = errors.New("no route set loaded")

// MaxTimelineFrames bounds GenerateFrames output.
const MaxTimelineFrames = 2000

// Positioner orchestrates frame generation for the current route set.
type Positioner struct {
	store  *route.Store
	pool   *WorkerPool
	config Config
	logger *slog.Logger
}

// NewPositioner creates a new positioning orchestrator.
func NewPositioner(store *route.Store, config Config, logger *slog.Logger) *Positioner {
	return &Positioner{
		store:  store,
		pool:   NewWorkerPool(config.Workers, logger),
		config: config,
		logger: logger,
	}
}

// FrameAt computes a frame at the given simulation time using the current route set.
func (p *Positioner) FrameAt(ctx context.Context, simTime float64) (*Frame, error) {
	rs := p.store.Get()
	if rs == nil {
		return nil, ErrNoRouteSet
	}

	start := time.Now()
	ships, successCount, errorCount := p.pool.PositionBatch(ctx, rs.Routes, simTime)
	duration := time.Since(start)

	metrics.RecordFrame(duration, successCount, errorCount)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(ships, func(a, b ShipPosition) int {
		return strings.Compare(a.Route, b.Route)
	})

	return &Frame{
		SimTime:    simTime,
		ComputedAt: time.Now(),
		Ships:      ships,
	}, nil
}

// GenerateFrames computes frames from `from` to `to` inclusive at the given
// progress step. Times are not wrapped; values past 100 park ships on their
// last waypoint.
func (p *Positioner) GenerateFrames(ctx context.Context, from, to, step float64) ([]*Frame, error) {
	if step <= 0 {
		return nil, fmt.Errorf("step must be positive, got %g", step)
	}
	if to < from {
		return nil, fmt.Errorf("to (%g) before from (%g)", to, from)
	}
	// Compare as float so huge or infinite ratios never reach int conversion.
	n := math.Floor((to-from)/step) + 1
	if math.IsNaN(n) || n > MaxTimelineFrames {
		return nil, fmt.Errorf("%g frames requested, max %d", n, MaxTimelineFrames)
	}
	numFrames := int(n)

	frames := make([]*Frame, 0, numFrames)
	for i := 0; i < numFrames; i++ {
		select {
		case <-ctx.Done():
			return frames, ctx.Err()
		default:
		}

		t := from + float64(i)*step
		f, err := p.FrameAt(ctx, t)
		if err != nil {
			return frames, fmt.Errorf("frame %d at t=%g: %w", i, t, err)
		}
		frames = append(frames, f)
	}

	return frames, nil
}
