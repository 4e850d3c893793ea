package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/star/searoute/internal/route"
)

// positionJob is a unit of work for the worker pool.
type positionJob struct {
	route   route.Route
	simTime float64
}

// positionResult is the output of a single ship interpolation.
type positionResult struct {
	position ShipPosition
	err      error
	name     string
}

// WorkerPool manages a fixed number of goroutines for parallel interpolation.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// PositionBatch interpolates every route at simTime using the worker pool.
// Returns positions for all ships that succeeded, unordered. Failed ships are
// logged and skipped.
func (wp *WorkerPool) PositionBatch(ctx context.Context, routes []route.Route, simTime float64) ([]ShipPosition, int, int) {
	if len(routes) == 0 {
		return nil, 0, 0
	}

	jobs := make(chan positionJob, wp.workers*2)
	results := make(chan positionResult, wp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result := positionSingle(job)
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, r := range routes {
			select {
			case jobs <- positionJob{route: r, simTime: simTime}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	positions := make([]ShipPosition, 0, len(routes))
	var successCount, errorCount int

	for result := range results {
		if result.err != nil {
			errorCount++
			wp.logger.Warn("interpolation failed",
				"route", result.name,
				"error", result.err,
			)
			continue
		}
		successCount++
		positions = append(positions, result.position)
	}

	return positions, successCount, errorCount
}

// positionSingle interpolates one route. Degenerate routes that produce
// non-finite coordinates are reported as errors.
func positionSingle(job positionJob) positionResult {
	p := route.Interpolate(job.route, job.simTime)
	if !finite(p.Latitude) || !finite(p.Longitude) || !finite(p.HeadingDegrees) {
		return positionResult{
			name: job.route.Name,
			err:  fmt.Errorf("route %q at t=%g: non-finite position", job.route.Name, job.simTime),
		}
	}
	return positionResult{
		name: job.route.Name,
		position: ShipPosition{
			Route:    job.route.Name,
			Vessel:   job.route.Vessel,
			Position: p,
		},
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
