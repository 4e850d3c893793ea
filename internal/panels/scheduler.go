// Package panels polls the dashboard's side panels on independent schedules.
//
// Each Task runs in its own goroutine: one fetch at start, then one per
// Interval. A failed fetch only marks that panel as errored; the last good
// payload is kept and the next attempt happens at the next interval.
package panels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/star/searoute/internal/metrics"
)

// ErrUnknownPanel is returned for names that were never added.
var ErrUnknownPanel = errors.New("unknown panel")

// FetchFunc produces a panel payload. The result is stored as JSON.
type FetchFunc func(ctx context.Context) (any, error)

// Task is one independently scheduled panel.
type Task struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration // Per-fetch limit (default: Interval, capped at 30s)
	Fetch    FetchFunc
}

// State is the panel's last known payload and fetch status.
type State struct {
	Name        string          `json:"name"`
	Data        json.RawMessage `json:"data,omitempty"`
	Error       string          `json:"error,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
	LastAttempt time.Time       `json:"last_attempt"`
	IntervalSec float64         `json:"interval_seconds"`
	Attempts    int64           `json:"attempts"`
	Failures    int64           `json:"failures"`
	FromCache   bool            `json:"from_cache"`
}

// Scheduler owns the panel tasks and their states.
type Scheduler struct {
	mu     sync.RWMutex
	tasks  []Task
	states map[string]*State

	cache  *DiskCache
	logger *slog.Logger

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler. cache may be nil to disable persistence.
func NewScheduler(cache *DiskCache, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		states: make(map[string]*State),
		cache:  cache,
		logger: logger,
	}
}

// Add registers a task and seeds its state from the disk cache if available.
// Tasks must be added before Start.
func (s *Scheduler) Add(task Task) error {
	if err := validPanelName(task.Name); err != nil {
		return err
	}
	if task.Interval <= 0 {
		return fmt.Errorf("panel %s: interval must be positive", task.Name)
	}
	if task.Fetch == nil {
		return fmt.Errorf("panel %s: nil fetch", task.Name)
	}
	if task.Timeout <= 0 {
		task.Timeout = min(task.Interval, 30*time.Second)
	}

	st := &State{Name: task.Name, IntervalSec: task.Interval.Seconds()}
	if s.cache != nil {
		data, ts, err := s.cache.LoadLatest(task.Name)
		switch {
		case err == nil && json.Valid(data):
			st.Data = data
			st.UpdatedAt = ts
			st.FromCache = true
			s.logger.Info("panel seeded from disk cache",
				"panel", task.Name,
				"cached_at", ts.UTC().Format(time.RFC3339),
			)
		case err != nil && !errors.Is(err, ErrNoCachedPayload):
			s.logger.Warn("panel cache load failed", "panel", task.Name, "error", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.states[task.Name]; exists {
		return fmt.Errorf("panel %s: already added", task.Name)
	}
	s.tasks = append(s.tasks, task)
	s.states[task.Name] = st
	return nil
}

// Start launches one goroutine per task. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.mu.RLock()
	tasks := slices.Clone(s.tasks)
	s.mu.RUnlock()

	for _, task := range tasks {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run(ctx, task)
		}()
	}

	s.logger.Info("panel scheduler started", "panels", len(tasks))
}

// Stop cancels all tasks and waits for them to return.
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("panel scheduler stopped")
}

// run fetches immediately, then on every interval until ctx is cancelled.
func (s *Scheduler) run(ctx context.Context, task Task) {
	s.fetch(ctx, task)

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fetch(ctx, task)
		}
	}
}

// fetch runs one attempt and records the outcome. Results that arrive after
// ctx is cancelled are discarded.
func (s *Scheduler) fetch(ctx context.Context, task Task) {
	fctx, cancel := context.WithTimeout(ctx, task.Timeout)
	defer cancel()

	start := time.Now()
	result, err := task.Fetch(fctx)
	var data []byte
	if err == nil {
		data, err = json.Marshal(result)
	}
	duration := time.Since(start)

	if ctx.Err() != nil {
		return
	}
	metrics.RecordPanelFetch(task.Name, duration, err)

	s.mu.Lock()
	st := s.states[task.Name]
	st.Attempts++
	st.LastAttempt = start
	if err != nil {
		st.Failures++
		st.Error = err.Error()
	} else {
		st.Data = data
		st.Error = ""
		st.UpdatedAt = time.Now()
		st.FromCache = false
	}
	updatedAt := st.UpdatedAt
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("panel fetch failed",
			"panel", task.Name,
			"error", err,
			"duration_ms", duration.Milliseconds(),
		)
		return
	}

	s.logger.Debug("panel fetch complete",
		"panel", task.Name,
		"bytes", len(data),
		"duration_ms", duration.Milliseconds(),
	)
	if s.cache != nil {
		if err := s.cache.Write(task.Name, data, updatedAt); err != nil {
			s.logger.Warn("panel cache write failed", "panel", task.Name, "error", err)
		}
	}
}

// State returns a copy of one panel's state.
func (s *Scheduler) State(name string) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[name]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", ErrUnknownPanel, name)
	}
	return *st, nil
}

// States returns copies of all panel states in the order they were added.
func (s *Scheduler) States() []State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]State, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *s.states[t.Name])
	}
	return out
}
