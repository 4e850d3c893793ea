// Package simclock holds the simulation clock that drives ship animation and
// the bounded trails rendered behind each ship.
//
// simulationTime is voyage progress in [0, 100], not wall-clock time. Each tick
// adds step*speed; a result above 100 wraps to 0 so the animation loops.
package simclock

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Wrap is the progress value past which the clock restarts at 0.
const Wrap = 100.0

// DefaultStep is the progress added per tick at speed 1.
const DefaultStep = 0.2

// DefaultSpeeds are the discrete speed multipliers offered by the dashboard.
var DefaultSpeeds = []float64{0.5, 1, 2, 4, 10, 20}

// ErrUnsupportedSpeed is returned by SetSpeed for multipliers outside the configured set.
var ErrUnsupportedSpeed = errors.New("unsupported speed multiplier")

// Advance returns t moved forward by step*speed, or 0 if that exceeds Wrap.
func Advance(t, step, speed float64) float64 {
	next := t + step*speed
	if next > Wrap {
		return 0
	}
	return next
}

// Config holds clock configuration.
type Config struct {
	Step   float64   // progress added per tick at speed 1 (default: 0.2)
	Speeds []float64 // allowed speed multipliers (default: DefaultSpeeds)
	Speed  float64   // initial multiplier (default: 1)
}

// State is a point-in-time copy of the clock.
type State struct {
	Time    float64   `json:"simulation_time"`
	Step    float64   `json:"step"`
	Speed   float64   `json:"speed"`
	Speeds  []float64 `json:"speeds"`
	Running bool      `json:"running"`
	Ticks   uint64    `json:"ticks"`
	Wraps   uint64    `json:"wraps"`
}

// Clock is the simulation clock. Safe for concurrent use; a single loop is
// expected to call Tick while HTTP handlers toggle and read it.
type Clock struct {
	mu      sync.Mutex
	time    float64
	step    float64
	speed   float64
	speeds  []float64
	running bool
	ticks   uint64
	wraps   uint64
}

// New creates a stopped clock at time 0.
func New(cfg Config) (*Clock, error) {
	if cfg.Step <= 0 {
		cfg.Step = DefaultStep
	}
	if len(cfg.Speeds) == 0 {
		cfg.Speeds = DefaultSpeeds
	}
	if cfg.Speed == 0 {
		cfg.Speed = 1
	}
	speeds := slices.Clone(cfg.Speeds)
	slices.Sort(speeds)
	if !slices.Contains(speeds, cfg.Speed) {
		return nil, fmt.Errorf("initial speed %g: %w", cfg.Speed, ErrUnsupportedSpeed)
	}
	return &Clock{
		step:   cfg.Step,
		speed:  cfg.Speed,
		speeds: speeds,
	}, nil
}

// Tick advances the clock by one step if it is running and returns the new
// time. ok is false, and the time unchanged, when the clock is stopped.
func (c *Clock) Tick() (t float64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return c.time, false
	}
	next := Advance(c.time, c.step, c.speed)
	if next < c.time {
		c.wraps++
	}
	c.time = next
	c.ticks++
	return c.time, true
}

// Start resumes ticking from the current time.
func (c *Clock) Start() {
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
}

// Stop halts ticking. The current time is kept.
func (c *Clock) Stop() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

// Toggle flips the running state and returns the new state.
func (c *Clock) Toggle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = !c.running
	return c.running
}

// Reset sets the time back to 0 without changing the running state.
func (c *Clock) Reset() {
	c.mu.Lock()
	c.time = 0
	c.mu.Unlock()
}

// SetSpeed changes the speed multiplier.
func (c *Clock) SetSpeed(speed float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !slices.Contains(c.speeds, speed) {
		return fmt.Errorf("%g not in %v: %w", speed, c.speeds, ErrUnsupportedSpeed)
	}
	c.speed = speed
	return nil
}

// Running reports whether the clock is ticking.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Time returns the current simulation time.
func (c *Clock) Time() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.time
}

// State returns a snapshot of the clock.
func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Time:    c.time,
		Step:    c.step,
		Speed:   c.speed,
		Speeds:  slices.Clone(c.speeds),
		Running: c.running,
		Ticks:   c.ticks,
		Wraps:   c.wraps,
	}
}
