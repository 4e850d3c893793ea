package simclock

import "github.com/star/searoute/internal/route"

// DefaultTrailCapacity is the number of samples kept behind each ship.
const DefaultTrailCapacity = 5

// Trail is a bounded history of recent positions. Once full, each Push evicts
// the oldest sample. Not safe for concurrent use; owners serialize access.
type Trail struct {
	buf   []route.Position
	start int
	size  int
}

// NewTrail creates a trail holding at most capacity positions.
func NewTrail(capacity int) *Trail {
	if capacity <= 0 {
		capacity = DefaultTrailCapacity
	}
	return &Trail{buf: make([]route.Position, capacity)}
}

// Push appends p, evicting the oldest sample if the trail is full.
func (t *Trail) Push(p route.Position) {
	if t.size < len(t.buf) {
		t.buf[(t.start+t.size)%len(t.buf)] = p
		t.size++
		return
	}
	t.buf[t.start] = p
	t.start = (t.start + 1) % len(t.buf)
}

// Positions returns the retained samples, oldest first.
func (t *Trail) Positions() []route.Position {
	out := make([]route.Position, t.size)
	for i := 0; i < t.size; i++ {
		out[i] = t.buf[(t.start+i)%len(t.buf)]
	}
	return out
}

// Len returns the number of retained samples.
func (t *Trail) Len() int { return t.size }

// Cap returns the trail capacity.
func (t *Trail) Cap() int { return len(t.buf) }

// Clear drops all samples.
func (t *Trail) Clear() {
	t.start, t.size = 0, 0
}
