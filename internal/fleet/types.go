package fleet

import (
	"time"

	"github.com/star/searoute/internal/route"
)

// Frame holds the positions of all ships at a single simulation time.
type Frame struct {
	SimTime    float64
	ComputedAt time.Time
	Ships      []ShipPosition
}

// Ship returns the position of the named ship in the frame.
func (f *Frame) Ship(name string) (ShipPosition, bool) {
	for _, s := range f.Ships {
		if s.Route == name {
			return s, true
		}
	}
	return ShipPosition{}, false
}

// ShipPosition is one ship's interpolated position within a frame.
type ShipPosition struct {
	Route  string `json:"route"`
	Vessel string `json:"vessel,omitempty"`
	route.Position
}

// Config holds positioning configuration loaded from environment variables.
type Config struct {
	Workers int // Worker pool size (default: runtime.NumCPU())
}
