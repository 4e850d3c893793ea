package route

import (
	"errors"
	"fmt"
	"time"
)

// Progress bounds for TimeFraction values.
const (
	ProgressStart = 0.0
	ProgressEnd   = 100.0
)

// ErrNoRoutes is returned when a route set contains no routes.
var ErrNoRoutes = errors.New("route set contains no routes")

// Waypoint is a point on a route reached at a normalized progress value.
type Waypoint struct {
	Latitude     float64 `json:"latitude" mapstructure:"lat"`
	Longitude    float64 `json:"longitude" mapstructure:"lon"`
	TimeFraction float64 `json:"time_fraction" mapstructure:"t"` // voyage progress in [0, 100]
}

// Route is a named ship track. Waypoints are sorted by ascending TimeFraction.
type Route struct {
	Name      string     `json:"name" mapstructure:"name"`
	Vessel    string     `json:"vessel,omitempty" mapstructure:"vessel"`
	Color     string     `json:"color,omitempty" mapstructure:"color"`
	Waypoints []Waypoint `json:"waypoints" mapstructure:"waypoints"`
}

// Position is an interpolated point on a route.
type Position struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	HeadingDegrees float64 `json:"heading"`
}

// Validate reports whether r satisfies the interpolation preconditions.
// Interpolate itself never validates; the loader rejects bad routes up front.
func (r Route) Validate() error {
	if r.Name == "" {
		return errors.New("route name is empty")
	}
	if len(r.Waypoints) < 2 {
		return fmt.Errorf("route %q: need at least 2 waypoints, got %d", r.Name, len(r.Waypoints))
	}
	first, last := r.Waypoints[0], r.Waypoints[len(r.Waypoints)-1]
	if first.TimeFraction != ProgressStart {
		return fmt.Errorf("route %q: first waypoint time fraction is %g, want 0", r.Name, first.TimeFraction)
	}
	if last.TimeFraction != ProgressEnd {
		return fmt.Errorf("route %q: last waypoint time fraction is %g, want 100", r.Name, last.TimeFraction)
	}
	for i, wp := range r.Waypoints {
		if wp.Latitude < -90 || wp.Latitude > 90 {
			return fmt.Errorf("route %q: waypoint %d latitude %g out of range", r.Name, i, wp.Latitude)
		}
		if wp.Longitude < -180 || wp.Longitude > 180 {
			return fmt.Errorf("route %q: waypoint %d longitude %g out of range", r.Name, i, wp.Longitude)
		}
		if i > 0 && wp.TimeFraction < r.Waypoints[i-1].TimeFraction {
			return fmt.Errorf("route %q: waypoint %d time fraction %g decreases", r.Name, i, wp.TimeFraction)
		}
	}
	return nil
}

// StatsParams holds the inputs of the impact statistics panel.
type StatsParams struct {
	FuelPricePerTon   float64     `json:"fuel_price_per_ton" mapstructure:"fuel_price_per_ton"`
	VesselCapacityTEU int         `json:"vessel_capacity_teu" mapstructure:"vessel_capacity_teu"`
	AvgSpeedKnots     float64     `json:"avg_speed_knots" mapstructure:"avg_speed_knots"`
	FuelTonsPerHour   float64     `json:"fuel_tons_per_hour" mapstructure:"fuel_tons_per_hour"`
	Commodities       []Commodity `json:"commodities" mapstructure:"commodities"`
}

// Commodity is one row of the price impact table.
type Commodity struct {
	Name                  string  `json:"commodity" mapstructure:"name"`
	PriceIncreasePercent  float64 `json:"estimated_price_increase_pct" mapstructure:"price_increase_pct"`
	AnnualVolumeMillionTn float64 `json:"annual_volume_mt" mapstructure:"annual_volume_mt"`
}

// RouteSet is an immutable set of routes loaded from one source.
type RouteSet struct {
	Source   string
	LoadedAt time.Time
	Routes   []Route
	Stats    StatsParams
}

// Find returns the route with the given name.
func (s *RouteSet) Find(name string) (Route, bool) {
	for _, r := range s.Routes {
		if r.Name == name {
			return r, true
		}
	}
	return Route{}, false
}
