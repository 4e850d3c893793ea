// Package planner answers the dashboard's path planning requests.
//
// There is no optimiser behind it: routes are straight lines split into
// thirds, speed is a constant, and a port selection becomes a route through
// the ports in the order given.
package planner

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/star/searoute/internal/route"
)

// PredictedSpeedKnots is the speed every prediction returns.
const PredictedSpeedKnots = 15.5

// DefaultSeason is used when a route request names none.
const DefaultSeason = "summer"

// ErrNoPorts is returned when a port selection is empty.
var ErrNoPorts = errors.New("no ports selected")

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Validate checks that p lies on the globe.
func (p Point) Validate() error {
	if math.IsNaN(p.Latitude) || p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("latitude %g out of range [-90, 90]", p.Latitude)
	}
	if math.IsNaN(p.Longitude) || p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("longitude %g out of range [-180, 180]", p.Longitude)
	}
	return nil
}

// RouteRequest asks for a route between two points.
type RouteRequest struct {
	Start  Point  `json:"start"`
	End    Point  `json:"end"`
	Season string `json:"season,omitempty"`
}

// RoutePrediction is the planned route. Route points are [lat, lon] pairs.
type RoutePrediction struct {
	Route      [][2]float64 `json:"route"`
	DistanceNM float64      `json:"distance"`
	ETA        string       `json:"eta"`
	ETAHours   float64      `json:"eta_hours"`
	Season     string       `json:"season"`
}

// SpeedRequest asks for the expected speed at a place and time.
type SpeedRequest struct {
	Location Point     `json:"location"`
	Time     time.Time `json:"time"`
}

// SpeedPrediction is the expected speed in knots.
type SpeedPrediction struct {
	PredictedSpeed float64 `json:"predicted_speed"`
}

// Port is one selected port.
type Port struct {
	Name      string  `json:"name,omitempty"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// PortsRequest is the path planning panel's port selection.
type PortsRequest struct {
	SelectedPorts []Port `json:"selectedPorts"`
}

// PortsAck acknowledges a port selection with the route planned through it.
type PortsAck struct {
	RequestID  string      `json:"request_id"`
	Status     string      `json:"status"`
	Ports      int         `json:"ports"`
	Route      route.Route `json:"route"`
	DistanceNM float64     `json:"distance_nm"`
}

// PredictRoute returns four points at 0, 1/3, 2/3 and 1 of the straight line
// from start to end, the great-circle distance and an ETA at the predicted speed.
func PredictRoute(req RouteRequest) (RoutePrediction, error) {
	if err := req.Start.Validate(); err != nil {
		return RoutePrediction{}, fmt.Errorf("start: %w", err)
	}
	if err := req.End.Validate(); err != nil {
		return RoutePrediction{}, fmt.Errorf("end: %w", err)
	}
	season := req.Season
	if season == "" {
		season = DefaultSeason
	}

	s, e := req.Start, req.End
	dLat := e.Latitude - s.Latitude
	dLon := e.Longitude - s.Longitude
	points := make([][2]float64, 4)
	for i := range points {
		f := float64(i) / 3
		points[i] = [2]float64{s.Latitude + dLat*f, s.Longitude + dLon*f}
	}
	// Pin the end exactly.
	points[3] = [2]float64{e.Latitude, e.Longitude}

	dist := route.Haversine(s.Latitude, s.Longitude, e.Latitude, e.Longitude)
	hours := dist / PredictedSpeedKnots

	return RoutePrediction{
		Route:      points,
		DistanceNM: dist,
		ETA:        FormatETA(hours),
		ETAHours:   hours,
		Season:     season,
	}, nil
}

// PredictSpeed returns the expected speed at a location and time.
func PredictSpeed(req SpeedRequest) (SpeedPrediction, error) {
	if err := req.Location.Validate(); err != nil {
		return SpeedPrediction{}, fmt.Errorf("location: %w", err)
	}
	return SpeedPrediction{PredictedSpeed: PredictedSpeedKnots}, nil
}

// SubmitPorts validates a port selection and plans a route through the ports
// in order. Time fractions are spread evenly from 0 to 100; a single port
// gives a stationary two-waypoint route.
func SubmitPorts(req PortsRequest) (PortsAck, error) {
	ports := req.SelectedPorts
	if len(ports) == 0 {
		return PortsAck{}, ErrNoPorts
	}
	for i, p := range ports {
		if err := (Point{p.Latitude, p.Longitude}).Validate(); err != nil {
			return PortsAck{}, fmt.Errorf("port %d: %w", i, err)
		}
	}
	if len(ports) == 1 {
		ports = []Port{ports[0], ports[0]}
	}

	id := uuid.NewString()
	r := route.Route{
		Name:      "plan-" + id[:8],
		Waypoints: make([]route.Waypoint, len(ports)),
	}
	last := len(ports) - 1
	for i, p := range ports {
		tf := route.ProgressEnd * float64(i) / float64(last)
		if i == last {
			tf = route.ProgressEnd
		}
		r.Waypoints[i] = route.Waypoint{Latitude: p.Latitude, Longitude: p.Longitude, TimeFraction: tf}
	}
	if err := r.Validate(); err != nil {
		return PortsAck{}, fmt.Errorf("planned route: %w", err)
	}

	return PortsAck{
		RequestID:  id,
		Status:     "accepted",
		Ports:      len(req.SelectedPorts),
		Route:      r,
		DistanceNM: r.LengthNM(),
	}, nil
}

// FormatETA renders hours as "N hours", or "N days M hours" beyond two days.
func FormatETA(hours float64) string {
	h := int(math.Round(hours))
	if h < 48 {
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return fmt.Sprintf("%d days %d hours", h/24, h%24)
}
