package route

import (
	"math"
	"testing"
)

func testRoute() Route {
	return Route{
		Name: "test",
		Waypoints: []Waypoint{
			{Latitude: 0, Longitude: 0, TimeFraction: 0},
			{Latitude: 10, Longitude: 10, TimeFraction: 50},
			{Latitude: 20, Longitude: 0, TimeFraction: 100},
		},
	}
}

func TestInterpolateMidSegment(t *testing.T) {
	got := Interpolate(testRoute(), 25)
	if got.Latitude != 5 || got.Longitude != 5 {
		t.Errorf("Interpolate(25) = (%g, %g), want (5, 5)", got.Latitude, got.Longitude)
	}
	if math.Abs(got.HeadingDegrees-45) > 1e-9 {
		t.Errorf("heading = %g, want 45", got.HeadingDegrees)
	}
}

func TestInterpolateEndpoints(t *testing.T) {
	r := testRoute()

	tests := []struct {
		name    string
		t       float64
		wantLat float64
		wantLon float64
	}{
		{"zero", 0, 0, 0},
		{"negative", -15, 0, 0},
		{"hundred", 100, 20, 0},
		{"past end", 250, 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Interpolate(r, tt.t)
			if got.Latitude != tt.wantLat || got.Longitude != tt.wantLon {
				t.Errorf("position = (%g, %g), want (%g, %g)", got.Latitude, got.Longitude, tt.wantLat, tt.wantLon)
			}
			if got.HeadingDegrees != 0 {
				t.Errorf("heading = %g, want 0 at endpoint", got.HeadingDegrees)
			}
		})
	}
}

// TestInterpolateInteriorWaypoint verifies a query at an interior waypoint's
// time fraction returns that waypoint exactly, for awkward float values too.
func TestInterpolateInteriorWaypoint(t *testing.T) {
	r := Route{
		Name: "awkward",
		Waypoints: []Waypoint{
			{Latitude: 0.1, Longitude: -0.7, TimeFraction: 0},
			{Latitude: 0.3, Longitude: 13.37, TimeFraction: 33.3},
			{Latitude: -7.77, Longitude: 1.1, TimeFraction: 71.9},
			{Latitude: 2, Longitude: 2, TimeFraction: 100},
		},
	}

	for _, wp := range r.Waypoints[1 : len(r.Waypoints)-1] {
		got := Interpolate(r, wp.TimeFraction)
		if got.Latitude != wp.Latitude || got.Longitude != wp.Longitude {
			t.Errorf("Interpolate(%g) = (%v, %v), want (%v, %v)",
				wp.TimeFraction, got.Latitude, got.Longitude, wp.Latitude, wp.Longitude)
		}
	}
}

func TestInterpolateHeadingConvention(t *testing.T) {
	tests := []struct {
		name string
		to   Waypoint
		want float64
	}{
		{"north", Waypoint{Latitude: 1, Longitude: 0}, 0},
		{"east", Waypoint{Latitude: 0, Longitude: 1}, 90},
		{"south", Waypoint{Latitude: -1, Longitude: 0}, 180},
		{"west", Waypoint{Latitude: 0, Longitude: -1}, -90},
		{"south west", Waypoint{Latitude: -1, Longitude: -1}, -135},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			to := tt.to
			to.TimeFraction = 100
			r := Route{Name: tt.name, Waypoints: []Waypoint{{TimeFraction: 0}, to}}
			got := Interpolate(r, 50).HeadingDegrees
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("heading = %g, want %g", got, tt.want)
			}
		})
	}
}

// TestInterpolateContinuity walks the route in small steps and checks there
// are no jumps larger than the per-step movement bound.
func TestInterpolateContinuity(t *testing.T) {
	r := testRoute()
	const step = 0.01
	// Max movement per 1.0 of progress on this route is 10/50 degrees per axis.
	const maxJump = step * 10.0 / 50.0 * 1.0001

	prev := Interpolate(r, 0)
	for x := step; x <= 100; x += step {
		cur := Interpolate(r, x)
		if math.Abs(cur.Latitude-prev.Latitude) > maxJump || math.Abs(cur.Longitude-prev.Longitude) > maxJump {
			t.Fatalf("discontinuity at t=%g: (%g, %g) -> (%g, %g)",
				x, prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude)
		}
		prev = cur
	}
}

func TestInterpolateZeroLengthSegment(t *testing.T) {
	r := Route{
		Name: "hold",
		Waypoints: []Waypoint{
			{Latitude: 0, Longitude: 0, TimeFraction: 0},
			{Latitude: 5, Longitude: 5, TimeFraction: 50},
			{Latitude: 6, Longitude: 6, TimeFraction: 50},
			{Latitude: 10, Longitude: 10, TimeFraction: 100},
		},
	}

	got := Interpolate(r, 50)
	if got.Latitude != 6 || got.Longitude != 6 {
		t.Errorf("Interpolate(50) = (%g, %g), want (6, 6)", got.Latitude, got.Longitude)
	}
	if math.IsNaN(got.HeadingDegrees) {
		t.Error("heading is NaN")
	}
}

func TestInterpolateEmptyRoute(t *testing.T) {
	got := Interpolate(Route{}, 42)
	if got != (Position{}) {
		t.Errorf("Interpolate(empty) = %+v, want zero value", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		route   Route
		wantErr bool
	}{
		{"valid", testRoute(), false},
		{"no name", Route{Waypoints: testRoute().Waypoints}, true},
		{"single point", Route{Name: "x", Waypoints: []Waypoint{{TimeFraction: 0}}}, true},
		{"bad start", Route{Name: "x", Waypoints: []Waypoint{{TimeFraction: 1}, {TimeFraction: 100}}}, true},
		{"bad end", Route{Name: "x", Waypoints: []Waypoint{{TimeFraction: 0}, {TimeFraction: 99}}}, true},
		{"unsorted", Route{Name: "x", Waypoints: []Waypoint{{TimeFraction: 0}, {TimeFraction: 60}, {TimeFraction: 40}, {TimeFraction: 100}}}, true},
		{"latitude range", Route{Name: "x", Waypoints: []Waypoint{{Latitude: 91}, {TimeFraction: 100}}}, true},
		{"longitude range", Route{Name: "x", Waypoints: []Waypoint{{Longitude: -181}, {TimeFraction: 100}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.route.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHaversine(t *testing.T) {
	// One degree of latitude is 60 nm on a sphere of radius 3440.065 nm (within 0.1%).
	got := Haversine(0, 0, 1, 0)
	if math.Abs(got-60.04) > 0.1 {
		t.Errorf("Haversine 1 deg lat = %.3f nm, want ~60.04", got)
	}
	if d := Haversine(12, 34, 12, 34); d != 0 {
		t.Errorf("Haversine same point = %g, want 0", d)
	}
}

func TestRouteLength(t *testing.T) {
	r := testRoute()
	if r.LengthNM() <= r.DirectNM() {
		t.Errorf("polyline length %.1f should exceed direct %.1f for a dog-leg route", r.LengthNM(), r.DirectNM())
	}

	straight := Route{Name: "s", Waypoints: []Waypoint{
		{Latitude: 0, Longitude: 0, TimeFraction: 0},
		{Latitude: 1, Longitude: 0, TimeFraction: 50},
		{Latitude: 2, Longitude: 0, TimeFraction: 100},
	}}
	if math.Abs(straight.LengthNM()-straight.DirectNM()) > 1e-6 {
		t.Errorf("straight route length %.6f != direct %.6f", straight.LengthNM(), straight.DirectNM())
	}
}
