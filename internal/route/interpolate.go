package route

import "math"

// Interpolate returns the position at progress t along r.
//
// Outside (0, 100) the nearest endpoint is returned with heading 0. Inside, the
// position is planar linear interpolation on the segment that contains t, and
// the heading is atan2(dLon, dLat) in degrees, in (-180, 180].
//
// r must hold at least two waypoints sorted by TimeFraction and spanning
// [0, 100]; other input gives degenerate output.
func Interpolate(r Route, t float64) Position {
	wps := r.Waypoints
	if len(wps) == 0 {
		return Position{}
	}
	if t <= ProgressStart {
		return Position{Latitude: wps[0].Latitude, Longitude: wps[0].Longitude}
	}
	last := wps[len(wps)-1]
	if t >= ProgressEnd {
		return Position{Latitude: last.Latitude, Longitude: last.Longitude}
	}

	for i := 0; i+1 < len(wps); i++ {
		a, b := wps[i], wps[i+1]
		if t < a.TimeFraction || t >= b.TimeFraction {
			continue
		}
		p := (t - a.TimeFraction) / (b.TimeFraction - a.TimeFraction)
		dLat := b.Latitude - a.Latitude
		dLon := b.Longitude - a.Longitude
		return Position{
			Latitude:       a.Latitude + dLat*p,
			Longitude:      a.Longitude + dLon*p,
			HeadingDegrees: Heading(a, b),
		}
	}

	// Routes that stop short of 100 park on their last waypoint.
	return Position{Latitude: last.Latitude, Longitude: last.Longitude}
}

// Heading returns atan2(dLon, dLat) in degrees for the segment a -> b.
// Longitude delta is the sine term; this matches the dashboard's marker
// rotation and is not a compass bearing.
func Heading(a, b Waypoint) float64 {
	return math.Atan2(b.Longitude-a.Longitude, b.Latitude-a.Latitude) * 180 / math.Pi
}
