package route

import "math"

// earthRadiusNM is the mean Earth radius in nautical miles.
const earthRadiusNM = 3440.065

// Haversine returns the great-circle distance between two points in nautical miles.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	φ1 := lat1 * math.Pi / 180
	φ2 := lat2 * math.Pi / 180
	dφ := (lat2 - lat1) * math.Pi / 180
	dλ := (lon2 - lon1) * math.Pi / 180

	h := math.Sin(dφ/2)*math.Sin(dφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(dλ/2)*math.Sin(dλ/2)
	return 2 * earthRadiusNM * math.Asin(math.Min(1, math.Sqrt(h)))
}

// DirectNM returns the great-circle distance from the first to the last waypoint.
func (r Route) DirectNM() float64 {
	if len(r.Waypoints) < 2 {
		return 0
	}
	a, b := r.Waypoints[0], r.Waypoints[len(r.Waypoints)-1]
	return Haversine(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// LengthNM returns the sum of great-circle leg distances along the route.
func (r Route) LengthNM() float64 {
	var total float64
	for i := 1; i < len(r.Waypoints); i++ {
		a, b := r.Waypoints[i-1], r.Waypoints[i]
		total += Haversine(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
	}
	return total
}
