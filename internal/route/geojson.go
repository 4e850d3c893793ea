package route

import geojson "github.com/paulmach/go.geojson"

// FeatureCollection renders the route set as GeoJSON LineStrings for the map overlay.
// Coordinates follow GeoJSON order: [longitude, latitude].
func FeatureCollection(rs *RouteSet) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if rs == nil {
		return fc
	}
	for _, r := range rs.Routes {
		line := make([][]float64, len(r.Waypoints))
		fractions := make([]float64, len(r.Waypoints))
		for i, wp := range r.Waypoints {
			line[i] = []float64{wp.Longitude, wp.Latitude}
			fractions[i] = wp.TimeFraction
		}
		f := geojson.NewLineStringFeature(line)
		f.ID = r.Name
		f.SetProperty("name", r.Name)
		f.SetProperty("time_fractions", fractions)
		f.SetProperty("length_nm", r.LengthNM())
		if r.Vessel != "" {
			f.SetProperty("vessel", r.Vessel)
		}
		if r.Color != "" {
			f.SetProperty("color", r.Color)
		}
		fc.AddFeature(f)
	}
	return fc
}

// PointFeature renders a single position as a GeoJSON Point.
func PointFeature(name string, p Position) *geojson.Feature {
	f := geojson.NewPointFeature([]float64{p.Longitude, p.Latitude})
	f.ID = name
	f.SetProperty("name", name)
	f.SetProperty("heading", p.HeadingDegrees)
	return f
}
