// Package stats computes the impact statistics panel from the route set.
package stats

import (
	"github.com/star/searoute/internal/route"
)

// Voyage is the diversion cost of one route compared with sailing direct.
type Voyage struct {
	Route              string  `json:"route"`
	Vessel             string  `json:"vessel,omitempty"`
	DirectNM           float64 `json:"direct_distance_nm"`
	DivertedNM         float64 `json:"diverted_distance_nm"`
	AdditionalNM       float64 `json:"additional_distance_nm"`
	AdditionalHours    float64 `json:"additional_time_hours"`
	AdditionalFuelTons float64 `json:"additional_fuel_tons"`
	AdditionalCost     float64 `json:"additional_cost"`
}

// Averages are the per-voyage means of the additional quantities.
type Averages struct {
	AdditionalNM       float64 `json:"additional_distance_nm"`
	AdditionalHours    float64 `json:"additional_time_hours"`
	AdditionalFuelTons float64 `json:"additional_fuel_tons"`
	AdditionalCost     float64 `json:"additional_cost"`
}

// Metadata echoes the parameters the figures were computed with.
type Metadata struct {
	FuelPricePerTon   float64 `json:"fuel_price_per_ton"`
	VesselCapacityTEU int     `json:"vessel_capacity_teu"`
	AvgSpeedKnots     float64 `json:"avg_speed_knots"`
	FuelTonsPerHour   float64 `json:"fuel_tons_per_hour"`
	Voyages           int     `json:"voyages"`
}

// Impact is the full statistics panel payload.
type Impact struct {
	Voyages     []Voyage          `json:"voyages"`
	Averages    Averages          `json:"averages"`
	Commodities []route.Commodity `json:"commodities"`
	Metadata    Metadata          `json:"metadata"`
}

// Compute derives the impact of every route's diversion. Routes shorter than
// their great-circle distance (possible for planar tracks near the poles)
// report zero additional distance rather than a saving.
func Compute(routes []route.Route, p route.StatsParams) Impact {
	voyages := make([]Voyage, 0, len(routes))
	var sum Averages

	for _, r := range routes {
		v := Voyage{
			Route:      r.Name,
			Vessel:     r.Vessel,
			DirectNM:   r.DirectNM(),
			DivertedNM: r.LengthNM(),
		}
		v.AdditionalNM = max(v.DivertedNM-v.DirectNM, 0)
		if p.AvgSpeedKnots > 0 {
			v.AdditionalHours = v.AdditionalNM / p.AvgSpeedKnots
		}
		v.AdditionalFuelTons = v.AdditionalHours * p.FuelTonsPerHour
		v.AdditionalCost = v.AdditionalFuelTons * p.FuelPricePerTon

		sum.AdditionalNM += v.AdditionalNM
		sum.AdditionalHours += v.AdditionalHours
		sum.AdditionalFuelTons += v.AdditionalFuelTons
		sum.AdditionalCost += v.AdditionalCost
		voyages = append(voyages, v)
	}

	var avg Averages
	if n := float64(len(voyages)); n > 0 {
		avg = Averages{
			AdditionalNM:       sum.AdditionalNM / n,
			AdditionalHours:    sum.AdditionalHours / n,
			AdditionalFuelTons: sum.AdditionalFuelTons / n,
			AdditionalCost:     sum.AdditionalCost / n,
		}
	}

	commodities := p.Commodities
	if commodities == nil {
		commodities = []route.Commodity{}
	}

	return Impact{
		Voyages:     voyages,
		Averages:    avg,
		Commodities: commodities,
		Metadata: Metadata{
			FuelPricePerTon:   p.FuelPricePerTon,
			VesselCapacityTEU: p.VesselCapacityTEU,
			AvgSpeedKnots:     p.AvgSpeedKnots,
			FuelTonsPerHour:   p.FuelTonsPerHour,
			Voyages:           len(voyages),
		},
	}
}

// FromSet computes the impact for a loaded route set.
func FromSet(rs *route.RouteSet) Impact {
	if rs == nil {
		return Compute(nil, route.StatsParams{})
	}
	return Compute(rs.Routes, rs.Stats)
}
