package stats

import (
	"math"
	"testing"

	"github.com/star/searoute/internal/route"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func testParams() route.StatsParams {
	return route.StatsParams{
		FuelPricePerTon:   650,
		VesselCapacityTEU: 14000,
		AvgSpeedKnots:     15.5,
		FuelTonsPerHour:   6.25,
		Commodities: []route.Commodity{
			{Name: "Grain", PriceIncreasePercent: 4.5, AnnualVolumeMillionTn: 120},
		},
	}
}

// detour goes north then east instead of sailing the diagonal.
func detour() route.Route {
	return route.Route{Name: "detour", Vessel: "MV Long Way", Waypoints: []route.Waypoint{
		{Latitude: 0, Longitude: 0, TimeFraction: 0},
		{Latitude: 10, Longitude: 0, TimeFraction: 50},
		{Latitude: 10, Longitude: 10, TimeFraction: 100},
	}}
}

func direct() route.Route {
	return route.Route{Name: "direct", Waypoints: []route.Waypoint{
		{Latitude: 0, Longitude: 0, TimeFraction: 0},
		{Latitude: 10, Longitude: 10, TimeFraction: 100},
	}}
}

func TestCompute(t *testing.T) {
	p := testParams()
	got := Compute([]route.Route{detour(), direct()}, p)

	if len(got.Voyages) != 2 {
		t.Fatalf("voyages = %d, want 2", len(got.Voyages))
	}

	d := got.Voyages[0]
	wantDirect := route.Haversine(0, 0, 10, 10)
	wantDiverted := route.Haversine(0, 0, 10, 0) + route.Haversine(10, 0, 10, 10)
	if !near(d.DirectNM, wantDirect) || !near(d.DivertedNM, wantDiverted) {
		t.Errorf("detour distances = %v / %v, want %v / %v", d.DirectNM, d.DivertedNM, wantDirect, wantDiverted)
	}
	extra := wantDiverted - wantDirect
	if !near(d.AdditionalNM, extra) {
		t.Errorf("additional nm = %v, want %v", d.AdditionalNM, extra)
	}
	hours := extra / 15.5
	if !near(d.AdditionalHours, hours) || !near(d.AdditionalFuelTons, hours*6.25) || !near(d.AdditionalCost, hours*6.25*650) {
		t.Errorf("detour = %+v", d)
	}

	s := got.Voyages[1]
	if s.AdditionalNM != 0 || s.AdditionalCost != 0 {
		t.Errorf("direct route should cost nothing extra: %+v", s)
	}

	if !near(got.Averages.AdditionalNM, extra/2) || !near(got.Averages.AdditionalCost, d.AdditionalCost/2) {
		t.Errorf("averages = %+v", got.Averages)
	}
	if got.Metadata.Voyages != 2 || got.Metadata.VesselCapacityTEU != 14000 || got.Metadata.AvgSpeedKnots != 15.5 {
		t.Errorf("metadata = %+v", got.Metadata)
	}
	if len(got.Commodities) != 1 || got.Commodities[0].Name != "Grain" {
		t.Errorf("commodities = %+v", got.Commodities)
	}
}

func TestComputeZeroSpeed(t *testing.T) {
	p := testParams()
	p.AvgSpeedKnots = 0
	got := Compute([]route.Route{detour()}, p)
	if v := got.Voyages[0]; v.AdditionalHours != 0 || v.AdditionalCost != 0 || v.AdditionalNM <= 0 {
		t.Errorf("zero speed voyage = %+v", v)
	}
}

func TestFromSetNil(t *testing.T) {
	got := FromSet(nil)
	if len(got.Voyages) != 0 || got.Commodities == nil {
		t.Errorf("empty impact = %+v", got)
	}
	if got.Averages != (Averages{}) {
		t.Errorf("averages should be zero: %+v", got.Averages)
	}
}
