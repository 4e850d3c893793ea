// Package traffic bins ship positions into a coarse density grid for the
// dashboard's heat layer.
package traffic

import (
	"cmp"
	"math"
	"slices"

	"github.com/star/searoute/internal/fleet"
	"github.com/star/searoute/internal/route"
)

// DefaultCellDegrees is the grid resolution used when none is given.
const DefaultCellDegrees = 1.0

// Cell is one grid cell as a [lat, lon, weight] triple. Lat and lon are the
// cell centre; weight is the sample count divided by the busiest cell's count.
type Cell [3]float64

type cellKey struct{ row, col int }

// Density bins the frame's current positions and every trail sample into a
// cellDeg x cellDeg grid. Cells are returned busiest first, then by latitude
// and longitude. A nil frame and empty trails give an empty grid.
func Density(frame *fleet.Frame, trails map[string][]route.Position, cellDeg float64) []Cell {
	if cellDeg <= 0 || math.IsNaN(cellDeg) {
		cellDeg = DefaultCellDegrees
	}

	counts := make(map[cellKey]int)
	add := func(p route.Position) {
		if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) {
			return
		}
		k := cellKey{
			row: int(math.Floor(p.Latitude / cellDeg)),
			col: int(math.Floor(p.Longitude / cellDeg)),
		}
		counts[k]++
	}

	if frame != nil {
		for _, s := range frame.Ships {
			add(s.Position)
		}
	}
	for _, trail := range trails {
		for _, p := range trail {
			add(p)
		}
	}

	peak := 0
	for _, n := range counts {
		peak = max(peak, n)
	}

	cells := make([]Cell, 0, len(counts))
	for k, n := range counts {
		cells = append(cells, Cell{
			(float64(k.row) + 0.5) * cellDeg,
			(float64(k.col) + 0.5) * cellDeg,
			float64(n) / float64(peak),
		})
	}

	slices.SortFunc(cells, func(a, b Cell) int {
		if c := cmp.Compare(b[2], a[2]); c != 0 {
			return c
		}
		if c := cmp.Compare(a[0], b[0]); c != 0 {
			return c
		}
		return cmp.Compare(a[1], b[1])
	})
	return cells
}
