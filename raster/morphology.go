package raster

import (
	"math"
	"sort"
)

// Expand grows the cells equal to zone by the given number of cells into
// neighbouring non-null cells (chessboard distance).
func Expand(g *Grid, cells int, zone float64) *Grid {
	out := g.Clone()
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			v := g.At(col, row)
			if IsNull(v) || v == zone {
				continue
			}
			if hasZoneWithin(g, col, row, cells, zone) {
				out.Set(col, row, zone)
			}
		}
	}
	return out
}

// Shrink removes the given number of cells from the edge of zone regions.
// A removed cell takes the most frequent value among its non-zone
// neighbours in range, the smallest one on ties.
func Shrink(g *Grid, cells int, zone float64) *Grid {
	out := g.Clone()
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			if g.At(col, row) != zone {
				continue
			}
			counts := map[float64]int{}
			for dr := -cells; dr <= cells; dr++ {
				for dc := -cells; dc <= cells; dc++ {
					c, r := col+dc, row+dr
					if !g.InBounds(c, r) {
						continue
					}
					v := g.At(c, r)
					if IsNull(v) || v == zone {
						continue
					}
					counts[v]++
				}
			}
			if len(counts) == 0 {
				continue
			}
			out.Set(col, row, mostFrequent(counts))
		}
	}
	return out
}

func hasZoneWithin(g *Grid, col, row, cells int, zone float64) bool {
	for dr := -cells; dr <= cells; dr++ {
		for dc := -cells; dc <= cells; dc++ {
			c, r := col+dc, row+dr
			if g.InBounds(c, r) && g.At(c, r) == zone {
				return true
			}
		}
	}
	return false
}

func mostFrequent(counts map[float64]int) float64 {
	values := make([]float64, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Float64s(values)
	best := values[0]
	for _, v := range values[1:] {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best
}

// BoundaryClean smooths zone edges with a 3x3 closing followed by an
// opening. Null cells stay null and never contribute.
func BoundaryClean(g *Grid) *Grid {
	closed := filter3x3(filter3x3(g, math.Max), math.Min)
	return filter3x3(filter3x3(closed, math.Min), math.Max)
}

func filter3x3(g *Grid, pick func(a, b float64) float64) *Grid {
	out := NewLike(g)
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			v := g.At(col, row)
			if IsNull(v) {
				continue
			}
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					c, r := col+dc, row+dr
					if !g.InBounds(c, r) {
						continue
					}
					if n := g.At(c, r); !IsNull(n) {
						v = pick(v, n)
					}
				}
			}
			out.Set(col, row, v)
		}
	}
	return out
}
