// Package raster holds the in-memory grid used by the reference engine and
// the cell-wise operators the footprint pipeline needs. Null cells are NaN.
package raster

import (
	"errors"
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/floats"
)

// ErrNoData is returned when a grid has no valid cell.
var ErrNoData = errors.New("raster has no valid cells")

// Null is the value of a cell without data.
var Null = math.NaN()

// IsNull reports whether v is a null cell.
func IsNull(v float64) bool {
	return math.IsNaN(v)
}

// Grid is a north-up raster. Row 0 is the northern edge; Origin is the lower
// left corner of the grid.
type Grid struct {
	Cols     int
	Rows     int
	Origin   r2.Point
	CellSize float64
	Cells    []float64
}

// New allocates a grid with every cell null.
func New(cols, rows int, origin r2.Point, cellSize float64) *Grid {
	cells := make([]float64, cols*rows)
	for i := range cells {
		cells[i] = Null
	}
	return &Grid{Cols: cols, Rows: rows, Origin: origin, CellSize: cellSize, Cells: cells}
}

// NewLike allocates a null grid with the geometry of g.
func NewLike(g *Grid) *Grid {
	return New(g.Cols, g.Rows, g.Origin, g.CellSize)
}

// Clone copies g.
func (g *Grid) Clone() *Grid {
	out := NewLike(g)
	copy(out.Cells, g.Cells)
	return out
}

// InBounds reports whether (col, row) addresses a cell.
func (g *Grid) InBounds(col, row int) bool {
	return col >= 0 && row >= 0 && col < g.Cols && row < g.Rows
}

// At returns the value at (col, row).
func (g *Grid) At(col, row int) float64 {
	return g.Cells[row*g.Cols+col]
}

// Set stores v at (col, row).
func (g *Grid) Set(col, row int, v float64) {
	g.Cells[row*g.Cols+col] = v
}

// Center returns the map coordinate of the center of a cell.
func (g *Grid) Center(col, row int) r2.Point {
	return r2.Point{
		X: g.Origin.X + (float64(col)+0.5)*g.CellSize,
		Y: g.Origin.Y + (float64(g.Rows-row)-0.5)*g.CellSize,
	}
}

// CellOf returns the cell containing p.
func (g *Grid) CellOf(p r2.Point) (col, row int, ok bool) {
	col = int(math.Floor((p.X - g.Origin.X) / g.CellSize))
	row = g.Rows - 1 - int(math.Floor((p.Y-g.Origin.Y)/g.CellSize))
	return col, row, g.InBounds(col, row)
}

// Extent returns the area covered by the grid.
func (g *Grid) Extent() r2.Rect {
	return r2.Rect{
		X: r1.Interval{Lo: g.Origin.X, Hi: g.Origin.X + float64(g.Cols)*g.CellSize},
		Y: r1.Interval{Lo: g.Origin.Y, Hi: g.Origin.Y + float64(g.Rows)*g.CellSize},
	}
}

// Sample returns the value of the cell containing p, or null outside the grid.
func (g *Grid) Sample(p r2.Point) float64 {
	col, row, ok := g.CellOf(p)
	if !ok {
		return Null
	}
	return g.At(col, row)
}

// Valid returns the non-null cell values.
func (g *Grid) Valid() []float64 {
	values := make([]float64, 0, len(g.Cells))
	for _, v := range g.Cells {
		if !IsNull(v) {
			values = append(values, v)
		}
	}
	return values
}

// Min returns the smallest non-null value.
func (g *Grid) Min() (float64, error) {
	values := g.Valid()
	if len(values) == 0 {
		return 0, ErrNoData
	}
	return floats.Min(values), nil
}

// Max returns the largest non-null value.
func (g *Grid) Max() (float64, error) {
	values := g.Valid()
	if len(values) == 0 {
		return 0, ErrNoData
	}
	return floats.Max(values), nil
}

// Window returns the cell range of g covering rect, clamped to the grid.
// ok is false when rect does not overlap g.
func (g *Grid) Window(rect r2.Rect) (col0, row0, col1, row1 int, ok bool) {
	col0 = int(math.Floor((rect.X.Lo - g.Origin.X) / g.CellSize))
	col1 = int(math.Ceil((rect.X.Hi-g.Origin.X)/g.CellSize)) - 1
	top := g.Origin.Y + float64(g.Rows)*g.CellSize
	row0 = int(math.Floor((top - rect.Y.Hi) / g.CellSize))
	row1 = int(math.Ceil((top-rect.Y.Lo)/g.CellSize)) - 1

	col0, row0 = max(col0, 0), max(row0, 0)
	col1, row1 = min(col1, g.Cols-1), min(row1, g.Rows-1)
	return col0, row0, col1, row1, col0 <= col1 && row0 <= row1
}

// Sub copies the cells [col0..col1] x [row0..row1] into a new grid.
func (g *Grid) Sub(col0, row0, col1, row1 int) *Grid {
	cols, rows := col1-col0+1, row1-row0+1
	top := g.Origin.Y + float64(g.Rows-row0)*g.CellSize
	origin := r2.Point{
		X: g.Origin.X + float64(col0)*g.CellSize,
		Y: top - float64(rows)*g.CellSize,
	}
	out := New(cols, rows, origin, g.CellSize)
	for row := 0; row < rows; row++ {
		copy(out.Cells[row*cols:(row+1)*cols], g.Cells[(row0+row)*g.Cols+col0:(row0+row)*g.Cols+col0+cols])
	}
	return out
}
