package raster

import "errors"

// ErrNoInput is returned by Calculate without input grids.
var ErrNoInput = errors.New("no input grids")

// CellFunc maps the values of the input grids at one location to an output
// value. Inputs may be null.
type CellFunc func(values []float64) float64

// Calculate evaluates fn for every cell of the first grid. The other grids are
// sampled at the cell center, so they need not share its geometry.
func Calculate(fn CellFunc, grids ...*Grid) (*Grid, error) {
	if len(grids) == 0 {
		return nil, ErrNoInput
	}
	base := grids[0]
	out := NewLike(base)
	values := make([]float64, len(grids))
	for row := 0; row < base.Rows; row++ {
		for col := 0; col < base.Cols; col++ {
			values[0] = base.At(col, row)
			center := base.Center(col, row)
			for i, g := range grids[1:] {
				values[i+1] = g.Sample(center)
			}
			out.Set(col, row, fn(values))
		}
	}
	return out, nil
}

// Minimum returns the smallest non-null value of the inputs, or null.
func Minimum(values []float64) float64 {
	result := Null
	for _, v := range values {
		if IsNull(v) {
			continue
		}
		if IsNull(result) || v < result {
			result = v
		}
	}
	return result
}

// Sum adds the inputs; any null input gives null.
func Sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		if IsNull(v) {
			return Null
		}
		total += v
	}
	return total
}
