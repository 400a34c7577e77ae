package handlers

import (
	"github.com/bsaid97/go-line-mapper/raster"
	"github.com/golang/geo/r2"
	"github.com/jonas-p/go-shp"
)

// Direction selects which way a cost-distance accumulation is read.
type Direction int

const (
	// ToSource accumulates the cost of travelling from any cell to the source.
	ToSource Direction = iota
	// FromSource accumulates the cost of travelling away from the source.
	FromSource
)

func (d Direction) String() string {
	if d == FromSource {
		return "FROM_SOURCE"
	}
	return "TO_SOURCE"
}

// Backend is the geospatial analysis service the unit pipelines run against.
// Every argument naming an artifact is a path in the workspace. Implementations
// must be safe for concurrent calls on disjoint paths.
type Backend interface {
	// CreatePointFeature writes a one-point feature class with the given schema.
	CreatePointFeature(dst string, schema []shp.Field, at r2.Point) error
	Buffer(src string, dst string, radius float64) error
	Extent(src string) (r2.Rect, error)
	// ClipRaster cuts src to box and masks every cell outside the clip
	// geometry.
	ClipRaster(src string, box r2.Rect, clip string, dst string) error
	// CostDistance accumulates cost from the source features over the cost
	// raster. backlink may be empty when no path will be traced.
	CostDistance(source string, cost string, dist string, backlink string, dir Direction) error
	// CostPath traces the best single path from the destination features back
	// to the source of dist.
	CostPath(dest string, dist string, backlink string, dst string) error
	Corridor(a string, b string, dst string) error
	RasterMinimum(src string) (float64, error)
	// Calculate evaluates fn cell by cell over the inputs.
	Calculate(dst string, fn raster.CellFunc, inputs ...string) error
	Expand(src string, dst string, cells int, zone float64) error
	Shrink(src string, dst string, cells int, zone float64) error
	BoundaryClean(src string, dst string) error
	// SetNull nulls every cell for which null returns true.
	SetNull(src string, dst string, null func(v float64) bool) error
	RasterToPolygon(src string, dst string, simplify bool) error
	Merge(srcs []string, dst string) error
	Dissolve(src string, dst string) error
	AddField(path string, field shp.Field, value interface{}) error
	// Delete removes an artifact. Deleting a missing artifact succeeds.
	Delete(path string) error
}
