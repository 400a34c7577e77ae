package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/bsaid97/go-line-mapper/handlers"
	"github.com/bsaid97/go-line-mapper/raster"
	"github.com/bsaid97/go-line-mapper/utils"
	"github.com/golang/geo/r2"
	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geos"
)

// ErrOutsideRaster is returned when a clip box misses the source raster.
var ErrOutsideRaster = errors.New("extent does not overlap raster")

// DestIDField identifies the destination a traced path ends at.
const DestIDField = "DestID"

// GridCodeField holds the cell value a polygon was traced from.
const GridCodeField = "GRIDCODE"

// ClipRaster copies the cells of src inside box and nulls those whose center
// falls outside the clip geometry.
func (e *Engine) ClipRaster(src string, box r2.Rect, clip string, dst string) error {
	grid, err := e.readRaster(src)
	if err != nil {
		return err
	}
	col0, row0, col1, row1, ok := grid.Window(box)
	if !ok {
		return fmt.Errorf("%w: %s", ErrOutsideRaster, src)
	}
	out := grid.Sub(col0, row0, col1, row1)

	mask, err := utils.ReadFeatures(clip)
	if err != nil {
		return err
	}
	ctx := geos.NewContext()
	shapes := make([]*geos.Geom, 0, len(mask.Features))
	for i, feature := range mask.Features {
		g, err := utils.ToGEOS(ctx, feature.Geom)
		if err != nil {
			return fmt.Errorf("clip feature %d: %w", i, err)
		}
		shapes = append(shapes, g)
	}
	union, err := handlers.CascadedUnion(shapes)
	if err != nil {
		return fmt.Errorf("clip geometry %s: %w", clip, err)
	}
	defer union.Destroy()
	prepared := union.Prepare()
	defer prepared.Destroy()

	for row := 0; row < out.Rows; row++ {
		for col := 0; col < out.Cols; col++ {
			if raster.IsNull(out.At(col, row)) {
				continue
			}
			center := out.Center(col, row)
			point := ctx.NewPoint([]float64{center.X, center.Y})
			if !prepared.Contains(point) {
				out.Set(col, row, raster.Null)
			}
			point.Destroy()
		}
	}
	return raster.WriteASCII(dst, out)
}

// CostDistance accumulates cost from the cells under the source features.
// Step costs are symmetric, so both directions give the same surface.
func (e *Engine) CostDistance(source string, cost string, dist string, backlink string, dir handlers.Direction) error {
	grid, err := e.readRaster(cost)
	if err != nil {
		return err
	}
	fc, err := utils.ReadFeatures(source)
	if err != nil {
		return err
	}

	var sources [][2]int
	for _, feature := range fc.Features {
		if feature.Geom == nil {
			continue
		}
		flat := feature.Geom.FlatCoords()
		stride := feature.Geom.Stride()
		for i := 0; i+1 < len(flat); i += stride {
			if col, row, ok := grid.CellOf(r2.Point{X: flat[i], Y: flat[i+1]}); ok {
				sources = append(sources, [2]int{col, row})
			}
		}
	}

	distance, back, err := raster.CostDistance(grid, sources)
	if err != nil {
		return fmt.Errorf("cost distance %s from %s: %w", dir, source, err)
	}
	if err := raster.WriteASCII(dist, distance); err != nil {
		return err
	}
	if backlink == "" {
		return nil
	}
	return raster.WriteASCII(backlink, back)
}

// CostPath traces one path per destination feature, from the source to the
// destination.
func (e *Engine) CostPath(dest string, dist string, backlink string, dst string) error {
	grids, err := e.readRasters([]string{dist, backlink})
	if err != nil {
		return err
	}
	fc, err := utils.ReadFeatures(dest)
	if err != nil {
		return err
	}

	out := &utils.FeatureCollection{
		Fields:     []shp.Field{shp.NumberField(DestIDField, 10)},
		ShapeType:  shp.POLYLINE,
		Projection: fc.Projection,
	}
	for i, feature := range fc.Features {
		at, err := utils.PointOf(feature.Geom)
		if err != nil {
			return err
		}
		path, err := raster.CostPath(grids[0], grids[1], at)
		if err != nil {
			return err
		}
		for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
			path[l], path[r] = path[r], path[l]
		}
		out.Features = append(out.Features, utils.Feature{
			Geom:       utils.NewPolyline(path),
			Properties: map[string]interface{}{DestIDField: i + 1},
		})
	}
	if len(out.Features) == 0 {
		return fmt.Errorf("no destination in %s", dest)
	}
	return utils.WriteFeatures(dst, out)
}

// Corridor adds two accumulated cost surfaces.
func (e *Engine) Corridor(a string, b string, dst string) error {
	return e.Calculate(dst, raster.Sum, a, b)
}

// RasterMinimum returns the smallest valid cell of src.
func (e *Engine) RasterMinimum(src string) (float64, error) {
	grid, err := e.readRaster(src)
	if err != nil {
		return 0, err
	}
	minimum, err := grid.Min()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", src, err)
	}
	return minimum, nil
}

// Calculate evaluates fn on the grid of the first input.
func (e *Engine) Calculate(dst string, fn raster.CellFunc, inputs ...string) error {
	grids, err := e.readRasters(inputs)
	if err != nil {
		return err
	}
	out, err := raster.Calculate(fn, grids...)
	if err != nil {
		return err
	}
	return raster.WriteASCII(dst, out)
}

func (e *Engine) Expand(src string, dst string, cells int, zone float64) error {
	return e.transform(src, dst, func(g *raster.Grid) *raster.Grid {
		return raster.Expand(g, cells, zone)
	})
}

func (e *Engine) Shrink(src string, dst string, cells int, zone float64) error {
	return e.transform(src, dst, func(g *raster.Grid) *raster.Grid {
		return raster.Shrink(g, cells, zone)
	})
}

func (e *Engine) BoundaryClean(src string, dst string) error {
	return e.transform(src, dst, raster.BoundaryClean)
}

// SetNull copies src with every cell matching null set to null.
func (e *Engine) SetNull(src string, dst string, null func(v float64) bool) error {
	return e.transform(src, dst, func(g *raster.Grid) *raster.Grid {
		out := g.Clone()
		for i, v := range out.Cells {
			if !raster.IsNull(v) && null(v) {
				out.Cells[i] = raster.Null
			}
		}
		return out
	})
}

func (e *Engine) transform(src string, dst string, fn func(*raster.Grid) *raster.Grid) error {
	grid, err := e.readRaster(src)
	if err != nil {
		return err
	}
	return raster.WriteASCII(dst, fn(grid))
}

// RasterToPolygon traces the zones of equal value of src. Every polygon is
// written as its own single-part record with the zone value in GRIDCODE.
func (e *Engine) RasterToPolygon(src string, dst string, simplify bool) error {
	grid, err := e.readRaster(src)
	if err != nil {
		return err
	}

	ctx := geos.NewContext()
	runs := map[float64][]*geos.Geom{}
	for row := 0; row < grid.Rows; row++ {
		for col := 0; col < grid.Cols; {
			v := grid.At(col, row)
			if raster.IsNull(v) {
				col++
				continue
			}
			end := col + 1
			for end < grid.Cols && grid.At(end, row) == v {
				end++
			}
			runs[v] = append(runs[v], runPolygon(ctx, grid, row, col, end))
			col = end
		}
	}

	values := make([]float64, 0, len(runs))
	for v := range runs {
		values = append(values, v)
	}
	sort.Float64s(values)

	out := &utils.FeatureCollection{
		Fields: []shp.Field{
			shp.NumberField("ID", 10),
			shp.NumberField(GridCodeField, 10),
		},
		ShapeType: shp.POLYGON,
	}
	for _, v := range values {
		zone, err := handlers.CascadedUnion(runs[v])
		if err != nil {
			return err
		}
		if simplify {
			simplified := zone.TopologyPreserveSimplify(grid.CellSize / 2)
			zone.Destroy()
			zone = simplified
		}
		for _, part := range utils.PolygonParts(zone) {
			t, err := utils.FromGEOS(part)
			if err != nil {
				zone.Destroy()
				return err
			}
			out.Features = append(out.Features, utils.Feature{
				Geom: t,
				Properties: map[string]interface{}{
					"ID":          len(out.Features) + 1,
					GridCodeField: int(math.Round(v)),
				},
			})
		}
		zone.Destroy()
	}
	return utils.WriteFeatures(dst, out)
}

// runPolygon is the rectangle covering cells [col0, col1) of a row.
func runPolygon(ctx *geos.Context, grid *raster.Grid, row int, col0 int, col1 int) *geos.Geom {
	ext := grid.Extent()
	x0, y1 := utils.TruncateCoordinates(ext.X.Lo+float64(col0)*grid.CellSize, ext.Y.Hi-float64(row)*grid.CellSize)
	x1, y0 := utils.TruncateCoordinates(ext.X.Lo+float64(col1)*grid.CellSize, ext.Y.Hi-float64(row+1)*grid.CellSize)
	return ctx.NewPolygon([][][]float64{{
		{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0},
	}})
}
