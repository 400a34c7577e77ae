package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bsaid97/go-line-mapper/handlers"
	"github.com/bsaid97/go-line-mapper/raster"
	"github.com/bsaid97/go-line-mapper/utils"
	"github.com/golang/geo/r2"
	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func uniformGrid(t *testing.T, dir string, name string, cols, rows int, value float64) string {
	t.Helper()
	g := raster.New(cols, rows, r2.Point{X: 0, Y: 0}, 1)
	for i := range g.Cells {
		g.Cells[i] = value
	}
	path := filepath.Join(dir, name)
	require.NoError(t, raster.WriteASCII(path, g))
	return path
}

func writeLines(t *testing.T, path string, fields []shp.Field, lines [][]r2.Point, props []map[string]interface{}) {
	t.Helper()
	fc := &utils.FeatureCollection{Fields: fields, ShapeType: shp.POLYLINE}
	for i, line := range lines {
		properties := map[string]interface{}{}
		if props != nil {
			properties = props[i]
		}
		fc.Features = append(fc.Features, utils.Feature{Geom: utils.NewPolyline(line), Properties: properties})
	}
	require.NoError(t, utils.WriteFeatures(path, fc))
}

func readFeatures(t *testing.T, path string) *utils.FeatureCollection {
	t.Helper()
	fc, err := utils.ReadFeatures(path)
	require.NoError(t, err)
	return fc
}

func TestClipRasterMasksOutsideBuffer(t *testing.T) {
	dir := t.TempDir()
	e := New()
	cost := uniformGrid(t, dir, "cost.asc", 10, 10, 1)
	line := filepath.Join(dir, "line.shp")
	writeLines(t, line, nil, [][]r2.Point{{{X: 2, Y: 5}, {X: 7, Y: 5}}}, nil)

	buffer := filepath.Join(dir, "buffer.shp")
	require.NoError(t, e.Buffer(line, buffer, 1.5))
	box, err := e.Extent(buffer)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, box.X.Lo, 1e-9)
	assert.InDelta(t, 6.5, box.Y.Hi, 1e-9)

	clip := filepath.Join(dir, "clip.asc")
	require.NoError(t, e.ClipRaster(cost, box, buffer, clip))
	g, err := raster.ReadASCII(clip)
	require.NoError(t, err)

	assert.Equal(t, 9, g.Cols)
	assert.Equal(t, 4, g.Rows)
	assert.True(t, raster.IsNull(g.Sample(r2.Point{X: 0.5, Y: 6.5})))
	assert.Equal(t, 1.0, g.Sample(r2.Point{X: 4.5, Y: 5.5}))
}

func TestClipRasterOutsideExtent(t *testing.T) {
	dir := t.TempDir()
	e := New()
	cost := uniformGrid(t, dir, "cost.asc", 4, 4, 1)
	line := filepath.Join(dir, "line.shp")
	writeLines(t, line, nil, [][]r2.Point{{{X: 50, Y: 50}, {X: 60, Y: 50}}}, nil)
	buffer := filepath.Join(dir, "buffer.shp")
	require.NoError(t, e.Buffer(line, buffer, 1))
	box, err := e.Extent(buffer)
	require.NoError(t, err)

	err = e.ClipRaster(cost, box, buffer, filepath.Join(dir, "clip.asc"))
	assert.ErrorIs(t, err, ErrOutsideRaster)
}

func TestCostDistanceAndPath(t *testing.T) {
	dir := t.TempDir()
	e := New()
	cost := uniformGrid(t, dir, "cost.asc", 6, 6, 1)
	origin := filepath.Join(dir, "origin.shp")
	destination := filepath.Join(dir, "destination.shp")
	require.NoError(t, e.CreatePointFeature(origin, nil, r2.Point{X: 0.5, Y: 0.5}))
	require.NoError(t, e.CreatePointFeature(destination, nil, r2.Point{X: 4.5, Y: 0.5}))

	dist := filepath.Join(dir, "dist.asc")
	back := filepath.Join(dir, "back.asc")
	require.NoError(t, e.CostDistance(origin, cost, dist, back, handlers.ToSource))

	out := filepath.Join(dir, "path.shp")
	require.NoError(t, e.CostPath(destination, dist, back, out))

	fc := readFeatures(t, out)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, 1, fc.Features[0].Properties[DestIDField])
	vertices, err := utils.Vertices(fc.Features[0].Geom)
	require.NoError(t, err)
	assert.Equal(t, r2.Point{X: 0.5, Y: 0.5}, vertices[0])
	assert.Equal(t, r2.Point{X: 4.5, Y: 0.5}, vertices[len(vertices)-1])
	assert.Len(t, vertices, 5)
}

func TestCostPathCoincidentEndpoints(t *testing.T) {
	dir := t.TempDir()
	e := New()
	cost := uniformGrid(t, dir, "cost.asc", 3, 3, 1)
	point := filepath.Join(dir, "point.shp")
	require.NoError(t, e.CreatePointFeature(point, nil, r2.Point{X: 1.5, Y: 1.5}))

	dist := filepath.Join(dir, "dist.asc")
	back := filepath.Join(dir, "back.asc")
	require.NoError(t, e.CostDistance(point, cost, dist, back, handlers.ToSource))

	err := e.CostPath(point, dist, back, filepath.Join(dir, "path.shp"))
	assert.ErrorIs(t, err, raster.ErrDegeneratePath)
}

func TestRasterToPolygon(t *testing.T) {
	dir := t.TempDir()
	e := New()
	g := raster.New(5, 4, r2.Point{X: 0, Y: 0}, 1)
	copy(g.Cells, []float64{
		1, 1, raster.Null, raster.Null, raster.Null,
		1, 1, raster.Null, raster.Null, 1,
		raster.Null, raster.Null, raster.Null, raster.Null, raster.Null,
		raster.Null, raster.Null, raster.Null, raster.Null, raster.Null,
	})
	src := filepath.Join(dir, "zones.asc")
	require.NoError(t, raster.WriteASCII(src, g))

	out := filepath.Join(dir, "zones.shp")
	require.NoError(t, e.RasterToPolygon(src, out, false))

	fc := readFeatures(t, out)
	require.Len(t, fc.Features, 2)
	areas := map[float64]bool{}
	for _, feature := range fc.Features {
		assert.Equal(t, 1, feature.Properties[GridCodeField])
		polygon, ok := feature.Geom.(*geom.Polygon)
		require.True(t, ok, "got %T", feature.Geom)
		areas[polygon.Area()] = true
	}
	assert.Equal(t, map[float64]bool{4: true, 1: true}, areas)
}

func TestRasterToPolygonAllNull(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "empty.asc")
	require.NoError(t, raster.WriteASCII(src, raster.New(3, 3, r2.Point{}, 1)))

	out := filepath.Join(dir, "empty.shp")
	require.NoError(t, New().RasterToPolygon(src, out, true))
	assert.Empty(t, readFeatures(t, out).Features)
}

func TestMergeDissolveAndAddField(t *testing.T) {
	dir := t.TempDir()
	e := New()
	lines := filepath.Join(dir, "lines.shp")
	writeLines(t, lines, nil, [][]r2.Point{
		{{X: 0, Y: 0}, {X: 10, Y: 0}},
		{{X: 5, Y: 0}, {X: 15, Y: 0}},
		{{X: 100, Y: 100}, {X: 110, Y: 100}},
	}, nil)

	var buffers []string
	for i, line := range readFeatures(t, lines).Features {
		single := filepath.Join(dir, "line_"+string(rune('a'+i))+".shp")
		require.NoError(t, utils.WriteFeatures(single, &utils.FeatureCollection{Features: []utils.Feature{line}}))
		buffer := filepath.Join(dir, "buffer_"+string(rune('a'+i))+".shp")
		require.NoError(t, e.Buffer(single, buffer, 1))
		buffers = append(buffers, buffer)
	}

	merged := filepath.Join(dir, "merged.shp")
	require.NoError(t, e.Merge(buffers, merged))
	assert.Len(t, readFeatures(t, merged).Features, 3)

	dissolved := filepath.Join(dir, "dissolved.shp")
	require.NoError(t, e.Dissolve(merged, dissolved))
	assert.Len(t, readFeatures(t, dissolved).Features, 2)

	require.NoError(t, e.AddField(dissolved, shp.FloatField("CorridorTh", 19, 8), 3.0))
	fc := readFeatures(t, dissolved)
	assert.True(t, fc.HasField("CorridorTh"))
	for _, feature := range fc.Features {
		assert.Equal(t, 3.0, feature.Properties["CorridorTh"])
	}
}

func TestSharedRasterIsReadOnce(t *testing.T) {
	dir := t.TempDir()
	cost := uniformGrid(t, dir, "cost.asc", 2, 2, 7)
	e := New(cost)

	minimum, err := e.RasterMinimum(cost)
	require.NoError(t, err)
	assert.Equal(t, 7.0, minimum)

	require.NoError(t, os.Remove(cost))
	minimum, err = e.RasterMinimum(cost)
	require.NoError(t, err)
	assert.Equal(t, 7.0, minimum)

	_, err = New().RasterMinimum(cost)
	assert.Error(t, err)
}

func TestSetNullAndDelete(t *testing.T) {
	dir := t.TempDir()
	e := New()
	g := raster.New(3, 1, r2.Point{}, 1)
	copy(g.Cells, []float64{0, 1, raster.Null})
	src := filepath.Join(dir, "src.asc")
	require.NoError(t, raster.WriteASCII(src, g))

	dst := filepath.Join(dir, "dst.asc")
	require.NoError(t, e.SetNull(src, dst, handlers.NotPositive))
	out, err := raster.ReadASCII(dst)
	require.NoError(t, err)
	assert.True(t, raster.IsNull(out.Cells[0]))
	assert.Equal(t, 1.0, out.Cells[1])
	assert.True(t, raster.IsNull(out.Cells[2]))

	require.NoError(t, e.Delete(dst))
	require.NoError(t, e.Delete(dst))
	_, err = os.Stat(dst)
	assert.True(t, os.IsNotExist(err))
}
