package handlers

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/bsaid97/go-line-mapper/utils"
	"github.com/golang/geo/r2"
	"github.com/google/go-cmp/cmp"
	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func pts(xy ...float64) []r2.Point {
	points := make([]r2.Point, 0, len(xy)/2)
	for i := 0; i+1 < len(xy); i += 2 {
		points = append(points, r2.Point{X: xy[i], Y: xy[i+1]})
	}
	return points
}

func lineCollection(fields []shp.Field, lines ...[]r2.Point) *utils.FeatureCollection {
	fc := &utils.FeatureCollection{Fields: fields, ShapeType: shp.POLYLINE}
	for i, line := range lines {
		fc.Features = append(fc.Features, utils.Feature{
			Geom:       utils.NewPolyline(line),
			Properties: map[string]interface{}{"NAME": string(rune('a' + i)), "WIDTH": float64(i + 1)},
		})
	}
	return fc
}

var lineFields = []shp.Field{shp.StringField("NAME", 20), shp.FloatField("WIDTH", 19, 8)}

func TestSegmentsPerFeature(t *testing.T) {
	fc := lineCollection(lineFields, pts(0, 0, 1, 1, 2, 0), pts(5, 5, 6, 6))

	segments, fields, err := Segments(fc, false, []string{"WIDTH"})
	require.NoError(t, err)
	require.Len(t, segments, 2)

	assert.Equal(t, 1, segments[0].Index)
	assert.Equal(t, pts(0, 0, 1, 1, 2, 0), segments[0].Vertices)
	assert.Equal(t, 2, segments[1].Index)
	assert.Equal(t, 2.0, segments[1].Carried["WIDTH"])
	assert.Equal(t, []string{"WIDTH", UnitIDField}, fieldNames(fields))
}

func TestSegmentsPerVertex(t *testing.T) {
	fc := lineCollection(lineFields, pts(0, 0, 1, 1, 2, 0, 3, 3), pts(5, 5, 6, 6))

	segments, _, err := Segments(fc, true, nil)
	require.NoError(t, err)
	require.Len(t, segments, 4)

	want := [][]r2.Point{pts(0, 0, 1, 1), pts(1, 1, 2, 0), pts(2, 0, 3, 3), pts(5, 5, 6, 6)}
	for i, segment := range segments {
		assert.Equal(t, i+1, segment.Index)
		assert.Equal(t, want[i], segment.Vertices)
		assert.Equal(t, i+1, segment.Carried[UnitIDField])
	}
}

func TestSegmentsSingleTwoVertexFeature(t *testing.T) {
	fc := lineCollection(lineFields, pts(1, 2, 3, 4))

	perVertex, _, err := Segments(fc, true, nil)
	require.NoError(t, err)
	perFeature, _, err := Segments(fc, false, nil)
	require.NoError(t, err)

	if diff := cmp.Diff(perFeature, perVertex); diff != "" {
		t.Errorf("per-vertex split differs from per-feature split (-want +got):\n%s", diff)
	}
	require.Len(t, perVertex, 1)
	assert.Equal(t, pts(1, 2, 3, 4), perVertex[0].Vertices)
}

func TestSegmentsMultiPartAndEmpty(t *testing.T) {
	multi := geom.NewMultiLineString(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {1, 0}},
		{{2, 0}, {3, 0}, {4, 0}},
	})
	fc := &utils.FeatureCollection{Features: []utils.Feature{{Geom: multi}}}

	segments, _, err := Segments(fc, false, nil)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, pts(2, 0, 3, 0, 4, 0), segments[1].Vertices)

	segments, _, err = Segments(&utils.FeatureCollection{}, true, nil)
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestSegmentsSkipsUnknownCarryFields(t *testing.T) {
	fc := lineCollection(lineFields, pts(0, 0, 1, 1))
	segments, fields, err := Segments(fc, false, []string{"MISSING", "name", "NAME"})
	require.NoError(t, err)

	assert.Equal(t, []string{"NAME", UnitIDField}, fieldNames(fields))
	assert.Equal(t, "a", segments[0].Carried["NAME"])
	assert.NotContains(t, segments[0].Carried, "MISSING")
}

func TestSplitWritesOneShapefilePerUnit(t *testing.T) {
	var log bytes.Buffer
	reporter := utils.NewReporterTo(&log, nil)
	ws, err := utils.PrepareWorkspace(filepath.Join(t.TempDir(), "ws"), "CL", reporter)
	require.NoError(t, err)

	fc := lineCollection(lineFields, pts(0, 0, 1, 1, 2, 0), pts(5, 5, 6, 6))
	count, err := Split(fc, ws, true, []string{"WIDTH"}, reporter)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Contains(t, log.String(), "There are 3 lines to be processed.")
	assert.Contains(t, log.String(), "Line Setup is done!")

	segment, err := utils.ReadFeatures(ws.Name(StageSegment, 3, utils.VectorExt))
	require.NoError(t, err)
	require.Len(t, segment.Features, 1)
	assert.Equal(t, 3, segment.Features[0].Properties[UnitIDField])
	assert.Equal(t, 2.0, segment.Features[0].Properties["WIDTH"])

	paths, err := ws.ListFeatureClasses()
	require.NoError(t, err)
	assert.Len(t, paths, 3)
}

func TestCheckGeometry(t *testing.T) {
	var log bytes.Buffer
	reporter := utils.NewReporterTo(&log, nil)

	short := geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{1, 1}})
	fc := lineCollection(lineFields, pts(0, 0, 1, 1))
	fc.Features = append(fc.Features, utils.Feature{Geom: short})

	errs := CheckGeometry(fc)
	require.Len(t, errs, 1)
	assert.Equal(t, 1, errs[0].Ref)
	assert.True(t, errs[0].Fatal)
	assert.ErrorIs(t, CheckLines(fc, reporter), ErrInvalidGeometry)

	// A zero-length line is reported but still becomes a unit
	zeroLength := lineCollection(lineFields, pts(0, 0, 1, 1), pts(5, 5, 5, 5))
	errs = CheckGeometry(zeroLength)
	require.Len(t, errs, 1)
	assert.Equal(t, 1, errs[0].Ref)
	assert.False(t, errs[0].Fatal)
	assert.NoError(t, CheckLines(zeroLength, reporter))
	assert.Contains(t, log.String(), "Warning, input line may fail")

	assert.NoError(t, CheckField(fc, "width", reporter))
	assert.ErrorIs(t, CheckField(fc, "CorrTh", reporter), ErrMissingField)
	assert.Contains(t, log.String(), "Field CorrTh is not found")
}

func fieldNames(fields []shp.Field) []string {
	names := make([]string, len(fields))
	for i, field := range fields {
		names[i] = utils.FieldName(field)
	}
	return names
}
