package handlers

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/bsaid97/go-line-mapper/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geos"
)

func prepareWorkspace(t *testing.T, code string) (*utils.Workspace, *bytes.Buffer) {
	t.Helper()
	var log bytes.Buffer
	ws, err := utils.PrepareWorkspace(filepath.Join(t.TempDir(), "ws"), code, utils.NewReporterTo(&log, nil))
	require.NoError(t, err)
	return ws, &log
}

func TestMergeSingleCenterline(t *testing.T) {
	ws, log := prepareWorkspace(t, CenterlineCode)
	backend := newFakeBackend()
	output := ws.Name(StageCenterline, 1, utils.VectorExt)
	require.NoError(t, os.WriteFile(output, nil, 0644))

	final := filepath.Join(t.TempDir(), "final.shp")
	merged, err := MergeResults(backend, ws, StageCenterline, final, CenterlineMerge, utils.NewReporterTo(log, nil))
	require.NoError(t, err)

	assert.Equal(t, 1, merged)
	assert.Equal(t, []string{"CL_CenterLine_1.shp"}, backend.mergedOutputs())
	assert.Equal(t, 3.0, backend.fields[CorridorThresholdField])
	assert.Zero(t, backend.dissolve)
	assert.True(t, backend.deleted[output])
	assert.FileExists(t, final)
	assert.Contains(t, log.String(), "Merging is done!")
}

func TestMergeFootprintsDissolves(t *testing.T) {
	ws, log := prepareWorkspace(t, FootprintCode)
	backend := newFakeBackend()
	for _, index := range []int{2, 10, 1} {
		require.NoError(t, os.WriteFile(ws.Name(StageFootprint, index, utils.VectorExt), nil, 0644))
	}

	final := filepath.Join(t.TempDir(), "final.shp")
	merged, err := MergeResults(backend, ws, StageFootprint, final, FootprintMerge, utils.NewReporterTo(log, nil))
	require.NoError(t, err)

	assert.Equal(t, 3, merged)
	assert.Equal(t, 1, backend.dissolve)
	assert.Empty(t, backend.fields)
	assert.True(t, backend.deleted[ws.Path(StageMerge, utils.VectorExt)])
	assertNoArtifacts(t, ws.Dir)
}

func TestMergeWithoutOutputs(t *testing.T) {
	ws, log := prepareWorkspace(t, FootprintCode)
	final := filepath.Join(t.TempDir(), "final.geojson")

	merged, err := MergeResults(newFakeBackend(), ws, StageFootprint, final, FootprintMerge, utils.NewReporterTo(log, nil))
	require.NoError(t, err)
	assert.Zero(t, merged)

	fc, err := utils.ReadFeatures(final)
	require.NoError(t, err)
	assert.Empty(t, fc.Features)
}

func square(t *testing.T, ctx *geos.Context, x, y, size float64) *geos.Geom {
	t.Helper()
	return ctx.NewPolygon([][][]float64{{
		{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y},
	}})
}

func TestDissolveGeometries(t *testing.T) {
	ctx := geos.NewContext()
	geometries := []*geos.Geom{
		square(t, ctx, 0, 0, 1),
		square(t, ctx, 50, 50, 1),
		square(t, ctx, 1, 0, 1),
		square(t, ctx, 0.5, 0.5, 1),
	}

	dissolved, err := DissolveGeometries(geometries)
	require.NoError(t, err)
	require.Len(t, dissolved, 2)

	assert.InDelta(t, 2.5, dissolved[0].Area(), 1e-9)
	assert.InDelta(t, 1.0, dissolved[1].Area(), 1e-9)
}

func TestCascadedUnionEmpty(t *testing.T) {
	_, err := CascadedUnion(nil)
	assert.Error(t, err)
}
