package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/bsaid97/go-line-mapper/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	flags = runFlags{}
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCoresCommand(t *testing.T) {
	coresFile := filepath.Join(t.TempDir(), "mpc.txt")

	out, err := execute(t, "cores", "1", "--cores-file", coresFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Using 1 cores.")

	data, err := os.ReadFile(coresFile)
	require.NoError(t, err)
	assert.Equal(t, "1", string(data))

	_, err = execute(t, "cores", "zero", "--cores-file", coresFile)
	assert.Error(t, err)
}

func TestCenterlineRejectsUnreadableParams(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "centerline",
		"--params", filepath.Join(dir, "missing.txt"),
		"--log", filepath.Join(dir, "log.txt"),
		"--cores-file", filepath.Join(dir, "mpc.txt"))
	assert.Error(t, err)
}

func TestFootprintFlagOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	params := filepath.Join(dir, "footprint.yaml")
	require.NoError(t, os.WriteFile(params, []byte(`input_lines: lines.shp
canopy_raster: canopy.asc
cost_raster: cost.asc
corridor_threshold_field: CorrTh
max_line_width: 10
expand_shrink_cells: 3
output: footprint.shp
workspace: from-yaml
`), 0644))

	cfg, err := utils.LoadFootprintConfig(params)
	require.NoError(t, err)
	assert.Equal(t, "from-yaml", cfg.Workspace)

	flags = runFlags{}
	require.NoError(t, footprintCmd.Flags().Set("workspace", "from-flag"))
	require.NoError(t, footprintCmd.Flags().Set("fail-fast", "true"))
	applyOverrides(footprintCmd, &cfg.RunOptions)

	assert.Equal(t, "from-flag", cfg.Workspace)
	assert.True(t, cfg.FailFast)
}

func TestCenterlineSavesResolvedParams(t *testing.T) {
	dir := t.TempDir()
	params := filepath.Join(dir, "centerline.yaml")
	require.NoError(t, os.WriteFile(params, []byte(`input_lines: `+filepath.Join(dir, "missing.shp")+`
cost_raster: `+filepath.Join(dir, "cost.asc")+`
processing_radius: 15
process_segments: true
output: `+filepath.Join(dir, "centerline.shp")+`
`), 0644))
	saved := filepath.Join(dir, "params.txt")

	// The input does not exist, so the run fails after the parameters are saved
	_, err := execute(t, "centerline",
		"--params", params,
		"--save-params", saved,
		"--log", filepath.Join(dir, "log.txt"),
		"--cores-file", filepath.Join(dir, "mpc.txt"))
	require.Error(t, err)

	want, err := utils.LoadCenterlineConfig(params)
	require.NoError(t, err)
	got, err := utils.LoadCenterlineConfig(saved)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
