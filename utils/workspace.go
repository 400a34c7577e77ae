package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Raster artifacts are Esri ASCII grids.
const (
	VectorExt = ".shp"
	RasterExt = ".asc"
)

// Workspace is the scratch directory of one run. Every unit owns the
// artifacts named <code>_<Stage>_<index>, so concurrent units never share a path.
type Workspace struct {
	Dir  string
	Code string
}

// PrepareWorkspace creates the scratch directory, or empties it of old vector
// and raster artifacts when it already exists.
func PrepareWorkspace(dir string, code string, reporter *Reporter) (*Workspace, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace %s: %w", dir, err)
	}

	info, err := os.Stat(absDir)
	switch {
	case err == nil && info.IsDir():
		reporter.Log("Scratch workspace %s already exists.", absDir)
	case err == nil:
		return nil, fmt.Errorf("workspace %s is not a directory", absDir)
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(absDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create workspace %s: %w", absDir, err)
		}
		reporter.Log("Scratch workspace %s created.", absDir)
	default:
		return nil, fmt.Errorf("failed to inspect workspace %s: %w", absDir, err)
	}

	ws := &Workspace{Dir: absDir, Code: code}

	oldShapefiles, err := ws.ListFeatureClasses()
	if err != nil {
		return nil, err
	}
	if len(oldShapefiles) > 0 {
		reporter.Log("There are %d old shapefiles in workspace folder. These will be deleted.", len(oldShapefiles))
		for _, path := range oldShapefiles {
			if err := DeleteArtifact(path); err != nil {
				return nil, err
			}
		}
	}

	oldRasters, err := ws.ListRasters()
	if err != nil {
		return nil, err
	}
	if len(oldRasters) > 0 {
		reporter.Log("There are %d old rasters in workspace folder. These will be deleted.", len(oldRasters))
		for _, path := range oldRasters {
			if err := DeleteArtifact(path); err != nil {
				return nil, err
			}
		}
	}

	reporter.Step("Workspace Setup")
	return ws, nil
}

// ListFeatureClasses returns every shapefile in the workspace.
func (ws *Workspace) ListFeatureClasses() ([]string, error) {
	return ws.glob("*" + VectorExt)
}

// ListRasters returns every raster in the workspace.
func (ws *Workspace) ListRasters() ([]string, error) {
	return ws.glob("*" + RasterExt)
}

func (ws *Workspace) glob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(ws.Dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Name returns the artifact name for a stage of a unit.
func (ws *Workspace) Name(stage string, index int, ext string) string {
	return filepath.Join(ws.Dir, fmt.Sprintf("%s_%s_%d%s", ws.Code, stage, index, ext))
}

// Path returns a run-level (not per-unit) artifact path.
func (ws *Workspace) Path(stage string, ext string) string {
	return filepath.Join(ws.Dir, fmt.Sprintf("%s_%s%s", ws.Code, stage, ext))
}

// Outputs lists the surviving per-unit vector outputs of a stage, ordered by
// unit index.
func (ws *Workspace) Outputs(stage string) ([]string, error) {
	matches, err := ws.glob(fmt.Sprintf("%s_%s_*%s", ws.Code, stage, VectorExt))
	if err != nil {
		return nil, err
	}
	prefix := fmt.Sprintf("%s_%s_", ws.Code, stage)
	indexed := make(map[string]int, len(matches))
	outputs := matches[:0]
	for _, path := range matches {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), prefix), VectorExt)
		index, err := strconv.Atoi(name)
		if err != nil {
			continue
		}
		indexed[path] = index
		outputs = append(outputs, path)
	}
	sort.Slice(outputs, func(i, j int) bool { return indexed[outputs[i]] < indexed[outputs[j]] })
	return outputs, nil
}

// Clean deletes every artifact left in the workspace.
func (ws *Workspace) Clean(del func(string) error) error {
	shapefiles, err := ws.ListFeatureClasses()
	if err != nil {
		return err
	}
	rasters, err := ws.ListRasters()
	if err != nil {
		return err
	}
	var errs []error
	for _, path := range append(shapefiles, rasters...) {
		if err := del(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Unit opens the scratch scope of one unit.
func (ws *Workspace) Unit(index int) *UnitScope {
	return &UnitScope{ws: ws, Index: index}
}

// UnitScope owns the temporary artifacts of one unit. Release deletes every
// path handed out by Temp; Output paths survive for the merger.
type UnitScope struct {
	ws    *Workspace
	Index int

	mu   sync.Mutex
	temp []string
}

// Temp returns a registered scratch path for a stage.
func (u *UnitScope) Temp(stage string, ext string) string {
	path := u.ws.Name(stage, u.Index, ext)
	u.mu.Lock()
	u.temp = append(u.temp, path)
	u.mu.Unlock()
	return path
}

// Output returns the path of the unit's surviving output.
func (u *UnitScope) Output(stage string) string {
	return u.ws.Name(stage, u.Index, VectorExt)
}

// Release deletes every temporary artifact of the unit, in reverse creation
// order, and reports all deletion failures together.
func (u *UnitScope) Release(del func(string) error) error {
	u.mu.Lock()
	temp := u.temp
	u.temp = nil
	u.mu.Unlock()

	var errs []error
	for i := len(temp) - 1; i >= 0; i-- {
		if err := del(temp[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DeleteArtifact removes a vector or raster artifact and its sidecars.
// Missing files are ignored.
func DeleteArtifact(path string) error {
	if strings.EqualFold(filepath.Ext(path), VectorExt) {
		return RemoveShapefile(path)
	}
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range []string{filepath.Ext(path), ".prj", ".aux.xml"} {
		if err := os.Remove(base + ext); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", base+ext, err)
		}
	}
	return nil
}
