// Package engine is the reference geospatial backend: vectors are shapefiles
// (or GeoJSON) handled with GEOS, rasters are ASCII grids.
package engine

import (
	"path/filepath"
	"sync"

	"github.com/bsaid97/go-line-mapper/handlers"
	"github.com/bsaid97/go-line-mapper/raster"
	"github.com/bsaid97/go-line-mapper/utils"
)

var _ handlers.Backend = (*Engine)(nil)

// Engine implements handlers.Backend. Each call works in its own GEOS
// context, so calls on disjoint paths can run concurrently.
type Engine struct {
	mu     sync.Mutex
	shared map[string]*sharedRaster
}

type sharedRaster struct {
	once sync.Once
	grid *raster.Grid
	err  error
}

// New returns an engine that reads each of the shared rasters once and hands
// the same grid to every caller. Shared grids must not be modified.
func New(shared ...string) *Engine {
	e := &Engine{shared: make(map[string]*sharedRaster, len(shared))}
	for _, path := range shared {
		e.shared[cacheKey(path)] = &sharedRaster{}
	}
	return e
}

func cacheKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func (e *Engine) readRaster(path string) (*raster.Grid, error) {
	e.mu.Lock()
	cached, ok := e.shared[cacheKey(path)]
	e.mu.Unlock()
	if !ok {
		return raster.ReadASCII(path)
	}
	cached.once.Do(func() {
		cached.grid, cached.err = raster.ReadASCII(path)
	})
	return cached.grid, cached.err
}

func (e *Engine) readRasters(paths []string) ([]*raster.Grid, error) {
	grids := make([]*raster.Grid, len(paths))
	for i, path := range paths {
		g, err := e.readRaster(path)
		if err != nil {
			return nil, err
		}
		grids[i] = g
	}
	return grids, nil
}

// Delete removes a vector or raster artifact.
func (e *Engine) Delete(path string) error {
	return utils.DeleteArtifact(path)
}
