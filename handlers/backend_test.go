package handlers

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bsaid97/go-line-mapper/raster"
	"github.com/bsaid97/go-line-mapper/utils"
	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
	"github.com/jonas-p/go-shp"
)

var errDegenerate = errors.New("degenerate path")

// fakeBackend touches an empty file for every artifact it is asked to
// produce and records what the pipelines asked for.
type fakeBackend struct {
	mu       sync.Mutex
	points   map[string]r2.Point
	sources  map[string]r2.Point
	created  map[string]bool
	deleted  map[string]bool
	merged   []string
	fields   map[string]interface{}
	dissolve int
	calls    map[string]int

	// failOn makes an operation fail for artifacts whose name contains the
	// given text, e.g. "Corridor_2".
	failOn map[string]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		points:  map[string]r2.Point{},
		sources: map[string]r2.Point{},
		created: map[string]bool{},
		deleted: map[string]bool{},
		fields:  map[string]interface{}{},
		calls:   map[string]int{},
		failOn:  map[string]string{},
	}
}

func (f *fakeBackend) touch(op string, paths ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	for _, path := range paths {
		if name, ok := f.failOn[op]; ok && strings.Contains(filepath.Base(path), name) {
			return errors.New(op + " failed")
		}
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.WriteFile(path, nil, 0644); err != nil {
			return err
		}
		f.created[path] = true
	}
	return nil
}

func (f *fakeBackend) CreatePointFeature(dst string, schema []shp.Field, at r2.Point) error {
	f.mu.Lock()
	f.points[dst] = at
	f.mu.Unlock()
	return f.touch("CreatePointFeature", dst)
}

func (f *fakeBackend) Buffer(src string, dst string, radius float64) error {
	return f.touch("Buffer", dst)
}

func (f *fakeBackend) Extent(src string) (r2.Rect, error) {
	return r2.Rect{X: r1.Interval{Lo: 0, Hi: 1}, Y: r1.Interval{Lo: 0, Hi: 1}}, nil
}

func (f *fakeBackend) ClipRaster(src string, box r2.Rect, clip string, dst string) error {
	return f.touch("ClipRaster", dst)
}

func (f *fakeBackend) CostDistance(source string, cost string, dist string, backlink string, dir Direction) error {
	f.mu.Lock()
	f.sources[dist] = f.points[source]
	f.mu.Unlock()
	return f.touch("CostDistance", dist, backlink)
}

func (f *fakeBackend) CostPath(dest string, dist string, backlink string, dst string) error {
	f.mu.Lock()
	degenerate := f.points[dest] == f.sources[dist]
	f.mu.Unlock()
	if degenerate {
		return errDegenerate
	}
	return f.touch("CostPath", dst)
}

func (f *fakeBackend) Corridor(a string, b string, dst string) error {
	return f.touch("Corridor", dst)
}

func (f *fakeBackend) RasterMinimum(src string) (float64, error) {
	return 0, nil
}

func (f *fakeBackend) Calculate(dst string, fn raster.CellFunc, inputs ...string) error {
	return f.touch("Calculate", dst)
}

func (f *fakeBackend) Expand(src string, dst string, cells int, zone float64) error {
	return f.touch("Expand", dst)
}

func (f *fakeBackend) Shrink(src string, dst string, cells int, zone float64) error {
	return f.touch("Shrink", dst)
}

func (f *fakeBackend) BoundaryClean(src string, dst string) error {
	return f.touch("BoundaryClean", dst)
}

func (f *fakeBackend) SetNull(src string, dst string, null func(v float64) bool) error {
	return f.touch("SetNull", dst)
}

func (f *fakeBackend) RasterToPolygon(src string, dst string, simplify bool) error {
	return f.touch("RasterToPolygon", dst)
}

func (f *fakeBackend) Merge(srcs []string, dst string) error {
	f.mu.Lock()
	for _, src := range srcs {
		f.merged = append(f.merged, filepath.Base(src))
	}
	f.mu.Unlock()
	return f.touch("Merge", dst)
}

func (f *fakeBackend) Dissolve(src string, dst string) error {
	f.mu.Lock()
	f.dissolve++
	f.mu.Unlock()
	return f.touch("Dissolve", dst)
}

func (f *fakeBackend) AddField(path string, field shp.Field, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields[utils.FieldName(field)] = value
	return nil
}

func (f *fakeBackend) Delete(path string) error {
	f.mu.Lock()
	f.deleted[path] = true
	f.mu.Unlock()
	return utils.DeleteArtifact(path)
}

func (f *fakeBackend) mergedOutputs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	merged := append([]string(nil), f.merged...)
	sort.Strings(merged)
	return merged
}
