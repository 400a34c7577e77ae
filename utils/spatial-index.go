package utils

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geos"
)

// SpatialIndex buckets geometries into a uniform grid by bounding box.
type SpatialIndex struct {
	geometries []*IndexedGeometry
	cellSize   float64
	grid       map[string][]*IndexedGeometry
}

type IndexedGeometry struct {
	Geom  *geos.Geom
	Index int
}

func NewSpatialIndex(cellSize float64) *SpatialIndex {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &SpatialIndex{
		geometries: make([]*IndexedGeometry, 0),
		cellSize:   cellSize,
		grid:       make(map[string][]*IndexedGeometry),
	}
}

// IndexCellSize picks a grid cell about the size of an average geometry.
func IndexCellSize(geometries []*geos.Geom) float64 {
	total, count := 0.0, 0
	for _, g := range geometries {
		if g == nil || g.IsEmpty() {
			continue
		}
		bounds := g.Bounds()
		total += math.Max(bounds.MaxX-bounds.MinX, bounds.MaxY-bounds.MinY)
		count++
	}
	if count == 0 || total == 0 {
		return 1
	}
	return total / float64(count)
}

func (si *SpatialIndex) AddGeometry(geom *geos.Geom, index int) {
	if geom == nil || geom.IsEmpty() {
		return
	}

	indexedGeom := &IndexedGeometry{
		Geom:  geom,
		Index: index,
	}

	si.geometries = append(si.geometries, indexedGeom)
	si.addToGrid(indexedGeom)
}

func (si *SpatialIndex) addToGrid(indexedGeom *IndexedGeometry) {
	bounds := indexedGeom.Geom.Bounds()

	minCellX, minCellY, maxCellX, maxCellY := si.cellRange(bounds.MinX, bounds.MinY, bounds.MaxX, bounds.MaxY)
	for x := minCellX; x <= maxCellX; x++ {
		for y := minCellY; y <= maxCellY; y++ {
			cellKey := getCellKey(x, y)
			si.grid[cellKey] = append(si.grid[cellKey], indexedGeom)
		}
	}
}

func (si *SpatialIndex) cellRange(minX, minY, maxX, maxY float64) (int, int, int, int) {
	return int(math.Floor(minX / si.cellSize)),
		int(math.Floor(minY / si.cellSize)),
		int(math.Floor(maxX / si.cellSize)),
		int(math.Floor(maxY / si.cellSize))
}

// FindNeighbors returns the indexed geometries within distance of geom,
// excluding geom itself. A distance of 0 finds touching and overlapping
// geometries.
func (si *SpatialIndex) FindNeighbors(geom *geos.Geom, distance float64) []*IndexedGeometry {
	if geom == nil || geom.IsEmpty() {
		return nil
	}
	bounds := geom.Bounds()

	minCellX, minCellY, maxCellX, maxCellY := si.cellRange(
		bounds.MinX-distance, bounds.MinY-distance, bounds.MaxX+distance, bounds.MaxY+distance)

	candidates := make(map[int]*IndexedGeometry)
	for x := minCellX; x <= maxCellX; x++ {
		for y := minCellY; y <= maxCellY; y++ {
			if cell, exists := si.grid[getCellKey(x, y)]; exists {
				for _, candidate := range cell {
					if candidate.Geom != geom {
						candidates[candidate.Index] = candidate
					}
				}
			}
		}
	}

	neighbors := make([]*IndexedGeometry, 0, len(candidates))
	for _, candidate := range candidates {
		if geom.Distance(candidate.Geom) <= distance {
			neighbors = append(neighbors, candidate)
		}
	}
	return neighbors
}

func getCellKey(x, y int) string {
	return fmt.Sprintf("%d,%d", x, y)
}
