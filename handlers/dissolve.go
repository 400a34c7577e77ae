package handlers

import (
	"errors"
	"sort"

	"github.com/bsaid97/go-line-mapper/utils"
	"github.com/twpayne/go-geos"
)

// CascadedUnion unions geometries pairwise, halving the input each level.
// The inputs are consumed.
func CascadedUnion(geometries []*geos.Geom) (*geos.Geom, error) {
	if len(geometries) == 0 {
		return nil, errors.New("nothing to union")
	}
	// Base case: if there is only one geometry, return it
	if len(geometries) == 1 {
		return geometries[0], nil
	}

	// Divide the array into two halves
	mid := len(geometries) / 2
	left, err := CascadedUnion(geometries[:mid])
	if err != nil {
		return nil, err
	}
	right, err := CascadedUnion(geometries[mid:])
	if err != nil {
		return nil, err
	}

	// Union the results of the left and right halves
	result := left.Union(right)
	if result == nil {
		return nil, errors.New("union failed")
	}

	// Clean up to free memory
	left.Destroy()
	right.Destroy()

	return result, nil
}

// DissolveGeometries merges every group of overlapping or touching
// geometries into one geometry. Groups are returned in the order of their
// first member. The inputs are consumed.
func DissolveGeometries(geometries []*geos.Geom) ([]*geos.Geom, error) {
	if len(geometries) == 0 {
		return nil, nil
	}

	index := utils.NewSpatialIndex(utils.IndexCellSize(geometries))
	for i, g := range geometries {
		index.AddGeometry(g, i)
	}

	parent := make([]int, len(geometries))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	for i, g := range geometries {
		for _, neighbor := range index.FindNeighbors(g, 0) {
			a, b := find(i), find(neighbor.Index)
			if a == b {
				continue
			}
			if a < b {
				parent[b] = a
			} else {
				parent[a] = b
			}
		}
	}

	groups := map[int][]*geos.Geom{}
	for i, g := range geometries {
		root := find(i)
		groups[root] = append(groups[root], g)
	}
	roots := make([]int, 0, len(groups))
	for root := range groups {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	dissolved := make([]*geos.Geom, 0, len(roots))
	for _, root := range roots {
		union, err := CascadedUnion(groups[root])
		if err != nil {
			return nil, err
		}
		dissolved = append(dissolved, union)
	}
	return dissolved, nil
}
