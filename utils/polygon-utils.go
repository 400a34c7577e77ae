package utils

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geos"
)

var PRECISION int = 7

// ToGEOS moves a go-geom geometry into a GEOS context through WKB.
func ToGEOS(ctx *geos.Context, g geom.T) (*geos.Geom, error) {
	if g == nil {
		return nil, ErrEmptyGeometry
	}
	data, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, fmt.Errorf("failed to encode geometry: %w", err)
	}
	geometry, err := ctx.NewGeomFromWKB(data)
	if err != nil {
		return nil, fmt.Errorf("error creating geometry: %w", err)
	}
	return geometry, nil
}

// FromGEOS converts a GEOS geometry back to go-geom.
func FromGEOS(g *geos.Geom) (geom.T, error) {
	if g == nil {
		return nil, ErrEmptyGeometry
	}
	t, err := wkb.Unmarshal(g.ToWKB())
	if err != nil {
		return nil, fmt.Errorf("failed to decode geometry: %w", err)
	}
	return t, nil
}

// PolygonParts explodes a polygon or multipolygon into its single polygons.
// Other geometry types yield nothing.
func PolygonParts(g *geos.Geom) []*geos.Geom {
	var parts []*geos.Geom
	switch g.TypeID() {
	case geos.TypeIDPolygon:
		if !g.IsEmpty() {
			parts = append(parts, g)
		}
	case geos.TypeIDMultiPolygon, geos.TypeIDGeometryCollection:
		for i := 0; i < g.NumGeometries(); i++ {
			parts = append(parts, PolygonParts(g.Geometry(i))...)
		}
	}
	return parts
}

// TruncateCoordinates rounds a coordinate pair to PRECISION decimals.
func TruncateCoordinates(x float64, y float64) (float64, float64) {
	return roundFloat(x, uint(PRECISION)), roundFloat(y, uint(PRECISION))
}

func roundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
