package utils

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/golang/geo/r2"
	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
)

// ErrEmptyGeometry is returned when a feature carries no usable coordinates.
var ErrEmptyGeometry = errors.New("geometry is empty")

// Feature struct: Holds geometry + properties
type Feature struct {
	Geom       geom.T
	Properties map[string]interface{}
}

// FeatureCollection holds features together with their declared DBF schema.
// ShapeType is only consulted when Features is empty; Projection is the WKT
// carried in the .prj sidecar.
type FeatureCollection struct {
	Fields     []shp.Field
	Features   []Feature
	ShapeType  shp.ShapeType
	Projection string
}

// FieldName returns the trimmed name of a DBF field.
func FieldName(field shp.Field) string {
	return strings.TrimRight(string(field.Name[:]), "\x00 ")
}

// Field looks up a declared field by name (case insensitive, DBF names are
// truncated to 10 characters).
func (fc *FeatureCollection) Field(name string) (shp.Field, bool) {
	for _, field := range fc.Fields {
		if strings.EqualFold(FieldName(field), truncateFieldName(name)) {
			return field, true
		}
	}
	return shp.Field{}, false
}

// HasField reports whether the schema declares the named field.
func (fc *FeatureCollection) HasField(name string) bool {
	_, ok := fc.Field(name)
	return ok
}

// Property looks up an attribute by field name the way DBF matches names:
// case insensitive, truncated to 10 characters.
func Property(properties map[string]interface{}, name string) (interface{}, bool) {
	if value, ok := properties[name]; ok {
		return value, true
	}
	for key, value := range properties {
		if strings.EqualFold(truncateFieldName(key), truncateFieldName(name)) {
			return value, true
		}
	}
	return nil, false
}

func truncateFieldName(name string) string {
	if len(name) > 10 {
		return name[:10]
	}
	return name
}

// Parts returns the vertex lists of every line part of a polyline feature.
func Parts(g geom.T) ([][]r2.Point, error) {
	switch t := g.(type) {
	case *geom.LineString:
		return [][]r2.Point{coordsToPoints(t.Coords())}, nil
	case *geom.MultiLineString:
		parts := make([][]r2.Point, 0, t.NumLineStrings())
		for i := 0; i < t.NumLineStrings(); i++ {
			parts = append(parts, coordsToPoints(t.LineString(i).Coords()))
		}
		return parts, nil
	case nil:
		return nil, ErrEmptyGeometry
	default:
		return nil, fmt.Errorf("expected polyline geometry, got %T", g)
	}
}

// Vertices flattens every part of a polyline into one vertex list.
func Vertices(g geom.T) ([]r2.Point, error) {
	parts, err := Parts(g)
	if err != nil {
		return nil, err
	}
	var vertices []r2.Point
	for _, part := range parts {
		vertices = append(vertices, part...)
	}
	if len(vertices) == 0 {
		return nil, ErrEmptyGeometry
	}
	return vertices, nil
}

func coordsToPoints(coords []geom.Coord) []r2.Point {
	points := make([]r2.Point, 0, len(coords))
	for _, c := range coords {
		points = append(points, r2.Point{X: c.X(), Y: c.Y()})
	}
	return points
}

// NewPolyline builds a single-part line string from vertices.
func NewPolyline(vertices []r2.Point) *geom.LineString {
	coords := make([]geom.Coord, len(vertices))
	for i, v := range vertices {
		coords[i] = geom.Coord{v.X, v.Y}
	}
	return geom.NewLineString(geom.XY).MustSetCoords(coords)
}

// NewPoint builds a point geometry.
func NewPoint(at r2.Point) *geom.Point {
	return geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{at.X, at.Y})
}

// PointOf returns the coordinate of a point feature.
func PointOf(g geom.T) (r2.Point, error) {
	p, ok := g.(*geom.Point)
	if !ok || p.Empty() {
		return r2.Point{}, fmt.Errorf("expected point geometry, got %T", g)
	}
	return r2.Point{X: p.X(), Y: p.Y()}, nil
}

// Extent returns the bounding box of every feature in the collection.
func (fc *FeatureCollection) Extent() (r2.Rect, error) {
	rect := r2.EmptyRect()
	for _, feature := range fc.Features {
		if feature.Geom == nil {
			continue
		}
		bounds := feature.Geom.Bounds()
		if bounds.IsEmpty() {
			continue
		}
		rect = rect.AddPoint(r2.Point{X: bounds.Min(0), Y: bounds.Min(1)})
		rect = rect.AddPoint(r2.Point{X: bounds.Max(0), Y: bounds.Max(1)})
	}
	if rect.IsEmpty() {
		return rect, ErrEmptyGeometry
	}
	return rect, nil
}

// FormatPoint renders a coordinate the way run logs report them.
func FormatPoint(p r2.Point) string {
	return fmt.Sprintf("X %s, Y %s", formatCoord(p.X), formatCoord(p.Y))
}

func formatCoord(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.3f", roundFloat(v, 3))
}

// ReadFeatures loads a feature collection from a shapefile or a GeoJSON file.
func ReadFeatures(path string) (*FeatureCollection, error) {
	if IsGeoJSON(path) {
		return readGeoJSON(path)
	}
	return readShapefile(path)
}

// WriteFeatures writes a feature collection, picking the format from the
// file extension.
func WriteFeatures(path string, fc *FeatureCollection) error {
	if IsGeoJSON(path) {
		return writeGeoJSON(path, fc)
	}
	return writeShapefile(path, fc)
}

// IsGeoJSON reports whether the path names a GeoJSON file.
func IsGeoJSON(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return true
	}
	return false
}
