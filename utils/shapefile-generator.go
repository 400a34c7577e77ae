package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
)

// ShapefileSidecars lists every file extension that belongs to one shapefile.
var ShapefileSidecars = []string{".shp", ".shx", ".dbf", ".prj", ".cpg", ".sbn", ".sbx"}

// readShapefile loads every record of a shapefile together with its attributes
func readShapefile(path string) (*FeatureCollection, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile %s: %w", path, err)
	}
	defer reader.Close()

	fc := &FeatureCollection{
		Fields:    reader.Fields(),
		ShapeType: reader.GeometryType,
	}
	if prj, err := os.ReadFile(sidecar(path, ".prj")); err == nil {
		fc.Projection = string(prj)
	}

	for reader.Next() {
		row, shape := reader.Shape()
		g, err := shapeToGeometry(shape)
		if err != nil {
			return nil, fmt.Errorf("failed to read record %d of %s: %w", row, path, err)
		}

		properties := make(map[string]interface{}, len(fc.Fields))
		for i, field := range fc.Fields {
			properties[FieldName(field)] = parseAttribute(field, reader.ReadAttribute(row, i))
		}
		fc.Features = append(fc.Features, Feature{Geom: g, Properties: properties})
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read shapefile %s: %w", path, err)
	}

	return fc, nil
}

// writeShapefile creates a shapefile from the feature collection
func writeShapefile(path string, fc *FeatureCollection) error {
	shapeType, err := collectionShapeType(fc)
	if err != nil {
		return err
	}

	shape, err := shp.Create(path, shapeType)
	if err != nil {
		return fmt.Errorf("failed to create shapefile: %w", err)
	}
	defer shape.Close()

	fields := fc.Fields
	// Add a default ID field if no fields exist
	if len(fields) == 0 {
		fields = []shp.Field{shp.NumberField("ID", 10)}
	}
	if err := shape.SetFields(fields); err != nil {
		return fmt.Errorf("failed to set shapefile fields: %w", err)
	}

	for i, feature := range fc.Features {
		record, err := geometryToShape(feature.Geom)
		if err != nil {
			return fmt.Errorf("failed to convert feature %d: %w", i, err)
		}
		row := int(shape.Write(record))

		if err := writeAttributes(shape, feature.Properties, fields, row); err != nil {
			return fmt.Errorf("failed to write attributes for feature %d: %w", i, err)
		}
	}

	if fc.Projection != "" {
		if err := os.WriteFile(sidecar(path, ".prj"), []byte(fc.Projection), 0644); err != nil {
			return fmt.Errorf("failed to write projection: %w", err)
		}
	}
	return nil
}

func sidecar(path string, ext string) string {
	base := path
	if idx := strings.LastIndex(strings.ToLower(path), ".shp"); idx >= 0 && idx == len(path)-4 {
		base = path[:idx]
	}
	return base + ext
}

func collectionShapeType(fc *FeatureCollection) (shp.ShapeType, error) {
	for _, feature := range fc.Features {
		switch feature.Geom.(type) {
		case *geom.Point:
			return shp.POINT, nil
		case *geom.LineString, *geom.MultiLineString:
			return shp.POLYLINE, nil
		case *geom.Polygon, *geom.MultiPolygon:
			return shp.POLYGON, nil
		case nil:
			continue
		default:
			return shp.NULL, fmt.Errorf("unsupported geometry type: %T", feature.Geom)
		}
	}
	if fc.ShapeType == shp.NULL {
		return shp.NULL, errors.New("cannot infer shape type of an empty collection")
	}
	return fc.ShapeType, nil
}

// shapeToGeometry maps a shapefile record onto a go-geom geometry
func shapeToGeometry(shape shp.Shape) (geom.T, error) {
	switch s := shape.(type) {
	case *shp.Null:
		return nil, nil
	case *shp.Point:
		return geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{s.X, s.Y}), nil
	case *shp.PolyLine:
		parts := splitParts(s.Parts, s.Points)
		if len(parts) == 1 {
			return geom.NewLineString(geom.XY).MustSetCoords(parts[0]), nil
		}
		return geom.NewMultiLineString(geom.XY).MustSetCoords(parts), nil
	case *shp.Polygon:
		return ringsToMultiPolygon(splitParts(s.Parts, s.Points))
	default:
		return nil, fmt.Errorf("unsupported shape type: %T", shape)
	}
}

func splitParts(parts []int32, points []shp.Point) [][]geom.Coord {
	out := make([][]geom.Coord, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		coords := make([]geom.Coord, 0, end-start)
		for _, p := range points[start:end] {
			coords = append(coords, geom.Coord{p.X, p.Y})
		}
		out = append(out, coords)
	}
	return out
}

// ringsToMultiPolygon groups shapefile rings: clockwise rings open a new
// polygon, counter-clockwise rings are holes of the preceding polygon.
func ringsToMultiPolygon(rings [][]geom.Coord) (geom.T, error) {
	var polygons [][][]geom.Coord
	for _, ring := range rings {
		if len(ring) < 4 {
			continue
		}
		if signedArea(ring) <= 0 || len(polygons) == 0 {
			polygons = append(polygons, [][]geom.Coord{ring})
			continue
		}
		last := len(polygons) - 1
		polygons[last] = append(polygons[last], ring)
	}
	switch len(polygons) {
	case 0:
		return nil, nil
	case 1:
		return geom.NewPolygon(geom.XY).SetCoords(polygons[0])
	}
	return geom.NewMultiPolygon(geom.XY).SetCoords(polygons)
}

// signedArea is positive for counter-clockwise rings
func signedArea(ring []geom.Coord) float64 {
	area := 0.0
	for i := 0; i+1 < len(ring); i++ {
		area += ring[i].X()*ring[i+1].Y() - ring[i+1].X()*ring[i].Y()
	}
	return area / 2
}

func orientRing(ring []geom.Coord, clockwise bool) []shp.Point {
	points := make([]shp.Point, len(ring))
	reverse := (signedArea(ring) > 0) == clockwise
	for i, c := range ring {
		j := i
		if reverse {
			j = len(ring) - 1 - i
		}
		points[j] = shp.Point{X: c.X(), Y: c.Y()}
	}
	return points
}

// geometryToShape converts go-geom geometries to shapefile records
func geometryToShape(g geom.T) (shp.Shape, error) {
	switch t := g.(type) {
	case nil:
		return &shp.Null{}, nil
	case *geom.Point:
		return &shp.Point{X: t.X(), Y: t.Y()}, nil
	case *geom.LineString:
		return shp.NewPolyLine([][]shp.Point{lineToPoints(t.Coords())}), nil
	case *geom.MultiLineString:
		parts := make([][]shp.Point, 0, t.NumLineStrings())
		for i := 0; i < t.NumLineStrings(); i++ {
			parts = append(parts, lineToPoints(t.LineString(i).Coords()))
		}
		return shp.NewPolyLine(parts), nil
	case *geom.Polygon:
		polygon := shp.Polygon(*shp.NewPolyLine(polygonRings(t)))
		return &polygon, nil
	case *geom.MultiPolygon:
		var rings [][]shp.Point
		for i := 0; i < t.NumPolygons(); i++ {
			rings = append(rings, polygonRings(t.Polygon(i))...)
		}
		polygon := shp.Polygon(*shp.NewPolyLine(rings))
		return &polygon, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type: %T", g)
	}
}

func lineToPoints(coords []geom.Coord) []shp.Point {
	points := make([]shp.Point, len(coords))
	for i, c := range coords {
		points[i] = shp.Point{X: c.X(), Y: c.Y()}
	}
	return points
}

// polygonRings returns the exterior ring clockwise and holes counter-clockwise
func polygonRings(p *geom.Polygon) [][]shp.Point {
	rings := make([][]shp.Point, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		rings = append(rings, orientRing(p.LinearRing(i).Coords(), i == 0))
	}
	return rings
}

// parseAttribute converts a raw DBF value into the Go type of its field
func parseAttribute(field shp.Field, raw string) interface{} {
	value := strings.TrimSpace(strings.Trim(raw, "\x00"))
	switch field.Fieldtype {
	case 'N':
		if value == "" {
			return nil
		}
		if field.Precision == 0 {
			if parsedInt, err := strconv.Atoi(value); err == nil {
				return parsedInt
			}
		}
		if parsedFloat, err := strconv.ParseFloat(value, 64); err == nil {
			return parsedFloat
		}
		return nil
	case 'F':
		if parsedFloat, err := strconv.ParseFloat(value, 64); err == nil {
			return parsedFloat
		}
		return nil
	default:
		return value
	}
}

// CreateFieldsFromProperties analyzes properties to create DBF fields
func CreateFieldsFromProperties(properties map[string]interface{}, order []string) []shp.Field {
	fields := []shp.Field{}

	for _, key := range order {
		value, ok := properties[key]
		if !ok {
			continue
		}
		// Limit field name to 10 characters (DBF limitation)
		fieldName := truncateFieldName(key)

		switch v := value.(type) {
		case string:
			// Determine appropriate length, max 254 for DBF
			length := len(v)
			if length < 50 {
				length = 50 // Default minimum
			}
			if length > 254 {
				length = 254
			}
			fields = append(fields, shp.StringField(fieldName, uint8(length)))
		case float64:
			fields = append(fields, shp.FloatField(fieldName, 19, 8))
		case int, int32, int64:
			fields = append(fields, shp.NumberField(fieldName, 15))
		case bool:
			fields = append(fields, shp.StringField(fieldName, 5)) // Store as "true"/"false"
		default:
			// Default to string field for unknown types
			fields = append(fields, shp.StringField(fieldName, 100))
		}
	}

	return fields
}

// writeAttributes writes feature properties as DBF attributes
func writeAttributes(shape *shp.Writer, properties map[string]interface{}, fields []shp.Field, row int) error {
	for i, field := range fields {
		fieldName := FieldName(field)

		// Find matching property (case insensitive and truncated)
		var value interface{}
		for propKey, propValue := range properties {
			if strings.EqualFold(truncateFieldName(propKey), fieldName) {
				value = propValue
				break
			}
		}

		if err := shape.WriteAttribute(row, i, attributeValue(field, value)); err != nil {
			return fmt.Errorf("field %s: %w", fieldName, err)
		}
	}

	return nil
}

// attributeValue coerces a property into one of the value types go-shp
// accepts for the field type (int, float64, string)
func attributeValue(field shp.Field, value interface{}) interface{} {
	switch field.Fieldtype {
	case 'N':
		if field.Precision > 0 {
			return toFloat(value)
		}
		switch v := value.(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		case string:
			if parsedInt, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return parsedInt
			}
		}
		return 0
	case 'F':
		return toFloat(value)
	default:
		if value == nil {
			return ""
		}
		return fmt.Sprintf("%v", value)
	}
}

func toFloat(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if parsedFloat, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return parsedFloat
		}
	}
	return 0
}

// ToFloat exposes attribute coercion to callers reading carried values.
func ToFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case string:
		parsedFloat, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return parsedFloat, err == nil
	case float64, float32, int, int32, int64:
		return toFloat(v), true
	}
	return 0, false
}

// RemoveShapefile deletes a shapefile and all of its sidecars. Missing files
// are not an error.
func RemoveShapefile(path string) error {
	for _, ext := range ShapefileSidecars {
		if err := os.Remove(sidecar(path, ext)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", sidecar(path, ext), err)
		}
	}
	return nil
}
