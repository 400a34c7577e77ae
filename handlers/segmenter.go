package handlers

import (
	"fmt"

	"github.com/bsaid97/go-line-mapper/utils"
	"github.com/golang/geo/r2"
	"github.com/jonas-p/go-shp"
)

// Artifact stages shared by both tools.
const (
	StageSegment     = "Segment"
	StageOrigin      = "Origin"
	StageDestination = "Destination"
	StageBuffer      = "Buffer"
	StageClip        = "Clip"
)

// UnitIDField is written on every segment so outputs can be traced back.
const UnitIDField = "UNIT_ID"

// Segment is one independently processable polyline.
type Segment struct {
	Index    int
	Vertices []r2.Point
	Carried  map[string]interface{}
}

// From returns the first vertex.
func (s Segment) From() r2.Point {
	return s.Vertices[0]
}

// To returns the last vertex.
func (s Segment) To() r2.Point {
	return s.Vertices[len(s.Vertices)-1]
}

// Segments cuts the input into units. Without perVertex every polyline part
// becomes one unit; with it every consecutive vertex pair does. Indices run
// from 1 without gaps in input order. Only carry fields the input declares
// are copied, with their declared type.
func Segments(fc *utils.FeatureCollection, perVertex bool, carry []string) ([]Segment, []shp.Field, error) {
	fields := carriedFields(fc, carry)

	var segments []Segment
	add := func(vertices []r2.Point, properties map[string]interface{}) {
		carried := make(map[string]interface{}, len(fields))
		for _, field := range fields[:len(fields)-1] {
			name := utils.FieldName(field)
			carried[name], _ = utils.Property(properties, name)
		}
		index := len(segments) + 1
		carried[UnitIDField] = index
		segments = append(segments, Segment{Index: index, Vertices: vertices, Carried: carried})
	}

	for i, feature := range fc.Features {
		parts, err := utils.Parts(feature.Geom)
		if err != nil {
			return nil, nil, fmt.Errorf("feature %d: %w", i, err)
		}
		for _, part := range parts {
			if !perVertex {
				add(part, feature.Properties)
				continue
			}
			for v := 0; v+1 < len(part); v++ {
				add([]r2.Point{part[v], part[v+1]}, feature.Properties)
			}
		}
	}
	return segments, fields, nil
}

// carriedFields resolves carry names against the input schema and appends
// the unit id field last.
func carriedFields(fc *utils.FeatureCollection, carry []string) []shp.Field {
	var fields []shp.Field
	seen := map[string]bool{}
	for _, name := range carry {
		field, ok := fc.Field(name)
		if !ok || seen[utils.FieldName(field)] {
			continue
		}
		seen[utils.FieldName(field)] = true
		fields = append(fields, field)
	}
	return append(fields, shp.NumberField(UnitIDField, 10))
}

// Split writes every segment to its own scratch shapefile and returns the
// unit count.
func Split(fc *utils.FeatureCollection, ws *utils.Workspace, perVertex bool, carry []string, reporter *utils.Reporter) (int, error) {
	segments, fields, err := Segments(fc, perVertex, carry)
	if err != nil {
		return 0, err
	}

	for _, segment := range segments {
		out := &utils.FeatureCollection{
			Fields:     fields,
			ShapeType:  shp.POLYLINE,
			Projection: fc.Projection,
			Features: []utils.Feature{{
				Geom:       utils.NewPolyline(segment.Vertices),
				Properties: segment.Carried,
			}},
		}
		if err := utils.WriteFeatures(ws.Name(StageSegment, segment.Index, utils.VectorExt), out); err != nil {
			return 0, fmt.Errorf("failed to write segment %d: %w", segment.Index, err)
		}
	}

	reporter.Log("There are %d lines to be processed.", len(segments))
	reporter.Step("Line Setup")
	return len(segments), nil
}

// loadSegment reads a segment written by Split.
func loadSegment(path string) (*utils.FeatureCollection, Segment, error) {
	fc, err := utils.ReadFeatures(path)
	if err != nil {
		return nil, Segment{}, err
	}
	if len(fc.Features) != 1 {
		return nil, Segment{}, fmt.Errorf("segment %s holds %d features", path, len(fc.Features))
	}
	feature := fc.Features[0]
	vertices, err := utils.Vertices(feature.Geom)
	if err != nil {
		return nil, Segment{}, fmt.Errorf("segment %s: %w", path, err)
	}
	if len(vertices) < 2 {
		return nil, Segment{}, fmt.Errorf("segment %s: %w", path, ErrInvalidGeometry)
	}
	return fc, Segment{Vertices: vertices, Carried: feature.Properties}, nil
}
