package engine

import (
	"fmt"

	"github.com/bsaid97/go-line-mapper/handlers"
	"github.com/bsaid97/go-line-mapper/utils"
	"github.com/golang/geo/r2"
	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geos"
)

// CreatePointFeature writes a single point with an empty record of schema.
func (e *Engine) CreatePointFeature(dst string, schema []shp.Field, at r2.Point) error {
	fc := &utils.FeatureCollection{
		Fields:    schema,
		ShapeType: shp.POINT,
		Features: []utils.Feature{{
			Geom:       utils.NewPoint(at),
			Properties: map[string]interface{}{},
		}},
	}
	return utils.WriteFeatures(dst, fc)
}

// Buffer writes the buffer polygon of every feature of src.
func (e *Engine) Buffer(src string, dst string, radius float64) error {
	fc, err := utils.ReadFeatures(src)
	if err != nil {
		return err
	}

	ctx := geos.NewContext()
	out := &utils.FeatureCollection{
		Fields:     fc.Fields,
		ShapeType:  shp.POLYGON,
		Projection: fc.Projection,
	}
	for i, feature := range fc.Features {
		g, err := utils.ToGEOS(ctx, feature.Geom)
		if err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
		buffered := g.Buffer(radius, 8)
		if buffered == nil || buffered.IsEmpty() {
			return fmt.Errorf("feature %d: empty buffer at radius %g", i, radius)
		}
		polygon, err := utils.FromGEOS(buffered)
		if err != nil {
			return err
		}
		out.Features = append(out.Features, utils.Feature{Geom: polygon, Properties: feature.Properties})
	}
	return utils.WriteFeatures(dst, out)
}

// Extent returns the bounding box of src.
func (e *Engine) Extent(src string) (r2.Rect, error) {
	fc, err := utils.ReadFeatures(src)
	if err != nil {
		return r2.EmptyRect(), err
	}
	return fc.Extent()
}

// Merge concatenates the features of srcs. The schema is the union of the
// source schemas, first declaration wins.
func (e *Engine) Merge(srcs []string, dst string) error {
	out := &utils.FeatureCollection{}
	declared := map[string]bool{}
	for _, src := range srcs {
		fc, err := utils.ReadFeatures(src)
		if err != nil {
			return err
		}
		if out.ShapeType == shp.NULL {
			out.ShapeType = fc.ShapeType
		}
		if out.Projection == "" {
			out.Projection = fc.Projection
		}
		for _, field := range fc.Fields {
			name := utils.FieldName(field)
			if declared[name] {
				continue
			}
			declared[name] = true
			out.Fields = append(out.Fields, field)
		}
		out.Features = append(out.Features, fc.Features...)
	}
	return utils.WriteFeatures(dst, out)
}

// Dissolve collapses every group of touching or overlapping features of src
// into one feature. Attributes are dropped.
func (e *Engine) Dissolve(src string, dst string) error {
	fc, err := utils.ReadFeatures(src)
	if err != nil {
		return err
	}

	ctx := geos.NewContext()
	geometries := make([]*geos.Geom, 0, len(fc.Features))
	for i, feature := range fc.Features {
		if feature.Geom == nil {
			continue
		}
		g, err := utils.ToGEOS(ctx, feature.Geom)
		if err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
		geometries = append(geometries, g)
	}

	dissolved, err := handlers.DissolveGeometries(geometries)
	if err != nil {
		return err
	}

	out := &utils.FeatureCollection{
		Fields:     []shp.Field{shp.NumberField("ID", 10)},
		ShapeType:  fc.ShapeType,
		Projection: fc.Projection,
	}
	if out.ShapeType == shp.NULL {
		out.ShapeType = shp.POLYGON
	}
	for i, g := range dissolved {
		t, err := utils.FromGEOS(g)
		g.Destroy()
		if err != nil {
			return err
		}
		out.Features = append(out.Features, utils.Feature{
			Geom:       t,
			Properties: map[string]interface{}{"ID": i + 1},
		})
	}
	return utils.WriteFeatures(dst, out)
}

// AddField declares field on path and sets it to value on every feature.
func (e *Engine) AddField(path string, field shp.Field, value interface{}) error {
	fc, err := utils.ReadFeatures(path)
	if err != nil {
		return err
	}
	name := utils.FieldName(field)
	if !fc.HasField(name) {
		fc.Fields = append(fc.Fields, field)
	}
	for i := range fc.Features {
		if fc.Features[i].Properties == nil {
			fc.Features[i].Properties = map[string]interface{}{}
		}
		fc.Features[i].Properties[name] = value
	}
	return utils.WriteFeatures(path, fc)
}
