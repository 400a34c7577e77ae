package handlers

import (
	"fmt"

	"github.com/bsaid97/go-line-mapper/utils"
	"github.com/jonas-p/go-shp"
)

// StageMerge names the intermediate merge of a dissolving run.
const StageMerge = "Merge"

// CorridorThresholdField is added to every merged centerline.
const CorridorThresholdField = "CorridorTh"

// ConstantField is an attribute written with the same value on every merged
// feature.
type ConstantField struct {
	Field shp.Field
	Value interface{}
}

// MergeOptions shape the final collection of a tool.
type MergeOptions struct {
	// Dissolve collapses connected outputs into single features.
	Dissolve bool
	// ShapeType is used for the empty result of a run without outputs.
	ShapeType shp.ShapeType
	Constants []ConstantField
}

// CenterlineMerge adds CorridorTh = 3 to every centerline.
var CenterlineMerge = MergeOptions{
	ShapeType: shp.POLYLINE,
	Constants: []ConstantField{{
		Field: shp.FloatField(CorridorThresholdField, 19, 8),
		Value: 3.0,
	}},
}

// FootprintMerge dissolves touching footprints.
var FootprintMerge = MergeOptions{
	Dissolve:  true,
	ShapeType: shp.POLYGON,
}

// MergeResults combines the surviving per-unit outputs of a stage into the
// final output and deletes them. It returns the number of outputs merged.
func MergeResults(backend Backend, ws *utils.Workspace, stage string, finalPath string, opts MergeOptions, reporter *utils.Reporter) (int, error) {
	outputs, err := ws.Outputs(stage)
	if err != nil {
		return 0, err
	}
	reporter.Log("There are %d outputs to merge.", len(outputs))

	if len(outputs) == 0 {
		if err := writeEmpty(finalPath, opts); err != nil {
			return 0, err
		}
		reporter.Step("Merging")
		return 0, nil
	}

	target := finalPath
	if opts.Dissolve {
		target = ws.Path(StageMerge, utils.VectorExt)
	}
	if err := backend.Merge(outputs, target); err != nil {
		return 0, fmt.Errorf("failed to merge %d outputs: %w", len(outputs), err)
	}
	if opts.Dissolve {
		err := backend.Dissolve(target, finalPath)
		if derr := backend.Delete(target); derr != nil {
			reporter.Log("Failed to delete %s: %v", target, derr)
		}
		if err != nil {
			return 0, fmt.Errorf("failed to dissolve merged outputs: %w", err)
		}
	}

	for _, constant := range opts.Constants {
		if err := backend.AddField(finalPath, constant.Field, constant.Value); err != nil {
			return 0, fmt.Errorf("failed to add field %s: %w", utils.FieldName(constant.Field), err)
		}
	}

	for _, output := range outputs {
		if err := backend.Delete(output); err != nil {
			return 0, err
		}
	}

	reporter.Log("%d outputs merged into %s.", len(outputs), finalPath)
	reporter.Step("Merging")
	return len(outputs), nil
}

func writeEmpty(path string, opts MergeOptions) error {
	fields := make([]shp.Field, 0, len(opts.Constants))
	for _, constant := range opts.Constants {
		fields = append(fields, constant.Field)
	}
	empty := &utils.FeatureCollection{Fields: fields, ShapeType: opts.ShapeType}
	if err := utils.WriteFeatures(path, empty); err != nil {
		return fmt.Errorf("failed to write empty output: %w", err)
	}
	return nil
}
