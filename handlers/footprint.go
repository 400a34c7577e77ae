package handlers

import (
	"context"
	"fmt"

	"github.com/bsaid97/go-line-mapper/raster"
	"github.com/bsaid97/go-line-mapper/utils"
)

// Footprint artifact stages.
const (
	FootprintCode      = "LFP"
	StageCostDistanceA = "CostDistA"
	StageCostDistanceB = "CostDistB"
	StageCorridor      = "Corridor"
	StageNormalized    = "Normalized"
	StageStamped       = "Stamped"
	StageExpand        = "Expand"
	StageShrink        = "Shrink"
	StageClean         = "Clean"
	StageNull          = "Null"
	StageFootprint     = "Footprint"
)

// Footprint derives a corridor polygon around each unit.
type Footprint struct {
	Backend   Backend
	Workspace *utils.Workspace
	Config    utils.FootprintConfig
	Reporter  *utils.Reporter
}

// NormalizeCorridor marks the cells whose corridor cost exceeds the minimum
// by more than the threshold. Cells equal to the minimum are never marked.
func NormalizeCorridor(minimum float64, threshold float64) raster.CellFunc {
	return func(values []float64) float64 {
		v := values[0]
		if raster.IsNull(v) {
			return raster.Null
		}
		if v-minimum > threshold {
			return 1
		}
		return 0
	}
}

// StampCanopy overlays the canopy (cells >= 1) on the normalized corridor.
func StampCanopy(values []float64) float64 {
	normalized, canopy := values[0], values[1]
	if raster.IsNull(normalized) || raster.IsNull(canopy) {
		return raster.Null
	}
	stamp := 0.0
	if canopy >= 1 {
		stamp = 1
	}
	if normalized+stamp > 0 {
		return 1
	}
	return 0
}

// NotPositive selects cells that are not part of a footprint.
func NotPositive(v float64) bool {
	return v <= 0
}

// ProcessUnit runs the footprint pipeline for one unit. Whatever the outcome,
// only the unit's Footprint output survives in the workspace.
func (f *Footprint) ProcessUnit(ctx context.Context, index int) error {
	u := startUnit(ctx, "footprint.unit", f.Workspace, f.Backend, index)
	output := u.scope.Output(StageFootprint)

	origin, destination := u.loadEndpoints()
	clip := u.clipCost(f.Config.CostRaster, f.Config.BufferRadius())

	distA := u.scope.Temp(StageCostDistanceA, utils.RasterExt)
	distB := u.scope.Temp(StageCostDistanceB, utils.RasterExt)
	u.step("Cost Distance A", func() error {
		return f.Backend.CostDistance(origin, clip, distA, "", ToSource)
	})
	u.step("Cost Distance B", func() error {
		return f.Backend.CostDistance(destination, clip, distB, "", ToSource)
	})

	corridor := u.scope.Temp(StageCorridor, utils.RasterExt)
	u.step("Corridor", func() error {
		return f.Backend.Corridor(distA, distB, corridor)
	})

	normalized := u.scope.Temp(StageNormalized, utils.RasterExt)
	u.step("Normalize Corridor", func() error {
		threshold, err := f.threshold(u.segment)
		if err != nil {
			return err
		}
		minimum, err := f.Backend.RasterMinimum(corridor)
		if err != nil {
			return err
		}
		return f.Backend.Calculate(normalized, NormalizeCorridor(minimum, threshold), corridor)
	})

	stamped := u.scope.Temp(StageStamped, utils.RasterExt)
	u.step("Stamp Canopy", func() error {
		return f.Backend.Calculate(stamped, StampCanopy, normalized, f.Config.CanopyRaster)
	})

	current := stamped
	if cells := f.Config.ExpandShrinkCells; cells > 0 {
		expand := u.scope.Temp(StageExpand, utils.RasterExt)
		shrink := u.scope.Temp(StageShrink, utils.RasterExt)
		u.step("Expand", func() error {
			return f.Backend.Expand(stamped, expand, cells, 1)
		})
		u.step("Shrink", func() error {
			return f.Backend.Shrink(expand, shrink, cells, 1)
		})
		current = shrink
	}

	clean := u.scope.Temp(StageClean, utils.RasterExt)
	u.step("Boundary Clean", func() error {
		return f.Backend.BoundaryClean(current, clean)
	})

	null := u.scope.Temp(StageNull, utils.RasterExt)
	u.step("Set Null", func() error {
		return f.Backend.SetNull(clean, null, NotPositive)
	})
	u.step("Raster To Polygon", func() error {
		return f.Backend.RasterToPolygon(null, output, true)
	})

	return u.finish(output, f.Reporter)
}

// threshold reads the corridor threshold carried on the segment.
func (f *Footprint) threshold(segment Segment) (float64, error) {
	value, ok := utils.Property(segment.Carried, f.Config.CorridorThresholdField)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, f.Config.CorridorThresholdField)
	}
	threshold, ok := utils.ToFloat(value)
	if !ok {
		return 0, fmt.Errorf("corridor threshold %v is not numeric", value)
	}
	return threshold, nil
}
