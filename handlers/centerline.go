package handlers

import (
	"context"

	"github.com/bsaid97/go-line-mapper/utils"
)

// Centerline artifact stages.
const (
	CenterlineCode    = "CL"
	StageCostDistance = "CostDist"
	StageBacklink     = "Backlink"
	StageCenterline   = "CenterLine"
)

// Centerline traces the least-cost path between the endpoints of each unit.
type Centerline struct {
	Backend   Backend
	Workspace *utils.Workspace
	Config    utils.CenterlineConfig
	Reporter  *utils.Reporter
}

// ProcessUnit runs the centerline pipeline for one unit. Whatever the outcome,
// only the unit's CenterLine output survives in the workspace.
func (c *Centerline) ProcessUnit(ctx context.Context, index int) error {
	u := startUnit(ctx, "centerline.unit", c.Workspace, c.Backend, index)
	output := u.scope.Output(StageCenterline)

	origin, destination := u.loadEndpoints()
	clip := u.clipCost(c.Config.CostRaster, c.Config.ProcessingRadius)

	dist := u.scope.Temp(StageCostDistance, utils.RasterExt)
	backlink := u.scope.Temp(StageBacklink, utils.RasterExt)
	u.step("Cost Distance", func() error {
		return c.Backend.CostDistance(origin, clip, dist, backlink, ToSource)
	})
	u.step("Cost Path", func() error {
		return c.Backend.CostPath(destination, dist, backlink, output)
	})

	return u.finish(output, c.Reporter)
}
