package handlers

import (
	"context"
	"fmt"

	"github.com/bsaid97/go-line-mapper/utils"
	"github.com/golang/geo/r2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/bsaid97/go-line-mapper/handlers")

// UnitError is the failure of one unit pipeline, with the endpoints of the
// segment it was working on.
type UnitError struct {
	Index int
	From  r2.Point
	To    r2.Point
	Step  string
	Err   error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("unit %d (origin %s, destination %s) failed at %s: %v",
		e.Index, utils.FormatPoint(e.From), utils.FormatPoint(e.To), e.Step, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

// unitRun carries the state of one unit through its steps.
type unitRun struct {
	span        trace.Span
	scope       *utils.UnitScope
	backend     Backend
	segment     Segment
	segmentPath string
	err         *UnitError
}

func startUnit(ctx context.Context, name string, ws *utils.Workspace, backend Backend, index int) *unitRun {
	_, span := tracer.Start(ctx, name, trace.WithAttributes(attribute.Int("unit", index)))
	scope := ws.Unit(index)
	return &unitRun{
		span:        span,
		scope:       scope,
		backend:     backend,
		segment:     Segment{Index: index},
		segmentPath: scope.Temp(StageSegment, utils.VectorExt),
	}
}

// step runs fn unless an earlier step failed.
func (u *unitRun) step(name string, fn func() error) {
	if u.err != nil {
		return
	}
	u.span.AddEvent(name)
	if err := fn(); err != nil {
		u.err = &UnitError{
			Index: u.segment.Index,
			Step:  name,
			Err:   err,
		}
		if len(u.segment.Vertices) >= 2 {
			u.err.From, u.err.To = u.segment.From(), u.segment.To()
		}
	}
}

// finish releases the unit scope and the span. A surviving output of a
// failed unit is deleted with the scratch artifacts.
func (u *unitRun) finish(output string, reporter *utils.Reporter) error {
	defer u.span.End()

	if u.err != nil {
		if err := u.backend.Delete(output); err != nil {
			reporter.Log("Failed to delete partial output %s: %v", output, err)
		}
	}
	if err := u.scope.Release(u.backend.Delete); err != nil {
		reporter.Log("Unit %d: cleanup incomplete: %v", u.segment.Index, err)
	}

	if u.err != nil {
		u.span.RecordError(u.err)
		u.span.SetStatus(codes.Error, u.err.Error())
		return u.err
	}
	u.span.SetStatus(codes.Ok, "")
	return nil
}

// loadEndpoints reads the unit's segment and writes its origin and
// destination point feature classes.
func (u *unitRun) loadEndpoints() (origin string, destination string) {
	origin = u.scope.Temp(StageOrigin, utils.VectorExt)
	destination = u.scope.Temp(StageDestination, utils.VectorExt)

	var fc *utils.FeatureCollection
	u.step("Load Segment", func() error {
		var segment Segment
		var err error
		fc, segment, err = loadSegment(u.segmentPath)
		if err != nil {
			return err
		}
		u.segment.Vertices = segment.Vertices
		u.segment.Carried = segment.Carried
		return nil
	})
	u.step("Create Origin", func() error {
		return u.backend.CreatePointFeature(origin, fc.Fields, u.segment.From())
	})
	u.step("Create Destination", func() error {
		return u.backend.CreatePointFeature(destination, fc.Fields, u.segment.To())
	})
	return origin, destination
}

// clipCost buffers the segment and clips the cost raster to the buffer.
func (u *unitRun) clipCost(costRaster string, radius float64) string {
	buffer := u.scope.Temp(StageBuffer, utils.VectorExt)
	clip := u.scope.Temp(StageClip, utils.RasterExt)

	u.step("Buffer", func() error {
		return u.backend.Buffer(u.segmentPath, buffer, radius)
	})
	u.step("Clip Cost Raster", func() error {
		box, err := u.backend.Extent(buffer)
		if err != nil {
			return err
		}
		return u.backend.ClipRaster(costRaster, box, buffer, clip)
	})
	return clip
}
