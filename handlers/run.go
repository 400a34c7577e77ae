package handlers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/bsaid97/go-line-mapper/utils"
)

// Tool names used in the log header and metrics.
const (
	CenterlineTool = "Centerline"
	FootprintTool  = "Footprint"
)

// Runner drives one tool run: validation, split, parallel units, merge.
type Runner struct {
	Backend   Backend
	Reporter  *utils.Reporter
	Metrics   *utils.Metrics
	CoresFile string
}

type job struct {
	tool        string
	code        string
	params      [][2]string
	options     utils.RunOptions
	input       string
	output      string
	perVertex   bool
	carry       []string
	outputStage string
	merge       MergeOptions
	check       func(fc *utils.FeatureCollection) error
	unit        func(ws *utils.Workspace) utils.UnitFunc
}

// RunCenterline computes the least-cost centerline of every input line.
func (r *Runner) RunCenterline(ctx context.Context, cfg utils.CenterlineConfig) error {
	return r.run(ctx, cfg.Validate, job{
		tool:        CenterlineTool,
		code:        CenterlineCode,
		params:      cfg.Params(),
		options:     cfg.RunOptions,
		input:       cfg.InputLines,
		output:      cfg.Output,
		perVertex:   cfg.ProcessSegments,
		outputStage: StageCenterline,
		merge:       CenterlineMerge,
		unit: func(ws *utils.Workspace) utils.UnitFunc {
			c := &Centerline{Backend: r.Backend, Workspace: ws, Config: cfg, Reporter: r.Reporter}
			return c.ProcessUnit
		},
	})
}

// RunFootprint computes the corridor footprint of every input line.
func (r *Runner) RunFootprint(ctx context.Context, cfg utils.FootprintConfig) error {
	return r.run(ctx, cfg.Validate, job{
		tool:        FootprintTool,
		code:        FootprintCode,
		params:      cfg.Params(),
		options:     cfg.RunOptions,
		input:       cfg.InputLines,
		output:      cfg.Output,
		perVertex:   cfg.ProcessSegments,
		carry:       []string{cfg.CorridorThresholdField},
		outputStage: StageFootprint,
		merge:       FootprintMerge,
		check: func(fc *utils.FeatureCollection) error {
			return CheckField(fc, cfg.CorridorThresholdField, r.Reporter)
		},
		unit: func(ws *utils.Workspace) utils.UnitFunc {
			f := &Footprint{Backend: r.Backend, Workspace: ws, Config: cfg, Reporter: r.Reporter}
			return f.ProcessUnit
		},
	})
}

func (r *Runner) run(ctx context.Context, validate func() error, j job) (err error) {
	r.Reporter.Start(j.tool, j.params)
	defer func() {
		r.Reporter.End(j.tool, err == nil)
	}()

	if err := validate(); err != nil {
		r.Reporter.Log("Invalid parameters: %v", err)
		return err
	}

	cores, err := utils.ResolveCores(r.CoresFile)
	if err != nil {
		r.Reporter.Log("Failed to store core count: %v", err)
	}
	r.Reporter.Log("Using %d cores.", cores)

	dir := j.options.Workspace
	if dir == "" {
		dir = filepath.Join(filepath.Dir(j.output), j.code+"_scratch")
	}
	ws, err := utils.PrepareWorkspace(dir, j.code, r.Reporter)
	if err != nil {
		return err
	}

	fc, err := utils.ReadFeatures(j.input)
	if err != nil {
		return err
	}
	if err := CheckLines(fc, r.Reporter); err != nil {
		return err
	}
	if j.check != nil {
		if err := j.check(fc); err != nil {
			return err
		}
	}

	count, err := Split(fc, ws, j.perVertex, j.carry, r.Reporter)
	if err != nil {
		r.clean(ws)
		return err
	}

	pool := utils.NewWorkerPool(cores, r.Reporter)
	pool.FailFast = j.options.FailFast
	process := j.unit(ws)
	report, err := pool.RunAll(ctx, count, func(ctx context.Context, unit int) error {
		start := time.Now()
		err := process(ctx, unit)
		r.Metrics.ObserveUnit(j.tool, time.Since(start), err)
		return err
	})
	for _, failure := range report.Failures {
		r.logFailure(failure)
	}
	r.Reporter.Log("%d of %d units completed, %d failed.", report.Completed, report.Total, len(report.Failures))
	r.Reporter.Step("Processing")

	if err != nil {
		r.clean(ws)
		return fmt.Errorf("%s run aborted: %w", j.tool, err)
	}

	merged, err := MergeResults(r.Backend, ws, j.outputStage, j.output, j.merge, r.Reporter)
	if err != nil {
		r.clean(ws)
		return err
	}
	r.Metrics.SetMerged(j.tool, merged)
	return nil
}

func (r *Runner) clean(ws *utils.Workspace) {
	if err := ws.Clean(r.Backend.Delete); err != nil {
		r.Reporter.Log("Failed to clean workspace: %v", err)
	}
}

func (r *Runner) logFailure(failure utils.UnitFailure) {
	var unitErr *UnitError
	if errors.As(failure.Err, &unitErr) {
		r.Reporter.Log("Segment %d failed. Origin: %s; Destination: %s",
			unitErr.Index, utils.FormatPoint(unitErr.From), utils.FormatPoint(unitErr.To))
		r.Reporter.Log("Step %s: %v", unitErr.Step, unitErr.Err)
		return
	}
	r.Reporter.Log("Segment %d failed: %v", failure.Unit, failure.Err)
}
