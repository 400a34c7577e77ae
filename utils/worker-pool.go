package utils

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tj/go-spin"
	"golang.org/x/sync/errgroup"
)

// UnitFunc processes one unit. It must only touch artifacts of its own unit.
type UnitFunc func(ctx context.Context, unit int) error

// UnitFailure is a unit that returned an error (or panicked).
type UnitFailure struct {
	Unit int
	Err  error
}

// RunReport summarises one RunAll call.
type RunReport struct {
	Total     int
	Completed int
	Skipped   int
	Failures  []UnitFailure
}

// WorkerPool runs units 1..N on a bounded set of goroutines.
type WorkerPool struct {
	NumWorkers int
	// FailFast stops dispatching after the first failed unit and makes RunAll
	// return that failure.
	FailFast bool

	reporter *Reporter
	mu       sync.Mutex
	failures []UnitFailure
}

// NewWorkerPool creates a new worker pool with specified number of workers,
// bounded by the hardware core count
func NewWorkerPool(numWorkers int, reporter *Reporter) *WorkerPool {
	if numWorkers <= 0 || numWorkers > runtime.NumCPU() {
		numWorkers = runtime.NumCPU()
	}

	return &WorkerPool{
		NumWorkers: numWorkers,
		reporter:   reporter,
	}
}

// RunAll calls fn exactly once for every unit in 1..unitCount and blocks until
// all of them returned. Unit order is not guaranteed. Failed units are
// collected in the report; they only abort the run in FailFast mode.
func (wp *WorkerPool) RunAll(ctx context.Context, unitCount int, fn UnitFunc) (*RunReport, error) {
	report := &RunReport{Total: unitCount}
	if unitCount <= 0 {
		return report, nil
	}

	wp.mu.Lock()
	wp.failures = nil
	wp.mu.Unlock()

	tracker := NewProgressTracker(int64(unitCount), "Units", wp.reporter)
	jobQueue := make(chan int)
	var completed, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)

	workers := wp.NumWorkers
	if workers > unitCount {
		workers = unitCount
	}
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for unit := range jobQueue {
				if gctx.Err() != nil {
					skipped.Add(1)
					continue
				}
				err := runUnit(gctx, unit, fn)
				tracker.Increment()
				if err == nil {
					completed.Add(1)
					continue
				}
				wp.recordFailure(unit, err)
				if wp.FailFast {
					return fmt.Errorf("unit %d: %w", unit, err)
				}
			}
			return nil
		})
	}

	// Dispatch units; stop handing out work once the group is cancelled
	g.Go(func() error {
		defer close(jobQueue)
		for unit := 1; unit <= unitCount; unit++ {
			if gctx.Err() != nil {
				skipped.Add(int64(unitCount - unit + 1))
				return nil
			}
			select {
			case jobQueue <- unit:
			case <-gctx.Done():
				skipped.Add(int64(unitCount - unit + 1))
				return nil
			}
		}
		return nil
	})

	err := g.Wait()

	report.Completed = int(completed.Load())
	report.Skipped = int(skipped.Load())
	report.Failures = wp.Failures()

	if err != nil {
		return report, err
	}
	if ctx.Err() != nil {
		return report, ctx.Err()
	}
	return report, nil
}

// runUnit recovers a panicking unit into an error
func runUnit(ctx context.Context, unit int, fn UnitFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic recovered in unit %d: %v", unit, r)
		}
	}()
	return fn(ctx, unit)
}

func (wp *WorkerPool) recordFailure(unit int, err error) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	wp.failures = append(wp.failures, UnitFailure{Unit: unit, Err: err})
}

// Failures returns the failed units of the last run ordered by unit.
func (wp *WorkerPool) Failures() []UnitFailure {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	failures := append([]UnitFailure(nil), wp.failures...)
	sort.Slice(failures, func(i, j int) bool { return failures[i].Unit < failures[j].Unit })
	return failures
}

// ProgressTracker tracks progress of concurrent operations
type ProgressTracker struct {
	Total     int64
	Processed int64
	StartTime time.Time
	Name      string

	reporter *Reporter
	mu       sync.Mutex
	spinner  *spin.Spinner
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(total int64, name string, reporter *Reporter) *ProgressTracker {
	return &ProgressTracker{
		Total:     total,
		Processed: 0,
		StartTime: time.Now(),
		Name:      name,
		reporter:  reporter,
		spinner:   spin.New(),
	}
}

// Increment increments the processed count atomically
func (pt *ProgressTracker) Increment() {
	processed := atomic.AddInt64(&pt.Processed, 1)
	elapsed := time.Since(pt.StartTime)
	rate := float64(processed) / elapsed.Seconds()
	percentage := float64(processed) / float64(pt.Total) * 100

	pt.mu.Lock()
	frame := pt.spinner.Next()
	pt.mu.Unlock()
	pt.reporter.Progress(fmt.Sprintf("%s %s: %d/%d (%.1f%%)", frame, pt.Name, processed, pt.Total, percentage))

	// Log progress every 100 items or at completion
	if processed%100 == 0 || processed == pt.Total {
		pt.reporter.Log("%s: %d/%d (%.1f%%) - %.1f items/sec",
			pt.Name, processed, pt.Total, percentage, rate)
	}
}

// GetProgress returns the current progress
func (pt *ProgressTracker) GetProgress() (int64, int64, float64) {
	processed := atomic.LoadInt64(&pt.Processed)
	percentage := float64(processed) / float64(pt.Total) * 100
	return processed, pt.Total, percentage
}
