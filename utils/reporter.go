package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

const separator = "----------"

// clearLine returns the cursor to the line start and erases the line.
const clearLine = "\r\033[K"

// Reporter is the run log: every line goes to the log file and is echoed on
// the console. It also owns the step timer that used to be process-wide.
type Reporter struct {
	logger  *log.Logger
	console io.Writer
	file    *os.File

	mu       sync.Mutex
	progress bool
	runID    string
	start    time.Time
	last     time.Time
	now      func() time.Time
}

// NewReporter appends to the log file at path and echoes to console.
func NewReporter(path string, console io.Writer) (*Reporter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	r := NewReporterTo(io.MultiWriter(file, console), console)
	r.file = file
	return r, nil
}

// NewReporterTo logs to an arbitrary writer. console receives progress lines only.
func NewReporterTo(w io.Writer, console io.Writer) *Reporter {
	now := time.Now()
	return &Reporter{
		logger:  log.New(w, "", 0),
		console: console,
		runID:   uuid.NewString(),
		start:   now,
		last:    now,
		now:     time.Now,
	}
}

// Close releases the log file.
func (r *Reporter) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	return r.file.Close()
}

// RunID identifies the run in the log.
func (r *Reporter) RunID() string {
	return r.runID
}

// Log writes one line. A pending progress line is erased first.
func (r *Reporter) Log(format string, args ...interface{}) {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.progress {
		fmt.Fprint(r.console, clearLine)
		r.progress = false
	}
	r.mu.Unlock()
	r.logger.Printf(format, args...)
}

// Progress writes a transient console line that is not kept in the log file.
func (r *Reporter) Progress(line string) {
	if r == nil || r.console == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.console, clearLine+line)
	r.progress = true
}

// Start resets the timers and writes the tool header with its parameters.
func (r *Reporter) Start(tool string, params [][2]string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.start = r.now()
	r.last = r.start
	r.mu.Unlock()

	r.Log(separator)
	r.Log("Running tool: %s", tool)
	r.Log("Run ID: %s", r.runID)
	r.Log("Processing initiated at: %s", r.start.UTC().Format(time.RFC1123Z))
	r.Log(separator)
	r.Log("TOOL PARAMETERS")
	for _, param := range params {
		r.Log("%s: %s", param[0], param[1])
	}
	r.Log(separator)
}

// Step logs the time spent since the previous step (or the run start).
func (r *Reporter) Step(name string) time.Duration {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	now := r.now()
	elapsed := now.Sub(r.last)
	r.last = now
	r.mu.Unlock()

	r.Log("%s is done! Execution time: %.2f seconds", name, elapsed.Seconds())
	r.Log(separator)
	return elapsed
}

// End logs the total execution time of the run.
func (r *Reporter) End(tool string, ok bool) time.Duration {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	total := r.now().Sub(r.start)
	r.mu.Unlock()

	if ok {
		r.Log("\nTool %s has executed successfully!", tool)
	} else {
		r.Log("\nTool %s has failed.", tool)
	}
	r.Log("Total Execution Time: %.2f seconds", total.Seconds())
	return total
}

// RefreshLog truncates the log file at path.
func RefreshLog(path string) error {
	if err := os.WriteFile(path, nil, 0644); err != nil {
		return fmt.Errorf("failed to refresh log %s: %w", path, err)
	}
	return nil
}
