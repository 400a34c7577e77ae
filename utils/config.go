package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Sentinel is the placeholder GetArgs substitutes when a parameter file cannot be read.
const Sentinel = "-1"

const sentinelCount = 100

// Package-level validator instance for configuration validation.
var validate = validator.New()

// RunOptions are shared by both tools.
type RunOptions struct {
	// Workspace is the scratch directory; it is emptied of old artifacts on start.
	Workspace string `yaml:"workspace"`
	// FailFast aborts the whole run on the first failed unit instead of skipping it.
	FailFast bool `yaml:"fail_fast"`
}

// CenterlineConfig defines the parameters of the centerline tool.
type CenterlineConfig struct {
	InputLines       string  `yaml:"input_lines" validate:"required,ne=-1"`
	CostRaster       string  `yaml:"cost_raster" validate:"required,ne=-1"`
	ProcessingRadius float64 `yaml:"processing_radius" validate:"gt=0"`
	ProcessSegments  bool    `yaml:"process_segments"`
	Output           string  `yaml:"output" validate:"required,ne=-1"`

	RunOptions `yaml:",inline"`
}

// FootprintConfig defines the parameters of the footprint tool.
type FootprintConfig struct {
	InputLines             string  `yaml:"input_lines" validate:"required,ne=-1"`
	CanopyRaster           string  `yaml:"canopy_raster" validate:"required,ne=-1"`
	CostRaster             string  `yaml:"cost_raster" validate:"required,ne=-1"`
	CorridorThresholdField string  `yaml:"corridor_threshold_field" validate:"required,ne=-1"`
	MaxLineWidth           float64 `yaml:"max_line_width" validate:"gt=0"`
	ExpandShrinkCells      int     `yaml:"expand_shrink_cells" validate:"min=0"`
	ProcessSegments        bool    `yaml:"process_segments"`
	Output                 string  `yaml:"output" validate:"required,ne=-1"`

	RunOptions `yaml:",inline"`
}

// BufferRadius is half the configured maximum line width.
func (c FootprintConfig) BufferRadius() float64 {
	return c.MaxLineWidth / 2.0
}

// Params lists the parameters in the order the log header prints them.
func (c CenterlineConfig) Params() [][2]string {
	return [][2]string{
		{"Input Lines", c.InputLines},
		{"Cost Raster", c.CostRaster},
		{"Line Processing Radius", formatFloat(c.ProcessingRadius)},
		{"Process Segments", strconv.FormatBool(c.ProcessSegments)},
		{"Output Centerline", c.Output},
	}
}

// Params lists the parameters in the order the log header prints them.
func (c FootprintConfig) Params() [][2]string {
	return [][2]string{
		{"Input Lines", c.InputLines},
		{"Canopy Raster", c.CanopyRaster},
		{"Cost Raster", c.CostRaster},
		{"Corridor Threshold Field", c.CorridorThresholdField},
		{"Maximum Line Width", formatFloat(c.MaxLineWidth)},
		{"Expand And Shrink Cell Range", strconv.Itoa(c.ExpandShrinkCells)},
		{"Process Segments", strconv.FormatBool(c.ProcessSegments)},
		{"Output Footprint", c.Output},
	}
}

// Args renders the config as the positional parameter list of its tool.
func (c CenterlineConfig) Args() []string {
	return []string{c.InputLines, c.CostRaster, formatFloat(c.ProcessingRadius),
		strconv.FormatBool(c.ProcessSegments), c.Output}
}

// Args renders the config as the positional parameter list of its tool.
func (c FootprintConfig) Args() []string {
	return []string{c.InputLines, c.CanopyRaster, c.CostRaster, c.CorridorThresholdField,
		formatFloat(c.MaxLineWidth), strconv.Itoa(c.ExpandShrinkCells),
		strconv.FormatBool(c.ProcessSegments), c.Output}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// GetArgs reads one parameter per line. Any read failure yields 100 sentinel
// values so that validation, not I/O, reports the problem.
func GetArgs(path string) []string {
	file, err := os.Open(path)
	if err != nil {
		return sentinels()
	}
	defer file.Close()

	var args []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		args = append(args, strings.TrimRight(scanner.Text(), " \t\r"))
	}
	if scanner.Err() != nil {
		return sentinels()
	}
	return args
}

// WriteParams persists a positional parameter list, one value per line.
func WriteParams(path string, args []string) error {
	var b strings.Builder
	for _, arg := range args {
		b.WriteString(arg)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write parameters %s: %w", path, err)
	}
	return nil
}

func sentinels() []string {
	args := make([]string, sentinelCount)
	for i := range args {
		args[i] = Sentinel
	}
	return args
}

func arg(args []string, i int) string {
	if i < len(args) {
		return strings.TrimSpace(args[i])
	}
	return ""
}

// CenterlineConfigFromArgs binds the positional centerline parameters:
// input lines, cost raster, processing radius, process segments, output.
func CenterlineConfigFromArgs(args []string) (CenterlineConfig, error) {
	radius, err := strconv.ParseFloat(arg(args, 2), 64)
	if err != nil {
		return CenterlineConfig{}, fmt.Errorf("invalid line processing radius %q: %w", arg(args, 2), err)
	}
	cfg := CenterlineConfig{
		InputLines:       arg(args, 0),
		CostRaster:       arg(args, 1),
		ProcessingRadius: radius,
		ProcessSegments:  arg(args, 3) == "True" || arg(args, 3) == "true",
		Output:           arg(args, 4),
	}
	return cfg, cfg.Validate()
}

// FootprintConfigFromArgs binds the positional footprint parameters: input
// lines, canopy raster, cost raster, threshold field, max line width,
// expand/shrink range, process segments, output.
func FootprintConfigFromArgs(args []string) (FootprintConfig, error) {
	width, err := strconv.ParseFloat(arg(args, 4), 64)
	if err != nil {
		return FootprintConfig{}, fmt.Errorf("invalid maximum line width %q: %w", arg(args, 4), err)
	}
	cells, err := strconv.Atoi(arg(args, 5))
	if err != nil {
		return FootprintConfig{}, fmt.Errorf("invalid expand and shrink cell range %q: %w", arg(args, 5), err)
	}
	cfg := FootprintConfig{
		InputLines:             arg(args, 0),
		CanopyRaster:           arg(args, 1),
		CostRaster:             arg(args, 2),
		CorridorThresholdField: arg(args, 3),
		MaxLineWidth:           width,
		ExpandShrinkCells:      cells,
		ProcessSegments:        arg(args, 6) == "True" || arg(args, 6) == "true",
		Output:                 arg(args, 7),
	}
	return cfg, cfg.Validate()
}

// Validate checks the struct tags.
func (c CenterlineConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// Validate checks the struct tags.
func (c FootprintConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// IsYAML reports whether a parameter path is a YAML config rather than a flat
// parameter file.
func IsYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadCenterlineConfig reads a YAML config or a flat parameter file.
func LoadCenterlineConfig(path string) (CenterlineConfig, error) {
	if !IsYAML(path) {
		return CenterlineConfigFromArgs(GetArgs(path))
	}
	var cfg CenterlineConfig
	if err := loadYAML(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadFootprintConfig reads a YAML config or a flat parameter file.
func LoadFootprintConfig(path string) (FootprintConfig, error) {
	if !IsYAML(path) {
		return FootprintConfigFromArgs(GetArgs(path))
	}
	var cfg FootprintConfig
	if err := loadYAML(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("config %s is empty", path)
		}
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}
