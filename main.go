package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"

	"github.com/bsaid97/go-line-mapper/engine"
	"github.com/bsaid97/go-line-mapper/handlers"
	"github.com/bsaid97/go-line-mapper/utils"
	"github.com/spf13/cobra"
)

type runFlags struct {
	params      string
	workspace   string
	coresFile   string
	logFile     string
	metricsFile string
	failFast    bool
	refreshLog  bool
	saveParams  string
}

var flags runFlags

var (
	rootCmd = &cobra.Command{
		Use:   "line-mapper",
		Short: "Least-cost centerlines and corridor footprints of seismic lines",
		Long: `line-mapper splits input lines into units, processes every unit in
parallel against a cost raster and merges the per-unit results.`,
		SilenceUsage: true,
	}

	centerlineCmd = &cobra.Command{
		Use:   "centerline",
		Short: "Trace the least-cost centerline of every input line",
		Args:  cobra.NoArgs,
		RunE:  runCenterline,
	}

	footprintCmd = &cobra.Command{
		Use:   "footprint",
		Short: "Map the corridor footprint of every input line",
		Args:  cobra.NoArgs,
		RunE:  runFootprint,
	}

	coresCmd = &cobra.Command{
		Use:   "cores [n]",
		Short: "Show or set the number of cores used by the tools",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCores,
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.coresFile, "cores-file", "mpc.txt", "core count preference file")
	pf.StringVar(&flags.logFile, "log", "log.txt", "log file, appended to")

	for _, cmd := range []*cobra.Command{centerlineCmd, footprintCmd} {
		f := cmd.Flags()
		f.StringVarP(&flags.params, "params", "p", "params.txt", "parameter file, one value per line, or a YAML config")
		f.StringVarP(&flags.workspace, "workspace", "w", "", "scratch workspace (default <output dir>/<code>_scratch)")
		f.StringVar(&flags.metricsFile, "metrics-file", "", "write run metrics in the Prometheus text format")
		f.BoolVar(&flags.failFast, "fail-fast", false, "abort the run on the first failed unit")
		f.BoolVar(&flags.refreshLog, "refresh-log", false, "truncate the log file before the run")
		f.StringVar(&flags.saveParams, "save-params", "", "write the resolved parameters as a flat parameter file")
	}

	rootCmd.AddCommand(centerlineCmd, footprintCmd, coresCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// applyOverrides lets command line flags win over the parameter source.
func applyOverrides(cmd *cobra.Command, opts *utils.RunOptions) {
	if cmd.Flags().Changed("workspace") {
		opts.Workspace = flags.workspace
	}
	if cmd.Flags().Changed("fail-fast") {
		opts.FailFast = flags.failFast
	}
}

func runCenterline(cmd *cobra.Command, args []string) error {
	cfg, err := utils.LoadCenterlineConfig(flags.params)
	if err != nil {
		return err
	}
	applyOverrides(cmd, &cfg.RunOptions)
	if err := saveParams(cfg.Args()); err != nil {
		return err
	}

	return withRunner(cmd.Context(), engine.New(cfg.CostRaster), func(ctx context.Context, r *handlers.Runner) error {
		return r.RunCenterline(ctx, cfg)
	})
}

func runFootprint(cmd *cobra.Command, args []string) error {
	cfg, err := utils.LoadFootprintConfig(flags.params)
	if err != nil {
		return err
	}
	applyOverrides(cmd, &cfg.RunOptions)
	if err := saveParams(cfg.Args()); err != nil {
		return err
	}

	return withRunner(cmd.Context(), engine.New(cfg.CostRaster, cfg.CanopyRaster), func(ctx context.Context, r *handlers.Runner) error {
		return r.RunFootprint(ctx, cfg)
	})
}

// saveParams persists the resolved parameters so a later run can replay them
// with --params.
func saveParams(args []string) error {
	if flags.saveParams == "" {
		return nil
	}
	return utils.WriteParams(flags.saveParams, args)
}

func withRunner(ctx context.Context, backend handlers.Backend, run func(context.Context, *handlers.Runner) error) error {
	if flags.refreshLog {
		if err := utils.RefreshLog(flags.logFile); err != nil {
			return err
		}
	}
	reporter, err := utils.NewReporter(flags.logFile, os.Stdout)
	if err != nil {
		return err
	}
	defer reporter.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	runner := &handlers.Runner{
		Backend:   backend,
		Reporter:  reporter,
		Metrics:   utils.NewMetrics(),
		CoresFile: flags.coresFile,
	}
	runErr := run(ctx, runner)

	if flags.metricsFile != "" {
		if err := runner.Metrics.WriteTextfile(flags.metricsFile); err != nil {
			log.Printf("Failed to write metrics: %v", err)
		}
	}
	return runErr
}

func runCores(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		cores, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid core count %q: %w", args[0], err)
		}
		if err := utils.SetCores(flags.coresFile, cores); err != nil {
			return err
		}
	}
	cores, err := utils.ResolveCores(flags.coresFile)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Using %d cores.\n", cores)
	return nil
}
