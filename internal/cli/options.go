package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/matzehuels/metalroute/pkg/errors"
	"github.com/matzehuels/metalroute/pkg/pipeline"
)

// optionFlags are the router options shared by route, global and check.
// A flag only overrides the job's [router] table when it was given.
type optionFlags struct {
	config string

	workers    int
	steps      int
	retrySteps int
	stepSize   float64
	passes     int

	global       bool
	parallel     bool
	forceGrid    bool
	forceReroute bool
	noRetry      bool
	refresh      bool
}

func (f *optionFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.config, "config", "", "TOML file with router options (applied over the job's [router] table)")
	fl.IntVarP(&f.workers, "workers", "j", 0, "concurrent searches (default: number of CPUs)")
	fl.IntVar(&f.steps, "steps", pipeline.DefaultMaxSteps, "per-direction step budget of one search")
	fl.IntVar(&f.retrySteps, "retry-steps", pipeline.DefaultRetryMaxSteps, "step budget of the retry pass")
	fl.Float64Var(&f.stepSize, "step-size", pipeline.DefaultStepSize, "step distance on gridless axes")
	fl.IntVar(&f.passes, "passes", pipeline.DefaultGlobalPasses, "rip-up passes of the global router")
	fl.BoolVar(&f.global, "global", false, "plan global-routing corridors before routing")
	fl.BoolVar(&f.parallel, "parallel-directions", false, "run both search directions concurrently")
	fl.BoolVar(&f.forceGrid, "force-grid", false, "snap every layer to its track grid")
	fl.BoolVar(&f.forceReroute, "force-reroute", false, "route requests whose terminals already touch")
	fl.BoolVar(&f.noRetry, "no-retry", false, "do not retry exhausted requests")
	fl.BoolVar(&f.refresh, "refresh", false, "ignore cached results")
}

// override returns the function that layers the config file and the changed
// flags over the options decoded from the job.
func (f *optionFlags) override(cmd *cobra.Command) func(*pipeline.Options) error {
	return func(o *pipeline.Options) error {
		if f.config != "" {
			if _, err := toml.DecodeFile(f.config, o); err != nil {
				if os.IsNotExist(err) {
					return errors.Wrap(errors.ErrCodeFileNotFound, err, "options file %s", f.config)
				}
				return errors.Wrap(errors.ErrCodeInvalidConfig, err, "options file %s", f.config)
			}
		}
		fl := cmd.Flags()
		if fl.Changed("workers") {
			o.Workers = f.workers
		}
		if fl.Changed("steps") {
			o.MaxSteps = f.steps
		}
		if fl.Changed("retry-steps") {
			o.RetryMaxSteps = f.retrySteps
		}
		if fl.Changed("step-size") {
			o.StepSize = f.stepSize
		}
		if fl.Changed("passes") {
			o.GlobalPasses = f.passes
		}
		if fl.Changed("global") {
			o.Global = f.global
		}
		if fl.Changed("parallel-directions") {
			o.ParallelDirections = f.parallel
		}
		if fl.Changed("force-grid") {
			o.ForceGrid = f.forceGrid
		}
		if fl.Changed("force-reroute") {
			o.ForceReroute = f.forceReroute
		}
		if fl.Changed("no-retry") {
			o.NoRetry = f.noRetry
		}
		o.Refresh = f.refresh
		return nil
	}
}

// readJobFile reads a job file, mapping a missing file to FILE_NOT_FOUND.
func readJobFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, "job file not found: %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read job %s", path)
	}
	return data, nil
}

// jobName returns the base name of a job file without its extension.
func jobName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// derivedPath replaces the extension of the job path with suffix.
func derivedPath(path, suffix string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + suffix
}

// completeJobFile completes the single job argument to TOML files.
func completeJobFile(_ *cobra.Command, args []string, _ string) ([]cobra.Completion, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return []cobra.Completion{"toml"}, cobra.ShellCompDirectiveFilterFileExt
}
