package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/metalroute/pkg/pipeline"
)

// globalCommand creates the global command, which renders the congestion
// plan of the global router without detailed routing.
func (c *CLI) globalCommand() *cobra.Command {
	var (
		flags   optionFlags
		output  string
		format  string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "global <job.toml>",
		Short: "Render the global-routing plan of a job",
		Long: `Run only the global router over the requests of a job and render the
bucket grid with its edge utilization as Graphviz DOT or SVG.

The format follows the output extension unless --format is given.`,
		Example: `  metalroute global design.toml -o plan.svg
  metalroute global design.toml --format dot -o - | dot -Tpng > plan.png`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeJobFile,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			if !cmd.Flags().Changed("format") && output != "" && output != "-" {
				if ext := strings.TrimPrefix(filepath.Ext(output), "."); pipeline.ValidFormats[ext] {
					format = ext
				}
			}
			if err := pipeline.ValidateFormat(format); err != nil {
				return err
			}
			if output == "" {
				output = derivedPath(path, ".plan."+format)
			}

			data, err := readJobFile(path)
			if err != nil {
				return err
			}
			runner, err := c.newRunner(ctx, noCache)
			if err != nil {
				return err
			}
			defer runner.Close()

			job, hash, err := runner.Load(data)
			if err != nil {
				return err
			}
			opts, err := runner.JobOptions(job, flags.override(cmd))
			if err != nil {
				return err
			}

			prog := newProgress(c.Logger)
			spin := newSpinnerWithContext(ctx, "Planning "+jobName(path)+"...")
			spin.Start()
			out, hit, err := runner.RenderPlanWithCacheInfo(ctx, job, hash, opts, format)
			if err != nil {
				spin.StopWithError("Planning failed")
				return err
			}
			spin.Stop()
			prog.done("plan rendered", "format", format, "bytes", len(out), "cached", hit)

			if output == "-" {
				_, err := os.Stdout.Write(out)
				return err
			}
			if err := os.WriteFile(output, out, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}

			status := styleComputed.Render(iconFresh)
			if hit {
				status = styleCached.Render(iconCached)
			}
			printSuccess("Planned %s %s", StyleValue.Render(jobName(path)), status)
			printKeyValue("requests", fmt.Sprint(len(job.Requests)))
			printKeyValue("format", format)
			printFile(output)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout (default: <job>.plan.<format>)")
	cmd.Flags().StringVarP(&format, "format", "f", pipeline.FormatSVG, "output format: svg or dot")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}
