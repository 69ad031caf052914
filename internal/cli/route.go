package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	jobio "github.com/matzehuels/metalroute/pkg/io"
	"github.com/matzehuels/metalroute/pkg/pipeline"
	"github.com/matzehuels/metalroute/pkg/router"
)

// routeCommand creates the route command.
func (c *CLI) routeCommand() *cobra.Command {
	var (
		flags   optionFlags
		output  string
		noCache bool
		strict  bool
		tui     bool
	)

	cmd := &cobra.Command{
		Use:   "route <job.toml>",
		Short: "Route the requests of a job and write the resolution",
		Long: `Route every request of a job file against its technology and existing
geometry, then write the resolution (new nodes and arcs, kills and unrouted
markers) as JSON.

Options come from the job's [router] table, then --config, then flags.`,
		Example: `  # Route with defaults, writing design.resolution.json
  metalroute route design.toml

  # Plan corridors first and use 8 workers
  metalroute route design.toml --global -j 8

  # Fail when anything stays unrouted
  metalroute route design.toml --strict -o out.json`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeJobFile,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]
			if output == "" {
				output = derivedPath(path, ".resolution.json")
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

			name := jobName(path)
			override := flags.override(cmd)
			execute := func(ctx context.Context, onProgress func(router.Progress)) (*pipeline.Result, error) {
				return runner.Execute(ctx, data, func(o *pipeline.Options) error {
					if err := override(o); err != nil {
						return err
					}
					o.OnProgress = onProgress
					return nil
				}, nil)
			}

			prog := newProgress(c.Logger)
			var res *pipeline.Result
			if tui {
				runner.Logger = log.New(io.Discard)
				res, err = runWithTUI(ctx, name, execute)
			} else {
				res, err = routeWithSpinner(ctx, name, execute)
			}
			if err != nil {
				return err
			}

			if err := writeResolution(res, output); err != nil {
				return err
			}
			s := res.Resolution.Stats
			prog.done("route complete", "job", name, "routed", s.Routed, "failed", s.Failed, "cached", res.CacheInfo.RouteHit)
			printRouteSummary(path, res, output)

			if ctx.Err() != nil {
				return ctx.Err()
			}
			if n := len(res.Resolution.Unrouted); strict && n > 0 {
				return fmt.Errorf("%d requests unrouted", n)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout (default: <job>.resolution.json)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit with an error when any request is unrouted")
	cmd.Flags().BoolVar(&tui, "tui", false, "show an interactive progress view")

	return cmd
}

func routeWithSpinner(ctx context.Context, name string, execute func(context.Context, func(router.Progress)) (*pipeline.Result, error)) (*pipeline.Result, error) {
	spin := newSpinnerWithContext(ctx, "Routing "+name+"...")
	spin.Start()
	res, err := execute(ctx, func(p router.Progress) {
		spin.SetMessage(fmt.Sprintf("Routing %s %d/%d %s", name, p.Done, p.Total, p.Request))
	})
	if err != nil {
		spin.StopWithError("Routing failed")
		return nil, err
	}
	spin.Stop()
	return res, nil
}

func writeResolution(res *pipeline.Result, output string) error {
	if output == "-" {
		return res.Resolution.WriteJSON(os.Stdout)
	}
	return jobio.ExportResolution(res.Resolution, output)
}

func printRouteSummary(path string, res *pipeline.Result, output string) {
	r := res.Resolution
	if output == "-" {
		return
	}
	name := jobName(path)
	printSuccess("Routed %s", StyleValue.Render(name))
	fmt.Println(formatStats(r.Stats, res.CacheInfo.RouteHit))
	fmt.Println(renderStatsTable(r.Stats))
	printFile(output)

	if len(r.Unrouted) > 0 {
		fmt.Println()
		printWarning("%d requests unrouted", len(r.Unrouted))
		fmt.Println(renderUnroutedTable(r.Unrouted, maxUnroutedRows))
	}
	fmt.Println()
	printNextStep("Inspect congestion", "metalroute global "+path+" -o "+derivedPath(path, ".plan.svg"))
}
