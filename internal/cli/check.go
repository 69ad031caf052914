package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/metalroute/pkg/blockage"
	"github.com/matzehuels/metalroute/pkg/errors"
	jobio "github.com/matzehuels/metalroute/pkg/io"
	"github.com/matzehuels/metalroute/pkg/pipeline"
)

// checkCommand creates the check command, which validates a job without
// routing it.
func (c *CLI) checkCommand() *cobra.Command {
	var flags optionFlags

	cmd := &cobra.Command{
		Use:   "check <job.toml>",
		Short: "Validate a job file without routing",
		Long: `Decode a job file and report every problem found in its technology,
geometry, requests and router options. Exits with an error if any problem
is found.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeJobFile,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readJobFile(args[0])
			if err != nil {
				return err
			}
			job, err := jobio.ParseJob(data)
			if err != nil {
				printError("%s", errors.UserMessage(err))
				return err
			}

			problems := job.Check()
			opts, err := pipeline.NewRunner(nil, nil, c.Logger).JobOptions(job, flags.override(cmd))
			if err == nil {
				_, err = opts.RouterConfig(job.Tech)
			}
			if err != nil {
				problems = append(problems, err)
			}

			printJobSummary(job)
			if len(problems) > 0 {
				fmt.Println()
				for _, p := range problems {
					printError("%s %s", StyleDim.Render(string(errors.GetCode(p))), errors.UserMessage(p))
				}
				return fmt.Errorf("%d problems in %s", len(problems), args[0])
			}
			printSuccess("%s is valid", args[0])
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func printJobSummary(job *jobio.Job) {
	if job.Name != "" {
		fmt.Println(StyleTitle.Render(job.Name))
	}
	printKeyValue("layers", fmt.Sprint(job.Tech.MetalCount()))
	printKeyValue("nets", fmt.Sprint(len(job.Nets)))
	printKeyValue("requests", fmt.Sprint(len(job.Requests)))
	for z := range job.Tech.MetalCount() {
		m := job.Tech.Metal(z)
		detail := fmt.Sprintf("%d shapes", job.Index.Len(blockage.Metal, z))
		if z < len(job.Tech.Vias) {
			detail += fmt.Sprintf(", %d cuts to %s", job.Index.Len(blockage.Cut, z), job.Tech.Metal(z+1).Name)
		}
		printDetail("%-8s %s", m.Name, detail)
	}
}
