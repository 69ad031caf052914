// Command metalroute routes the wire requests of a job file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matzehuels/metalroute/internal/cli"
	rerrors "github.com/matzehuels/metalroute/pkg/errors"
)

// Exit statuses.
const (
	exitOK        = 0
	exitFailure   = 1
	exitInput     = 2
	exitInterrupt = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRoot().ExecuteContext(ctx)
	stop()
	os.Exit(report(os.Stderr, err))
}

// newRoot builds the command tree with the global --verbose flag.
func newRoot() *cobra.Command {
	c := cli.New(os.Stderr, cli.LogInfo)
	root := c.RootCommand()

	verbose := root.PersistentFlags().BoolP("verbose", "v", false, "log every routing round and request")
	next := root.PersistentPreRunE
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if *verbose {
			c.SetLogLevel(cli.LogDebug)
		}
		if next != nil {
			return next(cmd, args)
		}
		return nil
	}
	return root
}

// report prints err and maps it to an exit status. Invalid jobs and options
// exit with 2 so scripts can tell them apart from routing failures.
func report(w io.Writer, err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, context.Canceled) {
		return exitInterrupt
	}
	code := rerrors.GetCode(err)
	if code == "" {
		fmt.Fprintln(w, "Error:", err)
		return exitFailure
	}
	fmt.Fprintf(w, "Error [%s]: %s\n", code, rerrors.UserMessage(err))
	switch code {
	case rerrors.ErrCodeInvalidInput, rerrors.ErrCodeInvalidLayer, rerrors.ErrCodeInvalidGeometry,
		rerrors.ErrCodeInvalidConfig, rerrors.ErrCodeInvalidFormat, rerrors.ErrCodeFileNotFound:
		return exitInput
	}
	return exitFailure
}
