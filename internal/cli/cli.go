// Package cli implements the metalroute command-line interface.
//
// # Commands
//
//   - route: route the requests of a job file and write the resolution
//   - global: render the global-routing congestion plan of a job
//   - check: validate a job without routing
//   - serve: run the HTTP API
//   - cache: manage the resolution cache
//   - completion: generate shell completion scripts
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/metalroute/pkg/buildinfo"
	"github.com/matzehuels/metalroute/pkg/cache"
	"github.com/matzehuels/metalroute/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "metalroute"

	// cacheEnv selects the cache backend when --cache is not given.
	cacheEnv = "METALROUTE_CACHE"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// cacheBackend names the cache backend (see cache.Open).
	cacheBackend string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "metalroute routes IC metal layers",
		Long: `metalroute is a gridless detailed router for integrated-circuit metal layers.
It connects pairs of terminals through a stack of metal and via layers while
honoring the spacing, enclosure and area rules of the technology.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.cacheBackend, "cache", os.Getenv(cacheEnv),
		"cache backend: file, file:<dir>, none, redis://..., mongodb://... (env "+cacheEnv+")")

	// Register all subcommands
	root.AddCommand(c.routeCommand())
	root.AddCommand(c.globalCommand())
	root.AddCommand(c.checkCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	ch, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(ch, nil, c.Logger), nil
}

// newCache opens the configured backend. A local file cache that cannot be
// created disables caching instead of failing the command.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	ch, err := cache.Open(ctx, c.cacheBackend)
	if err != nil {
		if c.cacheBackend == "" || c.cacheBackend == "file" {
			c.Logger.Warn("cache disabled", "err", err)
			return cache.NewNullCache(), nil
		}
		return nil, err
	}
	return ch, nil
}
