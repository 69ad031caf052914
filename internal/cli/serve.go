package cli

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matzehuels/metalroute/pkg/observability"
	"github.com/matzehuels/metalroute/pkg/server"
)

// serveCommand creates the serve command, which runs the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
		metrics bool
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the routing HTTP API",
		Long: `Serve the routing pipeline over HTTP.

Endpoints:
  GET  /healthz        liveness and build information
  GET  /metrics        Prometheus metrics (with --metrics)
  POST /v1/route       route a job, returns the resolution
  POST /v1/plan        render the global-routing plan (?format=svg|dot)
  POST /v1/check       validate a job without routing

Request bodies are JSON: {"job": "<job TOML>", "options": {...}}.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runner, err := c.newRunner(ctx, noCache)
			if err != nil {
				return err
			}
			defer runner.Close()

			cfg := server.Config{Addr: addr, Timeout: timeout, Logger: c.Logger}
			if metrics {
				reg := prometheus.NewRegistry()
				reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				m := observability.NewMetrics(reg)
				observability.SetRouterHooks(m)
				observability.SetCacheHooks(m)
				observability.SetHTTPHooks(m)
				defer observability.Reset()
				cfg.Metrics = m.Handler()
			}

			c.Logger.Info("serving", "addr", addr, "timeout", timeout, "metrics", metrics)
			return server.New(runner, cfg).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", server.DefaultAddr, "listen address")
	cmd.Flags().DurationVar(&timeout, "timeout", server.DefaultTimeout, "per-request routing timeout")
	cmd.Flags().BoolVar(&metrics, "metrics", true, "expose Prometheus metrics on /metrics")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}
