package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/metalroute/pkg/cache"
	"github.com/matzehuels/metalroute/pkg/errors"
	"github.com/matzehuels/metalroute/pkg/globalroute"
	jobio "github.com/matzehuels/metalroute/pkg/io"
	"github.com/matzehuels/metalroute/pkg/observability"
	"github.com/matzehuels/metalroute/pkg/resolution"
	"github.com/matzehuels/metalroute/pkg/router"
	"github.com/matzehuels/metalroute/pkg/tech"
)

// Cache key types reported to the cache hooks.
const (
	keyTypeResolution = "resolution"
	keyTypeArtifact   = "artifact"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use it to avoid duplicating caching logic.
//
// The Runner holds no per-run state. Multiple goroutines can use the same
// Runner with different jobs.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Load decodes a job and returns it with the content hash of data.
func (r *Runner) Load(data []byte) (*jobio.Job, string, error) {
	job, err := jobio.ParseJob(data)
	if err != nil {
		return nil, "", err
	}
	return job, cache.Hash(data), nil
}

// Execute runs the complete load → route pipeline. Options come from the
// [router] table of the job; override, when non-nil, is applied on top.
func (r *Runner) Execute(ctx context.Context, data []byte, override func(*Options) error, abort func() bool) (*Result, error) {
	loadStart := time.Now()
	job, hash, err := r.Load(data)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	opts, err := r.JobOptions(job, override)
	if err != nil {
		return nil, err
	}
	result := &Result{JobHash: hash}
	result.Stats.LoadTime = time.Since(loadStart)
	result.Stats.Requests = len(job.Requests)
	r.Logger.Info("loaded job",
		"name", job.Name,
		"requests", len(job.Requests),
		"layers", job.Tech.MetalCount(),
		"duration", result.Stats.LoadTime)

	routeStart := time.Now()
	res, hit, err := r.RouteWithCacheInfo(ctx, job, hash, opts, abort)
	if err != nil {
		return nil, fmt.Errorf("route: %w", err)
	}
	result.Resolution = res
	result.Stats.RouteTime = time.Since(routeStart)
	result.CacheInfo.RouteHit = hit
	return result, nil
}

// JobOptions decodes the [router] table of job and applies override.
func (r *Runner) JobOptions(job *jobio.Job, override func(*Options) error) (Options, error) {
	var opts Options
	if err := job.DecodeRouter(&opts); err != nil {
		return Options{}, err
	}
	if override != nil {
		if err := override(&opts); err != nil {
			return Options{}, err
		}
	}
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// RouteWithCacheInfo routes job with caching and reports whether the result
// came from the cache. The job index is modified only on a miss.
func (r *Runner) RouteWithCacheInfo(ctx context.Context, job *jobio.Job, hash string, opts Options, abort func() bool) (*resolution.Resolution, bool, error) {
	r.applyLogger(&opts)
	cfg, err := opts.RouterConfig(job.Tech)
	if err != nil {
		return nil, false, err
	}
	hooks := observability.Cache()
	key := r.Keyer.ResolutionKey(hash, opts.KeyOpts())

	// Try cache first (unless refresh requested)
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			if res, err := resolution.ReadJSON(bytes.NewReader(data)); err == nil {
				hooks.OnCacheHit(ctx, keyTypeResolution)
				r.Logger.Info("resolution from cache", "key", key[:24])
				return res, true, nil
			}
		} else if err != nil {
			r.Logger.Warn("cache lookup failed", "err", err)
		}
		hooks.OnCacheMiss(ctx, keyTypeResolution)
	}

	rt := router.New(job.Index, tech.NewRuleCache(job.Tech), cfg)
	res, err := rt.Run(ctx, job.Requests, abort)
	if err != nil {
		return nil, false, err
	}

	// Aborted runs depend on timing and are not cached.
	if ctx.Err() == nil && !aborted(res) {
		var buf bytes.Buffer
		if err := res.WriteJSON(&buf); err == nil {
			if err := r.Cache.Set(ctx, key, buf.Bytes(), cache.TTLResolution); err != nil {
				r.Logger.Warn("cache store failed", "err", err)
			} else {
				hooks.OnCacheSet(ctx, keyTypeResolution, buf.Len())
			}
		}
	}
	return res, false, nil
}

// Route is a convenience wrapper that calls RouteWithCacheInfo and discards
// the cache hit info.
func (r *Runner) Route(ctx context.Context, job *jobio.Job, hash string, opts Options, abort func() bool) (*resolution.Resolution, error) {
	res, _, err := r.RouteWithCacheInfo(ctx, job, hash, opts, abort)
	return res, err
}

// Plan runs only the global router over the requests of job.
func (r *Runner) Plan(ctx context.Context, job *jobio.Job, opts Options) (*globalroute.Plan, error) {
	r.applyLogger(&opts)
	cfg, err := opts.RouterConfig(job.Tech)
	if err != nil {
		return nil, err
	}
	return router.New(job.Index, tech.NewRuleCache(job.Tech), cfg).PlanGlobal(ctx, job.Requests)
}

// RenderPlanWithCacheInfo renders the global-routing plan of job in format
// ("svg" or "dot") with caching.
func (r *Runner) RenderPlanWithCacheInfo(ctx context.Context, job *jobio.Job, hash string, opts Options, format string) ([]byte, bool, error) {
	if err := ValidateFormat(format); err != nil {
		return nil, false, err
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}
	hooks := observability.Cache()
	key := r.Keyer.ArtifactKey(hash, opts.ArtifactKeyOpts(format))
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			hooks.OnCacheHit(ctx, keyTypeArtifact)
			return data, true, nil
		}
		hooks.OnCacheMiss(ctx, keyTypeArtifact)
	}

	pl, err := r.Plan(ctx, job, opts)
	if err != nil {
		return nil, false, err
	}
	out := []byte(globalroute.ToDOT(pl))
	if format == FormatSVG {
		if out, err = globalroute.RenderSVG(ctx, string(out)); err != nil {
			return nil, false, errors.Wrap(errors.ErrCodeInternal, err, "render plan")
		}
	}
	if err := r.Cache.Set(ctx, key, out, cache.TTLArtifact); err == nil {
		hooks.OnCacheSet(ctx, keyTypeArtifact, len(out))
	}
	return out, false, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func aborted(res *resolution.Resolution) bool {
	for _, u := range res.Unrouted {
		if u.Code == errors.ErrCodeSearchAborted {
			return true
		}
	}
	return false
}
