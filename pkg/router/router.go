// Package router routes a batch of requests against one blockage index.
//
// [Router.Run] reserves every pending terminal in the index, optionally plans
// global-routing corridors, and then schedules the requests in rounds. Each
// round greedily picks requests whose routing bounds do not overlap, so the
// searches of one round never see each other's geometry and can run on a
// bounded pool of workers. Successful routes are realized into the index
// before the next round starts. Requests that failed with a retryable code
// get one more pass with a larger step budget and without corridors.
//
// A failing request never aborts the batch: it produces an unrouted marker
// in the resolution and the run continues. Only invalid batch input (for
// example duplicate request IDs) makes Run return an error.
package router

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/metalroute/pkg/blockage"
	"github.com/matzehuels/metalroute/pkg/errors"
	"github.com/matzehuels/metalroute/pkg/geom"
	"github.com/matzehuels/metalroute/pkg/globalroute"
	"github.com/matzehuels/metalroute/pkg/observability"
	"github.com/matzehuels/metalroute/pkg/resolution"
	"github.com/matzehuels/metalroute/pkg/route"
	"github.com/matzehuels/metalroute/pkg/tech"
)

// Config controls a batch run.
type Config struct {
	// Route is the per-request search configuration.
	Route route.Config

	// Workers bounds concurrent searches (0 = runtime.NumCPU()).
	Workers int

	// Global plans corridors with the global router before routing.
	Global       bool
	GlobalPasses int

	// Retry reroutes exhausted and limited requests once with
	// RetryMaxSteps and no corridors.
	Retry         bool
	RetryMaxSteps int

	// OnProgress is called after each request completes. It may be called
	// from several goroutines at once.
	OnProgress func(Progress)

	Logger *log.Logger
}

// DefaultConfig returns the standard batch configuration.
func DefaultConfig() Config {
	return Config{
		Route:         route.DefaultConfig(),
		GlobalPasses:  globalroute.DefaultPasses,
		Retry:         true,
		RetryMaxSteps: route.DefaultRetryMaxSteps,
	}
}

// Progress reports one finished request.
type Progress struct {
	Done, Total int
	Request     string
	Status      string
}

// Router routes batches against one index.
type Router struct {
	ix    *blockage.Index
	rules *tech.RuleCache
	cfg   Config
	log   *log.Logger

	// RunID identifies the router's runs in logs and output.
	RunID string

	total int
	done  atomic.Int64
}

// New returns a router over ix. The index is modified by Run: new geometry
// of every routed request is added to it.
func New(ix *blockage.Index, rules *tech.RuleCache, cfg Config) *Router {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.RetryMaxSteps <= 0 {
		cfg.RetryMaxSteps = route.DefaultRetryMaxSteps
	}
	id := uuid.NewString()
	lg := cfg.Logger.With("run", id[:8])
	cfg.Route.Logger = lg
	return &Router{ix: ix, rules: rules, cfg: cfg, log: lg, RunID: id}
}

// outcome is what one request contributed to the run.
type outcome struct {
	res      *resolution.Resolution
	stats    resolution.Stats
	err      error
	unrouted []resolution.Unrouted
}

// Run routes reqs and returns the resolution. Results are merged in request
// order regardless of the order in which workers finish. abort is polled by
// every search and between rounds; it may be nil.
func (r *Router) Run(ctx context.Context, reqs []*route.Request, abort func() bool) (*resolution.Resolution, error) {
	start := time.Now()
	hooks := observability.Router()
	hooks.OnRunStart(ctx, r.RunID, len(reqs))

	if err := checkUnique(reqs); err != nil {
		hooks.OnRunComplete(ctx, r.RunID, 0, 0, time.Since(start), err)
		return nil, err
	}
	reqs = cloneRequests(reqs)
	r.total = len(reqs)
	r.done.Store(0)
	r.log.Info("routing started", "requests", len(reqs), "workers", r.cfg.Workers, "global", r.cfg.Global)

	reserved := r.reserveEndpoints(reqs)
	defer func() {
		for _, b := range reserved {
			r.ix.Remove(b)
		}
	}()

	if r.cfg.Global && len(reqs) > 1 {
		plan, err := r.PlanGlobal(ctx, reqs)
		if err != nil {
			r.log.Warn("global routing skipped", "err", err)
		} else {
			for _, q := range reqs {
				fwd, rev := plan.Corridor(q.ID)
				q.Corridors = [2][]geom.Rect{fwd, rev}
			}
		}
	}

	outs := make([]outcome, len(reqs))
	all := make([]int, len(reqs))
	for i := range all {
		all[i] = i
	}
	r.schedule(ctx, reqs, all, outs, r.cfg.Route, abort)

	retried := make([]bool, len(reqs))
	if r.cfg.Retry {
		var again []int
		for i, o := range outs {
			if o.err != nil && errors.Retryable(errors.GetCode(o.err)) {
				again = append(again, i)
				retried[i] = true
				reqs[i].Corridors = [2][]geom.Rect{}
			}
		}
		if len(again) > 0 {
			r.log.Info("retrying failed requests", "count", len(again), "max_steps", r.cfg.RetryMaxSteps)
			cfg := r.cfg.Route
			cfg.MaxSteps = r.cfg.RetryMaxSteps
			r.total += len(again)
			r.schedule(ctx, reqs, again, outs, cfg, abort)
		}
	}

	out := resolution.New()
	out.RunID = r.RunID
	for i, o := range outs {
		out.Merge(o.res)
		out.Stats.Add(o.stats)
		if retried[i] {
			out.Stats.Retried++
		}
		if errors.IsFailure(o.err) {
			out.Unrouted = append(out.Unrouted, r.unrouted(reqs[i], o.err))
		}
		out.Unrouted = append(out.Unrouted, o.unrouted...)
	}

	s := out.Stats
	r.log.Info("routing complete",
		"routed", s.Routed, "failed", s.Failed, "already_routed", s.AlreadyRouted,
		"wirelength", s.Wirelength, "overhead", fmt.Sprintf("%.3f", s.Overhead()),
		"vias", s.Vias, "steps", s.Steps, "elapsed", time.Since(start).Round(time.Millisecond))
	hooks.OnRunComplete(ctx, r.RunID, s.Routed, s.Failed, time.Since(start), nil)
	return out, nil
}

// cloneRequests copies the requests so that corridors set during a run stay
// with that run. Terminals and taps are shared; nothing writes to them.
func cloneRequests(reqs []*route.Request) []*route.Request {
	out := make([]*route.Request, len(reqs))
	for i, q := range reqs {
		c := *q
		out[i] = &c
	}
	return out
}

func checkUnique(reqs []*route.Request) error {
	seen := make(map[string]bool, len(reqs))
	for _, q := range reqs {
		if q == nil {
			return errors.New(errors.ErrCodeInvalidInput, "nil request")
		}
		if seen[q.ID] {
			return errors.New(errors.ErrCodeInvalidInput, "duplicate request id %q", q.ID)
		}
		seen[q.ID] = true
	}
	return nil
}

// reserveEndpoints adds a pseudo-blockage for every terminal of every
// request, taps included, so routes keep clear of terminals not yet routed.
func (r *Router) reserveEndpoints(reqs []*route.Request) []*blockage.Blockage {
	var out []*blockage.Blockage
	add := func(net blockage.NetID, t route.Terminal) {
		for _, z := range t.Layers {
			if b := r.ix.AddEndpoint(z, t.Area, net); b != nil {
				out = append(out, b)
			}
		}
	}
	for _, q := range reqs {
		add(q.Net, q.A)
		add(q.Net, q.B)
		for _, tp := range q.Taps {
			add(q.Net, tp.Terminal)
		}
	}
	return out
}

func (r *Router) progress(req, status string) {
	if r.cfg.OnProgress == nil {
		return
	}
	r.cfg.OnProgress(Progress{
		Done:    int(r.done.Add(1)),
		Total:   r.total,
		Request: req,
		Status:  status,
	})
}

func (r *Router) layerName(z int) string {
	if m := r.rules.Rules().Metal(z); m != nil {
		return m.Name
	}
	return ""
}

func (r *Router) layerIndex(name string) (int, bool) {
	rs := r.rules.Rules()
	for z := range rs.MetalCount() {
		if rs.Metal(z).Name == name {
			return z, true
		}
	}
	return 0, false
}

// unrouted builds the marker for a failed request.
func (r *Router) unrouted(q *route.Request, err error) resolution.Unrouted {
	u := resolution.Unrouted{
		Request: q.ID,
		Net:     q.NetName,
		A:       q.A.Aim(),
		B:       q.B.Aim(),
		Code:    errors.GetCode(err),
		Message: errors.UserMessage(err),
	}
	if u.Net == "" {
		u.Net = r.ix.Nets().Name(q.Net)
	}
	if u.Code == "" {
		u.Code = errors.ErrCodeInternal
	}
	if len(q.A.Layers) > 0 {
		u.LayerA = r.layerName(q.A.Layers[0])
	}
	if len(q.B.Layers) > 0 {
		u.LayerB = r.layerName(q.B.Layers[0])
	}
	return u
}
