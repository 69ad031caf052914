package router

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/metalroute/pkg/errors"
	"github.com/matzehuels/metalroute/pkg/geom"
	"github.com/matzehuels/metalroute/pkg/observability"
	"github.com/matzehuels/metalroute/pkg/resolution"
	"github.com/matzehuels/metalroute/pkg/route"
)

// job is a prepared request selected for a round.
type job struct {
	i  int
	rt *route.Route
}

// schedule routes the pending requests in rounds until every one has an
// outcome.
func (r *Router) schedule(ctx context.Context, reqs []*route.Request, pending []int, outs []outcome, cfg route.Config, abort func() bool) {
	for round := 1; len(pending) > 0; round++ {
		if ctx.Err() != nil || (abort != nil && abort()) {
			for _, i := range pending {
				outs[i] = outcome{
					err:   errors.New(errors.ErrCodeSearchAborted, "request %s: run aborted before routing", reqs[i].ID),
					stats: resolution.Stats{Attempted: 1, Failed: 1},
				}
				r.progress(reqs[i].ID, "aborted")
			}
			r.log.Warn("routing aborted", "pending", len(pending))
			return
		}

		jobs, deferred := r.selectRound(reqs, pending, outs, cfg)
		r.log.Debug("routing round", "round", round, "requests", len(jobs), "deferred", len(deferred))
		r.runRound(ctx, jobs, outs, abort)
		for _, j := range jobs {
			r.routeTaps(ctx, j, &outs[j.i], cfg, abort)
		}
		pending = deferred
	}
}

// selectRound prepares the pending requests in order and picks those whose
// routing bounds stay at least the round gap away from every bound already
// picked. Each search may place metal up to its own bound, so bounds that
// touch or come closer than the gap conflict. Requests that fail
// preparation get their outcome immediately; conflicting ones are deferred
// and prepared again next round against the updated index.
func (r *Router) selectRound(reqs []*route.Request, pending []int, outs []outcome, cfg route.Config) (jobs []job, deferred []int) {
	gap := r.roundGap(cfg)
	var bounds []geom.Rect
	for _, i := range pending {
		q := reqs[i]
		rt, err := route.Setup(q, r.ix, r.rules, cfg)
		if err != nil {
			outs[i] = r.setupFailure(q, err)
			r.progress(q.ID, string(errors.GetCode(err)))
			continue
		}
		if conflictsAny(rt.Bound.Expand(gap, gap), bounds) {
			deferred = append(deferred, i)
			continue
		}
		bounds = append(bounds, rt.Bound)
		jobs = append(jobs, job{i: i, rt: rt})
	}
	return jobs, deferred
}

func conflictsAny(b geom.Rect, bs []geom.Rect) bool {
	for _, o := range bs {
		if b.Touches(o) {
			return true
		}
	}
	return false
}

// roundGap is the largest clearance any new shape can require, over metal
// spacing with forced overrides and over every cut spacing rule.
func (r *Router) roundGap(cfg route.Config) float64 {
	g := r.rules.MaxWorstGap()
	for _, o := range cfg.Layers {
		g = max(g, o.ForceSpacing)
	}
	rs := r.rules.Rules()
	for z := range rs.MetalCount() {
		if v := rs.Via(z); v != nil {
			g = max(g, v.CutSpacing, v.DiagonalSpacing, v.ColorSpacing)
		}
	}
	return g
}

// setupFailure records a request that could not be prepared. Already routed
// terminals are a warning, not a failure.
func (r *Router) setupFailure(q *route.Request, err error) outcome {
	code := errors.GetCode(err)
	observability.Router().OnRouteComplete(context.Background(), string(code), 0, 0, 0, 0)
	if code == errors.ErrCodeAlreadyRouted {
		r.log.Warn("request already routed", "request", q.ID, "net", q.NetName)
		return outcome{err: err, stats: resolution.Stats{Attempted: 1, AlreadyRouted: 1}}
	}
	r.log.Warn("request setup failed", "request", q.ID, "net", q.NetName, "code", code, "err", errors.UserMessage(err))
	return outcome{err: err, stats: resolution.Stats{Attempted: 1, Failed: 1}}
}

// runRound searches the jobs of one round concurrently and realizes every
// success. Jobs never return errors, so one failure does not cancel the
// others.
func (r *Router) runRound(ctx context.Context, jobs []job, outs []outcome, abort func() bool) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for _, j := range jobs {
		g.Go(func() error {
			outs[j.i] = r.search(gctx, j.rt, abort)
			return nil
		})
	}
	_ = g.Wait()
}

// search solves and realizes one prepared route.
func (r *Router) search(ctx context.Context, rt *route.Route, abort func() bool) outcome {
	start := time.Now()
	res := rt.Solve(ctx, abort)

	var o outcome
	if res.Routed() {
		o.res = rt.Realize(res)
		o.stats = o.res.Stats
		o.res.Stats = resolution.Stats{}
	} else {
		o.err = res.Err
		o.stats = resolution.Stats{Attempted: 1, Failed: 1, Steps: res.Steps}
	}
	observability.Router().OnRouteComplete(ctx, res.Status.String(), res.Steps, res.Vias(), o.stats.Wirelength, time.Since(start))
	r.progress(rt.Req.ID, res.Status.String())
	return o
}
