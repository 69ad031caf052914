package router

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/matzehuels/metalroute/pkg/errors"
	"github.com/matzehuels/metalroute/pkg/geom"
	"github.com/matzehuels/metalroute/pkg/observability"
	"github.com/matzehuels/metalroute/pkg/resolution"
	"github.com/matzehuels/metalroute/pkg/route"
)

// splice is the attachment of a tap to a routed trunk.
type splice struct {
	arc  resolution.PlaceArc
	at   geom.Point
	node string
	// split is set when at lies inside the arc, so the arc must be cut in
	// two at a new node.
	split bool
}

// nearestSplice projects p onto every arc of res and returns the closest
// attachment point. Ties go to the earlier arc.
func nearestSplice(res *resolution.Resolution, p geom.Point) (splice, bool) {
	best, bd := splice{}, math.Inf(1)
	for _, a := range res.Arcs {
		q := geom.BoundsOf(geom.R(a.From.X, a.From.Y, a.From.X, a.From.Y), geom.R(a.To.X, a.To.Y, a.To.X, a.To.Y)).Clamp(p)
		if d := q.Manhattan(p); d < bd-geom.Eps {
			s := splice{arc: a, at: q}
			switch {
			case q.Eq(a.From):
				s.node = a.FromNode
			case q.Eq(a.To):
				s.node = a.ToNode
			default:
				s.split = true
			}
			best, bd = s, d
		}
	}
	return best, !math.IsInf(bd, 1)
}

// routeTaps connects the taps of a routed spine request one by one. Each tap
// attaches at the closest point of the trunk and of the taps routed before
// it. A failed tap leaves an unrouted marker but keeps the trunk.
func (r *Router) routeTaps(ctx context.Context, j job, o *outcome, cfg route.Config, abort func() bool) {
	q := j.rt.Req
	if o.res == nil || len(q.Taps) == 0 {
		return
	}
	for k, tp := range q.Taps {
		treq := &route.Request{
			ID:      q.ID + "." + tp.ID,
			Net:     q.Net,
			NetName: q.NetName,
			A:       tp.Terminal,
			Width:   q.Width,
		}
		sp, ok := nearestSplice(o.res, tp.Terminal.Aim())
		z, known := r.layerIndex(sp.arc.Layer)
		if !ok || !known {
			err := errors.New(errors.ErrCodeUnroutableEndpoint, "tap %s: trunk %s has no arcs to attach to", treq.ID, q.ID)
			o.unrouted = append(o.unrouted, r.unrouted(treq, err))
			o.stats.Add(resolution.Stats{Attempted: 1, Failed: 1})
			continue
		}
		if sp.split {
			sp.node = fmt.Sprintf("%s.t%d", q.ID, k)
		}
		treq.B = route.Terminal{
			Area:   geom.R(sp.at.X, sp.at.Y, sp.at.X, sp.at.Y),
			Layers: []int{z},
			Mask:   sp.arc.Mask,
			Node:   sp.node,
		}

		tres, tstats, err := r.routeTap(ctx, treq, cfg, abort)
		o.stats.Add(tstats)
		if err != nil {
			if errors.IsFailure(err) {
				o.unrouted = append(o.unrouted, r.unrouted(treq, err))
			}
			continue
		}
		if sp.split {
			o.res.SplitArc(sp.arc.ID, fmt.Sprintf("%s.s%d", q.ID, k), resolution.PlaceNode{
				ID:      sp.node,
				Kind:    resolution.NodePin,
				Request: q.ID,
				Net:     sp.arc.Net,
				Layer:   sp.arc.Layer,
				At:      sp.at,
				Mask:    sp.arc.Mask,
			})
		}
		o.res.Merge(tres)
		r.log.Debug("tap spliced", "request", q.ID, "tap", tp.ID, "arc", sp.arc.ID, "at", sp.at)
	}
}

func (r *Router) routeTap(ctx context.Context, q *route.Request, cfg route.Config, abort func() bool) (*resolution.Resolution, resolution.Stats, error) {
	start := time.Now()
	rt, err := route.Setup(q, r.ix, r.rules, cfg)
	if err != nil {
		o := r.setupFailure(q, err)
		return nil, o.stats, err
	}
	res := rt.Solve(ctx, abort)
	observability.Router().OnRouteComplete(ctx, res.Status.String(), res.Steps, res.Vias(), 0, time.Since(start))
	if !res.Routed() {
		return nil, resolution.Stats{Attempted: 1, Failed: 1, Steps: res.Steps}, res.Err
	}
	out := rt.Realize(res)
	stats := out.Stats
	out.Stats = resolution.Stats{}
	return out, stats, nil
}
