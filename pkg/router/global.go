package router

import (
	"context"
	"math"
	"time"

	"github.com/matzehuels/metalroute/pkg/geom"
	"github.com/matzehuels/metalroute/pkg/globalroute"
	"github.com/matzehuels/metalroute/pkg/observability"
	"github.com/matzehuels/metalroute/pkg/route"
)

// PlanGlobal runs the global router over reqs. The requests are not
// modified; [globalroute.Plan.Corridor] gives each request's corridors.
func (r *Router) PlanGlobal(ctx context.Context, reqs []*route.Request) (*globalroute.Plan, error) {
	start := time.Now()
	area := geom.EmptyRect()
	segs := make([]globalroute.Segment, 0, len(reqs))
	for _, q := range reqs {
		area = area.Union(q.Extent())
		segs = append(segs, globalroute.Segment{ID: q.ID, From: q.A.Aim(), To: q.B.Aim()})
	}

	pitch, layers, width := r.trackStats()
	margin := r.rules.MaxWorstGap() + width
	area = area.Expand(margin, margin)

	pl, err := globalroute.NewPlanner(area, len(segs), globalroute.Config{
		Pitch:  pitch,
		Layers: layers,
		Passes: r.cfg.GlobalPasses,
		Margin: margin,
		Logger: r.log,
	})
	if err != nil {
		return nil, err
	}
	plan, err := pl.Plan(ctx, segs)
	if err != nil {
		return nil, err
	}
	observability.Router().OnGlobalRoute(ctx, pl.Grid().Len(), plan.Overflow, time.Since(start))
	return plan, nil
}

// trackStats returns the average wire pitch over the routing layers, the
// number of layers that may carry wires and the widest default wire.
func (r *Router) trackStats() (pitch float64, layers int, width float64) {
	rs := r.rules.Rules()
	var sum float64
	for z := range rs.MetalCount() {
		if r.cfg.Route.Layers[z].Disabled {
			continue
		}
		m := rs.Metal(z)
		p := m.Pitch
		if p <= 0 {
			p = m.Width + m.Spacing
		}
		sum += p
		layers++
		width = math.Max(width, m.Width)
	}
	if layers == 0 {
		return 0, 0, 0
	}
	return sum / float64(layers), layers, width
}
