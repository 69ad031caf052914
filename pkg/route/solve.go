package route

import (
	"context"
	"sync"

	"github.com/matzehuels/metalroute/pkg/errors"
	"github.com/matzehuels/metalroute/pkg/geom"
)

// PathPoint is one vertex of a routed path. The fields after Mask describe
// the edge arriving at the point from its predecessor.
type PathPoint struct {
	P    geom.Point
	Z    int
	Mask int

	// Width of the planar segment arriving here (0 for the first point and
	// after a layer change).
	Width float64
	// Via is the contact placed when the point is reached by a layer change.
	Via *ViaChoice
	// Extra is minimum-area metal added on layer ExtraZ with the contact.
	Extra  []geom.Rect
	ExtraZ int

	// Patch is minimum-area metal on layer Z at the point itself. Only a
	// salvaged path sets it, at the join.
	Patch []geom.Rect
}

// Result is the outcome of one route search.
type Result struct {
	Request *Request
	Status  Status
	Err     error

	// Path runs from terminal A to terminal B.
	Path []PathPoint
	// Costs holds the vertex costs in the order the search created them.
	Costs []float64

	// Direction is "forward", "reverse" or "salvage".
	Direction string
	Steps     int
}

// Routed reports whether the search produced a path.
func (r *Result) Routed() bool { return r.Status == Found && len(r.Path) > 0 }

// Vias counts the layer changes of the path.
func (r *Result) Vias() int {
	n := 0
	for _, p := range r.Path {
		if p.Via != nil {
			n++
		}
	}
	return n
}

// Solve runs both wavefronts until one reaches the other terminal, the
// step budgets run out, or the context is cancelled. abort is polled once
// per step and may be nil.
func (rt *Route) Solve(ctx context.Context, abort func() bool) *Result {
	fwd := rt.newWavefront(Forward)
	rev := rt.newWavefront(Reverse)

	var win *Wavefront
	if rt.cfg.ParallelDirections {
		win = rt.race(ctx, abort, fwd, rev)
	} else {
		win = rt.alternate(ctx, abort, fwd, rev)
	}

	res := &Result{Request: rt.Req, Steps: fwd.steps + rev.steps}
	if win != nil {
		res.Status = Found
		res.Path, res.Costs = win.path(win.found)
		res.Direction = "forward"
		if win.dir == Reverse {
			res.Direction = "reverse"
		}
		rt.log.Debug("route found", "direction", res.Direction, "steps", res.Steps, "cost", res.Costs[len(res.Costs)-1])
		return res
	}

	if rt.cfg.Salvage && fwd.status != Aborted && rev.status != Aborted {
		if path, costs, ok := rt.salvage(fwd, rev); ok {
			res.Status, res.Path, res.Costs, res.Direction = Found, path, costs, "salvage"
			rt.log.Info("route salvaged from two failed searches", "steps", res.Steps)
			return res
		}
	}

	switch {
	case fwd.status == Aborted || rev.status == Aborted:
		res.Status = Aborted
	case fwd.status == Limited || rev.status == Limited:
		res.Status = Limited
	default:
		res.Status = Exhausted
	}
	res.Err = errors.New(statusCode(res.Status),
		"request %s: search %s after %d steps between %v on %s and %v on %s",
		rt.Req.ID, res.Status, res.Steps,
		rt.A.Aim, rt.layerName(rt.A.Layers[0]), rt.B.Aim, rt.layerName(rt.B.Layers[0]))
	rt.log.Warn("route failed", "status", res.Status, "steps", res.Steps,
		"a", rt.A.Aim, "b", rt.B.Aim, "bound", rt.Bound)
	return res
}

func statusCode(s Status) errors.Code {
	switch s {
	case Limited:
		return errors.ErrCodeSearchLimited
	case Aborted:
		return errors.ErrCodeSearchAborted
	}
	return errors.ErrCodeSearchExhausted
}

// alternate steps the two wavefronts in turn on the calling goroutine.
func (rt *Route) alternate(ctx context.Context, abort func() bool, fwd, rev *Wavefront) *Wavefront {
	for {
		for _, wf := range []*Wavefront{fwd, rev} {
			if wf.Step(ctx, abort) == Found {
				return wf
			}
		}
		if fwd.status != Active && rev.status != Active {
			return nil
		}
	}
}

// race runs each wavefront on its own goroutine. The first to succeed
// commits and cancels the other.
func (rt *Route) race(ctx context.Context, abort func() bool, fwd, rev *Wavefront) *Wavefront {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu  sync.Mutex
		win *Wavefront
		wg  sync.WaitGroup
	)
	for _, wf := range []*Wavefront{fwd, rev} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for wf.Step(ctx, abort) == Active {
			}
			if wf.status != Found {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if win == nil {
				win = wf
				cancel()
			}
		}()
	}
	wg.Wait()
	return win
}

// path converts the chain ending at h into path points ordered from A to B.
func (wf *Wavefront) path(h Handle) ([]PathPoint, []float64) {
	hs := wf.chain(h)
	pts := make([]PathPoint, len(hs))
	costs := make([]float64, len(hs))
	for i, hh := range hs {
		v := &wf.arena[hh]
		pts[i] = wf.point(v)
		costs[i] = v.Cost
	}
	if wf.dir == Reverse {
		pts = reversePath(pts)
	}
	return pts, costs
}

func (wf *Wavefront) point(v *vertex) PathPoint {
	pp := PathPoint{P: v.P, Z: v.Z, Mask: v.Mask, Extra: v.Extra, ExtraZ: v.ExtraZ}
	if v.Parent != none {
		if v.hasVia {
			c := v.Via
			pp.Via = &c
		} else {
			pp.Width = v.Width
		}
	}
	return pp
}

// reversePath reverses a path, moving the arriving-edge attributes of each
// point onto the point that now precedes the edge.
func reversePath(pts []PathPoint) []PathPoint {
	n := len(pts)
	out := make([]PathPoint, n)
	for i := range n {
		src := pts[n-1-i]
		out[i] = PathPoint{P: src.P, Z: src.Z, Mask: src.Mask}
		if i > 0 {
			e := pts[n-i]
			out[i].Width, out[i].Via, out[i].Extra, out[i].ExtraZ = e.Width, e.Via, e.Extra, e.ExtraZ
		}
	}
	return out
}
