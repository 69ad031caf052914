package route

import (
	"container/heap"
	"context"

	"github.com/matzehuels/metalroute/pkg/geom"
)

// Status is the state of a wavefront.
type Status int

const (
	// Active wavefronts still have vertices to expand.
	Active Status = iota
	// Found means the wavefront reached the other terminal.
	Found
	// Exhausted means the frontier emptied without a solution.
	Exhausted
	// Limited means the step budget ran out.
	Limited
	// Aborted means the search was cancelled.
	Aborted
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Found:
		return "found"
	case Exhausted:
		return "exhausted"
	case Limited:
		return "limited"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

// Direction names the two search directions of a route.
const (
	Forward = 0 // from terminal A to terminal B
	Reverse = 1 // from terminal B to terminal A
)

// Wavefront is one directional best-first search of a route.
type Wavefront struct {
	rt       *Route
	dir      int
	from, to *Endpoint

	arena    []vertex
	frontier frontier
	visited  map[posKey]Handle
	seq      uint64

	status   Status
	steps    int
	maxSteps int
	found    Handle

	// regions is the global-routing bucket sequence the search is confined
	// to; empty when unconstrained.
	regions []geom.Rect
}

func (rt *Route) newWavefront(dir int) *Wavefront {
	from, to := rt.A, rt.B
	if dir == Reverse {
		from, to = rt.B, rt.A
	}
	wf := &Wavefront{
		rt:       rt,
		dir:      dir,
		from:     from,
		to:       to,
		visited:  make(map[posKey]Handle),
		maxSteps: rt.cfg.MaxSteps,
		found:    none,
		regions:  rt.Req.Corridors[dir],
	}
	wf.frontier = frontier{arena: &wf.arena, aim: to.Aim}

	points := from.Points
	if len(points) == 0 {
		points = []geom.Point{from.Aim}
	}
	for _, z := range from.Layers {
		mask := from.Mask
		if m := rt.tech.Metal(z); mask == 0 && m != nil && m.Colored() {
			mask = 1
		}
		for _, p := range points {
			root := vertex{P: p, Z: z, Mask: mask, Parent: none, Width: rt.width[z]}
			if wf.goal(&root) {
				root.state = closed
				wf.arena = append(wf.arena, root)
				wf.found = Handle(len(wf.arena) - 1)
				wf.status = Found
				return wf
			}
			wf.add(root)
		}
	}
	return wf
}

// Status returns the current state.
func (wf *Wavefront) Status() Status { return wf.status }

// Steps returns the number of vertices expanded so far.
func (wf *Wavefront) Steps() int { return wf.steps }

// Step expands the cheapest pending vertex. It checks for cancellation,
// then the step budget, then an empty frontier, in that order.
func (wf *Wavefront) Step(ctx context.Context, abort func() bool) Status {
	if wf.status != Active {
		return wf.status
	}
	switch {
	case ctx.Err() != nil || (abort != nil && abort()):
		wf.status = Aborted
	case wf.steps >= wf.maxSteps:
		wf.status = Limited
	case wf.frontier.Len() == 0:
		wf.status = Exhausted
	}
	if wf.status != Active {
		return wf.status
	}

	h := heap.Pop(&wf.frontier).(Handle)
	wf.arena[h].state = closed
	wf.steps++
	wf.expand(h)
	return wf.status
}

func (wf *Wavefront) expand(h Handle) {
	for _, a := range []Axis{AxisX, AxisY} {
		for _, sign := range []float64{1, -1} {
			wf.planarMove(h, a, sign)
			if wf.status == Found {
				return
			}
		}
	}
	for _, dz := range []int{1, -1} {
		wf.viaMove(h, dz)
		if wf.status == Found {
			return
		}
	}
}

// goal reports whether v is a legal terminal point of the destination.
func (wf *Wavefront) goal(v *vertex) bool {
	if !wf.to.Accepts(v.P, v.Z) {
		return false
	}
	return wf.to.Mask == 0 || v.Mask == 0 || wf.to.Mask == v.Mask
}

// offer prices a candidate and either records it as the solution or queues
// it.
func (wf *Wavefront) offer(nv vertex, m *move) {
	m.to = &nv
	nv.Cost = m.from.Cost + wf.cost(m)
	if wf.goal(&nv) {
		if m.planar {
			wf.taperGoal(&nv)
		}
		nv.state = closed
		nv.heapIdx = -1
		wf.arena = append(wf.arena, nv)
		wf.found = Handle(len(wf.arena) - 1)
		wf.status = Found
		return
	}
	wf.add(nv)
}

// taperGoal widens the final segment to the destination's taper width when
// it is short enough and the wider metal is legal.
func (wf *Wavefront) taperGoal(nv *vertex) {
	to := wf.to
	if to.TaperWidth <= nv.Width || nv.Z != to.TaperLayer {
		return
	}
	p := wf.arena[nv.Parent].P
	if p.Manhattan(nv.P) > to.TaperLength+geom.Eps {
		return
	}
	r := geom.SegmentRect(p, nv.P, to.TaperWidth)
	if ok, _ := wf.metalClear(nv.Z, r, nv.Mask, nv.Parent); ok {
		nv.Width = to.TaperWidth
	}
}

// segmentWidth returns the width of a planar move out of v and whether it
// runs at the start terminal's taper width.
func (wf *Wavefront) segmentWidth(v *vertex) (float64, bool) {
	f := wf.from
	if f.TaperWidth > 0 && v.vias == 0 && v.Z == f.TaperLayer && v.travel < f.TaperLength-geom.Eps {
		return f.TaperWidth, true
	}
	return wf.rt.width[v.Z], false
}

// region returns the area the search may move in from bucket b: the bucket
// and its successor in the corridor.
func (wf *Wavefront) region(b int) (geom.Rect, bool) {
	if len(wf.regions) == 0 {
		return geom.Rect{}, false
	}
	b = min(b, len(wf.regions)-1)
	r := wf.regions[b]
	if b+1 < len(wf.regions) {
		r = r.Union(wf.regions[b+1])
	}
	return r, true
}

// advance moves to the next corridor bucket once p lies inside it.
func (wf *Wavefront) advance(b int, p geom.Point) int {
	if b+1 < len(wf.regions) && wf.regions[b+1].Contains(p) {
		return b + 1
	}
	return b
}
