package route

import (
	"math"
	"slices"

	"github.com/matzehuels/metalroute/pkg/blockage"
	"github.com/matzehuels/metalroute/pkg/errors"
	"github.com/matzehuels/metalroute/pkg/geom"
	"github.com/matzehuels/metalroute/pkg/tech"
)

// prepareEndpoint validates a terminal. When none of its layers may be
// routed on, it tries to place a via up or down to an allowed layer inside
// the port area.
func (rt *Route) prepareEndpoint(t Terminal, name string) (*Endpoint, error) {
	var layers []int
	for _, z := range t.Layers {
		if rt.Allowed(z) {
			layers = append(layers, z)
		}
	}
	if len(layers) > 0 {
		ep := &Endpoint{
			Terminal: t,
			Area:     t.Area,
			Layers:   layers,
			Mask:     t.Mask,
			Points:   t.Points,
			Aim:      t.Aim(),
		}
		rt.taper(ep)
		return ep, nil
	}

	if ep := rt.insertVia(t); ep != nil {
		rt.log.Debug("relocated endpoint onto inserted via",
			"end", name, "at", ep.Aim, "from", rt.layerName(ep.Via.FromLayer), "to", rt.layerName(ep.Layers[0]))
		return ep, nil
	}

	rt.log.Warn("endpoint unreachable", "end", name, "area", t.Area, "layers", t.Layers)
	return nil, errors.New(errors.ErrCodeUnroutableEndpoint,
		"request %s terminal %s at %v: no allowed layer or legal via reaches the port",
		rt.Req.ID, name, t.Area)
}

// taper sets the taper width from existing own-net metal at the port.
func (rt *Route) taper(ep *Endpoint) {
	z := ep.Layers[0]
	var w float64
	rt.ix.Search(blockage.Metal, z, ep.Area, func(b *blockage.Blockage) bool {
		if !b.Endpoint && rt.own(b) && b.Touches(ep.Area) {
			w = math.Max(w, b.Width())
		}
		return true
	})
	if rt.cfg.MaxArcWidth > 0 {
		w = math.Min(w, rt.cfg.MaxArcWidth)
	}
	if m := rt.tech.Metal(z); m.MaxWidth > 0 {
		w = math.Min(w, m.MaxWidth)
	}
	if w > rt.width[z]+geom.Eps && rt.cfg.TaperLength > 0 {
		ep.TaperWidth = w
		ep.TaperLength = rt.cfg.TaperLength
		ep.TaperLayer = z
	}
}

// insertVia looks for a legal contact inside the port area connecting one of
// the terminal's layers to an adjacent allowed layer.
func (rt *Route) insertVia(t Terminal) *Endpoint {
	probe := &Wavefront{rt: rt, from: &Endpoint{}}
	for _, z := range t.Layers {
		var targets []int
		if rt.cfg.ContactAllowedUp {
			targets = append(targets, z+1)
		}
		if rt.cfg.ContactAllowedDown {
			targets = append(targets, z-1)
		}
		for _, to := range targets {
			if !rt.Allowed(to) {
				continue
			}
			for _, p := range rt.viaSites(t, to) {
				choices := probe.contactsAt(p, z, to, t.Mask, 0, none)
				if len(choices) == 0 {
					continue
				}
				c := choices[0]
				fp := c.Footprint(to, p)
				return &Endpoint{
					Terminal: t,
					Area:     fp,
					Layers:   []int{to},
					Mask:     c.MaskOn(to),
					Points:   []geom.Point{p},
					Aim:      p,
					Via:      &InsertedVia{At: p, FromLayer: z, Choice: c},
				}
			}
		}
	}
	return nil
}

// viaSites lists candidate via positions inside a port: the explicit points
// or the center, then grid points of the target layer inside the area.
func (rt *Route) viaSites(t Terminal, to int) []geom.Point {
	sites := append([]geom.Point(nil), t.Points...)
	if len(sites) == 0 {
		sites = append(sites, t.Area.Center())
	}
	if rt.tech.Directional(to) {
		m := rt.tech.Metal(to)
		var xs, ys []float64
		if m.Direction == tech.Horizontal {
			ys = nativeTrack(m.Offset, m.Pitch, t.Area.MinY, t.Area.MaxY)
			xs = []float64{t.Area.Center().X}
		} else {
			xs = nativeTrack(m.Offset, m.Pitch, t.Area.MinX, t.Area.MaxX)
			ys = []float64{t.Area.Center().Y}
		}
		for _, x := range xs {
			for _, y := range ys {
				sites = append(sites, geom.Pt(x, y))
			}
		}
	}
	a := t.Area
	sites = append(sites,
		geom.Pt(a.MinX, a.MinY), geom.Pt(a.MaxX, a.MinY),
		geom.Pt(a.MinX, a.MaxY), geom.Pt(a.MaxX, a.MaxY))
	return sites
}

// buildGrids computes the per-layer track grids: native tracks on
// directional layers, tracks inherited from an adjacent layer on axes
// without native tracks, and the endpoint coordinates.
func (rt *Route) buildGrids() {
	n := rt.tech.MetalCount()
	native := make([]Grid, n)
	for z := range n {
		g := &native[z]
		g.X.Step, g.Y.Step = rt.cfg.StepSize, rt.cfg.StepSize
		if !rt.tech.Directional(z) {
			continue
		}
		m := rt.tech.Metal(z)
		switch m.Direction {
		case tech.Horizontal:
			g.Y.Coords = nativeTrack(m.Offset, m.Pitch, rt.Bound.MinY, rt.Bound.MaxY)
			g.Y.Pitch = m.Pitch
		case tech.Vertical:
			g.X.Coords = nativeTrack(m.Offset, m.Pitch, rt.Bound.MinX, rt.Bound.MaxX)
			g.X.Pitch = m.Pitch
		}
	}

	rt.grids = make([]Grid, n)
	for z := range n {
		g := native[z]
		for _, adj := range []int{z - 1, z + 1} {
			if adj < 0 || adj >= n {
				continue
			}
			if g.X.Gridless() && !native[adj].X.Gridless() {
				g.X.Coords = slices.Clone(native[adj].X.Coords)
				g.X.Pitch = native[adj].X.Pitch
			}
			if g.Y.Gridless() && !native[adj].Y.Gridless() {
				g.Y.Coords = slices.Clone(native[adj].Y.Coords)
				g.Y.Pitch = native[adj].Y.Pitch
			}
		}
		for _, ep := range []*Endpoint{rt.A, rt.B} {
			pts := append([]geom.Point{ep.Aim}, ep.Points...)
			for _, p := range pts {
				if !g.X.Gridless() {
					g.X.Coords = append(g.X.Coords, p.X)
				}
				if !g.Y.Gridless() {
					g.Y.Coords = append(g.Y.Coords, p.Y)
				}
			}
		}
		g.X.Coords = sortedCoords(g.X.Coords)
		g.Y.Coords = sortedCoords(g.Y.Coords)
		rt.grids[z] = g
	}
}

// eventSet holds the coordinates on one layer where a jump stops so the
// search can turn or change layers there: the edges of nearby obstacles
// expanded by the clearance a wire or contact needs, and the endpoint
// coordinates.
type eventSet struct {
	x, y []float64
}

// next returns the first event strictly beyond v in direction sign, or
// ±Inf when there is none.
func (e *eventSet) next(a Axis, v float64, sign float64) float64 {
	cs := e.x
	if a == AxisY {
		cs = e.y
	}
	if sign > 0 {
		i, found := search(cs, v)
		if found {
			i++
		}
		if i < len(cs) {
			return cs[i]
		}
		return math.Inf(1)
	}
	i, _ := search(cs, v)
	if i > 0 {
		return cs[i-1]
	}
	return math.Inf(-1)
}

func (rt *Route) buildEvents() {
	n := rt.tech.MetalCount()
	rt.events = make([]eventSet, n)
	for z := range n {
		ev := &rt.events[z]
		add := func(r geom.Rect, c float64) {
			ev.x = append(ev.x, r.MinX-c, r.MaxX+c)
			ev.y = append(ev.y, r.MinY-c, r.MaxY+c)
		}
		w := rt.width[z]
		for _, b := range rt.ix.Query(blockage.Metal, z, rt.Bound) {
			if rt.own(b) {
				continue
			}
			add(b.Bounds, rt.spacing(z, w, b.Width(), 0, false)+w/2)
			add(b.Bounds, rt.rules.WorstGap(z)+w/2)
		}
		for _, adj := range []int{z - 1, z + 1} {
			if adj < 0 || adj >= n {
				continue
			}
			half := rt.contactHalf(min(z, adj), adj)
			for _, b := range rt.ix.Query(blockage.Metal, adj, rt.Bound) {
				if rt.own(b) {
					continue
				}
				add(b.Bounds, rt.spacing(adj, 2*half, b.Width(), 0, false)+half)
			}
		}
		for _, lower := range []int{z - 1, z} {
			v := rt.tech.Via(lower)
			if v == nil {
				continue
			}
			for _, b := range rt.ix.Query(blockage.Cut, lower, rt.Bound) {
				add(b.Bounds, math.Max(v.CutSpacing, v.DiagonalSpacing)+v.CutSize/2)
			}
		}
		for _, ep := range []*Endpoint{rt.A, rt.B} {
			ev.x = append(ev.x, ep.Aim.X)
			ev.y = append(ev.y, ep.Aim.Y)
			for _, p := range ep.Points {
				ev.x = append(ev.x, p.X)
				ev.y = append(ev.y, p.Y)
			}
		}
		ev.x = clip(sortedCoords(ev.x), rt.Bound.MinX, rt.Bound.MaxX)
		ev.y = clip(sortedCoords(ev.y), rt.Bound.MinY, rt.Bound.MaxY)
	}
}

func clip(cs []float64, lo, hi float64) []float64 {
	out := cs[:0]
	for _, c := range cs {
		if c >= lo-geom.Eps && c <= hi+geom.Eps {
			out = append(out, c)
		}
	}
	return out
}

// contactHalf returns the largest half-extent of any contact footprint of
// via layer lower on metal z.
func (rt *Route) contactHalf(lower, z int) float64 {
	var h float64
	for _, c := range rt.tech.Contacts(lower) {
		for _, v := range c.Variants {
			r := v.LowerMetal
			if z != lower {
				r = v.UpperMetal
			}
			h = math.Max(h, math.Max(math.Max(-r.MinX, r.MaxX), math.Max(-r.MinY, r.MaxY)))
		}
	}
	return h
}
