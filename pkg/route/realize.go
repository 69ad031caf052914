package route

import (
	"fmt"

	"github.com/matzehuels/metalroute/pkg/blockage"
	"github.com/matzehuels/metalroute/pkg/geom"
	"github.com/matzehuels/metalroute/pkg/resolution"
)

// step is one element of a realized path: a straight wire or a contact.
type step struct {
	via *ViaChoice

	// wire
	a, b  geom.Point
	z     int
	width float64
	mask  int

	// contact
	at     geom.Point
	extra  []geom.Rect
	extraZ int
}

func (s step) axis() Axis {
	if geom.Same(s.a.Y, s.b.Y) {
		return AxisX
	}
	return AxisY
}

// steps turns the path into wires and contacts, merging collinear runs on
// the same layer and width, and adds the contacts inserted at relocated
// terminals.
func (rt *Route) steps(res *Result) []step {
	var out []step
	if iv := rt.A.Via; iv != nil {
		c := iv.Choice
		out = append(out, step{via: &c, at: iv.At})
	}
	for i := 1; i < len(res.Path); i++ {
		p, q := res.Path[i-1], res.Path[i]
		if q.Via != nil {
			out = append(out, step{via: q.Via, at: q.P, extra: q.Extra, extraZ: q.ExtraZ})
			continue
		}
		if p.P.Eq(q.P) {
			continue
		}
		s := step{a: p.P, b: q.P, z: q.Z, width: q.Width, mask: q.Mask}
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.via == nil && last.z == s.z && geom.Same(last.width, s.width) &&
				last.axis() == s.axis() && last.b.Eq(s.a) {
				last.b = s.b
				continue
			}
		}
		out = append(out, s)
	}
	if iv := rt.B.Via; iv != nil {
		c := iv.Choice
		out = append(out, step{via: &c, at: iv.At})
	}
	return out
}

// Realize converts a successful result into placement instructions, adds the
// new geometry to the blockage index under the request's net and releases
// the request's terminal reservations. Arc and node IDs are derived from the
// request ID.
func (rt *Route) Realize(res *Result) *resolution.Resolution {
	out := resolution.New()
	if !res.Routed() {
		return out
	}
	req := rt.Req
	net := req.NetName
	if net == "" {
		net = rt.ix.Nets().Name(rt.net)
	}

	var nNode, nArc int
	newNode := func(n resolution.PlaceNode) string {
		n.ID = fmt.Sprintf("%s.n%d", req.ID, nNode)
		nNode++
		n.Request, n.Net = req.ID, net
		out.Nodes = append(out.Nodes, n)
		return n.ID
	}
	pin := func(p geom.Point, z, mask int) string {
		return newNode(resolution.PlaceNode{Kind: resolution.NodePin, Layer: rt.layerName(z), At: p, Mask: mask})
	}
	contact := func(s step) string {
		c := s.via
		for _, r := range s.extra {
			newNode(resolution.PlaceNode{
				Kind: resolution.NodePatch, Layer: rt.layerName(s.extraZ), At: r.Center(),
				Mask: c.MaskOn(s.extraZ), Shapes: []geom.Rect{r},
			})
			rt.ix.AddMetal(s.extraZ, r, rt.net, c.MaskOn(s.extraZ))
		}
		cuts := c.Cuts(s.at)
		id := newNode(resolution.PlaceNode{
			Kind: resolution.NodeContact, Layer: rt.layerName(c.Lower), Upper: rt.layerName(c.Lower + 1),
			At: s.at, Mask: c.LowerMask, Contact: c.Contact.Name, Variant: c.Variant.Name,
			CutMask: c.CutMask, Shapes: cuts,
		})
		rt.ix.AddMetal(c.Lower, c.Footprint(c.Lower, s.at), rt.net, c.LowerMask)
		rt.ix.AddMetal(c.Lower+1, c.Footprint(c.Lower+1, s.at), rt.net, c.UpperMask)
		for _, cut := range cuts {
			rt.ix.AddCut(c.Lower, cut, rt.net, c.CutMask)
		}
		out.Stats.Vias++
		return id
	}

	for _, p := range res.Path {
		for _, r := range p.Patch {
			newNode(resolution.PlaceNode{
				Kind: resolution.NodePatch, Layer: rt.layerName(p.Z), At: r.Center(),
				Mask: p.Mask, Shapes: []geom.Rect{r},
			})
			rt.ix.AddMetal(p.Z, r, rt.net, p.Mask)
		}
	}

	steps := rt.steps(res)
	here := ""
	for i, s := range steps {
		if s.via != nil {
			if here == "" || i == 0 || steps[i-1].via != nil {
				here = contact(s)
			}
			continue
		}
		from := here
		if from == "" {
			from = req.A.Node
			if i > 0 || from == "" {
				from = pin(s.a, s.z, s.mask)
			}
		}
		var to string
		switch {
		case i+1 < len(steps) && steps[i+1].via != nil:
			to = contact(steps[i+1])
		case i+1 < len(steps):
			to = pin(s.b, s.z, s.mask)
		case req.B.Node != "" && rt.B.Via == nil:
			to = req.B.Node
		default:
			to = pin(s.b, s.z, s.mask)
		}
		out.Arcs = append(out.Arcs, resolution.PlaceArc{
			ID:       fmt.Sprintf("%s.a%d", req.ID, nArc),
			Request:  req.ID,
			Net:      net,
			Layer:    rt.layerName(s.z),
			Width:    s.width,
			From:     s.a,
			To:       s.b,
			FromNode: from,
			ToNode:   to,
			Mask:     s.mask,
		})
		nArc++
		rt.ix.AddMetal(s.z, geom.SegmentRect(s.a, s.b, s.width), rt.net, s.mask)
		out.Stats.Wirelength += s.a.Manhattan(s.b)
		here = to
	}

	for _, id := range req.KillArcs {
		out.KillArcs = append(out.KillArcs, resolution.Kill{ID: id, Request: req.ID})
	}
	for _, id := range req.KillNodes {
		out.KillNodes = append(out.KillNodes, resolution.Kill{ID: id, Request: req.ID})
	}
	rt.releaseEndpoints()

	out.Stats.Attempted = 1
	out.Stats.Routed = 1
	out.Stats.IdealHPWL = req.HPWL()
	out.Stats.Steps = res.Steps
	return out
}

// releaseEndpoints removes the pseudo-blockages reserving this request's
// terminals.
func (rt *Route) releaseEndpoints() {
	for _, t := range []Terminal{rt.Req.A, rt.Req.B} {
		for _, z := range t.Layers {
			for _, b := range rt.ix.Query(blockage.Metal, z, t.Area) {
				if b.Endpoint && rt.own(b) && t.Area.ContainsRect(b.Bounds) {
					rt.ix.Remove(b)
				}
			}
		}
	}
}
