package blockage

import "github.com/matzehuels/metalroute/pkg/geom"

// Port is a terminal area on one metal layer.
type Port struct {
	Layer int
	Area  geom.Rect
}

// GrowResult summarizes a flood fill.
type GrowResult struct {
	// Net is the surviving network cell after all merges.
	Net NetID
	// Shapes is the number of metal and cut blockages reached.
	Shapes int
	// Connected reports whether the fill reached one of the target ports.
	Connected bool
}

// Grow flood-fills the geometry electrically connected to the from ports:
// metal that touches on the same layer, and cuts that touch metal on either
// of the two layers they join. Every network reached is merged into net, so
// afterwards the search treats that metal as its own. Endpoint
// pseudo-blockages are not traversed.
//
// Connected is set when the fill, or a from port directly, touches one of
// the to ports, which means the terminals are already wired together.
func (ix *Index) Grow(net NetID, from, to []Port) GrowResult {
	res := GrowResult{Net: ix.nets.Find(net)}
	if res.Net == NoNet {
		res.Net = net
	}

	reaches := func(layer int, b *Blockage) bool {
		for _, p := range to {
			if p.Layer == layer && b.Touches(p.Area) {
				return true
			}
		}
		return false
	}
	for _, f := range from {
		for _, p := range to {
			if f.Layer == p.Layer && f.Area.Touches(p.Area) {
				res.Connected = true
			}
		}
	}

	seen := make(map[*Blockage]bool)
	var queue []*Blockage
	push := func(b *Blockage) {
		if b.Endpoint || seen[b] {
			return
		}
		seen[b] = true
		queue = append(queue, b)
	}
	touching := func(kind Kind, layer int, shape *Blockage, r geom.Rect) {
		ix.Search(kind, layer, r, func(o *Blockage) bool {
			if o.Touches(r) && (shape == nil || shape.Poly == nil || shape.Poly.Touches(o.Bounds)) {
				push(o)
			}
			return true
		})
	}

	for _, f := range from {
		touching(Metal, f.Layer, nil, f.Area)
	}

	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		res.Shapes++
		if b.Net != NoNet {
			res.Net = ix.nets.Union(res.Net, b.Net)
		}

		switch b.Kind {
		case Metal:
			if reaches(b.Layer, b) {
				res.Connected = true
			}
			touching(Metal, b.Layer, b, b.Bounds)
			touching(Cut, b.Layer, b, b.Bounds)
			touching(Cut, b.Layer-1, b, b.Bounds)
		case Cut:
			touching(Metal, b.Layer, nil, b.Bounds)
			touching(Metal, b.Layer+1, nil, b.Bounds)
			for _, p := range to {
				if (p.Layer == b.Layer || p.Layer == b.Layer+1) && b.Touches(p.Area) {
					res.Connected = true
				}
			}
		}
	}
	return res
}
