package route

import (
	"math"

	"github.com/matzehuels/metalroute/pkg/blockage"
	"github.com/matzehuels/metalroute/pkg/geom"
)

// maxBackoff bounds how often a blocked planar move is halved.
const maxBackoff = 8

// freeRun returns the furthest centerline coordinate a wire of width w can
// reach from p along axis a in direction sign before foreign metal on layer
// z requires spacing. The result is clipped to the routing bound.
func (wf *Wavefront) freeRun(p geom.Point, z int, w float64, mask int, a Axis, sign float64) float64 {
	rt := wf.rt
	cur := a.of(p)
	limit := boundEdge(rt.Bound, a, sign, w)
	if sign*(limit-cur) <= 0 {
		return cur
	}
	band := w/2 + rt.rules.WorstGap(z)
	if f := rt.cfg.override(z).ForceSpacing; f > rt.rules.WorstGap(z) {
		band = w/2 + f
	}

	var corridor geom.Rect
	if a == AxisX {
		corridor = geom.R(cur, p.Y-band, limit+sign*band, p.Y+band)
	} else {
		corridor = geom.R(p.X-band, cur, p.X+band, limit+sign*band)
	}
	wire := geom.Centered(p, w, w)
	rt.ix.Search(blockage.Metal, z, corridor, func(b *blockage.Blockage) bool {
		if rt.own(b) {
			return true
		}
		s := rt.spacing(z, w, b.Width(), 0, rt.sameMask(z, mask, b.Mask))
		// perpendicular separation between the wire track and b
		var gap, lo, hi float64
		if a == AxisX {
			gap = math.Max(0, math.Max(b.Bounds.MinY-wire.MaxY, wire.MinY-b.Bounds.MaxY))
			lo, hi = b.Bounds.MinX, b.Bounds.MaxX
		} else {
			gap = math.Max(0, math.Max(b.Bounds.MinX-wire.MaxX, wire.MinX-b.Bounds.MaxX))
			lo, hi = b.Bounds.MinY, b.Bounds.MaxY
		}
		if gap >= s-geom.Eps {
			return true
		}
		if sign > 0 && hi > cur {
			limit = math.Min(limit, lo-s-w/2)
		} else if sign < 0 && lo < cur {
			limit = math.Max(limit, hi+s+w/2)
		}
		return true
	})
	if sign*(limit-cur) < 0 {
		return cur
	}
	return limit
}

// boundEdge returns the last centerline coordinate inside r for a wire of
// width w moving in direction sign along a.
func boundEdge(r geom.Rect, a Axis, sign, w float64) float64 {
	switch {
	case a == AxisX && sign > 0:
		return r.MaxX - w/2
	case a == AxisX:
		return r.MinX + w/2
	case sign > 0:
		return r.MaxY - w/2
	default:
		return r.MinY + w/2
	}
}

func toward(sign, limit, v float64) float64 {
	if sign > 0 {
		return math.Min(limit, v)
	}
	return math.Max(limit, v)
}

// planarMove expands v along axis a in direction sign. It jumps as far as
// the free run, the routing bound, the corridor region, the taper length
// and the next event coordinate allow, falls back to a single grid step, and
// halves the distance while the wire is illegal.
func (wf *Wavefront) planarMove(h Handle, a Axis, sign float64) {
	rt := wf.rt
	v := wf.arena[h]
	if v.Dir.planar() && v.Dir.axis() == a && planarDir(a, -sign) == v.Dir {
		return
	}
	z := v.Z
	w, tapered := wf.segmentWidth(&v)
	cur := a.of(v.P)

	free := wf.freeRun(v.P, z, w, v.Mask, a, sign)
	hard := free
	if r, ok := wf.region(v.bucket); ok {
		hard = toward(sign, hard, boundEdge(r, a, sign, 0))
	}
	soft := hard
	if tapered {
		soft = toward(sign, soft, cur+sign*(wf.from.TaperLength-v.travel))
	}
	if ev := rt.events[z].next(a, cur, sign); !math.IsInf(ev, 0) {
		soft = toward(sign, soft, ev)
	}

	track := rt.grids[z].Axis(a)
	snap := func(x float64) float64 {
		if !rt.cfg.ForceGrid {
			return x
		}
		if sign > 0 {
			return track.Floor(x)
		}
		return track.Ceil(x)
	}

	target := snap(soft)
	if sign*(target-cur) <= geom.Eps {
		if sign > 0 {
			target = track.Upper(cur)
		} else {
			target = track.Lower(cur)
		}
		if sign*(target-hard) > geom.Eps {
			return
		}
	}

	d := sign * (target - cur)
	var q geom.Point
	for i := 0; ; i++ {
		q = a.with(v.P, cur+sign*d)
		ok, c := wf.metalClear(z, geom.SegmentRect(v.P, q, w), v.Mask, h)
		if ok {
			break
		}
		if i == 0 && c.b != nil {
			rt.log.Debug("move blocked", "at", v.P, "to", q, "layer", rt.layerName(z),
				"blockage", c.b.ID, "net", rt.ix.Nets().Name(c.b.Net), "notch", c.notch)
		}
		if i >= maxBackoff {
			return
		}
		d = sign * (snap(cur+sign*d/2) - cur)
		if d <= geom.Eps {
			return
		}
	}

	nv := vertex{
		P:      q,
		Z:      z,
		Mask:   v.Mask,
		Parent: h,
		Dir:    planarDir(a, sign),
		Width:  w,
		travel: v.travel,
		vias:   v.vias,
		bucket: wf.advance(v.bucket, q),
	}
	if v.vias == 0 {
		nv.travel += d
	}
	m := &move{from: &v, planar: true, axis: a, length: d}
	if ahead := sign * (hard - a.of(q)); ahead > geom.Eps && d < 2*rt.unit {
		m.ahead = ahead
		m.behind = math.Abs(cur - wf.freeRun(v.P, z, w, v.Mask, a, -sign))
	}
	wf.offer(nv, m)
}

// viaMove expands v to the adjacent layer z+dz through the first legal
// contact variant, adding minimum-area metal to the run being left when
// needed.
func (wf *Wavefront) viaMove(h Handle, dz int) {
	rt := wf.rt
	v := wf.arena[h]
	to := v.Z + dz
	if !rt.Allowed(to) {
		return
	}
	toMask := 0
	if wf.to.Accepts(v.P, to) {
		toMask = wf.to.Mask
	}
	dir := dirUp
	if dz < 0 {
		dir = dirDown
	}
	for _, c := range wf.contactsAt(v.P, v.Z, to, v.Mask, toMask, h) {
		extra, ok := wf.minAreaPatch(h, v.Z, c.Footprint(v.Z, v.P), c.MaskOn(v.Z))
		if !ok {
			continue
		}
		nv := vertex{
			P:      v.P,
			Z:      to,
			Mask:   c.MaskOn(to),
			Parent: h,
			Dir:    dir,
			Width:  rt.width[to],
			Via:    c,
			hasVia: true,
			Extra:  extra,
			ExtraZ: v.Z,
			travel: v.travel,
			vias:   v.vias + 1,
			bucket: v.bucket,
		}
		wf.offer(nv, &move{from: &v})
		return
	}
}
