package route

import (
	"math"

	"github.com/matzehuels/metalroute/pkg/blockage"
	"github.com/matzehuels/metalroute/pkg/geom"
)

// salvage looks for a position visited by both failed wavefronts and joins
// the two half paths there. Among all common positions it takes the one with
// the least combined cost whose halves are compatible: no cut spacing or
// notch violations between them, and a run at the join that meets the
// minimum area, with a patch if needed.
func (rt *Route) salvage(fwd, rev *Wavefront) ([]PathPoint, []float64, bool) {
	type stitch struct {
		f, r  Handle
		cost  float64
		patch []geom.Rect
	}
	var cands []stitch
	for k, hf := range fwd.visited {
		hr, ok := rev.visited[k]
		if !ok {
			continue
		}
		cands = append(cands, stitch{f: hf, r: hr, cost: fwd.arena[hf].Cost + rev.arena[hr].Cost})
	}
	if len(cands) == 0 {
		return nil, nil, false
	}
	best := -1
	for i, c := range cands {
		if best >= 0 && c.cost > cands[best].cost {
			continue
		}
		if best >= 0 && c.cost == cands[best].cost && !lessPos(fwd.arena[c.f].P, fwd.arena[cands[best].f].P) {
			continue
		}
		patch, ok := rt.compatible(fwd, c.f, rev, c.r)
		if !ok {
			continue
		}
		cands[i].patch = patch
		best = i
	}
	if best < 0 {
		return nil, nil, false
	}
	s := cands[best]

	head, headCosts := fwd.path(s.f)
	tail, tailCosts := rev.path(s.r)
	path := append(head, tail[1:]...)
	path[len(head)-1].Patch = s.patch

	join := fwd.arena[s.f].Cost
	top := rev.arena[s.r].Cost
	costs := headCosts
	for i := len(tailCosts) - 2; i >= 0; i-- {
		costs = append(costs, join+top-tailCosts[i])
	}
	return path, costs, true
}

func lessPos(a, b geom.Point) bool {
	if !geom.Same(a.X, b.X) {
		return a.X < b.X
	}
	return a.Y < b.Y
}

// compatible checks the shapes of one half path against the other for cut
// spacing and same-net notches, then checks the minimum area of the run
// through the join. Each half is already clear of foreign geometry on its
// own. It returns the patch the join run needs, if any.
func (rt *Route) compatible(fwd *Wavefront, hf Handle, rev *Wavefront, hr Handle) ([]geom.Rect, bool) {
	var a, b []pathShape
	fwd.pathShapes(hf, func(ps pathShape) bool { a = append(a, ps); return true })
	rev.pathShapes(hr, func(ps pathShape) bool { b = append(b, ps); return true })
	for _, x := range a {
		for _, y := range b {
			if x.kind != y.kind || x.z != y.z {
				continue
			}
			if x.kind == blockage.Cut {
				if !rt.cutsCompatible(x, y) {
					return nil, false
				}
				continue
			}
			if x.r.Touches(y.r) {
				continue
			}
			s := rt.spacing(x.z, x.r.MinDim(), y.r.MinDim(), parallelLength(x.r, y.r), rt.sameMask(x.z, x.mask, y.mask))
			if dx, dy := x.r.Gap(y.r); dx < s-geom.Eps && dy < s-geom.Eps {
				return nil, false
			}
		}
	}
	return rt.joinPatch(fwd, hf, rev, hr)
}

// joinPatch returns the metal that brings the run through the join up to
// the minimum area. Neither half checked this run: it ends at the join on
// both sides. A run attached to either terminal needs nothing.
func (rt *Route) joinPatch(fwd *Wavefront, hf Handle, rev *Wavefront, hr Handle) ([]geom.Rect, bool) {
	vf, vr := &fwd.arena[hf], &rev.arena[hr]
	z := vf.Z
	need := rt.rules.MinArea(z)
	if need <= 0 {
		return nil, true
	}
	a, attached := fwd.runShapes(hf, z)
	if attached {
		return nil, true
	}
	b, attached := rev.runShapes(hr, z)
	if attached {
		return nil, true
	}
	if geom.UnionArea(append(a, b...)) >= need-geom.Eps {
		return nil, true
	}

	var fp geom.Rect
	switch {
	case vf.hasVia:
		fp = vf.Via.Footprint(z, vf.P)
	case vr.hasVia:
		fp = vr.Via.Footprint(z, vr.P)
	default:
		fp = geom.Centered(vf.P, rt.width[z], rt.width[z])
	}
	return rt.placePatch(z, fp, need, func(r geom.Rect) bool {
		if ok, _ := fwd.metalClear(z, r, vf.Mask, hf); !ok {
			return false
		}
		ok, _ := rev.metalClear(z, r, vf.Mask, hr)
		return ok
	})
}

func (rt *Route) cutsCompatible(x, y pathShape) bool {
	v := rt.tech.Via(x.z)
	if v == nil || x.r.Overlaps(y.r) {
		return true
	}
	dx, dy := x.r.Gap(y.r)
	if dx > geom.Eps && dy > geom.Eps {
		diag := v.DiagonalSpacing
		if diag <= 0 {
			diag = v.CutSpacing
		}
		if math.Hypot(dx, dy) < diag-geom.Eps {
			return false
		}
	} else if math.Max(dx, dy) < v.CutSpacing-geom.Eps {
		return false
	}
	if v.Masks > 1 && x.mask == y.mask && math.Hypot(dx, dy) < v.ColorSpacing-geom.Eps {
		return false
	}
	return true
}
