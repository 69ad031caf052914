package route

import (
	"math"

	"github.com/matzehuels/metalroute/pkg/blockage"
	"github.com/matzehuels/metalroute/pkg/geom"
	"github.com/matzehuels/metalroute/pkg/tech"
)

// ViaChoice is a contact variant selected at one layer change, with the mask
// colors it was placed with.
type ViaChoice struct {
	Contact tech.Contact
	Variant tech.ContactVariant
	// Lower is the lower metal of the contact.
	Lower     int
	CutMask   int
	LowerMask int
	UpperMask int
}

// Footprint returns the metal of the contact on layer z placed at p.
func (c ViaChoice) Footprint(z int, p geom.Point) geom.Rect {
	return c.Contact.MetalAt(c.Variant, z, p)
}

// MaskOn returns the mask color of the contact metal on layer z.
func (c ViaChoice) MaskOn(z int) int {
	if z == c.Lower {
		return c.LowerMask
	}
	return c.UpperMask
}

// Cuts returns the cut rectangles placed at p.
func (c ViaChoice) Cuts(p geom.Point) []geom.Rect { return c.Variant.CutsAt(p) }

// pathShape is a piece of geometry the partial path would create.
type pathShape struct {
	kind blockage.Kind
	z    int
	r    geom.Rect
	mask int
}

// pathShapes calls fn for every shape of the chain ending at h, newest first.
// It includes the inserted terminal via of the start endpoint, if any.
func (wf *Wavefront) pathShapes(h Handle, fn func(pathShape) bool) {
	for cur := h; cur != none; cur = wf.arena[cur].Parent {
		v := &wf.arena[cur]
		if v.Parent != none {
			p := &wf.arena[v.Parent]
			if v.hasVia {
				c := v.Via
				if !fn(pathShape{blockage.Metal, c.Lower, c.Footprint(c.Lower, v.P), c.LowerMask}) ||
					!fn(pathShape{blockage.Metal, c.Lower + 1, c.Footprint(c.Lower+1, v.P), c.UpperMask}) {
					return
				}
				for _, r := range c.Cuts(v.P) {
					if !fn(pathShape{blockage.Cut, c.Lower, r, c.CutMask}) {
						return
					}
				}
			} else if !fn(pathShape{blockage.Metal, v.Z, geom.SegmentRect(p.P, v.P, v.Width), v.Mask}) {
				return
			}
		}
		for _, r := range v.Extra {
			if !fn(pathShape{blockage.Metal, v.ExtraZ, r, v.Mask}) {
				return
			}
		}
	}
	if iv := wf.from.Via; iv != nil {
		c := iv.Choice
		fn(pathShape{blockage.Metal, iv.FromLayer, c.Footprint(iv.FromLayer, iv.At), c.MaskOn(iv.FromLayer)})
		for _, r := range c.Cuts(iv.At) {
			if !fn(pathShape{blockage.Cut, c.Lower, r, c.CutMask}) {
				return
			}
		}
	}
}

// parallelLength is the length over which two shapes separated along one
// axis face each other.
func parallelLength(a, b geom.Rect) float64 {
	dx, dy := a.Gap(b)
	switch {
	case dx > geom.Eps && dy <= geom.Eps:
		return math.Min(a.MaxY, b.MaxY) - math.Max(a.MinY, b.MinY)
	case dy > geom.Eps && dx <= geom.Eps:
		return math.Min(a.MaxX, b.MaxX) - math.Max(a.MinX, b.MinX)
	}
	return 0
}

// conflict describes the shape that made a candidate illegal.
type conflict struct {
	b     *blockage.Blockage
	notch bool
}

// metalClear checks a new metal rectangle r with the given mask on layer z
// against the index and against the partial path ending at h. Foreign metal
// must be at least the spacing away on one axis; own metal must either touch
// r or be far enough away not to leave a notch.
func (wf *Wavefront) metalClear(z int, r geom.Rect, mask int, h Handle) (bool, conflict) {
	rt := wf.rt
	if !rt.Bound.ContainsRect(r) {
		return false, conflict{}
	}
	w := r.MinDim()
	g := rt.rules.WorstGap(z)
	if f := rt.cfg.override(z).ForceSpacing; f > g {
		g = f
	}

	var bad conflict
	ok := true
	rt.ix.Search(blockage.Metal, z, r.Expand(g, g), func(b *blockage.Blockage) bool {
		own := rt.own(b)
		if own && b.Endpoint {
			return true
		}
		if !own && b.Overlaps(r) {
			ok, bad = false, conflict{b: b}
			return false
		}
		if b.Touches(r) {
			if own {
				return true
			}
			ok, bad = false, conflict{b: b}
			return false
		}
		s := rt.spacing(z, w, b.Width(), parallelLength(r, b.Bounds), rt.sameMask(z, mask, b.Mask))
		if b.Poly != nil {
			if !b.Poly.Overlaps(r.Expand(s-geom.Eps, s-geom.Eps)) {
				return true
			}
		} else if dx, dy := r.Gap(b.Bounds); dx >= s-geom.Eps || dy >= s-geom.Eps {
			return true
		}
		ok, bad = false, conflict{b: b, notch: own}
		return false
	})
	if !ok {
		return false, bad
	}

	wf.pathShapes(h, func(ps pathShape) bool {
		if ps.kind != blockage.Metal || ps.z != z || ps.r.Touches(r) {
			return true
		}
		s := rt.spacing(z, w, ps.r.MinDim(), parallelLength(r, ps.r), rt.sameMask(z, mask, ps.mask))
		if dx, dy := r.Gap(ps.r); dx < s-geom.Eps && dy < s-geom.Eps {
			ok, bad = false, conflict{notch: true}
			return false
		}
		return true
	})
	return ok, bad
}

// cutLegal checks a cut rectangle on via layer lower against placed cuts and
// the cuts of the partial path. Own-net cuts that overlap merge with it.
// It returns the first mask color that satisfies the color spacing, or 0 on
// uncolored via layers.
func (wf *Wavefront) cutLegal(lower int, cut geom.Rect, h Handle) (int, bool) {
	rt := wf.rt
	v := rt.tech.Via(lower)
	if v == nil {
		return 0, false
	}
	diag := v.DiagonalSpacing
	if diag <= 0 {
		diag = v.CutSpacing
	}
	reach := math.Max(math.Max(v.CutSpacing, diag), v.ColorSpacing)

	type other struct {
		r    geom.Rect
		mask int
	}
	var near []other
	ok := true
	check := func(r geom.Rect, mask int, own bool) bool {
		if cut.Overlaps(r) {
			if own {
				return true
			}
			ok = false
			return false
		}
		dx, dy := cut.Gap(r)
		if dx > geom.Eps && dy > geom.Eps {
			if math.Hypot(dx, dy) < diag-geom.Eps {
				ok = false
				return false
			}
		} else if math.Max(dx, dy) < v.CutSpacing-geom.Eps {
			ok = false
			return false
		}
		near = append(near, other{r, mask})
		return true
	}
	rt.ix.Search(blockage.Cut, lower, cut.Expand(reach, reach), func(b *blockage.Blockage) bool {
		return check(b.Bounds, b.Mask, rt.own(b))
	})
	if !ok {
		return 0, false
	}
	wf.pathShapes(h, func(ps pathShape) bool {
		if ps.kind != blockage.Cut || ps.z != lower {
			return true
		}
		return check(ps.r, ps.mask, true)
	})
	if !ok {
		return 0, false
	}
	if v.Masks <= 1 {
		return 0, true
	}
	for color := 1; color <= v.Masks; color++ {
		clear := true
		for _, o := range near {
			if o.mask != color {
				continue
			}
			dx, dy := cut.Gap(o.r)
			if math.Hypot(dx, dy) < v.ColorSpacing-geom.Eps {
				clear = false
				break
			}
		}
		if clear {
			return color, true
		}
	}
	return 0, false
}

// contactsAt returns the legal contact choices for a layer change at p from
// layer from to layer to, in preference order. fromMask and toMask are the
// colors required on each layer (0 = any).
func (wf *Wavefront) contactsAt(p geom.Point, from, to, fromMask, toMask int, h Handle) []ViaChoice {
	rt := wf.rt
	lower := min(from, to)
	var out []ViaChoice
	for _, c := range rt.tech.Contacts(lower) {
		for _, v := range c.Variants {
			choice, ok := wf.placeContact(c, v, p, from, to, fromMask, toMask, h)
			if ok {
				out = append(out, choice)
			}
		}
	}
	return out
}

func (wf *Wavefront) placeContact(c tech.Contact, v tech.ContactVariant, p geom.Point, from, to, fromMask, toMask int, h Handle) (ViaChoice, bool) {
	rt := wf.rt
	lower := min(from, to)
	vmask := func(z int) int {
		if z == lower {
			return v.LowerMask
		}
		return v.UpperMask
	}
	pick := func(z, want int) (int, bool) {
		m := vmask(z)
		if want != 0 && m != 0 && want != m {
			return 0, false
		}
		switch {
		case m != 0:
			return m, true
		case want != 0:
			return want, true
		}
		if ml := rt.tech.Metal(z); ml != nil && ml.Colored() {
			return 1, true
		}
		return 0, true
	}
	fm, ok := pick(from, fromMask)
	if !ok {
		return ViaChoice{}, false
	}
	tm, ok := pick(to, toMask)
	if !ok {
		return ViaChoice{}, false
	}
	choice := ViaChoice{Contact: c, Variant: v, Lower: lower}
	if from == lower {
		choice.LowerMask, choice.UpperMask = fm, tm
	} else {
		choice.LowerMask, choice.UpperMask = tm, fm
	}

	for _, z := range []int{from, to} {
		if ok, _ := wf.metalClear(z, choice.Footprint(z, p), choice.MaskOn(z), h); !ok {
			return ViaChoice{}, false
		}
	}
	cutMask := 0
	for _, cut := range choice.Cuts(p) {
		m, ok := wf.cutLegal(lower, cut, h)
		if !ok {
			return ViaChoice{}, false
		}
		cutMask = max(cutMask, m)
	}
	choice.CutMask = cutMask
	return choice, true
}

// runShapes returns the metal of the run on layer z that ends at h, and
// whether the run is attached to the start terminal (in which case the
// terminal metal counts toward its area).
func (wf *Wavefront) runShapes(h Handle, z int) ([]geom.Rect, bool) {
	var shapes []geom.Rect
	for cur := h; cur != none; cur = wf.arena[cur].Parent {
		v := &wf.arena[cur]
		if v.Parent == none {
			return shapes, true
		}
		if v.hasVia {
			return append(shapes, v.Via.Footprint(z, v.P)), false
		}
		shapes = append(shapes, geom.SegmentRect(wf.arena[v.Parent].P, v.P, v.Width))
	}
	return shapes, false
}

// runArea returns the area of the run ending at h plus extra.
func (wf *Wavefront) runArea(h Handle, z int, extra geom.Rect) (float64, bool) {
	shapes, attached := wf.runShapes(h, z)
	return geom.UnionArea(append(shapes, extra)), attached
}

// minAreaPatch returns extra metal that brings the run being left at h on
// layer z up to the minimum area, nil when no patch is needed, and false
// when none of the placements is legal.
func (wf *Wavefront) minAreaPatch(h Handle, z int, fp geom.Rect, mask int) ([]geom.Rect, bool) {
	need := wf.rt.rules.MinArea(z)
	if need <= 0 {
		return nil, true
	}
	area, attached := wf.runArea(h, z, fp)
	if attached || area >= need-geom.Eps {
		return nil, true
	}
	return wf.rt.placePatch(z, fp, need, func(r geom.Rect) bool {
		ok, _ := wf.metalClear(z, r, mask, h)
		return ok
	})
}

// placePatch returns the first placement of at least area need around fp
// that legal accepts, trying the preferred axis of layer z first.
func (rt *Route) placePatch(z int, fp geom.Rect, need float64, legal func(geom.Rect) bool) ([]geom.Rect, bool) {
	axes := []Axis{AxisX, AxisY}
	if m := rt.tech.Metal(z); m != nil && m.Direction == tech.Vertical {
		axes = []Axis{AxisY, AxisX}
	}
	for _, a := range axes {
		for _, r := range patchPlacements(fp, a, need) {
			if legal(r) {
				return []geom.Rect{r}, true
			}
		}
	}
	return nil, false
}

// patchPlacements returns rectangles of at least area need that keep the
// cross section of fp and extend it along axis a: centered on fp, then
// flush with its low edge, then flush with its high edge.
func patchPlacements(fp geom.Rect, a Axis, need float64) []geom.Rect {
	if a == AxisX {
		l := math.Max(fp.Width(), need/fp.Height())
		c := fp.Center().X
		return []geom.Rect{
			{MinX: c - l/2, MinY: fp.MinY, MaxX: c + l/2, MaxY: fp.MaxY},
			{MinX: fp.MinX, MinY: fp.MinY, MaxX: fp.MinX + l, MaxY: fp.MaxY},
			{MinX: fp.MaxX - l, MinY: fp.MinY, MaxX: fp.MaxX, MaxY: fp.MaxY},
		}
	}
	l := math.Max(fp.Height(), need/fp.Width())
	c := fp.Center().Y
	return []geom.Rect{
		{MinX: fp.MinX, MinY: c - l/2, MaxX: fp.MaxX, MaxY: c + l/2},
		{MinX: fp.MinX, MinY: fp.MinY, MaxX: fp.MaxX, MaxY: fp.MinY + l},
		{MinX: fp.MinX, MinY: fp.MaxY - l, MaxX: fp.MaxX, MaxY: fp.MaxY},
	}
}
