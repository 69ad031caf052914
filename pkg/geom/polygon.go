package geom

import (
	"math"
	"slices"
)

// Polygon is a simple polygon given by its vertices in order. The closing edge
// from the last vertex back to the first is implicit.
type Polygon struct {
	Points []Point `json:"points" toml:"points"`
}

// Bounds returns the bounding box of the polygon.
func (p Polygon) Bounds() Rect {
	out := EmptyRect()
	for _, pt := range p.Points {
		out = out.Union(Rect{MinX: pt.X, MinY: pt.Y, MaxX: pt.X, MaxY: pt.Y})
	}
	return out
}

// Area returns the enclosed area using the shoelace formula.
func (p Polygon) Area() float64 {
	n := len(p.Points)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := range n {
		a, b := p.Points[i], p.Points[(i+1)%n]
		sum += a.X*b.Y - b.X*a.Y
	}
	return math.Abs(sum) / 2
}

// Contains reports whether q lies inside the polygon or on its boundary.
func (p Polygon) Contains(q Point) bool {
	n := len(p.Points)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := p.Points[i], p.Points[j]
		if onSegment(a, b, q) {
			return true
		}
		if (a.Y > q.Y) != (b.Y > q.Y) {
			x := a.X + (q.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if q.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// containsStrict reports whether q is inside the polygon and not on its boundary.
func (p Polygon) containsStrict(q Point) bool {
	n := len(p.Points)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if onSegment(p.Points[i], p.Points[j], q) {
			return false
		}
	}
	return p.Contains(q)
}

// Overlaps reports whether the polygon and r share a region of positive area.
// Shapes that only touch along their boundaries do not overlap.
func (p Polygon) Overlaps(r Rect) bool {
	if len(p.Points) < 3 || !p.Bounds().Overlaps(r) {
		return false
	}
	inner := r.Expand(-Eps, -Eps)
	for _, pt := range p.Points {
		if pt.X > inner.MinX && pt.X < inner.MaxX && pt.Y > inner.MinY && pt.Y < inner.MaxY {
			return true
		}
	}
	if p.containsStrict(r.Center()) {
		return true
	}
	for _, c := range []Point{{inner.MinX, inner.MinY}, {inner.MaxX, inner.MinY}, {inner.MaxX, inner.MaxY}, {inner.MinX, inner.MaxY}} {
		if p.containsStrict(c) {
			return true
		}
	}
	n := len(p.Points)
	for i := range n {
		if segmentCrossesOpenRect(p.Points[i], p.Points[(i+1)%n], inner) {
			return true
		}
	}
	return false
}

// Touches reports whether the polygon and r intersect as closed sets.
func (p Polygon) Touches(r Rect) bool {
	if len(p.Points) < 3 || !p.Bounds().Touches(r) {
		return false
	}
	if p.Overlaps(r.Expand(Eps*2, Eps*2)) {
		return true
	}
	for _, c := range []Point{{r.MinX, r.MinY}, {r.MaxX, r.MinY}, {r.MaxX, r.MaxY}, {r.MinX, r.MaxY}} {
		if p.Contains(c) {
			return true
		}
	}
	return false
}

func onSegment(a, b, q Point) bool {
	cross := (b.X-a.X)*(q.Y-a.Y) - (b.Y-a.Y)*(q.X-a.X)
	if math.Abs(cross) > Eps*math.Max(1, a.Distance(b)) {
		return false
	}
	return q.X >= math.Min(a.X, b.X)-Eps && q.X <= math.Max(a.X, b.X)+Eps &&
		q.Y >= math.Min(a.Y, b.Y)-Eps && q.Y <= math.Max(a.Y, b.Y)+Eps
}

// segmentCrossesOpenRect clips segment ab against r (Liang-Barsky) and reports
// whether any part of it lies strictly inside.
func segmentCrossesOpenRect(a, b Point, r Rect) bool {
	t0, t1 := 0.0, 1.0
	dx, dy := b.X-a.X, b.Y-a.Y
	clip := func(p, q float64) bool {
		if p == 0 {
			return q > 0
		}
		t := q / p
		if p < 0 {
			if t > t1 {
				return false
			}
			if t > t0 {
				t0 = t
			}
		} else {
			if t < t0 {
				return false
			}
			if t < t1 {
				t1 = t
			}
		}
		return true
	}
	if !clip(-dx, a.X-r.MinX) || !clip(dx, r.MaxX-a.X) || !clip(-dy, a.Y-r.MinY) || !clip(dy, r.MaxY-a.Y) {
		return false
	}
	if t1-t0 <= 0 {
		return false
	}
	mid := Point{X: a.X + dx*(t0+t1)/2, Y: a.Y + dy*(t0+t1)/2}
	return mid.X > r.MinX && mid.X < r.MaxX && mid.Y > r.MinY && mid.Y < r.MaxY
}

// UnionArea returns the area covered by the union of rects. It compresses the
// coordinates and sums covered cells, which is fine for the handful of
// rectangles that make up one metal run.
func UnionArea(rects []Rect) float64 {
	var xs, ys []float64
	for _, r := range rects {
		if r.Empty() {
			continue
		}
		xs = append(xs, r.MinX, r.MaxX)
		ys = append(ys, r.MinY, r.MaxY)
	}
	if len(xs) == 0 {
		return 0
	}
	slices.Sort(xs)
	slices.Sort(ys)
	xs = slices.Compact(xs)
	ys = slices.Compact(ys)

	var area float64
	for i := 0; i+1 < len(xs); i++ {
		for j := 0; j+1 < len(ys); j++ {
			cx := (xs[i] + xs[i+1]) / 2
			cy := (ys[j] + ys[j+1]) / 2
			for _, r := range rects {
				if !r.Empty() && cx > r.MinX && cx < r.MaxX && cy > r.MinY && cy < r.MaxY {
					area += (xs[i+1] - xs[i]) * (ys[j+1] - ys[j])
					break
				}
			}
		}
	}
	return area
}
