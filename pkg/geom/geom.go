// Package geom provides the planar geometry used by the router: points,
// axis-aligned rectangles, simple polygons and a handful of measurements
// (distances, union area) that the search and the design-rule checks need.
//
// Coordinates are float64 database units. Values produced by the router are
// integers or halves of integers, so arithmetic on them is exact; comparisons
// that may involve derived values use [Eps].
package geom

import (
	"fmt"
	"math"
)

// Eps is the tolerance used when comparing coordinates.
const Eps = 1e-6

// Point is a location in the plane.
type Point struct {
	X float64 `json:"x" toml:"x"`
	Y float64 `json:"y" toml:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Manhattan returns the L1 distance between p and q.
func (p Point) Manhattan(q Point) float64 {
	return math.Abs(p.X-q.X) + math.Abs(p.Y-q.Y)
}

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Eq reports whether p and q coincide within Eps.
func (p Point) Eq(q Point) bool {
	return Same(p.X, q.X) && Same(p.Y, q.Y)
}

func (p Point) String() string { return fmt.Sprintf("(%g,%g)", p.X, p.Y) }

// Same reports whether a and b are equal within Eps.
func Same(a, b float64) bool { return math.Abs(a-b) <= Eps }

// Rect is an axis-aligned rectangle. A Rect with MinX > MaxX or MinY > MaxY is
// empty; a degenerate rectangle (zero width or height) is not.
type Rect struct {
	MinX float64 `json:"min_x" toml:"min_x"`
	MinY float64 `json:"min_y" toml:"min_y"`
	MaxX float64 `json:"max_x" toml:"max_x"`
	MaxY float64 `json:"max_y" toml:"max_y"`
}

// R builds a rectangle from two opposite corners in any order.
func R(x1, y1, x2, y2 float64) Rect {
	return Rect{
		MinX: math.Min(x1, x2),
		MinY: math.Min(y1, y2),
		MaxX: math.Max(x1, x2),
		MaxY: math.Max(y1, y2),
	}
}

// Centered builds a rectangle of the given size centered on c.
func Centered(c Point, w, h float64) Rect {
	return Rect{MinX: c.X - w/2, MinY: c.Y - h/2, MaxX: c.X + w/2, MaxY: c.Y + h/2}
}

// EmptyRect returns an inverted rectangle that acts as the identity for Union.
func EmptyRect() Rect {
	return Rect{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
}

// Empty reports whether r contains no points.
func (r Rect) Empty() bool { return r.MinX > r.MaxX || r.MinY > r.MaxY }

func (r Rect) Width() float64  { return r.MaxX - r.MinX }
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Area returns the area of r, zero for empty rectangles.
func (r Rect) Area() float64 {
	if r.Empty() {
		return 0
	}
	return r.Width() * r.Height()
}

// Center returns the center point of r.
func (r Rect) Center() Point {
	return Point{X: (r.MinX + r.MaxX) / 2, Y: (r.MinY + r.MaxY) / 2}
}

// MinDim returns the smaller of width and height.
func (r Rect) MinDim() float64 { return math.Min(r.Width(), r.Height()) }

// Contains reports whether p lies inside r or on its boundary.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.MinX-Eps && p.X <= r.MaxX+Eps && p.Y >= r.MinY-Eps && p.Y <= r.MaxY+Eps
}

// ContainsRect reports whether o lies entirely inside r (boundaries included).
func (r Rect) ContainsRect(o Rect) bool {
	return o.MinX >= r.MinX-Eps && o.MaxX <= r.MaxX+Eps && o.MinY >= r.MinY-Eps && o.MaxY <= r.MaxY+Eps
}

// Overlaps reports whether r and o share a region of positive area. Rectangles
// that only touch along an edge or at a corner do not overlap.
func (r Rect) Overlaps(o Rect) bool {
	return r.MinX < o.MaxX-Eps && o.MinX < r.MaxX-Eps && r.MinY < o.MaxY-Eps && o.MinY < r.MaxY-Eps
}

// Touches reports whether r and o intersect as closed sets, which includes
// shared edges and corners.
func (r Rect) Touches(o Rect) bool {
	return r.MinX <= o.MaxX+Eps && o.MinX <= r.MaxX+Eps && r.MinY <= o.MaxY+Eps && o.MinY <= r.MaxY+Eps
}

// Union returns the smallest rectangle containing r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		MinX: math.Min(r.MinX, o.MinX),
		MinY: math.Min(r.MinY, o.MinY),
		MaxX: math.Max(r.MaxX, o.MaxX),
		MaxY: math.Max(r.MaxY, o.MaxY),
	}
}

// Intersect returns the common part of r and o, which may be empty.
func (r Rect) Intersect(o Rect) Rect {
	return Rect{
		MinX: math.Max(r.MinX, o.MinX),
		MinY: math.Max(r.MinY, o.MinY),
		MaxX: math.Min(r.MaxX, o.MaxX),
		MaxY: math.Min(r.MaxY, o.MaxY),
	}
}

// Expand grows r by dx on the left and right and by dy on the top and bottom.
// Negative values shrink it.
func (r Rect) Expand(dx, dy float64) Rect {
	return Rect{MinX: r.MinX - dx, MinY: r.MinY - dy, MaxX: r.MaxX + dx, MaxY: r.MaxY + dy}
}

// Translate moves r by the vector p.
func (r Rect) Translate(p Point) Rect {
	return Rect{MinX: r.MinX + p.X, MinY: r.MinY + p.Y, MaxX: r.MaxX + p.X, MaxY: r.MaxY + p.Y}
}

// Clamp moves p to the closest point inside r.
func (r Rect) Clamp(p Point) Point {
	return Point{X: clamp(p.X, r.MinX, r.MaxX), Y: clamp(p.Y, r.MinY, r.MaxY)}
}

// Gap returns the horizontal and vertical separation between r and o. A
// component is zero when the projections on that axis touch or overlap.
func (r Rect) Gap(o Rect) (dx, dy float64) {
	dx = math.Max(0, math.Max(o.MinX-r.MaxX, r.MinX-o.MaxX))
	dy = math.Max(0, math.Max(o.MinY-r.MaxY, r.MinY-o.MaxY))
	return dx, dy
}

// DistanceTo returns the Euclidean distance from p to the closest point of r.
func (r Rect) DistanceTo(p Point) float64 {
	return p.Distance(r.Clamp(p))
}

// ManhattanTo returns the L1 distance from p to the closest point of r.
func (r Rect) ManhattanTo(p Point) float64 {
	return p.Manhattan(r.Clamp(p))
}

// Corners returns min and max corners in the form the spatial index expects.
func (r Rect) Corners() (min, max [2]float64) {
	return [2]float64{r.MinX, r.MinY}, [2]float64{r.MaxX, r.MaxY}
}

func (r Rect) String() string {
	return fmt.Sprintf("[%g,%g %g,%g]", r.MinX, r.MinY, r.MaxX, r.MaxY)
}

// SegmentRect returns the metal occupied by a wire of width w running from a to
// b. The wire extends w/2 past each end, so a zero-length wire is a w×w square.
func SegmentRect(a, b Point, w float64) Rect {
	return R(a.X, a.Y, b.X, b.Y).Expand(w/2, w/2)
}

// BoundsOf returns the bounding box of a set of rectangles.
func BoundsOf(rects ...Rect) Rect {
	out := EmptyRect()
	for _, r := range rects {
		out = out.Union(r)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
