package geom

import (
	"math"
	"testing"
)

func TestRectOverlapsAndTouches(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Rect
		overlaps bool
		touches  bool
	}{
		{"disjoint", R(0, 0, 1, 1), R(2, 2, 3, 3), false, false},
		{"shared edge", R(0, 0, 1, 1), R(1, 0, 2, 1), false, true},
		{"shared corner", R(0, 0, 1, 1), R(1, 1, 2, 2), false, true},
		{"overlap", R(0, 0, 2, 2), R(1, 1, 3, 3), true, true},
		{"contained", R(0, 0, 10, 10), R(4, 4, 5, 5), true, true},
		{"degenerate inside", R(0, 0, 10, 10), R(5, 5, 5, 5), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.overlaps {
				t.Errorf("Overlaps() = %v, want %v", got, tt.overlaps)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.overlaps {
				t.Errorf("Overlaps() not symmetric")
			}
			if got := tt.a.Touches(tt.b); got != tt.touches {
				t.Errorf("Touches() = %v, want %v", got, tt.touches)
			}
		})
	}
}

func TestRGNormalizes(t *testing.T) {
	r := R(5, 7, 1, 2)
	if r.MinX != 1 || r.MinY != 2 || r.MaxX != 5 || r.MaxY != 7 {
		t.Errorf("R() = %v, want [1,2 5,7]", r)
	}
	if r.Area() != 20 {
		t.Errorf("Area() = %v, want 20", r.Area())
	}
}

func TestEmptyRectIsUnionIdentity(t *testing.T) {
	e := EmptyRect()
	if !e.Empty() {
		t.Fatal("EmptyRect() is not empty")
	}
	r := R(1, 2, 3, 4)
	if got := e.Union(r); got != r {
		t.Errorf("Union() = %v, want %v", got, r)
	}
	if got := BoundsOf(); !got.Empty() {
		t.Errorf("BoundsOf() = %v, want empty", got)
	}
	if got := BoundsOf(R(0, 0, 1, 1), R(4, -1, 5, 0)); got != R(0, -1, 5, 1) {
		t.Errorf("BoundsOf() = %v", got)
	}
}

func TestGap(t *testing.T) {
	dx, dy := R(0, 0, 1, 1).Gap(R(4, 0.5, 5, 3))
	if dx != 3 || dy != 0 {
		t.Errorf("Gap() = (%v,%v), want (3,0)", dx, dy)
	}
	dx, dy = R(0, 0, 1, 1).Gap(R(-3, -4, -2, -2))
	if dx != 2 || dy != 2 {
		t.Errorf("Gap() = (%v,%v), want (2,2)", dx, dy)
	}
}

func TestSegmentRect(t *testing.T) {
	got := SegmentRect(Pt(0, 0), Pt(10, 0), 2)
	want := R(-1, -1, 11, 1)
	if got != want {
		t.Errorf("SegmentRect() = %v, want %v", got, want)
	}
	if sq := SegmentRect(Pt(3, 3), Pt(3, 3), 1); sq.Width() != 1 || sq.Height() != 1 {
		t.Errorf("zero-length SegmentRect() = %v, want 1x1 square", sq)
	}
}

func TestDistances(t *testing.T) {
	r := R(0, 0, 2, 2)
	if got := r.ManhattanTo(Pt(5, 6)); got != 7 {
		t.Errorf("ManhattanTo() = %v, want 7", got)
	}
	if got := r.DistanceTo(Pt(5, 6)); math.Abs(got-5) > Eps {
		t.Errorf("DistanceTo() = %v, want 5", got)
	}
	if got := r.ManhattanTo(Pt(1, 1)); got != 0 {
		t.Errorf("ManhattanTo(inside) = %v, want 0", got)
	}
}

func TestPolygonContains(t *testing.T) {
	// L-shaped polygon.
	p := Polygon{Points: []Point{{0, 0}, {4, 0}, {4, 1}, {1, 1}, {1, 4}, {0, 4}}}

	tests := []struct {
		pt   Point
		want bool
	}{
		{Pt(0.5, 0.5), true},
		{Pt(3, 0.5), true},
		{Pt(0.5, 3), true},
		{Pt(3, 3), false},
		{Pt(4, 0.5), true}, // boundary
		{Pt(1, 2), true},   // boundary
		{Pt(-1, 0), false},
	}
	for _, tt := range tests {
		if got := p.Contains(tt.pt); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.pt, got, tt.want)
		}
	}

	if got := p.Area(); got != 7 {
		t.Errorf("Area() = %v, want 7", got)
	}
	if got := p.Bounds(); got != R(0, 0, 4, 4) {
		t.Errorf("Bounds() = %v", got)
	}
}

func TestPolygonOverlaps(t *testing.T) {
	p := Polygon{Points: []Point{{0, 0}, {4, 0}, {4, 1}, {1, 1}, {1, 4}, {0, 4}}}

	tests := []struct {
		name string
		r    Rect
		want bool
	}{
		{"in notch of L", R(2, 2, 3, 3), false},
		{"touching inner edge", R(1, 1, 3, 3), false},
		{"crossing arm", R(2, -1, 3, 2), true},
		{"inside", R(0.2, 0.2, 0.8, 0.8), true},
		{"enclosing", R(-1, -1, 5, 5), true},
		{"far away", R(10, 10, 11, 11), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Overlaps(tt.r); got != tt.want {
				t.Errorf("Overlaps(%v) = %v, want %v", tt.r, got, tt.want)
			}
		})
	}

	if !p.Touches(R(1, 1, 3, 3)) {
		t.Error("Touches(inner edge) = false, want true")
	}
	if p.Touches(R(2, 2, 3, 3)) {
		t.Error("Touches(notch) = true, want false")
	}
}

func TestUnionArea(t *testing.T) {
	tests := []struct {
		name  string
		rects []Rect
		want  float64
	}{
		{"none", nil, 0},
		{"single", []Rect{R(0, 0, 2, 3)}, 6},
		{"overlapping", []Rect{R(0, 0, 2, 2), R(1, 1, 3, 3)}, 7},
		{"nested", []Rect{R(0, 0, 4, 4), R(1, 1, 2, 2)}, 16},
		{"disjoint", []Rect{R(0, 0, 1, 1), R(5, 5, 6, 7)}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UnionArea(tt.rects); math.Abs(got-tt.want) > Eps {
				t.Errorf("UnionArea() = %v, want %v", got, tt.want)
			}
		})
	}
}
