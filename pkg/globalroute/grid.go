// Package globalroute plans coarse corridors for detailed routing.
//
// The routing area is split into a roughly square grid of buckets whose
// count grows with the square root of the number of segments. Every pair of
// neighboring buckets is joined by an edge whose capacity is the number of
// wire tracks that fit across their shared boundary on all layers.
//
// [Planner.Plan] routes each segment through the bucket graph with a
// shortest-path search whose edge cost rises steeply as usage approaches
// capacity, reserves the edges it uses, and then runs a few rip-up passes:
// each segment's reservation is released, the segment is re-solved against
// the congestion left by all others, and reserved again. The resulting
// bucket sequences confine the detailed wavefronts to a corridor.
package globalroute

import (
	"math"

	"github.com/matzehuels/metalroute/pkg/geom"
)

// Grid is the bucket partition of the routing area.
type Grid struct {
	Area       geom.Rect
	Cols, Rows int
	dx, dy     float64
}

// NewGrid partitions area into about sqrt(segments) square-ish buckets.
func NewGrid(area geom.Rect, segments int) Grid {
	n := max(1, int(math.Round(math.Sqrt(float64(segments)))))
	w, h := math.Max(area.Width(), geom.Eps), math.Max(area.Height(), geom.Eps)
	side := math.Sqrt(w * h / float64(n))
	g := Grid{
		Area: area,
		Cols: max(1, int(math.Round(w/side))),
		Rows: max(1, int(math.Round(h/side))),
	}
	g.dx = w / float64(g.Cols)
	g.dy = h / float64(g.Rows)
	return g
}

// Len returns the number of buckets.
func (g Grid) Len() int { return g.Cols * g.Rows }

// Bucket returns the index of the bucket containing p. Points outside the
// area map to the nearest bucket.
func (g Grid) Bucket(p geom.Point) int {
	c := int((p.X - g.Area.MinX) / g.dx)
	r := int((p.Y - g.Area.MinY) / g.dy)
	c = min(max(c, 0), g.Cols-1)
	r = min(max(r, 0), g.Rows-1)
	return r*g.Cols + c
}

// Cell returns the column and row of bucket i.
func (g Grid) Cell(i int) (col, row int) { return i % g.Cols, i / g.Cols }

// Rect returns the region of bucket i. Buckets on the border extend to the
// area edge.
func (g Grid) Rect(i int) geom.Rect {
	c, r := g.Cell(i)
	return geom.Rect{
		MinX: g.Area.MinX + float64(c)*g.dx,
		MinY: g.Area.MinY + float64(r)*g.dy,
		MaxX: g.Area.MinX + float64(c+1)*g.dx,
		MaxY: g.Area.MinY + float64(r+1)*g.dy,
	}
}

// Neighbors returns the buckets sharing an edge with bucket i.
func (g Grid) Neighbors(i int) []int {
	c, r := g.Cell(i)
	var out []int
	if c > 0 {
		out = append(out, i-1)
	}
	if c+1 < g.Cols {
		out = append(out, i+1)
	}
	if r > 0 {
		out = append(out, i-g.Cols)
	}
	if r+1 < g.Rows {
		out = append(out, i+g.Cols)
	}
	return out
}

// boundary returns the length of the border between neighboring buckets.
func (g Grid) boundary(a, b int) float64 {
	if a/g.Cols == b/g.Cols {
		return g.dy
	}
	return g.dx
}

// edge identifies an undirected bucket adjacency, smaller index first.
type edge struct{ a, b int }

func edgeOf(a, b int) edge {
	if a > b {
		a, b = b, a
	}
	return edge{a, b}
}
