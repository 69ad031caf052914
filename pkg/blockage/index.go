// Package blockage holds the obstruction geometry the router searches
// around: one spatial tree per metal layer and one per via layer, each
// storing rectangles and polygons tagged with the network that owns them.
//
// # Concurrency
//
// Every tree has its own sync.RWMutex. Queries take the read lock for the
// duration of one tree search, inserts and removals take the write lock. No
// lock is held between calls, so concurrent route requests interleave at
// query granularity.
//
// # Networks
//
// Ownership is tracked through a [Nets] arena rather than by value: a
// blockage stores a [NetID] cell and [Index.Grow] merges cells when it finds
// touching geometry. Route-endpoint pseudo-blockages are flagged with
// [Blockage.Endpoint]; they keep other routes away from pending terminals
// but are ignored by flood fills.
package blockage

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/tidwall/rtree"

	"github.com/matzehuels/metalroute/pkg/geom"
)

// Kind distinguishes metal shapes from via cuts.
type Kind uint8

const (
	Metal Kind = iota
	Cut
)

func (k Kind) String() string {
	if k == Cut {
		return "cut"
	}
	return "metal"
}

// Blockage is one indexed shape.
type Blockage struct {
	ID     uint64
	Kind   Kind
	Layer  int // metal index, or lower metal index for cuts
	Bounds geom.Rect
	Poly   *geom.Polygon // nil for rectangles
	Net    NetID
	Mask   int

	// Endpoint marks a pseudo-blockage reserving a pending route terminal.
	Endpoint bool
}

// Overlaps reports whether the blockage shares positive area with r,
// using exact polygon geometry when present.
func (b *Blockage) Overlaps(r geom.Rect) bool {
	if b.Poly != nil {
		return b.Poly.Overlaps(r)
	}
	return b.Bounds.Overlaps(r)
}

// Touches reports whether the blockage intersects r as a closed set.
func (b *Blockage) Touches(r geom.Rect) bool {
	if b.Poly != nil {
		return b.Poly.Touches(r)
	}
	return b.Bounds.Touches(r)
}

// Contains reports whether p lies inside the blockage or on its boundary.
func (b *Blockage) Contains(p geom.Point) bool {
	if b.Poly != nil {
		return b.Poly.Contains(p)
	}
	return b.Bounds.Contains(p)
}

// Width returns the width used for width-dependent spacing rules.
func (b *Blockage) Width() float64 { return b.Bounds.MinDim() }

type tree struct {
	mu sync.RWMutex
	rt rtree.RTreeG[*Blockage]
}

// Index is the layer-partitioned blockage store.
type Index struct {
	metals []*tree
	cuts   []*tree
	nets   *Nets
	seq    atomic.Uint64
}

// NewIndex creates an index for metalCount metal layers (and metalCount-1
// via layers). A nil nets arena allocates a fresh one.
func NewIndex(metalCount int, nets *Nets) *Index {
	if nets == nil {
		nets = NewNets()
	}
	ix := &Index{nets: nets}
	for range metalCount {
		ix.metals = append(ix.metals, &tree{})
	}
	for i := 0; i < metalCount-1; i++ {
		ix.cuts = append(ix.cuts, &tree{})
	}
	return ix
}

// Nets returns the network arena shared by all blockages of the index.
func (ix *Index) Nets() *Nets { return ix.nets }

// MetalCount returns the number of metal layers.
func (ix *Index) MetalCount() int { return len(ix.metals) }

func (ix *Index) tree(kind Kind, layer int) *tree {
	trees := ix.metals
	if kind == Cut {
		trees = ix.cuts
	}
	if layer < 0 || layer >= len(trees) {
		return nil
	}
	return trees[layer]
}

// Insert adds b to the tree of its kind and layer and assigns it an ID. It
// reports false when the layer does not exist.
func (ix *Index) Insert(b *Blockage) bool {
	t := ix.tree(b.Kind, b.Layer)
	if t == nil {
		return false
	}
	if b.Poly != nil {
		b.Bounds = b.Poly.Bounds()
	}
	b.ID = ix.seq.Add(1)
	lo, hi := b.Bounds.Corners()
	t.mu.Lock()
	t.rt.Insert(lo, hi, b)
	t.mu.Unlock()
	return true
}

// AddMetal indexes a metal rectangle on layer z.
func (ix *Index) AddMetal(z int, r geom.Rect, net NetID, mask int) *Blockage {
	b := &Blockage{Kind: Metal, Layer: z, Bounds: r, Net: net, Mask: mask}
	if !ix.Insert(b) {
		return nil
	}
	return b
}

// AddPolygon indexes a metal polygon on layer z.
func (ix *Index) AddPolygon(z int, p geom.Polygon, net NetID, mask int) *Blockage {
	b := &Blockage{Kind: Metal, Layer: z, Poly: &p, Net: net, Mask: mask}
	if !ix.Insert(b) {
		return nil
	}
	return b
}

// AddCut indexes a via cut between metal lower and lower+1.
func (ix *Index) AddCut(lower int, r geom.Rect, net NetID, mask int) *Blockage {
	b := &Blockage{Kind: Cut, Layer: lower, Bounds: r, Net: net, Mask: mask}
	if !ix.Insert(b) {
		return nil
	}
	return b
}

// AddEndpoint reserves a pending route terminal on layer z.
func (ix *Index) AddEndpoint(z int, r geom.Rect, net NetID) *Blockage {
	b := &Blockage{Kind: Metal, Layer: z, Bounds: r, Net: net, Endpoint: true}
	if !ix.Insert(b) {
		return nil
	}
	return b
}

// Remove deletes b from the index. It reports whether b was present.
func (ix *Index) Remove(b *Blockage) bool {
	t := ix.tree(b.Kind, b.Layer)
	if t == nil {
		return false
	}
	lo, hi := b.Bounds.Corners()
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.rt.Len()
	t.rt.Delete(lo, hi, b)
	return t.rt.Len() < n
}

// Search calls fn for every blockage whose bounds intersect r as closed
// sets, stopping early when fn returns false. fn runs under the tree's read
// lock and must not modify the index.
func (ix *Index) Search(kind Kind, layer int, r geom.Rect, fn func(*Blockage) bool) {
	t := ix.tree(kind, layer)
	if t == nil || r.Empty() {
		return
	}
	lo, hi := r.Corners()
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.rt.Search(lo, hi, func(_, _ [2]float64, b *Blockage) bool {
		return fn(b)
	})
}

// Query returns the blockages whose bounds intersect r as closed sets,
// ordered by insertion.
func (ix *Index) Query(kind Kind, layer int, r geom.Rect) []*Blockage {
	var out []*Blockage
	ix.Search(kind, layer, r, func(b *Blockage) bool {
		out = append(out, b)
		return true
	})
	sortByID(out)
	return out
}

// Overlapping returns the blockages that share positive area with r. Polygon
// blockages are refined against their exact outline.
func (ix *Index) Overlapping(kind Kind, layer int, r geom.Rect) []*Blockage {
	var out []*Blockage
	ix.Search(kind, layer, r, func(b *Blockage) bool {
		if b.Overlaps(r) {
			out = append(out, b)
		}
		return true
	})
	sortByID(out)
	return out
}

// At returns the blockages containing p.
func (ix *Index) At(kind Kind, layer int, p geom.Point) []*Blockage {
	var out []*Blockage
	ix.Search(kind, layer, geom.Rect{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y}, func(b *Blockage) bool {
		if b.Contains(p) {
			out = append(out, b)
		}
		return true
	})
	sortByID(out)
	return out
}

// Len returns the number of blockages on one layer.
func (ix *Index) Len(kind Kind, layer int) int {
	t := ix.tree(kind, layer)
	if t == nil {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rt.Len()
}

// All returns every blockage of one layer, ordered by insertion.
func (ix *Index) All(kind Kind, layer int) []*Blockage {
	t := ix.tree(kind, layer)
	if t == nil {
		return nil
	}
	var out []*Blockage
	t.mu.RLock()
	t.rt.Scan(func(_, _ [2]float64, b *Blockage) bool {
		out = append(out, b)
		return true
	})
	t.mu.RUnlock()
	sortByID(out)
	return out
}

// Subtract removes the area r from the metal on layer z. Rectangles that
// overlap r are replaced by the up to four pieces left outside it. Polygons
// are removed only when r covers them entirely. It returns the number of
// blockages affected.
func (ix *Index) Subtract(z int, r geom.Rect) int {
	hit := ix.Overlapping(Metal, z, r)
	n := 0
	for _, b := range hit {
		if b.Endpoint {
			continue
		}
		if b.Poly != nil && !r.ContainsRect(b.Bounds) {
			continue
		}
		if !ix.Remove(b) {
			continue
		}
		n++
		if b.Poly != nil {
			continue
		}
		for _, piece := range subtractRect(b.Bounds, r) {
			ix.AddMetal(z, piece, b.Net, b.Mask)
		}
	}
	return n
}

// subtractRect returns a minus cut as up to four disjoint rectangles: full
// height strips left and right, then bottom and top pieces between them.
func subtractRect(a, cut geom.Rect) []geom.Rect {
	in := a.Intersect(cut)
	if in.Empty() || in.Area() == 0 {
		return []geom.Rect{a}
	}
	var out []geom.Rect
	add := func(r geom.Rect) {
		if r.Width() > geom.Eps && r.Height() > geom.Eps {
			out = append(out, r)
		}
	}
	add(geom.Rect{MinX: a.MinX, MinY: a.MinY, MaxX: in.MinX, MaxY: a.MaxY})
	add(geom.Rect{MinX: in.MaxX, MinY: a.MinY, MaxX: a.MaxX, MaxY: a.MaxY})
	add(geom.Rect{MinX: in.MinX, MinY: a.MinY, MaxX: in.MaxX, MaxY: in.MinY})
	add(geom.Rect{MinX: in.MinX, MinY: in.MaxY, MaxX: in.MaxX, MaxY: a.MaxY})
	return out
}

// RemoveEndpoints deletes the endpoint pseudo-blockages of net on every
// layer and returns how many were removed.
func (ix *Index) RemoveEndpoints(net NetID) int {
	n := 0
	for z := range ix.metals {
		for _, b := range ix.All(Metal, z) {
			if b.Endpoint && ix.nets.Same(b.Net, net) && ix.Remove(b) {
				n++
			}
		}
	}
	return n
}

// SameNet reports whether b belongs to net. The endpoint flag is ignored.
func (ix *Index) SameNet(b *Blockage, net NetID) bool {
	return ix.nets.Same(b.Net, net)
}

func sortByID(bs []*Blockage) {
	slices.SortFunc(bs, func(a, b *Blockage) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
