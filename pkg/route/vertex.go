package route

import (
	"container/heap"
	"math"

	"github.com/matzehuels/metalroute/pkg/geom"
)

// Handle identifies a vertex in a wavefront's arena.
type Handle int32

const none Handle = -1

type moveDir uint8

const (
	dirNone moveDir = iota
	dirPosX
	dirNegX
	dirPosY
	dirNegY
	dirUp
	dirDown
)

func planarDir(a Axis, sign float64) moveDir {
	switch {
	case a == AxisX && sign > 0:
		return dirPosX
	case a == AxisX:
		return dirNegX
	case sign > 0:
		return dirPosY
	default:
		return dirNegY
	}
}

func (d moveDir) planar() bool { return d >= dirPosX && d <= dirNegY }

func (d moveDir) axis() Axis {
	if d == dirPosY || d == dirNegY {
		return AxisY
	}
	return AxisX
}

func (d moveDir) String() string {
	return [...]string{"start", "+x", "-x", "+y", "-y", "up", "down"}[d]
}

type vertexState uint8

const (
	pending vertexState = iota
	closed
	superseded
)

// vertex is one search state. Fields describing the move into the vertex
// (Width, Via, Extra) belong to the arriving edge from Parent.
type vertex struct {
	P      geom.Point
	Z      int
	Mask   int
	Cost   float64
	Parent Handle
	Dir    moveDir

	Width  float64
	Via    ViaChoice
	hasVia bool
	Extra  []geom.Rect
	ExtraZ int

	// travel is the planar distance covered since the root on the root
	// layer; it stops growing after the first via.
	travel float64
	vias   int
	bucket int

	seq     uint64
	state   vertexState
	heapIdx int
}

// posKey quantizes a position for the visited map.
type posKey struct {
	x, y int64
	z    int
}

func keyAt(p geom.Point, z int) posKey {
	return posKey{x: int64(math.Round(p.X * 1000)), y: int64(math.Round(p.Y * 1000)), z: z}
}

// frontier is a min-heap of pending vertex handles ordered by cost, then
// Manhattan and Euclidean distance to the goal aim, then insertion order.
type frontier struct {
	arena *[]vertex
	aim   geom.Point
	items []Handle
}

func (f *frontier) Len() int { return len(f.items) }

func (f *frontier) Less(i, j int) bool {
	a, b := &(*f.arena)[f.items[i]], &(*f.arena)[f.items[j]]
	if !geom.Same(a.Cost, b.Cost) {
		return a.Cost < b.Cost
	}
	da, db := a.P.Manhattan(f.aim), b.P.Manhattan(f.aim)
	if !geom.Same(da, db) {
		return da < db
	}
	ea, eb := sq(a.P, f.aim), sq(b.P, f.aim)
	if !geom.Same(ea, eb) {
		return ea < eb
	}
	return a.seq < b.seq
}

func (f *frontier) Swap(i, j int) {
	f.items[i], f.items[j] = f.items[j], f.items[i]
	(*f.arena)[f.items[i]].heapIdx = i
	(*f.arena)[f.items[j]].heapIdx = j
}

func (f *frontier) Push(x any) {
	h := x.(Handle)
	(*f.arena)[h].heapIdx = len(f.items)
	f.items = append(f.items, h)
}

func (f *frontier) Pop() any {
	n := len(f.items)
	h := f.items[n-1]
	f.items = f.items[:n-1]
	(*f.arena)[h].heapIdx = -1
	return h
}

func sq(p, q geom.Point) float64 {
	dx, dy := p.X-q.X, p.Y-q.Y
	return dx*dx + dy*dy
}

// add appends v to the arena and, unless a cheaper or expanded vertex holds
// the same position, queues it. It returns the new handle or none.
func (wf *Wavefront) add(v vertex) Handle {
	k := keyAt(v.P, v.Z)
	if old, ok := wf.visited[k]; ok {
		o := &wf.arena[old]
		if o.state == closed || o.Cost <= v.Cost+geom.Eps {
			return none
		}
		if o.heapIdx >= 0 {
			heap.Remove(&wf.frontier, o.heapIdx)
		}
		o.state = superseded
	}
	wf.seq++
	v.seq = wf.seq
	v.state = pending
	v.heapIdx = -1
	h := Handle(len(wf.arena))
	wf.arena = append(wf.arena, v)
	wf.visited[k] = h
	heap.Push(&wf.frontier, h)
	return h
}

// chain returns the handles from the root to h.
func (wf *Wavefront) chain(h Handle) []Handle {
	var out []Handle
	for ; h != none; h = wf.arena[h].Parent {
		out = append(out, h)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
