package route

import (
	"math"
	"slices"

	"github.com/matzehuels/metalroute/pkg/geom"
)

// Axis selects the X or Y coordinate.
type Axis int

const (
	AxisX Axis = iota
	AxisY
)

func (a Axis) String() string {
	if a == AxisY {
		return "y"
	}
	return "x"
}

func (a Axis) of(p geom.Point) float64 {
	if a == AxisY {
		return p.Y
	}
	return p.X
}

func (a Axis) with(p geom.Point, v float64) geom.Point {
	if a == AxisY {
		p.Y = v
	} else {
		p.X = v
	}
	return p
}

// Track is the coordinate set of one axis of a layer grid: explicit sorted
// coordinates continued at Pitch beyond both ends. A track with no explicit
// coordinates is gridless and steps by Step relative to any position.
type Track struct {
	Coords []float64
	Pitch  float64
	Step   float64
}

// Gridless reports whether the axis has no explicit coordinates.
func (t *Track) Gridless() bool { return len(t.Coords) == 0 }

func (t *Track) ext() float64 {
	if t.Pitch > geom.Eps {
		return t.Pitch
	}
	return t.Step
}

// OnGrid reports whether v is a grid coordinate. Every position is on a
// gridless axis.
func (t *Track) OnGrid(v float64) bool {
	if t.Gridless() {
		return true
	}
	first, last := t.Coords[0], t.Coords[len(t.Coords)-1]
	p := t.ext()
	switch {
	case v > last+geom.Eps:
		k := (v - last) / p
		return math.Abs(k-math.Round(k))*p <= geom.Eps
	case v < first-geom.Eps:
		k := (first - v) / p
		return math.Abs(k-math.Round(k))*p <= geom.Eps
	}
	_, found := search(t.Coords, v)
	return found
}

// Upper returns the smallest grid coordinate strictly greater than v.
func (t *Track) Upper(v float64) float64 {
	if t.Gridless() {
		return v + t.Step
	}
	first, last := t.Coords[0], t.Coords[len(t.Coords)-1]
	p := t.ext()
	if v >= last-geom.Eps {
		k := math.Floor((v-last)/p+geom.Eps) + 1
		return last + k*p
	}
	if v < first-geom.Eps {
		k := math.Ceil((first-v)/p-geom.Eps) - 1
		return first - k*p
	}
	i, found := search(t.Coords, v)
	if found {
		i++
	}
	return t.Coords[i]
}

// Lower returns the largest grid coordinate strictly less than v.
func (t *Track) Lower(v float64) float64 {
	if t.Gridless() {
		return v - t.Step
	}
	first, last := t.Coords[0], t.Coords[len(t.Coords)-1]
	p := t.ext()
	if v <= first+geom.Eps {
		k := math.Floor((first-v)/p+geom.Eps) + 1
		return first - k*p
	}
	if v > last+geom.Eps {
		k := math.Ceil((v-last)/p-geom.Eps) - 1
		return last + k*p
	}
	i, _ := search(t.Coords, v)
	return t.Coords[i-1]
}

// Floor returns the largest grid coordinate not above v.
func (t *Track) Floor(v float64) float64 {
	if t.OnGrid(v) {
		return v
	}
	return t.Lower(v)
}

// Ceil returns the smallest grid coordinate not below v.
func (t *Track) Ceil(v float64) float64 {
	if t.OnGrid(v) {
		return v
	}
	return t.Upper(v)
}

// search returns the index of the first coordinate >= v-Eps and whether
// that coordinate equals v.
func search(cs []float64, v float64) (int, bool) {
	i, _ := slices.BinarySearchFunc(cs, v, func(c, target float64) int {
		switch {
		case c < target-geom.Eps:
			return -1
		case c > target+geom.Eps:
			return 1
		}
		return 0
	})
	return i, i < len(cs) && geom.Same(cs[i], v)
}

// Grid is the pair of tracks for one metal layer of a route.
type Grid struct {
	X, Y Track
}

// Axis returns the track of one axis.
func (g *Grid) Axis(a Axis) *Track {
	if a == AxisY {
		return &g.Y
	}
	return &g.X
}

// OnGrid reports whether p lies on grid coordinates on both axes.
func (g *Grid) OnGrid(p geom.Point) bool {
	return g.X.OnGrid(p.X) && g.Y.OnGrid(p.Y)
}

// Nearest snaps p to the closest grid point on both axes.
func (g *Grid) Nearest(p geom.Point) geom.Point {
	return geom.Point{X: nearest(&g.X, p.X), Y: nearest(&g.Y, p.Y)}
}

func nearest(t *Track, v float64) float64 {
	lo, hi := t.Floor(v), t.Ceil(v)
	if v-lo <= hi-v {
		return lo
	}
	return hi
}

// sortedCoords sorts and deduplicates coordinates within Eps.
func sortedCoords(cs []float64) []float64 {
	slices.Sort(cs)
	return slices.CompactFunc(cs, func(a, b float64) bool { return geom.Same(a, b) })
}

// nativeTrack returns the coordinates offset + k*pitch within [lo, hi].
func nativeTrack(offset, pitch, lo, hi float64) []float64 {
	if pitch <= geom.Eps {
		return nil
	}
	k := math.Ceil((lo - offset) / pitch)
	var out []float64
	for v := offset + k*pitch; v <= hi+geom.Eps; v = offset + k*pitch {
		out = append(out, v)
		k++
	}
	return out
}
