package route

import (
	"math"

	"github.com/matzehuels/metalroute/pkg/geom"
	"github.com/matzehuels/metalroute/pkg/tech"
)

// move describes one candidate expansion for the cost rules.
type move struct {
	from, to *vertex
	planar   bool
	axis     Axis
	length   float64

	// ahead and behind are the free runs left unused beyond the target and
	// behind the start of a short planar move; zero otherwise.
	ahead, behind float64
}

// costRule is one independent contribution to the cost of a move.
type costRule struct {
	name string
	fn   func(wf *Wavefront, m *move) float64
}

// costRules is the ordered list of contributions summed for every move.
var costRules = []costRule{
	{"progress", progressCost},
	{"wrong_direction", wrongDirectionCost},
	{"layer_change", layerChangeCost},
	{"unfavored", unfavoredCost},
	{"off_grid", offGridCost},
	{"turn", turnCost},
	{"fragment", fragmentCost},
}

func (wf *Wavefront) cost(m *move) float64 {
	var c float64
	for _, r := range costRules {
		c += r.fn(wf, m)
	}
	return c
}

// progressCost charges the distance travelled plus the change in distance
// to the goal. It is never negative.
func progressCost(wf *Wavefront, m *move) float64 {
	d := wf.to.Distance(m.to.P) - wf.to.Distance(m.from.P)
	return math.Max(0, m.length+d)
}

// wrongDirectionCost charges runs against a layer's preferred direction,
// at half rate when the run is already aligned with the goal on the other
// axis.
func wrongDirectionCost(wf *Wavefront, m *move) float64 {
	if !m.planar {
		return 0
	}
	ml := wf.rt.tech.Metal(m.to.Z)
	if ml == nil || ml.Direction == tech.Any {
		return 0
	}
	preferred := AxisX
	if ml.Direction == tech.Vertical {
		preferred = AxisY
	}
	if m.axis == preferred {
		return 0
	}
	w := float64(wf.rt.cfg.Costs.WrongDirection) * m.length
	other := AxisX
	if m.axis == AxisX {
		other = AxisY
	}
	if geom.Same(other.of(m.from.P), other.of(wf.to.Aim)) {
		w /= 2
	}
	return w
}

func layerChangeCost(wf *Wavefront, m *move) float64 {
	if m.planar {
		return 0
	}
	rt := wf.rt
	c := float64(rt.cfg.Costs.LayerChange) * rt.unit
	goal := wf.to.nearestLayer(m.from.Z)
	if absInt(m.to.Z-goal) > absInt(m.from.Z-goal) {
		c += float64(rt.cfg.Costs.LayerChangeAway) * rt.unit
	}
	return c
}

func unfavoredCost(wf *Wavefront, m *move) float64 {
	rt := wf.rt
	if rt.favored[m.to.Z] {
		return 0
	}
	if m.planar {
		return float64(rt.cfg.Costs.Unfavored) * m.length
	}
	return float64(rt.cfg.Costs.Unfavored) * rt.unit
}

// offGridCost charges every axis of the target that lies off the layer's
// track grid. Planar moves only change one axis.
func offGridCost(wf *Wavefront, m *move) float64 {
	rt := wf.rt
	if rt.cfg.ForceGrid {
		return 0
	}
	g := rt.Grid(m.to.Z)
	per := float64(rt.cfg.Costs.OffGrid) * rt.unit
	if m.planar {
		if g.Axis(m.axis).OnGrid(m.axis.of(m.to.P)) {
			return 0
		}
		return per
	}
	var c float64
	if !g.X.OnGrid(m.to.P.X) {
		c += per
	}
	if !g.Y.OnGrid(m.to.P.Y) {
		c += per
	}
	return c
}

func turnCost(wf *Wavefront, m *move) float64 {
	if !m.planar || !m.from.Dir.planar() || m.from.Dir.axis() == m.axis {
		return 0
	}
	return float64(wf.rt.cfg.Costs.Turn) * wf.rt.unit
}

// fragmentCost charges short moves that stop in the middle of a free run,
// in proportion to the run left unused on both sides.
func fragmentCost(wf *Wavefront, m *move) float64 {
	rt := wf.rt
	if !m.planar || m.ahead <= geom.Eps || m.behind <= geom.Eps || rt.unit <= 0 {
		return 0
	}
	f := math.Min(m.ahead*m.behind/(rt.unit*rt.unit), 10)
	return float64(rt.cfg.Costs.Fragment) * f * rt.unit
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
