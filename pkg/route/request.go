// Package route finds a single design-rule-clean path between two terminals
// through the metal layers of a technology.
//
// # Overview
//
// A [Request] names two terminal areas, the network they belong to and the
// candidate layers at each end. [Setup] turns it into a [Route]: it merges
// the network with every piece of metal already touching it, validates the
// endpoints (inserting a via when a terminal sits on a disabled layer),
// computes the routing bound and builds per-layer track grids.
//
// [Route.Solve] then runs two wavefronts, one from each end, until one of
// them reaches the other terminal. A wavefront is an incremental best-first
// search over vertices (x, y, layer) that expands six moves per vertex:
// along ±X and ±Y on the current layer, jumping as far as the blockage-free
// run and a few alignment events allow, and up or down through a contact.
// Every candidate is checked against the blockage index for spacing, notch,
// via-spacing and minimum-area rules before it is queued.
//
// When both wavefronts fail, a salvage pass looks for a coordinate visited by
// both and stitches the two half paths there.
//
// [Route.Realize] converts the winning vertex chain into node and arc
// placement instructions and adds the new geometry to the blockage index.
//
// # Costs
//
// The cost of a vertex is the cost of its parent plus the sum of a fixed list
// of independent rules (progress, wrong direction, layer change, unfavored
// layer, off-grid, turn, track fragmentation). The progress rule charges the
// distance travelled plus the change in distance to the goal, so costs never
// decrease along a branch of the search tree.
package route

import (
	"fmt"
	"math"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/metalroute/pkg/blockage"
	"github.com/matzehuels/metalroute/pkg/errors"
	"github.com/matzehuels/metalroute/pkg/geom"
	"github.com/matzehuels/metalroute/pkg/tech"
)

// Terminal is one end of a route request.
type Terminal struct {
	// Area is the port region; the route may attach anywhere inside it.
	Area geom.Rect
	// Layers lists the metal layers the port exists on.
	Layers []int
	// Mask is the required mask color on colored layers (0 = any).
	Mask int
	// Points optionally restricts attachment to explicit candidates.
	Points []geom.Point
	// Node is the ID of the existing node the port belongs to.
	Node string
}

// Aim returns the point searches steer toward: the first explicit candidate,
// or the center of the area.
func (t Terminal) Aim() geom.Point {
	if len(t.Points) > 0 {
		return t.Points[0]
	}
	return t.Area.Center()
}

// Tap is an extra terminal connected to the trunk of a spine request at the
// closest point of the routed path.
type Tap struct {
	ID       string
	Terminal Terminal
}

// Request is one two-terminal path to find.
type Request struct {
	ID      string
	Net     blockage.NetID
	NetName string
	A, B    Terminal

	// Width is the preferred wire width (0 = layer default).
	Width float64

	Taps      []Tap
	KillArcs  []string
	KillNodes []string

	// Corridors holds the global-routing bucket sequence for each direction
	// (A to B, then B to A). Empty sequences leave a direction unconstrained.
	Corridors [2][]geom.Rect
}

// HPWL returns the half-perimeter wirelength between the terminal centers.
func (r *Request) HPWL() float64 {
	return r.A.Aim().Manhattan(r.B.Aim())
}

// Extent returns the bounding box of both terminal areas.
func (r *Request) Extent() geom.Rect {
	return r.A.Area.Union(r.B.Area)
}

// Validate checks the request against a technology with metalCount layers.
func (r *Request) Validate(metalCount int) error {
	if err := errors.ValidateID("request", r.ID); err != nil {
		return err
	}
	for _, end := range []struct {
		name string
		t    Terminal
	}{{"A", r.A}, {"B", r.B}} {
		a := end.t.Area
		if err := errors.ValidateRect(a.MinX, a.MinY, a.MaxX, a.MaxY); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidGeometry, err, "request %s terminal %s", r.ID, end.name)
		}
		if len(end.t.Layers) == 0 {
			return errors.New(errors.ErrCodeInvalidLayer, "request %s terminal %s has no layers", r.ID, end.name)
		}
		for _, z := range end.t.Layers {
			if z < 0 || z >= metalCount {
				return errors.New(errors.ErrCodeInvalidLayer, "request %s terminal %s uses unknown layer %d", r.ID, end.name, z)
			}
		}
		for _, p := range end.t.Points {
			if !a.Contains(p) {
				return errors.New(errors.ErrCodeInvalidGeometry, "request %s terminal %s point %v outside area %v", r.ID, end.name, p, a)
			}
		}
	}
	if r.Width < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "request %s has negative width", r.ID)
	}
	return nil
}

// Endpoint is a validated terminal ready for search.
type Endpoint struct {
	Terminal Terminal
	Area     geom.Rect
	Layers   []int
	Mask     int
	Points   []geom.Point
	Aim      geom.Point

	// TaperWidth is the width of existing metal at the port, used near the
	// terminal when wider than the default (0 = no taper). TaperLayer is the
	// layer it applies to.
	TaperWidth  float64
	TaperLength float64
	TaperLayer  int

	// Via is set when the terminal was relocated onto an inserted via.
	Via *InsertedVia
}

// OnLayer reports whether the endpoint attaches on layer z.
func (e *Endpoint) OnLayer(z int) bool {
	for _, l := range e.Layers {
		if l == z {
			return true
		}
	}
	return false
}

// Accepts reports whether a route may end at p on layer z.
func (e *Endpoint) Accepts(p geom.Point, z int) bool {
	if !e.OnLayer(z) {
		return false
	}
	if len(e.Points) > 0 {
		for _, q := range e.Points {
			if q.Eq(p) {
				return true
			}
		}
		return false
	}
	return e.Area.Contains(p)
}

// Distance returns the Manhattan distance from p to the endpoint.
func (e *Endpoint) Distance(p geom.Point) float64 {
	if len(e.Points) > 0 {
		d := math.Inf(1)
		for _, q := range e.Points {
			d = math.Min(d, p.Manhattan(q))
		}
		return d
	}
	return e.Area.ManhattanTo(p)
}

// nearestLayer returns the endpoint layer closest to z.
func (e *Endpoint) nearestLayer(z int) int {
	best, bd := e.Layers[0], math.MaxInt
	for _, l := range e.Layers {
		d := l - z
		if d < 0 {
			d = -d
		}
		if d < bd {
			best, bd = l, d
		}
	}
	return best
}

// InsertedVia records a contact placed at a terminal to reach an allowed
// layer.
type InsertedVia struct {
	At        geom.Point
	FromLayer int
	Choice    ViaChoice
}

// Route is a prepared request: validated endpoints, routing bound, grids and
// the rule context the wavefronts search in.
type Route struct {
	Req *Request

	A, B  *Endpoint
	Bound geom.Rect

	cfg   Config
	ix    *blockage.Index
	rules *tech.RuleCache
	tech  tech.Rules
	net   blockage.NetID
	log   *log.Logger

	grids   []Grid
	width   []float64
	allowed []bool
	favored []bool
	events  []eventSet
	unit    float64
}

// Setup prepares req for searching. It merges req.Net with connected metal
// and returns an ALREADY_ROUTED error when the terminals are connected
// (unless cfg.ForceReroute is set), or UNROUTABLE_ENDPOINT when a terminal
// cannot be reached from any allowed layer.
func Setup(req *Request, ix *blockage.Index, rules *tech.RuleCache, cfg Config) (*Route, error) {
	cfg.normalize()
	rs := rules.Rules()
	if err := req.Validate(rs.MetalCount()); err != nil {
		return nil, err
	}

	rt := &Route{
		Req:   req,
		cfg:   cfg,
		ix:    ix,
		rules: rules,
		tech:  rs,
		net:   req.Net,
		log:   cfg.Logger.With("request", req.ID),
	}
	rt.initLayers()

	grown := ix.Grow(req.Net, terminalPorts(req.A), terminalPorts(req.B))
	if grown.Connected && !cfg.ForceReroute {
		return nil, errors.New(errors.ErrCodeAlreadyRouted,
			"request %s: terminals at %v and %v already connected on net %s",
			req.ID, req.A.Area, req.B.Area, ix.Nets().Name(req.Net))
	}

	rt.Bound = rt.computeBound(req.A.Area, req.B.Area)

	var err error
	if rt.A, err = rt.prepareEndpoint(req.A, "A"); err != nil {
		return nil, err
	}
	if rt.B, err = rt.prepareEndpoint(req.B, "B"); err != nil {
		return nil, err
	}
	rt.Bound = rt.Bound.Union(rt.computeBound(rt.A.Area, rt.B.Area))

	rt.buildGrids()
	rt.buildEvents()
	return rt, nil
}

func terminalPorts(t Terminal) []blockage.Port {
	out := make([]blockage.Port, len(t.Layers))
	for i, z := range t.Layers {
		out[i] = blockage.Port{Layer: z, Area: t.Area}
	}
	return out
}

func (rt *Route) initLayers() {
	n := rt.tech.MetalCount()
	rt.width = make([]float64, n)
	rt.allowed = make([]bool, n)
	rt.favored = make([]bool, n)
	anyFav := rt.cfg.anyFavored()

	var unit float64
	for z := range n {
		m := rt.tech.Metal(z)
		o := rt.cfg.override(z)
		w := m.Width
		if rt.Req.Width > w {
			w = rt.Req.Width
		}
		if o.ForceWidth > 0 {
			w = o.ForceWidth
		}
		rt.width[z] = w
		rt.allowed[z] = !o.Disabled
		rt.favored[z] = !anyFav || o.Favored
		unit += w + m.Spacing
	}
	rt.unit = unit / float64(n)
}

// Width returns the wire width used on layer z.
func (rt *Route) Width(z int) float64 { return rt.width[z] }

// Grid returns the track grid of layer z.
func (rt *Route) Grid(z int) *Grid { return &rt.grids[z] }

// Allowed reports whether layer z may carry new geometry.
func (rt *Route) Allowed(z int) bool { return z >= 0 && z < len(rt.allowed) && rt.allowed[z] }

func (rt *Route) computeBound(a, b geom.Rect) geom.Rect {
	var maxW float64
	for _, w := range rt.width {
		maxW = math.Max(maxW, w)
	}
	exp := rt.cfg.BoundExpansion
	if exp <= 0 {
		hp := a.Center().Manhattan(b.Center())
		exp = math.Max(8*rt.unit, hp/2)
	}
	margin := rt.rules.MaxWorstGap() + maxW + exp
	return a.Union(b).Expand(margin, margin)
}

// spacing returns the clearance between a new shape of width w on layer z
// and an existing shape of width ow facing it over length.
func (rt *Route) spacing(z int, w, ow, length float64, sameMask bool) float64 {
	s := rt.rules.Between(z, w, ow, length, sameMask)
	if f := rt.cfg.override(z).ForceSpacing; f > s {
		s = f
	}
	return s
}

func (rt *Route) sameMask(z, a, b int) bool {
	m := rt.tech.Metal(z)
	return m != nil && m.Colored() && a != 0 && a == b
}

func (rt *Route) own(b *blockage.Blockage) bool {
	return rt.ix.SameNet(b, rt.net)
}

func (rt *Route) layerName(z int) string {
	if m := rt.tech.Metal(z); m != nil {
		return m.Name
	}
	return fmt.Sprintf("M?%d", z)
}
