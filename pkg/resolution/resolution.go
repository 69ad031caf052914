// Package resolution defines the output of a routing run: an ordered list of
// placement instructions for new nodes and arcs, kill instructions for
// placeholder geometry the routes replace, markers for terminal pairs that
// could not be routed, and summary statistics.
//
// The router never writes to a circuit database. A collaborator applies the
// instructions in order: nodes first, then arcs (which reference nodes by
// ID), then kills.
//
// # JSON Format
//
//	{
//	  "run_id": "6f1c...",
//	  "nodes": [{"id": "r1.n0", "kind": "pin", "layer": "M1", "at": {"x": 0.5, "y": 0.5}, ...}],
//	  "arcs":  [{"id": "r1.a0", "layer": "M1", "width": 1, "from": {...}, "to": {...}, ...}],
//	  "kill_nodes": [{"id": "rat3", "request": "r1"}],
//	  "kill_arcs":  [],
//	  "unrouted":   [{"request": "r2", "net": "clk", "code": "SEARCH_EXHAUSTED", ...}],
//	  "stats": {"attempted": 2, "routed": 1, ...}
//	}
package resolution

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/matzehuels/metalroute/pkg/errors"
	"github.com/matzehuels/metalroute/pkg/geom"
)

// NodeKind classifies placed nodes.
type NodeKind string

const (
	// NodePin joins arcs at a bend or at a route end without a terminal node.
	NodePin NodeKind = "pin"
	// NodeContact is a via placed where the route changes layers.
	NodeContact NodeKind = "contact"
	// NodePatch is extra metal added to satisfy a minimum-area rule.
	NodePatch NodeKind = "patch"
)

// PlaceNode creates a node.
type PlaceNode struct {
	ID      string      `json:"id"`
	Kind    NodeKind    `json:"kind"`
	Request string      `json:"request"`
	Net     string      `json:"net"`
	Layer   string      `json:"layer"`
	Upper   string      `json:"upper,omitempty"`
	At      geom.Point  `json:"at"`
	Mask    int         `json:"mask,omitempty"`
	Contact string      `json:"contact,omitempty"`
	Variant string      `json:"variant,omitempty"`
	CutMask int         `json:"cut_mask,omitempty"`
	Shapes  []geom.Rect `json:"shapes,omitempty"`
}

// PlaceArc creates a wire between two nodes.
type PlaceArc struct {
	ID       string     `json:"id"`
	Request  string     `json:"request"`
	Net      string     `json:"net"`
	Layer    string     `json:"layer"`
	Width    float64    `json:"width"`
	From     geom.Point `json:"from"`
	To       geom.Point `json:"to"`
	FromNode string     `json:"from_node"`
	ToNode   string     `json:"to_node"`
	Mask     int        `json:"mask,omitempty"`
}

// Length returns the Manhattan length of the arc.
func (a PlaceArc) Length() float64 { return a.From.Manhattan(a.To) }

// Kill removes an existing node or arc by ID.
type Kill struct {
	ID      string `json:"id"`
	Request string `json:"request"`
}

// Unrouted marks a terminal pair that must stay unconnected.
type Unrouted struct {
	Request string      `json:"request"`
	Net     string      `json:"net"`
	A       geom.Point  `json:"a"`
	B       geom.Point  `json:"b"`
	LayerA  string      `json:"layer_a"`
	LayerB  string      `json:"layer_b"`
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

// Stats summarizes a routing run.
type Stats struct {
	Attempted     int     `json:"attempted"`
	Routed        int     `json:"routed"`
	Failed        int     `json:"failed"`
	AlreadyRouted int     `json:"already_routed"`
	Retried       int     `json:"retried"`
	Wirelength    float64 `json:"wirelength"`
	IdealHPWL     float64 `json:"ideal_hpwl"`
	Vias          int     `json:"vias"`
	Steps         int     `json:"steps"`
}

// Overhead returns the routed wirelength relative to the ideal half-perimeter
// wirelength of the routed requests, or 0 when nothing was routed.
func (s Stats) Overhead() float64 {
	if s.IdealHPWL == 0 {
		return 0
	}
	return s.Wirelength / s.IdealHPWL
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Attempted += o.Attempted
	s.Routed += o.Routed
	s.Failed += o.Failed
	s.AlreadyRouted += o.AlreadyRouted
	s.Retried += o.Retried
	s.Wirelength += o.Wirelength
	s.IdealHPWL += o.IdealHPWL
	s.Vias += o.Vias
	s.Steps += o.Steps
}

// Resolution is the complete output of a routing run.
type Resolution struct {
	RunID     string      `json:"run_id,omitempty"`
	Nodes     []PlaceNode `json:"nodes"`
	Arcs      []PlaceArc  `json:"arcs"`
	KillNodes []Kill      `json:"kill_nodes"`
	KillArcs  []Kill      `json:"kill_arcs"`
	Unrouted  []Unrouted  `json:"unrouted"`
	Stats     Stats       `json:"stats"`
}

// New returns an empty resolution whose lists encode as [] rather than null.
func New() *Resolution {
	return &Resolution{
		Nodes:     []PlaceNode{},
		Arcs:      []PlaceArc{},
		KillNodes: []Kill{},
		KillArcs:  []Kill{},
		Unrouted:  []Unrouted{},
	}
}

// Merge appends the instructions of o after those of r. Statistics are not
// merged; the caller owns them.
func (r *Resolution) Merge(o *Resolution) {
	if o == nil {
		return
	}
	r.Nodes = append(r.Nodes, o.Nodes...)
	r.Arcs = append(r.Arcs, o.Arcs...)
	r.KillNodes = append(r.KillNodes, o.KillNodes...)
	r.KillArcs = append(r.KillArcs, o.KillArcs...)
	r.Unrouted = append(r.Unrouted, o.Unrouted...)
}

// ArcsFor returns the arcs placed for one request.
func (r *Resolution) ArcsFor(request string) []PlaceArc {
	var out []PlaceArc
	for _, a := range r.Arcs {
		if a.Request == request {
			out = append(out, a)
		}
	}
	return out
}

// NodesFor returns the nodes placed for one request.
func (r *Resolution) NodesFor(request string) []PlaceNode {
	var out []PlaceNode
	for _, n := range r.Nodes {
		if n.Request == request {
			out = append(out, n)
		}
	}
	return out
}

// Validate checks unique node and arc IDs, that every arc names a node at
// both ends (terminal nodes live outside the resolution), and that arcs are
// axis-parallel.
func (r *Resolution) Validate() error {
	nodes := make(map[string]bool, len(r.Nodes))
	for _, n := range r.Nodes {
		if nodes[n.ID] {
			return errors.New(errors.ErrCodeInvalidInput, "duplicate node id %q", n.ID)
		}
		nodes[n.ID] = true
	}
	arcs := make(map[string]bool, len(r.Arcs))
	for _, a := range r.Arcs {
		if arcs[a.ID] {
			return errors.New(errors.ErrCodeInvalidInput, "duplicate arc id %q", a.ID)
		}
		arcs[a.ID] = true
		if a.FromNode == "" || a.ToNode == "" {
			return errors.New(errors.ErrCodeInvalidInput, "arc %q has a dangling end", a.ID)
		}
		if !geom.Same(a.From.X, a.To.X) && !geom.Same(a.From.Y, a.To.Y) {
			return errors.New(errors.ErrCodeInvalidGeometry, "arc %q is not axis-parallel", a.ID)
		}
	}
	return nil
}

// SplitArc splits arc id at node.At, which must lie strictly inside the arc,
// into two arcs joined by node. The second half gets newID. It reports false
// when the arc is unknown or the point is not on it.
func (r *Resolution) SplitArc(id, newID string, node PlaceNode) bool {
	i := slices.IndexFunc(r.Arcs, func(a PlaceArc) bool { return a.ID == id })
	if i < 0 {
		return false
	}
	a := r.Arcs[i]
	p := node.At
	onX := geom.Same(a.From.Y, a.To.Y) && geom.Same(p.Y, a.From.Y) &&
		p.X > min(a.From.X, a.To.X)+geom.Eps && p.X < max(a.From.X, a.To.X)-geom.Eps
	onY := geom.Same(a.From.X, a.To.X) && geom.Same(p.X, a.From.X) &&
		p.Y > min(a.From.Y, a.To.Y)+geom.Eps && p.Y < max(a.From.Y, a.To.Y)-geom.Eps
	if !onX && !onY {
		return false
	}
	second := a
	second.ID = newID
	second.From, second.FromNode = p, node.ID
	r.Arcs[i].To, r.Arcs[i].ToNode = p, node.ID
	r.Arcs = slices.Insert(r.Arcs, i+1, second)
	r.Nodes = append(r.Nodes, node)
	return true
}

// WriteJSON writes the resolution as indented JSON.
func (r *Resolution) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode resolution: %w", err)
	}
	return nil
}

// ReadJSON decodes a resolution.
func ReadJSON(rd io.Reader) (*Resolution, error) {
	res := New()
	if err := json.NewDecoder(rd).Decode(res); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode resolution")
	}
	return res, nil
}

// Requests returns the sorted IDs of all requests that placed geometry.
func (r *Resolution) Requests() []string {
	seen := make(map[string]bool)
	for _, a := range r.Arcs {
		seen[a.Request] = true
	}
	for _, n := range r.Nodes {
		seen[n.Request] = true
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
