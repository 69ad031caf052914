package globalroute

import (
	"context"
	"math"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/matzehuels/metalroute/pkg/errors"
	"github.com/matzehuels/metalroute/pkg/geom"
)

// Defaults for Config.
const (
	DefaultPasses     = 2
	DefaultCongestion = 10.0
	DefaultOverflow   = 100.0
)

// Segment is one terminal pair to plan.
type Segment struct {
	ID       string
	From, To geom.Point
}

// Config controls the planner.
type Config struct {
	// Pitch is the average wire pitch over the routing layers.
	Pitch float64
	// Layers is the number of routing layers sharing each bucket boundary.
	Layers int
	// Passes is the number of rip-up and reroute passes after the initial
	// routing of every segment.
	Passes int
	// Congestion scales the convex usage term of the edge cost.
	Congestion float64
	// Overflow is charged per track beyond capacity.
	Overflow float64
	// Margin expands corridor buckets so wires on a bucket boundary fit.
	Margin float64

	Logger *log.Logger
}

func (c *Config) normalize() error {
	if c.Pitch <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "global routing pitch must be positive, got %g", c.Pitch)
	}
	if c.Layers <= 0 {
		c.Layers = 1
	}
	if c.Passes < 0 {
		c.Passes = 0
	}
	if c.Congestion <= 0 {
		c.Congestion = DefaultCongestion
	}
	if c.Overflow <= 0 {
		c.Overflow = DefaultOverflow
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	return nil
}

// Planner assigns bucket paths to segments.
type Planner struct {
	cfg      Config
	grid     Grid
	capacity map[edge]float64
	usage    map[edge]float64
}

// NewPlanner builds the bucket graph over area for the given number of
// segments.
func NewPlanner(area geom.Rect, segments int, cfg Config) (*Planner, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if area.Empty() {
		return nil, errors.New(errors.ErrCodeInvalidGeometry, "global routing area is empty")
	}
	p := &Planner{
		cfg:      cfg,
		grid:     NewGrid(area, segments),
		capacity: make(map[edge]float64),
		usage:    make(map[edge]float64),
	}
	for i := range p.grid.Len() {
		for _, j := range p.grid.Neighbors(i) {
			if j > i {
				tracks := math.Floor(p.grid.boundary(i, j)/cfg.Pitch) * float64(cfg.Layers)
				p.capacity[edge{i, j}] = math.Max(tracks, 1)
			}
		}
	}
	return p, nil
}

// Grid returns the bucket partition.
func (p *Planner) Grid() Grid { return p.grid }

// cost returns the price of adding one more track to e.
func (p *Planner) cost(e edge) float64 {
	c := p.capacity[e]
	u := p.usage[e] + 1
	w := 1 + p.cfg.Congestion*(u/c)*(u/c)
	if u > c {
		w += p.cfg.Overflow * (u - c)
	}
	return w
}

// solve returns the cheapest bucket path between two buckets under the
// current usage.
func (p *Planner) solve(from, to int) []int {
	if from == to {
		return []int{from}
	}
	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for i := range p.grid.Len() {
		g.AddNode(simple.Node(i))
	}
	for e := range p.capacity {
		g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(e.a), simple.Node(e.b), p.cost(e)))
	}
	nodes, _ := path.DijkstraFrom(simple.Node(from), g).To(int64(to))
	out := make([]int, len(nodes))
	for i, n := range nodes {
		out[i] = int(n.ID())
	}
	return out
}

func (p *Planner) reserve(buckets []int, delta float64) {
	for i := 1; i < len(buckets); i++ {
		p.usage[edgeOf(buckets[i-1], buckets[i])] += delta
	}
}

// Plan routes every segment, then runs the rip-up passes. It stops early
// when ctx is cancelled.
func (p *Planner) Plan(ctx context.Context, segs []Segment) (*Plan, error) {
	routes := make(map[string][]int, len(segs))
	for _, s := range segs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b := p.solve(p.grid.Bucket(s.From), p.grid.Bucket(s.To))
		p.reserve(b, 1)
		routes[s.ID] = b
	}
	for pass := range p.cfg.Passes {
		changed := 0
		for _, s := range segs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			old := routes[s.ID]
			p.reserve(old, -1)
			b := p.solve(p.grid.Bucket(s.From), p.grid.Bucket(s.To))
			p.reserve(b, 1)
			if !sameBuckets(old, b) {
				changed++
			}
			routes[s.ID] = b
		}
		p.cfg.Logger.Debug("global routing pass", "pass", pass+1, "changed", changed, "overflow", p.overflow())
		if changed == 0 {
			break
		}
	}

	plan := &Plan{
		Grid:     p.grid,
		Routes:   routes,
		Usage:    make(map[[2]int]float64, len(p.usage)),
		Capacity: make(map[[2]int]float64, len(p.capacity)),
		Overflow: p.overflow(),
		margin:   p.cfg.Margin,
	}
	for e, c := range p.capacity {
		plan.Capacity[[2]int{e.a, e.b}] = c
		plan.Usage[[2]int{e.a, e.b}] = p.usage[e]
	}
	p.cfg.Logger.Info("global routing planned", "segments", len(segs), "buckets", p.grid.Len(), "overflow", plan.Overflow)
	return plan, nil
}

// overflow returns the total usage beyond capacity.
func (p *Planner) overflow() float64 {
	var o float64
	for e, u := range p.usage {
		o += math.Max(0, u-p.capacity[e])
	}
	return o
}

func sameBuckets(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Plan is the outcome of global routing.
type Plan struct {
	Grid Grid
	// Routes maps segment IDs to bucket index sequences from From to To.
	Routes map[string][]int
	// Usage and Capacity are keyed by bucket pairs, smaller index first.
	Usage    map[[2]int]float64
	Capacity map[[2]int]float64
	Overflow float64

	margin float64
}

// Corridor returns the bucket regions of a segment in both directions:
// From to To, then To to From. Both are nil for unknown segments.
func (pl *Plan) Corridor(id string) (fwd, rev []geom.Rect) {
	b, ok := pl.Routes[id]
	if !ok || len(b) == 0 {
		return nil, nil
	}
	fwd = make([]geom.Rect, len(b))
	rev = make([]geom.Rect, len(b))
	for i, k := range b {
		r := pl.Grid.Rect(k).Expand(pl.margin, pl.margin)
		fwd[i] = r
		rev[len(b)-1-i] = r
	}
	return fwd, rev
}

// Utilization returns usage over capacity for the edge between two buckets.
func (pl *Plan) Utilization(a, b int) float64 {
	k := [2]int{min(a, b), max(a, b)}
	c := pl.Capacity[k]
	if c == 0 {
		return 0
	}
	return pl.Usage[k] / c
}
