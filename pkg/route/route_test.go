package route

import (
	"context"
	"testing"

	"github.com/matzehuels/metalroute/pkg/blockage"
	"github.com/matzehuels/metalroute/pkg/errors"
	"github.com/matzehuels/metalroute/pkg/geom"
	"github.com/matzehuels/metalroute/pkg/resolution"
	"github.com/matzehuels/metalroute/pkg/tech"
)

// threeMetals is a gridless three-layer stack with unit wires and spacing
// and 1x1 square contacts.
func threeMetals(t *testing.T) *tech.Technology {
	t.Helper()
	tc := &tech.Technology{
		Name: "test",
		Metals: []tech.MetalLayer{
			{Name: "M1", Direction: tech.Horizontal, Width: 1, Pitch: 2, Spacing: 1},
			{Name: "M2", Direction: tech.Vertical, Width: 1, Pitch: 2, Spacing: 1},
			{Name: "M3", Direction: tech.Horizontal, Width: 1, Pitch: 2, Spacing: 1},
		},
		Vias: []tech.ViaLayer{
			{CutSize: 0.5, CutSpacing: 1, Enclosure: 0.25},
			{CutSize: 0.5, CutSpacing: 1, Enclosure: 0.25},
		},
	}
	if err := tc.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	return tc
}

type fixture struct {
	tech  *tech.Technology
	rules *tech.RuleCache
	ix    *blockage.Index
	net   blockage.NetID
	other blockage.NetID
}

func newFixture(t *testing.T) *fixture {
	tc := threeMetals(t)
	ix := blockage.NewIndex(tc.MetalCount(), nil)
	return &fixture{
		tech:  tc,
		rules: tech.NewRuleCache(tc),
		ix:    ix,
		net:   ix.Nets().New("sig"),
		other: ix.Nets().New("vdd"),
	}
}

func (f *fixture) request(a, b geom.Rect, za, zb int) *Request {
	return &Request{
		ID:  "r1",
		Net: f.net,
		A:   Terminal{Area: a, Layers: []int{za}},
		B:   Terminal{Area: b, Layers: []int{zb}},
	}
}

func (f *fixture) route(t *testing.T, req *Request, cfg Config) (*Route, *Result) {
	t.Helper()
	rt, err := Setup(req, f.ix, f.rules, cfg)
	if err != nil {
		t.Fatalf("Setup() = %v", err)
	}
	return rt, rt.Solve(context.Background(), nil)
}

func TestStraightRoute(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		f := newFixture(t)
		cfg := DefaultConfig()
		cfg.ParallelDirections = parallel
		rt, res := f.route(t, f.request(geom.R(0, 0, 1, 1), geom.R(10, 0, 11, 1), 0, 0), cfg)
		if res.Status != Found {
			t.Fatalf("parallel=%v: status = %v, err %v", parallel, res.Status, res.Err)
		}
		if res.Vias() != 0 {
			t.Errorf("vias = %d, want 0", res.Vias())
		}
		out := rt.Realize(res)
		if len(out.Arcs) != 1 {
			t.Fatalf("arcs = %+v, want one", out.Arcs)
		}
		if got := out.Arcs[0].Length(); got != 10 {
			t.Errorf("length = %g, want 10", got)
		}
		if out.Stats.Vias != 0 || out.Stats.Wirelength != 10 {
			t.Errorf("stats = %+v", out.Stats)
		}
		if err := out.Validate(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
		checkConnected(t, rt, out)
		checkCostsMonotone(t, res)
	}
}

func TestTerminalNodesAreReferenced(t *testing.T) {
	f := newFixture(t)
	req := f.request(geom.R(0, 0, 1, 1), geom.R(10, 0, 11, 1), 0, 0)
	req.A.Node, req.B.Node = "padA", "padB"
	req.KillArcs = []string{"rat1"}
	rt, res := f.route(t, req, DefaultConfig())
	out := rt.Realize(res)
	if len(out.Arcs) != 1 || out.Arcs[0].FromNode != "padA" || out.Arcs[0].ToNode != "padB" {
		t.Errorf("arcs = %+v", out.Arcs)
	}
	if len(out.Nodes) != 0 {
		t.Errorf("nodes = %+v, want none", out.Nodes)
	}
	if len(out.KillArcs) != 1 || out.KillArcs[0].ID != "rat1" {
		t.Errorf("kill arcs = %+v", out.KillArcs)
	}
}

func TestDetourAroundBlockedLayer(t *testing.T) {
	f := newFixture(t)
	f.ix.AddMetal(1, geom.R(-2, -2, 3, 3), f.other, 0)

	rt, res := f.route(t, f.request(geom.R(0, 0, 1, 1), geom.R(0, 0, 1, 1), 0, 2), DefaultConfig())
	if res.Status != Found {
		t.Fatalf("status = %v, err %v", res.Status, res.Err)
	}
	if res.Vias() != 2 {
		t.Errorf("vias = %d, want 2", res.Vias())
	}
	for _, p := range res.Path {
		if p.Z == 1 && geom.R(-2, -2, 3, 3).Contains(p.P) {
			t.Errorf("path point %v on M2 inside the blockage", p.P)
		}
	}
	checkCostsMonotone(t, res)

	out := rt.Realize(res)
	if err := out.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if out.Stats.Vias != 2 {
		t.Errorf("stats vias = %d, want 2", out.Stats.Vias)
	}
	checkConnected(t, rt, out)
	checkNoOverlap(t, f)
}

func TestBlockedLayerSpanningBoundIsExhausted(t *testing.T) {
	f := newFixture(t)
	f.ix.AddMetal(1, geom.R(-100, -100, 100, 100), f.other, 0)

	_, res := f.route(t, f.request(geom.R(0, 0, 1, 1), geom.R(0, 0, 1, 1), 0, 2), DefaultConfig())
	if res.Status != Exhausted {
		t.Fatalf("status = %v, want exhausted", res.Status)
	}
	if !errors.Is(res.Err, errors.ErrCodeSearchExhausted) {
		t.Errorf("err = %v", res.Err)
	}
}

func TestAlreadyRouted(t *testing.T) {
	f := newFixture(t)
	req := f.request(geom.R(0, 0, 1, 1), geom.R(1, 0, 2, 1), 0, 0)
	_, err := Setup(req, f.ix, f.rules, DefaultConfig())
	if !errors.Is(err, errors.ErrCodeAlreadyRouted) {
		t.Fatalf("Setup() = %v, want ALREADY_ROUTED", err)
	}

	f2 := newFixture(t)
	f2.ix.AddMetal(0, geom.R(0, 0, 20, 1), f2.net, 0)
	_, err = Setup(f2.request(geom.R(0, 0, 1, 1), geom.R(19, 0, 20, 1), 0, 0), f2.ix, f2.rules, DefaultConfig())
	if !errors.Is(err, errors.ErrCodeAlreadyRouted) {
		t.Errorf("connected through metal: Setup() = %v, want ALREADY_ROUTED", err)
	}
}

func TestStepBudget(t *testing.T) {
	f := newFixture(t)
	f.ix.AddMetal(1, geom.R(-2, -2, 3, 3), f.other, 0)
	cfg := DefaultConfig()
	cfg.MaxSteps = 1

	_, res := f.route(t, f.request(geom.R(0, 0, 1, 1), geom.R(0, 0, 1, 1), 0, 2), cfg)
	if res.Status != Limited {
		t.Fatalf("status = %v, want limited", res.Status)
	}
	if !errors.Is(res.Err, errors.ErrCodeSearchLimited) {
		t.Errorf("err = %v", res.Err)
	}
	if !errors.Retryable(errors.GetCode(res.Err)) {
		t.Error("limited searches should be retryable")
	}
}

func TestAbort(t *testing.T) {
	f := newFixture(t)
	rt, err := Setup(f.request(geom.R(0, 0, 1, 1), geom.R(10, 0, 11, 1), 0, 0), f.ix, f.rules, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	res := rt.Solve(context.Background(), func() bool { return true })
	if res.Status != Aborted || !errors.Is(res.Err, errors.ErrCodeSearchAborted) {
		t.Errorf("status = %v, err = %v", res.Status, res.Err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if res := rt.Solve(ctx, nil); res.Status != Aborted {
		t.Errorf("cancelled context: status = %v", res.Status)
	}
}

func TestForeignWireIsAvoided(t *testing.T) {
	f := newFixture(t)
	// a foreign wire across the straight line on M1
	f.ix.AddMetal(0, geom.R(5, -4, 6, 5), f.other, 0)

	rt, res := f.route(t, f.request(geom.R(0, 0, 1, 1), geom.R(10, 0, 11, 1), 0, 0), DefaultConfig())
	if res.Status != Found {
		t.Fatalf("status = %v, err %v", res.Status, res.Err)
	}
	out := rt.Realize(res)
	if err := out.Validate(); err != nil {
		t.Fatal(err)
	}
	if out.Stats.Wirelength < 10 {
		t.Errorf("wirelength = %g, want at least 10", out.Stats.Wirelength)
	}
	checkConnected(t, rt, out)
	checkNoOverlap(t, f)
	checkCostsMonotone(t, res)
}

func TestInsertedEndpointVia(t *testing.T) {
	f := newFixture(t)
	cfg := DefaultConfig()
	cfg.Layers = map[int]LayerOverride{0: {Disabled: true}}

	rt, res := f.route(t, f.request(geom.R(0, 0, 1, 1), geom.R(0, 10, 1, 11), 0, 1), cfg)
	if rt.A.Via == nil || rt.A.Layers[0] != 1 {
		t.Fatalf("endpoint A = %+v, want a via up to M2", rt.A)
	}
	if res.Status != Found {
		t.Fatalf("status = %v, err %v", res.Status, res.Err)
	}
	out := rt.Realize(res)
	var contacts int
	for _, n := range out.Nodes {
		if n.Kind == resolution.NodeContact {
			contacts++
		}
	}
	if contacts != 1 {
		t.Errorf("contact nodes = %d, want 1", contacts)
	}
	if f.ix.Len(blockage.Cut, 0) != 1 {
		t.Errorf("cuts on V1 = %d, want 1", f.ix.Len(blockage.Cut, 0))
	}
}

func TestUnroutableEndpoint(t *testing.T) {
	f := newFixture(t)
	cfg := DefaultConfig()
	cfg.Layers = map[int]LayerOverride{0: {Disabled: true}}
	cfg.ContactAllowedUp = false
	cfg.ContactAllowedDown = false

	_, err := Setup(f.request(geom.R(0, 0, 1, 1), geom.R(0, 10, 1, 11), 0, 1), f.ix, f.rules, cfg)
	if !errors.Is(err, errors.ErrCodeUnroutableEndpoint) {
		t.Errorf("Setup() = %v, want UNROUTABLE_ENDPOINT", err)
	}
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		code errors.Code
	}{
		{"no id", Request{A: Terminal{Area: geom.R(0, 0, 1, 1), Layers: []int{0}}}, errors.ErrCodeInvalidInput},
		{"no layers", Request{ID: "r", A: Terminal{Area: geom.R(0, 0, 1, 1)}}, errors.ErrCodeInvalidLayer},
		{"bad layer", Request{ID: "r",
			A: Terminal{Area: geom.R(0, 0, 1, 1), Layers: []int{0}},
			B: Terminal{Area: geom.R(0, 0, 1, 1), Layers: []int{7}}}, errors.ErrCodeInvalidLayer},
		{"point outside", Request{ID: "r",
			A: Terminal{Area: geom.R(0, 0, 1, 1), Layers: []int{0}, Points: []geom.Point{geom.Pt(5, 5)}},
			B: Terminal{Area: geom.R(0, 0, 1, 1), Layers: []int{0}}}, errors.ErrCodeInvalidGeometry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(3)
			if got := errors.GetCode(err); got != tt.code {
				t.Errorf("code = %q, want %q (%v)", got, tt.code, err)
			}
		})
	}
}

// checkConnected verifies that the emitted arcs and contacts form one
// connected piece of metal joining both terminal areas.
func checkConnected(t *testing.T, rt *Route, out *resolution.Resolution) {
	t.Helper()
	type elem struct {
		layers []int
		pts    []geom.Point
	}
	idx := func(name string) int {
		z, _ := rt.tech.(*tech.Technology).LayerIndex(name)
		return z
	}
	var elems []elem
	for _, a := range out.Arcs {
		elems = append(elems, elem{[]int{idx(a.Layer)}, []geom.Point{a.From, a.To}})
	}
	for _, n := range out.Nodes {
		if n.Kind == resolution.NodeContact {
			elems = append(elems, elem{[]int{idx(n.Layer), idx(n.Upper)}, []geom.Point{n.At}})
		}
	}
	if len(elems) == 0 {
		t.Fatal("no geometry emitted")
	}
	parent := make([]int, len(elems))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	shares := func(a, b elem) bool {
		for _, za := range a.layers {
			for _, zb := range b.layers {
				if za != zb {
					continue
				}
				for _, p := range a.pts {
					for _, q := range b.pts {
						if p.Eq(q) {
							return true
						}
					}
				}
			}
		}
		return false
	}
	for i := range elems {
		for j := i + 1; j < len(elems); j++ {
			if shares(elems[i], elems[j]) {
				parent[find(i)] = find(j)
			}
		}
	}
	root := find(0)
	for i := range elems {
		if find(i) != root {
			t.Errorf("element %d (%+v) is disconnected", i, elems[i])
		}
	}
	touches := func(term Terminal) bool {
		for _, e := range elems {
			for _, p := range e.pts {
				if term.Area.Contains(p) {
					return true
				}
			}
		}
		return false
	}
	if !touches(rt.Req.A) || !touches(rt.Req.B) {
		t.Error("emitted geometry does not reach both terminals")
	}
}

// checkNoOverlap verifies that no metal of the routed net comes within the
// layer spacing of foreign metal.
func checkNoOverlap(t *testing.T, f *fixture) {
	t.Helper()
	for z := range f.tech.MetalCount() {
		s := f.tech.Metals[z].Spacing
		all := f.ix.All(blockage.Metal, z)
		for _, a := range all {
			if !f.ix.SameNet(a, f.net) || a.Endpoint {
				continue
			}
			for _, b := range all {
				if f.ix.SameNet(b, f.net) || b.Endpoint {
					continue
				}
				if a.Bounds.Expand(s, s).Overlaps(b.Bounds) {
					t.Errorf("layer %d: %v within spacing of foreign %v", z, a.Bounds, b.Bounds)
				}
			}
		}
	}
}

func checkCostsMonotone(t *testing.T, res *Result) {
	t.Helper()
	for i := 1; i < len(res.Costs); i++ {
		if res.Costs[i] < res.Costs[i-1]-geom.Eps {
			t.Errorf("cost decreases at %d: %v", i, res.Costs)
			return
		}
	}
}

func TestSalvageNeedsCommonPosition(t *testing.T) {
	f := newFixture(t)
	rt, err := Setup(f.request(geom.R(0, 0, 1, 1), geom.R(10, 0, 11, 1), 0, 0), f.ix, f.rules, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	// Fresh wavefronts hold only their own terminal roots.
	fwd, rev := rt.newWavefront(Forward), rt.newWavefront(Reverse)
	if _, _, ok := rt.salvage(fwd, rev); ok {
		t.Error("salvage joined two searches that share no position")
	}
}

func TestLessPos(t *testing.T) {
	tests := []struct {
		a, b geom.Point
		want bool
	}{
		{geom.Pt(0, 5), geom.Pt(1, 0), true},
		{geom.Pt(1, 0), geom.Pt(0, 5), false},
		{geom.Pt(1, 0), geom.Pt(1, 2), true},
		{geom.Pt(1, 2), geom.Pt(1, 2), false},
	}
	for _, tt := range tests {
		if got := lessPos(tt.a, tt.b); got != tt.want {
			t.Errorf("lessPos(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func newFixtureWith(t *testing.T, mod func(*tech.Technology)) *fixture {
	f := newFixture(t)
	mod(f.tech)
	f.rules = tech.NewRuleCache(f.tech)
	return f
}

// extend adds v as a child of parent, one unit dearer than the distance.
func extend(wf *Wavefront, parent Handle, v vertex) Handle {
	p := wf.arena[parent]
	v.Parent = parent
	v.Cost = p.Cost + p.P.Manhattan(v.P) + 1
	if v.Width == 0 {
		v.Width = wf.rt.width[v.Z]
	}
	return wf.add(v)
}

func viaTo(tc *tech.Technology, lower int) ViaChoice {
	c := tc.Contacts(lower)[0]
	return ViaChoice{Contact: c, Variant: c.Variants[0], Lower: lower}
}

func TestSalvageJoinsHalfPaths(t *testing.T) {
	f := newFixture(t)
	rt, err := Setup(f.request(geom.R(0, 0, 1, 1), geom.R(10, 0, 11, 1), 0, 0), f.ix, f.rules, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	fwd, rev := rt.newWavefront(Forward), rt.newWavefront(Reverse)
	extend(fwd, 0, vertex{P: geom.Pt(5, 0.5), Z: 0})
	extend(rev, 0, vertex{P: geom.Pt(5, 0.5), Z: 0})

	path, costs, ok := rt.salvage(fwd, rev)
	if !ok {
		t.Fatal("salvage failed on a shared position")
	}
	if len(path) != 3 || !path[0].P.Eq(rt.A.Aim) || !path[2].P.Eq(rt.B.Aim) {
		t.Fatalf("path = %+v", path)
	}
	res := &Result{Request: rt.Req, Status: Found, Path: path, Costs: costs, Direction: "salvage"}
	checkCostsMonotone(t, res)
	out := rt.Realize(res)
	if out.Stats.Wirelength != 10 || out.Stats.Vias != 0 {
		t.Errorf("stats = %+v", out.Stats)
	}
	checkConnected(t, rt, out)
}

func TestSalvageJoinMinArea(t *testing.T) {
	tests := []struct {
		name    string
		foreign []geom.Rect
		ok      bool
		want    geom.Rect
	}{
		{name: "patched", ok: true, want: geom.R(4.5, -1.5, 5.5, 2.5)},
		{
			name: "blocked",
			foreign: []geom.Rect{
				geom.R(4.5, 2, 5.5, 3), geom.R(4.5, -2.5, 5.5, -1.5),
				geom.R(7, 0, 8, 1), geom.R(0, 0, 1, 1),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixtureWith(t, func(tc *tech.Technology) { tc.Metals[1].MinArea = 4 })
			rt, err := Setup(f.request(geom.R(0, 0, 1, 1), geom.R(10, 0, 11, 1), 0, 2), f.ix, f.rules, DefaultConfig())
			if err != nil {
				t.Fatal(err)
			}
			join := geom.Pt(5, 0.5)
			fwd, rev := rt.newWavefront(Forward), rt.newWavefront(Reverse)
			h := extend(fwd, 0, vertex{P: join, Z: 0})
			extend(fwd, h, vertex{P: join, Z: 1, Via: viaTo(f.tech, 0), hasVia: true})
			h = extend(rev, 0, vertex{P: join, Z: 2})
			extend(rev, h, vertex{P: join, Z: 1, Via: viaTo(f.tech, 1), hasVia: true})
			for _, r := range tt.foreign {
				f.ix.AddMetal(1, r, f.other, 0)
			}

			path, costs, ok := rt.salvage(fwd, rev)
			if ok != tt.ok {
				t.Fatalf("salvage ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if len(path) != 5 || path[2].Z != 1 {
				t.Fatalf("path = %+v", path)
			}
			if len(path[2].Patch) != 1 || path[2].Patch[0] != tt.want {
				t.Fatalf("join patch = %v, want %v", path[2].Patch, tt.want)
			}
			out := rt.Realize(&Result{Request: rt.Req, Status: Found, Path: path, Costs: costs})
			var patched bool
			for _, n := range out.Nodes {
				if n.Kind == resolution.NodePatch && n.Layer == "M2" && len(n.Shapes) == 1 && n.Shapes[0] == tt.want {
					patched = true
				}
			}
			if !patched {
				t.Errorf("nodes = %+v, want a M2 patch %v", out.Nodes, tt.want)
			}
		})
	}
}

func TestMinAreaPatch(t *testing.T) {
	tests := []struct {
		name     string
		minArea  float64
		attached bool
		rise     float64
		foreign  []geom.Rect
		want     []geom.Rect
		ok       bool
	}{
		{name: "no rule", rise: 2, ok: true},
		{name: "attached to terminal", minArea: 4, attached: true, rise: 2, ok: true},
		{name: "short run", minArea: 4, rise: 2, want: []geom.Rect{geom.R(2, 0.5, 3, 4.5)}, ok: true},
		{name: "long run", minArea: 4, rise: 4, ok: true},
		{
			name: "blocked", minArea: 4, rise: 2,
			foreign: []geom.Rect{
				geom.R(2, 4, 3, 5), geom.R(2, -2.5, 3, -1.5),
				geom.R(5, 2, 6, 3), geom.R(-2.5, 2, -1.5, 3),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixtureWith(t, func(tc *tech.Technology) {
				tc.Metals[0].MinArea = tt.minArea
				tc.Metals[1].MinArea = tt.minArea
			})
			rt, err := Setup(f.request(geom.R(0, 0, 1, 1), geom.R(10, 0, 11, 1), 0, 0), f.ix, f.rules, DefaultConfig())
			if err != nil {
				t.Fatal(err)
			}
			wf := rt.newWavefront(Forward)
			at := geom.Pt(2.5, 0.5)
			h1 := extend(wf, 0, vertex{P: at, Z: 0})
			h2 := extend(wf, h1, vertex{P: at, Z: 1, Via: viaTo(f.tech, 0), hasVia: true})
			top := geom.Pt(2.5, 0.5+tt.rise)
			h3 := extend(wf, h2, vertex{P: top, Z: 1})
			for _, r := range tt.foreign {
				f.ix.AddMetal(1, r, f.other, 0)
			}

			h, z, p := h3, 1, top
			if tt.attached {
				h, z, p = h1, 0, at
			}
			got, ok := wf.minAreaPatch(h, z, geom.Centered(p, 1, 1), 0)
			if ok != tt.ok {
				t.Fatalf("minAreaPatch() ok = %v, want %v", ok, tt.ok)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("minAreaPatch() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("patch[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestViaMoveCarriesPatch(t *testing.T) {
	f := newFixtureWith(t, func(tc *tech.Technology) { tc.Metals[1].MinArea = 4 })
	rt, err := Setup(f.request(geom.R(0, 0, 1, 1), geom.R(10, 0, 11, 1), 0, 0), f.ix, f.rules, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	wf := rt.newWavefront(Forward)
	at := geom.Pt(2.5, 0.5)
	h := extend(wf, 0, vertex{P: at, Z: 0})
	h = extend(wf, h, vertex{P: at, Z: 1, Via: viaTo(f.tech, 0), hasVia: true})
	h = extend(wf, h, vertex{P: geom.Pt(2.5, 2.5), Z: 1})

	n := len(wf.arena)
	wf.viaMove(h, 1)
	if len(wf.arena) != n+1 {
		t.Fatal("via to M3 was not added")
	}
	v := wf.arena[n]
	if v.Z != 2 || v.ExtraZ != 1 || len(v.Extra) != 1 || v.Extra[0] != geom.R(2, 0.5, 3, 4.5) {
		t.Errorf("via vertex = z %d extra %v on %d", v.Z, v.Extra, v.ExtraZ)
	}
}

func TestCutLegal(t *testing.T) {
	type placed struct {
		r    geom.Rect
		own  bool
		mask int
	}
	cut := geom.R(0, 0, 0.5, 0.5)
	tests := []struct {
		name   string
		placed []placed
		mask   int
		ok     bool
	}{
		{name: "empty", mask: 1, ok: true},
		{name: "foreign too close", placed: []placed{{r: geom.R(1, 0, 1.5, 0.5), mask: 1}}},
		{name: "own too close", placed: []placed{{r: geom.R(1, 0, 1.5, 0.5), own: true, mask: 1}}},
		{name: "foreign overlap", placed: []placed{{r: geom.R(0.25, 0, 0.75, 0.5), mask: 1}}},
		{name: "own overlap merges", placed: []placed{{r: cut, own: true, mask: 1}}, mask: 1, ok: true},
		{name: "same color nearby", placed: []placed{{r: geom.R(2, 0, 2.5, 0.5), mask: 1}}, mask: 2, ok: true},
		{
			name: "both colors nearby",
			placed: []placed{
				{r: geom.R(2, 0, 2.5, 0.5), mask: 1},
				{r: geom.R(-2, 0, -1.5, 0.5), mask: 2},
			},
		},
		{name: "diagonal too close", placed: []placed{{r: geom.R(1.5, 1.5, 2, 2), mask: 2}}},
		{name: "diagonal clear", placed: []placed{{r: geom.R(1.6, 1.6, 2.1, 2.1), mask: 2}}, mask: 1, ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixtureWith(t, func(tc *tech.Technology) {
				tc.Vias[0].Masks = 2
				tc.Vias[0].ColorSpacing = 3
				tc.Vias[0].DiagonalSpacing = 1.5
			})
			rt, err := Setup(f.request(geom.R(0, 0, 1, 1), geom.R(10, 0, 11, 1), 0, 0), f.ix, f.rules, DefaultConfig())
			if err != nil {
				t.Fatal(err)
			}
			wf := rt.newWavefront(Forward)
			for _, p := range tt.placed {
				net := f.other
				if p.own {
					net = f.net
				}
				f.ix.AddCut(0, p.r, net, p.mask)
			}
			mask, ok := wf.cutLegal(0, cut, none)
			if ok != tt.ok || mask != tt.mask {
				t.Errorf("cutLegal() = %d, %v, want %d, %v", mask, ok, tt.mask, tt.ok)
			}
		})
	}
}

func TestContactMaskAgreement(t *testing.T) {
	f := newFixtureWith(t, func(tc *tech.Technology) {
		tc.Metals[0].Masks = 2
		tc.ContactDefs = append(tc.ContactDefs, tech.Contact{
			Name:  "pinned",
			Lower: 0,
			Variants: []tech.ContactVariant{{
				Name:       "m1a",
				LowerMetal: geom.R(-0.5, -0.5, 0.5, 0.5),
				UpperMetal: geom.R(-0.5, -0.5, 0.5, 0.5),
				Cuts:       []geom.Rect{geom.R(-0.25, -0.25, 0.25, 0.25)},
				LowerMask:  1,
			}},
		})
	})
	rt, err := Setup(f.request(geom.R(0, 0, 1, 1), geom.R(10, 0, 11, 1), 0, 0), f.ix, f.rules, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	wf := rt.newWavefront(Forward)

	tests := []struct {
		name             string
		from, to         int
		fromMask, toMask int
		want             []int
	}{
		{name: "up from second color", from: 0, to: 1, fromMask: 2, want: []int{2}},
		{name: "up from first color", from: 0, to: 1, fromMask: 1, want: []int{1, 1}},
		{name: "up from uncolored start", from: 0, to: 1, want: []int{1, 1}},
		{name: "down to second color", from: 1, to: 0, toMask: 2, want: []int{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wf.contactsAt(geom.Pt(5, 0.5), tt.from, tt.to, tt.fromMask, tt.toMask, none)
			if len(got) != len(tt.want) {
				t.Fatalf("contactsAt() = %d choices, want %d", len(got), len(tt.want))
			}
			for i, c := range got {
				if c.LowerMask != tt.want[i] {
					t.Errorf("choice %d (%s) lower mask = %d, want %d", i, c.Contact.Name, c.LowerMask, tt.want[i])
				}
			}
		})
	}
}

func TestTaper(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
		want float64
	}{
		{name: "own metal width", mod: func(*Config) {}, want: 3},
		{name: "capped by arc width", mod: func(c *Config) { c.MaxArcWidth = 2 }, want: 2},
		{name: "disabled", mod: func(c *Config) { c.TaperLength = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.ix.AddMetal(0, geom.R(-5, -1, 1, 2), f.net, 0)
			cfg := DefaultConfig()
			tt.mod(&cfg)
			rt, err := Setup(f.request(geom.R(0, 0, 1, 1), geom.R(10, 0, 11, 1), 0, 0), f.ix, f.rules, cfg)
			if err != nil {
				t.Fatal(err)
			}
			if rt.A.TaperWidth != tt.want {
				t.Errorf("taper width = %g, want %g", rt.A.TaperWidth, tt.want)
			}
			if rt.B.TaperWidth != 0 {
				t.Errorf("far terminal taper width = %g, want 0", rt.B.TaperWidth)
			}
		})
	}
}

func TestSegmentWidth(t *testing.T) {
	f := newFixture(t)
	f.ix.AddMetal(0, geom.R(-5, -1, 1, 2), f.net, 0)
	rt, err := Setup(f.request(geom.R(0, 0, 1, 1), geom.R(10, 0, 11, 1), 0, 0), f.ix, f.rules, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	wf := rt.newWavefront(Forward)
	root := wf.arena[0]

	tests := []struct {
		name    string
		mod     func(*vertex)
		want    float64
		tapered bool
	}{
		{name: "at root", mod: func(*vertex) {}, want: 3, tapered: true},
		{name: "past taper length", mod: func(v *vertex) { v.travel = 12 }, want: 1},
		{name: "after a via", mod: func(v *vertex) { v.vias = 1 }, want: 1},
		{name: "other layer", mod: func(v *vertex) { v.Z = 1 }, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := root
			tt.mod(&v)
			w, tapered := wf.segmentWidth(&v)
			if w != tt.want || tapered != tt.tapered {
				t.Errorf("segmentWidth() = %g, %v, want %g, %v", w, tapered, tt.want, tt.tapered)
			}
		})
	}
}

func TestTaperGoal(t *testing.T) {
	tests := []struct {
		name    string
		from    geom.Point
		foreign bool
		want    float64
	}{
		{name: "short final segment", from: geom.Pt(5.5, 0.5), want: 3},
		{name: "long final segment", from: geom.Pt(10.5, 0.5), want: 1},
		{name: "wide metal blocked", from: geom.Pt(5.5, 0.5), foreign: true, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.ix.AddMetal(0, geom.R(-5, -1, 1, 2), f.net, 0)
			cfg := DefaultConfig()
			cfg.TaperLength = 8
			rt, err := Setup(f.request(geom.R(0, 0, 1, 1), geom.R(10, 0, 11, 1), 0, 0), f.ix, f.rules, cfg)
			if err != nil {
				t.Fatal(err)
			}
			if tt.foreign {
				f.ix.AddMetal(0, geom.R(2, 2.5, 3, 3.5), f.other, 0)
			}
			wf := rt.newWavefront(Reverse)
			parent := Handle(0)
			if !tt.from.Eq(wf.arena[0].P) {
				parent = extend(wf, 0, vertex{P: tt.from, Z: 0})
			}
			nv := vertex{P: rt.A.Aim, Z: 0, Parent: parent, Width: 1}
			wf.taperGoal(&nv)
			if nv.Width != tt.want {
				t.Errorf("final width = %g, want %g", nv.Width, tt.want)
			}
		})
	}
}

func TestForceGridSnaps(t *testing.T) {
	wall := geom.R(7.3, -2, 8.3, 3)
	for _, force := range []bool{false, true} {
		f := newFixtureWith(t, func(tc *tech.Technology) { tc.EnforceDirections = true })
		f.ix.AddMetal(0, wall, f.other, 0)
		cfg := DefaultConfig()
		cfg.ForceGrid = force
		req := f.request(geom.R(0, 0, 1, 1), geom.R(20, 0, 21, 1), 0, 0)
		rt, err := Setup(req, f.ix, f.rules, cfg)
		if err != nil {
			t.Fatal(err)
		}

		wf := rt.newWavefront(Forward)
		wf.planarMove(0, AxisX, 1)
		if len(wf.arena) != 2 {
			t.Fatalf("force=%v: no move toward the blockage", force)
		}
		q := wf.arena[1].P
		if q.X+0.5 > wall.MinX-1+geom.Eps {
			t.Errorf("force=%v: move ends at %v, inside the blockage spacing", force, q)
		}
		if force && !rt.grids[0].X.OnGrid(q.X) {
			t.Errorf("move ends at %v, off the M1 grid", q)
		}
		if !force {
			continue
		}

		res := rt.Solve(context.Background(), nil)
		if res.Status != Found {
			t.Fatalf("status = %v, err %v", res.Status, res.Err)
		}
		for _, p := range res.Path {
			if !rt.grids[p.Z].OnGrid(p.P) {
				t.Errorf("path point %v on layer %d is off grid", p.P, p.Z)
			}
		}
		checkCostsMonotone(t, res)
	}
}

func TestCorridorRegion(t *testing.T) {
	wf := costWavefront(t, DefaultConfig())
	if _, ok := wf.region(0); ok {
		t.Error("region() without a corridor reported a region")
	}
	wf.regions = []geom.Rect{geom.R(0, 0, 10, 10), geom.R(10, 0, 20, 10), geom.R(20, 0, 30, 10)}

	regions := []struct {
		bucket int
		want   geom.Rect
	}{
		{0, geom.R(0, 0, 20, 10)},
		{1, geom.R(10, 0, 30, 10)},
		{2, geom.R(20, 0, 30, 10)},
		{7, geom.R(20, 0, 30, 10)},
	}
	for _, tt := range regions {
		if got, ok := wf.region(tt.bucket); !ok || got != tt.want {
			t.Errorf("region(%d) = %v, %v, want %v", tt.bucket, got, ok, tt.want)
		}
	}

	advances := []struct {
		bucket int
		p      geom.Point
		want   int
	}{
		{0, geom.Pt(5, 5), 0},
		{0, geom.Pt(15, 5), 1},
		{0, geom.Pt(25, 5), 0},
		{1, geom.Pt(25, 5), 2},
		{2, geom.Pt(25, 5), 2},
	}
	for _, tt := range advances {
		if got := wf.advance(tt.bucket, tt.p); got != tt.want {
			t.Errorf("advance(%d, %v) = %d, want %d", tt.bucket, tt.p, got, tt.want)
		}
	}
}

func TestCorridorConfinesMoves(t *testing.T) {
	f := newFixture(t)
	req := f.request(geom.R(0, 0, 1, 1), geom.R(20, 0, 21, 1), 0, 0)
	req.Corridors[Forward] = []geom.Rect{geom.R(-1, -1, 6, 2)}
	rt, err := Setup(req, f.ix, f.rules, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	wf := rt.newWavefront(Forward)
	wf.planarMove(0, AxisX, 1)
	if len(wf.arena) != 2 {
		t.Fatal("no move inside the corridor")
	}
	if x := wf.arena[1].P.X; x <= 0.5 || x > 6+geom.Eps {
		t.Errorf("move ends at x=%g, want within (0.5, 6]", x)
	}
}
