package resolution

import (
	"bytes"
	"strings"
	"testing"

	"github.com/matzehuels/metalroute/pkg/errors"
	"github.com/matzehuels/metalroute/pkg/geom"
)

func sample() *Resolution {
	r := New()
	r.RunID = "run-1"
	r.Nodes = append(r.Nodes,
		PlaceNode{ID: "r1.n0", Kind: NodePin, Request: "r1", Net: "a", Layer: "M1", At: geom.Pt(0, 0)},
		PlaceNode{ID: "r1.n1", Kind: NodePin, Request: "r1", Net: "a", Layer: "M1", At: geom.Pt(10, 0)},
	)
	r.Arcs = append(r.Arcs, PlaceArc{
		ID: "r1.a0", Request: "r1", Net: "a", Layer: "M1", Width: 1,
		From: geom.Pt(0, 0), To: geom.Pt(10, 0), FromNode: "r1.n0", ToNode: "r1.n1",
	})
	r.Stats = Stats{Attempted: 1, Routed: 1, Wirelength: 10, IdealHPWL: 10}
	return r
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Resolution)
		code   errors.Code
	}{
		{"valid", func(*Resolution) {}, ""},
		{"duplicate node", func(r *Resolution) { r.Nodes = append(r.Nodes, r.Nodes[0]) }, errors.ErrCodeInvalidInput},
		{"duplicate arc", func(r *Resolution) { r.Arcs = append(r.Arcs, r.Arcs[0]) }, errors.ErrCodeInvalidInput},
		{"dangling", func(r *Resolution) { r.Arcs[0].ToNode = "" }, errors.ErrCodeInvalidInput},
		{"diagonal", func(r *Resolution) { r.Arcs[0].To = geom.Pt(10, 3) }, errors.ErrCodeInvalidGeometry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := sample()
			tt.mutate(r)
			err := r.Validate()
			if tt.code == "" {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			if got := errors.GetCode(err); got != tt.code {
				t.Errorf("code = %q, want %q (err %v)", got, tt.code, err)
			}
		})
	}
}

func TestJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := sample().WriteJSON(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"kill_arcs": []`) {
		t.Errorf("empty lists should encode as []: %s", buf.String())
	}
	got, err := ReadJSON(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.RunID != "run-1" || len(got.Arcs) != 1 || got.Arcs[0].Length() != 10 {
		t.Errorf("decoded %+v", got)
	}
}

func TestReadJSONInvalid(t *testing.T) {
	_, err := ReadJSON(strings.NewReader("{"))
	if !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("err = %v, want INVALID_FORMAT", err)
	}
}

func TestSplitArc(t *testing.T) {
	r := sample()
	node := PlaceNode{ID: "t.n0", Kind: NodePin, Request: "t", Layer: "M1", At: geom.Pt(4, 0)}
	if !r.SplitArc("r1.a0", "r1.a0s", node) {
		t.Fatal("SplitArc() = false")
	}
	if len(r.Arcs) != 2 {
		t.Fatalf("arcs = %d, want 2", len(r.Arcs))
	}
	if r.Arcs[0].ToNode != "t.n0" || r.Arcs[1].FromNode != "t.n0" || r.Arcs[1].ToNode != "r1.n1" {
		t.Errorf("arcs not joined: %+v", r.Arcs)
	}
	if got := r.Arcs[0].Length() + r.Arcs[1].Length(); got != 10 {
		t.Errorf("total length = %g, want 10", got)
	}
	if err := r.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	for _, p := range []geom.Point{geom.Pt(0, 0), geom.Pt(4, 1), geom.Pt(12, 0)} {
		if sample().SplitArc("r1.a0", "x", PlaceNode{ID: "x", At: p}) {
			t.Errorf("SplitArc at %v should fail", p)
		}
	}
	if sample().SplitArc("missing", "x", node) {
		t.Error("SplitArc on unknown arc should fail")
	}
}

func TestStats(t *testing.T) {
	var s Stats
	if s.Overhead() != 0 {
		t.Errorf("empty overhead = %g", s.Overhead())
	}
	s.Add(Stats{Attempted: 2, Routed: 1, Wirelength: 12, IdealHPWL: 10, Vias: 2})
	s.Add(Stats{Attempted: 1, Failed: 1})
	if s.Attempted != 3 || s.Routed != 1 || s.Failed != 1 || s.Vias != 2 {
		t.Errorf("stats = %+v", s)
	}
	if got := s.Overhead(); got != 1.2 {
		t.Errorf("Overhead() = %g, want 1.2", got)
	}
}

func TestMergeAndRequests(t *testing.T) {
	r := sample()
	o := New()
	o.Arcs = append(o.Arcs, PlaceArc{ID: "r0.a0", Request: "r0"})
	o.Unrouted = append(o.Unrouted, Unrouted{Request: "r2", Code: errors.ErrCodeSearchExhausted})
	r.Merge(o)
	r.Merge(nil)
	if len(r.Arcs) != 2 || len(r.Unrouted) != 1 {
		t.Fatalf("merge: %d arcs %d unrouted", len(r.Arcs), len(r.Unrouted))
	}
	got := r.Requests()
	if len(got) != 2 || got[0] != "r0" || got[1] != "r1" {
		t.Errorf("Requests() = %v", got)
	}
	if len(r.ArcsFor("r1")) != 1 || len(r.NodesFor("r1")) != 2 {
		t.Error("ArcsFor/NodesFor mismatch")
	}
}
