package blockage

import (
	"testing"

	"github.com/matzehuels/metalroute/pkg/geom"
)

func TestNetsUnion(t *testing.T) {
	nets := NewNets()
	a := nets.New("a")
	b := nets.New("b")
	c := nets.New("")

	if nets.Same(a, b) {
		t.Error("fresh nets compare equal")
	}
	if got := nets.Name(c); got != "net2" {
		t.Errorf("Name() = %q, want net2", got)
	}

	nets.Union(a, b)
	if !nets.Same(a, b) || !nets.Same(b, a) {
		t.Error("Same() after Union = false")
	}
	nets.Union(c, b)
	if !nets.Same(a, c) {
		t.Error("Union is not transitive")
	}
	if nets.Find(a) != nets.Find(c) {
		t.Error("Find() roots differ")
	}
	if nets.Same(NoNet, NoNet) {
		t.Error("NoNet compares equal to itself")
	}
	if got := nets.Union(NoNet, a); got != nets.Find(a) {
		t.Errorf("Union(NoNet, a) = %d, want root of a", got)
	}
}

func TestGrowAlreadyConnected(t *testing.T) {
	ix := NewIndex(3, nil)
	nets := ix.Nets()
	pinA := nets.New("pinA")
	wire := nets.New("wire")
	pinB := nets.New("pinB")

	// pinA on M1, strap on M1 to a cut, M2 wire up to pinB's area on M2.
	ix.AddMetal(0, geom.R(0, 0, 2, 2), pinA, 0)
	ix.AddMetal(0, geom.R(2, 0, 10, 2), wire, 0)
	ix.AddCut(0, geom.R(9, 0, 10, 1), wire, 0)
	ix.AddMetal(1, geom.R(9, 0, 10, 20), wire, 0)
	ix.AddMetal(1, geom.R(9, 20, 11, 22), pinB, 0)

	res := ix.Grow(pinA,
		[]Port{{Layer: 0, Area: geom.R(0, 0, 2, 2)}},
		[]Port{{Layer: 1, Area: geom.R(9, 20, 11, 22)}})

	if !res.Connected {
		t.Error("Grow() Connected = false, want true")
	}
	if res.Shapes != 5 {
		t.Errorf("Grow() Shapes = %d, want 5", res.Shapes)
	}
	if !nets.Same(pinA, wire) || !nets.Same(pinA, pinB) {
		t.Error("Grow() did not merge reached networks")
	}
}

func TestGrowNotConnected(t *testing.T) {
	ix := NewIndex(2, nil)
	nets := ix.Nets()
	a := nets.New("a")
	other := nets.New("other")

	ix.AddMetal(0, geom.R(0, 0, 2, 2), a, 0)
	ix.AddMetal(0, geom.R(5, 0, 7, 2), other, 0)
	ix.AddEndpoint(0, geom.R(2, 0, 5, 2), other)

	res := ix.Grow(a,
		[]Port{{Layer: 0, Area: geom.R(0, 0, 2, 2)}},
		[]Port{{Layer: 0, Area: geom.R(20, 0, 22, 2)}})

	if res.Connected {
		t.Error("Grow() Connected = true, want false")
	}
	if nets.Same(a, other) {
		t.Error("Grow() crossed an endpoint pseudo-blockage")
	}
	if res.Shapes != 1 {
		t.Errorf("Grow() Shapes = %d, want 1", res.Shapes)
	}
}

func TestGrowTouchingPorts(t *testing.T) {
	ix := NewIndex(1, nil)
	n := ix.Nets().New("n")

	res := ix.Grow(n,
		[]Port{{Layer: 0, Area: geom.R(0, 0, 1, 1)}},
		[]Port{{Layer: 0, Area: geom.R(1, 0, 2, 1)}})
	if !res.Connected {
		t.Error("Grow() with touching ports Connected = false, want true")
	}
}
