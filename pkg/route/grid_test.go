package route

import (
	"math"
	"testing"

	"github.com/matzehuels/metalroute/pkg/geom"
)

func TestTrackSteps(t *testing.T) {
	tr := Track{Coords: []float64{0, 2, 4}, Pitch: 2, Step: 1}
	tests := []struct {
		v            float64
		upper, lower float64
		on           bool
	}{
		{1, 2, 0, false},
		{2, 4, 0, true},
		{4, 6, 2, true},
		{7, 8, 6, false},
		{-3, -2, -4, false},
		{-2, 0, -4, true},
	}
	for _, tt := range tests {
		if got := tr.Upper(tt.v); !geom.Same(got, tt.upper) {
			t.Errorf("Upper(%g) = %g, want %g", tt.v, got, tt.upper)
		}
		if got := tr.Lower(tt.v); !geom.Same(got, tt.lower) {
			t.Errorf("Lower(%g) = %g, want %g", tt.v, got, tt.lower)
		}
		if got := tr.OnGrid(tt.v); got != tt.on {
			t.Errorf("OnGrid(%g) = %v, want %v", tt.v, got, tt.on)
		}
	}
}

func TestGridRoundTrip(t *testing.T) {
	tracks := map[string]Track{
		"explicit": {Coords: []float64{0, 2, 4}, Pitch: 2, Step: 1},
		"uneven":   {Coords: []float64{-1, 0.5, 3, 3.25}, Pitch: 1.5, Step: 1},
		"gridless": {Step: 0.5},
	}
	for name, tr := range tracks {
		t.Run(name, func(t *testing.T) {
			for x := -10.0; x <= 10; x += 0.35 {
				if lo := tr.Lower(tr.Upper(x)); lo > x+geom.Eps {
					t.Errorf("Lower(Upper(%g)) = %g > x", x, lo)
				}
				if hi := tr.Upper(tr.Lower(x)); hi < x-geom.Eps {
					t.Errorf("Upper(Lower(%g)) = %g < x", x, hi)
				}
				if f := tr.Floor(x); f > x+geom.Eps || !tr.OnGrid(f) {
					t.Errorf("Floor(%g) = %g", x, f)
				}
				if c := tr.Ceil(x); c < x-geom.Eps || !tr.OnGrid(c) {
					t.Errorf("Ceil(%g) = %g", x, c)
				}
			}
		})
	}
}

func TestNativeTrack(t *testing.T) {
	got := nativeTrack(0.5, 2, 0, 7)
	want := []float64{0.5, 2.5, 4.5, 6.5}
	if len(got) != len(want) {
		t.Fatalf("nativeTrack = %v, want %v", got, want)
	}
	for i := range want {
		if !geom.Same(got[i], want[i]) {
			t.Errorf("nativeTrack[%d] = %g, want %g", i, got[i], want[i])
		}
	}
	if nativeTrack(0, 0, 0, 10) != nil {
		t.Error("zero pitch should give no tracks")
	}
}

func TestSortedCoords(t *testing.T) {
	got := sortedCoords([]float64{3, 1, 2, 1 + 1e-9, 3})
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("sortedCoords = %v", got)
	}
}

func TestEventNext(t *testing.T) {
	ev := eventSet{x: []float64{-3, 0.5, 4.5}}
	tests := []struct {
		v, sign, want float64
	}{
		{0.5, 1, 4.5},
		{0.5, -1, -3},
		{1, 1, 4.5},
		{1, -1, 0.5},
		{-3, -1, math.Inf(-1)},
		{4.5, 1, math.Inf(1)},
	}
	for _, tt := range tests {
		if got := ev.next(AxisX, tt.v, tt.sign); got != tt.want {
			t.Errorf("next(%g, %g) = %g, want %g", tt.v, tt.sign, got, tt.want)
		}
	}
}

func TestPatchPlacements(t *testing.T) {
	fp := geom.R(0, 0, 1, 1)
	ps := patchPlacements(fp, AxisX, 4)
	if len(ps) != 3 {
		t.Fatalf("placements = %d", len(ps))
	}
	for _, p := range ps {
		if p.Area() < 4-geom.Eps || p.Height() != 1 || !p.Touches(fp) {
			t.Errorf("placement %v", p)
		}
	}
	if ps[0] != geom.R(-1.5, 0, 2.5, 1) {
		t.Errorf("centered = %v", ps[0])
	}
	if ps[1].MinX != 0 || ps[2].MaxX != 1 {
		t.Errorf("flush placements = %v, %v", ps[1], ps[2])
	}
}
