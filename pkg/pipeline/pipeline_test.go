package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/matzehuels/metalroute/pkg/cache"
	"github.com/matzehuels/metalroute/pkg/errors"
	"github.com/matzehuels/metalroute/pkg/route"
	"github.com/matzehuels/metalroute/pkg/tech"
)

const testJob = `
name = "pipe"

[technology]
name = "t2"

[[technology.metals]]
name = "M1"
direction = "horizontal"
width = 1
pitch = 2
spacing = 1

[[technology.metals]]
name = "M2"
direction = "vertical"
width = 1
pitch = 2
spacing = 1

[[technology.vias]]
cut_size = 0.5
cut_spacing = 1
enclosure = 0.25

[router]
max_steps = 5000

[[requests]]
id = "r1"
net = "sig"
a = { rect = [0, 10, 1, 11], layers = ["M1"] }
b = { rect = [20, 10, 21, 11], layers = ["M1"] }
`

func testTech(t *testing.T) *tech.Technology {
	t.Helper()
	tc := &tech.Technology{
		Metals: []tech.MetalLayer{
			{Name: "M1", Direction: tech.Horizontal, Width: 1, Pitch: 2, Spacing: 1},
			{Name: "M2", Direction: tech.Vertical, Width: 1, Pitch: 2, Spacing: 1},
		},
		Vias: []tech.ViaLayer{{CutSize: 0.5, CutSpacing: 1, Enclosure: 0.25}},
	}
	if err := tc.Validate(); err != nil {
		t.Fatal(err)
	}
	return tc
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"svg", false},
		{"dot", false},
		{"png", true},
		{"SVG", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
	}
}

func TestValidateAndSetDefaults(t *testing.T) {
	var o Options
	if err := o.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if o.MaxSteps != DefaultMaxSteps || o.RetryMaxSteps != DefaultRetryMaxSteps {
		t.Errorf("steps = %d/%d", o.MaxSteps, o.RetryMaxSteps)
	}
	if o.GlobalPasses != DefaultGlobalPasses || o.StepSize != DefaultStepSize {
		t.Errorf("passes = %d, step = %g", o.GlobalPasses, o.StepSize)
	}
	if o.Costs != route.DefaultCosts() {
		t.Errorf("costs = %+v", o.Costs)
	}
	if o.Logger == nil {
		t.Error("logger not set")
	}

	// The retry budget never falls below the first pass.
	big := Options{MaxSteps: DefaultRetryMaxSteps * 2}
	if err := big.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if big.RetryMaxSteps != big.MaxSteps {
		t.Errorf("RetryMaxSteps = %d, want %d", big.RetryMaxSteps, big.MaxSteps)
	}

	for _, bad := range []Options{{MaxSteps: -1}, {StepSize: -0.5}, {Workers: -2}} {
		if err := bad.ValidateAndSetDefaults(); !errors.Is(err, errors.ErrCodeInvalidConfig) {
			t.Errorf("ValidateAndSetDefaults(%+v) = %v, want INVALID_CONFIG", bad, err)
		}
	}
}

func TestRouterConfig(t *testing.T) {
	tc := testTech(t)
	o := Options{
		NoRetry:   true,
		NoSalvage: true,
		Workers:   3,
		Layers:    map[string]route.LayerOverride{"M2": {Disabled: true}},
	}
	cfg, err := o.RouterConfig(tc)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Retry || cfg.Route.Salvage || cfg.Workers != 3 {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.Route.ContactAllowedUp || !cfg.Route.ContactAllowedDown {
		t.Error("contacts should be allowed by default")
	}
	if !cfg.Route.Layers[1].Disabled || cfg.Route.Layers[0].Disabled {
		t.Errorf("layers = %+v", cfg.Route.Layers)
	}

	o = Options{Layers: map[string]route.LayerOverride{"M7": {}}}
	if _, err := o.RouterConfig(tc); !errors.Is(err, errors.ErrCodeInvalidLayer) {
		t.Errorf("RouterConfig() = %v, want INVALID_LAYER", err)
	}
}

func TestKeyOptsIgnoresWorkers(t *testing.T) {
	k := cache.NewDefaultKeyer()
	a := Options{Workers: 1, MaxSteps: 10}
	b := Options{Workers: 8, MaxSteps: 10, Refresh: true}
	c := Options{Workers: 1, MaxSteps: 20}
	if k.ResolutionKey("h", a.KeyOpts()) != k.ResolutionKey("h", b.KeyOpts()) {
		t.Error("workers and refresh should not change the key")
	}
	if k.ResolutionKey("h", a.KeyOpts()) == k.ResolutionKey("h", c.KeyOpts()) {
		t.Error("max_steps should change the key")
	}
}

func TestRunnerCachesResolution(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(fc, nil, nil)
	defer r.Close()

	first, err := r.Execute(ctx, []byte(testJob), nil, nil)
	if err != nil {
		t.Fatalf("Execute() = %v", err)
	}
	if first.CacheInfo.RouteHit {
		t.Error("first run should miss the cache")
	}
	if first.Resolution.Stats.Routed != 1 || len(first.Resolution.Arcs) == 0 {
		t.Fatalf("stats = %+v", first.Resolution.Stats)
	}

	second, err := r.Execute(ctx, []byte(testJob), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheInfo.RouteHit {
		t.Error("second run should hit the cache")
	}
	if second.JobHash != first.JobHash || len(second.Resolution.Arcs) != len(first.Resolution.Arcs) {
		t.Errorf("cached resolution differs: %d arcs vs %d", len(second.Resolution.Arcs), len(first.Resolution.Arcs))
	}

	// Refresh bypasses the lookup.
	third, err := r.Execute(ctx, []byte(testJob), func(o *Options) error {
		o.Refresh = true
		return nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheInfo.RouteHit {
		t.Error("refresh should not hit the cache")
	}
}

func TestExecuteOverride(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	job, _, err := r.Load([]byte(testJob))
	if err != nil {
		t.Fatal(err)
	}
	opts, err := r.JobOptions(job, func(o *Options) error {
		if o.MaxSteps != 5000 {
			return fmt.Errorf("job options not applied: %d", o.MaxSteps)
		}
		o.Global = true
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !opts.Global || opts.MaxSteps != 5000 {
		t.Errorf("opts = %+v", opts)
	}

	_, err = r.Execute(context.Background(), []byte(testJob), func(*Options) error {
		return errors.New(errors.ErrCodeInvalidInput, "bad flag")
	}, nil)
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Execute() = %v, want INVALID_INPUT", err)
	}

	if _, err := r.Execute(context.Background(), []byte("name = 3"), nil, nil); err == nil {
		t.Error("Execute() should reject a bad job")
	}
}

func TestRenderPlanDOT(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(fc, nil, nil)
	job, hash, err := r.Load([]byte(testJob))
	if err != nil {
		t.Fatal(err)
	}
	out, hit, err := r.RenderPlanWithCacheInfo(ctx, job, hash, Options{}, FormatDOT)
	if err != nil {
		t.Fatalf("RenderPlanWithCacheInfo() = %v", err)
	}
	if hit || !strings.HasPrefix(string(out), "graph G {") {
		t.Errorf("hit = %v, out = %.40q", hit, out)
	}
	if _, hit, _ := r.RenderPlanWithCacheInfo(ctx, job, hash, Options{}, FormatDOT); !hit {
		t.Error("second render should hit the cache")
	}
	if _, _, err := r.RenderPlanWithCacheInfo(ctx, job, hash, Options{}, "png"); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("png = %v, want INVALID_FORMAT", err)
	}
}
