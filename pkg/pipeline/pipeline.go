// Package pipeline provides the routing pipeline shared by the CLI and the
// HTTP API.
//
// The pipeline is load → cache lookup → route → cache store:
//
//  1. Load: decode the TOML job into a technology, a blockage index and the
//     request list (see package io)
//  2. Lookup: hash the job file and the effective options and look the
//     resolution up in the cache
//  3. Route: run the batch router over the requests
//  4. Store: write the resolution back to the cache
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	job, hash, err := runner.Load(data)
//	opts := pipeline.Options{}
//	_ = job.DecodeRouter(&opts)
//	opts.Workers = 8
//	res, hit, err := runner.Route(ctx, job, hash, opts)
//
// [Options] holds every tunable in one place with JSON and TOML tags, so the
// same struct is read from the [router] table of a job, from the body of an
// API request and from CLI flags.
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/metalroute/pkg/cache"
	"github.com/matzehuels/metalroute/pkg/errors"
	"github.com/matzehuels/metalroute/pkg/globalroute"
	"github.com/matzehuels/metalroute/pkg/resolution"
	"github.com/matzehuels/metalroute/pkg/route"
	"github.com/matzehuels/metalroute/pkg/router"
	"github.com/matzehuels/metalroute/pkg/tech"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultMaxSteps is the per-direction vertex budget of one search.
	DefaultMaxSteps = route.DefaultMaxSteps

	// DefaultRetryMaxSteps is the budget of the retry pass.
	DefaultRetryMaxSteps = route.DefaultRetryMaxSteps

	// DefaultStepSize is the single-step distance on gridless axes.
	DefaultStepSize = route.DefaultStepSize

	// DefaultTaperLength is how far a route may run at taper width.
	DefaultTaperLength = route.DefaultTaperLength

	// DefaultGlobalPasses is the number of rip-up passes of the global router.
	DefaultGlobalPasses = globalroute.DefaultPasses
)

// Format constants for global-routing plan output.
const (
	FormatSVG = "svg"
	FormatDOT = "dot"
)

// ValidFormats is the set of supported plan formats.
var ValidFormats = map[string]bool{
	FormatSVG: true,
	FormatDOT: true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for a routing run.
type Options struct {
	// Search options
	MaxSteps           int     `json:"max_steps,omitempty" toml:"max_steps"`
	RetryMaxSteps      int     `json:"retry_max_steps,omitempty" toml:"retry_max_steps"`
	StepSize           float64 `json:"step_size,omitempty" toml:"step_size"`
	ForceGrid          bool    `json:"force_grid,omitempty" toml:"force_grid"`
	ParallelDirections bool    `json:"parallel_directions,omitempty" toml:"parallel_directions"`
	NoSalvage          bool    `json:"no_salvage,omitempty" toml:"no_salvage"`
	NoContactUp        bool    `json:"no_contact_up,omitempty" toml:"no_contact_up"`
	NoContactDown      bool    `json:"no_contact_down,omitempty" toml:"no_contact_down"`
	MaxArcWidth        float64 `json:"max_arc_width,omitempty" toml:"max_arc_width"`
	TaperLength        float64 `json:"taper_length,omitempty" toml:"taper_length"`
	BoundExpansion     float64 `json:"bound_expansion,omitempty" toml:"bound_expansion"`
	ForceReroute       bool    `json:"force_reroute,omitempty" toml:"force_reroute"`

	// Layers holds per-layer overrides keyed by metal layer name.
	Layers map[string]route.LayerOverride `json:"layers,omitempty" toml:"layers"`

	// Costs replaces all cost weights when any of them is set.
	Costs route.Costs `json:"costs,omitempty" toml:"costs"`

	// Batch options
	Workers      int  `json:"workers,omitempty" toml:"workers"`
	Global       bool `json:"global,omitempty" toml:"global"`
	GlobalPasses int  `json:"global_passes,omitempty" toml:"global_passes"`
	NoRetry      bool `json:"no_retry,omitempty" toml:"no_retry"`

	// Refresh skips the cache lookup.
	Refresh bool `json:"refresh,omitempty" toml:"-"`

	// Runtime options (not serialized)
	Logger     *log.Logger            `json:"-" toml:"-"`
	OnProgress func(router.Progress) `json:"-" toml:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// JobHash is the content hash of the job file.
	JobHash string

	// Resolution is the routing result.
	Resolution *resolution.Resolution

	// Stats contains timing information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Requests  int
	LoadTime  time.Duration
	RouteTime time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	RouteHit bool
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a plan format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: svg, dot)", format)
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks ranges and applies defaults. This method is
// idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	for _, v := range []struct {
		what string
		n    float64
	}{
		{"max_steps", float64(o.MaxSteps)},
		{"retry_max_steps", float64(o.RetryMaxSteps)},
		{"step_size", o.StepSize},
		{"max_arc_width", o.MaxArcWidth},
		{"taper_length", o.TaperLength},
		{"bound_expansion", o.BoundExpansion},
		{"workers", float64(o.Workers)},
		{"global_passes", float64(o.GlobalPasses)},
	} {
		if err := errors.ValidateNonNegative(v.what, v.n); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "router options")
		}
	}
	o.SetSearchDefaults()
	o.SetBatchDefaults()
	if o.RetryMaxSteps < o.MaxSteps {
		o.RetryMaxSteps = o.MaxSteps
	}
	o.validated = true
	return nil
}

// SetSearchDefaults sets default values for the per-request search.
func (o *Options) SetSearchDefaults() {
	if o.MaxSteps == 0 {
		o.MaxSteps = DefaultMaxSteps
	}
	if o.StepSize == 0 {
		o.StepSize = DefaultStepSize
	}
	if o.TaperLength == 0 {
		o.TaperLength = DefaultTaperLength
	}
	if o.Costs == (route.Costs{}) {
		o.Costs = route.DefaultCosts()
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// SetBatchDefaults sets default values for the batch router.
func (o *Options) SetBatchDefaults() {
	if o.RetryMaxSteps == 0 {
		o.RetryMaxSteps = DefaultRetryMaxSteps
	}
	if o.GlobalPasses == 0 {
		o.GlobalPasses = DefaultGlobalPasses
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// RouterConfig maps the options onto a router configuration for t. Layer
// overrides must name metal layers of t.
func (o *Options) RouterConfig(t *tech.Technology) (router.Config, error) {
	if err := o.ValidateAndSetDefaults(); err != nil {
		return router.Config{}, err
	}
	rc := route.Config{
		MaxSteps:           o.MaxSteps,
		StepSize:           o.StepSize,
		ForceGrid:          o.ForceGrid,
		ParallelDirections: o.ParallelDirections,
		ContactAllowedUp:   !o.NoContactUp,
		ContactAllowedDown: !o.NoContactDown,
		Salvage:            !o.NoSalvage,
		MaxArcWidth:        o.MaxArcWidth,
		TaperLength:        o.TaperLength,
		BoundExpansion:     o.BoundExpansion,
		ForceReroute:       o.ForceReroute,
		Costs:              o.Costs,
		Logger:             o.Logger,
	}
	if len(o.Layers) > 0 {
		rc.Layers = make(map[int]route.LayerOverride, len(o.Layers))
		for name, lo := range o.Layers {
			z, ok := t.LayerIndex(name)
			if !ok {
				return router.Config{}, errors.New(errors.ErrCodeInvalidLayer, "layer override for unknown layer %q", name)
			}
			rc.Layers[z] = lo
		}
	}
	return router.Config{
		Route:         rc,
		Workers:       o.Workers,
		Global:        o.Global,
		GlobalPasses:  o.GlobalPasses,
		Retry:         !o.NoRetry,
		RetryMaxSteps: o.RetryMaxSteps,
		OnProgress:    o.OnProgress,
		Logger:        o.Logger,
	}, nil
}

// KeyOpts returns the options that change the routing result, for use in
// cache keys. Worker count and runtime fields are excluded.
func (o *Options) KeyOpts() Options {
	k := *o
	k.Workers = 0
	k.Refresh = false
	k.Logger = nil
	k.OnProgress = nil
	k.validated = false
	return k
}

// ArtifactKeyOpts returns cache key options for a rendered plan.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{Format: format, Passes: o.GlobalPasses}
}
