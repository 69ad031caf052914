package route

import (
	"github.com/charmbracelet/log"
)

// Default search limits.
const (
	DefaultMaxSteps      = 50_000
	DefaultRetryMaxSteps = 200_000
	DefaultStepSize      = 1.0
	DefaultTaperLength   = 10.0
)

// Costs holds the integer weights of the cost rules. Length-proportional
// rules (wrong direction, unfavored layer) are charged per unit of length;
// the others per occurrence.
type Costs struct {
	WrongDirection  int `json:"wrong_direction" toml:"wrong_direction"`
	LayerChange     int `json:"layer_change" toml:"layer_change"`
	LayerChangeAway int `json:"layer_change_away" toml:"layer_change_away"`
	Unfavored       int `json:"unfavored" toml:"unfavored"`
	OffGrid         int `json:"off_grid" toml:"off_grid"`
	Turn            int `json:"turn" toml:"turn"`
	Fragment        int `json:"fragment" toml:"fragment"`
}

// DefaultCosts returns the standard cost weights.
func DefaultCosts() Costs {
	return Costs{
		WrongDirection:  2,
		LayerChange:     8,
		LayerChangeAway: 8,
		Unfavored:       1,
		OffGrid:         3,
		Turn:            2,
		Fragment:        4,
	}
}

// LayerOverride adjusts how one metal layer is used by a route.
type LayerOverride struct {
	// Disabled removes the layer from routing entirely.
	Disabled bool `json:"disabled" toml:"disabled"`
	// Favored layers are preferred; when any layer is favored, all others
	// pay the unfavored penalty.
	Favored bool `json:"favored" toml:"favored"`
	// ForceWidth replaces the default wire width on the layer (0 = unset).
	ForceWidth float64 `json:"force_width" toml:"force_width"`
	// ForceSpacing raises the spacing around new wires on the layer.
	ForceSpacing float64 `json:"force_spacing" toml:"force_spacing"`
}

// Config controls a single route search.
type Config struct {
	// MaxSteps bounds the vertices each wavefront may expand.
	MaxSteps int
	// StepSize is the single-step distance on gridless axes.
	StepSize float64
	// ForceGrid snaps every vertex to the layer grid.
	ForceGrid bool
	// ParallelDirections races the two directions on separate goroutines.
	ParallelDirections bool

	// ContactAllowedUp and ContactAllowedDown allow inserting a via at an
	// endpoint whose layer is disabled.
	ContactAllowedUp   bool
	ContactAllowedDown bool

	// Salvage stitches two failed searches at a common coordinate.
	Salvage bool

	// MaxArcWidth clips taper widths (0 = no limit beyond the layer's).
	MaxArcWidth float64
	// TaperLength is how far a route may run at taper width.
	TaperLength float64
	// BoundExpansion enlarges the routing bound beyond the endpoints. Zero
	// picks a value from the layer pitches and the endpoint distance.
	BoundExpansion float64
	// ForceReroute routes requests whose terminals are already connected.
	ForceReroute bool

	// Layers holds per-layer overrides keyed by metal index.
	Layers map[int]LayerOverride
	Costs  Costs

	Logger *log.Logger
}

// DefaultConfig returns the standard search configuration.
func DefaultConfig() Config {
	return Config{
		MaxSteps:           DefaultMaxSteps,
		StepSize:           DefaultStepSize,
		ContactAllowedUp:   true,
		ContactAllowedDown: true,
		Salvage:            true,
		TaperLength:        DefaultTaperLength,
		Costs:              DefaultCosts(),
	}
}

func (c *Config) normalize() {
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if c.StepSize <= 0 {
		c.StepSize = DefaultStepSize
	}
	if c.TaperLength < 0 {
		c.TaperLength = 0
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
}

func (c *Config) override(z int) LayerOverride {
	if c.Layers == nil {
		return LayerOverride{}
	}
	return c.Layers[z]
}

func (c *Config) anyFavored() bool {
	for _, o := range c.Layers {
		if o.Favored {
			return true
		}
	}
	return false
}
