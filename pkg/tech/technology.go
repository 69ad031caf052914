// Package tech describes the process technology the router works against:
// metal layers with their preferred direction, track pitch and spacing rules,
// the via layers between them, and the contacts that can be placed to change
// layers.
//
// The router never reads a [Technology] directly during search. It consumes
// the [Rules] interface, usually through a [RuleCache] that memoizes the
// spacing lookups keyed by (layer, width, length).
//
// # Layer Numbering
//
// Metal layers are numbered from 0 (lowest) upwards. Via layer i connects
// metal i and metal i+1, so a technology with n metals has n-1 via layers.
//
// # Spacing Rules
//
// The spacing required around a wire depends on its width and on the length
// over which it runs parallel to a neighbor. A layer carries a default
// spacing and a table of [SpacingRule] entries; the effective spacing is the
// largest value among the default and every rule whose width and length
// thresholds are met.
package tech

import (
	"fmt"
	"math"
	"strings"

	"github.com/matzehuels/metalroute/pkg/errors"
)

// Direction is the preferred routing direction of a metal layer.
type Direction int

const (
	// Any means the layer has no preferred direction and no native track grid.
	Any Direction = iota
	// Horizontal layers prefer runs along X and carry tracks at fixed Y.
	Horizontal
	// Vertical layers prefer runs along Y and carry tracks at fixed X.
	Vertical
)

func (d Direction) String() string {
	switch d {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	default:
		return "any"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It accepts the long
// names as well as "h" and "v".
func (d *Direction) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "", "any", "none":
		*d = Any
	case "h", "horizontal":
		*d = Horizontal
	case "v", "vertical":
		*d = Vertical
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown layer direction %q", string(b))
	}
	return nil
}

// SpacingRule raises the spacing of wires at least Width wide that run
// parallel to a neighbor for at least Length.
type SpacingRule struct {
	Width   float64 `toml:"width" json:"width"`
	Length  float64 `toml:"length" json:"length"`
	Spacing float64 `toml:"spacing" json:"spacing"`
}

// MetalLayer is one routing layer.
type MetalLayer struct {
	Name      string    `toml:"name" json:"name"`
	Direction Direction `toml:"direction" json:"direction"`

	// Width is the default wire width. MaxWidth bounds tapers (0 = unbounded).
	Width    float64 `toml:"width" json:"width"`
	MaxWidth float64 `toml:"max_width" json:"max_width,omitempty"`

	// Pitch and Offset place the native tracks at Offset + k*Pitch on the
	// axis perpendicular to Direction. Pitch 0 means no native tracks.
	Pitch  float64 `toml:"pitch" json:"pitch,omitempty"`
	Offset float64 `toml:"offset" json:"offset,omitempty"`

	Spacing      float64       `toml:"spacing" json:"spacing"`
	SpacingRules []SpacingRule `toml:"spacing_rules" json:"spacing_rules,omitempty"`
	MinArea      float64       `toml:"min_area" json:"min_area,omitempty"`

	// Masks is the number of mask colors for multi-patterned layers (0 or 1
	// means uncolored). Same-colored shapes need SameMaskSpacing.
	Masks           int     `toml:"masks" json:"masks,omitempty"`
	SameMaskSpacing float64 `toml:"same_mask_spacing" json:"same_mask_spacing,omitempty"`
}

// Colored reports whether the layer is multi-patterned.
func (m *MetalLayer) Colored() bool { return m.Masks > 1 }

// SpacingFor returns the spacing required around a wire of the given width
// running parallel to a neighbor for the given length.
func (m *MetalLayer) SpacingFor(width, length float64) float64 {
	s := m.Spacing
	for _, r := range m.SpacingRules {
		if width >= r.Width-1e-9 && length >= r.Length-1e-9 && r.Spacing > s {
			s = r.Spacing
		}
	}
	return s
}

// WorstSpacing returns the largest spacing any rule of the layer can demand.
func (m *MetalLayer) WorstSpacing() float64 {
	s := math.Max(m.Spacing, m.SameMaskSpacing)
	for _, r := range m.SpacingRules {
		s = math.Max(s, r.Spacing)
	}
	return s
}

// ViaLayer is the cut layer between two adjacent metals.
type ViaLayer struct {
	Name string `toml:"name" json:"name"`

	CutSize    float64 `toml:"cut_size" json:"cut_size"`
	CutSpacing float64 `toml:"cut_spacing" json:"cut_spacing"`

	// DiagonalSpacing is the minimum corner-to-corner distance between cuts
	// that do not share a row or column (0 = same as CutSpacing).
	DiagonalSpacing float64 `toml:"diagonal_spacing" json:"diagonal_spacing,omitempty"`

	// Masks and ColorSpacing describe multi-patterned cut layers: two cuts
	// of the same color must be at least ColorSpacing apart.
	Masks        int     `toml:"masks" json:"masks,omitempty"`
	ColorSpacing float64 `toml:"color_spacing" json:"color_spacing,omitempty"`

	// Enclosure is the metal overlap of the cut on the sides; EndEnclosure
	// the overlap along the elongated axis of bar-shaped contact variants.
	Enclosure    float64 `toml:"enclosure" json:"enclosure"`
	EndEnclosure float64 `toml:"end_enclosure" json:"end_enclosure,omitempty"`
}

// Technology is the complete rule deck used for one routing job.
type Technology struct {
	Name        string       `toml:"name" json:"name"`
	Metals      []MetalLayer `toml:"metals" json:"metals"`
	Vias        []ViaLayer   `toml:"vias" json:"vias"`
	ContactDefs []Contact    `toml:"contacts" json:"contacts,omitempty"`

	// EnforceDirections makes the router add native tracks for every layer
	// that has a preferred direction and a pitch.
	EnforceDirections bool `toml:"enforce_directions" json:"enforce_directions"`
}

// Validate checks the technology for structural consistency: unique valid
// layer names, one via layer per adjacent metal pair, positive widths and
// non-negative spacings. It also generates default contacts for via layers
// that have none.
func (t *Technology) Validate() error {
	if len(t.Metals) == 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "technology has no metal layers")
	}
	if len(t.Vias) != len(t.Metals)-1 {
		return errors.New(errors.ErrCodeInvalidConfig,
			"technology has %d metal layers but %d via layers (want %d)",
			len(t.Metals), len(t.Vias), len(t.Metals)-1)
	}

	seen := make(map[string]bool)
	for i := range t.Metals {
		m := &t.Metals[i]
		if err := errors.ValidateLayerName(m.Name); err != nil {
			return err
		}
		if seen[m.Name] {
			return errors.New(errors.ErrCodeInvalidLayer, "duplicate layer name %q", m.Name)
		}
		seen[m.Name] = true
		if err := errors.ValidatePositive(m.Name+" width", m.Width); err != nil {
			return err
		}
		if err := errors.ValidateNonNegative(m.Name+" spacing", m.Spacing); err != nil {
			return err
		}
		if err := errors.ValidateNonNegative(m.Name+" pitch", m.Pitch); err != nil {
			return err
		}
		if m.MaxWidth != 0 && m.MaxWidth < m.Width {
			return errors.New(errors.ErrCodeInvalidConfig, "%s max_width %g below width %g", m.Name, m.MaxWidth, m.Width)
		}
		for _, r := range m.SpacingRules {
			if err := errors.ValidateNonNegative(m.Name+" rule spacing", r.Spacing); err != nil {
				return err
			}
		}
	}

	for i := range t.Vias {
		v := &t.Vias[i]
		if v.Name == "" {
			v.Name = fmt.Sprintf("%s-%s", t.Metals[i].Name, t.Metals[i+1].Name)
		} else if err := errors.ValidateLayerName(v.Name); err != nil {
			return err
		}
		if seen[v.Name] {
			return errors.New(errors.ErrCodeInvalidLayer, "duplicate layer name %q", v.Name)
		}
		seen[v.Name] = true
		if err := errors.ValidatePositive(v.Name+" cut_size", v.CutSize); err != nil {
			return err
		}
		if err := errors.ValidateNonNegative(v.Name+" cut_spacing", v.CutSpacing); err != nil {
			return err
		}
		if v.EndEnclosure < v.Enclosure {
			v.EndEnclosure = v.Enclosure
		}
	}

	for i := range t.ContactDefs {
		c := &t.ContactDefs[i]
		if c.Lower < 0 || c.Lower >= len(t.Vias) {
			return errors.New(errors.ErrCodeInvalidLayer, "contact %q connects unknown layer %d", c.Name, c.Lower)
		}
		if len(c.Variants) == 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "contact %q has no variants", c.Name)
		}
	}
	for lower := range t.Vias {
		if len(t.Contacts(lower)) == 0 {
			t.ContactDefs = append(t.ContactDefs, t.DefaultContact(lower))
		}
	}
	return nil
}

// LayerIndex returns the index of the named metal layer.
func (t *Technology) LayerIndex(name string) (int, bool) {
	for i := range t.Metals {
		if t.Metals[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

// MetalCount implements [Rules].
func (t *Technology) MetalCount() int { return len(t.Metals) }

// Metal implements [Rules].
func (t *Technology) Metal(z int) *MetalLayer {
	if z < 0 || z >= len(t.Metals) {
		return nil
	}
	return &t.Metals[z]
}

// Via implements [Rules].
func (t *Technology) Via(lower int) *ViaLayer {
	if lower < 0 || lower >= len(t.Vias) {
		return nil
	}
	return &t.Vias[lower]
}

// Spacing implements [Rules].
func (t *Technology) Spacing(z int, width, length float64) float64 {
	m := t.Metal(z)
	if m == nil {
		return 0
	}
	return m.SpacingFor(width, length)
}

// MinArea implements [Rules].
func (t *Technology) MinArea(z int) float64 {
	if m := t.Metal(z); m != nil {
		return m.MinArea
	}
	return 0
}

// Contacts implements [Rules].
func (t *Technology) Contacts(lower int) []Contact {
	var out []Contact
	for _, c := range t.ContactDefs {
		if c.Lower == lower {
			out = append(out, c)
		}
	}
	return out
}

// Directional reports whether layer z carries native tracks.
func (t *Technology) Directional(z int) bool {
	m := t.Metal(z)
	return t.EnforceDirections && m != nil && m.Direction != Any && m.Pitch > 0
}

// Rules is the design-rule view of a technology consumed by the router.
type Rules interface {
	MetalCount() int
	Metal(z int) *MetalLayer
	Via(lower int) *ViaLayer
	Spacing(z int, width, length float64) float64
	MinArea(z int) float64
	Contacts(lower int) []Contact
	Directional(z int) bool
}

var _ Rules = (*Technology)(nil)
