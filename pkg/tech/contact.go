package tech

import (
	"fmt"
	"math"

	"github.com/matzehuels/metalroute/pkg/geom"
)

// Contact is a via primitive connecting metal Lower and metal Lower+1. It
// offers one or more variants that differ in footprint or orientation; the
// router picks the first variant that is legal at a given location.
type Contact struct {
	Name     string           `toml:"name" json:"name"`
	Lower    int              `toml:"lower" json:"lower"`
	Variants []ContactVariant `toml:"variants" json:"variants"`
}

// ContactVariant is one footprint of a contact. Rectangles are relative to the
// contact center. A zero mask accepts any color on that layer.
type ContactVariant struct {
	Name       string      `toml:"name" json:"name"`
	LowerMetal geom.Rect   `toml:"lower_metal" json:"lower_metal"`
	UpperMetal geom.Rect   `toml:"upper_metal" json:"upper_metal"`
	Cuts       []geom.Rect `toml:"cuts" json:"cuts"`
	LowerMask  int         `toml:"lower_mask" json:"lower_mask,omitempty"`
	UpperMask  int         `toml:"upper_mask" json:"upper_mask,omitempty"`
}

// LowerAt returns the lower-metal footprint placed at c.
func (v ContactVariant) LowerAt(c geom.Point) geom.Rect { return v.LowerMetal.Translate(c) }

// UpperAt returns the upper-metal footprint placed at c.
func (v ContactVariant) UpperAt(c geom.Point) geom.Rect { return v.UpperMetal.Translate(c) }

// CutsAt returns the cut rectangles placed at c.
func (v ContactVariant) CutsAt(c geom.Point) []geom.Rect {
	out := make([]geom.Rect, len(v.Cuts))
	for i, r := range v.Cuts {
		out[i] = r.Translate(c)
	}
	return out
}

// MetalAt returns the footprint on metal z (which must be the lower or upper
// layer of the contact) placed at c.
func (c Contact) MetalAt(v ContactVariant, z int, at geom.Point) geom.Rect {
	if z == c.Lower {
		return v.LowerAt(at)
	}
	return v.UpperAt(at)
}

// DefaultContact builds a single-cut contact for via layer lower from the via
// and metal rules. When the via layer has a larger end enclosure than side
// enclosure, each metal can be a bar along X or along Y, giving four variants;
// the one matching both layers' preferred directions comes first.
func (t *Technology) DefaultContact(lower int) Contact {
	v := t.Vias[lower]
	lo, hi := t.Metals[lower], t.Metals[lower+1]
	cut := geom.Centered(geom.Point{}, v.CutSize, v.CutSize)

	pad := func(m MetalLayer, alongX bool) geom.Rect {
		ex, ey := v.Enclosure, v.Enclosure
		if alongX {
			ex = v.EndEnclosure
		} else {
			ey = v.EndEnclosure
		}
		w := math.Max(v.CutSize+2*ex, m.Width)
		h := math.Max(v.CutSize+2*ey, m.Width)
		return geom.Centered(geom.Point{}, w, h)
	}

	c := Contact{Name: fmt.Sprintf("%s_%s", lo.Name, hi.Name), Lower: lower}
	if v.EndEnclosure <= v.Enclosure {
		c.Variants = []ContactVariant{{
			Name:       "square",
			LowerMetal: pad(lo, true),
			UpperMetal: pad(hi, true),
			Cuts:       []geom.Rect{cut},
		}}
		return c
	}

	loX := lo.Direction != Vertical
	hiX := hi.Direction == Horizontal
	for _, o := range [][2]bool{{loX, hiX}, {loX, !hiX}, {!loX, hiX}, {!loX, !hiX}} {
		c.Variants = append(c.Variants, ContactVariant{
			Name:       orientName(o[0]) + orientName(o[1]),
			LowerMetal: pad(lo, o[0]),
			UpperMetal: pad(hi, o[1]),
			Cuts:       []geom.Rect{cut},
		})
	}
	return c
}

func orientName(alongX bool) string {
	if alongX {
		return "h"
	}
	return "v"
}
