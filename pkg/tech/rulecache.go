package tech

import (
	"math"
	"sync"
	"sync/atomic"
)

// Surround is the clearance required around a shape, per axis.
type Surround struct {
	DX, DY float64
}

type ruleKey struct {
	z      int
	width  int64
	length int64
}

// quantum is the resolution at which widths and lengths are keyed.
const quantum = 1000

func keyOf(z int, width, length float64) ruleKey {
	if math.IsInf(length, 1) {
		length = math.MaxInt32
	}
	return ruleKey{z: z, width: int64(math.Round(width * quantum)), length: int64(math.Round(length * quantum))}
}

// RuleCache memoizes design-rule lookups keyed by (layer, width, length). It is
// safe for concurrent use by multiple route requests.
type RuleCache struct {
	rules Rules

	mu      sync.RWMutex
	spacing map[ruleKey]float64
	worst   []float64

	hits, misses atomic.Int64
}

// NewRuleCache wraps rules with a memoizing cache.
func NewRuleCache(rules Rules) *RuleCache {
	n := rules.MetalCount()
	worst := make([]float64, n)
	for z := range n {
		worst[z] = rules.Metal(z).WorstSpacing()
	}
	return &RuleCache{
		rules:   rules,
		spacing: make(map[ruleKey]float64),
		worst:   worst,
	}
}

// Rules returns the wrapped rule source.
func (c *RuleCache) Rules() Rules { return c.rules }

// Spacing returns the spacing around a wire of the given width on layer z
// running parallel to a neighbor for the given length.
func (c *RuleCache) Spacing(z int, width, length float64) float64 {
	k := keyOf(z, width, length)

	c.mu.RLock()
	s, ok := c.spacing[k]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return s
	}

	c.misses.Add(1)
	s = c.rules.Spacing(z, width, length)
	c.mu.Lock()
	c.spacing[k] = s
	c.mu.Unlock()
	return s
}

// Surround returns the per-axis clearance around a wire on layer z.
func (c *RuleCache) Surround(z int, width, length float64) Surround {
	s := c.Spacing(z, width, length)
	return Surround{DX: s, DY: s}
}

// Between returns the spacing required between two shapes of widths w1 and w2
// on layer z that face each other over the given length. Same-colored shapes
// on a multi-patterned layer need at least the layer's same-mask spacing.
func (c *RuleCache) Between(z int, w1, w2, length float64, sameMask bool) float64 {
	s := math.Max(c.Spacing(z, w1, length), c.Spacing(z, w2, length))
	if sameMask {
		if m := c.rules.Metal(z); m != nil && m.Colored() {
			s = math.Max(s, m.SameMaskSpacing)
		}
	}
	return s
}

// WorstGap returns the largest clearance any shape on layer z can require.
func (c *RuleCache) WorstGap(z int) float64 {
	if z < 0 || z >= len(c.worst) {
		return 0
	}
	return c.worst[z]
}

// MaxWorstGap returns the largest WorstGap over all layers.
func (c *RuleCache) MaxWorstGap() float64 {
	var g float64
	for _, w := range c.worst {
		g = math.Max(g, w)
	}
	return g
}

// MinArea returns the minimum metal area on layer z.
func (c *RuleCache) MinArea(z int) float64 { return c.rules.MinArea(z) }

// Stats returns the number of cache hits and misses so far.
func (c *RuleCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
