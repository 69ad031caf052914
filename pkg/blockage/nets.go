package blockage

import (
	"fmt"
	"sync"
)

// NetID identifies a network cell in a [Nets] arena. Two blockages belong to
// the same electrical network when their cells resolve to the same root.
type NetID int32

// NoNet marks geometry that belongs to no network. It never compares equal
// to anything, including itself.
const NoNet NetID = -1

// Nets is an arena of network cells with union-find merging. Merging two
// networks rewrites one root to point at the other, so every blockage holding
// either cell sees the merge without being touched.
//
// Nets is safe for concurrent use.
type Nets struct {
	mu     sync.Mutex
	parent []NetID
	rank   []uint8
	names  []string
}

// NewNets creates an empty arena.
func NewNets() *Nets {
	return &Nets{}
}

// New allocates a fresh network cell with the given display name.
func (n *Nets) New(name string) NetID {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := NetID(len(n.parent))
	n.parent = append(n.parent, id)
	n.rank = append(n.rank, 0)
	if name == "" {
		name = fmt.Sprintf("net%d", id)
	}
	n.names = append(n.names, name)
	return id
}

// Len returns the number of cells allocated.
func (n *Nets) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.parent)
}

func (n *Nets) valid(id NetID) bool { return id >= 0 && int(id) < len(n.parent) }

// find resolves id to its root with path halving. Caller holds mu.
func (n *Nets) find(id NetID) NetID {
	for n.parent[id] != id {
		n.parent[id] = n.parent[n.parent[id]]
		id = n.parent[id]
	}
	return id
}

// Find returns the canonical cell of id, or NoNet for unknown ids.
func (n *Nets) Find(id NetID) NetID {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.valid(id) {
		return NoNet
	}
	return n.find(id)
}

// Union merges the networks of a and b and returns the surviving root. If
// either id is unknown the other is returned unchanged.
func (n *Nets) Union(a, b NetID) NetID {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch {
	case !n.valid(a) && !n.valid(b):
		return NoNet
	case !n.valid(a):
		return n.find(b)
	case !n.valid(b):
		return n.find(a)
	}
	ra, rb := n.find(a), n.find(b)
	if ra == rb {
		return ra
	}
	if n.rank[ra] < n.rank[rb] {
		ra, rb = rb, ra
	}
	n.parent[rb] = ra
	if n.rank[ra] == n.rank[rb] {
		n.rank[ra]++
	}
	return ra
}

// Same reports whether a and b resolve to the same network.
func (n *Nets) Same(a, b NetID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.valid(a) || !n.valid(b) {
		return false
	}
	return n.find(a) == n.find(b)
}

// Name returns the display name of the network id was allocated as.
func (n *Nets) Name(id NetID) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.valid(id) {
		return "<none>"
	}
	return n.names[id]
}
