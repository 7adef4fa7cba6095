package rtree

import "github.com/edgefabric/rtrm/pkg/types"

// Node is a resource tree node addressed by an exact path (spec.md §3
// "Resource node"). It is only ever mutated through a Tree; callers that
// hold a *Node from Get should treat it as a read-only snapshot view,
// matching the design note that cached references to resource nodes are
// read-only after construction.
type Node struct {
	Path     types.Path
	Total    uint64
	Reserved uint64

	// Usage[view][owner] = amount booked by owner in that view.
	Usage map[types.ViewToken]map[string]uint64

	// Degradation and last-observed sampled quantities (spec.md §3, §6.3).
	Degradation  int
	LoadPercent  float64
	TemperatureC float64
	ClockHz      uint64
	PowerMW      uint64
}

func newNode(path types.Path, total uint64) *Node {
	return &Node{
		Path:  path.Clone(),
		Total: total,
		Usage: make(map[types.ViewToken]map[string]uint64),
	}
}

// usedLocked sums Usage[view] across owners, optionally filtered to a
// single owner. Callers must hold the owning Tree's lock.
func (n *Node) usedLocked(view types.ViewToken, owner string) uint64 {
	byOwner, ok := n.Usage[view]
	if !ok {
		return 0
	}
	if owner != "" {
		return byOwner[owner]
	}
	var sum uint64
	for _, amount := range byOwner {
		sum = saturatingAdd(sum, amount)
	}
	return sum
}

// availableLocked computes total - reserved - used(view), saturating at
// zero (spec.md §4.1 invariants).
func (n *Node) availableLocked(view types.ViewToken) uint64 {
	capacity := n.Total - n.Reserved
	used := n.usedLocked(view, "")
	if used >= capacity {
		return 0
	}
	return capacity - used
}

func (n *Node) creditLocked(view types.ViewToken, owner string, amount uint64) {
	byOwner, ok := n.Usage[view]
	if !ok {
		byOwner = make(map[string]uint64)
		n.Usage[view] = byOwner
	}
	byOwner[owner] = saturatingAdd(byOwner[owner], amount)
}

func (n *Node) debitLocked(view types.ViewToken, owner string, amount uint64) {
	byOwner, ok := n.Usage[view]
	if !ok {
		return
	}
	cur := byOwner[owner]
	if amount >= cur {
		delete(byOwner, owner)
	} else {
		byOwner[owner] = cur - amount
	}
	if len(byOwner) == 0 {
		delete(n.Usage, view)
	}
}

func (n *Node) dropViewLocked(view types.ViewToken) {
	delete(n.Usage, view)
}

// cloneViewLocked copies every owner->amount entry of src into dst,
// overwriting dst's prior entries for this node (used by sync commit's
// promote-view step).
func (n *Node) cloneViewLocked(src, dst types.ViewToken) {
	byOwner, ok := n.Usage[src]
	if !ok {
		delete(n.Usage, dst)
		return
	}
	cp := make(map[string]uint64, len(byOwner))
	for k, v := range byOwner {
		cp[k] = v
	}
	n.Usage[dst] = cp
}

func saturatingAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return ^uint64(0)
	}
	return sum
}
