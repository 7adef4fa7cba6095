// Package rtree implements the resource tree (spec.md §4.1): named
// resource nodes indexed by exact path, with per-view usage accounting.
package rtree

import (
	"fmt"
	"sort"
	"sync"

	"github.com/edgefabric/rtrm/pkg/rtrmerr"
	"github.com/edgefabric/rtrm/pkg/types"
)

// Tree stores all known resources as a tree of nodes indexed by exact
// path. All mutation goes through Tree's methods; it is safe for
// concurrent use.
type Tree struct {
	mu    sync.RWMutex
	nodes map[string]*Node // keyed by path.String()
}

// New creates an empty resource tree.
func New() *Tree {
	return &Tree{nodes: make(map[string]*Node)}
}

// Register inserts a node at path with the given declared capacity
// (amount, in units). Idempotent on an equal (units, amount) re-register;
// fails with ErrInvalidPath on a malformed or non-exact path, and with
// ErrAlreadyExists on a capacity mismatch against an existing node.
func (t *Tree) Register(path types.Path, units string, amount float64) error {
	if len(path) == 0 || !path.IsExact() {
		return fmt.Errorf("register %s: %w", path, rtrmerr.ErrInvalidPath)
	}
	total, err := ConvertAmount(units, amount)
	if err != nil {
		return fmt.Errorf("register %s: %w: %v", path, rtrmerr.ErrInvalidPath, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	key := path.String()
	if existing, ok := t.nodes[key]; ok {
		if existing.Total != total {
			return fmt.Errorf("register %s: %w: capacity mismatch (existing %d, got %d)",
				path, rtrmerr.ErrAlreadyExists, existing.Total, total)
		}
		return nil
	}
	t.nodes[key] = newNode(path, total)
	return nil
}

// Get returns the nodes matching pathOrTemplate: a template expands across
// every registered node whose path Matches it; an exact path returns at
// most one node.
func (t *Tree) Get(pathOrTemplate types.Path) []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.getLocked(pathOrTemplate)
}

func (t *Tree) getLocked(pathOrTemplate types.Path) []*Node {
	if pathOrTemplate.IsExact() {
		if n, ok := t.nodes[pathOrTemplate.String()]; ok {
			return []*Node{n}
		}
		return nil
	}
	var matches []*Node
	for _, n := range t.nodes {
		if n.Path.Matches(pathOrTemplate) {
			matches = append(matches, n)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Path.Less(matches[j].Path) })
	return matches
}

// All returns every registered node, sorted by path, for use by read-only
// status reporting (e.g. the command FIFO's res_status).
func (t *Tree) All() []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path.Less(out[j].Path) })
	return out
}

// Exists reports whether an exact node is registered at path.
func (t *Tree) Exists(path types.Path) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.nodes[path.String()]
	return ok
}

// CountPerType returns how many registered nodes have the given type.
func (t *Tree) CountPerType(rt types.ResourceType) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	count := 0
	for _, n := range t.nodes {
		if len(n.Path) > 0 && n.Path[len(n.Path)-1].Type == rt {
			count++
		}
	}
	return count
}

// Total sums the declared (total - reserved) capacity of the nodes
// matching path (template or exact), saturating on overflow.
func (t *Tree) Total(path types.Path) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var sum uint64
	for _, n := range t.getLocked(path) {
		sum = saturatingAdd(sum, n.Total-n.Reserved)
	}
	return sum
}

// Used sums used(n, view) over the nodes matching path.
func (t *Tree) Used(path types.Path, view types.ViewToken) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var sum uint64
	for _, n := range t.getLocked(path) {
		sum = saturatingAdd(sum, n.usedLocked(view, ""))
	}
	return sum
}

// Available sums available(n, view) over the nodes matching path. owner
// is accepted but not applied: the sum always subtracts every owner's
// booked usage in view, whatever owner is passed.
func (t *Tree) Available(path types.Path, view types.ViewToken, owner string) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var sum uint64
	for _, n := range t.getLocked(path) {
		sum = saturatingAdd(sum, n.availableLocked(view))
	}
	_ = owner // owner is informational here; booking semantics live in pkg/accounter
	return sum
}

// UpdateSample applies fn to every node matching path while holding the
// tree's write lock, the only sanctioned way to mutate a node's sampled
// power/thermal fields (spec.md §5 "resource nodes are only mutated
// through the accounter" — samplers go through the tree they were handed,
// never touch a cached *Node directly).
func (t *Tree) UpdateSample(path types.Path, fn func(*Node)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, n := range t.getLocked(path) {
		fn(n)
	}
}

// WithLock runs fn with the tree's write lock held, giving pkg/accounter a
// single critical section to implement booking, release and commit
// without re-acquiring a per-call lock for every node it touches
// (spec.md §5 "the accounter serialises all mutating operations on a
// single reentrant critical section").
func (t *Tree) WithLock(fn func(ops Ops)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(Ops{t: t})
}

// RWith runs fn with the tree's read lock held, for queries that must
// observe a consistent snapshot across several nodes.
func (t *Tree) RWith(fn func(ops ROps)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn(ROps{t: t})
}

// Ops is the mutating surface handed to callers inside WithLock.
type Ops struct{ t *Tree }

func (o Ops) Get(path types.Path) []*Node { return o.t.getLocked(path) }
func (o Ops) Available(n *Node, v types.ViewToken) uint64 {
	return n.availableLocked(v)
}
func (o Ops) Used(n *Node, v types.ViewToken, owner string) uint64 {
	return n.usedLocked(v, owner)
}
func (o Ops) Credit(n *Node, v types.ViewToken, owner string, amount uint64) {
	n.creditLocked(v, owner, amount)
}
func (o Ops) Debit(n *Node, v types.ViewToken, owner string, amount uint64) {
	n.debitLocked(v, owner, amount)
}
func (o Ops) DropView(v types.ViewToken) {
	for _, n := range o.t.nodes {
		n.dropViewLocked(v)
	}
}
func (o Ops) CloneView(src, dst types.ViewToken) {
	for _, n := range o.t.nodes {
		n.cloneViewLocked(src, dst)
	}
}

// ROps is the read-only surface handed to callers inside RWith.
type ROps struct{ t *Tree }

func (o ROps) Get(path types.Path) []*Node { return o.t.getLocked(path) }
