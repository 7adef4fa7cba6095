// Package accounter implements the resource accounter (spec.md §4.2):
// owns the resource tree and the table of accounting views, and exposes
// atomic booking, release, and sync-session commit/rollback.
package accounter

import (
	"fmt"
	"sync"

	"github.com/edgefabric/rtrm/pkg/rtree"
	"github.com/edgefabric/rtrm/pkg/rtrmerr"
	"github.com/edgefabric/rtrm/pkg/types"
	"github.com/google/uuid"
)

// maxViews bounds how many speculative views can be outstanding at once,
// per spec.md §4.2 "fails with TokenExhausted if names collide beyond an
// implementation limit".
const maxViews = 64

// NodeCredit is one node the binder touched while booking a request,
// reported back to the caller so a policy can derive a concrete Binding
// (spec.md §3 "Binding") from the result.
type NodeCredit struct {
	Path   types.Path
	Amount uint64
}

// BookResult is what BookResources returns on success: the concrete
// per-node credits applied, grouped by the request index they satisfy.
type BookResult struct {
	Credits [][]NodeCredit
}

type holding struct {
	requests []types.ResourceRequest
	byReq    [][]credit
}

// Accounter owns the resource tree and the table of views. All mutating
// operations serialise on a single critical section (spec.md §5); queries
// against SYSTEM_VIEW may overlap with it.
type Accounter struct {
	tree *rtree.Tree

	mu       sync.Mutex
	views    map[types.ViewToken]struct{}
	holdings map[types.ViewToken]map[string]*holding
	syncOpen bool
}

// New creates an Accounter backed by tree, with SYSTEM_VIEW pre-registered.
func New(tree *rtree.Tree) *Accounter {
	a := &Accounter{
		tree:     tree,
		views:    map[types.ViewToken]struct{}{types.SystemView: {}},
		holdings: map[types.ViewToken]map[string]*holding{types.SystemView: {}},
	}
	return a
}

// Tree returns the underlying resource tree, for read-only queries
// (pkg/rtree.Tree's Get/Total/Used/Available are themselves concurrency
// safe and do not need the accounter's critical section).
func (a *Accounter) Tree() *rtree.Tree { return a.tree }

// GetView creates a fresh view seeded from SYSTEM_VIEW and returns its
// token.
func (a *Accounter) GetView() (types.ViewToken, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.getViewLocked()
}

func (a *Accounter) getViewLocked() (types.ViewToken, error) {
	if len(a.views) >= maxViews {
		return "", rtrmerr.ErrTokenExhausted
	}
	token := types.ViewToken(uuid.NewString())
	a.views[token] = struct{}{}
	a.holdings[token] = make(map[string]*holding)
	a.tree.WithLock(func(ops rtree.Ops) {
		ops.CloneView(types.SystemView, token)
	})
	return token, nil
}

// PutView drops a non-system view and releases whatever it still holds.
func (a *Accounter) PutView(token types.ViewToken) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.putViewLocked(token)
}

func (a *Accounter) putViewLocked(token types.ViewToken) error {
	if token == types.SystemView {
		return fmt.Errorf("put_view %s: %w", token, rtrmerr.ErrInvalidPath)
	}
	if _, ok := a.views[token]; !ok {
		return fmt.Errorf("put_view %s: %w", token, rtrmerr.ErrMissingView)
	}
	delete(a.views, token)
	delete(a.holdings, token)
	a.tree.WithLock(func(ops rtree.Ops) { ops.DropView(token) })
	return nil
}

// BookResources atomically reserves the amounts specified by requests on
// view for owner (spec.md §4.2). When check is true, the whole call fails
// with ErrOverbooked and no state changes if any request would exceed
// availability.
func (a *Accounter) BookResources(owner string, requests []types.ResourceRequest, view types.ViewToken, check bool) (BookResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bookLocked(owner, requests, view, check)
}

func (a *Accounter) bookLocked(owner string, requests []types.ResourceRequest, view types.ViewToken, check bool) (BookResult, error) {
	if _, ok := a.views[view]; !ok {
		return BookResult{}, fmt.Errorf("book_resources view %s: %w", view, rtrmerr.ErrMissingView)
	}
	if h, ok := a.holdings[view][owner]; ok && h != nil {
		return BookResult{}, fmt.Errorf("book_resources owner %s view %s: %w", owner, view, rtrmerr.ErrAlreadyHolds)
	}

	var result BookResult
	planned := make(map[*rtree.Node]uint64)
	var allCredits [][]credit

	var failed bool
	a.tree.WithLock(func(ops rtree.Ops) {
		for _, req := range requests {
			candidates := ops.Get(req.PathTemplate)
			creds, ok := bindRequest(ops, view, candidates, req, planned, check)
			if !ok {
				failed = true
				return
			}
			for _, c := range creds {
				planned[c.node] += c.amount
			}
			allCredits = append(allCredits, creds)
		}
		if failed {
			return
		}
		// All requests bound successfully: apply every credit.
		for _, creds := range allCredits {
			for _, c := range creds {
				ops.Credit(c.node, view, owner, c.amount)
			}
		}
	})

	if failed {
		return BookResult{}, fmt.Errorf("book_resources owner %s view %s: %w", owner, view, rtrmerr.ErrOverbooked)
	}

	result.Credits = make([][]NodeCredit, len(allCredits))
	for i, creds := range allCredits {
		nc := make([]NodeCredit, len(creds))
		for j, c := range creds {
			nc[j] = NodeCredit{Path: c.path, Amount: c.amount}
		}
		result.Credits[i] = nc
	}

	a.holdings[view][owner] = &holding{requests: requests, byReq: allCredits}
	return result, nil
}

// ReleaseResources symmetrically decrements whatever owner holds in view.
// Releasing from SYSTEM_VIEW during an open sync session also cascades the
// release to SYNC_VIEW, since a re-scheduled schedulable's prior system
// holding must not linger once the sync session supersedes it.
func (a *Accounter) ReleaseResources(owner string, view types.ViewToken) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.releaseLocked(owner, view)
}

func (a *Accounter) releaseLocked(owner string, view types.ViewToken) error {
	if _, ok := a.views[view]; !ok {
		return fmt.Errorf("release_resources view %s: %w", view, rtrmerr.ErrMissingView)
	}
	h, ok := a.holdings[view][owner]
	if !ok || h == nil {
		return nil // releasing a non-holding is a no-op, matches idempotent release
	}
	a.tree.WithLock(func(ops rtree.Ops) {
		for _, creds := range h.byReq {
			for _, c := range creds {
				ops.Debit(c.node, view, owner, c.amount)
			}
		}
	})
	delete(a.holdings[view], owner)

	if view == types.SystemView && a.syncOpen {
		if sh, ok := a.holdings[types.SyncView][owner]; ok && sh != nil {
			a.tree.WithLock(func(ops rtree.Ops) {
				for _, creds := range sh.byReq {
					for _, c := range creds {
						ops.Debit(c.node, types.SyncView, owner, c.amount)
					}
				}
			})
			delete(a.holdings[types.SyncView], owner)
		}
	}
	return nil
}

// Holds reports whether owner currently holds a request set in view.
func (a *Accounter) Holds(owner string, view types.ViewToken) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	h, ok := a.holdings[view][owner]
	return ok && h != nil
}
