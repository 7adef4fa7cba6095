package accounter

import (
	"fmt"

	"github.com/edgefabric/rtrm/pkg/rtree"
	"github.com/edgefabric/rtrm/pkg/rtrmerr"
	"github.com/edgefabric/rtrm/pkg/types"
)

// SyncStart opens a sync session: SYNC_VIEW is reset from the current
// SYSTEM_VIEW, carrying over both the tree-level usage and the per-owner
// holdings that back it, and becomes the working view the synchronisation
// manager re-books schedulables into (spec.md §4.2, §4.7 PreChange phase).
// A schedulable that is never re-acquired this session (it stays Running,
// untouched) keeps exactly the holding it started with. Only one sync
// session can be open at a time.
func (a *Accounter) SyncStart() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.syncOpen {
		return fmt.Errorf("sync_start: %w", rtrmerr.ErrSyncInitFailed)
	}
	synced := make(map[string]*holding, len(a.holdings[types.SystemView]))
	for owner, h := range a.holdings[types.SystemView] {
		synced[owner] = h
	}
	a.holdings[types.SyncView] = synced
	a.tree.WithLock(func(ops rtree.Ops) {
		ops.CloneView(types.SystemView, types.SyncView)
	})
	a.views[types.SyncView] = struct{}{}
	a.syncOpen = true
	return nil
}

// SyncAcquire re-books owner's requests onto SYNC_VIEW. check is false by
// convention here: the requests were already validated when the
// schedulable was first scheduled, so a sync_acquire call is re-asserting a
// booking rather than arbitrating fresh contention, and must not fail on a
// later-discovered shortfall (spec.md §4.2).
//
// Any holding owner already carries into SYNC_VIEW — whether cloned in by
// SyncStart from its prior SYSTEM_VIEW binding, or left over from an
// earlier SyncAcquire this same session — is released at the tree level
// before the new requests are booked, so a Migrate/Reconf re-acquire
// replaces the old binding's credits instead of stacking on top of them.
func (a *Accounter) SyncAcquire(owner string, requests []types.ResourceRequest) (BookResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.syncOpen {
		return BookResult{}, fmt.Errorf("sync_acquire: %w", rtrmerr.ErrSyncMiss)
	}
	if h, ok := a.holdings[types.SyncView][owner]; ok && h != nil {
		a.tree.WithLock(func(ops rtree.Ops) {
			for _, creds := range h.byReq {
				for _, c := range creds {
					ops.Debit(c.node, types.SyncView, owner, c.amount)
				}
			}
		})
	}
	delete(a.holdings[types.SyncView], owner)
	return a.bookLocked(owner, requests, types.SyncView, false)
}

// SyncCommit promotes SYNC_VIEW into SYSTEM_VIEW and closes the session
// (spec.md §4.7 PostChange). Holdings recorded against SYNC_VIEW become the
// new SYSTEM_VIEW holdings for every owner that acquired during the
// session; owners that held SYSTEM_VIEW resources but were not re-acquired
// keep their prior holding untouched.
func (a *Accounter) SyncCommit() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.syncOpen {
		return fmt.Errorf("sync_commit: %w", rtrmerr.ErrSyncMiss)
	}
	a.tree.WithLock(func(ops rtree.Ops) {
		ops.CloneView(types.SyncView, types.SystemView)
		ops.DropView(types.SyncView)
	})
	for owner, h := range a.holdings[types.SyncView] {
		a.holdings[types.SystemView][owner] = h
	}
	delete(a.holdings, types.SyncView)
	delete(a.views, types.SyncView)
	a.syncOpen = false
	return nil
}

// SyncAbort discards SYNC_VIEW without touching SYSTEM_VIEW (spec.md §8
// property #3 "Abort purity": SYSTEM_VIEW must be bit-for-bit the same
// before and after an aborted sync session).
func (a *Accounter) SyncAbort() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.syncOpen {
		return fmt.Errorf("sync_abort: %w", rtrmerr.ErrSyncMiss)
	}
	a.tree.WithLock(func(ops rtree.Ops) {
		ops.DropView(types.SyncView)
	})
	delete(a.holdings, types.SyncView)
	delete(a.views, types.SyncView)
	a.syncOpen = false
	return nil
}
