package schedulable

import (
	"fmt"
	"sync"

	"github.com/edgefabric/rtrm/pkg/rtrmerr"
	"github.com/edgefabric/rtrm/pkg/types"
)

// Base carries the fields and state machine shared by Application and
// Process (spec.md §3 "Schedulable"). It is never used directly; embed it
// in a concrete variant.
//
// A recursive lock would be one way to guard these fields; instead a
// public/private method split is used: exported methods take the lock
// and never call each other while holding it, internal *Locked helpers
// assume the caller already holds it.
type Base struct {
	mu sync.Mutex

	uid      string
	name     string
	priority int

	state     State
	syncState SyncState

	currentAWM *types.AWM
	nextAWM    *types.AWM

	scheduleCount uint64
	disabled      bool
}

func newBase(uid, name string, priority int) Base {
	return Base{uid: uid, name: name, priority: priority, state: New, syncState: None}
}

func (b *Base) UID() string  { return b.uid }
func (b *Base) Name() string { return b.name }

func (b *Base) Priority() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.priority
}

func (b *Base) SetPriority(p int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.priority = p
}

// State returns the current lifecycle state.
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// SyncState returns the current sync flavour.
func (b *Base) SyncState() SyncState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.syncState
}

// IsDisabled reports whether the schedulable has been disabled by entering
// Sync(Disabled) (spec.md §7 "agent errors during sync disable the
// offending schedulable"); entering Ready again clears it.
func (b *Base) IsDisabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disabled
}

// CurrentAWM returns the AWM presently in effect, or nil.
func (b *Base) CurrentAWM() *types.AWM {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentAWM
}

// NextAWM returns the AWM a pending sync will promote, or nil.
func (b *Base) NextAWM() *types.AWM {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextAWM
}

// ScheduleCount returns how many times this schedulable has completed a
// transition into Running.
func (b *Base) ScheduleCount() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scheduleCount
}

// SwitchingAWM is true iff the schedulable is Sync and its current and
// pending AWMs have different ids (spec.md §4.3).
func (b *Base) SwitchingAWM() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.switchingAWMLocked()
}

func (b *Base) switchingAWMLocked() bool {
	if b.state != Sync {
		return false
	}
	if b.currentAWM == nil || b.nextAWM == nil {
		return b.currentAWM != b.nextAWM
	}
	return b.currentAWM.ID != b.nextAWM.ID
}

// SetState drives the state machine transition (spec.md §3 invariants):
//   - sync_state != None iff state == Sync
//   - entering Sync(x) requires x != None; entering a stable state
//     requires next == None
//   - entering Sync(Blocked|Disabled) or stable Ready clears both AWMs;
//     entering Ready also clears the disabled flag
//   - entering Running promotes next_awm to current_awm, clears next_awm,
//     and increments both the schedulable's and the AWM's schedule count
func (b *Base) SetState(next State, nextSync SyncState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.setStateLocked(next, nextSync)
}

func (b *Base) setStateLocked(next State, nextSync SyncState) error {
	if next == Sync && nextSync == None {
		return fmt.Errorf("set_state %s: %w", b.uid, rtrmerr.ErrNotSupported)
	}
	if next != Sync && nextSync != None {
		return fmt.Errorf("set_state %s: %w", b.uid, rtrmerr.ErrNotSupported)
	}

	b.state = next
	b.syncState = nextSync

	switch {
	case next == Sync && (nextSync == Blocked || nextSync == Disabled):
		b.currentAWM, b.nextAWM = nil, nil
		if nextSync == Disabled {
			b.disabled = true
		}
	case next == Ready:
		b.currentAWM, b.nextAWM = nil, nil
		b.disabled = false
	case next == Running:
		b.currentAWM = b.nextAWM
		b.nextAWM = nil
		b.scheduleCount = saturatingIncr(b.scheduleCount)
		if b.currentAWM != nil {
			b.currentAWM.IncSchedulingCount()
		}
	}
	return nil
}

// SetNextAWM records the AWM a pending schedule intends to promote. Called
// by the owning workload manager before entering Sync.
func (b *Base) SetNextAWM(awm *types.AWM) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextAWM = awm
}

// NextSyncFor derives the sync flavour required to move from the current
// AWM to candidate, per the table in spec.md §4.3.
func (b *Base) NextSyncFor(candidate *types.AWM) SyncState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextSyncForLocked(candidate)
}

func (b *Base) nextSyncForLocked(candidate *types.AWM) SyncState {
	cur := b.currentAWM
	if cur == nil {
		return Starting
	}
	if candidate == nil {
		return Starting
	}

	curBind, curOK := cur.CurrentBinding()
	candBind, candOK := candidate.CurrentBinding()

	sameAWM := cur.ID == candidate.ID
	sameCPUSet := curOK && candOK && types.SameCPUSet(curBind, candBind)

	switch {
	case !sameAWM && !sameCPUSet:
		return MigRec
	case sameAWM && !sameCPUSet:
		return Migrate
	case !sameAWM:
		return Reconf
	case sameAWM && sameCPUSet && curOK && candOK && reshuffled(curBind, candBind):
		return Reconf
	default:
		return None
	}
}

// reshuffled detects an inter-group binding change that keeps the same CPU
// set but moves other slots around (spec.md §4.3 "same AWM, same binding,
// but inter-group reshuffle detected").
func reshuffled(a, b types.Binding) bool {
	if len(a.Bind) != len(b.Bind) {
		return true
	}
	for slot, id := range a.Bind {
		if other, ok := b.Bind[slot]; !ok || other != id {
			return true
		}
	}
	return false
}

func saturatingIncr(v uint64) uint64 {
	if v == ^uint64(0) {
		return v
	}
	return v + 1
}
