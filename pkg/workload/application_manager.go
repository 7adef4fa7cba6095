package workload

import (
	"fmt"
	"sort"
	"sync"

	"github.com/edgefabric/rtrm/pkg/accounter"
	"github.com/edgefabric/rtrm/pkg/rtrmerr"
	"github.com/edgefabric/rtrm/pkg/schedulable"
	"github.com/edgefabric/rtrm/pkg/types"
)

// ApplicationManager owns every Application created by the workload agent
// via pairing (spec.md §4.4, §6.2).
type ApplicationManager struct {
	acc *accounter.Accounter

	mu         sync.Mutex
	apps       map[string]*schedulable.Application
	byPrio     order
	byState    map[schedulable.State]*order
	scheduling bool
}

// BeginScheduling marks the registry as mid-scheduling-cycle (spec.md §4.6
// step 2 "set state Scheduling on the workload managers").
func (m *ApplicationManager) BeginScheduling() {
	m.mu.Lock()
	m.scheduling = true
	m.mu.Unlock()
}

// EndScheduling restores the registry to its normal Ready status
// (spec.md §4.6 step 6).
func (m *ApplicationManager) EndScheduling() {
	m.mu.Lock()
	m.scheduling = false
	m.mu.Unlock()
}

// IsScheduling reports whether a scheduling cycle currently owns this
// registry.
func (m *ApplicationManager) IsScheduling() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scheduling
}

// NewApplicationManager creates an empty registry backed by acc for
// booking the AWM requests it schedules.
func NewApplicationManager(acc *accounter.Accounter) *ApplicationManager {
	return &ApplicationManager{
		acc:     acc,
		apps:    make(map[string]*schedulable.Application),
		byState: make(map[schedulable.State]*order),
	}
}

func (m *ApplicationManager) stateOrder(s schedulable.State) *order {
	o, ok := m.byState[s]
	if !ok {
		o = &order{}
		m.byState[s] = o
	}
	return o
}

// CreateExc registers a new Application (spec.md §6.2 ExcRegister).
func (m *ApplicationManager) CreateExc(app *schedulable.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.apps[app.UID()]; exists {
		return fmt.Errorf("create_exc %s: %w", app.UID(), rtrmerr.ErrAlreadyExists)
	}
	m.apps[app.UID()] = app
	m.byPrio.insert(app.UID(), func(a, b string) bool {
		return m.apps[a].Priority() < m.apps[b].Priority()
	})
	m.stateOrder(schedulable.New).insert(app.UID(), trivialLess)
	return nil
}

// DestroyExc removes an Application on exit or explicit unregister
// (spec.md §6.2 AppExit).
func (m *ApplicationManager) DestroyExc(uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[uid]
	if !ok {
		return fmt.Errorf("destroy_exc %s: %w", uid, rtrmerr.ErrNotFound)
	}
	m.byPrio.remove(uid)
	m.stateOrder(app.State()).remove(uid)
	delete(m.apps, uid)
	return nil
}

// Get looks up an Application by uid.
func (m *ApplicationManager) Get(uid string) (*schedulable.Application, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[uid]
	return app, ok
}

// EnableExc clears the disabled flag by moving the Application to Ready.
func (m *ApplicationManager) EnableExc(uid string) error {
	return m.transition(uid, schedulable.Ready, schedulable.None)
}

// DisableExc moves an Application into Sync(Disabled), per spec.md §7
// "agent errors during sync disable the offending schedulable".
func (m *ApplicationManager) DisableExc(uid string) error {
	return m.transition(uid, schedulable.Sync, schedulable.Disabled)
}

func (m *ApplicationManager) transition(uid string, next schedulable.State, nextSync schedulable.SyncState) error {
	m.mu.Lock()
	app, ok := m.apps[uid]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("transition %s: %w", uid, rtrmerr.ErrNotFound)
	}
	prev := app.State()
	if err := app.SetState(next, nextSync); err != nil {
		return err
	}
	m.mu.Lock()
	m.stateOrder(prev).remove(uid)
	m.stateOrder(next).insert(uid, trivialLess)
	m.mu.Unlock()
	return nil
}

// CheckActive reports whether uid names a non-disabled, non-Finished
// Application.
func (m *ApplicationManager) CheckActive(uid string) bool {
	app, ok := m.Get(uid)
	if !ok {
		return false
	}
	return !app.IsDisabled() && app.State() != schedulable.Finished
}

// AnyReadyOrRunning reports whether at least one Application is Ready or
// Running, the precondition for running a scheduling cycle (spec.md §4.6
// step 1).
func (m *ApplicationManager) AnyReadyOrRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stateOrder(schedulable.Ready).uids) > 0 || len(m.stateOrder(schedulable.Running).uids) > 0
}

// ReadyCount reports how many Applications currently sit in Ready, used by
// the event loop's debounce formulas (spec.md §4.8).
func (m *ApplicationManager) ReadyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stateOrder(schedulable.Ready).uids)
}

// HighestPrioReady returns the Ready application with the lowest priority
// value (0 is highest), or nil if none is Ready.
func (m *ApplicationManager) HighestPrioReady() *schedulable.Application {
	m.mu.Lock()
	var candidates []*schedulable.Application
	for _, app := range m.apps {
		if app.State() == schedulable.Ready {
			candidates = append(candidates, app)
		}
	}
	m.mu.Unlock()
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Priority() < candidates[j].Priority() })
	return candidates[0]
}

// IterateByPriority returns a retained iterator walking applications in
// ascending priority order.
func (m *ApplicationManager) IterateByPriority() *ApplicationIterator {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &ApplicationIterator{m: m, it: m.byPrio.newIterator(), src: &m.byPrio}
}

// IterateByState returns a retained iterator walking applications
// currently in state s, so the sync manager can walk exactly Sync without
// scanning (spec.md §4.4).
func (m *ApplicationManager) IterateByState(s schedulable.State) *ApplicationIterator {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.stateOrder(s)
	return &ApplicationIterator{m: m, it: o.newIterator(), src: o}
}

// ApplicationIterator is a retained cursor: erasing the element it is
// about to return repositions it to the next valid element (spec.md §8
// property #6).
type ApplicationIterator struct {
	m   *ApplicationManager
	it  *iterPos
	src *order
}

// Next returns the next Application and true, or nil and false at End.
func (it *ApplicationIterator) Next() (*schedulable.Application, bool) {
	it.m.mu.Lock()
	defer it.m.mu.Unlock()
	uid, ok := it.src.next(it.it)
	if !ok {
		return nil, false
	}
	return it.m.apps[uid], true
}

func trivialLess(a, b string) bool { return a < b }

// ScheduleRequest computes the required sync flavour (spec.md §4.3),
// sets next_awm, books the AWM's requests via the accounter, and
// transitions app into the matching Sync(…) state. On accounting failure
// it calls Unschedule, which books Sync(Blocked) instead.
func (m *ApplicationManager) ScheduleRequest(app *schedulable.Application, awm *types.AWM, view types.ViewToken, bindRef int) error {
	if !awm.SetCurrentBinding(bindRef) {
		return fmt.Errorf("schedule_request %s: %w", app.UID(), rtrmerr.ErrMissingAWM)
	}
	nextSync := app.NextSyncFor(awm)
	app.SetNextAWM(awm)

	prev := app.State()
	if _, err := m.acc.BookResources(app.UID(), awm.Requests, view, true); err != nil {
		return m.Unschedule(app, prev)
	}

	if nextSync == schedulable.None {
		return m.SyncContinue(app)
	}
	if err := app.SetState(schedulable.Sync, nextSync); err != nil {
		return err
	}
	m.mu.Lock()
	m.stateOrder(prev).remove(app.UID())
	m.stateOrder(schedulable.Sync).insert(app.UID(), trivialLess)
	m.mu.Unlock()
	return nil
}

// ScheduleRequestAsPrev re-asserts app's current AWM unchanged into view,
// used when a policy chooses to leave a Running application exactly as it
// is but still wants it represented in the candidate view.
func (m *ApplicationManager) ScheduleRequestAsPrev(app *schedulable.Application, view types.ViewToken) error {
	cur := app.CurrentAWM()
	if cur == nil {
		return fmt.Errorf("schedule_request_as_prev %s: %w", app.UID(), rtrmerr.ErrMissingAWM)
	}
	ref, ok := cur.CurrentBinding()
	if !ok {
		return fmt.Errorf("schedule_request_as_prev %s: %w", app.UID(), rtrmerr.ErrAWMNotSchedulable)
	}
	return m.ScheduleRequest(app, cur, view, ref.Ref)
}

// Unschedule books app into Sync(Blocked) after an accounting failure and
// restores its previous iteration bucket.
func (m *ApplicationManager) Unschedule(app *schedulable.Application, prev schedulable.State) error {
	if err := app.SetState(schedulable.Sync, schedulable.Blocked); err != nil {
		return err
	}
	m.mu.Lock()
	m.stateOrder(prev).remove(app.UID())
	m.stateOrder(schedulable.Sync).insert(app.UID(), trivialLess)
	m.mu.Unlock()
	return nil
}

// NoSchedule leaves app exactly as-is; used by the scheduler manager when a
// policy declines to touch a schedulable at all.
func (m *ApplicationManager) NoSchedule(*schedulable.Application) error { return nil }

// SyncContinue clears next_awm on a Running application the policy did not
// reconfigure, without moving it out of Running (spec.md §4.6 step 4).
func (m *ApplicationManager) SyncContinue(app *schedulable.Application) error {
	app.SetNextAWM(nil)
	return nil
}

// SyncCommit calls the workload manager's side of accounter.SyncCommit:
// promotes app out of Sync into Running.
func (m *ApplicationManager) SyncCommit(app *schedulable.Application) error {
	return m.transition(app.UID(), schedulable.Running, schedulable.None)
}

// SyncAbort returns app from Sync back to Ready without promoting next_awm.
func (m *ApplicationManager) SyncAbort(app *schedulable.Application) error {
	return m.transition(app.UID(), schedulable.Ready, schedulable.None)
}
