package workload

import (
	"fmt"
	"sync"

	"github.com/edgefabric/rtrm/pkg/accounter"
	"github.com/edgefabric/rtrm/pkg/rtrmerr"
	"github.com/edgefabric/rtrm/pkg/schedulable"
	"github.com/edgefabric/rtrm/pkg/types"
)

var (
	cpuPETemplate   = types.MustParsePath("sys.cpu.pe")
	accelTemplate   = types.MustParsePath("sys.acc")
	memoryTemplate  = types.MustParsePath("sys.mem")
)

// ProcessManager owns Processes corresponding to pids of interest
// (spec.md §4.4).
type ProcessManager struct {
	acc *accounter.Accounter

	mu         sync.Mutex
	procs      map[string]*schedulable.Process
	byPID      map[int]string
	byState    map[schedulable.State]*order
	scheduling bool
}

// BeginScheduling marks the registry as mid-scheduling-cycle.
func (m *ProcessManager) BeginScheduling() {
	m.mu.Lock()
	m.scheduling = true
	m.mu.Unlock()
}

// EndScheduling restores the registry to its normal status.
func (m *ProcessManager) EndScheduling() {
	m.mu.Lock()
	m.scheduling = false
	m.mu.Unlock()
}

// IsScheduling reports whether a scheduling cycle currently owns this
// registry.
func (m *ProcessManager) IsScheduling() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scheduling
}

// NewProcessManager creates an empty registry backed by acc.
func NewProcessManager(acc *accounter.Accounter) *ProcessManager {
	return &ProcessManager{
		acc:     acc,
		procs:   make(map[string]*schedulable.Process),
		byPID:   make(map[int]string),
		byState: make(map[schedulable.State]*order),
	}
}

func (m *ProcessManager) stateOrder(s schedulable.State) *order {
	o, ok := m.byState[s]
	if !ok {
		o = &order{}
		m.byState[s] = o
	}
	return o
}

// Add registers interest in a process by name, before it has started
// (spec.md §6.1 "bq.prm.add <name>").
func (m *ProcessManager) Add(name string, priority int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.procs[name]; exists {
		return fmt.Errorf("add %s: %w", name, rtrmerr.ErrAlreadyExists)
	}
	p := schedulable.NewProcess(name, priority)
	m.procs[name] = p
	m.stateOrder(schedulable.New).insert(name, trivialLess)
	return nil
}

// Remove drops interest in a process by name.
func (m *ProcessManager) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.procs[name]
	if !ok {
		return fmt.Errorf("remove %s: %w", name, rtrmerr.ErrNotFound)
	}
	m.stateOrder(p.State()).remove(name)
	delete(m.byPID, p.PID)
	delete(m.procs, name)
	return nil
}

// IsManaged reports whether name is currently tracked.
func (m *ProcessManager) IsManaged(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.procs[name]
	return ok
}

// Get looks up a Process by name.
func (m *ProcessManager) Get(name string) (*schedulable.Process, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.procs[name]
	return p, ok
}

// GetByPID looks up a Process by its observed pid.
func (m *ProcessManager) GetByPID(pid int) (*schedulable.Process, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.byPID[pid]
	if !ok {
		return nil, false
	}
	return m.procs[name], true
}

// NotifyStart binds a managed name to an observed pid and moves it to
// Ready.
func (m *ProcessManager) NotifyStart(name string, pid int) error {
	m.mu.Lock()
	p, ok := m.procs[name]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("notify_start %s: %w", name, rtrmerr.ErrNotFound)
	}
	prev := p.State()
	if err := p.NotifyStart(pid); err != nil {
		return err
	}
	m.mu.Lock()
	m.byPID[pid] = name
	m.stateOrder(prev).remove(name)
	m.stateOrder(schedulable.Ready).insert(name, trivialLess)
	m.mu.Unlock()
	return nil
}

// NotifyExit marks a managed process Finished, selected by name, or by pid
// when name is empty.
func (m *ProcessManager) NotifyExit(name string, pid int) error {
	m.mu.Lock()
	if name == "" {
		n, ok := m.byPID[pid]
		if !ok {
			m.mu.Unlock()
			return fmt.Errorf("notify_exit pid=%d: %w", pid, rtrmerr.ErrNotFound)
		}
		name = n
	}
	p, ok := m.procs[name]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("notify_exit %s: %w", name, rtrmerr.ErrNotFound)
	}
	prev := p.State()
	if err := p.SetState(schedulable.Finished, schedulable.None); err != nil {
		return err
	}
	_ = m.acc.ReleaseResources(p.Name(), types.SystemView)
	m.mu.Lock()
	m.stateOrder(prev).remove(name)
	m.stateOrder(schedulable.Finished).insert(name, trivialLess)
	m.mu.Unlock()
	return nil
}

// AnyReadyOrRunning reports whether at least one Process is Ready or
// Running.
func (m *ProcessManager) AnyReadyOrRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stateOrder(schedulable.Ready).uids) > 0 || len(m.stateOrder(schedulable.Running).uids) > 0
}

// ReadyCount reports how many Processes currently sit in Ready, used by
// the event loop's debounce formulas (spec.md §4.8).
func (m *ProcessManager) ReadyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stateOrder(schedulable.Ready).uids)
}

// IterateByState returns a retained iterator over processes in state s.
func (m *ProcessManager) IterateByState(s schedulable.State) *ProcessIterator {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.stateOrder(s)
	return &ProcessIterator{m: m, it: o.newIterator(), src: o}
}

// ProcessIterator is a retained cursor over a ProcessManager's ordering.
type ProcessIterator struct {
	m   *ProcessManager
	it  *iterPos
	src *order
}

// Next returns the next Process and true, or nil and false at End.
func (it *ProcessIterator) Next() (*schedulable.Process, bool) {
	it.m.mu.Lock()
	defer it.m.mu.Unlock()
	name, ok := it.src.next(it.it)
	if !ok {
		return nil, false
	}
	return it.m.procs[name], true
}

// ProcessRequests builds the resource request list for p's fluid
// scheduling request (spec.md §4.4), exported so the synchronisation
// manager's PostChange phase can re-derive the same requests it booked
// here without duplicating the CPU/accelerator/memory template mapping.
func ProcessRequests(p *schedulable.Process) []types.ResourceRequest {
	return requestsFor(p)
}

func requestsFor(p *schedulable.Process) []types.ResourceRequest {
	var reqs []types.ResourceRequest
	if p.CPUCores > 0 {
		reqs = append(reqs, types.ResourceRequest{PathTemplate: cpuPETemplate, Amount: p.CPUCores, Policy: types.Balanced})
	}
	if p.AccelCores > 0 {
		reqs = append(reqs, types.ResourceRequest{PathTemplate: accelTemplate, Amount: p.AccelCores, Policy: types.Balanced})
	}
	if p.MemoryMB > 0 {
		reqs = append(reqs, types.ResourceRequest{PathTemplate: memoryTemplate, Amount: p.MemoryMB, Policy: types.Sequential})
	}
	return reqs
}

// ScheduleRequest books p's fluid resource request (spec.md §4.4) and
// transitions it into Sync(Starting) on success, or Sync(Blocked) on an
// accounting failure.
func (m *ProcessManager) ScheduleRequest(p *schedulable.Process, view types.ViewToken) error {
	prev := p.State()
	reqs := requestsFor(p)
	if _, err := m.acc.BookResources(p.Name(), reqs, view, true); err != nil {
		return m.Unschedule(p, prev)
	}
	if err := p.SetState(schedulable.Sync, schedulable.Starting); err != nil {
		return err
	}
	m.mu.Lock()
	m.stateOrder(prev).remove(p.Name())
	m.stateOrder(schedulable.Sync).insert(p.Name(), trivialLess)
	m.mu.Unlock()
	return nil
}

// Reschedule re-books p's current request set into view, deriving Reconf
// instead of Starting since the process is already Running.
func (m *ProcessManager) Reschedule(p *schedulable.Process, view types.ViewToken) error {
	prev := p.State()
	reqs := requestsFor(p)
	if _, err := m.acc.BookResources(p.Name(), reqs, view, true); err != nil {
		return m.Unschedule(p, prev)
	}
	if err := p.SetState(schedulable.Sync, schedulable.Reconf); err != nil {
		return err
	}
	m.mu.Lock()
	m.stateOrder(prev).remove(p.Name())
	m.stateOrder(schedulable.Sync).insert(p.Name(), trivialLess)
	m.mu.Unlock()
	return nil
}

// Unschedule books p into Sync(Blocked) after an accounting failure.
func (m *ProcessManager) Unschedule(p *schedulable.Process, prev schedulable.State) error {
	if err := p.SetState(schedulable.Sync, schedulable.Blocked); err != nil {
		return err
	}
	m.mu.Lock()
	m.stateOrder(prev).remove(p.Name())
	m.stateOrder(schedulable.Sync).insert(p.Name(), trivialLess)
	m.mu.Unlock()
	return nil
}

// SyncContinue is a no-op for processes: they carry no next_awm to clear.
func (m *ProcessManager) SyncContinue(*schedulable.Process) error { return nil }

// SyncCommit promotes p out of Sync into Running.
func (m *ProcessManager) SyncCommit(p *schedulable.Process) error {
	return m.transition(p, schedulable.Running, schedulable.None)
}

// SyncAbort returns p from Sync back to Ready.
func (m *ProcessManager) SyncAbort(p *schedulable.Process) error {
	return m.transition(p, schedulable.Ready, schedulable.None)
}

func (m *ProcessManager) transition(p *schedulable.Process, next schedulable.State, nextSync schedulable.SyncState) error {
	prev := p.State()
	if err := p.SetState(next, nextSync); err != nil {
		return err
	}
	m.mu.Lock()
	m.stateOrder(prev).remove(p.Name())
	m.stateOrder(next).insert(p.Name(), trivialLess)
	m.mu.Unlock()
	return nil
}
