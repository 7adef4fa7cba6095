// Package scheduler implements the scheduler manager (spec.md §4.6): the
// single entry point that drives a policy run and produces a candidate
// resource view.
package scheduler

import (
	"fmt"
	"sync"

	"github.com/edgefabric/rtrm/pkg/accounter"
	"github.com/edgefabric/rtrm/pkg/log"
	"github.com/edgefabric/rtrm/pkg/metrics"
	"github.com/edgefabric/rtrm/pkg/policy"
	"github.com/edgefabric/rtrm/pkg/rtrmerr"
	"github.com/edgefabric/rtrm/pkg/schedulable"
	"github.com/edgefabric/rtrm/pkg/types"
	"github.com/edgefabric/rtrm/pkg/workload"
)

// Outcome is the result of one Schedule() cycle.
type Outcome int

const (
	NoOp Outcome = iota
	Done
	Failed
	Delayed
)

func (o Outcome) String() string {
	switch o {
	case NoOp:
		return "noop"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Delayed:
		return "delayed"
	default:
		return "unknown"
	}
}

// Result carries the outcome of a cycle and, on Done, the view token the
// synchronisation manager should drive into the running system.
type Result struct {
	Outcome Outcome
	View    types.ViewToken
}

// Manager drives the policy named in configuration against the current
// workload registries (spec.md §4.6).
type Manager struct {
	acc      *accounter.Accounter
	apps     *workload.ApplicationManager
	procs    *workload.ProcessManager
	policies *policy.Registry

	mu         sync.Mutex
	policyName string
	schedCount uint64
}

// New creates a scheduler manager bound to the given policy by name; the
// named policy must already be registered.
func New(acc *accounter.Accounter, apps *workload.ApplicationManager, procs *workload.ProcessManager, policies *policy.Registry, policyName string) *Manager {
	return &Manager{acc: acc, apps: apps, procs: procs, policies: policies, policyName: policyName}
}

// SchedCount returns the saturating cycle counter (spec.md §4.6
// "sched_count wraps via saturating increment").
func (m *Manager) SchedCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schedCount
}

// Schedule runs one scheduling cycle (spec.md §4.6 algorithm, steps 1-6).
func (m *Manager) Schedule() (Result, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedCycleDuration)
	metrics.SchedCyclesTotal.Inc()

	if !m.apps.AnyReadyOrRunning() && !m.procs.AnyReadyOrRunning() {
		metrics.SchedCycleOutcomeTotal.WithLabelValues(NoOp.String()).Inc()
		return Result{Outcome: NoOp}, nil
	}

	m.apps.BeginScheduling()
	m.procs.BeginScheduling()
	defer func() {
		m.apps.EndScheduling()
		m.procs.EndScheduling()
	}()

	m.mu.Lock()
	m.schedCount = saturatingIncr(m.schedCount)
	m.mu.Unlock()

	p, err := m.policies.Get(m.policyName)
	if err != nil {
		metrics.SchedCycleOutcomeTotal.WithLabelValues(Failed.String()).Inc()
		return Result{Outcome: Failed}, fmt.Errorf("schedule: %w", err)
	}

	view, err := m.acc.GetView()
	if err != nil {
		metrics.SchedCycleOutcomeTotal.WithLabelValues(Failed.String()).Inc()
		return Result{Outcome: Failed}, fmt.Errorf("schedule: %w", rtrmerr.ErrPolicyFailed)
	}

	sv := policy.SystemView{Accounter: m.acc, Apps: m.apps, Procs: m.procs, View: view}
	scheduledView, schedErr := p.Schedule(sv)
	if schedErr != nil {
		_ = m.acc.PutView(view)
		if schedErr == rtrmerr.ErrPolicyDelayed {
			metrics.SchedCycleOutcomeTotal.WithLabelValues(Delayed.String()).Inc()
			return Result{Outcome: Delayed}, nil
		}
		metrics.SchedCycleOutcomeTotal.WithLabelValues(Failed.String()).Inc()
		return Result{Outcome: Failed}, fmt.Errorf("schedule: %w", rtrmerr.ErrPolicyFailed)
	}

	// Step 4: every currently Running schedulable the policy did not
	// explicitly reconfigure keeps running with next_awm cleared.
	it := m.apps.IterateByState(schedulable.Running)
	for {
		app, ok := it.Next()
		if !ok {
			break
		}
		if !app.SwitchingAWM() {
			_ = m.apps.SyncContinue(app)
		}
	}
	pit := m.procs.IterateByState(schedulable.Running)
	for {
		p, ok := pit.Next()
		if !ok {
			break
		}
		_ = m.procs.SyncContinue(p)
	}

	log.WithComponent("scheduler").Debug().Str("view", string(scheduledView)).Uint64("sched_count", m.SchedCount()).Msg("schedule cycle produced candidate view")
	metrics.SchedCycleOutcomeTotal.WithLabelValues(Done.String()).Inc()
	return Result{Outcome: Done, View: scheduledView}, nil
}

func saturatingIncr(v uint64) uint64 {
	if v == ^uint64(0) {
		return v
	}
	return v + 1
}
