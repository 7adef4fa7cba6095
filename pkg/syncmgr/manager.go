// Package syncmgr implements the synchronisation manager (spec.md §4.7):
// converts a candidate view into the running system via a four-phase
// protocol, with atomic commit or rollback through the accounter.
package syncmgr

import (
	"context"
	"fmt"
	"time"

	"github.com/edgefabric/rtrm/pkg/accounter"
	"github.com/edgefabric/rtrm/pkg/agent"
	"github.com/edgefabric/rtrm/pkg/log"
	"github.com/edgefabric/rtrm/pkg/metrics"
	"github.com/edgefabric/rtrm/pkg/platform"
	"github.com/edgefabric/rtrm/pkg/rtrmerr"
	"github.com/edgefabric/rtrm/pkg/schedulable"
	"github.com/edgefabric/rtrm/pkg/types"
	"github.com/edgefabric/rtrm/pkg/workload"
)

// Outcome is the result of one sync_schedule() run.
type Outcome int

const (
	Committed Outcome = iota
	Aborted
)

func (o Outcome) String() string {
	if o == Committed {
		return "committed"
	}
	return "aborted"
}

// Queue is one state bucket the sync policy hands the manager, in the
// order it should be processed (spec.md §4.7 step 2).
type Queue struct {
	SyncState schedulable.SyncState
	AppUIDs   []string
	ProcNames []string
}

// QueuePolicy decides how Sync-state work is bucketed into queues. The
// core ships OrderedQueuePolicy; spec.md §4.7 allows a policy to split
// work across multiple queues and skip some.
type QueuePolicy interface {
	NextQueues(apps *workload.ApplicationManager, procs *workload.ProcessManager) []Queue
}

// AgentDeadline returns the per-phase deadline for a given schedulable
// (spec.md §5 "every agent RPC has a policy-supplied deadline").
type AgentDeadline func(excID string) time.Duration

// Manager drives the four-phase protocol (spec.md §4.7).
type Manager struct {
	acc      *accounter.Accounter
	apps     *workload.ApplicationManager
	procs    *workload.ProcessManager
	platform platform.Adapter
	queues   QueuePolicy
	channels func(excID string) agent.Channel
	deadline AgentDeadline

	forceSync bool
}

// Config bundles the Manager's dependencies and tunables.
type Config struct {
	Accounter   *accounter.Accounter
	Apps        *workload.ApplicationManager
	Procs       *workload.ProcessManager
	Platform    platform.Adapter
	Queues      QueuePolicy
	ChannelFor  func(excID string) agent.Channel
	Deadline    AgentDeadline
	ForceSync   bool
}

// New constructs a synchronisation manager from cfg, defaulting Queues to
// OrderedQueuePolicy and Deadline to a flat 500ms when unset.
func New(cfg Config) *Manager {
	if cfg.Queues == nil {
		cfg.Queues = OrderedQueuePolicy{}
	}
	if cfg.Deadline == nil {
		cfg.Deadline = func(string) time.Duration { return 500 * time.Millisecond }
	}
	if cfg.ChannelFor == nil {
		cfg.ChannelFor = func(string) agent.Channel { return agent.NoopChannel{} }
	}
	return &Manager{
		acc:       cfg.Accounter,
		apps:      cfg.Apps,
		procs:     cfg.Procs,
		platform:  cfg.Platform,
		queues:    cfg.Queues,
		channels:  cfg.ChannelFor,
		deadline:  cfg.Deadline,
		forceSync: cfg.ForceSync,
	}
}

// failure records which phase of which schedulable broke, used to decide
// whether the whole session must abort or the schedulable alone gets
// disabled (spec.md §4.7 step 3, §7 propagation rules).
type failure struct {
	uid   string
	fatal bool
}

// SyncSchedule runs one synchronisation session end to end (spec.md §4.7).
func (m *Manager) SyncSchedule(ctx context.Context) (Outcome, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SyncSessionDuration)

	if err := m.acc.SyncStart(); err != nil {
		metrics.SyncSessionsAbortedTotal.Inc()
		return Aborted, fmt.Errorf("sync_schedule: %w", rtrmerr.ErrSyncAborted)
	}

	var failed []failure
	queues := m.queues.NextQueues(m.apps, m.procs)

	for _, q := range queues {
		metrics.SyncTransitionsTotal.WithLabelValues(q.SyncState.String()).Add(float64(len(q.AppUIDs) + len(q.ProcNames)))
		for _, uid := range q.AppUIDs {
			app, ok := m.apps.Get(uid)
			if !ok {
				continue
			}
			if fail, fatal := m.runAppPhases(ctx, app); fail {
				failed = append(failed, failure{uid: uid, fatal: fatal})
				if fatal {
					return m.abortSession(failed)
				}
			}
		}
	}

	pit := m.procs.IterateByState(schedulable.Sync)
	for {
		p, ok := pit.Next()
		if !ok {
			break
		}
		if fail, fatal := m.runProcPhases(ctx, p); fail {
			failed = append(failed, failure{uid: p.Name(), fatal: fatal})
			if fatal {
				return m.abortSession(failed)
			}
		}
	}

	if err := m.acc.SyncCommit(); err != nil {
		return m.abortSession(failed)
	}
	return Committed, nil
}

func (m *Manager) abortSession(failed []failure) (Outcome, error) {
	_ = m.acc.SyncAbort()
	for _, f := range failed {
		if app, ok := m.apps.Get(f.uid); ok {
			_ = app.SetState(schedulable.Sync, schedulable.Disabled)
		} else if p, ok := m.procs.Get(f.uid); ok {
			_ = p.SetState(schedulable.Sync, schedulable.Disabled)
		}
	}
	metrics.SyncSessionsAbortedTotal.Inc()
	return Aborted, fmt.Errorf("sync_schedule: %w", rtrmerr.ErrSyncAborted)
}

// skipApp skips an application that is disabled or whose sync flavour is
// None. No policy-set do-not-sync mark is checked, and reshuffle-only
// transitions are not detected.
func skipApp(app *schedulable.Application) bool {
	if app.IsDisabled() {
		return true
	}
	return app.SyncState() == schedulable.None
}

// runAppPhases drives one application through the four-phase protocol
// (spec.md §4.7). The default variant runs SyncPlatform, then PreChange,
// then PostChange (DoChange and the settle sleep are force_sync-only,
// per §4.7's "DoChange ... optional when force_sync strategy is
// disabled"). The force_sync variant runs PreChange, sleeps an estimated
// settle time, then SyncChange, SyncPlatform, DoChange, PostChange.
func (m *Manager) runAppPhases(ctx context.Context, app *schedulable.Application) (failed, fatal bool) {
	if skipApp(app) {
		return false, false
	}
	uid := app.UID()
	ch := m.channels(uid)
	deadline := m.deadline(uid)

	preChangeLatency := func() (time.Duration, error) {
		cctx, cancel := context.WithTimeout(ctx, deadline)
		defer cancel()
		return ch.PreChangeLatency(cctx, uid)
	}
	syncChange := func() error {
		cctx, cancel := context.WithTimeout(ctx, deadline)
		defer cancel()
		return ch.SyncChange(cctx, uid)
	}
	syncPlatform := func() error {
		next := app.NextAWM()
		if next == nil {
			return nil
		}
		binding, _ := next.CurrentBinding()
		return m.platform.MapResources(ctx, uid, binding)
	}
	doChange := func() error {
		cctx, cancel := context.WithTimeout(ctx, deadline)
		defer cancel()
		return ch.DoChange(cctx, uid)
	}

	var platformFailed bool
	if m.forceSync {
		latency, err := preChangeLatency()
		if err != nil {
			m.disableOnMiss(app)
			return true, false
		}
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			m.disableOnMiss(app)
			return true, false
		}
		if err := syncChange(); err != nil {
			m.disableOnMiss(app)
			return true, false
		}
		if err := syncPlatform(); err != nil {
			platformFailed = true
		}
		if !platformFailed {
			if err := doChange(); err != nil {
				m.disableOnMiss(app)
				return true, false
			}
		}
	} else {
		if err := syncPlatform(); err != nil {
			platformFailed = true
		}
		if _, err := preChangeLatency(); err != nil {
			m.disableOnMiss(app)
			return true, false
		}
	}

	if err := m.postChangeApp(app); err != nil {
		return true, true
	}
	return platformFailed, false
}

func (m *Manager) postChangeApp(app *schedulable.Application) error {
	next := app.NextAWM()
	var reqs []types.ResourceRequest
	if next != nil {
		reqs = next.Requests
	}
	if _, err := m.acc.SyncAcquire(app.UID(), reqs); err != nil {
		_ = m.apps.SyncAbort(app)
		return fmt.Errorf("post_change %s: %w", app.UID(), rtrmerr.ErrSyncAborted)
	}
	return m.apps.SyncCommit(app)
}

func (m *Manager) runProcPhases(ctx context.Context, p *schedulable.Process) (failed, fatal bool) {
	if p.IsDisabled() || p.SyncState() == schedulable.None {
		return false, false
	}
	uid := p.Name()
	ch := m.channels(uid)
	deadline := m.deadline(uid)

	cctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()
	if _, err := ch.PreChangeLatency(cctx, uid); err != nil {
		m.disableProcOnMiss(p)
		return true, false
	}

	reqs := workload.ProcessRequests(p)
	if _, err := m.acc.SyncAcquire(p.Name(), reqs); err != nil {
		_ = m.procs.SyncAbort(p)
		return true, true
	}
	if err := m.procs.SyncCommit(p); err != nil {
		return true, true
	}
	return false, false
}

func (m *Manager) disableOnMiss(app *schedulable.Application) {
	metrics.SyncMissTotal.Inc()
	log.WithDisabledSchedulable(app.UID()).Warn().Str("component", "syncmgr").Msg("agent miss during sync, disabling")
	_ = m.apps.DisableExc(app.UID())
}

func (m *Manager) disableProcOnMiss(p *schedulable.Process) {
	metrics.SyncMissTotal.Inc()
	log.WithDisabledSchedulable(p.Name()).Warn().Str("component", "syncmgr").Msg("agent miss during sync, disabling")
	_ = p.SetState(schedulable.Sync, schedulable.Disabled)
}
