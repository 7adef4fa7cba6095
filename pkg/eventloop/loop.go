package eventloop

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/edgefabric/rtrm/pkg/log"
	"github.com/edgefabric/rtrm/pkg/metrics"
	"github.com/edgefabric/rtrm/pkg/workload"
)

// RunFunc performs one scheduler/synchronisation cycle (spec.md §4.6,
// §4.7). The loop calls it from the deferrable's goroutine, one run at a
// time: a run that fires while another is in flight waits for it to
// finish, so it must not block indefinitely.
type RunFunc func(ctx context.Context)

// Config bundles the Loop's dependencies and tunables.
type Config struct {
	Apps   *workload.ApplicationManager
	Procs  *workload.ProcessManager
	Run    RunFunc
	Period time.Duration // 0 disables periodic mode (spec.md §4.8)

	// Abort is invoked (in addition to cancelling ctx) when Abort fires.
	// Defaults to os.Exit(1), matching spec.md §4.8's "Abort short-circuits
	// to process exit"; tests override it to avoid killing the test binary.
	Abort func()
}

// Loop is the single control loop of spec.md §4.8: it reacts to
// notify_event by debouncing a run of Config.Run through one shared
// deferrable per the delay formulas below.
type Loop struct {
	ctx    context.Context
	cancel context.CancelFunc

	apps  *workload.ApplicationManager
	procs *workload.ProcessManager
	run   RunFunc
	abort func()

	def *deferrable

	mu   sync.Mutex
	done bool

	// runMu serialises runs of Config.Run.
	runMu sync.Mutex
}

// New constructs a Loop bound to ctx; cancelling ctx (or an Exit/Abort
// event) stops the loop.
func New(ctx context.Context, cfg Config) *Loop {
	ctx, cancel := context.WithCancel(ctx)
	l := &Loop{
		ctx:    ctx,
		cancel: cancel,
		apps:   cfg.Apps,
		procs:  cfg.Procs,
		run:    cfg.Run,
		abort:  cfg.Abort,
	}
	if l.abort == nil {
		l.abort = func() { os.Exit(1) }
	}
	l.def = newDeferrable(l.runOnce)
	if cfg.Period > 0 {
		l.def.SetPeriodic(cfg.Period)
	}
	return l
}

// Done returns a channel closed once the loop has stopped.
func (l *Loop) Done() <-chan struct{} { return l.ctx.Done() }

func (l *Loop) runOnce() {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	l.mu.Lock()
	stopped := l.done
	l.mu.Unlock()
	if stopped {
		return
	}
	l.run(l.ctx)
}

// NotifyEvent sets the event and (for anything but Exit/Abort) schedules a
// debounced run per the delay formula for e (spec.md §4.8).
func (l *Loop) NotifyEvent(e Event) {
	metrics.EventsNotifiedTotal.WithLabelValues(e.String()).Inc()

	switch e {
	case Exit:
		l.stop()
		return
	case Abort:
		l.stop()
		l.abort()
		return
	}

	delay := l.delayFor(e)
	log.WithComponent("eventloop").Debug().Str("event", e.String()).Dur("delay", delay).Msg("event debounced")
	l.def.Schedule(delay)
}

// delayFor computes the debounce delay for e per spec.md §4.8's formulas.
func (l *Loop) delayFor(e Event) time.Duration {
	switch e {
	case ExcStart:
		prio := 0
		if app := l.apps.HighestPrioReady(); app != nil {
			prio = app.Priority()
		}
		return time.Duration(100+100*prio) * time.Millisecond
	case ExcStop:
		readyCount := l.apps.ReadyCount() + l.procs.ReadyCount()
		return time.Duration(500-50*(readyCount%8)) * time.Millisecond
	case PlatformChange:
		return 0
	case OptRequest:
		if l.apps.ReadyCount() > 0 || l.procs.ReadyCount() > 0 {
			return 250 * time.Millisecond
		}
		return 500 * time.Millisecond
	default:
		// Usr1/Usr2 carry no spec.md delay formula; treat as an immediate
		// on-demand optimisation request.
		return 0
	}
}

func (l *Loop) stop() {
	l.mu.Lock()
	if l.done {
		l.mu.Unlock()
		return
	}
	l.done = true
	l.mu.Unlock()

	l.def.Stop()
	l.cancel()
}
