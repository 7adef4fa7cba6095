package eventloop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgefabric/rtrm/pkg/accounter"
	"github.com/edgefabric/rtrm/pkg/rtree"
	"github.com/edgefabric/rtrm/pkg/types"
	"github.com/edgefabric/rtrm/pkg/workload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixture(t *testing.T) (*workload.ApplicationManager, *workload.ProcessManager) {
	t.Helper()
	tr := rtree.New()
	p, err := types.ParsePath("sys0.cpu0.pe0")
	require.NoError(t, err)
	require.NoError(t, tr.Register(p, "", 100))
	acc := accounter.New(tr)
	return workload.NewApplicationManager(acc), workload.NewProcessManager(acc)
}

func TestNotifyEventPlatformChangeRunsImmediately(t *testing.T) {
	apps, procs := newFixture(t)
	var count int32
	l := New(context.Background(), Config{
		Apps:  apps,
		Procs: procs,
		Run:   func(context.Context) { atomic.AddInt32(&count, 1) },
	})

	l.NotifyEvent(PlatformChange)

	require.Eventually(t, func() bool { return atomic.LoadInt32(&count) == 1 }, time.Second, time.Millisecond)
}

func TestNotifyEventCoalescesToShorterDeadline(t *testing.T) {
	apps, procs := newFixture(t)
	var count int32
	l := New(context.Background(), Config{
		Apps:  apps,
		Procs: procs,
		Run:   func(context.Context) { atomic.AddInt32(&count, 1) },
	})

	// OptRequest with nothing ready schedules 500ms; PlatformChange right
	// after must shorten it to immediate, not queue a second run.
	l.NotifyEvent(OptRequest)
	l.NotifyEvent(PlatformChange)

	require.Eventually(t, func() bool { return atomic.LoadInt32(&count) == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&count), "a later, longer deadline must not schedule a second run")
}

func TestNotifyEventExitStopsTheLoop(t *testing.T) {
	apps, procs := newFixture(t)
	var count int32
	l := New(context.Background(), Config{
		Apps:  apps,
		Procs: procs,
		Run:   func(context.Context) { atomic.AddInt32(&count, 1) },
	})

	l.NotifyEvent(Exit)
	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("Exit must close Done()")
	}

	l.NotifyEvent(PlatformChange)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&count), "no run must fire after Exit")
}

func TestNotifyEventAbortCallsAbortFunc(t *testing.T) {
	apps, procs := newFixture(t)
	aborted := make(chan struct{})
	l := New(context.Background(), Config{
		Apps:  apps,
		Procs: procs,
		Run:   func(context.Context) {},
		Abort: func() { close(aborted) },
	})

	l.NotifyEvent(Abort)
	select {
	case <-aborted:
	case <-time.After(time.Second):
		t.Fatal("Abort must invoke the configured abort function")
	}
}
