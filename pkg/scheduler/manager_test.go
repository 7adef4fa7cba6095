package scheduler

import (
	"testing"

	"github.com/edgefabric/rtrm/pkg/accounter"
	"github.com/edgefabric/rtrm/pkg/policy"
	"github.com/edgefabric/rtrm/pkg/rtree"
	"github.com/edgefabric/rtrm/pkg/schedulable"
	"github.com/edgefabric/rtrm/pkg/types"
	"github.com/edgefabric/rtrm/pkg/workload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPath(t *testing.T, s string) types.Path {
	t.Helper()
	p, err := types.ParsePath(s)
	require.NoError(t, err)
	return p
}

func newFixture(t *testing.T) (*Manager, *accounter.Accounter, *workload.ApplicationManager, types.Path) {
	t.Helper()
	tr := rtree.New()
	p := mustPath(t, "sys0.cpu0.pe0")
	require.NoError(t, tr.Register(p, "", 100))
	acc := accounter.New(tr)

	apps := workload.NewApplicationManager(acc)
	procs := workload.NewProcessManager(acc)
	reg := policy.NewRegistry()
	require.NoError(t, reg.Register(policy.NewFIFO()))

	return New(acc, apps, procs, reg, "fifo"), acc, apps, p
}

func TestScheduleNoOpWhenNothingReadyOrRunning(t *testing.T) {
	m, _, _, _ := newFixture(t)
	result, err := m.Schedule()
	require.NoError(t, err)
	assert.Equal(t, NoOp, result.Outcome)
}

func TestScheduleDoneMovesReadyAppIntoSync(t *testing.T) {
	m, _, apps, p := newFixture(t)
	app := schedulable.NewApplication("app1", "foo", 1, 0, "foo.recipe")
	awm := types.NewAWM(0, "app1", 1.0, []types.ResourceRequest{
		{PathTemplate: p, Amount: 50, Policy: types.Sequential},
	})
	app.AddAWM(awm)
	require.NoError(t, apps.CreateExc(app))
	require.NoError(t, apps.EnableExc(app.UID()))

	result, err := m.Schedule()
	require.NoError(t, err)
	assert.Equal(t, Done, result.Outcome)
	assert.Equal(t, schedulable.Sync, app.State())
	assert.EqualValues(t, 1, m.SchedCount())
}

// TestScheduleDoesNotLeakViewsAcrossManyCycles documents the caller
// contract: Result.View on a Done outcome is a live view the caller owns
// and must release. A caller that does so never exhausts the accounter's
// bounded view table, even across far more cycles than that table's
// capacity.
func TestScheduleDoesNotLeakViewsAcrossManyCycles(t *testing.T) {
	m, acc, apps, p := newFixture(t)
	app := schedulable.NewApplication("app1", "foo", 1, 0, "foo.recipe")
	awm := types.NewAWM(0, "app1", 1.0, []types.ResourceRequest{
		{PathTemplate: p, Amount: 50, Policy: types.Sequential},
	})
	app.AddAWM(awm)
	require.NoError(t, apps.CreateExc(app))
	require.NoError(t, apps.EnableExc(app.UID()))

	result, err := m.Schedule()
	require.NoError(t, err)
	require.Equal(t, Done, result.Outcome)
	require.NoError(t, acc.PutView(result.View))
	require.NoError(t, apps.SyncCommit(app))
	require.Equal(t, schedulable.Running, app.State())

	for i := 0; i < 100; i++ {
		result, err := m.Schedule()
		require.NoError(t, err)
		require.Equal(t, Done, result.Outcome)
		require.NoError(t, acc.PutView(result.View), "cycle %d: releasing the candidate view must always succeed when callers keep up with PutView", i)
	}
}
