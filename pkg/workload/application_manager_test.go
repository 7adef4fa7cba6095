package workload

import (
	"testing"

	"github.com/edgefabric/rtrm/pkg/accounter"
	"github.com/edgefabric/rtrm/pkg/rtree"
	"github.com/edgefabric/rtrm/pkg/schedulable"
	"github.com/edgefabric/rtrm/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPath(t *testing.T, s string) types.Path {
	t.Helper()
	p, err := types.ParsePath(s)
	require.NoError(t, err)
	return p
}

func newFixture(t *testing.T) (*ApplicationManager, *accounter.Accounter, types.Path) {
	t.Helper()
	tr := rtree.New()
	p := mustPath(t, "sys0.cpu0.pe0")
	require.NoError(t, tr.Register(p, "", 100))
	acc := accounter.New(tr)
	return NewApplicationManager(acc), acc, p
}

func TestCreateExcRejectsDuplicate(t *testing.T) {
	m, _, _ := newFixture(t)
	app := schedulable.NewApplication("app1", "foo", 1, 0, "foo.recipe")
	require.NoError(t, m.CreateExc(app))
	assert.Error(t, m.CreateExc(app))
}

func TestScheduleRequestEntersSyncStarting(t *testing.T) {
	m, acc, p := newFixture(t)
	app := schedulable.NewApplication("app1", "foo", 1, 0, "foo.recipe")
	require.NoError(t, m.CreateExc(app))

	awm := types.NewAWM(0, "app1", 1.0, []types.ResourceRequest{
		{PathTemplate: p, Amount: 40, Policy: types.Sequential},
	})
	awm.AddBinding(0, types.Binding{})

	view, err := acc.GetView()
	require.NoError(t, err)

	require.NoError(t, m.ScheduleRequest(app, awm, view, 0))
	assert.Equal(t, schedulable.Sync, app.State())
	assert.Equal(t, schedulable.Starting, app.SyncState())
}

func TestScheduleRequestBlocksOnOverbooking(t *testing.T) {
	m, acc, p := newFixture(t)
	app := schedulable.NewApplication("app1", "foo", 1, 0, "foo.recipe")
	require.NoError(t, m.CreateExc(app))

	awm := types.NewAWM(0, "app1", 1.0, []types.ResourceRequest{
		{PathTemplate: p, Amount: 500, Policy: types.Sequential},
	})
	awm.AddBinding(0, types.Binding{})

	view, err := acc.GetView()
	require.NoError(t, err)

	require.NoError(t, m.ScheduleRequest(app, awm, view, 0))
	assert.Equal(t, schedulable.Sync, app.State())
	assert.Equal(t, schedulable.Blocked, app.SyncState())
}

func TestIterateByStateRepositionsOnErase(t *testing.T) {
	m, _, _ := newFixture(t)
	a1 := schedulable.NewApplication("app1", "a1", 1, 0, "")
	a2 := schedulable.NewApplication("app2", "a2", 1, 0, "")
	a3 := schedulable.NewApplication("app3", "a3", 1, 0, "")
	require.NoError(t, m.CreateExc(a1))
	require.NoError(t, m.CreateExc(a2))
	require.NoError(t, m.CreateExc(a3))

	it := m.IterateByState(schedulable.New)
	first, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, a1, first)

	require.NoError(t, m.DestroyExc(a2.UID())) // erase the element the iterator is about to return

	second, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, a3, second, "erasing a2 must reposition the iterator past it")

	_, ok = it.Next()
	assert.False(t, ok)
}
