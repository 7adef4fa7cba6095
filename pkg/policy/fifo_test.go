package policy

import (
	"testing"

	"github.com/edgefabric/rtrm/pkg/accounter"
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

func TestFIFOSchedulesReadyApplication(t *testing.T) {
	tr := rtree.New()
	p0 := mustPath(t, "sys0.cpu0.pe0")
	p1 := mustPath(t, "sys0.cpu0.pe1")
	require.NoError(t, tr.Register(p0, "", 100))
	require.NoError(t, tr.Register(p1, "", 100))
	acc := accounter.New(tr)

	apps := workload.NewApplicationManager(acc)
	procs := workload.NewProcessManager(acc)

	app := schedulable.NewApplication("app1", "foo", 1, 0, "foo.recipe")
	awm := types.NewAWM(0, "app1", 1.0, []types.ResourceRequest{
		{PathTemplate: mustPath(t, "sys0.cpu0.pe"), Amount: 100, Policy: types.Sequential},
	})
	app.AddAWM(awm)
	require.NoError(t, apps.CreateExc(app))
	require.NoError(t, apps.EnableExc(app.UID())) // New -> Ready

	view, err := acc.GetView()
	require.NoError(t, err)

	f := NewFIFO()
	result, err := f.Schedule(SystemView{Accounter: acc, Apps: apps, Procs: procs, View: view})
	require.NoError(t, err)
	assert.Equal(t, view, result)
	assert.Equal(t, schedulable.Sync, app.State())
}
