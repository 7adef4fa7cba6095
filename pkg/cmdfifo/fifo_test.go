package cmdfifo

import (
	"testing"

	"github.com/edgefabric/rtrm/pkg/accounter"
	"github.com/edgefabric/rtrm/pkg/rtree"
	"github.com/edgefabric/rtrm/pkg/types"
	"github.com/edgefabric/rtrm/pkg/workload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitArgvHandlesQuotedWords(t *testing.T) {
	argv, err := splitArgv(`bq.prm.setsched -n"my app" -c4`)
	require.NoError(t, err)
	assert.Equal(t, []string{"bq.prm.setsched", "-nmy app", "-c4"}, argv)
}

func TestSplitArgvRejectsUnterminatedQuote(t *testing.T) {
	_, err := splitArgv(`bq.prm.add "unterminated`)
	assert.Error(t, err)
}

func newFixture(t *testing.T) (*Dispatcher, *workload.ProcessManager) {
	t.Helper()
	tr := rtree.New()
	p, err := types.ParsePath("sys0.cpu0.pe0")
	require.NoError(t, err)
	require.NoError(t, tr.Register(p, "", 100))
	acc := accounter.New(tr)
	apps := workload.NewApplicationManager(acc)
	procs := workload.NewProcessManager(acc)

	d := New(t.TempDir() + "/cmds")
	for _, cmd := range BuildCommands(Handlers{Apps: apps, Procs: procs, Tree: tr}) {
		d.Register(cmd)
	}
	return d, procs
}

func TestDispatcherRunsPrmAddAndRemove(t *testing.T) {
	d, procs := newFixture(t)

	d.Task("bq.prm.add worker-1")
	assert.True(t, procs.IsManaged("worker-1"))

	d.Task("bq.prm.remove worker-1")
	assert.False(t, procs.IsManaged("worker-1"))
}

func TestDispatcherRunsSetSched(t *testing.T) {
	d, procs := newFixture(t)
	d.Task("bq.prm.add worker-1")

	d.Task("bq.prm.setsched -nworker-1 -c4 -a1 -m512")

	p, ok := procs.Get("worker-1")
	require.True(t, ok)
	assert.EqualValues(t, 4, p.CPUCores)
	assert.EqualValues(t, 1, p.AccelCores)
	assert.EqualValues(t, 512, p.MemoryMB)
}

func TestDispatcherIgnoresUnknownCommand(t *testing.T) {
	d, _ := newFixture(t)
	d.Task("bq.rm.not_a_real_command")
}
