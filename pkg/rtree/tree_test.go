package rtree

import (
	"testing"

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

func TestRegisterIdempotent(t *testing.T) {
	tr := New()
	p := mustPath(t, "sys0.cpu0.pe0")

	require.NoError(t, tr.Register(p, "", 100))
	require.NoError(t, tr.Register(p, "", 100)) // idempotent, equal capacity

	err := tr.Register(p, "", 50)
	assert.Error(t, err, "re-register with a different capacity must fail")
}

func TestRegisterInvalidPath(t *testing.T) {
	tr := New()
	template := mustPath(t, "sys0.cpu.pe")
	err := tr.Register(template, "", 100)
	assert.Error(t, err)
}

func TestGetTemplateExpandsAcrossChildren(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Register(mustPath(t, "sys0.cpu0.pe0"), "", 100))
	require.NoError(t, tr.Register(mustPath(t, "sys0.cpu0.pe1"), "", 100))
	require.NoError(t, tr.Register(mustPath(t, "sys0.cpu1.pe0"), "", 100))

	nodes := tr.Get(mustPath(t, "sys0.cpu0.pe"))
	assert.Len(t, nodes, 2)

	all := tr.Get(mustPath(t, "sys0.cpu.pe"))
	assert.Len(t, all, 3)
}

func TestAggregationSumsTotalOverMatchingNodes(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Register(mustPath(t, "sys0.cpu0.pe0"), "", 100))
	require.NoError(t, tr.Register(mustPath(t, "sys0.cpu0.pe1"), "", 100))

	total := tr.Total(mustPath(t, "sys0.cpu0.pe"))
	assert.EqualValues(t, 200, total)
}

func TestUnitConversion(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Register(mustPath(t, "sys0.cpu0"), "kHz", 1800))

	nodes := tr.Get(mustPath(t, "sys0.cpu0"))
	require.Len(t, nodes, 1)
	assert.EqualValues(t, 1_800_000, nodes[0].Total)
}

func TestCreditDebitConservation(t *testing.T) {
	tr := New()
	p := mustPath(t, "sys0.cpu0.pe0")
	require.NoError(t, tr.Register(p, "", 100))

	tr.WithLock(func(ops Ops) {
		n := ops.Get(p)[0]
		ops.Credit(n, types.SystemView, "app1", 40)
	})

	used := tr.Used(p, types.SystemView)
	avail := tr.Available(p, types.SystemView, "")
	total := tr.Total(p)
	assert.EqualValues(t, 40, used)
	assert.EqualValues(t, 60, avail)
	assert.Equal(t, total, used+avail, "accounting conservation: used+available == total-reserved")

	tr.WithLock(func(ops Ops) {
		n := ops.Get(p)[0]
		ops.Debit(n, types.SystemView, "app1", 40)
	})
	assert.EqualValues(t, 0, tr.Used(p, types.SystemView))
}

func TestDropAndCloneView(t *testing.T) {
	tr := New()
	p := mustPath(t, "sys0.cpu0.pe0")
	require.NoError(t, tr.Register(p, "", 100))

	tr.WithLock(func(ops Ops) {
		n := ops.Get(p)[0]
		ops.Credit(n, types.SyncView, "app1", 30)
		ops.CloneView(types.SyncView, types.SystemView)
	})
	assert.EqualValues(t, 30, tr.Used(p, types.SystemView))

	tr.WithLock(func(ops Ops) { ops.DropView(types.SyncView) })
	assert.EqualValues(t, 0, tr.Used(p, types.SyncView))
	assert.EqualValues(t, 30, tr.Used(p, types.SystemView), "dropping SYNC_VIEW must not affect SYSTEM_VIEW")
}
