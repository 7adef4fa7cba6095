package accounter

import (
	"testing"

	"github.com/edgefabric/rtrm/pkg/rtree"
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

func newFixture(t *testing.T) (*Accounter, types.Path) {
	t.Helper()
	tr := rtree.New()
	p := mustPath(t, "sys0.cpu0.pe0")
	require.NoError(t, tr.Register(p, "", 100))
	return New(tr), p
}

func TestBookResourcesRejectsDoubleHold(t *testing.T) {
	a, p := newFixture(t)
	reqs := []types.ResourceRequest{{PathTemplate: p, Amount: 10, Policy: types.Sequential}}

	_, err := a.BookResources("app1", reqs, types.SystemView, true)
	require.NoError(t, err)

	_, err = a.BookResources("app1", reqs, types.SystemView, true)
	assert.Error(t, err, "a second booking by the same owner on the same view must be rejected")
}

func TestBookResourcesOverbookedLeavesNoPartialState(t *testing.T) {
	a, p := newFixture(t)
	reqs := []types.ResourceRequest{{PathTemplate: p, Amount: 150, Policy: types.Sequential}}

	_, err := a.BookResources("app1", reqs, types.SystemView, true)
	require.Error(t, err)

	assert.EqualValues(t, 0, a.Tree().Used(p, types.SystemView), "a failed checked booking must not mutate the tree")
	assert.False(t, a.Holds("app1", types.SystemView))
}

func TestReleaseResourcesIsSymmetric(t *testing.T) {
	a, p := newFixture(t)
	reqs := []types.ResourceRequest{{PathTemplate: p, Amount: 40, Policy: types.Sequential}}

	_, err := a.BookResources("app1", reqs, types.SystemView, true)
	require.NoError(t, err)
	assert.EqualValues(t, 40, a.Tree().Used(p, types.SystemView))

	require.NoError(t, a.ReleaseResources("app1", types.SystemView))
	assert.EqualValues(t, 0, a.Tree().Used(p, types.SystemView))
	assert.False(t, a.Holds("app1", types.SystemView))
}

func TestSyncCommitPromotesSyncViewToSystemView(t *testing.T) {
	a, p := newFixture(t)
	require.NoError(t, a.SyncStart())

	reqs := []types.ResourceRequest{{PathTemplate: p, Amount: 25, Policy: types.Sequential}}
	_, err := a.SyncAcquire("app1", reqs)
	require.NoError(t, err)

	require.NoError(t, a.SyncCommit())
	assert.EqualValues(t, 25, a.Tree().Used(p, types.SystemView))
	assert.True(t, a.Holds("app1", types.SystemView))
}

func TestSyncAbortLeavesSystemViewUntouched(t *testing.T) {
	a, p := newFixture(t)
	reqs := []types.ResourceRequest{{PathTemplate: p, Amount: 40, Policy: types.Sequential}}
	_, err := a.BookResources("app1", reqs, types.SystemView, true)
	require.NoError(t, err)

	require.NoError(t, a.SyncStart())
	_, err = a.SyncAcquire("app2", []types.ResourceRequest{{PathTemplate: p, Amount: 50, Policy: types.Sequential}})
	require.NoError(t, err)

	require.NoError(t, a.SyncAbort())

	assert.EqualValues(t, 40, a.Tree().Used(p, types.SystemView), "SYSTEM_VIEW must be unchanged after abort")
	assert.False(t, a.Holds("app2", types.SystemView))
}

func TestSyncAcquireReplacesPriorBindingOnMigration(t *testing.T) {
	tr := rtree.New()
	src := mustPath(t, "sys0.cpu0.pe0")
	dst := mustPath(t, "sys0.cpu0.pe1")
	require.NoError(t, tr.Register(src, "", 100))
	require.NoError(t, tr.Register(dst, "", 100))
	a := New(tr)

	_, err := a.BookResources("app1", []types.ResourceRequest{{PathTemplate: src, Amount: 40, Policy: types.Sequential}}, types.SystemView, true)
	require.NoError(t, err)

	require.NoError(t, a.SyncStart())
	_, err = a.SyncAcquire("app1", []types.ResourceRequest{{PathTemplate: dst, Amount: 30, Policy: types.Sequential}})
	require.NoError(t, err)
	require.NoError(t, a.SyncCommit())

	assert.EqualValues(t, 0, a.Tree().Used(src, types.SystemView), "migrating off src must release its prior holding, not leave it stranded")
	assert.EqualValues(t, 30, a.Tree().Used(dst, types.SystemView))
}

func TestSyncAcquireReplacesPriorBindingOnReconf(t *testing.T) {
	a, p := newFixture(t)
	_, err := a.BookResources("app1", []types.ResourceRequest{{PathTemplate: p, Amount: 40, Policy: types.Sequential}}, types.SystemView, true)
	require.NoError(t, err)

	require.NoError(t, a.SyncStart())
	_, err = a.SyncAcquire("app1", []types.ResourceRequest{{PathTemplate: p, Amount: 10, Policy: types.Sequential}})
	require.NoError(t, err)
	require.NoError(t, a.SyncCommit())

	assert.EqualValues(t, 10, a.Tree().Used(p, types.SystemView), "a reconfigured binding must replace the prior amount, not add to it")
}

func TestSyncStartPreservesUnacquiredRunningHolding(t *testing.T) {
	a, p := newFixture(t)
	_, err := a.BookResources("app1", []types.ResourceRequest{{PathTemplate: p, Amount: 40, Policy: types.Sequential}}, types.SystemView, true)
	require.NoError(t, err)

	require.NoError(t, a.SyncStart())
	// app1 is never re-acquired this session (it stays Running untouched).
	require.NoError(t, a.SyncCommit())

	assert.EqualValues(t, 40, a.Tree().Used(p, types.SystemView), "an untouched Running schedulable must keep its holding across a sync session")
	assert.True(t, a.Holds("app1", types.SystemView))
}
