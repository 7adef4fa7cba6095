package schedulable

import (
	"testing"

	"github.com/edgefabric/rtrm/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetStateRejectsSyncWithoutFlavour(t *testing.T) {
	app := NewApplication("app1", "foo", 42, 0, "foo.recipe")
	err := app.SetState(Sync, None)
	assert.Error(t, err)
}

func TestSetStateRejectsStableWithFlavour(t *testing.T) {
	app := NewApplication("app1", "foo", 42, 0, "foo.recipe")
	err := app.SetState(Ready, Starting)
	assert.Error(t, err)
}

func TestRunningPromotesNextAWM(t *testing.T) {
	app := NewApplication("app1", "foo", 42, 0, "foo.recipe")
	awm := types.NewAWM(0, "app1", 1.0, nil)
	app.SetNextAWM(awm)

	require.NoError(t, app.SetState(Sync, Starting))
	require.NoError(t, app.SetState(Running, None))

	assert.Equal(t, awm, app.CurrentAWM())
	assert.Nil(t, app.NextAWM())
	assert.EqualValues(t, 1, app.ScheduleCount())
	assert.EqualValues(t, 1, awm.SchedulingCount())
}

func TestEnteringReadyClearsBothAWMs(t *testing.T) {
	app := NewApplication("app1", "foo", 42, 0, "foo.recipe")
	awm := types.NewAWM(0, "app1", 1.0, nil)
	app.SetNextAWM(awm)
	require.NoError(t, app.SetState(Sync, Starting))
	require.NoError(t, app.SetState(Running, None))

	require.NoError(t, app.SetState(Sync, Reconf))
	require.NoError(t, app.SetState(Ready, None))
	assert.Nil(t, app.CurrentAWM())
	assert.Nil(t, app.NextAWM())
}

func TestNextSyncForStartingWithNoCurrentAWM(t *testing.T) {
	app := NewApplication("app1", "foo", 42, 0, "foo.recipe")
	candidate := types.NewAWM(0, "app1", 1.0, nil)
	assert.Equal(t, Starting, app.NextSyncFor(candidate))
}

func TestNextSyncForMigrateOnBindingChangeSameAWM(t *testing.T) {
	app := NewApplication("app1", "foo", 42, 0, "foo.recipe")

	cur := types.NewAWM(1, "app1", 1.0, nil)
	cur.AddBinding(0, types.Binding{Ref: 0, Bind: map[types.Slot]int{{Type: 3, AbstractID: 0}: 0}})
	cur.SetCurrentBinding(0)
	app.SetNextAWM(cur)
	require.NoError(t, app.SetState(Sync, Starting))
	require.NoError(t, app.SetState(Running, None))

	next := types.NewAWM(1, "app1", 1.0, nil)
	next.AddBinding(0, types.Binding{Ref: 0, Bind: map[types.Slot]int{{Type: 3, AbstractID: 0}: 1}})
	next.SetCurrentBinding(0)

	assert.Equal(t, Migrate, app.NextSyncFor(next))
}

func TestSwitchingAWMOnlyDuringSync(t *testing.T) {
	app := NewApplication("app1", "foo", 42, 0, "foo.recipe")
	cur := types.NewAWM(1, "app1", 1.0, nil)
	app.SetNextAWM(cur)
	require.NoError(t, app.SetState(Sync, Starting))
	require.NoError(t, app.SetState(Running, None))
	assert.False(t, app.SwitchingAWM(), "not in Sync, so not switching")

	next := types.NewAWM(2, "app1", 1.0, nil)
	app.SetNextAWM(next)
	require.NoError(t, app.SetState(Sync, Reconf))
	assert.True(t, app.SwitchingAWM())
}
