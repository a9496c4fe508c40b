package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/declutter/pkg/daemon/store"
	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

func newTestTracker(t *testing.T, now time.Time) *Tracker {
	t.Helper()
	records, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = records.Close() })
	return New(records, WithClock(func() time.Time { return now }))
}

func TestTouch_StampsNow(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	tr := newTestTracker(t, now)

	require.NoError(t, tr.Touch("7"))

	snap, err := tr.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, now.UnixMilli(), snap.LastActive["7"])
}

func TestToggleImportant(t *testing.T) {
	tr := newTestTracker(t, time.Now())

	on, err := tr.ToggleImportant("3")
	require.NoError(t, err)
	assert.True(t, on)

	is, err := tr.IsImportant("3")
	require.NoError(t, err)
	assert.True(t, is)

	off, err := tr.ToggleImportant("3")
	require.NoError(t, err)
	assert.False(t, off)

	is, err = tr.IsImportant("3")
	require.NoError(t, err)
	assert.False(t, is)
}

func TestForget_ClearsBothMaps(t *testing.T) {
	tr := newTestTracker(t, time.Now())

	require.NoError(t, tr.Touch("5"))
	_, err := tr.ToggleImportant("5")
	require.NoError(t, err)

	require.NoError(t, tr.Forget("5"))

	is, err := tr.IsImportant("5")
	require.NoError(t, err)
	assert.False(t, is)

	snap, err := tr.Snapshot()
	require.NoError(t, err)
	_, tracked := snap.LastActive["5"]
	assert.False(t, tracked)
}

func TestForget_UnknownIsNoop(t *testing.T) {
	tr := newTestTracker(t, time.Now())

	require.NoError(t, tr.Forget("missing"))
	require.NoError(t, tr.Forget("missing"))
	require.NoError(t, tr.ForgetAll(nil))
}

func TestForget_WinsOverLateTouch(t *testing.T) {
	tr := newTestTracker(t, time.Now())

	require.NoError(t, tr.Touch("9"))
	require.NoError(t, tr.Forget("9"))
	require.NoError(t, tr.Touch("9"))

	snap, err := tr.Snapshot()
	require.NoError(t, err)
	_, tracked := snap.LastActive["9"]
	assert.False(t, tracked, "stale touch must not resurrect a removed tab")
}

func TestForgetAll_LeavesOtherTabs(t *testing.T) {
	tr := newTestTracker(t, time.Now())

	for _, id := range []types.TabID{"1", "2", "3"} {
		require.NoError(t, tr.Touch(id))
	}
	require.NoError(t, tr.ForgetAll([]types.TabID{"1", "3"}))

	snap, err := tr.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap.LastActive, 1)
	assert.Contains(t, snap.LastActive, types.TabID("2"))
}
