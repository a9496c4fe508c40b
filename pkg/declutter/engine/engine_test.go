package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/declutter/pkg/daemon/store"
	"github.com/jamesainslie/declutter/pkg/declutter/manifest"
	"github.com/jamesainslie/declutter/pkg/declutter/scheduler"
	"github.com/jamesainslie/declutter/pkg/declutter/settings"
	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

type fakeTabs struct {
	mu         sync.Mutex
	tabs       []types.Tab
	closeCalls [][]types.TabID
	listErr    error
	closeErr   error
}

func (f *fakeTabs) Tabs(context.Context) ([]types.Tab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]types.Tab(nil), f.tabs...), nil
}

func (f *fakeTabs) Close(_ context.Context, ids []types.TabID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls = append(f.closeCalls, append([]types.TabID(nil), ids...))
	if f.closeErr != nil {
		return f.closeErr
	}
	gone := make(map[types.TabID]bool, len(ids))
	for _, id := range ids {
		gone[id] = true
	}
	kept := f.tabs[:0]
	for _, tab := range f.tabs {
		if !gone[tab.ID] {
			kept = append(kept, tab)
		}
	}
	f.tabs = kept
	return nil
}

type fakeReview struct {
	mu    sync.Mutex
	opens []bool
}

func (f *fakeReview) OpenReview(_ context.Context, focus bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens = append(f.opens, focus)
	return nil
}

type fakeAlarms struct {
	mu    sync.Mutex
	armed map[string]time.Duration
	calls int
}

func (f *fakeAlarms) Arm(name string, period time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.armed == nil {
		f.armed = make(map[string]time.Duration)
	}
	f.armed[name] = period
	f.calls++
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []types.Event
}

func (n *recordingNotifier) Notify(ev types.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) kinds() []types.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]types.EventKind, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Kind)
	}
	return out
}

type closeRecord struct {
	reason manifest.Reason
	ids    []types.TabID
}

type fakeHistory struct {
	mu      sync.Mutex
	records []closeRecord
	err     error
}

func (f *fakeHistory) LogClose(reason manifest.Reason, closed []types.Candidate) (*manifest.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.records = append(f.records, closeRecord{reason: reason, ids: types.CandidateIDs(closed)})
	return &manifest.Entry{Reason: reason}, nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	engine   *Engine
	records  *store.Store
	tabs     *fakeTabs
	review   *fakeReview
	alarms   *fakeAlarms
	notifier *recordingNotifier
	clock    *fakeClock
}

func newHarness(t *testing.T, tabs ...types.Tab) *harness {
	t.Helper()

	records, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = records.Close() })

	h := &harness{
		records:  records,
		tabs:     &fakeTabs{tabs: tabs},
		review:   &fakeReview{},
		alarms:   &fakeAlarms{},
		notifier: &recordingNotifier{},
		clock:    &fakeClock{t: time.UnixMilli(1_700_000_000_000)},
	}

	h.engine, err = New(Config{
		Records:  records,
		Defaults: settings.Defaults(),
		Tabs:     h.tabs,
		Review:   h.review,
		Alarms:   h.alarms,
		Notifier: h.notifier,
		Now:      h.clock.Now,
	})
	require.NoError(t, err)
	return h
}

// touchAgo records activity for id that happened ago before the current time.
func (h *harness) touchAgo(t *testing.T, id types.TabID, ago time.Duration) {
	t.Helper()
	h.clock.Advance(-ago)
	require.NoError(t, h.engine.OnTabActivated(id))
	h.clock.Advance(ago)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	records, err := store.OpenInMemory()
	require.NoError(t, err)
	defer records.Close()

	_, err = New(Config{Records: records})
	assert.Error(t, err)

	_, err = New(Config{Tabs: &fakeTabs{}, Review: &fakeReview{}, Alarms: &fakeAlarms{}})
	assert.Error(t, err)
}

func TestInstall_PersistsDefaultsAndArms(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.records.IsEmpty())

	require.NoError(t, h.engine.Install())

	assert.True(t, h.records.Has(store.KeySettings))
	assert.Equal(t, 5*time.Minute, h.alarms.armed[scheduler.SweepAlarm])
}

func TestStart_ArmsFromStoredPeriod(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.UpdateSettings(map[string]any{"alarmPeriodMinutes": 0.5})
	require.NoError(t, err)

	require.NoError(t, h.engine.Start())
	assert.Equal(t, 30*time.Second, h.alarms.armed[scheduler.SweepAlarm])
}

func TestSweep_IdleTabQueuedForReview(t *testing.T) {
	h := newHarness(t, types.Tab{ID: "A", Title: "Docs", URL: "https://example.com"})
	h.touchAgo(t, "A", 91*time.Minute)

	result, err := h.engine.Sweep(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, int64(91), result.Candidates[0].IdleMinutes)
	assert.False(t, result.AutoClosed)

	queued, err := h.engine.Queued()
	require.NoError(t, err)
	assert.Equal(t, []types.TabID{"A"}, types.CandidateIDs(queued))
	assert.Equal(t, []bool{false}, h.review.opens)
	assert.Empty(t, h.tabs.closeCalls)
	assert.Equal(t, result.At, h.engine.LastSweep().At)
}

func TestSweep_AutoApproveClosesAndPurges(t *testing.T) {
	h := newHarness(t,
		types.Tab{ID: "A", URL: "https://a.example"},
		types.Tab{ID: "B", URL: "https://b.example"},
		types.Tab{ID: "C", URL: "https://c.example"},
	)
	_, err := h.engine.UpdateSettings(map[string]any{"autoApprove": true})
	require.NoError(t, err)

	// A stale batch from an earlier manual sweep stays untouched.
	require.NoError(t, h.engine.queue.Replace([]types.Candidate{{ID: "old"}}))

	h.touchAgo(t, "A", 120*time.Minute)
	h.touchAgo(t, "B", 100*time.Minute)
	h.touchAgo(t, "C", 5*time.Minute)
	_, err = h.engine.ToggleImportant("A")
	require.NoError(t, err)
	_, err = h.engine.ToggleImportant("A")
	require.NoError(t, err)

	result, err := h.engine.Sweep(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, result.AutoClosed)

	require.Len(t, h.tabs.closeCalls, 1)
	assert.Equal(t, []types.TabID{"A", "B"}, h.tabs.closeCalls[0])

	snap, err := h.engine.Snapshot()
	require.NoError(t, err)
	assert.NotContains(t, snap.LastActive, types.TabID("A"))
	assert.NotContains(t, snap.LastActive, types.TabID("B"))
	assert.Contains(t, snap.LastActive, types.TabID("C"))

	queued, err := h.engine.Queued()
	require.NoError(t, err)
	assert.Equal(t, []types.TabID{"old"}, types.CandidateIDs(queued))
	assert.Empty(t, h.review.opens)
	assert.Contains(t, h.notifier.kinds(), types.EventTabsClosed)
}

func TestSweep_ManualThenCloseReview(t *testing.T) {
	h := newHarness(t,
		types.Tab{ID: "1", URL: "https://one.example"},
		types.Tab{ID: "2", URL: "https://two.example"},
		types.Tab{ID: "3", URL: "https://three.example"},
		types.Tab{ID: "4", URL: "https://four.example", Active: true},
	)
	for _, id := range []types.TabID{"1", "2", "3", "4"} {
		h.touchAgo(t, id, 3*time.Hour)
	}

	result, err := h.engine.Sweep(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 3)

	resp := h.engine.Handle(context.Background(), Request{Type: CmdCloseReviewCandidates})
	require.True(t, resp.OK, resp.Error)
	require.NotNil(t, resp.Closed)
	assert.Equal(t, 3, *resp.Closed)

	require.Len(t, h.tabs.closeCalls, 1)
	assert.Equal(t, []types.TabID{"1", "2", "3"}, h.tabs.closeCalls[0])

	queued, err := h.engine.Queued()
	require.NoError(t, err)
	assert.Empty(t, queued)

	snap, err := h.engine.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, map[types.TabID]int64{"4": h.clock.Now().Add(-3 * time.Hour).UnixMilli()}, snap.LastActive)
}

func TestSweep_NothingFoundClearsQueue(t *testing.T) {
	h := newHarness(t, types.Tab{ID: "A"})
	h.touchAgo(t, "A", time.Minute)
	require.NoError(t, h.engine.queue.Replace([]types.Candidate{{ID: "stale"}}))

	result, err := h.engine.Sweep(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, result.Candidates)

	queued, err := h.engine.Queued()
	require.NoError(t, err)
	assert.Empty(t, queued)
	assert.Empty(t, h.review.opens)
}

func TestSweep_DirectoryFailure(t *testing.T) {
	h := newHarness(t)
	h.tabs.listErr = errors.New("browser gone")

	_, err := h.engine.Sweep(context.Background(), false)
	assert.ErrorContains(t, err, "browser gone")
}

func TestSweep_CloseFailureKeepsTracking(t *testing.T) {
	h := newHarness(t, types.Tab{ID: "A"})
	_, err := h.engine.UpdateSettings(map[string]any{"autoApprove": true})
	require.NoError(t, err)
	h.touchAgo(t, "A", 2*time.Hour)
	h.tabs.closeErr = errors.New("cannot close")

	_, err = h.engine.Sweep(context.Background(), false)
	require.Error(t, err)

	snap, err := h.engine.Snapshot()
	require.NoError(t, err)
	assert.Contains(t, snap.LastActive, types.TabID("A"))
}

func TestCloseReview_EmptyQueueSkipsDirectory(t *testing.T) {
	h := newHarness(t)

	closed, err := h.engine.CloseReview(context.Background())
	require.NoError(t, err)
	assert.Zero(t, closed)
	assert.Empty(t, h.tabs.closeCalls)
}

func TestClearReview(t *testing.T) {
	h := newHarness(t, types.Tab{ID: "A"})
	require.NoError(t, h.engine.queue.Replace([]types.Candidate{{ID: "A"}}))

	require.NoError(t, h.engine.ClearReview())
	require.NoError(t, h.engine.ClearReview())

	queued, err := h.engine.Queued()
	require.NoError(t, err)
	assert.Empty(t, queued)
	assert.Empty(t, h.tabs.closeCalls)
	assert.Len(t, h.tabs.tabs, 1)
}

func TestRunNow_FocusesReviewEvenWhenNothingFound(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.engine.RunNow(context.Background()))
	assert.Equal(t, []bool{true}, h.review.opens)
}

func TestRunNow_ManualSweepOpensThenFocuses(t *testing.T) {
	h := newHarness(t, types.Tab{ID: "A"})
	h.touchAgo(t, "A", 2*time.Hour)

	require.NoError(t, h.engine.RunNow(context.Background()))
	assert.Equal(t, []bool{false, true}, h.review.opens)
}

func TestOnTabUpdated(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.engine.OnTabUpdated("A", TabChange{Status: "loading"}))
	snap, err := h.engine.Snapshot()
	require.NoError(t, err)
	assert.NotContains(t, snap.LastActive, types.TabID("A"))

	require.NoError(t, h.engine.OnTabUpdated("A", TabChange{Status: StatusComplete}))
	require.NoError(t, h.engine.OnTabUpdated("B", TabChange{URL: "https://b.example"}))
	snap, err = h.engine.Snapshot()
	require.NoError(t, err)
	assert.Contains(t, snap.LastActive, types.TabID("A"))
	assert.Contains(t, snap.LastActive, types.TabID("B"))
}

func TestOnTabRemoved_PurgesBothMaps(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.OnTabActivated("A"))
	_, err := h.engine.ToggleImportant("A")
	require.NoError(t, err)

	require.NoError(t, h.engine.OnTabRemoved("A"))
	require.NoError(t, h.engine.OnTabActivated("A"))

	snap, err := h.engine.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.LastActive)
	assert.Empty(t, snap.Important)
}

func TestOnTimerFired_OnlySweepAlarm(t *testing.T) {
	h := newHarness(t, types.Tab{ID: "A"})
	h.touchAgo(t, "A", 2*time.Hour)

	h.engine.OnTimerFired(context.Background(), "something-else")
	assert.True(t, h.engine.LastSweep().At.IsZero())

	h.engine.OnTimerFired(context.Background(), scheduler.SweepAlarm)
	assert.False(t, h.engine.LastSweep().At.IsZero())
	assert.Equal(t, []bool{false}, h.review.opens)
}

func TestSetSelector(t *testing.T) {
	h := newHarness(t)
	sel := h.engine.currentSelector()
	require.NotNil(t, sel)

	h.engine.SetSelector(nil)
	assert.Nil(t, h.engine.currentSelector())
	h.engine.SetSelector(sel)
	assert.Same(t, sel, h.engine.currentSelector())
}

func newHistoryHarness(t *testing.T, history *fakeHistory, tabs ...types.Tab) *harness {
	t.Helper()
	h := newHarness(t, tabs...)
	h.engine.history = history
	return h
}

func TestHistory_RecordsAutoClose(t *testing.T) {
	history := &fakeHistory{}
	h := newHistoryHarness(t, history, types.Tab{ID: "A"}, types.Tab{ID: "B"})
	_, err := h.engine.UpdateSettings(map[string]any{"autoApprove": true})
	require.NoError(t, err)

	h.touchAgo(t, "A", 3*time.Hour)
	h.touchAgo(t, "B", time.Minute)

	_, err = h.engine.Sweep(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, history.records, 1)
	assert.Equal(t, manifest.ReasonAuto, history.records[0].reason)
	assert.Equal(t, []types.TabID{"A"}, history.records[0].ids)
}

func TestHistory_RecordsReviewClose(t *testing.T) {
	history := &fakeHistory{}
	h := newHistoryHarness(t, history, types.Tab{ID: "1"}, types.Tab{ID: "2"})
	h.touchAgo(t, "1", 3*time.Hour)
	h.touchAgo(t, "2", 3*time.Hour)

	_, err := h.engine.Sweep(context.Background(), false)
	require.NoError(t, err)
	closed, err := h.engine.CloseReview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, closed)

	require.Len(t, history.records, 1)
	assert.Equal(t, manifest.ReasonReview, history.records[0].reason)
	assert.Equal(t, []types.TabID{"1", "2"}, history.records[0].ids)
}

func TestHistory_FailureDoesNotFailClose(t *testing.T) {
	history := &fakeHistory{err: errors.New("disk full")}
	h := newHistoryHarness(t, history, types.Tab{ID: "1"})
	h.touchAgo(t, "1", 3*time.Hour)

	_, err := h.engine.Sweep(context.Background(), false)
	require.NoError(t, err)
	closed, err := h.engine.CloseReview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, closed)
	assert.Empty(t, history.records)
}

func TestHistory_NotCalledWhenCloseFails(t *testing.T) {
	history := &fakeHistory{}
	h := newHistoryHarness(t, history, types.Tab{ID: "1"})
	h.touchAgo(t, "1", 3*time.Hour)
	_, err := h.engine.Sweep(context.Background(), false)
	require.NoError(t, err)

	h.tabs.closeErr = errors.New("tab gone")
	_, err = h.engine.CloseReview(context.Background())
	require.Error(t, err)
	assert.Empty(t, history.records)
}
