package daemon_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	declutterv1 "github.com/jamesainslie/declutter/pkg/api/declutter/v1"
	"github.com/jamesainslie/declutter/pkg/daemon"
	"github.com/jamesainslie/declutter/pkg/daemon/broadcaster"
	"github.com/jamesainslie/declutter/pkg/daemon/store"
	"github.com/jamesainslie/declutter/pkg/declutter/engine"
	"github.com/jamesainslie/declutter/pkg/declutter/scheduler"
	"github.com/jamesainslie/declutter/pkg/declutter/settings"
	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

// fakeBrowser is an in-memory tab directory and review surface.
type fakeBrowser struct {
	mu      sync.Mutex
	tabs    []types.Tab
	closed  []types.TabID
	reviews []bool
}

func (f *fakeBrowser) Tabs(context.Context) ([]types.Tab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Tab(nil), f.tabs...), nil
}

func (f *fakeBrowser) Close(_ context.Context, ids []types.TabID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, ids...)
	return nil
}

func (f *fakeBrowser) OpenReview(_ context.Context, focus bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews = append(f.reviews, focus)
	return nil
}

type testDaemon struct {
	client   declutterv1.DeclutterDaemonClient
	browser  *fakeBrowser
	sched    *scheduler.Scheduler
	events   *broadcaster.Broadcaster
	stopped  atomic.Bool
	engine   *engine.Engine
	socket   string
	shutdown chan struct{}
}

func startTestDaemon(t *testing.T, withEvents bool, tabs ...types.Tab) *testDaemon {
	t.Helper()

	// Keep the socket path short; unix socket paths are limited.
	dir, err := os.MkdirTemp("", "dcl")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	st, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	td := &testDaemon{
		browser:  &fakeBrowser{tabs: tabs},
		sched:    scheduler.New(),
		socket:   filepath.Join(dir, "d.sock"),
		shutdown: make(chan struct{}),
	}

	cfg := engine.Config{
		Records:  st,
		Defaults: settings.Defaults(),
		Tabs:     td.browser,
		Review:   td.browser,
		Alarms:   td.sched,
	}
	opts := []daemon.ServiceOption{
		daemon.WithScheduler(td.sched),
		daemon.WithBrowserStatus(func() bool { return true }),
		daemon.WithShutdown(func() {
			if td.stopped.CompareAndSwap(false, true) {
				close(td.shutdown)
			}
		}),
	}
	if withEvents {
		td.events = broadcaster.New()
		t.Cleanup(td.events.Close)
		cfg.Notifier = td.events
		opts = append(opts, daemon.WithBroadcaster(td.events))
	}

	td.engine, err = engine.New(cfg)
	require.NoError(t, err)
	require.NoError(t, td.engine.Install())

	srv, err := daemon.NewServer(daemon.Config{SocketPath: td.socket, DataDir: dir}, daemon.NewService(td.engine, opts...))
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient("unix://"+td.socket, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	td.client = declutterv1.NewDeclutterDaemonClient(conn)
	return td
}

func (td *testDaemon) command(t *testing.T, msg map[string]any) engine.Response {
	t.Helper()
	in, err := structpb.NewStruct(msg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := td.client.Command(ctx, in)
	require.NoError(t, err)

	var resp engine.Response
	require.NoError(t, declutterv1.FromStruct(out, &resp))
	return resp
}

func (td *testDaemon) tabEvent(t *testing.T, ev declutterv1.TabEventRequest) error {
	t.Helper()
	in, err := declutterv1.ToStruct(ev)
	require.NoError(t, err)
	_, err = td.client.TabEvent(context.Background(), in)
	return err
}

func TestService_UnknownCommand(t *testing.T) {
	td := startTestDaemon(t, false)

	resp := td.command(t, map[string]any{"type": "PING"})
	assert.False(t, resp.OK)
	assert.Equal(t, "Unknown message", resp.Error)
	assert.ErrorIs(t, resp.Err(), engine.ErrUnknownCommand)
}

func TestService_TabStateCommands(t *testing.T) {
	td := startTestDaemon(t, false)

	require.NoError(t, td.tabEvent(t, declutterv1.TabEventRequest{Kind: declutterv1.TabActivated, TabID: 42}))

	resp := td.command(t, map[string]any{"type": engine.CmdGetStateForTab, "tabId": 42})
	require.True(t, resp.OK)
	require.NotNil(t, resp.IsImportant)
	assert.False(t, *resp.IsImportant)
	require.NotNil(t, resp.Settings)
	assert.Equal(t, 90.0, resp.Settings.ThresholdMinutes)

	resp = td.command(t, map[string]any{"type": engine.CmdToggleImportant, "tabId": "42"})
	require.True(t, resp.OK)
	require.NotNil(t, resp.Important)
	assert.True(t, *resp.Important)

	resp = td.command(t, map[string]any{"type": engine.CmdGetStateForTab, "tabId": 42.0})
	require.NotNil(t, resp.IsImportant)
	assert.True(t, *resp.IsImportant, "numeric and string ids name the same tab")

	require.NoError(t, td.tabEvent(t, declutterv1.TabEventRequest{Kind: declutterv1.TabRemoved, TabID: "42"}))
	resp = td.command(t, map[string]any{"type": engine.CmdGetStateForTab, "tabId": "42"})
	require.NotNil(t, resp.IsImportant)
	assert.False(t, *resp.IsImportant, "removal clears the important flag")
}

func TestService_UpdateSettingsRearmsAlarm(t *testing.T) {
	td := startTestDaemon(t, false)

	resp := td.command(t, map[string]any{
		"type":  engine.CmdUpdateSettings,
		"patch": map[string]any{"alarmPeriodMinutes": 10, "thresholdMinutes": 30},
	})
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, 30.0, resp.Settings.ThresholdMinutes)
	assert.Equal(t, 10.0, resp.Settings.AlarmPeriodMinutes)

	info, ok := td.sched.Get(scheduler.SweepAlarm)
	require.True(t, ok)
	assert.Equal(t, 10*time.Minute, info.Period)

	resp = td.command(t, map[string]any{
		"type":  engine.CmdUpdateSettings,
		"patch": map[string]any{"thresholdMinutes": 0},
	})
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "invalid settings")
}

func TestService_ReviewWorkflow(t *testing.T) {
	old := time.Now().Add(-2 * time.Hour).UnixMilli()
	td := startTestDaemon(t, false,
		types.Tab{ID: "a", Title: "A", URL: "https://a.example", LastAccessed: old},
		types.Tab{ID: "b", Title: "B", URL: "https://b.example", LastAccessed: old},
		types.Tab{ID: "c", Title: "C", URL: "https://c.example", Active: true, LastAccessed: old},
	)

	resp := td.command(t, map[string]any{"type": engine.CmdRunNow})
	require.True(t, resp.OK, resp.Error)

	resp = td.command(t, map[string]any{"type": engine.CmdGetReviewCandidates})
	require.True(t, resp.OK)
	require.Len(t, resp.Candidates, 2)
	assert.Equal(t, types.TabID("a"), resp.Candidates[0].ID)
	assert.Equal(t, types.TabID("b"), resp.Candidates[1].ID)
	assert.Equal(t, int64(120), resp.Candidates[0].IdleMinutes)

	td.browser.mu.Lock()
	assert.Equal(t, []bool{false, true}, td.browser.reviews, "sweep opens in background, run-now focuses")
	td.browser.mu.Unlock()

	resp = td.command(t, map[string]any{"type": engine.CmdCloseReviewCandidates})
	require.True(t, resp.OK)
	require.NotNil(t, resp.Closed)
	assert.Equal(t, 2, *resp.Closed)

	resp = td.command(t, map[string]any{"type": engine.CmdGetReviewCandidates})
	require.NotNil(t, resp.Candidates)
	assert.Empty(t, resp.Candidates)

	resp = td.command(t, map[string]any{"type": engine.CmdCloseReviewCandidates})
	assert.Equal(t, 0, *resp.Closed)

	resp = td.command(t, map[string]any{"type": engine.CmdClearReviewCandidates})
	assert.True(t, resp.OK)
}

func TestService_TabEventValidation(t *testing.T) {
	td := startTestDaemon(t, false)

	err := td.tabEvent(t, declutterv1.TabEventRequest{Kind: declutterv1.TabActivated})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	err = td.tabEvent(t, declutterv1.TabEventRequest{Kind: "focused", TabID: "1"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	require.NoError(t, td.tabEvent(t, declutterv1.TabEventRequest{Kind: declutterv1.TabUpdated, TabID: "1", Status: "complete"}))
}

func TestService_GetDaemonStatus(t *testing.T) {
	td := startTestDaemon(t, true)
	require.NoError(t, td.tabEvent(t, declutterv1.TabEventRequest{Kind: declutterv1.TabActivated, TabID: "1"}))
	require.NoError(t, td.tabEvent(t, declutterv1.TabEventRequest{Kind: declutterv1.TabActivated, TabID: "2"}))
	td.command(t, map[string]any{"type": engine.CmdToggleImportant, "tabId": "2"})

	out, err := td.client.GetDaemonStatus(context.Background(), &emptypb.Empty{})
	require.NoError(t, err)

	var st declutterv1.DaemonStatus
	require.NoError(t, declutterv1.FromStruct(out, &st))
	assert.True(t, st.Running)
	assert.Equal(t, os.Getpid(), st.PID)
	assert.True(t, st.BrowserConnected)
	assert.Equal(t, 2, st.TrackedTabs)
	assert.Equal(t, 1, st.ImportantTabs)
	assert.Equal(t, 0, st.QueuedCandidates)
	assert.Equal(t, "5m0s", st.SweepPeriod)
	assert.True(t, st.LastSweep.IsZero())
}

func TestService_WatchEvents(t *testing.T) {
	td := startTestDaemon(t, true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	filter, err := declutterv1.ToStruct(declutterv1.WatchRequest{Kinds: []string{string(types.EventQueueCleared)}})
	require.NoError(t, err)
	stream, err := td.client.WatchEvents(ctx, filter)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return td.events.SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	td.command(t, map[string]any{"type": engine.CmdToggleImportant, "tabId": "9"})
	td.command(t, map[string]any{"type": engine.CmdClearReviewCandidates})

	msg, err := stream.Recv()
	require.NoError(t, err)

	var ev types.Event
	require.NoError(t, declutterv1.FromStruct(msg, &ev))
	assert.Equal(t, types.EventQueueCleared, ev.Kind, "other kinds are filtered out")
	assert.Equal(t, "review dismissed", ev.Detail)
}

func TestService_WatchEventsUnavailable(t *testing.T) {
	td := startTestDaemon(t, false)

	stream, err := td.client.WatchEvents(context.Background(), &structpb.Struct{})
	require.NoError(t, err)

	_, err = stream.Recv()
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestService_Shutdown(t *testing.T) {
	td := startTestDaemon(t, false)

	_, err := td.client.Shutdown(context.Background(), &emptypb.Empty{})
	require.NoError(t, err)

	select {
	case <-td.shutdown:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown callback not called")
	}
}
