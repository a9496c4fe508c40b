package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/declutter/pkg/daemon/store"
	"github.com/jamesainslie/declutter/pkg/declutter/scheduler"
	"github.com/jamesainslie/declutter/pkg/declutter/settings"
	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

func TestHandle_UnknownMessage(t *testing.T) {
	h := newHarness(t)

	for _, typ := range []string{"", "NOPE", "run_now"} {
		resp := h.engine.Handle(context.Background(), Request{Type: typ})
		assert.False(t, resp.OK)
		assert.Equal(t, "Unknown message", resp.Error)
		assert.True(t, errors.Is(resp.Err(), ErrUnknownCommand))
	}
}

func TestHandle_GetStateForTab(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.ToggleImportant("42")
	require.NoError(t, err)

	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{"type":"GET_STATE_FOR_TAB","tabId":42}`), &req))
	assert.Equal(t, types.TabID("42"), req.TabID)

	resp := h.engine.Handle(context.Background(), req)
	require.True(t, resp.OK)
	require.NotNil(t, resp.IsImportant)
	assert.True(t, *resp.IsImportant)
	require.NotNil(t, resp.Settings)
	assert.Equal(t, float64(settings.DefaultThresholdMinutes), resp.Settings.ThresholdMinutes)

	resp = h.engine.Handle(context.Background(), Request{Type: CmdGetStateForTab})
	require.True(t, resp.OK)
	assert.False(t, *resp.IsImportant)
}

func TestHandle_ToggleImportant(t *testing.T) {
	h := newHarness(t)

	resp := h.engine.Handle(context.Background(), Request{Type: CmdToggleImportant, TabID: "7"})
	require.True(t, resp.OK)
	assert.True(t, *resp.Important)

	resp = h.engine.Handle(context.Background(), Request{Type: CmdToggleImportant, TabID: "7"})
	require.True(t, resp.OK)
	assert.False(t, *resp.Important)

	resp = h.engine.Handle(context.Background(), Request{Type: CmdToggleImportant})
	assert.False(t, resp.OK)
	assert.Equal(t, ErrMissingTabID.Error(), resp.Error)
}

func TestHandle_UpdateSettings(t *testing.T) {
	h := newHarness(t)

	resp := h.engine.Handle(context.Background(), Request{
		Type:  CmdUpdateSettings,
		Patch: map[string]any{"thresholdMinutes": 30.0, "theme": "dark"},
	})
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, 30.0, resp.Settings.ThresholdMinutes)
	assert.False(t, resp.Settings.AutoApprove)
	assert.Equal(t, 5.0, resp.Settings.AlarmPeriodMinutes)
	assert.Equal(t, "dark", resp.Settings.Extra["theme"])
	assert.Zero(t, h.alarms.calls, "threshold change must not re-arm")

	resp = h.engine.Handle(context.Background(), Request{
		Type:  CmdUpdateSettings,
		Patch: map[string]any{"alarmPeriodMinutes": 10.0},
	})
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, 1, h.alarms.calls)
	assert.Equal(t, 10*time.Minute, h.alarms.armed[scheduler.SweepAlarm])
	assert.Equal(t, 30.0, resp.Settings.ThresholdMinutes)
}

func TestHandle_UpdateSettingsRejectsInvalid(t *testing.T) {
	h := newHarness(t)

	for _, patch := range []map[string]any{
		{"thresholdMinutes": 0.5},
		{"alarmPeriodMinutes": 0.0},
		{"autoApprove": "yes"},
	} {
		resp := h.engine.Handle(context.Background(), Request{Type: CmdUpdateSettings, Patch: patch})
		assert.False(t, resp.OK, "patch %v", patch)
		assert.Contains(t, resp.Error, settings.ErrInvalidSettings.Error())
	}

	assert.False(t, h.records.Has(store.KeySettings))
	assert.Zero(t, h.alarms.calls)
}

func TestHandle_RunNow(t *testing.T) {
	h := newHarness(t)

	resp := h.engine.Handle(context.Background(), Request{Type: CmdRunNow})
	require.True(t, resp.OK)
	assert.Equal(t, []bool{true}, h.review.opens)
}

func TestHandle_ReviewCandidates(t *testing.T) {
	h := newHarness(t, types.Tab{ID: "A", Title: "Alpha"}, types.Tab{ID: "B", Title: "Beta"})

	resp := h.engine.Handle(context.Background(), Request{Type: CmdGetReviewCandidates})
	require.True(t, resp.OK)
	assert.NotNil(t, resp.Candidates)
	assert.Empty(t, resp.Candidates)
	assert.NotNil(t, resp.Settings)

	h.touchAgo(t, "A", 2*time.Hour)
	h.touchAgo(t, "B", 4*time.Hour)
	_, err := h.engine.Sweep(context.Background(), false)
	require.NoError(t, err)

	resp = h.engine.Handle(context.Background(), Request{Type: CmdGetReviewCandidates})
	require.True(t, resp.OK)
	require.Len(t, resp.Candidates, 2)
	assert.Equal(t, "Alpha", resp.Candidates[0].Title)
	assert.Equal(t, int64(240), resp.Candidates[1].IdleMinutes)

	resp = h.engine.Handle(context.Background(), Request{Type: CmdClearReviewCandidates})
	require.True(t, resp.OK)

	resp = h.engine.Handle(context.Background(), Request{Type: CmdCloseReviewCandidates})
	require.True(t, resp.OK)
	assert.Equal(t, 0, *resp.Closed)
	assert.Empty(t, h.tabs.closeCalls)
}

func TestHandle_FailureKeepsServing(t *testing.T) {
	h := newHarness(t, types.Tab{ID: "A"})
	h.tabs.listErr = errors.New("directory offline")

	resp := h.engine.Handle(context.Background(), Request{Type: CmdRunNow})
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "directory offline")

	h.tabs.listErr = nil
	resp = h.engine.Handle(context.Background(), Request{Type: CmdRunNow})
	assert.True(t, resp.OK)
}

func TestDecodeRequest(t *testing.T) {
	req := DecodeRequest(map[string]any{
		"type":  CmdUpdateSettings,
		"tabId": 12.0,
		"patch": map[string]any{"autoApprove": true},
	})
	assert.Equal(t, CmdUpdateSettings, req.Type)
	assert.Equal(t, types.TabID("12"), req.TabID)
	assert.Equal(t, true, req.Patch["autoApprove"])

	req = DecodeRequest(map[string]any{"type": 5, "tabId": []int{1}})
	assert.Empty(t, req.Type)
	assert.Empty(t, req.TabID)
	assert.Nil(t, req.Patch)
}

func TestResponseJSON(t *testing.T) {
	closed := 3
	data, err := json.Marshal(Response{OK: true, Closed: &closed})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"closed":3}`, string(data))

	data, err = json.Marshal(Response{OK: true, Candidates: []types.Candidate{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"candidates":[]}`, string(data))

	data, err = json.Marshal(fail(ErrUnknownCommand))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":false,"error":"Unknown message"}`, string(data))

	var decoded Response
	require.NoError(t, json.Unmarshal([]byte(`{"ok":true,"candidates":[],"settings":{"thresholdMinutes":20,"autoApprove":true,"alarmPeriodMinutes":1}}`), &decoded))
	assert.NotNil(t, decoded.Candidates)
	assert.Empty(t, decoded.Candidates)
	assert.Equal(t, 20.0, decoded.Settings.ThresholdMinutes)
	assert.True(t, decoded.Settings.AutoApprove)
}
