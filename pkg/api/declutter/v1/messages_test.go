package declutterv1

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestToStruct_NumbersAndNesting(t *testing.T) {
	s, err := ToStruct(map[string]any{
		"type":  "UPDATE_SETTINGS",
		"tabId": 42,
		"patch": map[string]any{"thresholdMinutes": 30, "autoApprove": true},
	})
	require.NoError(t, err)

	m := s.AsMap()
	assert.Equal(t, "UPDATE_SETTINGS", m["type"])
	assert.Equal(t, 42.0, m["tabId"])
	assert.Equal(t, map[string]any{"thresholdMinutes": 30.0, "autoApprove": true}, m["patch"])
}

func TestToStruct_RejectsNonObject(t *testing.T) {
	_, err := ToStruct([]int{1, 2})
	assert.Error(t, err)
}

func TestFromStruct_Status(t *testing.T) {
	last := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s, err := ToStruct(DaemonStatus{Running: true, PID: 99, TrackedTabs: 4, LastSweep: last, SweepPeriod: "5m0s"})
	require.NoError(t, err)

	var got DaemonStatus
	require.NoError(t, FromStruct(s, &got))
	assert.True(t, got.Running)
	assert.Equal(t, 99, got.PID)
	assert.Equal(t, 4, got.TrackedTabs)
	assert.True(t, last.Equal(got.LastSweep))
	assert.Equal(t, "5m0s", got.SweepPeriod)
}

func TestFromStruct_Nil(t *testing.T) {
	var req WatchRequest
	require.NoError(t, FromStruct(nil, &req))
	assert.Empty(t, req.Kinds)
}

func TestTabEventRequest_KeepsNumericID(t *testing.T) {
	s, err := ToStruct(TabEventRequest{Kind: TabUpdated, TabID: 7, Status: "complete"})
	require.NoError(t, err)

	assert.Equal(t, structpb.NewNumberValue(7).GetNumberValue(), s.GetFields()["tabId"].GetNumberValue())

	var got TabEventRequest
	require.NoError(t, FromStruct(s, &got))
	assert.Equal(t, TabUpdated, got.Kind)
	assert.Equal(t, 7.0, got.TabID)
	assert.Empty(t, got.URL)
}
