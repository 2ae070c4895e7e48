package opsmodel

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampMarshalUnmarshalRoundTrip(t *testing.T) {
	in := time.Date(2024, 3, 14, 21, 30, 0, 0, time.FixedZone("CET", 3600))
	ts := NewTimestamp(in)

	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-14T20:30:00Z"`, string(data))

	var out Timestamp
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out.Time().Equal(in.UTC()))
}

func TestTaskLabelMarshalsSingleAsString(t *testing.T) {
	data, err := json.Marshal(TaskLabel{Single: "slewing"})
	require.NoError(t, err)
	assert.Equal(t, `"slewing"`, string(data))
}

func TestTaskLabelMarshalsGroupAsArray(t *testing.T) {
	data, err := json.Marshal(TaskLabel{Group: []string{"exposing", "guiding"}})
	require.NoError(t, err)
	assert.Equal(t, `["exposing","guiding"]`, string(data))
}

func TestCommandStatusMessages(t *testing.T) {
	assert.Equal(t, "succeeded", Succeeded.Message())
	assert.Equal(t, "dome must be closed before switching to manual", DomeNotClosed.Message())
	assert.Equal(t, "communication error talking to backend", CommunicationError.Message())
	assert.Equal(t, "unknown status", CommandStatus(999).Message())
}

func TestNewResultFillsMessageFromCode(t *testing.T) {
	r := NewResult(EnvironmentNotSafe)
	assert.Equal(t, EnvironmentNotSafe, r.Code)
	assert.Equal(t, "environment conditions are not safe", r.Message)
}

func TestOperationsModeAndDomeStatusStringers(t *testing.T) {
	assert.Equal(t, "Automatic", ModeAutomatic.String())
	assert.Equal(t, "Unknown", OperationsMode(99).String())
	assert.Equal(t, "Moving", DomeMoving.String())
	assert.Equal(t, "Unknown", DomeStatus(99).String())
	assert.Equal(t, "Pending", ActionPending.String())
}

func TestTelescopeStateMarshalNilScheduleBecomesEmptyArray(t *testing.T) {
	state := TelescopeState{Mode: ModeAutomatic, RequestedMode: ModeAutomatic}
	data, err := json.Marshal(state)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	schedule, ok := decoded["schedule"].([]interface{})
	require.True(t, ok)
	assert.Empty(t, schedule)
}
