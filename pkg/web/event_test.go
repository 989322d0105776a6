package web

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grayhound-dev/grayhound/pkg/status"
	"github.com/grayhound-dev/grayhound/pkg/workflow"
)

func TestEventConstructors(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		typ   EventType
		state status.State
		text  string
	}{
		{name: "output", event: NewOutputEvent(status.StateScanning, "scanning"), typ: EventTypeOutput, state: status.StateScanning, text: "scanning"},
		{name: "warn", event: NewWarnEvent(status.StatePhaseA, "careful"), typ: EventTypeWarn, state: status.StatePhaseA, text: "careful"},
		{name: "error", event: NewErrorEvent(status.StateFailed, "boom"), typ: EventTypeError, state: status.StateFailed, text: "boom"},
		{name: "state", event: NewStateEvent(status.StateIdle, status.StateScanning), typ: EventTypeState, state: status.StateScanning, text: "idle -> scanning"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.typ, tc.event.Type)
			assert.Equal(t, tc.state, tc.event.State)
			assert.Equal(t, tc.text, tc.event.Text)
			assert.WithinDuration(t, time.Now(), tc.event.Timestamp, time.Second)
		})
	}
}

func TestNewSnapshotEvent(t *testing.T) {
	snap := workflow.Snapshot{RunID: "run-1", State: status.StateReviewing}
	e := NewSnapshotEvent(snap)
	assert.Equal(t, EventTypeSnapshot, e.Type)
	assert.Equal(t, status.StateReviewing, e.State)
	require.NotNil(t, e.Snapshot)
	assert.Equal(t, "run-1", e.Snapshot.RunID)
}

func TestEvent_JSON(t *testing.T) {
	data, err := NewStateEvent(status.StatePhaseA, status.StateEscalation).JSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "state", decoded["type"])
	assert.Equal(t, "phase_b_escalation", decoded["state"])
	assert.Equal(t, "phase_a", decoded["from"])
	assert.NotContains(t, decoded, "snapshot")
}
