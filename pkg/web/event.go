// Package web provides the HTTP dashboard and SSE streaming of a grayhound cleanup run.
package web

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/grayhound-dev/grayhound/pkg/status"
	"github.com/grayhound-dev/grayhound/pkg/workflow"
)

// EventType represents the type of event being streamed.
type EventType string

// event type constants for SSE streaming.
const (
	EventTypeOutput   EventType = "output"   // regular output line
	EventTypeError    EventType = "error"    // error message
	EventTypeWarn     EventType = "warn"     // warning message
	EventTypeState    EventType = "state"    // workflow state transition
	EventTypeSnapshot EventType = "snapshot" // full workflow snapshot, streamed but not buffered
)

// Event represents a single event to be streamed to web clients.
type Event struct {
	Type      EventType          `json:"type"`
	State     status.State       `json:"state"`
	Text      string             `json:"text,omitempty"`
	From      status.State       `json:"from,omitempty"` // previous state, state events only
	Snapshot  *workflow.Snapshot `json:"snapshot,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// NewOutputEvent creates an output event with current timestamp.
func NewOutputEvent(state status.State, text string) Event {
	return Event{Type: EventTypeOutput, State: state, Text: text, Timestamp: time.Now()}
}

// NewErrorEvent creates an error event.
func NewErrorEvent(state status.State, text string) Event {
	return Event{Type: EventTypeError, State: state, Text: text, Timestamp: time.Now()}
}

// NewWarnEvent creates a warning event.
func NewWarnEvent(state status.State, text string) Event {
	return Event{Type: EventTypeWarn, State: state, Text: text, Timestamp: time.Now()}
}

// NewStateEvent creates a state transition event.
func NewStateEvent(from, to status.State) Event {
	return Event{Type: EventTypeState, State: to, From: from, Text: fmt.Sprintf("%s -> %s", from, to), Timestamp: time.Now()}
}

// NewSnapshotEvent creates a snapshot event.
func NewSnapshotEvent(snap workflow.Snapshot) Event {
	return Event{Type: EventTypeSnapshot, State: snap.State, Snapshot: &snap, Timestamp: time.Now()}
}

// JSON returns the event as JSON bytes for SSE streaming.
func (e Event) JSON() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}
