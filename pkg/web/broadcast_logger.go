package web

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-pkgz/lgr"

	"github.com/grayhound-dev/grayhound/pkg/status"
	"github.com/grayhound-dev/grayhound/pkg/workflow"
)

// BroadcastLogger wraps a workflow.Logger and broadcasts events to SSE clients.
// implements the decorator pattern - all calls are forwarded to the inner logger
// while also being converted to events for web streaming. safe for concurrent use.
type BroadcastLogger struct {
	inner  workflow.Logger
	stream *Stream

	mu    sync.Mutex
	state status.State
}

// NewBroadcastLogger creates a logger that wraps inner and broadcasts to the stream.
func NewBroadcastLogger(inner workflow.Logger, stream *Stream) *BroadcastLogger {
	return &BroadcastLogger{inner: inner, stream: stream, state: status.StateIdle}
}

// SetState sets the current workflow state used to tag events.
func (b *BroadcastLogger) SetState(state status.State) {
	b.mu.Lock()
	b.state = state
	b.mu.Unlock()
	b.inner.SetState(state)
}

// Print writes a timestamped message and broadcasts it.
func (b *BroadcastLogger) Print(format string, args ...any) {
	b.inner.Print(format, args...)
	b.broadcast(NewOutputEvent(b.current(), formatText(format, args...)))
}

// PrintRaw writes without timestamp and broadcasts it, one event per non-empty line.
func (b *BroadcastLogger) PrintRaw(format string, args ...any) {
	b.inner.PrintRaw(format, args...)
	state := b.current()
	for line := range strings.SplitSeq(formatText(format, args...), "\n") {
		if strings.TrimSpace(line) != "" {
			b.broadcast(NewOutputEvent(state, line))
		}
	}
}

// Warn writes a warning and broadcasts it.
func (b *BroadcastLogger) Warn(format string, args ...any) {
	b.inner.Warn(format, args...)
	b.broadcast(NewWarnEvent(b.current(), formatText(format, args...)))
}

// Error writes an error and broadcasts it.
func (b *BroadcastLogger) Error(format string, args ...any) {
	b.inner.Error(format, args...)
	b.broadcast(NewErrorEvent(b.current(), formatText(format, args...)))
}

func (b *BroadcastLogger) current() status.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// broadcast sends an event to the stream for live streaming and replay.
// errors are logged but not propagated since logging is the primary operation.
func (b *BroadcastLogger) broadcast(e Event) {
	if err := b.stream.Publish(e); err != nil {
		lgr.Printf("[WARN] failed to broadcast event: %v", err)
	}
}

// formatText formats a string with args, like fmt.Sprintf.
func formatText(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
