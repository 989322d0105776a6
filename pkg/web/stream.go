package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tmaxmax/go-sse"
)

// replaySize is the number of SSE messages kept for clients reconnecting with Last-Event-ID.
const replaySize = 1024

// Stream publishes dashboard events to SSE clients and keeps the history for late joiners.
// snapshot events are streamed and replayed but not kept in the history buffer.
type Stream struct {
	sse    *sse.Server
	buffer *Buffer
}

// NewStream creates a stream with a history buffer of bufferSize events (0 means default).
func NewStream(bufferSize int) (*Stream, error) {
	replayer, err := sse.NewFiniteReplayer(replaySize, true)
	if err != nil {
		return nil, fmt.Errorf("create replayer: %w", err)
	}
	return &Stream{
		sse:    &sse.Server{Provider: &sse.Joe{Replayer: replayer}},
		buffer: NewBuffer(bufferSize),
	}, nil
}

// Publish records the event and sends it to all connected clients.
func (s *Stream) Publish(e Event) error {
	if e.Type != EventTypeSnapshot {
		s.buffer.Add(e)
	}

	data, err := e.JSON()
	if err != nil {
		return err
	}
	msg := &sse.Message{Type: sse.Type(string(e.Type))}
	msg.AppendData(string(data))
	if err := s.sse.Publish(msg); err != nil {
		return fmt.Errorf("publish %s event: %w", e.Type, err)
	}
	return nil
}

// Buffer returns the history buffer.
func (s *Stream) Buffer() *Buffer {
	return s.buffer
}

// ServeHTTP serves the SSE endpoint.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering
	s.sse.ServeHTTP(w, r)
}

// Shutdown disconnects all clients; later publishes fail.
func (s *Stream) Shutdown(ctx context.Context) error {
	if err := s.sse.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown stream: %w", err)
	}
	return nil
}
