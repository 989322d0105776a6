// Package channel owns the single duplex WebSocket connection to the grayhound agent.
// there is no retry or reconnection: a dropped connection ends the run, and a fresh run
// needs a new Conn.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/grayhound-dev/grayhound/pkg/protocol"
)

// ErrNotReady is returned by Send when the connection is not open.
var ErrNotReady = errors.New("channel not ready")

// ErrClosed is returned by Connect on a connection that was already used.
var ErrClosed = errors.New("channel closed")

// defaults for Options.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultReadLimit        = 32 << 20 // scan results for a large system can be several MB
)

// Handler receives connection lifecycle events. all callbacks are delivered from one goroutine,
// so inbound frames arrive in order. a local Close produces no callbacks.
type Handler interface {
	OnOpen()
	OnMessage(frame []byte)
	OnError(err error)
	OnClose(code int, text string)
}

// Options tune the connection.
type Options struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadLimit        int64
	Header           http.Header
}

// Option modifies Options.
type Option func(*Options)

// WithHandshakeTimeout sets the dial handshake timeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.HandshakeTimeout = d
		}
	}
}

// WithWriteTimeout sets the per-frame write deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.WriteTimeout = d
		}
	}
}

// WithHeader sets extra handshake headers.
func WithHeader(h http.Header) Option {
	return func(o *Options) { o.Header = h }
}

// Conn is one connection to the agent.
type Conn struct {
	url  string
	h    Handler
	opts Options

	mu     sync.Mutex // guards ws, used and closed
	ws     *websocket.Conn
	used   bool
	closed bool

	writeMu sync.Mutex // gorilla allows one concurrent writer
}

// New makes a connection for url. nothing is dialled until Connect.
func New(url string, h Handler, opts ...Option) *Conn {
	o := Options{HandshakeTimeout: DefaultHandshakeTimeout, WriteTimeout: DefaultWriteTimeout, ReadLimit: DefaultReadLimit}
	for _, opt := range opts {
		opt(&o)
	}
	return &Conn{url: url, h: h, opts: o}
}

// URL returns the agent address.
func (c *Conn) URL() string {
	return c.url
}

// Connect dials the agent once and starts delivering events to the handler.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.used || c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.used = true
	c.mu.Unlock()

	dialer := websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: c.opts.HandshakeTimeout}
	ws, resp, err := dialer.DialContext(ctx, c.url, c.opts.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.url, err)
	}
	if c.opts.ReadLimit > 0 {
		ws.SetReadLimit(c.opts.ReadLimit)
	}

	c.mu.Lock()
	if c.closed { // closed while dialling
		c.mu.Unlock()
		_ = ws.Close()
		return ErrClosed
	}
	c.ws = ws
	c.mu.Unlock()

	c.h.OnOpen()
	go c.readLoop(ws)
	return nil
}

// Ready reports whether the connection is open.
func (c *Conn) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil
}

// Send writes one command frame. fails with ErrNotReady unless the connection is open.
func (c *Conn) Send(cmd protocol.Command) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return ErrNotReady
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", cmd.Command, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.opts.WriteTimeout > 0 {
		if err := ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", cmd.Command, err)
	}
	return nil
}

// Close releases the connection. safe to call repeatedly, before Connect and from handler callbacks.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	if ws == nil {
		return nil
	}

	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.writeMu.Unlock()

	if err := ws.Close(); err != nil {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}

// readLoop delivers inbound frames until the connection ends.
func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err == nil {
			c.h.OnMessage(data)
			continue
		}

		c.mu.Lock()
		local := c.closed
		if c.ws == ws {
			c.ws = nil
		}
		c.mu.Unlock()
		if local {
			return
		}
		_ = ws.Close()

		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			c.h.OnClose(ce.Code, ce.Text)
			return
		}
		c.h.OnError(fmt.Errorf("read from %s: %w", c.url, err))
		return
	}
}
