// Package agent wires the agent connection to the workflow orchestrator and the catalog client.
// it decodes every inbound frame and routes it; the orchestrator and catalog never see raw frames.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/grayhound-dev/grayhound/pkg/catalog"
	"github.com/grayhound-dev/grayhound/pkg/channel"
	"github.com/grayhound-dev/grayhound/pkg/protocol"
	"github.com/grayhound-dev/grayhound/pkg/status"
	"github.com/grayhound-dev/grayhound/pkg/workflow"
)

// DefaultURL is the agent's default listen address.
const DefaultURL = "ws://localhost:8765"

// Config holds client configuration.
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// Client owns the current connection and routes its events.
type Client struct {
	cfg     Config
	orch    *workflow.Orchestrator
	catalog *catalog.Catalog

	mu   sync.Mutex
	conn *channel.Conn
}

// New makes a client. nothing is dialled until Connect.
func New(cfg Config, orch *workflow.Orchestrator, cat *catalog.Catalog) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	return &Client{cfg: cfg, orch: orch, catalog: cat}
}

// Connect dials the agent and attaches the connection to the orchestrator and catalog.
// an already open connection is kept.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && c.conn.Ready() {
		return nil
	}
	return c.dial(ctx)
}

// Reconnect drops the current connection, if any, and dials a fresh one.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			lgr.Printf("[WARN] failed to close previous connection: %v", err)
		}
		c.conn = nil
	}
	return c.dial(ctx)
}

// Retry starts a fresh run after a failure, reconnecting first when the connection is gone.
func (c *Client) Retry(ctx context.Context, minRisk int) error {
	if !c.Ready() {
		if err := c.Reconnect(ctx); err != nil {
			return fmt.Errorf("retry: %w", err)
		}
	}
	if err := c.orch.StartScan(minRisk); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	return nil
}

// Ready reports whether the current connection is open.
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.conn.Ready()
}

// Close releases the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return fmt.Errorf("close agent connection: %w", err)
	}
	return nil
}

// dial makes a new connection. must be called with the lock held.
func (c *Client) dial(ctx context.Context) error {
	conn := channel.New(c.cfg.URL, &router{c: c},
		channel.WithHandshakeTimeout(c.cfg.HandshakeTimeout), channel.WithWriteTimeout(c.cfg.WriteTimeout))
	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("connect agent: %w", err)
	}
	c.conn = conn
	c.orch.Attach(conn)
	if c.catalog != nil {
		c.catalog.Attach(conn)
	}
	return nil
}

// router is the channel.Handler of one connection.
type router struct {
	c *Client
}

func (r *router) OnOpen() {
	lgr.Printf("[DEBUG] connected to agent %s", r.c.cfg.URL)
}

// OnMessage decodes a frame and routes it: catalog listings to the catalog, errors to the
// catalog while it waits for an answer and no run is in flight, everything else to the orchestrator.
func (r *router) OnMessage(frame []byte) {
	ev := protocol.Decode(frame)
	if ev.Type == protocol.EventRaw {
		lgr.Printf("[DEBUG] raw agent frame: %s", ev.Text)
	}

	cat := r.c.catalog
	switch {
	case ev.Type == protocol.EventDBList && cat != nil:
		cat.Handle(ev)
		return
	case ev.Type == protocol.EventDBList:
		lgr.Printf("[DEBUG] catalog listing ignored, no catalog client")
		return
	case ev.Type == protocol.EventError && cat != nil && cat.Pending() && r.c.orch.State() == status.StateIdle:
		lgr.Printf("[WARN] catalog request failed: %s", ev.Text)
		cat.Handle(ev)
		return
	}
	r.c.orch.HandleEvent(ev)
}

func (r *router) OnError(err error) {
	lgr.Printf("[WARN] agent connection error: %v", err)
	r.c.orch.ChannelFailed(err)
}

func (r *router) OnClose(code int, text string) {
	lgr.Printf("[WARN] agent closed connection: %d %s", code, text)
	msg := fmt.Sprintf("connection closed by agent (code %d)", code)
	if text != "" {
		msg += ": " + text
	}
	r.c.orch.ChannelFailed(errors.New(msg))
}
