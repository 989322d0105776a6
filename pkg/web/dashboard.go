package web

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/grayhound-dev/grayhound/pkg/status"
	"github.com/grayhound-dev/grayhound/pkg/workflow"
)

// serverStartupTimeout is the time to wait for server startup before assuming success.
const serverStartupTimeout = 100 * time.Millisecond

// DashboardConfig holds configuration for dashboard initialization.
type DashboardConfig struct {
	BaseLog    workflow.Logger // base progress logger
	Port       int             // web server port
	AgentURL   string          // agent endpoint shown in the page
	BufferSize int             // history size, 0 means DefaultBufferSize
}

// Dashboard wires the web server, event stream and workflow listeners together.
type Dashboard struct {
	cfg    DashboardConfig
	holder *status.StateHolder
	stream *Stream
	srv    *Server
}

// NewDashboard creates a new dashboard with the given configuration.
// holder is kept in sync with workflow transitions once Follow is called.
func NewDashboard(cfg DashboardConfig, holder *status.StateHolder) *Dashboard {
	if holder == nil {
		holder = &status.StateHolder{}
	}
	return &Dashboard{cfg: cfg, holder: holder}
}

// Start creates the web server and broadcast logger, starting the server in background.
// returns the broadcast logger to use for the orchestrator, or error if server fails to start.
func (d *Dashboard) Start(ctx context.Context) (*BroadcastLogger, error) {
	stream, err := NewStream(d.cfg.BufferSize)
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}
	srv, err := NewServer(ServerConfig{Port: d.cfg.Port, AgentURL: d.cfg.AgentURL}, stream, d.holder)
	if err != nil {
		return nil, fmt.Errorf("create web server: %w", err)
	}

	srvErrCh, err := startServerAsync(ctx, srv, d.cfg.Port)
	if err != nil {
		return nil, err
	}
	d.stream, d.srv = stream, srv

	// late server errors are logged, the dashboard is supplementary to the run
	go func() {
		if srvErr := <-srvErrCh; srvErr != nil {
			lgr.Printf("[WARN] web server error during execution: %v", srvErr)
		}
	}()

	return NewBroadcastLogger(d.cfg.BaseLog, stream), nil
}

// Follow subscribes the dashboard to orchestrator transitions and snapshots.
// must be called after Start.
func (d *Dashboard) Follow(o *workflow.Orchestrator) {
	d.srv.SetSource(o)
	o.OnTransition(func(old, cur status.State) {
		d.holder.Set(cur)
		d.publish(NewStateEvent(old, cur))
	})
	o.OnChange(func(snap workflow.Snapshot) {
		d.publish(NewSnapshotEvent(snap))
	})
}

// URL returns the dashboard address.
func (d *Dashboard) URL() string {
	return fmt.Sprintf("http://localhost:%d", d.cfg.Port)
}

func (d *Dashboard) publish(e Event) {
	if err := d.stream.Publish(e); err != nil {
		lgr.Printf("[WARN] failed to publish %s event: %v", e.Type, err)
	}
}

// startServerAsync starts a web server in the background and waits briefly for startup errors.
// returns the error channel for monitoring late errors, or an error if startup fails.
func startServerAsync(ctx context.Context, srv *Server, port int) (chan error, error) {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return nil, fmt.Errorf("web server failed to start on port %d: %w", port, err)
		}
	case <-time.After(serverStartupTimeout):
	}

	return errCh, nil
}
