package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/grayhound-dev/grayhound/pkg/status"
	"github.com/grayhound-dev/grayhound/pkg/workflow"
)

//go:embed templates
var content embed.FS

// ServerConfig holds configuration for the web server.
type ServerConfig struct {
	Port     int    // port to listen on
	AgentURL string // agent endpoint shown in the dashboard
}

// SnapshotSource provides the current workflow snapshot.
type SnapshotSource interface {
	Snapshot() workflow.Snapshot
}

// Server provides HTTP server for the real-time dashboard.
type Server struct {
	cfg    ServerConfig
	stream *Stream
	holder *status.StateHolder
	tmpl   *template.Template
	srv    *http.Server

	mu     sync.RWMutex
	source SnapshotSource
}

// NewServer creates a new web server. holder provides the state until a snapshot source is set.
func NewServer(cfg ServerConfig, stream *Stream, holder *status.StateHolder) (*Server, error) {
	tmpl, err := template.ParseFS(content, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if holder == nil {
		holder = &status.StateHolder{}
	}
	return &Server{cfg: cfg, stream: stream, holder: holder, tmpl: tmpl}, nil
}

// SetSource sets the snapshot source served by /api/state.
func (s *Server) SetSource(src SnapshotSource) {
	s.mu.Lock()
	s.source = src
	s.mu.Unlock()
}

// Stream returns the server's event stream.
func (s *Server) Stream() *Stream {
	return s.stream
}

// Handler returns the dashboard routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.Handle("/events", s.stream)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/events", s.handleEvents)
	return mux
}

// Start begins listening for HTTP requests.
// blocks until the server is stopped or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// open SSE connections never finish on their own, close them when the server shuts down
	s.srv.RegisterOnShutdown(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.stream.Shutdown(shutdownCtx); err != nil {
			lgr.Printf("[DEBUG] %v", err)
		}
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()

	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("http server: %w", err)
}

// templateData holds data for the dashboard template.
type templateData struct {
	AgentURL string
	State    status.State
}

// handleIndex serves the main dashboard page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := templateData{AgentURL: s.cfg.AgentURL, State: s.state()}
	if err := s.tmpl.Execute(w, data); err != nil {
		http.Error(w, "template execution error", http.StatusInternalServerError)
		return
	}
}

// handleState serves the current workflow snapshot as JSON.
// without a snapshot source only the state is reported.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	src := s.source
	s.mu.RUnlock()

	var payload any = map[string]status.State{"state": s.holder.Get()}
	if src != nil {
		payload = src.Snapshot()
	}
	writeJSON(w, payload)
}

// handleEvents serves buffered history, optionally filtered by ?state=.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	events := s.stream.Buffer().All()
	if st := r.URL.Query().Get("state"); st != "" {
		events = s.stream.Buffer().ByState(status.State(st))
	}
	if events == nil {
		events = []Event{}
	}
	writeJSON(w, events)
}

func (s *Server) state() status.State {
	s.mu.RLock()
	src := s.source
	s.mu.RUnlock()
	if src != nil {
		return src.Snapshot().State
	}
	return s.holder.Get()
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		lgr.Printf("[WARN] failed to encode response: %v", err)
		http.Error(w, "unable to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
