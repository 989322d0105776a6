// Package workflow provides the phase orchestrator for a grayhound cleanup run.
//
// The orchestrator is a state machine: scan, review, phase A (automated removal), phase B/C
// escalation (guided manual removal with verification, forced removal) and report generation.
// It issues agent commands through a Sender and is driven by decoded agent events and by
// user actions; it never talks to the network or the terminal directly.
package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/grayhound-dev/grayhound/pkg/protocol"
	"github.com/grayhound-dev/grayhound/pkg/status"
)

// Config holds orchestrator configuration.
type Config struct {
	Language string          // report language sent with phase and report commands
	Ignored  func() []string // names excluded from scans, may be nil
}

// Sender transmits one command to the agent.
type Sender interface {
	Send(cmd protocol.Command) error
}

// Logger provides logging functionality.
type Logger interface {
	SetState(state status.State)
	Print(format string, args ...any)
	PrintRaw(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// transition is a recorded state change, delivered to listeners after the lock is released.
type transition struct {
	old, cur status.State
}

// Orchestrator runs the cleanup workflow. all methods are safe for concurrent use;
// agent events and user actions are applied one at a time.
type Orchestrator struct {
	cfg Config
	log Logger

	fireMu sync.Mutex // serialises operations so listeners observe transitions in order
	mu     sync.Mutex // guards everything below

	sender    Sender
	confirmer Confirmer
	state     status.State
	sess      *Session

	pending []transition
	dirty   bool

	onTransition []func(old, cur status.State)
	onChange     []func(Snapshot)
}

// New creates an orchestrator in the idle state.
func New(cfg Config, sender Sender, log Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, sender: sender, log: log, state: status.StateIdle, sess: newSession("")}
}

// Attach replaces the transport, used when a fresh connection is made for a retry.
func (o *Orchestrator) Attach(sender Sender) {
	o.mu.Lock()
	o.sender = sender
	o.mu.Unlock()
}

// SetConfirmer sets the confirmation prompt used by ForceRemove.
func (o *Orchestrator) SetConfirmer(c Confirmer) {
	o.mu.Lock()
	o.confirmer = c
	o.mu.Unlock()
}

// OnTransition registers a listener called for every state change, in order.
// listeners may call Snapshot but must not call orchestrator actions.
func (o *Orchestrator) OnTransition(fn func(old, cur status.State)) {
	o.mu.Lock()
	o.onTransition = append(o.onTransition, fn)
	o.mu.Unlock()
}

// OnChange registers a listener called with a fresh snapshot after every operation that
// changed the workflow. the same restrictions as OnTransition apply.
func (o *Orchestrator) OnChange(fn func(Snapshot)) {
	o.mu.Lock()
	o.onChange = append(o.onChange, fn)
	o.mu.Unlock()
}

// State returns the current workflow state.
func (o *Orchestrator) State() status.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Snapshot returns a deep copy of the current run for presentation.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sess.snapshot(o.state)
}

// ReportReady reports whether the report gate is open: the workflow is in escalation and every
// item phase A did not remove is resolved.
func (o *Orchestrator) ReportReady() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == status.StateEscalation && o.sess.reportReady()
}

// do runs fn under the lock and then delivers recorded transitions and the changed snapshot.
func (o *Orchestrator) do(fn func() error) error {
	o.fireMu.Lock()
	defer o.fireMu.Unlock()

	o.mu.Lock()
	err := fn()
	fired := o.pending
	o.pending = nil
	var snap *Snapshot
	if o.dirty || len(fired) > 0 {
		s := o.sess.snapshot(o.state)
		snap = &s
	}
	o.dirty = false
	onTransition := o.onTransition
	onChange := o.onChange
	o.mu.Unlock()

	for _, tr := range fired {
		for _, fn := range onTransition {
			fn(tr.old, tr.cur)
		}
	}
	if snap != nil {
		for _, fn := range onChange {
			fn(*snap)
		}
	}
	return err
}

// setState records a state change. must be called with the lock held.
func (o *Orchestrator) setState(s status.State) {
	o.dirty = true
	if o.state == s {
		return
	}
	o.pending = append(o.pending, transition{old: o.state, cur: s})
	o.state = s
	o.log.SetState(s)
}

// send transmits a command; a transport error fails the run. must be called with the lock held.
func (o *Orchestrator) send(cmd protocol.Command) error {
	if o.sender == nil {
		err := fmt.Errorf("send %s: no connection", cmd.Command)
		o.fail(err.Error())
		return err
	}
	if err := o.sender.Send(cmd); err != nil {
		o.fail(fmt.Sprintf("send %s: %v", cmd.Command, err))
		return fmt.Errorf("send %s: %w", cmd.Command, err)
	}
	return nil
}

// fail moves the run to the failed state keeping msg verbatim. must be called with the lock held.
func (o *Orchestrator) fail(msg string) {
	o.sess.err = msg
	if o.state != status.StateFailed {
		o.sess.failedIn = o.state
	}
	o.sess.verifyPending = false
	o.log.Error("%s", msg)
	o.setState(status.StateFailed)
}

// requireState returns ErrInvalidState unless the workflow is in one of the given states.
func (o *Orchestrator) requireState(allowed ...status.State) error {
	for _, s := range allowed {
		if o.state == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidState, o.state)
}

func newRunID() string {
	return uuid.NewString()
}
