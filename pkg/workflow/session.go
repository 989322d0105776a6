package workflow

import (
	"maps"
	"slices"
	"time"

	"github.com/grayhound-dev/grayhound/pkg/protocol"
	"github.com/grayhound-dev/grayhound/pkg/registry"
	"github.com/grayhound-dev/grayhound/pkg/status"
)

// maxProgressLines limits the progress log kept per run.
const maxProgressLines = 500

// Session is the per-run state: everything a fresh scan discards.
type Session struct {
	ID      string
	Started time.Time

	reg        *registry.Registry
	status     map[string]status.PhaseStatus
	phaseA     []protocol.Outcome // phase-A results as received
	escalation []string           // identities phase A did not remove, in result order
	final      []protocol.Outcome // outcome set sent for report generation
	progress   []string
	report     string
	err        string
	failedIn   status.State // state the run was in when it failed

	verifyPending bool
}

func newSession(id string) *Session {
	return &Session{ID: id, Started: time.Now(), reg: registry.New(), status: map[string]status.PhaseStatus{}}
}

// addProgress appends a line to the progress log, dropping the oldest lines over the limit.
func (s *Session) addProgress(line string) {
	s.progress = append(s.progress, line)
	if over := len(s.progress) - maxProgressLines; over > 0 {
		s.progress = slices.Delete(s.progress, 0, over)
	}
}

// reportReady reports whether every escalation item is resolved.
func (s *Session) reportReady() bool {
	if len(s.escalation) == 0 {
		return false
	}
	for _, name := range s.escalation {
		if !s.status[name].Resolved() {
			return false
		}
	}
	return true
}

// unresolved returns escalation identities not yet resolved, in escalation order.
func (s *Session) unresolved() []string {
	var res []string
	for _, name := range s.escalation {
		if !s.status[name].Resolved() {
			res = append(res, name)
		}
	}
	return res
}

// item returns the wire item for an identity, falling back to what the phase-A result knows.
func (s *Session) item(name string) protocol.Item {
	if it, ok := s.reg.Item(name); ok {
		return it.Item
	}
	for _, o := range s.phaseA {
		if o.Name == name {
			return protocol.Item{Name: o.Name, MaskedName: o.MaskedName, Path: o.Path}
		}
	}
	return protocol.Item{Name: name, MaskedName: name}
}

// EscalationItem is one item phase A did not remove, as shown during escalation.
type EscalationItem struct {
	Name        string             `json:"name"`
	DisplayName string             `json:"display_name"`
	Path        string             `json:"path,omitempty"`
	Status      status.PhaseStatus `json:"status"`
	Resolved    bool               `json:"resolved"`
	Message     string             `json:"message,omitempty"` // latest outcome message
}

// Snapshot is a point-in-time copy of the workflow for presentation.
type Snapshot struct {
	RunID         string                        `json:"run_id,omitempty"`
	State         status.State                  `json:"state"`
	Started       time.Time                     `json:"started"`
	Items         []registry.CandidateItem      `json:"items"`
	Status        map[string]status.PhaseStatus `json:"status"`
	Escalation    []EscalationItem              `json:"escalation"`
	PhaseA        []protocol.Outcome            `json:"phase_a"`
	Outcomes      []registry.Record             `json:"outcomes"`
	Final         []protocol.Outcome            `json:"final"`
	Progress      []string                      `json:"progress"`
	Report        string                        `json:"report,omitempty"`
	Error         string                        `json:"error,omitempty"`
	FailedIn      status.State                  `json:"failed_in,omitempty"`
	ReportReady   bool                          `json:"report_ready"`
	VerifyPending bool                          `json:"verify_pending"`
}

// Checked returns the number of candidates selected for cleaning.
func (s Snapshot) Checked() int {
	n := 0
	for _, it := range s.Items {
		if it.Clean {
			n++
		}
	}
	return n
}

func (s *Session) snapshot(state status.State) Snapshot {
	snap := Snapshot{
		RunID:         s.ID,
		State:         state,
		Started:       s.Started,
		Items:         s.reg.Items(),
		Status:        maps.Clone(s.status),
		PhaseA:        slices.Clone(s.phaseA),
		Outcomes:      s.reg.Records(),
		Final:         slices.Clone(s.final),
		Progress:      slices.Clone(s.progress),
		Report:        s.report,
		Error:         s.err,
		FailedIn:      s.failedIn,
		ReportReady:   state == status.StateEscalation && s.reportReady(),
		VerifyPending: s.verifyPending,
	}
	if snap.Status == nil {
		snap.Status = map[string]status.PhaseStatus{}
	}
	for _, name := range s.escalation {
		it := s.item(name)
		ps := s.status[name]
		ei := EscalationItem{Name: name, DisplayName: it.DisplayName(), Path: it.Path, Status: ps, Resolved: ps.Resolved()}
		if rec, ok := s.reg.Outcome(name); ok {
			ei.Message = rec.Message
			if rec.Path != "" {
				ei.Path = rec.Path
			}
		}
		snap.Escalation = append(snap.Escalation, ei)
	}
	return snap
}
