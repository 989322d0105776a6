// Package status defines shared workflow-model types for grayhound.
// workflow states, per-phase item statuses and outcome statuses used by protocol, registry,
// report, workflow, progress and web packages.
package status

// State represents the workflow state of a cleanup run.
type State string

// State constants for the cleanup workflow.
const (
	StateIdle       State = "idle"               // nothing in flight, last report (if any) on display
	StateScanning   State = "scanning"           // scan requested, waiting for scan_result
	StateReviewing  State = "reviewing"          // candidates on display, user picks items
	StatePhaseA     State = "phase_a"            // bulk automated removal in flight
	StateEscalation State = "phase_b_escalation" // per-item guided/forced removal
	StateReporting  State = "reporting"          // waiting for the final report
	StateFailed     State = "failed"             // transport or agent failure
)

// PhaseA is the result of the automated removal attempt for one item.
type PhaseA string

// PhaseA values.
const (
	PhaseAUnset   PhaseA = ""
	PhaseASuccess PhaseA = "success"
	PhaseAFailed  PhaseA = "failed"
)

// PhaseB is the progress of guided manual removal for one item.
type PhaseB string

// PhaseB values.
const (
	PhaseBUnset              PhaseB = ""
	PhaseBInProgress         PhaseB = "in_progress"
	PhaseBCompleted          PhaseB = "completed"
	PhaseBVerificationFailed PhaseB = "verification_failed"
	PhaseBSkipped            PhaseB = "skipped"
)

// PhaseC is the result of forced removal for one item.
type PhaseC string

// PhaseC values.
const (
	PhaseCUnset   PhaseC = ""
	PhaseCSuccess PhaseC = "success"
	PhaseCFailed  PhaseC = "failed"
)

// Outcome is the status of one removal attempt as reported by the agent.
type Outcome string

// Outcome values, matching the agent wire format.
const (
	OutcomeSuccess        Outcome = "success"
	OutcomeFailure        Outcome = "failure"
	OutcomeManualRequired Outcome = "manual_required"
	OutcomeUIOpened       Outcome = "ui_opened"
	OutcomeStillExists    Outcome = "still_exists"
)

// Final reports whether the outcome settles an item. ui_opened and manual_required only
// mean the user still has something to do.
func (o Outcome) Final() bool {
	return o == OutcomeSuccess || o == OutcomeFailure || o == OutcomeStillExists
}

// PhaseStatus tracks one item across the three removal phases.
type PhaseStatus struct {
	PhaseA          PhaseA `json:"phase_a"`
	PhaseB          PhaseB `json:"phase_b"`
	PhaseC          PhaseC `json:"phase_c"`
	RemovalVerified bool   `json:"removal_verified"`
}

// Escalated reports whether the item needs phase B/C attention, i.e. phase A did not succeed.
func (p PhaseStatus) Escalated() bool {
	return p.PhaseA != PhaseASuccess
}

// Resolved reports whether the item satisfies the reporting gate.
func (p PhaseStatus) Resolved() bool {
	return p.PhaseB == PhaseBCompleted || p.PhaseC == PhaseCSuccess || p.RemovalVerified || p.PhaseB == PhaseBSkipped
}

// Attempted reports whether the user tried phase B or C for the item.
// skipped counts as not attempted.
func (p PhaseStatus) Attempted() bool {
	return (p.PhaseB != PhaseBUnset && p.PhaseB != PhaseBSkipped) || p.PhaseC != PhaseCUnset
}
