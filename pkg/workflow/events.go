package workflow

import (
	"slices"

	"github.com/grayhound-dev/grayhound/pkg/protocol"
	"github.com/grayhound-dev/grayhound/pkg/registry"
	"github.com/grayhound-dev/grayhound/pkg/report"
	"github.com/grayhound-dev/grayhound/pkg/status"
)

// HandleEvent applies one decoded agent event. events that do not match the current
// state are logged and dropped.
func (o *Orchestrator) HandleEvent(ev protocol.Event) {
	_ = o.do(func() error {
		o.apply(ev)
		return nil
	})
}

// apply dispatches one event. must be called with the lock held.
func (o *Orchestrator) apply(ev protocol.Event) {
	switch ev.Type {
	case protocol.EventRaw:
		o.sess.addProgress(ev.Text)
		o.dirty = true
		o.log.PrintRaw("%s\n", ev.Text)
		return
	case protocol.EventProgress:
		o.sess.addProgress(ev.Text)
		o.dirty = true
		o.log.Print("%s", ev.Text)
		return
	case protocol.EventError:
		msg := ev.Text
		if msg == "" {
			msg = "agent reported an error"
		}
		o.fail(msg)
		return
	}

	want, known := eventState[ev.Type]
	if !known {
		o.log.Warn("ignoring %s event", ev.Type)
		return
	}
	if o.state != want {
		o.log.Warn("dropping %s event in state %s", ev.Type, o.state)
		return
	}

	switch ev.Type {
	case protocol.EventScanResult:
		o.onScanResult(ev.Items)
	case protocol.EventPhaseAComplete:
		o.onPhaseAComplete(ev.Results, ev.Feedback)
	case protocol.EventPhaseBComplete:
		o.onPhaseBComplete(ev.Results)
	case protocol.EventPhaseCComplete:
		o.onPhaseCComplete(ev.Results)
	case protocol.EventRemovalChecked:
		o.onRemovalChecked(ev.Results, ev.SingleCheck)
	case protocol.EventFinalReport:
		o.sess.report = ev.Feedback
		o.dirty = true
		o.log.Print("report ready")
		o.setState(status.StateIdle)
	}
}

// eventState maps workflow events to the only state that accepts them.
var eventState = map[protocol.EventType]status.State{
	protocol.EventScanResult:     status.StateScanning,
	protocol.EventPhaseAComplete: status.StatePhaseA,
	protocol.EventPhaseBComplete: status.StateEscalation,
	protocol.EventPhaseCComplete: status.StateEscalation,
	protocol.EventRemovalChecked: status.StateEscalation,
	protocol.EventFinalReport:    status.StateReporting,
}

func (o *Orchestrator) onScanResult(items []protocol.Item) {
	o.sess.reg.SetItems(items)
	o.dirty = true
	if o.sess.reg.Len() == 0 {
		// nothing to clean, the report is synthesized locally and the run ends
		o.log.Print("scan complete, no threats found")
		o.setState(status.StateReporting)
		o.sess.report = report.NoThreats()
		o.setState(status.StateIdle)
		return
	}
	o.log.Print("scan complete, %d items found", o.sess.reg.Len())
	o.setState(status.StateReviewing)
}

func (o *Orchestrator) onPhaseAComplete(results []protocol.Outcome, feedback string) {
	o.sess.phaseA = append([]protocol.Outcome(nil), results...)
	o.merge(registry.SourcePhaseA, results)
	if feedback != "" {
		o.sess.addProgress(feedback)
	}

	failed := 0
	for _, r := range results {
		if r.Name != "" && r.Status != status.OutcomeSuccess {
			failed++
		}
	}

	if failed == 0 {
		o.log.Print("automated removal complete, all %d items removed", len(results))
		_ = o.requestReport(slices.Clone(o.sess.phaseA))
		return
	}

	// seed every result, not just the failed ones
	var order []string
	for _, r := range results {
		if r.Name == "" {
			continue
		}
		if _, seen := o.sess.status[r.Name]; !seen {
			order = append(order, r.Name)
		}
		ps := status.PhaseStatus{PhaseA: status.PhaseAFailed}
		if r.Status == status.OutcomeSuccess {
			ps.PhaseA = status.PhaseASuccess
		}
		o.sess.status[r.Name] = ps
	}
	o.sess.escalation = nil
	for _, name := range order {
		if o.sess.status[name].Escalated() {
			o.sess.escalation = append(o.sess.escalation, name)
		}
	}
	o.log.Print("automated removal complete, %d of %d items need attention", failed, len(results))
	o.setState(status.StateEscalation)
}

func (o *Orchestrator) onPhaseBComplete(results []protocol.Outcome) {
	o.merge(registry.SourcePhaseB, results)
	for _, r := range results {
		ps, ok := o.sess.status[r.Name]
		if !ok || !ps.Escalated() {
			o.log.Warn("phase B result for unknown item %q", r.Name)
			continue
		}
		switch {
		case r.Status == status.OutcomeSuccess:
			ps.PhaseB = status.PhaseBCompleted
		case ps.PhaseB == status.PhaseBUnset:
			ps.PhaseB = status.PhaseBInProgress
		}
		o.sess.status[r.Name] = ps
		o.log.Print("%s: %s %s", r.DisplayName(), r.Status, r.Message)
	}
}

func (o *Orchestrator) onPhaseCComplete(results []protocol.Outcome) {
	o.merge(registry.SourcePhaseC, results)
	for _, r := range results {
		ps, ok := o.sess.status[r.Name]
		if !ok || !ps.Escalated() {
			o.log.Warn("phase C result for unknown item %q", r.Name)
			continue
		}
		ps.PhaseC = status.PhaseCFailed
		if r.Status == status.OutcomeSuccess {
			ps.PhaseC = status.PhaseCSuccess
		}
		o.sess.status[r.Name] = ps
		o.log.Print("%s: forced removal %s %s", r.DisplayName(), r.Status, r.Message)
	}
}

// onRemovalChecked applies verification results. re-applying the same results changes nothing.
// a negative result never regresses a completed or skipped item.
func (o *Orchestrator) onRemovalChecked(results []protocol.Outcome, single bool) {
	o.sess.verifyPending = false
	o.dirty = true

	removed := 0
	for _, r := range results {
		ps, ok := o.sess.status[r.Name]
		if !ok || !ps.Escalated() {
			o.log.Warn("verification result for unknown item %q", r.Name)
			continue
		}
		if r.Status == status.OutcomeSuccess {
			ps.PhaseB = status.PhaseBCompleted
			ps.RemovalVerified = true
			removed++
		} else {
			if ps.PhaseB == status.PhaseBCompleted || ps.PhaseB == status.PhaseBSkipped {
				continue
			}
			ps.PhaseB = status.PhaseBVerificationFailed
			ps.RemovalVerified = false
		}
		o.sess.status[r.Name] = ps
		o.sess.reg.Merge(registry.SourceVerification, []protocol.Outcome{r})
		if single {
			o.log.Print("%s: %s", r.DisplayName(), verifyMessage(r))
		}
	}
	if !single {
		o.log.Print("verified %d items, %d removed", len(results), removed)
	}
}

func verifyMessage(r protocol.Outcome) string {
	if r.Message != "" {
		return r.Message
	}
	if r.Status == status.OutcomeSuccess {
		return "removed"
	}
	return "still installed"
}
