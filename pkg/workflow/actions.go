package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/grayhound-dev/grayhound/pkg/protocol"
	"github.com/grayhound-dev/grayhound/pkg/registry"
	"github.com/grayhound-dev/grayhound/pkg/report"
	"github.com/grayhound-dev/grayhound/pkg/status"
)

// StartScan discards the current run and asks the agent for items at or above minRisk.
// allowed from idle, reviewing and failed; the latter is the retry path.
func (o *Orchestrator) StartScan(minRisk int) error {
	if minRisk < 0 || minRisk > 10 {
		return fmt.Errorf("%w: %d", ErrInvalidRisk, minRisk)
	}
	return o.do(func() error {
		if err := o.requireState(status.StateIdle, status.StateReviewing, status.StateFailed); err != nil {
			return fmt.Errorf("start scan: %w", err)
		}

		var ignored []string
		if o.cfg.Ignored != nil {
			ignored = o.cfg.Ignored()
		}
		cmd, err := protocol.ScanCommand(ignored, minRisk)
		if err != nil {
			return fmt.Errorf("start scan: %w", err)
		}

		o.sess = newSession(newRunID())
		o.dirty = true
		if err := o.send(cmd); err != nil {
			return fmt.Errorf("start scan: %w", err)
		}
		o.log.Print("scan started, minimum risk %d, %d names ignored", minRisk, len(ignored))
		o.setState(status.StateScanning)
		return nil
	})
}

// SetClean includes or excludes one candidate from cleaning.
func (o *Orchestrator) SetClean(name string, clean bool) error {
	return o.do(func() error {
		if err := o.requireState(status.StateReviewing); err != nil {
			return fmt.Errorf("select %q: %w", name, err)
		}
		if !o.sess.reg.SetClean(name, clean) {
			return fmt.Errorf("select %q: %w", name, ErrUnknownItem)
		}
		o.dirty = true
		return nil
	})
}

// Toggle flips the selection of one candidate and returns the new value.
func (o *Orchestrator) Toggle(name string) (bool, error) {
	var clean bool
	err := o.do(func() error {
		if err := o.requireState(status.StateReviewing); err != nil {
			return fmt.Errorf("toggle %q: %w", name, err)
		}
		var ok bool
		if clean, ok = o.sess.reg.Toggle(name); !ok {
			return fmt.Errorf("toggle %q: %w", name, ErrUnknownItem)
		}
		o.dirty = true
		return nil
	})
	return clean, err
}

// SelectAll includes or excludes every candidate.
func (o *Orchestrator) SelectAll(clean bool) error {
	return o.do(func() error {
		if err := o.requireState(status.StateReviewing); err != nil {
			return fmt.Errorf("select all: %w", err)
		}
		o.sess.reg.SetAll(clean)
		o.dirty = true
		return nil
	})
}

// Clean sends the checked candidates for automated removal.
func (o *Orchestrator) Clean() error {
	return o.do(func() error {
		if err := o.requireState(status.StateReviewing); err != nil {
			return fmt.Errorf("clean: %w", err)
		}
		items := o.sess.reg.Checked()
		if len(items) == 0 {
			return ErrNothingSelected
		}
		cmd, err := protocol.PhaseCommand(protocol.CmdPhaseAClean, items, o.cfg.Language)
		if err != nil {
			return fmt.Errorf("clean: %w", err)
		}
		if err := o.send(cmd); err != nil {
			return fmt.Errorf("clean: %w", err)
		}
		o.log.Print("automated removal started for %d items", len(items))
		o.setState(status.StatePhaseA)
		return nil
	})
}

// escalated returns the phase status of an escalation item. must be called with the lock held.
func (o *Orchestrator) escalated(name string) (status.PhaseStatus, error) {
	if err := o.requireState(status.StateEscalation); err != nil {
		return status.PhaseStatus{}, err
	}
	ps, ok := o.sess.status[name]
	if !ok {
		return status.PhaseStatus{}, ErrUnknownItem
	}
	if !ps.Escalated() {
		return status.PhaseStatus{}, ErrNotEscalated
	}
	return ps, nil
}

// OpenSettings asks the agent to open the system uninstall UI for one item (phase B).
func (o *Orchestrator) OpenSettings(name string) error {
	return o.do(func() error {
		ps, err := o.escalated(name)
		if err != nil {
			return fmt.Errorf("open settings for %q: %w", name, err)
		}
		if ps.PhaseB == status.PhaseBCompleted || ps.PhaseC == status.PhaseCSuccess {
			return fmt.Errorf("open settings for %q: %w", name, ErrAlreadyResolved)
		}
		it := o.sess.item(name)
		cmd, err := protocol.PhaseCommand(protocol.CmdPhaseBClean, []protocol.Item{it}, o.cfg.Language)
		if err != nil {
			return fmt.Errorf("open settings for %q: %w", name, err)
		}
		if err := o.send(cmd); err != nil {
			return fmt.Errorf("open settings for %q: %w", name, err)
		}
		ps.PhaseB = status.PhaseBInProgress
		o.sess.status[name] = ps
		o.dirty = true
		o.log.Print("opened uninstall settings for %s", it.DisplayName())
		return nil
	})
}

// Verify asks the agent whether one item is gone.
func (o *Orchestrator) Verify(name string) error {
	return o.do(func() error {
		if _, err := o.escalated(name); err != nil {
			return fmt.Errorf("verify %q: %w", name, err)
		}
		if o.sess.verifyPending {
			return fmt.Errorf("verify %q: %w", name, ErrVerificationPending)
		}
		cmd, err := protocol.CheckRemovalCommand(name)
		if err != nil {
			return fmt.Errorf("verify %q: %w", name, err)
		}
		if err := o.send(cmd); err != nil {
			return fmt.Errorf("verify %q: %w", name, err)
		}
		o.sess.verifyPending = true
		o.dirty = true
		o.log.Print("checking removal of %s", o.sess.item(name).DisplayName())
		return nil
	})
}

// VerifyAll asks the agent to check every unresolved escalation item in one batch.
func (o *Orchestrator) VerifyAll() error {
	return o.do(func() error {
		if err := o.requireState(status.StateEscalation); err != nil {
			return fmt.Errorf("verify all: %w", err)
		}
		if o.sess.verifyPending {
			return fmt.Errorf("verify all: %w", ErrVerificationPending)
		}
		names := o.sess.unresolved()
		if len(names) == 0 {
			return fmt.Errorf("verify all: %w", ErrNothingToVerify)
		}
		cmd, err := protocol.CheckRemovalCommand(names...)
		if err != nil {
			return fmt.Errorf("verify all: %w", err)
		}
		if err := o.send(cmd); err != nil {
			return fmt.Errorf("verify all: %w", err)
		}
		o.sess.verifyPending = true
		o.dirty = true
		o.log.Print("checking removal of %d items", len(names))
		return nil
	})
}

// ForceRemove asks for confirmation and then sends one item for forced removal (phase C).
// a declined prompt returns ErrNotConfirmed and sends nothing.
func (o *Orchestrator) ForceRemove(ctx context.Context, name string) error {
	var display string
	var confirmer Confirmer
	err := o.do(func() error {
		ps, err := o.escalated(name)
		if err != nil {
			return err
		}
		if ps.PhaseC == status.PhaseCSuccess || ps.PhaseB == status.PhaseBCompleted {
			return ErrAlreadyResolved
		}
		display = o.sess.item(name).DisplayName()
		confirmer = o.confirmer
		return nil
	})
	if err != nil {
		return fmt.Errorf("force remove %q: %w", name, err)
	}

	if confirmer == nil {
		return fmt.Errorf("force remove %q: %w", name, ErrNotConfirmed)
	}
	// the prompt blocks on the user, so it runs without holding the lock
	ok, err := confirmer.Confirm(ctx, fmt.Sprintf("Force remove %s? This kills its processes and deletes its files.", display))
	if err != nil {
		return fmt.Errorf("force remove %q: confirm: %w", name, err)
	}
	if !ok {
		return fmt.Errorf("force remove %q: %w", name, ErrNotConfirmed)
	}

	return o.do(func() error {
		// the run may have moved on while the prompt was open
		if _, err := o.escalated(name); err != nil {
			return fmt.Errorf("force remove %q: %w", name, err)
		}
		cmd, err := protocol.PhaseCommand(protocol.CmdPhaseCClean, []protocol.Item{o.sess.item(name)}, o.cfg.Language)
		if err != nil {
			return fmt.Errorf("force remove %q: %w", name, err)
		}
		if err := o.send(cmd); err != nil {
			return fmt.Errorf("force remove %q: %w", name, err)
		}
		o.dirty = true
		o.log.Print("forced removal started for %s", display)
		return nil
	})
}

// Skip marks an escalation item as one the user chooses not to remove.
func (o *Orchestrator) Skip(name string) error {
	return o.do(func() error {
		ps, err := o.escalated(name)
		if err != nil {
			return fmt.Errorf("skip %q: %w", name, err)
		}
		if ps.PhaseB == status.PhaseBCompleted || ps.PhaseC == status.PhaseCSuccess {
			return fmt.Errorf("skip %q: %w", name, ErrAlreadyResolved)
		}
		ps.PhaseB = status.PhaseBSkipped
		o.sess.status[name] = ps
		o.dirty = true
		o.log.Print("%s left in place", o.sess.item(name).DisplayName())
		return nil
	})
}

// GenerateReport assembles the final outcome set and requests the report.
// returns ErrReportGated while any escalation item is unresolved.
func (o *Orchestrator) GenerateReport() error {
	return o.do(func() error {
		if err := o.requireState(status.StateEscalation); err != nil {
			return fmt.Errorf("generate report: %w", err)
		}
		if !o.sess.reportReady() {
			return fmt.Errorf("generate report: %w: %d", ErrReportGated, len(o.sess.unresolved()))
		}
		final := report.Assemble(report.Input{Records: o.sess.reg.Records(), Status: o.sess.status, PhaseA: o.sess.phaseA})
		return o.requestReport(final)
	})
}

// requestReport sends the final outcome set for report generation. must be called with the lock held.
func (o *Orchestrator) requestReport(final []protocol.Outcome) error {
	cmd, err := protocol.ReportCommand(final, o.cfg.Language)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}
	if err := o.send(cmd); err != nil {
		return fmt.Errorf("generate report: %w", err)
	}
	o.sess.final = final
	o.log.Print("report requested, %s", report.Summarize(final))
	o.setState(status.StateReporting)
	return nil
}

// ChannelFailed moves the run to failed on a transport error or close. err text is kept verbatim.
func (o *Orchestrator) ChannelFailed(err error) {
	msg := "connection lost"
	if err != nil {
		msg = err.Error()
	}
	_ = o.do(func() error {
		o.fail(msg)
		return nil
	})
}

// Abandon discards the current run and returns to idle.
func (o *Orchestrator) Abandon() {
	_ = o.do(func() error {
		o.sess = newSession("")
		o.dirty = true
		o.setState(status.StateIdle)
		return nil
	})
}

// IsUserError reports whether err is a local validation error: the action was refused and
// nothing changed, as opposed to a transport failure.
func IsUserError(err error) bool {
	for _, target := range []error{ErrInvalidState, ErrInvalidRisk, ErrNothingSelected, ErrUnknownItem,
		ErrNotEscalated, ErrAlreadyResolved, ErrNothingToVerify, ErrVerificationPending, ErrNotConfirmed,
		ErrReportGated} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// merge records outcomes from src. must be called with the lock held.
func (o *Orchestrator) merge(src registry.Source, results []protocol.Outcome) {
	o.sess.reg.Merge(src, results)
	o.dirty = true
}
