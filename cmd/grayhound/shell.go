package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/grayhound-dev/grayhound/pkg/catalog"
	"github.com/grayhound-dev/grayhound/pkg/ignore"
	"github.com/grayhound-dev/grayhound/pkg/input"
	"github.com/grayhound-dev/grayhound/pkg/notify"
	"github.com/grayhound-dev/grayhound/pkg/render"
	"github.com/grayhound-dev/grayhound/pkg/status"
	"github.com/grayhound-dev/grayhound/pkg/workflow"
)

// idle menu entries
const (
	menuScan    = "Scan for bloatware"
	menuCatalog = "View catalog"
	menuAdd     = "Add program to catalog"
	menuIgnore  = "Edit ignore list"
	menuQuit    = "Quit"
)

// failed menu entries
const (
	menuRetry   = "Retry"
	menuAbandon = "Back to menu"
)

// catalogTimeout bounds the wait for a catalog listing or agent error.
const catalogTimeout = 30 * time.Second

// retrier restarts a failed run, reconnecting when needed.
type retrier interface {
	Retry(ctx context.Context, minRisk int) error
}

// notifier delivers the run summary; notify.Service is nil-safe.
type notifier interface {
	Send(ctx context.Context, r notify.Result)
}

// shellConfig holds the interactive shell dependencies.
type shellConfig struct {
	Orch     *workflow.Orchestrator
	Client   retrier
	Catalog  *catalog.Catalog
	Ignore   *ignore.List
	Input    input.Collector
	Out      io.Writer
	Log      workflow.Logger
	Notifier notifier
	MinRisk  int
	AgentURL string
	NoColor  bool
}

// shell drives the orchestrator from terminal input, one prompt per workflow state.
type shell struct {
	shellConfig
	changes      chan struct{}
	shownRun     string // run id whose report was last presented
	shownFailure string // run id and error of the last failure notified
	poll         time.Duration
}

func newShell(cfg shellConfig) *shell {
	s := &shell{shellConfig: cfg, changes: make(chan struct{}, 1), poll: 100 * time.Millisecond}
	cfg.Orch.OnChange(func(workflow.Snapshot) { s.wake() })
	return s
}

// wake signals a workflow change without blocking the orchestrator.
func (s *shell) wake() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// Run loops until the user quits, input ends or ctx is canceled.
func (s *shell) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		snap := s.Orch.Snapshot()
		var quit bool
		var err error
		switch snap.State {
		case status.StateIdle:
			quit, err = s.idle(ctx, snap)
		case status.StateScanning, status.StatePhaseA, status.StateReporting:
			err = s.waitState(ctx, snap.State)
		case status.StateReviewing:
			err = s.review(ctx, snap)
		case status.StateEscalation:
			err = s.escalation(ctx, snap)
		case status.StateFailed:
			quit, err = s.failed(ctx, snap)
		default:
			return fmt.Errorf("unexpected state %q", snap.State)
		}

		switch {
		case quit, errors.Is(err, io.EOF), ctx.Err() != nil:
			return nil
		case err == nil:
		case workflow.IsUserError(err), errors.Is(err, input.ErrCanceled):
			s.Log.Warn("%v", err)
		default:
			s.Log.Error("%v", err)
		}
	}
}

// waitState blocks until the workflow leaves st.
func (s *shell) waitState(ctx context.Context, st status.State) error {
	for s.Orch.State() == st {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.changes:
		}
	}
	return nil
}

// waitVerify blocks until a pending removal check is answered or the workflow moves on.
func (s *shell) waitVerify(ctx context.Context) error {
	for {
		snap := s.Orch.Snapshot()
		if !snap.VerifyPending || snap.State != status.StateEscalation {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.changes:
		}
	}
}

func (s *shell) idle(ctx context.Context, snap workflow.Snapshot) (bool, error) {
	if snap.Report != "" && snap.RunID != s.shownRun {
		s.shownRun = snap.RunID
		s.showReport(snap)
		s.notify(ctx, snap, notify.StatusSuccess)
	}

	choice, err := s.Input.AskQuestion(ctx, "What would you like to do?", []string{menuScan, menuCatalog, menuAdd, menuIgnore, menuQuit})
	if err != nil {
		return false, err
	}
	switch choice {
	case menuScan:
		return false, s.Orch.StartScan(s.MinRisk)
	case menuCatalog:
		return false, s.showCatalog(ctx)
	case menuAdd:
		return false, s.addToCatalog(ctx)
	case menuIgnore:
		return false, s.editIgnore(ctx)
	default:
		return true, nil
	}
}

func (s *shell) failed(ctx context.Context, snap workflow.Snapshot) (bool, error) {
	if key := snap.RunID + "|" + snap.Error; key != s.shownFailure {
		s.shownFailure = key
		s.notify(ctx, snap, notify.StatusFailure)
	}
	_, _ = fmt.Fprintf(s.Out, "\nrun failed: %s\n", snap.Error)

	choice, err := s.Input.AskQuestion(ctx, "How would you like to continue?", []string{menuRetry, menuAbandon, menuQuit})
	if err != nil {
		return false, err
	}
	switch choice {
	case menuRetry:
		return false, s.Client.Retry(ctx, s.MinRisk)
	case menuAbandon:
		s.Orch.Abandon()
		return false, nil
	default:
		return true, nil
	}
}

const reviewHelp = "numbers toggle items (e.g. 1 3-5), a=select all, n=select none, c=clean, r=rescan, q=back"

func (s *shell) review(ctx context.Context, snap workflow.Snapshot) error {
	_, _ = fmt.Fprintf(s.Out, "\n%s\n%d of %d selected\n", render.CandidateTable(snap.Items), snap.Checked(), len(snap.Items))

	line, err := s.Input.ReadLine(ctx, reviewHelp+"\n> ")
	if err != nil {
		return err
	}
	switch strings.ToLower(line) {
	case "":
		return nil
	case "a":
		return s.Orch.SelectAll(true)
	case "n":
		return s.Orch.SelectAll(false)
	case "r":
		return s.Orch.StartScan(s.MinRisk)
	case "q":
		s.Orch.Abandon()
		return nil
	case "c":
		if snap.Checked() == 0 {
			return workflow.ErrNothingSelected
		}
		ok, cerr := s.Input.Confirm(ctx, fmt.Sprintf("Remove %d selected programs? Uninstallers will run and may not be reversible.", snap.Checked()))
		if cerr != nil {
			return cerr
		}
		if !ok {
			return nil
		}
		return s.Orch.Clean()
	}

	idx, err := input.ParseSelection(line, len(snap.Items))
	if err != nil {
		return fmt.Errorf("%w: %v", input.ErrCanceled, err)
	}
	for _, i := range idx {
		if _, err := s.Orch.Toggle(snap.Items[i].Name); err != nil {
			return err
		}
	}
	return nil
}

const escalationHelp = "o N=open settings, v N=verify, va=verify all, f N=force remove, s N=skip, r=report, q=back"

func (s *shell) escalation(ctx context.Context, snap workflow.Snapshot) error {
	_, _ = fmt.Fprintf(s.Out, "\nThese programs could not be removed automatically:\n%s\n", render.EscalationTable(snap.Escalation))
	if snap.ReportReady {
		_, _ = fmt.Fprintln(s.Out, "all items resolved, enter r to generate the report")
	}

	line, err := s.Input.ReadLine(ctx, escalationHelp+"\n> ")
	if err != nil {
		return err
	}
	cmd, arg, _ := strings.Cut(strings.ToLower(line), " ")
	switch cmd {
	case "":
		return nil
	case "va":
		if err := s.Orch.VerifyAll(); err != nil {
			return err
		}
		return s.waitVerify(ctx)
	case "r":
		return s.Orch.GenerateReport()
	case "q":
		ok, cerr := s.Input.Confirm(ctx, "Abandon this run without a report?")
		if cerr != nil || !ok {
			return cerr
		}
		s.Orch.Abandon()
		return nil
	}

	idx, err := input.ParseSelection(arg, len(snap.Escalation))
	if err != nil {
		return fmt.Errorf("%w: %v", input.ErrCanceled, err)
	}
	for _, i := range idx {
		name := snap.Escalation[i].Name
		var aerr error
		switch cmd {
		case "o":
			aerr = s.Orch.OpenSettings(name)
		case "v":
			if aerr = s.Orch.Verify(name); aerr == nil {
				aerr = s.waitVerify(ctx)
			}
		case "f":
			aerr = s.Orch.ForceRemove(ctx, name)
		case "s":
			aerr = s.Orch.Skip(name)
		default:
			return fmt.Errorf("%w: unknown command %q", input.ErrCanceled, cmd)
		}
		if aerr != nil {
			return aerr
		}
	}
	return nil
}

func (s *shell) showReport(snap workflow.Snapshot) {
	out, err := render.RenderReport(snap.Report, snap.Final, s.NoColor)
	if err != nil {
		s.Log.Warn("failed to render report: %v", err)
		out = render.ReportMarkdown(snap.Report, snap.Final)
	}
	_, _ = fmt.Fprintln(s.Out, out)
}

// notify sends the outcome of a finished or failed run.
func (s *shell) notify(ctx context.Context, snap workflow.Snapshot, result string) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Send(ctx, notify.Result{
		Status:   result,
		RunID:    snap.RunID,
		Agent:    s.AgentURL,
		Duration: time.Since(snap.Started).Round(time.Second).String(),
		Outcomes: snap.Final,
		FailedIn: snap.FailedIn,
		Error:    snap.Error,
	})
}

// waitCatalog blocks until the pending catalog request is answered.
func (s *shell) waitCatalog(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for s.Catalog.Pending() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for catalog: %w", ctx.Err())
		case <-ticker.C:
		}
	}
	if msg := s.Catalog.LastError(); msg != "" {
		return fmt.Errorf("catalog request failed: %s", msg)
	}
	return nil
}

func (s *shell) showCatalog(ctx context.Context) error {
	if err := s.Catalog.Refresh(); err != nil {
		return err
	}
	if err := s.waitCatalog(ctx); err != nil {
		return err
	}
	entries := s.Catalog.Entries()
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(s.Out, "\ncatalog is empty")
		return nil
	}
	_, _ = fmt.Fprintf(s.Out, "\n%s\n", render.CatalogTable(entries))
	return nil
}

func (s *shell) addToCatalog(ctx context.Context) error {
	name, err := s.Input.ReadLine(ctx, "program name: ")
	if err != nil {
		return err
	}
	if err := catalog.ValidateName(name); err != nil {
		return fmt.Errorf("%w: %q %v", input.ErrCanceled, name, err)
	}
	if err := s.Catalog.Add(name); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.Out, "asked the agent to evaluate %s\n", name)
	return s.showCatalog(ctx)
}

const ignoreHelp = "+name adds, -name removes, w saves, q returns"

func (s *shell) editIgnore(ctx context.Context) error {
	for {
		names := s.Ignore.Names()
		_, _ = fmt.Fprintf(s.Out, "\nignored programs (%s):\n", s.Ignore.Path())
		if len(names) == 0 {
			_, _ = fmt.Fprintln(s.Out, "  (none)")
		}
		for _, n := range names {
			_, _ = fmt.Fprintf(s.Out, "  %s\n", n)
		}

		line, err := s.Input.ReadLine(ctx, ignoreHelp+"\n> ")
		if err != nil {
			return err
		}
		switch {
		case line == "q" || line == "":
			return nil
		case line == "w":
			if err := s.saveIgnore(); err != nil {
				return err
			}
		case strings.HasPrefix(line, "+"):
			if !s.Ignore.Add(strings.TrimPrefix(line, "+")) {
				s.Log.Warn("%s is already ignored", strings.TrimSpace(line[1:]))
			}
		case strings.HasPrefix(line, "-"):
			if !s.Ignore.Remove(strings.TrimPrefix(line, "-")) {
				s.Log.Warn("%s is not in the ignore list", strings.TrimSpace(line[1:]))
			}
		default:
			s.Log.Warn("unknown command %q", line)
		}
	}
}

// saveIgnore writes the ignore list and pushes it to the agent.
func (s *shell) saveIgnore() error {
	if err := s.Ignore.Save(); err != nil {
		return err
	}
	names := s.Ignore.Names()
	if err := s.Catalog.SaveIgnoreList(names); err != nil {
		return err
	}
	s.Log.Print("ignore list saved, %d names", len(names))
	return nil
}
