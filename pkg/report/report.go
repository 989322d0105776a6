// Package report reconciles the outcomes recorded across removal phases into the final
// result set sent for report generation.
package report

import (
	"fmt"

	"github.com/grayhound-dev/grayhound/pkg/protocol"
	"github.com/grayhound-dev/grayhound/pkg/registry"
	"github.com/grayhound-dev/grayhound/pkg/status"
)

// synthesized outcome messages.
const (
	MsgManuallyRemoved = "manually removed"
	MsgUserDeclined    = "user chose not to remove"
	MsgNoThreats       = "no threats found"
)

// Input is the snapshot the assembler works on. it is never modified.
type Input struct {
	Records []registry.Record             // outcomes recorded so far, first-seen order
	Status  map[string]status.PhaseStatus // per-item phase status
	PhaseA  []protocol.Outcome            // the original phase-A result list
}

// Assemble builds the final outcome set, one outcome per identity in first-seen order.
// for every item phase A did not remove:
//   - an explicit phase B/C outcome with a final status is kept as is;
//   - otherwise a verified removal becomes success "manually removed";
//   - otherwise, if the user never tried phase B or C, manual_required "user chose not to remove";
//   - otherwise the latest recorded outcome is kept.
func Assemble(in Input) []protocol.Outcome {
	order := make([]string, 0, len(in.Records)+len(in.PhaseA))
	records := make(map[string]registry.Record, len(in.Records))
	for _, rec := range in.Records {
		if _, ok := records[rec.Name]; !ok {
			order = append(order, rec.Name)
		}
		records[rec.Name] = rec
	}

	final := make(map[string]protocol.Outcome, len(records))
	for name, rec := range records {
		final[name] = rec.Outcome
	}

	for _, pa := range in.PhaseA {
		if pa.Name == "" || pa.Status == status.OutcomeSuccess {
			continue
		}
		rec, seen := records[pa.Name]
		if !seen {
			order = append(order, pa.Name)
			rec = registry.Record{Outcome: pa, Source: registry.SourcePhaseA}
			records[pa.Name] = rec
		}
		final[pa.Name] = resolve(pa, rec, in.Status[pa.Name])
	}

	res := make([]protocol.Outcome, 0, len(order))
	for _, name := range order {
		res = append(res, final[name])
	}
	return res
}

// resolve picks the reported outcome for one item phase A failed on.
func resolve(pa protocol.Outcome, rec registry.Record, ps status.PhaseStatus) protocol.Outcome {
	switch {
	case rec.Source.Explicit() && rec.Status.Final():
		return rec.Outcome
	case ps.RemovalVerified:
		return synthesize(pa, rec, status.OutcomeSuccess, MsgManuallyRemoved)
	case !ps.Attempted():
		return synthesize(pa, rec, status.OutcomeManualRequired, MsgUserDeclined)
	default:
		return rec.Outcome
	}
}

func synthesize(pa protocol.Outcome, rec registry.Record, st status.Outcome, msg string) protocol.Outcome {
	masked := rec.MaskedName
	if masked == "" {
		masked = pa.MaskedName
	}
	path := rec.Path
	if path == "" {
		path = pa.Path
	}
	return protocol.Outcome{Name: pa.Name, MaskedName: masked, Path: path, Status: st, Message: msg}
}

// Summary counts final outcomes by kind.
type Summary struct {
	Total   int
	Removed int // success
	Manual  int // manual_required, ui_opened
	Failed  int // failure, still_exists and anything unknown
}

// Summarize counts outcomes by kind.
func Summarize(outcomes []protocol.Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case status.OutcomeSuccess:
			s.Removed++
		case status.OutcomeManualRequired, status.OutcomeUIOpened:
			s.Manual++
		default:
			s.Failed++
		}
	}
	return s
}

// String returns a one-line summary.
func (s Summary) String() string {
	return fmt.Sprintf("%d items: %d removed, %d need manual removal, %d failed", s.Total, s.Removed, s.Manual, s.Failed)
}

// NoThreats is the report shown when a scan finds nothing to clean.
func NoThreats() string {
	return "# Scan complete\n\nNo threats found. Your system looks clean.\n"
}
