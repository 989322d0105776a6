package render

import (
	"strconv"

	"github.com/gosuri/uitable"

	"github.com/grayhound-dev/grayhound/pkg/protocol"
	"github.com/grayhound-dev/grayhound/pkg/registry"
	"github.com/grayhound-dev/grayhound/pkg/status"
	"github.com/grayhound-dev/grayhound/pkg/workflow"
)

func newTable() *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 50
	table.Wrap = true
	return table
}

// CandidateTable lists scan candidates with their selection mark, numbered from 1.
func CandidateTable(items []registry.CandidateItem) string {
	table := newTable()
	table.RightAlign(3)
	table.AddRow("#", "Clean", "Program", "Risk", "Reason")
	for i, it := range items {
		mark := "[ ]"
		if it.Clean {
			mark = "[x]"
		}
		table.AddRow(strconv.Itoa(i+1), mark, it.DisplayName(), strconv.Itoa(it.RiskScore), it.Reason)
	}
	return table.String()
}

// EscalationTable lists items phase A did not remove with their phase B/C progress, numbered from 1.
func EscalationTable(items []workflow.EscalationItem) string {
	table := newTable()
	table.AddRow("#", "Program", "Progress", "Details")
	for i, it := range items {
		table.AddRow(strconv.Itoa(i+1), it.DisplayName, escalationLabel(it.Status), it.Message)
	}
	return table.String()
}

// escalationLabel describes where an item stands in phase B/C.
func escalationLabel(ps status.PhaseStatus) string {
	switch {
	case ps.RemovalVerified:
		return "removed (verified)"
	case ps.PhaseC == status.PhaseCSuccess:
		return "force removed"
	case ps.PhaseB == status.PhaseBCompleted:
		return "removed"
	case ps.PhaseB == status.PhaseBSkipped:
		return "skipped"
	case ps.PhaseC == status.PhaseCFailed:
		return "force removal failed"
	case ps.PhaseB == status.PhaseBVerificationFailed:
		return "still installed"
	case ps.PhaseB == status.PhaseBInProgress:
		return "settings opened"
	default:
		return "pending"
	}
}

// CatalogTable lists the agent's catalog entries.
func CatalogTable(entries []protocol.CatalogEntry) string {
	table := newTable()
	table.RightAlign(1)
	table.AddRow("Program", "Risk", "Ignored", "Reason")
	for _, e := range entries {
		ignored := ""
		if e.Ignored {
			ignored = "yes"
		}
		name := e.MaskedName
		if name == "" {
			name = e.Name
		}
		table.AddRow(name, strconv.Itoa(e.RiskScore), ignored, e.Reason)
	}
	return table.String()
}
