package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grayhound-dev/grayhound/pkg/protocol"
	"github.com/grayhound-dev/grayhound/pkg/registry"
	"github.com/grayhound-dev/grayhound/pkg/status"
)

func rec(name string, st status.Outcome, src registry.Source, msg string) registry.Record {
	return registry.Record{Outcome: protocol.Outcome{Name: name, MaskedName: name + "*", Status: st, Message: msg}, Source: src}
}

func TestAssemble(t *testing.T) {
	phaseA := []protocol.Outcome{
		{Name: "ok", Status: status.OutcomeSuccess},
		{Name: "declined", Status: status.OutcomeFailure},
		{Name: "skipped", Status: status.OutcomeFailure},
		{Name: "verified", Status: status.OutcomeFailure},
		{Name: "forced", Status: status.OutcomeFailure},
		{Name: "guided", Status: status.OutcomeManualRequired},
		{Name: "pending", Status: status.OutcomeFailure},
		{Name: "opened", Status: status.OutcomeFailure},
	}
	records := []registry.Record{
		rec("ok", status.OutcomeSuccess, registry.SourcePhaseA, ""),
		rec("declined", status.OutcomeFailure, registry.SourcePhaseA, "denied"),
		rec("skipped", status.OutcomeFailure, registry.SourcePhaseA, "denied"),
		rec("verified", status.OutcomeSuccess, registry.SourceVerification, "not found"),
		rec("forced", status.OutcomeSuccess, registry.SourcePhaseC, "force removed"),
		rec("guided", status.OutcomeSuccess, registry.SourcePhaseB, "uninstalled"),
		rec("pending", status.OutcomeStillExists, registry.SourceVerification, "still there"),
		rec("opened", status.OutcomeUIOpened, registry.SourcePhaseB, "settings opened"),
	}
	ps := map[string]status.PhaseStatus{
		"ok":       {PhaseA: status.PhaseASuccess},
		"declined": {PhaseA: status.PhaseAFailed},
		"skipped":  {PhaseA: status.PhaseAFailed, PhaseB: status.PhaseBSkipped},
		"verified": {PhaseA: status.PhaseAFailed, PhaseB: status.PhaseBCompleted, RemovalVerified: true},
		"forced":   {PhaseA: status.PhaseAFailed, PhaseC: status.PhaseCSuccess},
		"guided":   {PhaseA: status.PhaseAFailed, PhaseB: status.PhaseBCompleted, RemovalVerified: true},
		"pending":  {PhaseA: status.PhaseAFailed, PhaseB: status.PhaseBVerificationFailed},
		"opened":   {PhaseA: status.PhaseAFailed, PhaseB: status.PhaseBSkipped},
	}

	res := Assemble(Input{Records: records, Status: ps, PhaseA: phaseA})
	require.Len(t, res, 8)

	byName := map[string]protocol.Outcome{}
	for i, o := range res {
		assert.Equal(t, phaseA[i].Name, o.Name, "first-seen order")
		byName[o.Name] = o
	}

	assert.Equal(t, status.OutcomeSuccess, byName["ok"].Status)

	assert.Equal(t, status.OutcomeManualRequired, byName["declined"].Status)
	assert.Equal(t, MsgUserDeclined, byName["declined"].Message)
	assert.Equal(t, "declined*", byName["declined"].MaskedName)

	assert.Equal(t, status.OutcomeManualRequired, byName["skipped"].Status)
	assert.Equal(t, MsgUserDeclined, byName["skipped"].Message)

	assert.Equal(t, status.OutcomeSuccess, byName["verified"].Status)
	assert.Equal(t, MsgManuallyRemoved, byName["verified"].Message)

	assert.Equal(t, "force removed", byName["forced"].Message, "explicit phase C outcome kept")
	assert.Equal(t, "uninstalled", byName["guided"].Message, "explicit phase B outcome wins over verification")

	assert.Equal(t, status.OutcomeStillExists, byName["pending"].Status, "attempted but unresolved keeps latest")

	assert.Equal(t, status.OutcomeManualRequired, byName["opened"].Status, "ui_opened does not settle a skipped item")
	assert.Equal(t, MsgUserDeclined, byName["opened"].Message)
}

func TestAssemble_PhaseAOnlyInList(t *testing.T) {
	// phase-A failure with no recorded outcome still gets a synthesized entry
	res := Assemble(Input{
		PhaseA: []protocol.Outcome{{Name: "x", MaskedName: "x*", Path: "/x", Status: status.OutcomeFailure}},
		Status: map[string]status.PhaseStatus{"x": {PhaseA: status.PhaseAFailed}},
	})
	require.Len(t, res, 1)
	assert.Equal(t, protocol.Outcome{Name: "x", MaskedName: "x*", Path: "/x", Status: status.OutcomeManualRequired, Message: MsgUserDeclined}, res[0])
}

func TestAssemble_Deterministic(t *testing.T) {
	in := Input{
		Records: []registry.Record{
			rec("a", status.OutcomeFailure, registry.SourcePhaseA, ""),
			rec("b", status.OutcomeSuccess, registry.SourcePhaseA, ""),
			rec("c", status.OutcomeSuccess, registry.SourceVerification, ""),
		},
		Status: map[string]status.PhaseStatus{
			"a": {PhaseA: status.PhaseAFailed},
			"b": {PhaseA: status.PhaseASuccess},
			"c": {PhaseA: status.PhaseAFailed, PhaseB: status.PhaseBCompleted, RemovalVerified: true},
		},
		PhaseA: []protocol.Outcome{
			{Name: "a", Status: status.OutcomeFailure},
			{Name: "b", Status: status.OutcomeSuccess},
			{Name: "c", Status: status.OutcomeFailure},
		},
	}
	recordsBefore := append([]registry.Record(nil), in.Records...)

	first := Assemble(in)
	second := Assemble(in)
	assert.Equal(t, first, second)
	assert.ElementsMatch(t, first, second)
	assert.Equal(t, recordsBefore, in.Records, "input not mutated")
}

func TestAssemble_Empty(t *testing.T) {
	assert.Empty(t, Assemble(Input{}))
}

func TestSummarize(t *testing.T) {
	s := Summarize([]protocol.Outcome{
		{Status: status.OutcomeSuccess},
		{Status: status.OutcomeSuccess},
		{Status: status.OutcomeManualRequired},
		{Status: status.OutcomeUIOpened},
		{Status: status.OutcomeFailure},
		{Status: status.OutcomeStillExists},
	})
	assert.Equal(t, Summary{Total: 6, Removed: 2, Manual: 2, Failed: 2}, s)
	assert.Equal(t, "6 items: 2 removed, 2 need manual removal, 2 failed", s.String())
	assert.Contains(t, NoThreats(), "No threats found")
}
