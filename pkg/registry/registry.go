// Package registry holds the candidate items of the current run and the cleanup outcomes
// recorded against them. it is not safe for concurrent use; the workflow orchestrator owns
// the only instance per run and serialises access.
package registry

import (
	"github.com/grayhound-dev/grayhound/pkg/protocol"
)

// Source tells which step produced an outcome.
type Source string

// outcome sources.
const (
	SourcePhaseA       Source = "phase_a"
	SourcePhaseB       Source = "phase_b"
	SourcePhaseC       Source = "phase_c"
	SourceVerification Source = "verification"
)

// Explicit reports whether the outcome came from a user-driven escalation step (phase B or C).
func (s Source) Explicit() bool {
	return s == SourcePhaseB || s == SourcePhaseC
}

// CandidateItem is a scanned item plus the user's selection.
type CandidateItem struct {
	protocol.Item
	Clean bool `json:"clean"`
}

// Record is an outcome with its provenance.
type Record struct {
	protocol.Outcome
	Source Source `json:"source"`
}

// Registry keeps candidates and outcomes keyed by item identity, preserving first-seen order.
type Registry struct {
	items     []CandidateItem
	itemIdx   map[string]int
	records   []Record
	recordIdx map[string]int
}

// New makes an empty registry.
func New() *Registry {
	return &Registry{itemIdx: map[string]int{}, recordIdx: map[string]int{}}
}

// Reset drops all candidates and outcomes.
func (r *Registry) Reset() {
	r.items = nil
	r.itemIdx = map[string]int{}
	r.records = nil
	r.recordIdx = map[string]int{}
}

// SetItems replaces the candidate set with scanned items, all checked for cleaning.
// duplicate identities keep the first occurrence; empty names are dropped.
// masked_name defaults to the name when the agent omits it.
func (r *Registry) SetItems(items []protocol.Item) {
	r.items = make([]CandidateItem, 0, len(items))
	r.itemIdx = make(map[string]int, len(items))
	for _, it := range items {
		if it.Name == "" {
			continue
		}
		if _, ok := r.itemIdx[it.Name]; ok {
			continue
		}
		if it.MaskedName == "" {
			it.MaskedName = it.Name
		}
		r.itemIdx[it.Name] = len(r.items)
		r.items = append(r.items, CandidateItem{Item: it, Clean: true})
	}
}

// Items returns a copy of the candidates in scan order.
func (r *Registry) Items() []CandidateItem {
	res := make([]CandidateItem, len(r.items))
	copy(res, r.items)
	return res
}

// Item returns the candidate with the given identity.
func (r *Registry) Item(name string) (CandidateItem, bool) {
	idx, ok := r.itemIdx[name]
	if !ok {
		return CandidateItem{}, false
	}
	return r.items[idx], true
}

// Len returns the number of candidates.
func (r *Registry) Len() int {
	return len(r.items)
}

// SetClean sets the selection flag of one candidate. returns false for unknown identities.
func (r *Registry) SetClean(name string, clean bool) bool {
	idx, ok := r.itemIdx[name]
	if !ok {
		return false
	}
	r.items[idx].Clean = clean
	return true
}

// Toggle flips the selection flag of one candidate and returns the new value.
func (r *Registry) Toggle(name string) (clean, ok bool) {
	idx, ok := r.itemIdx[name]
	if !ok {
		return false, false
	}
	r.items[idx].Clean = !r.items[idx].Clean
	return r.items[idx].Clean, true
}

// SetAll sets the selection flag of every candidate.
func (r *Registry) SetAll(clean bool) {
	for i := range r.items {
		r.items[i].Clean = clean
	}
}

// Checked returns the wire items selected for cleaning, in scan order.
func (r *Registry) Checked() []protocol.Item {
	var res []protocol.Item
	for _, it := range r.items {
		if it.Clean {
			res = append(res, it.Item)
		}
	}
	return res
}

// Merge records outcomes from one source. a later outcome for an identity replaces the
// earlier one in place, so first-seen order is kept. outcomes without a name are ignored.
func (r *Registry) Merge(src Source, outcomes []protocol.Outcome) {
	for _, o := range outcomes {
		if o.Name == "" {
			continue
		}
		if o.MaskedName == "" {
			if it, ok := r.Item(o.Name); ok {
				o.MaskedName = it.MaskedName
			}
		}
		rec := Record{Outcome: o, Source: src}
		if idx, ok := r.recordIdx[o.Name]; ok {
			r.records[idx] = rec
			continue
		}
		r.recordIdx[o.Name] = len(r.records)
		r.records = append(r.records, rec)
	}
}

// Records returns a copy of all outcome records in first-seen order.
func (r *Registry) Records() []Record {
	res := make([]Record, len(r.records))
	copy(res, r.records)
	return res
}

// Outcome returns the latest record for an identity.
func (r *Registry) Outcome(name string) (Record, bool) {
	idx, ok := r.recordIdx[name]
	if !ok {
		return Record{}, false
	}
	return r.records[idx], true
}
