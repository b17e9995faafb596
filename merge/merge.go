// Package merge implements spec section 4.2: the pure reducer that collapses
// N events for a single port into one merged update, folding forward in
// version-then-timestamp order.
package merge

import (
	"sort"

	"github.com/nodeflow/portstate/portconfig"
	"github.com/nodeflow/portstate/portevent"
)

// Result is the merged, per-concern output of Merge. Zero-value fields mean
// "not touched by this merge"; UI/Connections are nil rather than empty for
// the same reason (callers must check len, not just nilness, for
// Connections since an event can carry an explicit empty slice).
type Result struct {
	Value       interface{}
	ValueSet    bool
	UI          portevent.UIState
	Config      *portconfig.Config
	Connections []portevent.Connection
	Version     int64
	HasVersion  bool
}

// Merge collapses a non-empty list of events for one portKey into a single
// Result, per spec section 4.2. Events are sorted ascending by version
// (versionless events compare equal to each other) then by timestamp before
// folding, so arrival order never matters, only causal order.
func Merge(events []*portevent.Event) Result {
	if len(events) == 0 {
		return Result{}
	}

	ordered := make([]*portevent.Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		vi, vj := ordered[i].Version, ordered[j].Version
		if vi != nil && vj != nil && *vi != *vj {
			return *vi < *vj
		}
		// Either both carry the same version, or at least one carries no
		// version at all -- spec section 4.2 treats versionless events as
		// comparing equal on the version axis, so timestamp breaks the tie.
		return ordered[i].Timestamp < ordered[j].Timestamp
	})

	var (
		out            Result
		highestVersion int64
		ui             portevent.UIState
		conns          []portevent.Connection
	)

	for _, ev := range ordered {
		ch := ev.Changes

		if ch.ValueSet {
			if ev.Version == nil || *ev.Version >= highestVersion {
				out.Value = ch.Value
				out.ValueSet = true
				if ev.Version != nil {
					highestVersion = *ev.Version
				}
			}
		}

		if ch.UI != nil {
			ui = portevent.MergeUIStates(ui, ch.UI)
		}

		if ch.Config != nil {
			if ev.Version == nil {
				out.Config = ch.Config
			} else if *ev.Version >= highestVersion {
				out.Config = ch.Config
				highestVersion = *ev.Version
			}
		}

		if ch.Connections != nil {
			conns = portevent.DedupeConnections(conns, ch.Connections)
		}

		if ev.Version != nil {
			if *ev.Version > out.Version || !out.HasVersion {
				out.Version = *ev.Version
				out.HasVersion = true
			}
		}
	}

	if len(ui) > 0 {
		out.UI = ui
	}
	if len(conns) > 0 {
		out.Connections = conns
	}

	return out
}
