// Package batch implements spec section 4.7: the pure function that turns a
// slice of incoming events into a ProcessedBatch ready for atomic store
// application, wiring together the echo filter, subtree expander, stale
// detector and merge function.
package batch

import (
	"github.com/nodeflow/portstate/echofilter"
	"github.com/nodeflow/portstate/expand"
	"github.com/nodeflow/portstate/internal/keys"
	"github.com/nodeflow/portstate/internal/stale"
	"github.com/nodeflow/portstate/merge"
	"github.com/nodeflow/portstate/portconfig"
	"github.com/nodeflow/portstate/portevent"
	"github.com/nodeflow/portstate/store"
)

// NodePortKeys is the read surface batch needs into the nodePortKeys index
// to seed the stale-element detector (spec section 4.4).
type NodePortKeys interface {
	NodePortKeys(nodeID string) []keys.PortKey
}

// Process implements spec section 4.7 steps 1-8. filter may be nil, meaning
// the echo/optimistic filter is skipped entirely (equivalent to a disabled
// migration mode); callers normally pass an *echofilter.Filter.
func Process(events []*portevent.Event, snap echofilter.Snapshot, filter *echofilter.Filter, nodePortKeys NodePortKeys) (store.ProcessedBatch, []echofilter.Confirmation) {
	var empty store.ProcessedBatch
	if len(events) == 0 {
		return empty, nil
	}

	// Step 1 (echo filter) is folded into the same pass as stale-candidate
	// collection: both require looking at each raw event once before
	// expansion.
	var (
		filtered         []*portevent.Event
		allConfirmations []echofilter.Confirmation
		staleCandidates  = map[keys.PortKey]struct{}{}
	)

	for _, ev := range events {
		kept := []*portevent.Event{ev}
		var confirmations []echofilter.Confirmation
		if filter != nil {
			kept, confirmations = filter.Process(ev, snap)
		}
		allConfirmations = append(allConfirmations, confirmations...)

		for _, k := range kept {
			filtered = append(filtered, k)

			// Step 2: collect stale candidates from every array-port event,
			// per spec section 4.4, before expansion recreates the range.
			if k.Changes.Config != nil && k.Changes.Config.Type == portconfig.TypeArray {
				existing := nodePortKeys.NodePortKeys(k.NodeID)
				for _, sk := range stale.CandidateKeys(existing, k.NodeID, k.PortID) {
					staleCandidates[sk] = struct{}{}
				}
			}
		}
	}

	if len(filtered) == 0 {
		return empty, allConfirmations
	}

	// Step 3: expand.
	var expanded []*portevent.Event
	for _, ev := range filtered {
		expanded = append(expanded, expand.Children(ev)...)
	}

	// Step 4: group by portKey.
	groups := make(map[keys.PortKey][]*portevent.Event)
	var order []keys.PortKey
	for _, ev := range expanded {
		if _, ok := groups[ev.PortKey]; !ok {
			order = append(order, ev.PortKey)
		}
		groups[ev.PortKey] = append(groups[ev.PortKey], ev)
	}

	// Step 5: merge per group, splitting into per-concern maps.
	out := store.ProcessedBatch{
		ValueUpdates:      map[keys.PortKey]interface{}{},
		UIUpdates:         map[keys.PortKey]portevent.UIState{},
		ConfigUpdates:     map[keys.PortKey]*portconfig.Config{},
		ConnectionUpdates: map[keys.PortKey][]portevent.Connection{},
		VersionUpdates:    map[keys.PortKey]int64{},
		HierarchyUpdates: store.Hierarchy{
			Parents:  map[keys.PortKey]keys.PortKey{},
			Children: map[keys.PortKey][]keys.PortKey{},
		},
	}

	for _, k := range order {
		merged := merge.Merge(groups[k])
		if merged.ValueSet {
			out.ValueUpdates[k] = merged.Value
		}
		if len(merged.UI) > 0 {
			out.UIUpdates[k] = merged.UI
		}
		if merged.Config != nil {
			out.ConfigUpdates[k] = merged.Config
		}
		if len(merged.Connections) > 0 {
			out.ConnectionUpdates[k] = merged.Connections
		}
		if merged.HasVersion {
			out.VersionUpdates[k] = merged.Version
		}

		// Step 6: derive hierarchy from merged configs.
		if merged.Config != nil && merged.Config.ParentID != "" {
			nodeID, _, _ := keys.FromKey(k)
			parentKey := keys.ToKey(nodeID, merged.Config.ParentID)
			out.HierarchyUpdates.Parents[k] = parentKey
			out.HierarchyUpdates.Children[parentKey] = append(out.HierarchyUpdates.Children[parentKey], k)
		}
	}

	// Step 7: finalize stale set -- drop anything recreated in this batch.
	for k := range out.ConfigUpdates {
		delete(staleCandidates, k)
	}
	for k := range staleCandidates {
		out.StalePortKeys = append(out.StalePortKeys, k)
	}

	return out, allConfirmations
}
