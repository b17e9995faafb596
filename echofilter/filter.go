// Package echofilter implements spec section 4.6: reconciling one incoming
// event against the pending-mutations ledger and current store state,
// producing a cleaned event (only the fields that actually change) plus any
// mutation confirmations the echo settles.
package echofilter

import (
	log "github.com/golang/glog"

	"github.com/nodeflow/portstate/internal/keys"
	"github.com/nodeflow/portstate/internal/xerrors"
	"github.com/nodeflow/portstate/pending"
	"github.com/nodeflow/portstate/portconfig"
	"github.com/nodeflow/portstate/portevent"
)

// Snapshot is the minimal read surface the filter needs from the granular
// stores to diff an incoming event against current state.
type Snapshot interface {
	Value(k keys.PortKey) (interface{}, bool)
	UI(k keys.PortKey) portevent.UIState
	Config(k keys.PortKey) *portconfig.Config
	Connections(k keys.PortKey) []portevent.Connection
}

// Confirmation is one pending mutation an echo has settled.
type Confirmation struct {
	PortKey    keys.PortKey
	MutationID string
}

// Filter applies spec section 4.6 to incoming events.
type Filter struct {
	Ledger  *pending.Ledger
	Enabled bool // migration mode != disabled, per spec section 6

	onDrop func(portKey keys.PortKey)
}

// New returns a Filter wired to ledger. enabled mirrors the migration-mode
// setting: when false, Process passes events through unchanged with no
// confirmations, per spec section 4.6's final paragraph.
func New(ledger *pending.Ledger, enabled bool) *Filter {
	return &Filter{Ledger: ledger, Enabled: enabled}
}

// OnDrop registers a callback invoked once per stale echo dropped in step 2.
// Used by internal/stats to count EchoesDropped without the filter depending
// on the stats package.
func (f *Filter) OnDrop(fn func(portKey keys.PortKey)) {
	f.onDrop = fn
}

// Process runs the three ordered steps of spec section 4.6 on one event,
// returning the events to keep processing (0 or 1) and any confirmations.
func (f *Filter) Process(event *portevent.Event, snap Snapshot) ([]*portevent.Event, []Confirmation) {
	if !f.Enabled {
		return []*portevent.Event{event}, nil
	}

	var confirmed []Confirmation
	ch := event.Changes

	// Step 1: mutation match.
	if ch.ValueSet && event.Version != nil {
		if m := f.Ledger.Match(event.PortKey, *event.Version, ch.Value); m != nil {
			confirmed = append(confirmed, Confirmation{PortKey: event.PortKey, MutationID: m.MutationID})
			residual := residualEvent(event, snap, true)
			if residual == nil {
				return nil, confirmed
			}
			return []*portevent.Event{residual}, confirmed
		}
	}

	// Step 2: staleness.
	if ch.ValueSet && event.Version != nil {
		if latest, ok := f.Ledger.HighestVersion(event.PortKey); ok && *event.Version < latest {
			log.V(2).Infof("%s: dropping echo on %s, version %d < pending %d", xerrors.StaleEcho, event.PortKey, *event.Version, latest)
			if f.onDrop != nil {
				f.onDrop(event.PortKey)
			}
			return nil, confirmed
		}
	}

	// Step 3: diff against current state, keep only changed fields.
	cleaned := residualEvent(event, snap, false)
	if cleaned == nil {
		return nil, confirmed
	}
	return []*portevent.Event{cleaned}, confirmed
}

// residualEvent returns a copy of event retaining only the Changes fields
// that differ from snap's current state, or nil if nothing differs.
// stripValue forces Value out of consideration even if it would otherwise
// differ (used for the mutation-match residual, which considers the value
// already applied locally).
func residualEvent(event *portevent.Event, snap Snapshot, stripValue bool) *portevent.Event {
	out := *event
	out.Changes = portevent.Changes{}
	changed := false

	if event.Changes.ValueSet && !stripValue {
		cur, _ := snap.Value(event.PortKey)
		if !keys.DeepEqual(cur, event.Changes.Value) {
			out.Changes.Value = event.Changes.Value
			out.Changes.ValueSet = true
			changed = true
		}
	}

	if event.Changes.UI != nil {
		cur := snap.UI(event.PortKey)
		merged := portevent.MergeUIStates(cur, event.Changes.UI)
		if !keys.DeepEqual(cur, merged) {
			out.Changes.UI = event.Changes.UI
			changed = true
		}
	}

	if event.Changes.Config != nil {
		cur := snap.Config(event.PortKey)
		if !keys.DeepEqual(cur, event.Changes.Config) {
			out.Changes.Config = event.Changes.Config
			changed = true
		}
	}

	if event.Changes.Connections != nil {
		cur := snap.Connections(event.PortKey)
		merged := portevent.DedupeConnections(cur, event.Changes.Connections)
		if !keys.DeepEqual(cur, merged) {
			out.Changes.Connections = event.Changes.Connections
			changed = true
		}
	}

	if !changed {
		return nil
	}
	return &out
}
