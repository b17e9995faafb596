// Package wiring implements spec section 4.10: the node lifecycle rules
// that turn a collaborator Node's current ports into PortUpdateEvents on
// initial load, and the thin adapters that synthesize events for dynamic
// port add/remove. Port and Node are the minimal-surface collaborator
// contracts a host implements without this package owning the host's
// domain types.
package wiring

import (
	"github.com/nodeflow/portstate/internal/keys"
	"github.com/nodeflow/portstate/portconfig"
	"github.com/nodeflow/portstate/portevent"
)

// Port is the collaborator contract for a single port, spec section 6's
// "Node must expose ... ports each supporting id, getConfig(), getValue()".
type Port interface {
	PortID() string
	Config() *portconfig.Config
	Value() interface{}
}

// UIProvider is an optional Port extension; ports that don't implement it
// are extracted with no UI payload.
type UIProvider interface {
	UI() portevent.UIState
}

// ConnectionsProvider is an optional Port extension; ports that don't
// implement it are extracted with no connections payload.
type ConnectionsProvider interface {
	Connections() []portevent.Connection
}

// Node is the collaborator contract, spec section 6: "a node must expose
// id, getVersion() -> int, an iterable ports at the root level".
type Node interface {
	ID() string
	Version() int64
	Ports() []Port
}

// ChildPortsFunc yields a port's immediate structural children, spec
// section 6's "getChildPorts(port) -> iterable<port>".
type ChildPortsFunc func(p Port) []Port

// Extract recursively traverses every port of node (root ports, then their
// children via childPorts, recursively) producing one PortUpdateEvent per
// port with that port's current value/config/ui/connections and the node's
// version, per spec section 4.10's initial-extraction rule. The resulting
// events still flow through the normal pipeline (echo filter, expansion,
// merge) like any other event; expansion additionally deriving the same
// descendants from an object/array config's schema is harmless, merge is
// idempotent for duplicate child events describing the same state.
func Extract(node Node, childPorts ChildPortsFunc, timestamp int64) []*portevent.Event {
	var out []*portevent.Event
	version := node.Version()
	for _, p := range node.Ports() {
		out = appendPortAndChildren(out, node, p, "", childPorts, version, timestamp)
	}
	return out
}

func appendPortAndChildren(out []*portevent.Event, node Node, p Port, parentPortID string, childPorts ChildPortsFunc, version, timestamp int64) []*portevent.Event {
	cfg := portconfig.ExtractCore(p.Config(), node.ID(), parentPortID)
	cfg.ID = p.PortID()

	var ui portevent.UIState
	if up, ok := p.(UIProvider); ok {
		ui = up.UI()
	}
	var conns []portevent.Connection
	if cp, ok := p.(ConnectionsProvider); ok {
		conns = cp.Connections()
	}

	out = append(out, &portevent.Event{
		PortKey:   keys.ToKey(node.ID(), p.PortID()),
		NodeID:    node.ID(),
		PortID:    p.PortID(),
		Timestamp: timestamp,
		Source:    portevent.SourceSubscription,
		Version:   &version,
		Changes: portevent.Changes{
			Value:       p.Value(),
			ValueSet:    true,
			Config:      cfg,
			UI:          ui,
			Connections: conns,
		},
	})

	for _, child := range childPorts(p) {
		out = appendPortAndChildren(out, node, child, p.PortID(), childPorts, version, timestamp)
	}
	return out
}

// RemovePortsBatchEvent describes nodeRemoved's cleanup: every key currently
// attributed to nodeID (spec section 4.10's node-removal wiring); the
// caller passes this straight to store.RemovePortsBatch and then drops the
// nodeId's own nodePortKeys entry (handled by store.RemoveNode already).
type RemovePortsBatchEvent struct {
	NodeID string
	Keys   []keys.PortKey
}

// ArrayElementAppended synthesizes the PortUpdateEvent for appending one
// element to a mutable array port: a full re-send of the array port's
// value/config, which the normal pipeline will expand and reindex, per spec
// section 4.10's dynamic-port-add rule.
func ArrayElementAppended(nodeID, arrayPortID string, newValue []interface{}, cfg *portconfig.Config, clientID, mutationID string, version *int64, timestamp int64) *portevent.Event {
	return &portevent.Event{
		PortKey:    keys.ToKey(nodeID, arrayPortID),
		NodeID:     nodeID,
		PortID:     arrayPortID,
		Timestamp:  timestamp,
		Source:     portevent.SourceLocalOptimistic,
		Version:    version,
		ClientID:   clientID,
		MutationID: mutationID,
		Changes: portevent.Changes{
			Value:    newValue,
			ValueSet: true,
			Config:   cfg,
		},
	}
}

// ArrayElementRemoved is ArrayElementAppended's mirror for deleting an
// element: the caller has already spliced newValue down to the remaining
// elements; the stale-element detector (internal/stale, wired in by the
// batch processor) does the reindex-vs-delete distinction.
func ArrayElementRemoved(nodeID, arrayPortID string, newValue []interface{}, cfg *portconfig.Config, clientID, mutationID string, version *int64, timestamp int64) *portevent.Event {
	return ArrayElementAppended(nodeID, arrayPortID, newValue, cfg, clientID, mutationID, version, timestamp)
}

// ObjectFieldAdded synthesizes the event for adding a new field to a
// mutable object port: a full re-send of the object port's value/config so
// the normal object-expansion path picks up the new field.
func ObjectFieldAdded(nodeID, objectPortID string, newValue map[string]interface{}, cfg *portconfig.Config, clientID, mutationID string, version *int64, timestamp int64) *portevent.Event {
	return &portevent.Event{
		PortKey:    keys.ToKey(nodeID, objectPortID),
		NodeID:     nodeID,
		PortID:     objectPortID,
		Timestamp:  timestamp,
		Source:     portevent.SourceLocalOptimistic,
		Version:    version,
		ClientID:   clientID,
		MutationID: mutationID,
		Changes: portevent.Changes{
			Value:    newValue,
			ValueSet: true,
			Config:   cfg,
		},
	}
}
