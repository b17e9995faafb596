// Package portevent defines the wire-adjacent (but never serialized) types
// that flow through the ingest pipeline: PortUpdateEvent, PendingMutation,
// Connection and PortUIState, plus UI's merge policy (spec section 4.1's
// mergeUIStates).
package portevent

import (
	"github.com/nodeflow/portstate/internal/keys"
	"github.com/nodeflow/portstate/portconfig"
)

// Source identifies the origin of a PortUpdateEvent.
type Source string

const (
	SourceSubscription    Source = "subscription"
	SourceLocalOptimistic Source = "local-optimistic"
)

// Connection is one endpoint of a port's edge set.
type Connection struct {
	NodeID string `json:"nodeId"`
	PortID string `json:"portId"`
}

// UIState is a sparse bag of UI flags. Three keys are treated as nested
// objects that deep-merge one level instead of being replaced wholesale.
type UIState map[string]interface{}

// nestedUIKeys are the three whitelisted keys that merge one level deeper
// instead of shallow-replacing, per spec section 3.
var nestedUIKeys = map[string]bool{
	"textareaDimensions": true,
	"markdownStyles":     true,
	"htmlStyles":         true,
}

// MergeUIStates implements spec section 4.1's mergeUIStates: shallow-merge
// every key from b into a, except the three nested-object keys which
// deep-merge (shallow-merge of their own sub-map) one level deeper.
func MergeUIStates(a, b UIState) UIState {
	if a == nil && b == nil {
		return nil
	}
	out := make(UIState, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if nestedUIKeys[k] {
			out[k] = mergeNestedUIBlock(out[k], v)
			continue
		}
		out[k] = v
	}
	return out
}

func mergeNestedUIBlock(existing, incoming interface{}) interface{} {
	em, eok := existing.(map[string]interface{})
	im, iok := incoming.(map[string]interface{})
	if !iok {
		return incoming
	}
	if !eok {
		out := make(map[string]interface{}, len(im))
		for k, v := range im {
			out[k] = v
		}
		return out
	}
	out := make(map[string]interface{}, len(em)+len(im))
	for k, v := range em {
		out[k] = v
	}
	for k, v := range im {
		out[k] = v
	}
	return out
}

// Changes is the per-concern payload of a PortUpdateEvent. Any field left
// nil means that concern was not touched by this event; ValueSet
// distinguishes "value explicitly set to nil/zero" from "value not part of
// this event" since Value itself is an untyped interface{}.
type Changes struct {
	Value       interface{}
	ValueSet    bool
	UI          UIState
	Config      *portconfig.Config
	Connections []Connection
}

// Event is a single port update, either a server subscription echo or a
// local optimistic write (spec section 3's PortUpdateEvent).
type Event struct {
	PortKey   keys.PortKey
	NodeID    string
	PortID    string
	Timestamp int64
	Source    Source
	Version   *int64
	ClientID  string
	MutationID string
	Changes   Changes
}

// PendingMutation is one outstanding optimistic local write awaiting
// confirmation by an echo (spec section 3, section 4.5).
type PendingMutation struct {
	PortKey    keys.PortKey
	Value      interface{}
	Version    int64
	Timestamp  int64
	MutationID string
	ClientID   string
}

// DedupeConnections unions b into a on (NodeID, PortID), preserving the
// first-seen order, per spec section 3's connection-list invariant.
func DedupeConnections(a, b []Connection) []Connection {
	seen := make(map[Connection]bool, len(a))
	out := make([]Connection, 0, len(a)+len(b))
	for _, c := range a {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, c := range b {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
