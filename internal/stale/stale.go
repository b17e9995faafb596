// Package stale implements spec section 4.4's stale-element detector: for
// an incoming array-port event, find every existing element key so the
// batch processor can mark the whole old range for removal before the
// expansion recreates the surviving indices, using a trie prefix search to
// find every path sharing a prefix in one call instead of a per-key scan.
package stale

import (
	"github.com/derekparker/trie"

	"github.com/nodeflow/portstate/internal/keys"
)

// Candidates returns the set of existing portIds (not keys) under nodeID
// whose portId denotes an element of the array at parentPortID, i.e.
// matches `parentPortID[N]` for some N. existingPortIDs is the full set of
// portIds currently live for nodeID (nodePortKeys, decoded).
func Candidates(existingPortIDs []string, parentPortID string) []string {
	t := trie.New()
	for _, p := range existingPortIDs {
		t.Add(p, nil)
	}

	prefix := parentPortID + "["
	var out []string
	for _, node := range t.PrefixSearch(prefix) {
		if isElementOf(node, parentPortID) {
			out = append(out, node)
		}
	}
	return out
}

// CandidateKeys is Candidates lifted to PortKeys for a given nodeID, the
// shape the batch processor actually needs.
func CandidateKeys(existingKeys []keys.PortKey, nodeID, parentPortID string) []keys.PortKey {
	byPortID := make(map[string]keys.PortKey, len(existingKeys))
	portIDs := make([]string, 0, len(existingKeys))
	for _, k := range existingKeys {
		kn, portID := keys.MustFromKey(k)
		if kn != nodeID {
			continue
		}
		byPortID[portID] = k
		portIDs = append(portIDs, portID)
	}

	var out []keys.PortKey
	for _, portID := range Candidates(portIDs, parentPortID) {
		out = append(out, byPortID[portID])
	}
	return out
}

// isElementOf reports whether portID is exactly "parentPortID[<digits>]",
// rejecting a sibling like "parentPortIDExtra[0]" that merely shares the
// trie prefix "parentPortID[".
func isElementOf(portID, parentPortID string) bool {
	suffix := portID[len(parentPortID):]
	if len(suffix) < 3 || suffix[0] != '[' || suffix[len(suffix)-1] != ']' {
		return false
	}
	digits := suffix[1 : len(suffix)-1]
	if digits == "" {
		return false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
