// Package keys implements the PortKey codec, the child/array-element portId
// helpers, and the deep-equality primitive that every other package in the
// engine builds on.
package keys

import (
	"strconv"
	"strings"

	log "github.com/golang/glog"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/nodeflow/portstate/internal/xerrors"
)

// PortKey is the canonical cross-store join key: "<nodeId>:<portId>".
type PortKey string

// ToKey builds the canonical PortKey for a nodeId/portId pair.
func ToKey(nodeID, portID string) PortKey {
	return PortKey(nodeID + ":" + portID)
}

// FromKey splits a PortKey on its LAST ':', since nodeIds may themselves
// contain ':'. Returns xerrors.MalformedKey if no ':' is present.
func FromKey(k PortKey) (nodeID, portID string, err error) {
	s := string(k)
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return "", "", xerrors.New(xerrors.MalformedKey, s, "no ':' separator")
	}
	return s[:i], s[i+1:], nil
}

// MustFromKey is FromKey for call sites that have already validated the key
// (e.g. keys pulled out of a store's own map). It logs and returns zero
// values rather than panicking, consistent with spec section 7's policy that
// MalformedKey only escapes from developer-supplied input.
func MustFromKey(k PortKey) (nodeID, portID string) {
	nodeID, portID, err := FromKey(k)
	if err != nil {
		log.Warningf("%v", err)
		return "", ""
	}
	return nodeID, portID
}

// IsChildPortID reports whether portID denotes a nested port: an object
// field ("parent.field") or an array element ("parent[N]").
func IsChildPortID(portID string) bool {
	return strings.ContainsAny(portID, ".[")
}

// ParentPortID returns the portId of the immediate structural parent implied
// by portID's own encoding, and true if one exists. This is a pure string
// operation; it does not consult any store.
func ParentPortID(portID string) (string, bool) {
	if i := strings.LastIndexByte(portID, '['); i >= 0 && strings.HasSuffix(portID, "]") {
		return portID[:i], true
	}
	if i := strings.LastIndexByte(portID, '.'); i >= 0 {
		return portID[:i], true
	}
	return "", false
}

// ArrayElementIndex parses the trailing "[N]" off portID, returning
// xerrors.InvalidArrayIndex if portID has that shape but N is not a base-10
// non-negative integer.
func ArrayElementIndex(portID string) (int, bool, error) {
	if !strings.HasSuffix(portID, "]") {
		return 0, false, nil
	}
	open := strings.LastIndexByte(portID, '[')
	if open < 0 {
		return 0, false, nil
	}
	n, err := strconv.Atoi(portID[open+1 : len(portID)-1])
	if err != nil || n < 0 {
		return 0, true, xerrors.New(xerrors.InvalidArrayIndex, portID, "index is not a non-negative integer")
	}
	return n, true, nil
}

// DeepEqual is the structural equality primitive used throughout the engine:
// pending-mutation matching and echo diffing (§4.6), and subscription gating
// (§4.11).
func DeepEqual(a, b interface{}) bool {
	return cmp.Equal(a, b, cmpopts.EquateEmpty())
}
