package views

import (
	"sync"

	"github.com/nodeflow/portstate/internal/keys"
	"github.com/nodeflow/portstate/portconfig"
	"github.com/nodeflow/portstate/store"
)

// PortLists is one node's root-level ports categorized by direction and
// system role (spec section 4.9's $nodePortLists).
type PortLists struct {
	FlowInputPortID    string
	FlowOutputPortID   string
	ErrorPortID        string
	ErrorMessagePortID string
	InputPortIDs       []string
	OutputPortIDs      []string
	PassthroughPortIDs []string
}

// NodePortLists computes spec section 4.9's categorization for every node
// present in the store's configs, over root-level ports only (ports with a
// ParentID are skipped -- they belong to their parent's subtree, not the
// node's port list).
func NodePortLists(s *store.Store) map[string]PortLists {
	out := map[string]PortLists{}
	for k, cfg := range s.AllConfigs() {
		if cfg == nil || cfg.ParentID != "" {
			continue
		}
		nodeID, portID := keys.MustFromKey(k)
		pl := out[nodeID]
		categorize(&pl, cfg, portID)
		out[nodeID] = pl
	}
	return out
}

func categorize(pl *PortLists, cfg *portconfig.Config, portID string) {
	switch {
	case portconfig.IsSystemErrorPort(cfg) && cfg.Key == "__error":
		pl.ErrorPortID = portID
	case portconfig.IsSystemErrorPort(cfg) && cfg.Key == "__errorMessage":
		pl.ErrorMessagePortID = portID
	case portconfig.IsSystemPort(cfg) && !portconfig.IsSystemErrorPort(cfg) && cfg.Direction == portconfig.DirectionInput:
		pl.FlowInputPortID = portID
	case portconfig.IsSystemPort(cfg) && !portconfig.IsSystemErrorPort(cfg) && cfg.Direction == portconfig.DirectionOutput:
		pl.FlowOutputPortID = portID
	default:
		switch cfg.Direction {
		case portconfig.DirectionInput:
			pl.InputPortIDs = append(pl.InputPortIDs, portID)
		case portconfig.DirectionOutput:
			pl.OutputPortIDs = append(pl.OutputPortIDs, portID)
		case portconfig.DirectionPassthrough:
			pl.PassthroughPortIDs = append(pl.PassthroughPortIDs, portID)
		}
	}
}

// PortListsGate wraps NodePortLists with spec section 4.9's init-mode gate:
// while flow init is in progress, the O(N) recompute is suppressed on every
// configs change and performed exactly once when init ends.
type PortListsGate struct {
	mu          sync.Mutex
	store       *store.Store
	initPending bool
	cached      map[string]PortLists
}

// NewPortListsGate returns a gate bound to s, with an empty cache.
func NewPortListsGate(s *store.Store) *PortListsGate {
	return &PortListsGate{store: s, cached: map[string]PortLists{}}
}

// FlowInitStart suppresses OnConfigsChanged recomputes until FlowInitEnd.
func (g *PortListsGate) FlowInitStart() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initPending = true
}

// FlowInitEnd resumes recompute and performs exactly one rebuild now.
func (g *PortListsGate) FlowInitEnd() {
	g.mu.Lock()
	g.initPending = false
	g.mu.Unlock()
	g.recompute()
}

// OnConfigsChanged should be called by the engine after every batch whose
// ConfigUpdates was non-empty. It recomputes immediately unless init mode is
// active, in which case it is a no-op (the eventual FlowInitEnd call
// performs the single rebuild).
func (g *PortListsGate) OnConfigsChanged() {
	g.mu.Lock()
	suppressed := g.initPending
	g.mu.Unlock()
	if suppressed {
		return
	}
	g.recompute()
}

func (g *PortListsGate) recompute() {
	lists := NodePortLists(g.store)
	g.mu.Lock()
	g.cached = lists
	g.mu.Unlock()
}

// Get returns the most recently computed PortLists snapshot.
func (g *PortListsGate) Get() map[string]PortLists {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]PortLists, len(g.cached))
	for k, v := range g.cached {
		out[k] = v
	}
	return out
}
