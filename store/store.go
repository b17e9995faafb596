// Package store implements spec section 4.8: the six granular per-concern
// maps plus the two indices (nodePortKeys, hierarchy), each with its own
// merge policy, applied atomically from a single ProcessedBatch.
package store

import (
	"reflect"
	"sort"
	"sync"

	log "github.com/golang/glog"

	"github.com/nodeflow/portstate/internal/keys"
	"github.com/nodeflow/portstate/internal/xerrors"
	"github.com/nodeflow/portstate/portconfig"
	"github.com/nodeflow/portstate/portevent"
)

// Hierarchy is the up/down linkage between a port and its structural
// children, kept separately from configs so cascade removal and the
// descendants derived view don't need to walk parentId strings at read time.
type Hierarchy struct {
	Parents  map[keys.PortKey]keys.PortKey
	Children map[keys.PortKey][]keys.PortKey
}

// ProcessedBatch is the per-concern decomposition of a batch of events,
// produced by the batch package and applied atomically here (spec section
// 4.7's ProcessedBatch).
type ProcessedBatch struct {
	ValueUpdates      map[keys.PortKey]interface{}
	UIUpdates         map[keys.PortKey]portevent.UIState
	ConfigUpdates     map[keys.PortKey]*portconfig.Config
	ConnectionUpdates map[keys.PortKey][]portevent.Connection
	VersionUpdates    map[keys.PortKey]int64
	HierarchyUpdates  Hierarchy
	StalePortKeys     []keys.PortKey
}

// Store holds all granular state for the port-state engine. It is safe for
// concurrent read/write; the engine itself is cooperative single-threaded
// per spec section 5, but exported accessors are still guarded so a host
// embedding the engine in a goroutine-per-subscriber model (e.g. behind an
// RPC server) cannot corrupt it.
type Store struct {
	mu sync.RWMutex

	values      map[keys.PortKey]interface{}
	ui          map[keys.PortKey]portevent.UIState
	configs     map[keys.PortKey]*portconfig.Config
	connections map[keys.PortKey][]portevent.Connection
	versions    map[keys.PortKey]int64

	parents  map[keys.PortKey]keys.PortKey
	children map[keys.PortKey][]keys.PortKey

	nodePortKeys map[string]map[keys.PortKey]struct{}

	onCyclePruned func(keys.PortKey)
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		values:       make(map[keys.PortKey]interface{}),
		ui:           make(map[keys.PortKey]portevent.UIState),
		configs:      make(map[keys.PortKey]*portconfig.Config),
		connections:  make(map[keys.PortKey][]portevent.Connection),
		versions:     make(map[keys.PortKey]int64),
		parents:      make(map[keys.PortKey]keys.PortKey),
		children:     make(map[keys.PortKey][]keys.PortKey),
		nodePortKeys: make(map[string]map[keys.PortKey]struct{}),
	}
}

// OnCyclePruned registers a callback invoked with the revisited key each
// time cascade removal finds a child link back to a key on the path it was
// reached through. Used by internal/stats to count
// CycleInHierarchy occurrences without the store depending on the stats
// package.
func (s *Store) OnCyclePruned(fn func(k keys.PortKey)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCyclePruned = fn
}

// --- per-concern readers (spec section 4.11's raw data sources) ---

func (s *Store) Value(k keys.PortKey) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[k]
	return v, ok
}

func (s *Store) UI(k keys.PortKey) portevent.UIState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ui[k]
}

func (s *Store) Config(k keys.PortKey) *portconfig.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.configs[k]
}

func (s *Store) Connections(k keys.PortKey) []portevent.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connections[k]
}

func (s *Store) Version(k keys.PortKey) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[k]
	return v, ok
}

func (s *Store) Parent(k keys.PortKey) (keys.PortKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parents[k]
	return p, ok
}

// Children returns a copy of the canonically-ordered child key slice for parent.
func (s *Store) Children(parent keys.PortKey) []keys.PortKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.children[parent]
	if len(src) == 0 {
		return nil
	}
	out := make([]keys.PortKey, len(src))
	copy(out, src)
	return out
}

// NodePortKeys returns a copy of the set of keys currently attributed to nodeID.
func (s *Store) NodePortKeys(nodeID string) []keys.PortKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.nodePortKeys[nodeID]
	out := make([]keys.PortKey, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// AllConfigs returns a snapshot copy of the configs map, used by derived
// views that must scan every root port (spec section 4.9).
func (s *Store) AllConfigs() map[keys.PortKey]*portconfig.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[keys.PortKey]*portconfig.Config, len(s.configs))
	for k, v := range s.configs {
		out[k] = v
	}
	return out
}

// --- apply ---

// Apply atomically applies a ProcessedBatch to every store, in the fixed
// intra-tick order spec section 4.7 names: value, UI, config, connections,
// version, hierarchy, stale removals. Subscribers must not assume any
// ordering within the tick; the order here only needs to be consistent, not
// meaningful.
func (s *Store) Apply(batch ProcessedBatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range batch.ValueUpdates {
		s.values[k] = v
	}
	for k, v := range batch.UIUpdates {
		s.ui[k] = portevent.MergeUIStates(s.ui[k], v)
	}
	for k, v := range batch.ConfigUpdates {
		if existing, ok := s.configs[k]; ok && existing != nil {
			s.configs[k] = mergeConfig(existing, v)
		} else {
			s.configs[k] = v
		}
		s.indexNodePortKeyLocked(k)
	}
	for k, v := range batch.ConnectionUpdates {
		s.connections[k] = v
	}
	for k, v := range batch.VersionUpdates {
		s.versions[k] = v
	}

	for child, parent := range batch.HierarchyUpdates.Parents {
		s.parents[child] = parent
	}
	for parent, incoming := range batch.HierarchyUpdates.Children {
		s.children[parent] = sortChildren(unionChildren(s.children[parent], incoming))
	}

	s.removeBatchLocked(batch.StalePortKeys)
}

// mergeConfig implements the configs store's merge policy: shallow-merge
// partial fields over the existing config. Since portconfig.Config is a
// flat struct (no pointer-to-partial representation), "shallow merge" here
// means the incoming config's non-zero fields win and its zero-valued fields
// leave the existing values in place.
func mergeConfig(existing, incoming *portconfig.Config) *portconfig.Config {
	if incoming == nil {
		return existing
	}
	out := *existing
	dst := reflect.ValueOf(&out).Elem()
	src := reflect.ValueOf(incoming).Elem()
	for i := 0; i < src.NumField(); i++ {
		if f := src.Field(i); !f.IsZero() {
			dst.Field(i).Set(f)
		}
	}
	return &out
}

func unionChildren(existing, incoming []keys.PortKey) []keys.PortKey {
	seen := make(map[keys.PortKey]bool, len(existing)+len(incoming))
	out := make([]keys.PortKey, 0, len(existing)+len(incoming))
	for _, k := range existing {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, k := range incoming {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// sortChildren implements spec section 3's canonical child order: siblings
// matching `prefix[N]` sort by numeric N, everything else sorts
// lexicographically by portId, with element siblings and non-element
// siblings kept in their own relative groups (elements never interleave
// with non-element siblings since they share a literal "[" that no
// non-element portId segment contains at the same depth).
func sortChildren(children []keys.PortKey) []keys.PortKey {
	type entry struct {
		key    keys.PortKey
		portID string
		idx    int
		isElem bool
	}
	entries := make([]entry, 0, len(children))
	for _, k := range children {
		_, portID := keys.MustFromKey(k)
		idx, isElem, err := keys.ArrayElementIndex(portID)
		if err != nil {
			log.Warningf("%s: %v", xerrors.InvalidArrayIndex, err)
			isElem = false
		}
		entries = append(entries, entry{key: k, portID: portID, idx: idx, isElem: isElem})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.isElem && b.isElem {
			return a.idx < b.idx
		}
		if a.isElem != b.isElem {
			return !a.isElem // non-element siblings first, matching alphabetical precedence over bracketed ones for mixed groups
		}
		return a.portID < b.portID
	})
	out := make([]keys.PortKey, len(entries))
	for i, e := range entries {
		out[i] = e.key
	}
	return out
}

func (s *Store) indexNodePortKeyLocked(k keys.PortKey) {
	nodeID, _ := keys.MustFromKey(k)
	set := s.nodePortKeys[nodeID]
	if set == nil {
		set = make(map[keys.PortKey]struct{})
		s.nodePortKeys[nodeID] = set
	}
	set[k] = struct{}{}
}

// RemovePortsBatch deletes every key in ks from every leaf store, plus the
// cascade: every transitive descendant (via hierarchy.children) is removed
// too, and each removed port is unlinked from its parent's children set
// (spec section 4.8's removePortsBatch).
func (s *Store) RemovePortsBatch(ks []keys.PortKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeBatchLocked(ks)
}

func (s *Store) removeBatchLocked(ks []keys.PortKey) {
	if len(ks) == 0 {
		return
	}

	toRemove := make(map[keys.PortKey]struct{}, len(ks))
	var queue []keys.PortKey
	for _, k := range ks {
		if _, ok := toRemove[k]; !ok {
			toRemove[k] = struct{}{}
			queue = append(queue, k)
		}
	}
	visited := make(map[keys.PortKey]int)
	via := make(map[keys.PortKey]keys.PortKey)
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		visited[k]++
		if visited[k] > 1 {
			log.Warningf("%s: %s revisited during cascade removal, pruning", xerrors.CycleInHierarchy, k)
			if s.onCyclePruned != nil {
				s.onCyclePruned(k)
			}
			continue
		}
		for _, child := range s.children[k] {
			if _, ok := toRemove[child]; !ok {
				toRemove[child] = struct{}{}
				via[child] = k
				queue = append(queue, child)
				continue
			}
			// A child that is k itself or a key k was reached through is a
			// cycle in the children links.
			for a, ok := k, true; ok; a, ok = via[a] {
				if a == child {
					log.Warningf("%s: %s revisited during cascade removal, pruning", xerrors.CycleInHierarchy, child)
					if s.onCyclePruned != nil {
						s.onCyclePruned(child)
					}
					break
				}
			}
		}
	}

	for k := range toRemove {
		delete(s.values, k)
		delete(s.ui, k)
		delete(s.configs, k)
		delete(s.connections, k)
		delete(s.versions, k)
		delete(s.children, k)

		if parent, ok := s.parents[k]; ok {
			s.children[parent] = removeKey(s.children[parent], k)
			if len(s.children[parent]) == 0 {
				delete(s.children, parent)
			}
		}
		delete(s.parents, k)

		nodeID, _ := keys.MustFromKey(k)
		if set := s.nodePortKeys[nodeID]; set != nil {
			delete(set, k)
			if len(set) == 0 {
				delete(s.nodePortKeys, nodeID)
			}
		}
	}
}

func removeKey(list []keys.PortKey, k keys.PortKey) []keys.PortKey {
	out := list[:0]
	for _, e := range list {
		if e != k {
			out = append(out, e)
		}
	}
	return out
}

// RemoveNode removes every key attributed to nodeID via the same cascade as
// RemovePortsBatch, then drops the nodeID's own index entry (spec section
// 4.10's node-removal wiring).
func (s *Store) RemoveNode(nodeID string) {
	s.mu.Lock()
	set := s.nodePortKeys[nodeID]
	ks := make([]keys.PortKey, 0, len(set))
	for k := range set {
		ks = append(ks, k)
	}
	s.mu.Unlock()

	s.RemovePortsBatch(ks)

	s.mu.Lock()
	delete(s.nodePortKeys, nodeID)
	s.mu.Unlock()
}

// Reset clears every store (spec section 4.8's global reset).
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[keys.PortKey]interface{})
	s.ui = make(map[keys.PortKey]portevent.UIState)
	s.configs = make(map[keys.PortKey]*portconfig.Config)
	s.connections = make(map[keys.PortKey][]portevent.Connection)
	s.versions = make(map[keys.PortKey]int64)
	s.parents = make(map[keys.PortKey]keys.PortKey)
	s.children = make(map[keys.PortKey][]keys.PortKey)
	s.nodePortKeys = make(map[string]map[keys.PortKey]struct{})
}
