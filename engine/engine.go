// Package engine is the single explicit entry point spec section 9 asks
// for in place of the source system's import-side-effect wiring: New builds
// an Engine, and the ingress and Subscribe* methods are spec section 4.11's
// public publish/subscribe surface over the lower-level store, pending,
// echo-filter and views packages.
package engine

import (
	"sync"

	log "github.com/golang/glog"

	"github.com/nodeflow/portstate/batch"
	"github.com/nodeflow/portstate/config"
	"github.com/nodeflow/portstate/echofilter"
	"github.com/nodeflow/portstate/internal/debugdump"
	"github.com/nodeflow/portstate/internal/keys"
	"github.com/nodeflow/portstate/internal/stats"
	"github.com/nodeflow/portstate/pending"
	"github.com/nodeflow/portstate/portevent"
	"github.com/nodeflow/portstate/store"
	"github.com/nodeflow/portstate/views"
	"github.com/nodeflow/portstate/wiring"
)

// Engine owns every granular store and the processing pipeline in front of
// it. It is not safe for use before New returns, and Close must be called
// to stop the background pending-mutation sweeper.
type Engine struct {
	cfg config.Config

	store  *store.Store
	ledger *pending.Ledger
	filter *echofilter.Filter
	stats  *stats.Stats

	portLists *views.PortListsGate

	mu          sync.RWMutex
	descendants map[keys.PortKey][]string
	collapsed   map[keys.PortKey][]views.HandleRecord

	subs *registry

	stopSweep chan struct{}
}

// New builds an Engine from cfg and starts its background pending-mutation
// sweeper. Call Close when done.
func New(cfg config.Config) *Engine {
	s := store.New()
	ledger := pending.New(cfg.PendingMutationTimeout)
	e := &Engine{
		cfg:         cfg,
		store:       s,
		ledger:      ledger,
		filter:      echofilter.New(ledger, cfg.MigrationMode.Enabled()),
		stats:       &stats.Stats{},
		portLists:   views.NewPortListsGate(s),
		descendants: map[keys.PortKey][]string{},
		collapsed:   map[keys.PortKey][]views.HandleRecord{},
		subs:        newRegistry(),
		stopSweep:   make(chan struct{}),
	}
	ledger.OnExpired(func(_ keys.PortKey, n int) {
		e.stats.AddMutationsExpired(int64(n))
	})
	ledger.RunSweeper(cfg.PendingMutationSweepInterval, e.stopSweep)
	e.filter.OnDrop(func(_ keys.PortKey) {
		e.stats.IncEchoesDropped()
	})
	s.OnCyclePruned(func(_ keys.PortKey) {
		e.stats.IncCyclesPruned()
	})
	return e
}

// Close stops the background sweeper. It does not clear store state.
func (e *Engine) Close() {
	close(e.stopSweep)
}

// Stats returns a point-in-time snapshot of the engine's counters.
func (e *Engine) Stats() stats.Snapshot {
	return e.stats.Snapshot()
}

// Store exposes the underlying granular store for read-only inspection by a
// host that needs lower-level access than the Subscribe* surface offers
// (e.g. a debug endpoint). Mutation must only happen through the ingress
// methods below.
func (e *Engine) Store() *store.Store {
	return e.store
}

// --- ingress (spec section 6) ---

// PortUpdateReceived processes a single incoming update.
func (e *Engine) PortUpdateReceived(event *portevent.Event) {
	e.processBatch([]*portevent.Event{event})
}

// PortUpdatesReceived processes a bulk update.
func (e *Engine) PortUpdatesReceived(events []*portevent.Event) {
	e.processBatch(events)
}

// NodeAdded extracts nodeA's current ports and processes them as a batch.
func (e *Engine) NodeAdded(node wiring.Node, childPorts wiring.ChildPortsFunc, timestamp int64) {
	e.processBatch(wiring.Extract(node, childPorts, timestamp))
}

// NodesAdded is NodeAdded for several nodes at once, still one batch.
func (e *Engine) NodesAdded(nodes []wiring.Node, childPorts wiring.ChildPortsFunc, timestamp int64) {
	var events []*portevent.Event
	for _, n := range nodes {
		events = append(events, wiring.Extract(n, childPorts, timestamp)...)
	}
	e.processBatch(events)
}

// NodesSet is NodesAdded over a record of nodeId -> Node.
func (e *Engine) NodesSet(nodes map[string]wiring.Node, childPorts wiring.ChildPortsFunc, timestamp int64) {
	var events []*portevent.Event
	for _, n := range nodes {
		events = append(events, wiring.Extract(n, childPorts, timestamp)...)
	}
	e.processBatch(events)
}

// NodeRemoved cleans up every port attributed to nodeID, cascading through
// the hierarchy, per spec section 4.10.
func (e *Engine) NodeRemoved(nodeID string) {
	e.store.RemoveNode(nodeID)
	e.recomputeDerivedViews()
	e.portLists.OnConfigsChanged()
	e.subs.notifyAll(e)
}

// AddPendingMutation records a new optimistic local write.
func (e *Engine) AddPendingMutation(m *portevent.PendingMutation) {
	e.ledger.Add(m)
}

// ConfirmPendingMutation removes a settled pending mutation.
func (e *Engine) ConfirmPendingMutation(portKey keys.PortKey, mutationID string) {
	e.ledger.Confirm(portKey, mutationID)
}

// RejectPendingMutation removes a pending mutation the server rejected.
func (e *Engine) RejectPendingMutation(portKey keys.PortKey, mutationID, reason string) {
	e.ledger.Reject(portKey, mutationID, reason)
}

// FlowInitStart suppresses the categorized-port-list recompute until FlowInitEnd.
func (e *Engine) FlowInitStart() {
	e.portLists.FlowInitStart()
}

// FlowInitEnd resumes recompute and rebuilds once.
func (e *Engine) FlowInitEnd() {
	e.portLists.FlowInitEnd()
}

// GlobalReset drops all store state.
func (e *Engine) GlobalReset() {
	e.store.Reset()
	e.mu.Lock()
	e.descendants = map[keys.PortKey][]string{}
	e.collapsed = map[keys.PortKey][]views.HandleRecord{}
	e.mu.Unlock()
	e.portLists.OnConfigsChanged()
	e.subs.notifyAll(e)
}

// --- pipeline ---

func (e *Engine) processBatch(events []*portevent.Event) {
	if len(events) == 0 {
		return
	}
	processed, confirmations := batch.Process(events, e.store, e.filter, e.store)
	if log.V(3) {
		log.Infof("processed batch: %s", debugdump.Sprint(processed))
	}

	for _, c := range confirmations {
		e.ledger.Confirm(c.PortKey, c.MutationID)
	}

	e.store.Apply(processed)
	e.stats.IncBatchesProcessed()
	if len(processed.StalePortKeys) > 0 {
		e.stats.AddStaleRemovals(int64(len(processed.StalePortKeys)))
	}

	if len(processed.ConfigUpdates) > 0 || len(processed.HierarchyUpdates.Children) > 0 {
		e.recomputeDerivedViews()
	}
	if len(processed.ConfigUpdates) > 0 {
		e.portLists.OnConfigsChanged()
	}

	e.subs.notifyAll(e)
}

func (e *Engine) recomputeDerivedViews() {
	descendants := views.Descendants(e.store, e.cfg.DescendantsBFSCap, func(keys.PortKey) {
		e.stats.IncCyclesPruned()
	})
	collapsed := views.CollapsedHandleData(e.store, descendants)

	e.mu.Lock()
	e.descendants = descendants
	e.collapsed = collapsed
	e.mu.Unlock()
}

// NewBuffered returns the 60 Hz buffered variant of the batch processor,
// wired to this engine's store/filter, for a host that wants to coalesce a
// burst of events instead of calling PortUpdateReceived per event (spec
// section 9's Open Question about the two coexisting processor variants).
func (e *Engine) NewBuffered() *batch.Buffered {
	return batch.NewBuffered(e.store, e.filter, e.store, e.cfg.BufferedQueueMax, func(processed store.ProcessedBatch, confirmations []echofilter.Confirmation) {
		for _, c := range confirmations {
			e.ledger.Confirm(c.PortKey, c.MutationID)
		}
		e.store.Apply(processed)
		e.stats.IncBatchesProcessed()
		if len(processed.ConfigUpdates) > 0 || len(processed.HierarchyUpdates.Children) > 0 {
			e.recomputeDerivedViews()
		}
		if len(processed.ConfigUpdates) > 0 {
			e.portLists.OnConfigsChanged()
		}
		e.subs.notifyAll(e)
	})
}
