package engine

import (
	"sync"
	"sync/atomic"

	"github.com/nodeflow/portstate/internal/keys"
	"github.com/nodeflow/portstate/portconfig"
	"github.com/nodeflow/portstate/portevent"
	"github.com/nodeflow/portstate/views"
)

// Port is the combined bundle spec section 4.11 describes: value, ui,
// config and connections for one port, as returned by the Port() reader.
type Port struct {
	Value       interface{}
	UI          portevent.UIState
	Config      *portconfig.Config
	Connections []portevent.Connection
}

type subscription struct {
	id      uint64
	read    func(e *Engine) interface{}
	gate    func(a, b interface{}) bool
	last    interface{}
	hasLast bool
	cb      func(interface{})
}

type registry struct {
	mu      sync.Mutex
	nextID  uint64
	entries map[uint64]*subscription
}

func newRegistry() *registry {
	return &registry{entries: map[uint64]*subscription{}}
}

func (r *registry) add(s *subscription) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.id = atomic.AddUint64(&r.nextID, 1)
	r.entries[s.id] = s
	return s.id
}

func (r *registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// notifyAll re-evaluates every subscription's reader against the engine's
// current state and invokes its callback if the value changed under its
// gate. This runs synchronously at the end of each processed batch, so all
// subscribers observe the combined effect of one tick at most once (spec
// section 5's ordering guarantee).
func (r *registry) notifyAll(e *Engine) {
	r.mu.Lock()
	snapshot := make([]*subscription, 0, len(r.entries))
	for _, s := range r.entries {
		snapshot = append(snapshot, s)
	}
	r.mu.Unlock()

	for _, s := range snapshot {
		v := s.read(e)
		if s.hasLast && s.gate(s.last, v) {
			continue
		}
		s.last = v
		s.hasLast = true
		s.cb(v)
	}
}

// deepEqualGate is the deep-equality gate every composite-shape subscription
// uses; SubscribeType instead gates with plain Go value equality on the Type
// string.
func deepEqualGate(a, b interface{}) bool { return keys.DeepEqual(a, b) }

// Unsubscribe stops a subscription created by one of the Subscribe* methods below.
type Unsubscribe func()

func (e *Engine) subscribe(read func(e *Engine) interface{}, gate func(a, b interface{}) bool, cb func(interface{})) Unsubscribe {
	s := &subscription{read: read, gate: gate, cb: cb}
	id := e.subs.add(s)
	// Emit the current value immediately so a new subscriber doesn't have to
	// wait for the next batch to learn the current state.
	v := read(e)
	s.last = v
	s.hasLast = true
	cb(v)
	return func() { e.subs.remove(id) }
}

// SubscribeValue re-emits a port's raw value on deep-equality change.
func (e *Engine) SubscribeValue(nodeID, portID string, cb func(interface{})) Unsubscribe {
	k := keys.ToKey(nodeID, portID)
	return e.subscribe(func(e *Engine) interface{} {
		v, _ := e.store.Value(k)
		return v
	}, deepEqualGate, cb)
}

// SubscribeUI re-emits a port's UI state (default empty map) on deep-equality change.
func (e *Engine) SubscribeUI(nodeID, portID string, cb func(portevent.UIState)) Unsubscribe {
	k := keys.ToKey(nodeID, portID)
	return e.subscribe(func(e *Engine) interface{} {
		ui := e.store.UI(k)
		if ui == nil {
			ui = portevent.UIState{}
		}
		return ui
	}, deepEqualGate, func(v interface{}) { cb(v.(portevent.UIState)) })
}

// SubscribeConfig re-emits a port's config (nil if absent) on deep-equality change.
func (e *Engine) SubscribeConfig(nodeID, portID string, cb func(*portconfig.Config)) Unsubscribe {
	k := keys.ToKey(nodeID, portID)
	return e.subscribe(func(e *Engine) interface{} {
		return e.store.Config(k)
	}, deepEqualGate, func(v interface{}) {
		cfg, _ := v.(*portconfig.Config)
		cb(cfg)
	})
}

// SubscribeType re-emits only a port's config.Type, gated by Go value
// equality (not deep equality -- Type is a string discriminant, spec
// section 4.11's "pointer-equality gate, not deep").
func (e *Engine) SubscribeType(nodeID, portID string, cb func(portconfig.Type)) Unsubscribe {
	k := keys.ToKey(nodeID, portID)
	return e.subscribe(func(e *Engine) interface{} {
		if cfg := e.store.Config(k); cfg != nil {
			return cfg.Type
		}
		return portconfig.Type("")
	}, func(a, b interface{}) bool { return a == b }, func(v interface{}) {
		cb(v.(portconfig.Type))
	})
}

// SubscribeConnections re-emits a port's connections (default empty slice)
// on deep-equality change.
func (e *Engine) SubscribeConnections(nodeID, portID string, cb func([]portevent.Connection)) Unsubscribe {
	k := keys.ToKey(nodeID, portID)
	return e.subscribe(func(e *Engine) interface{} {
		conns := e.store.Connections(k)
		if conns == nil {
			conns = []portevent.Connection{}
		}
		return conns
	}, deepEqualGate, func(v interface{}) { cb(v.([]portevent.Connection)) })
}

// SubscribeChildPortIDs re-emits the decoded portIds of a parent's hierarchy
// children on deep-equality change.
func (e *Engine) SubscribeChildPortIDs(nodeID, parentPortID string, cb func([]string)) Unsubscribe {
	k := keys.ToKey(nodeID, parentPortID)
	return e.subscribe(func(e *Engine) interface{} {
		children := e.store.Children(k)
		out := make([]string, len(children))
		for i, ck := range children {
			_, out[i] = keys.MustFromKey(ck)
		}
		return out
	}, deepEqualGate, func(v interface{}) { cb(v.([]string)) })
}

// SubscribeDescendants re-emits the BFS descendant portIds of either one
// port (portID != "") or the union over an entire node (portID == "").
func (e *Engine) SubscribeDescendants(nodeID, portID string, cb func([]string)) Unsubscribe {
	return e.subscribe(func(e *Engine) interface{} {
		e.mu.RLock()
		defer e.mu.RUnlock()
		if portID != "" {
			k := keys.ToKey(nodeID, portID)
			out := append([]string(nil), e.descendants[k]...)
			return out
		}
		seen := map[string]bool{}
		var out []string
		for k, ids := range e.descendants {
			kn, _ := keys.MustFromKey(k)
			if kn != nodeID {
				continue
			}
			for _, id := range ids {
				if !seen[id] {
					seen[id] = true
					out = append(out, id)
				}
			}
		}
		return out
	}, deepEqualGate, func(v interface{}) { cb(v.([]string)) })
}

// SubscribePort is the combined bundle reader spec section 4.11 names:
// {value, ui, config, connections} for one port, read from the same store
// accessors as the narrower readers above and gated on deep equality of the
// whole bundle.
func (e *Engine) SubscribePort(nodeID, portID string, cb func(Port)) Unsubscribe {
	k := keys.ToKey(nodeID, portID)
	return e.subscribe(func(e *Engine) interface{} {
		ui := e.store.UI(k)
		if ui == nil {
			ui = portevent.UIState{}
		}
		conns := e.store.Connections(k)
		if conns == nil {
			conns = []portevent.Connection{}
		}
		v, _ := e.store.Value(k)
		return Port{
			Value:       v,
			UI:          ui,
			Config:      e.store.Config(k),
			Connections: conns,
		}
	}, deepEqualGate, func(v interface{}) { cb(v.(Port)) })
}

// CollapsedHandleData returns the current collapsed-handle records for a
// parent port, if any (spec section 4.9's $collapsedHandleData read
// surface; not independently re-gated since it is cheap to read directly).
func (e *Engine) CollapsedHandleData(nodeID, parentPortID string) []views.HandleRecord {
	k := keys.ToKey(nodeID, parentPortID)
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.collapsed[k]
}
