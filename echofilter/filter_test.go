package echofilter

import (
	"testing"

	"github.com/nodeflow/portstate/internal/keys"
	"github.com/nodeflow/portstate/pending"
	"github.com/nodeflow/portstate/portconfig"
	"github.com/nodeflow/portstate/portevent"
)

// fakeSnapshot is a minimal in-memory Snapshot for testing the filter in
// isolation from the real store.
type fakeSnapshot struct {
	values map[keys.PortKey]interface{}
	ui     map[keys.PortKey]portevent.UIState
	config map[keys.PortKey]*portconfig.Config
	conns  map[keys.PortKey][]portevent.Connection
}

func newFakeSnapshot() *fakeSnapshot {
	return &fakeSnapshot{
		values: map[keys.PortKey]interface{}{},
		ui:     map[keys.PortKey]portevent.UIState{},
		config: map[keys.PortKey]*portconfig.Config{},
		conns:  map[keys.PortKey][]portevent.Connection{},
	}
}

func (f *fakeSnapshot) Value(k keys.PortKey) (interface{}, bool) { v, ok := f.values[k]; return v, ok }
func (f *fakeSnapshot) UI(k keys.PortKey) portevent.UIState      { return f.ui[k] }
func (f *fakeSnapshot) Config(k keys.PortKey) *portconfig.Config { return f.config[k] }
func (f *fakeSnapshot) Connections(k keys.PortKey) []portevent.Connection { return f.conns[k] }

func v(n int64) *int64 { return &n }

func TestProcessDisabledPassesThrough(t *testing.T) {
	f := New(pending.New(pending.DefaultTimeout), false)
	ev := &portevent.Event{PortKey: "n1:p1", Changes: portevent.Changes{Value: "x", ValueSet: true}}
	got, confirmed := f.Process(ev, newFakeSnapshot())
	if len(got) != 1 || got[0] != ev {
		t.Fatalf("Process with Enabled=false should pass through unchanged, got %v", got)
	}
	if confirmed != nil {
		t.Errorf("confirmed = %v, want nil", confirmed)
	}
}

func TestProcessConfirmsMatchingMutation(t *testing.T) {
	ledger := pending.New(pending.DefaultTimeout)
	k := keys.PortKey("n1:p1")
	ledger.Add(&portevent.PendingMutation{PortKey: k, MutationID: "m1", Version: 5, Value: "confirmed-value"})

	snap := newFakeSnapshot()
	snap.values[k] = "confirmed-value" // store already reflects the optimistic write

	f := New(ledger, true)
	ev := &portevent.Event{PortKey: k, Version: v(5), Changes: portevent.Changes{Value: "confirmed-value", ValueSet: true}}
	got, confirmed := f.Process(ev, snap)

	if len(confirmed) != 1 || confirmed[0].MutationID != "m1" {
		t.Fatalf("confirmed = %v, want [{%s m1}]", confirmed, k)
	}
	if len(got) != 0 {
		t.Errorf("got = %v, want no residual event since the store already matches", got)
	}
}

func TestProcessDropsStaleEcho(t *testing.T) {
	ledger := pending.New(pending.DefaultTimeout)
	k := keys.PortKey("n1:p1")
	ledger.Add(&portevent.PendingMutation{PortKey: k, MutationID: "m-newer", Version: 10, Value: "newer"})

	f := New(ledger, true)
	ev := &portevent.Event{PortKey: k, Version: v(3), Changes: portevent.Changes{Value: "stale", ValueSet: true}}
	got, confirmed := f.Process(ev, newFakeSnapshot())

	if len(got) != 0 {
		t.Errorf("got = %v, want the stale echo dropped", got)
	}
	if confirmed != nil {
		t.Errorf("confirmed = %v, want nil", confirmed)
	}
}

func TestProcessDropsStaleEchoNotifiesOnDrop(t *testing.T) {
	ledger := pending.New(pending.DefaultTimeout)
	k := keys.PortKey("n1:p1")
	ledger.Add(&portevent.PendingMutation{PortKey: k, MutationID: "m-newer", Version: 10, Value: "newer"})

	f := New(ledger, true)
	var dropped keys.PortKey
	calls := 0
	f.OnDrop(func(pk keys.PortKey) { dropped = pk; calls++ })

	ev := &portevent.Event{PortKey: k, Version: v(3), Changes: portevent.Changes{Value: "stale", ValueSet: true}}
	f.Process(ev, newFakeSnapshot())

	if calls != 1 || dropped != k {
		t.Errorf("OnDrop called %d times with %s, want once with %s", calls, dropped, k)
	}
}

func TestProcessKeepsOnlyChangedFields(t *testing.T) {
	ledger := pending.New(pending.DefaultTimeout)
	k := keys.PortKey("n1:p1")
	snap := newFakeSnapshot()
	snap.values[k] = "same"
	snap.conns[k] = []portevent.Connection{{NodeID: "n2", PortID: "p2"}}

	f := New(ledger, true)
	ev := &portevent.Event{
		PortKey: k,
		Changes: portevent.Changes{
			Value:       "same",
			ValueSet:    true,
			Connections: []portevent.Connection{{NodeID: "n3", PortID: "p3"}},
		},
	}
	got, _ := f.Process(ev, snap)
	if len(got) != 1 {
		t.Fatalf("got = %v, want one residual event for the changed connections", got)
	}
	if got[0].Changes.ValueSet {
		t.Error("residual event should not carry Value since it was unchanged")
	}
	if len(got[0].Changes.Connections) != 1 || got[0].Changes.Connections[0].NodeID != "n3" {
		t.Errorf("residual Connections = %v, want the new connection only", got[0].Changes.Connections)
	}
}

func TestProcessDropsEventThatChangesNothing(t *testing.T) {
	ledger := pending.New(pending.DefaultTimeout)
	k := keys.PortKey("n1:p1")
	snap := newFakeSnapshot()
	snap.values[k] = "same"

	f := New(ledger, true)
	ev := &portevent.Event{PortKey: k, Changes: portevent.Changes{Value: "same", ValueSet: true}}
	got, _ := f.Process(ev, snap)
	if len(got) != 0 {
		t.Errorf("got = %v, want no residual event when nothing changed", got)
	}
}
