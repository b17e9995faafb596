package engine

import (
	"testing"

	"github.com/nodeflow/portstate/config"
	"github.com/nodeflow/portstate/portconfig"
	"github.com/nodeflow/portstate/portevent"
)

func TestSubscribePortBundlesAllConcerns(t *testing.T) {
	e := New(config.Default())
	defer e.Close()

	var got Port
	unsub := e.SubscribePort("n1", "p1", func(p Port) { got = p })
	defer unsub()

	e.PortUpdateReceived(&portevent.Event{
		PortKey: "n1:p1", NodeID: "n1", PortID: "p1",
		Changes: portevent.Changes{
			Value:       "v1",
			ValueSet:    true,
			UI:          portevent.UIState{"collapsed": true},
			Config:      &portconfig.Config{Type: portconfig.TypeString, NodeID: "n1", ID: "p1"},
			Connections: []portevent.Connection{{NodeID: "n2", PortID: "p2"}},
		},
	})

	if got.Value != "v1" {
		t.Errorf("Port.Value = %v, want v1", got.Value)
	}
	if got.UI["collapsed"] != true {
		t.Errorf("Port.UI = %v, want collapsed=true", got.UI)
	}
	if got.Config == nil || got.Config.Type != portconfig.TypeString {
		t.Errorf("Port.Config = %+v, want TypeString", got.Config)
	}
	if len(got.Connections) != 1 {
		t.Errorf("Port.Connections = %v, want one entry", got.Connections)
	}
}

func TestSubscribeTypeUsesValueEqualityGate(t *testing.T) {
	e := New(config.Default())
	defer e.Close()

	calls := 0
	unsub := e.SubscribeType("n1", "p1", func(portconfig.Type) { calls++ })
	defer unsub()

	e.PortUpdateReceived(&portevent.Event{
		PortKey: "n1:p1", NodeID: "n1", PortID: "p1",
		Changes: portevent.Changes{Config: &portconfig.Config{Type: portconfig.TypeString, NodeID: "n1", ID: "p1"}},
	})
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 (initial emit + the type-setting update)", calls)
	}

	// A config update that keeps the same Type should not re-fire.
	e.PortUpdateReceived(&portevent.Event{
		PortKey: "n1:p1", NodeID: "n1", PortID: "p1",
		Changes: portevent.Changes{Config: &portconfig.Config{Type: portconfig.TypeString, NodeID: "n1", ID: "p1", Title: "renamed"}},
	})
	if calls != 2 {
		t.Errorf("calls after a same-Type config update = %d, want still 2", calls)
	}
}

func TestSubscribeChildPortIDsDecodesToBarePortID(t *testing.T) {
	e := New(config.Default())
	defer e.Close()

	var got []string
	unsub := e.SubscribeChildPortIDs("n1", "obj", func(ids []string) { got = ids })
	defer unsub()

	e.PortUpdateReceived(&portevent.Event{
		PortKey: "n1:obj", NodeID: "n1", PortID: "obj",
		Changes: portevent.Changes{
			Config: &portconfig.Config{
				Type: portconfig.TypeObject, NodeID: "n1", ID: "obj",
				Schema: &portconfig.ObjectSchema{Properties: map[string]*portconfig.Config{
					"a": {Type: portconfig.TypeString},
				}},
			},
			Value: map[string]interface{}{"a": "x"},
		},
	})
	if len(got) != 1 || got[0] != "obj.a" {
		t.Errorf("SubscribeChildPortIDs callback = %v, want [obj.a]", got)
	}
}

func TestCollapsedHandleDataReadsCurrentCache(t *testing.T) {
	e := New(config.Default())
	defer e.Close()

	e.PortUpdateReceived(&portevent.Event{
		PortKey: "n1:obj", NodeID: "n1", PortID: "obj",
		Changes: portevent.Changes{
			Config: &portconfig.Config{
				Type: portconfig.TypeObject, NodeID: "n1", ID: "obj",
				Schema: &portconfig.ObjectSchema{Properties: map[string]*portconfig.Config{
					"a": {Type: portconfig.TypeString, Direction: portconfig.DirectionInput},
				}},
			},
			Value: map[string]interface{}{"a": "x"},
		},
	})

	records := e.CollapsedHandleData("n1", "obj")
	if len(records) != 1 || records[0].PortID != "obj.a" {
		t.Errorf("CollapsedHandleData = %v, want one record for obj.a", records)
	}
}
