package views

import (
	"testing"

	"github.com/nodeflow/portstate/internal/keys"
	"github.com/nodeflow/portstate/portconfig"
	"github.com/nodeflow/portstate/store"
)

func TestNodePortListsCategorization(t *testing.T) {
	s := store.New()
	s.Apply(store.ProcessedBatch{
		ConfigUpdates: map[keys.PortKey]*portconfig.Config{
			keys.ToKey("n1", "flowIn"):  {NodeID: "n1", ID: "flowIn", Direction: portconfig.DirectionInput, Metadata: &portconfig.Metadata{IsSystemPort: true}},
			keys.ToKey("n1", "flowOut"): {NodeID: "n1", ID: "flowOut", Direction: portconfig.DirectionOutput, Metadata: &portconfig.Metadata{IsSystemPort: true}},
			keys.ToKey("n1", "err"): {
				NodeID: "n1", ID: "err", Key: "__error",
				Metadata: &portconfig.Metadata{IsSystemPort: true, PortCategory: "error"},
			},
			keys.ToKey("n1", "errMsg"): {
				NodeID: "n1", ID: "errMsg", Key: "__errorMessage",
				Metadata: &portconfig.Metadata{IsSystemPort: true, PortCategory: "error"},
			},
			keys.ToKey("n1", "in1"):   {NodeID: "n1", ID: "in1", Direction: portconfig.DirectionInput},
			keys.ToKey("n1", "out1"):  {NodeID: "n1", ID: "out1", Direction: portconfig.DirectionOutput},
			keys.ToKey("n1", "pass1"): {NodeID: "n1", ID: "pass1", Direction: portconfig.DirectionPassthrough},
		},
	})
	got := NodePortLists(s)["n1"]

	if got.FlowInputPortID != "flowIn" {
		t.Errorf("FlowInputPortID = %q, want flowIn", got.FlowInputPortID)
	}
	if got.FlowOutputPortID != "flowOut" {
		t.Errorf("FlowOutputPortID = %q, want flowOut", got.FlowOutputPortID)
	}
	if got.ErrorPortID != "err" {
		t.Errorf("ErrorPortID = %q, want err", got.ErrorPortID)
	}
	if got.ErrorMessagePortID != "errMsg" {
		t.Errorf("ErrorMessagePortID = %q, want errMsg", got.ErrorMessagePortID)
	}
	if len(got.InputPortIDs) != 1 || got.InputPortIDs[0] != "in1" {
		t.Errorf("InputPortIDs = %v, want [in1]", got.InputPortIDs)
	}
	if len(got.OutputPortIDs) != 1 || got.OutputPortIDs[0] != "out1" {
		t.Errorf("OutputPortIDs = %v, want [out1]", got.OutputPortIDs)
	}
	if len(got.PassthroughPortIDs) != 1 || got.PassthroughPortIDs[0] != "pass1" {
		t.Errorf("PassthroughPortIDs = %v, want [pass1]", got.PassthroughPortIDs)
	}
}

func TestNodePortListsSkipsNonRootPorts(t *testing.T) {
	s := store.New()
	s.Apply(store.ProcessedBatch{
		ConfigUpdates: map[keys.PortKey]*portconfig.Config{
			keys.ToKey("n1", "obj.child"): {NodeID: "n1", ID: "obj.child", ParentID: "obj", Direction: portconfig.DirectionInput},
		},
	})
	got := NodePortLists(s)["n1"]
	if len(got.InputPortIDs) != 0 {
		t.Errorf("InputPortIDs = %v, want empty since obj.child has a ParentID", got.InputPortIDs)
	}
}

func TestPortListsGateSuppressesDuringInit(t *testing.T) {
	s := store.New()
	g := NewPortListsGate(s)

	g.FlowInitStart()
	s.Apply(store.ProcessedBatch{
		ConfigUpdates: map[keys.PortKey]*portconfig.Config{
			keys.ToKey("n1", "p1"): {NodeID: "n1", ID: "p1", Direction: portconfig.DirectionInput},
		},
	})
	g.OnConfigsChanged()
	if len(g.Get()) != 0 {
		t.Errorf("Get() during init = %v, want empty (recompute suppressed)", g.Get())
	}

	g.FlowInitEnd()
	if got := g.Get()["n1"]; len(got.InputPortIDs) != 1 {
		t.Errorf("Get() after FlowInitEnd = %v, want one input port recomputed", got)
	}
}

func TestPortListsGateRecomputesImmediatelyOutsideInit(t *testing.T) {
	s := store.New()
	g := NewPortListsGate(s)
	s.Apply(store.ProcessedBatch{
		ConfigUpdates: map[keys.PortKey]*portconfig.Config{
			keys.ToKey("n1", "p1"): {NodeID: "n1", ID: "p1", Direction: portconfig.DirectionOutput},
		},
	})
	g.OnConfigsChanged()
	if got := g.Get()["n1"]; len(got.OutputPortIDs) != 1 {
		t.Errorf("Get() = %v, want one output port recomputed immediately", got)
	}
}
