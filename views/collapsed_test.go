package views

import (
	"sort"
	"strings"
	"testing"

	"github.com/kr/pretty"

	"github.com/nodeflow/portstate/internal/keys"
	"github.com/nodeflow/portstate/portconfig"
	"github.com/nodeflow/portstate/portevent"
	"github.com/nodeflow/portstate/store"
)

func TestCollapsedHandleDataBuildsByDefault(t *testing.T) {
	s := buildTree(t)
	descendants := Descendants(s, DefaultDescendantsDepthCap)
	got := CollapsedHandleData(s, descendants)
	parent := keys.ToKey("n1", "obj")
	records, ok := got[parent]
	if !ok || len(records) == 0 {
		t.Fatalf("CollapsedHandleData[parent] = %v, want records (collapsed flag unset defaults to visible)", records)
	}
}

func TestCollapsedHandleDataSkippedWhenCollapsedTrue(t *testing.T) {
	s := buildTree(t)
	parent := keys.ToKey("n1", "obj")
	s.Apply(store.ProcessedBatch{UIUpdates: map[keys.PortKey]portevent.UIState{parent: {"collapsed": true}}})

	descendants := Descendants(s, DefaultDescendantsDepthCap)
	got := CollapsedHandleData(s, descendants)
	if _, ok := got[parent]; ok {
		t.Errorf("collapsed==true should suppress handle data, got %v", got[parent])
	}
}

func TestCollapsedHandleDataDirections(t *testing.T) {
	s := store.New()
	parent := keys.ToKey("n1", "obj")
	inChild := keys.ToKey("n1", "obj.in")
	outChild := keys.ToKey("n1", "obj.out")
	passChild := keys.ToKey("n1", "obj.pass")
	s.Apply(store.ProcessedBatch{
		ConfigUpdates: map[keys.PortKey]*portconfig.Config{
			parent:    {NodeID: "n1", ID: "obj"},
			inChild:   {NodeID: "n1", ID: "obj.in", Direction: portconfig.DirectionInput},
			outChild:  {NodeID: "n1", ID: "obj.out", Direction: portconfig.DirectionOutput},
			passChild: {NodeID: "n1", ID: "obj.pass", Direction: portconfig.DirectionPassthrough},
		},
		HierarchyUpdates: store.Hierarchy{
			Parents: map[keys.PortKey]keys.PortKey{inChild: parent, outChild: parent, passChild: parent},
			Children: map[keys.PortKey][]keys.PortKey{
				parent: {inChild, outChild, passChild},
			},
		},
	})
	descendants := Descendants(s, DefaultDescendantsDepthCap)
	records := CollapsedHandleData(s, descendants)[parent]
	byPortID := map[string]HandleRecord{}
	for _, r := range records {
		byPortID[r.PortID] = r
	}
	if !byPortID["obj.in"].HasInput || byPortID["obj.in"].HasOutput {
		t.Errorf("obj.in = %+v, want HasInput only", byPortID["obj.in"])
	}
	if byPortID["obj.out"].HasInput || !byPortID["obj.out"].HasOutput {
		t.Errorf("obj.out = %+v, want HasOutput only", byPortID["obj.out"])
	}
	if !byPortID["obj.pass"].HasInput || !byPortID["obj.pass"].HasOutput {
		t.Errorf("obj.pass = %+v, want both HasInput and HasOutput", byPortID["obj.pass"])
	}

	sort.Slice(records, func(i, j int) bool { return records[i].PortID < records[j].PortID })
	want := []HandleRecord{
		{PortID: "obj.in", ConfigID: "obj.in", HasInput: true, HasOutput: false},
		{PortID: "obj.out", ConfigID: "obj.out", HasInput: false, HasOutput: true},
		{PortID: "obj.pass", ConfigID: "obj.pass", HasInput: true, HasOutput: true},
	}
	if diff := pretty.Diff(records, want); len(diff) != 0 {
		t.Errorf("CollapsedHandleData records diff (got != want):\n%s", strings.Join(diff, "\n"))
	}
}
