package keys

import "testing"

func TestToKeyFromKey(t *testing.T) {
	tests := []struct {
		desc           string
		nodeID, portID string
	}{
		{"simple", "node1", "portA"},
		{"nodeId contains colon", "ns:node1", "portA"},
		{"nested portId", "node1", "parent.field"},
		{"array element portId", "node1", "parent[3]"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			k := ToKey(tt.nodeID, tt.portID)
			gotNode, gotPort, err := FromKey(k)
			if err != nil {
				t.Fatalf("FromKey(%q) returned error: %v", k, err)
			}
			if gotNode != tt.nodeID || gotPort != tt.portID {
				t.Errorf("FromKey(%q) = (%q, %q), want (%q, %q)", k, gotNode, gotPort, tt.nodeID, tt.portID)
			}
		})
	}
}

func TestFromKeyMalformed(t *testing.T) {
	if _, _, err := FromKey("no-colon-here"); err == nil {
		t.Error("FromKey with no ':' should return an error")
	}
	if node, port := MustFromKey("no-colon-here"); node != "" || port != "" {
		t.Errorf("MustFromKey with no ':' = (%q, %q), want (\"\", \"\")", node, port)
	}
}

func TestIsChildPortID(t *testing.T) {
	tests := []struct {
		portID string
		want   bool
	}{
		{"flat", false},
		{"parent.field", true},
		{"parent[0]", true},
	}
	for _, tt := range tests {
		if got := IsChildPortID(tt.portID); got != tt.want {
			t.Errorf("IsChildPortID(%q) = %v, want %v", tt.portID, got, tt.want)
		}
	}
}

func TestParentPortID(t *testing.T) {
	tests := []struct {
		portID   string
		wantID   string
		wantOK   bool
		testDesc string
	}{
		{"flat", "", false, "no parent"},
		{"parent.field", "parent", true, "object field"},
		{"parent[3]", "parent", true, "array element"},
		{"parent.obj[2]", "parent.obj", true, "array element of nested object"},
	}
	for _, tt := range tests {
		t.Run(tt.testDesc, func(t *testing.T) {
			gotID, gotOK := ParentPortID(tt.portID)
			if gotID != tt.wantID || gotOK != tt.wantOK {
				t.Errorf("ParentPortID(%q) = (%q, %v), want (%q, %v)", tt.portID, gotID, gotOK, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestArrayElementIndex(t *testing.T) {
	tests := []struct {
		desc      string
		portID    string
		wantN     int
		wantIsArr bool
		wantErr   bool
	}{
		{"not an array element", "parent.field", 0, false, false},
		{"valid index", "parent[12]", 12, true, false},
		{"zero index", "parent[0]", 0, true, false},
		{"negative index", "parent[-1]", 0, true, true},
		{"non-numeric index", "parent[x]", 0, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			n, isArr, err := ArrayElementIndex(tt.portID)
			if isArr != tt.wantIsArr {
				t.Errorf("isArr = %v, want %v", isArr, tt.wantIsArr)
			}
			if tt.wantErr != (err != nil) {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && n != tt.wantN {
				t.Errorf("n = %d, want %d", n, tt.wantN)
			}
		})
	}
}

func TestDeepEqual(t *testing.T) {
	type pair struct {
		A int
		B []string
	}
	if !DeepEqual(pair{1, nil}, pair{1, []string{}}) {
		t.Error("DeepEqual should treat nil and empty slice as equal")
	}
	if DeepEqual(pair{1, nil}, pair{2, nil}) {
		t.Error("DeepEqual should distinguish differing fields")
	}
}
