package views

import (
	"github.com/nodeflow/portstate/internal/keys"
	"github.com/nodeflow/portstate/portconfig"
	"github.com/nodeflow/portstate/store"
)

// HandleRecord is one compact handle in a collapsed node's header (spec
// section 4.9's $collapsedHandleData entries).
type HandleRecord struct {
	PortID    string
	ConfigID  string
	HasInput  bool
	HasOutput bool
}

// CollapsedHandleData implements spec section 4.9's $collapsedHandleData:
// for every parent that has descendants AND whose UI `collapsed` flag is
// not literally true (the historical inversion where collapsed==true means
// children ARE visible), build the compact handle list. descendants should
// be the output of Descendants on the same store snapshot.
func CollapsedHandleData(s *store.Store, descendants map[keys.PortKey][]string) map[keys.PortKey][]HandleRecord {
	out := map[keys.PortKey][]HandleRecord{}

	for parent, portIDs := range descendants {
		if len(portIDs) == 0 {
			continue
		}
		ui := s.UI(parent)
		if collapsed, ok := ui["collapsed"].(bool); ok && collapsed {
			// collapsed==true means children are visible (spec's
			// historical-inversion note); so collapsedHandleData is only
			// built when collapsed is NOT true.
			continue
		}

		nodeID, _ := keys.MustFromKey(parent)
		var records []HandleRecord
		for _, portID := range portIDs {
			childKey := keys.ToKey(nodeID, portID)
			cfg := s.Config(childKey)
			if cfg == nil || cfg.ID == "" {
				continue
			}
			records = append(records, HandleRecord{
				PortID:    portID,
				ConfigID:  cfg.ID,
				HasInput:  cfg.Direction == portconfig.DirectionInput || cfg.Direction == portconfig.DirectionPassthrough,
				HasOutput: cfg.Direction == portconfig.DirectionOutput || cfg.Direction == portconfig.DirectionPassthrough,
			})
		}
		if len(records) > 0 {
			out[parent] = records
		}
	}

	return out
}
