// Package views implements spec section 4.9's derived views: pure
// projections over the granular stores, recomputed on upstream change.
// Traversal is breadth-first with an explicit depth cap and a visited set
// for cycle safety.
package views

import (
	"github.com/nodeflow/portstate/internal/keys"
	"github.com/nodeflow/portstate/internal/xerrors"
	log "github.com/golang/glog"

	"github.com/nodeflow/portstate/store"
)

// DefaultDescendantsDepthCap matches spec section 5/6's cycle-safety cap.
const DefaultDescendantsDepthCap = 20

// Descendants computes, for every parent with at least one child, the full
// set of descendant portIds in BFS order (spec section 4.9's
// $portDescendants). depthCap bounds traversal depth; a revisited key within
// one parent's walk is logged and that branch is pruned, the rest of the
// tree still traverses. onCycle, if given, is called once per pruned branch
// so a caller can count the occurrence (e.g. internal/stats).
func Descendants(s *store.Store, depthCap int, onCycle ...func(keys.PortKey)) map[keys.PortKey][]string {
	if depthCap <= 0 {
		depthCap = DefaultDescendantsDepthCap
	}
	var cycleHook func(keys.PortKey)
	if len(onCycle) > 0 {
		cycleHook = onCycle[0]
	}

	out := map[keys.PortKey][]string{}
	roots := rootsWithChildren(s)
	for _, parent := range roots {
		portIDs := bfsDescendants(s, parent, depthCap, cycleHook)
		if len(portIDs) > 0 {
			out[parent] = portIDs
		}
	}
	return out
}

func rootsWithChildren(s *store.Store) []keys.PortKey {
	configs := s.AllConfigs()
	var roots []keys.PortKey
	seen := map[keys.PortKey]bool{}
	for k := range configs {
		if parent, ok := s.Parent(k); ok {
			if !seen[parent] {
				seen[parent] = true
				roots = append(roots, parent)
			}
		}
	}
	return roots
}

func bfsDescendants(s *store.Store, parent keys.PortKey, depthCap int, onCycle func(keys.PortKey)) []string {
	type frame struct {
		key   keys.PortKey
		depth int
	}
	var out []string
	visited := map[keys.PortKey]bool{parent: true}
	queue := []frame{{parent, 0}}

	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		if f.depth >= depthCap {
			continue
		}
		for _, child := range s.Children(f.key) {
			if visited[child] {
				log.Warningf("%s: %s revisited while walking descendants of %s, pruning branch", xerrors.CycleInHierarchy, child, parent)
				if onCycle != nil {
					onCycle(child)
				}
				continue
			}
			visited[child] = true
			_, portID := keys.MustFromKey(child)
			out = append(out, portID)
			queue = append(queue, frame{child, f.depth + 1})
		}
	}
	return out
}
