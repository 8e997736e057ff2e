package replay

import "github.com/SmitUplenchwar2687/splitghost/internal/world"

// MatchPaths aligns the node paths stored in a replay with the paths of a
// freshly enumerated hierarchy. It walks live in order and, for each
// entry, takes the next unconsumed recorded path with the same name,
// scanning forward only. The result is indexed by recorded node and holds
// the matching live index, or -1 when nothing matched.
//
// Both lists are expected to come from the same deterministic tree walk.
// Nodes added, removed or reordered between recording and playback leave
// gaps rather than producing an error.
func MatchPaths(recorded, live []string) []int {
	mapping := make([]int, len(recorded))
	for i := range mapping {
		mapping[i] = -1
	}

	next := 0
	for j, path := range live {
		for k := next; k < len(recorded); k++ {
			if recorded[k] == path {
				mapping[k] = j
				next = k + 1
				break
			}
		}
	}
	return mapping
}

// Retarget reorders live targets into recorded-index order using a
// mapping from MatchPaths. Unmapped indices get a nil target, which the
// Player skips.
func Retarget(live []world.Target, mapping []int) []world.Target {
	out := make([]world.Target, len(mapping))
	for k, j := range mapping {
		if j >= 0 && j < len(live) {
			out[k] = live[j]
		}
	}
	return out
}
