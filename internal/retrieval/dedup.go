package retrieval

// Duplicate detection across backends. Two candidates are the same unit
// when they share an ID, when their provenance points at overlapping
// character ranges of the same source file, or when one references the
// other's graph node. Union-find keeps the relation transitive so A~B and
// B~C collapse all three into one unit without double-counting.

// unionFind is a standard disjoint-set with path compression.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(i, j int) {
	ri, rj := u.find(i), u.find(j)
	if ri != rj {
		u.parent[rj] = ri
	}
}

// groupDuplicates partitions all successful candidates into equivalence
// groups. Group order follows first appearance, candidate order within a
// group follows input order, so the grouping is deterministic.
func groupDuplicates(outcomes []*BackendOutcome) [][]*Candidate {
	var all []*Candidate
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			continue
		}
		all = append(all, outcome.Candidates...)
	}
	if len(all) == 0 {
		return nil
	}

	uf := newUnionFind(len(all))

	byID := make(map[string]int)
	byNode := make(map[string]int)
	for i, c := range all {
		if c.ID != "" {
			if first, ok := byID[c.ID]; ok {
				uf.union(first, i)
			} else {
				byID[c.ID] = i
			}
		}
		if nodeID := c.Provenance.NodeID; nodeID != "" {
			if first, ok := byNode[nodeID]; ok {
				uf.union(first, i)
			} else {
				byNode[nodeID] = i
			}
		}
	}

	// Overlapping provenance ranges within the same source file.
	bySource := make(map[string][]int)
	for i, c := range all {
		if c.Provenance.SourceFile != "" {
			bySource[c.Provenance.SourceFile] = append(bySource[c.Provenance.SourceFile], i)
		}
	}
	for _, indices := range bySource {
		for a := 0; a < len(indices); a++ {
			for b := a + 1; b < len(indices); b++ {
				if rangesOverlap(all[indices[a]].Provenance, all[indices[b]].Provenance) {
					uf.union(indices[a], indices[b])
				}
			}
		}
	}

	// Collect groups in first-appearance order.
	groupIndex := make(map[int]int)
	var groups [][]*Candidate
	for i, c := range all {
		root := uf.find(i)
		gi, ok := groupIndex[root]
		if !ok {
			gi = len(groups)
			groupIndex[root] = gi
			groups = append(groups, nil)
		}
		groups[gi] = append(groups[gi], c)
	}
	return groups
}

// rangesOverlap reports whether two [start, end) provenance ranges of the
// same source intersect. Zero-width ranges never overlap.
func rangesOverlap(a, b Provenance) bool {
	if a.EndOffset <= a.StartOffset || b.EndOffset <= b.StartOffset {
		return false
	}
	return a.StartOffset < b.EndOffset && b.StartOffset < a.EndOffset
}
