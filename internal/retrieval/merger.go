package retrieval

import (
	"sort"

	"github.com/trident-search/trident/internal/config"
)

// Normalization strategy names.
const (
	NormalizationMinMax   = "minmax"
	NormalizationIdentity = "identity"
)

// Merger normalizes per-backend scores and combines deduplicated units
// into weighted results.
type Merger struct {
	strategy string
}

// NewMerger creates a merger with the given normalization strategy.
// Unknown strategies fall back to min-max; config validation rejects them
// before a pipeline is built.
func NewMerger(strategy string) *Merger {
	if strategy != NormalizationIdentity {
		strategy = NormalizationMinMax
	}
	return &Merger{strategy: strategy}
}

// Merge normalizes each successful backend's candidates, groups duplicates
// across backends, and computes combined scores using the plan's weights.
// Only backends that actually returned a unit contribute to its combined
// score; absent backends are omitted rather than renormalized, so a unit
// found by several backends outranks one found by a single backend at the
// same normalized score.
func (m *Merger) Merge(outcomes []*BackendOutcome, plan RoutingPlan) []*MergedResult {
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			continue
		}
		m.normalize(outcome.Candidates)
	}

	groups := groupDuplicates(outcomes)

	results := make([]*MergedResult, 0, len(groups))
	for _, group := range groups {
		results = append(results, m.mergeGroup(group, plan))
	}
	return results
}

// normalize sets NormScore on each candidate. Min-max is local to this
// one backend's result set for this one call; a single candidate or a
// constant-score set degenerates to 1.0.
func (m *Merger) normalize(candidates []*Candidate) {
	if len(candidates) == 0 {
		return
	}

	if m.strategy == NormalizationIdentity {
		for _, c := range candidates {
			c.NormScore = clamp01(c.RawScore)
		}
		return
	}

	minScore, maxScore := candidates[0].RawScore, candidates[0].RawScore
	for _, c := range candidates[1:] {
		if c.RawScore < minScore {
			minScore = c.RawScore
		}
		if c.RawScore > maxScore {
			maxScore = c.RawScore
		}
	}

	if maxScore == minScore {
		for _, c := range candidates {
			c.NormScore = 1.0
		}
		return
	}

	span := maxScore - minScore
	for _, c := range candidates {
		c.NormScore = (c.RawScore - minScore) / span
	}
}

// mergeGroup collapses one duplicate group into a MergedResult. Each
// backend contributes its best-scoring candidate; the payload comes from
// the richest candidate (longest content, provenance preferred).
func (m *Merger) mergeGroup(group []*Candidate, plan RoutingPlan) *MergedResult {
	result := &MergedResult{
		RawScores:  make(map[config.Backend]float64),
		NormScores: make(map[config.Backend]float64),
	}

	var richest *Candidate
	for _, c := range group {
		if best, ok := result.NormScores[c.Backend]; !ok || c.NormScore > best {
			result.NormScores[c.Backend] = c.NormScore
			result.RawScores[c.Backend] = c.RawScore
		}
		if richer(c, richest) {
			richest = c
		}
	}

	result.ID = canonicalID(group)
	result.Content = richest.Content
	result.Provenance = richest.Provenance

	// Carry graph linkage even when the richest payload lacks it.
	if result.Provenance.NodeID == "" {
		for _, c := range group {
			if c.Provenance.NodeID != "" {
				result.Provenance.NodeID = c.Provenance.NodeID
				break
			}
		}
	}

	for b := range result.NormScores {
		result.Backends = append(result.Backends, b)
	}
	sort.Slice(result.Backends, func(i, j int) bool {
		return result.Backends[i] < result.Backends[j]
	})

	for b, norm := range result.NormScores {
		result.Combined += plan.Weights[b] * norm
	}
	return result
}

// richer prefers candidates with provenance, then longer content.
func richer(c, current *Candidate) bool {
	if current == nil {
		return true
	}
	cHasProv := c.Provenance.SourceFile != ""
	curHasProv := current.Provenance.SourceFile != ""
	if cHasProv != curHasProv {
		return cHasProv
	}
	return len(c.Content) > len(current.Content)
}

// canonicalID picks the group's identity deterministically: the smallest
// candidate ID, matching the lexicographic tie-break used in ranking.
func canonicalID(group []*Candidate) string {
	id := group[0].ID
	for _, c := range group[1:] {
		if c.ID < id {
			id = c.ID
		}
	}
	return id
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
