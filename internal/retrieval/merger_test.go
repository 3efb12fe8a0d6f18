package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trident-search/trident/internal/config"
)

// defaultPlan returns the factual routing plan for the default config:
// graph 0.30, vector 0.50, keyword 0.20, multipliers 1.0.
func defaultPlan() RoutingPlan {
	return BuildRoutingPlan(config.NewConfig(), QueryTypeFactual)
}

func outcome(backend config.Backend, candidates ...*Candidate) *BackendOutcome {
	return &BackendOutcome{Backend: backend, Candidates: candidates}
}

func cand(backend config.Backend, id string, raw float64) *Candidate {
	return &Candidate{ID: id, Backend: backend, RawScore: raw}
}

func TestMerger_MinMaxNormalization(t *testing.T) {
	m := NewMerger(NormalizationMinMax)

	candidates := []*Candidate{
		cand(config.BackendKeyword, "a", 2.0),
		cand(config.BackendKeyword, "b", 6.0),
		cand(config.BackendKeyword, "c", 10.0),
	}
	m.normalize(candidates)

	assert.InDelta(t, 0.0, candidates[0].NormScore, 0.001)
	assert.InDelta(t, 0.5, candidates[1].NormScore, 0.001)
	assert.InDelta(t, 1.0, candidates[2].NormScore, 0.001)
}

func TestMerger_SingletonNormalizesToOne(t *testing.T) {
	m := NewMerger(NormalizationMinMax)

	candidates := []*Candidate{cand(config.BackendVector, "a", 0.37)}
	m.normalize(candidates)
	assert.InDelta(t, 1.0, candidates[0].NormScore, 0.001)
}

func TestMerger_ConstantSetNormalizesToOne(t *testing.T) {
	m := NewMerger(NormalizationMinMax)

	candidates := []*Candidate{
		cand(config.BackendGraph, "a", 0.42),
		cand(config.BackendGraph, "b", 0.42),
	}
	m.normalize(candidates)
	assert.InDelta(t, 1.0, candidates[0].NormScore, 0.001)
	assert.InDelta(t, 1.0, candidates[1].NormScore, 0.001)
}

func TestMerger_IdentityStrategy(t *testing.T) {
	m := NewMerger(NormalizationIdentity)

	candidates := []*Candidate{
		cand(config.BackendVector, "a", 0.7),
		cand(config.BackendVector, "b", 1.5),
	}
	m.normalize(candidates)
	assert.InDelta(t, 0.7, candidates[0].NormScore, 0.001)
	// Out-of-range backend scores clamp rather than distort the merge.
	assert.InDelta(t, 1.0, candidates[1].NormScore, 0.001)
}

// Unit A found by graph (0.9) and vector (0.8), unit B by vector only
// (0.6), keyword empty. A should score 0.80 and outrank B.
func TestMerger_WorkedExample(t *testing.T) {
	m := NewMerger(NormalizationMinMax)
	plan := defaultPlan()

	outcomes := []*BackendOutcome{
		outcome(config.BackendGraph, cand(config.BackendGraph, "A", 0.9)),
		outcome(config.BackendVector,
			cand(config.BackendVector, "A", 0.8),
			cand(config.BackendVector, "B", 0.6)),
		outcome(config.BackendKeyword),
	}

	results := m.Merge(outcomes, plan)
	ranked := rankResults(results, 10)
	require.Len(t, ranked, 2)

	a, b := ranked[0], ranked[1]
	assert.Equal(t, "A", a.ID)
	assert.Equal(t, "B", b.ID)

	// Graph singleton degenerates to 1.0; vector pair min-maxes to
	// A=1.0, B=0.0. A = 0.3*1.0 + 0.5*1.0 = 0.80.
	assert.InDelta(t, 0.80, a.Combined, 0.001)
	assert.Equal(t, 1, a.Rank)
	assert.Equal(t, 2, b.Rank)
	assert.ElementsMatch(t, []config.Backend{config.BackendGraph, config.BackendVector}, a.Backends)
	assert.Equal(t, []config.Backend{config.BackendVector}, b.Backends)
}

func TestMerger_ConsensusRewarded(t *testing.T) {
	m := NewMerger(NormalizationMinMax)
	plan := defaultPlan()

	// All three backends return "triple" at their local maximum; "single"
	// is keyword-only at the same normalized score.
	outcomes := []*BackendOutcome{
		outcome(config.BackendGraph, cand(config.BackendGraph, "triple", 0.9)),
		outcome(config.BackendVector, cand(config.BackendVector, "triple", 0.8)),
		outcome(config.BackendKeyword,
			cand(config.BackendKeyword, "triple", 7.0),
			cand(config.BackendKeyword, "single", 7.0)),
	}

	results := m.Merge(outcomes, plan)
	ranked := rankResults(results, 10)
	require.Len(t, ranked, 2)

	assert.Equal(t, "triple", ranked[0].ID)
	// 0.3 + 0.5 + 0.2 = 1.0 versus keyword-only 0.2.
	assert.InDelta(t, 1.0, ranked[0].Combined, 0.001)
	assert.InDelta(t, 0.2, ranked[1].Combined, 0.001)
}

func TestMerger_NoRenormalizationForAbsentBackends(t *testing.T) {
	m := NewMerger(NormalizationMinMax)
	plan := defaultPlan()

	// Vector-only unit: combined stays 0.5, not renormalized to 1.0.
	outcomes := []*BackendOutcome{
		outcome(config.BackendVector, cand(config.BackendVector, "only", 0.8)),
	}

	results := m.Merge(outcomes, plan)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.5, results[0].Combined, 0.001)
}

func TestMerger_SharedIDNeverDoubleCounted(t *testing.T) {
	m := NewMerger(NormalizationMinMax)
	plan := defaultPlan()

	outcomes := []*BackendOutcome{
		outcome(config.BackendGraph, cand(config.BackendGraph, "x", 0.9)),
		outcome(config.BackendVector, cand(config.BackendVector, "x", 0.8)),
		outcome(config.BackendKeyword, cand(config.BackendKeyword, "x", 5.0)),
	}

	results := m.Merge(outcomes, plan)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "x", r.ID)
	assert.Len(t, r.Backends, 3)
	assert.Len(t, r.NormScores, 3)
	assert.InDelta(t, 1.0, r.Combined, 0.001)
}

func TestMerger_BestCandidatePerBackendWins(t *testing.T) {
	m := NewMerger(NormalizationMinMax)
	plan := defaultPlan()

	// The same unit appears twice in one backend's results (overlapping
	// chunks). The better normalized score contributes, not both.
	outcomes := []*BackendOutcome{
		outcome(config.BackendVector,
			&Candidate{ID: "u", Backend: config.BackendVector, RawScore: 0.9,
				Provenance: Provenance{SourceFile: "a.md", StartOffset: 0, EndOffset: 100}},
			&Candidate{ID: "u2", Backend: config.BackendVector, RawScore: 0.3,
				Provenance: Provenance{SourceFile: "a.md", StartOffset: 50, EndOffset: 150}},
		),
	}

	results := m.Merge(outcomes, plan)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].NormScores[config.BackendVector], 0.001)
	assert.InDelta(t, 0.5, results[0].Combined, 0.001)
}

func TestMerger_FailedBackendContributesNothing(t *testing.T) {
	m := NewMerger(NormalizationMinMax)
	plan := defaultPlan()

	outcomes := []*BackendOutcome{
		outcome(config.BackendGraph, cand(config.BackendGraph, "a", 0.9)),
		{Backend: config.BackendVector, Err: assert.AnError},
	}

	results := m.Merge(outcomes, plan)
	require.Len(t, results, 1)
	assert.Equal(t, []config.Backend{config.BackendGraph}, results[0].Backends)
}

func TestMerger_MergeIdempotent(t *testing.T) {
	m := NewMerger(NormalizationMinMax)
	plan := defaultPlan()

	build := func() []*BackendOutcome {
		return []*BackendOutcome{
			outcome(config.BackendGraph,
				cand(config.BackendGraph, "a", 0.9),
				cand(config.BackendGraph, "b", 0.5)),
			outcome(config.BackendVector,
				cand(config.BackendVector, "b", 0.8),
				cand(config.BackendVector, "c", 0.6)),
		}
	}

	first := rankResults(m.Merge(build(), plan), 10)
	second := rankResults(m.Merge(build(), plan), 10)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Rank, second[i].Rank)
		assert.InDelta(t, first[i].Combined, second[i].Combined, 0.0001)
	}
}

func TestMerger_RicherPayloadWins(t *testing.T) {
	m := NewMerger(NormalizationMinMax)
	plan := defaultPlan()

	outcomes := []*BackendOutcome{
		outcome(config.BackendGraph, &Candidate{
			ID: "x", Backend: config.BackendGraph, RawScore: 0.9,
			Content: "Alice",
		}),
		outcome(config.BackendVector, &Candidate{
			ID: "x", Backend: config.BackendVector, RawScore: 0.8,
			Content:    "Alice founded the company in 2019 and served as its first engineer.",
			Provenance: Provenance{SourceFile: "docs/history.md", StartOffset: 10, EndOffset: 80},
		}),
	}

	results := m.Merge(outcomes, plan)
	require.Len(t, results, 1)
	assert.Equal(t, "docs/history.md", results[0].Provenance.SourceFile)
	assert.Contains(t, results[0].Content, "founded")
}
