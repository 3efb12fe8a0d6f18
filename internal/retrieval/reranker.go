package retrieval

import (
	"context"
	"sort"
)

// rankResults orders merged results deterministically and assigns 1-based
// ranks: combined score descending, then more contributing backends, then
// lexicographically smaller ID. The cap is applied after ordering.
func rankResults(results []*MergedResult, limit int) []*MergedResult {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Combined != b.Combined {
			return a.Combined > b.Combined
		}
		if len(a.Backends) != len(b.Backends) {
			return len(a.Backends) > len(b.Backends)
		}
		return a.ID < b.ID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	for i, r := range results {
		r.Rank = i + 1
	}
	return results
}

// NoopReranker keeps the combined-score order as-is.
type NoopReranker struct{}

var _ Reranker = (*NoopReranker)(nil)

// Rerank returns the results unchanged.
func (NoopReranker) Rerank(ctx context.Context, query *Query, results []*MergedResult) ([]*MergedResult, error) {
	return results, nil
}
