// Package retrieval implements the hybrid search pipeline: query
// processing and classification, parallel fan-out to the graph, vector,
// and keyword backends, score normalization and merging, deduplication,
// and deterministic reranking with graceful degradation under partial
// backend failure.
package retrieval

import (
	"context"
	"time"

	"github.com/trident-search/trident/internal/config"
	"github.com/trident-search/trident/internal/errors"
)

// QueryType categorizes a query for backend routing.
type QueryType string

const (
	// QueryTypeFactual covers direct fact questions (who/what/when/where).
	QueryTypeFactual QueryType = "factual"

	// QueryTypeLookup covers retrieval of specific items (find/list/show).
	QueryTypeLookup QueryType = "lookup"

	// QueryTypeSummarization covers condensation requests.
	QueryTypeSummarization QueryType = "summarization"

	// QueryTypeSemanticLinkage covers relationship discovery across sources.
	QueryTypeSemanticLinkage QueryType = "semantic_linkage"

	// QueryTypeReasoning covers multi-step analytical questions.
	QueryTypeReasoning QueryType = "reasoning"
)

// Valid reports whether qt is a known query type.
func (qt QueryType) Valid() bool {
	switch qt {
	case QueryTypeFactual, QueryTypeLookup, QueryTypeSummarization,
		QueryTypeSemanticLinkage, QueryTypeReasoning:
		return true
	}
	return false
}

// Query is a processed, validated search query. Immutable once built.
type Query struct {
	// Raw is the text as the caller supplied it.
	Raw string

	// Cleaned is trimmed with collapsed internal whitespace.
	Cleaned string

	// Type is the classified (or hinted) query type.
	Type QueryType

	// Filters are metadata constraints (e.g. source, modality). Backends
	// that cannot honor a filter ignore it.
	Filters map[string]string

	// Limit is the maximum number of results to return.
	Limit int
}

// Provenance locates a candidate's content in the corpus.
type Provenance struct {
	SourceFile  string `json:"source_file,omitempty"`
	Modality    string `json:"modality,omitempty"`
	ChunkIndex  int    `json:"chunk_index,omitempty"`
	StartOffset int    `json:"start_offset,omitempty"`
	EndOffset   int    `json:"end_offset,omitempty"`

	// NodeID and EdgeID reference knowledge graph elements.
	NodeID string `json:"node_id,omitempty"`
	EdgeID string `json:"edge_id,omitempty"`
}

// Candidate is one backend's result before merging. RawScore is only
// meaningful relative to other candidates from the same backend in the
// same call.
type Candidate struct {
	ID         string
	Backend    config.Backend
	RawScore   float64
	NormScore  float64
	Content    string
	Provenance Provenance
}

// MergedResult is a deduplicated unit with its combined score and rank.
type MergedResult struct {
	ID         string                     `json:"id"`
	RawScores  map[config.Backend]float64 `json:"raw_scores"`
	NormScores map[config.Backend]float64 `json:"norm_scores"`
	Combined   float64                    `json:"combined"`
	Rank       int                        `json:"rank"`
	Content    string                     `json:"content"`
	Provenance Provenance                 `json:"provenance"`
	Backends   []config.Backend           `json:"backends"`
}

// BackendOutcome records one backend's contribution to a search.
type BackendOutcome struct {
	Backend    config.Backend
	Candidates []*Candidate
	Err        error
	Elapsed    time.Duration
}

// BackendReport is the per-backend entry in a degradation report.
type BackendReport struct {
	Attempted bool          `json:"attempted"`
	Succeeded bool          `json:"succeeded"`
	Elapsed   time.Duration `json:"elapsed"`
	Reason    string        `json:"reason,omitempty"`
	Results   int           `json:"results"`
}

// Report describes which backends contributed to a response.
type Report struct {
	Backends map[config.Backend]BackendReport `json:"backends"`

	// Degraded is true when at least one attempted backend failed.
	Degraded bool `json:"degraded"`
}

// Response is the ranked outcome of a search.
type Response struct {
	Results   []*MergedResult `json:"results"`
	QueryType QueryType       `json:"query_type"`
	Report    Report          `json:"report"`
	Elapsed   time.Duration   `json:"elapsed"`
}

// Backend is a retrieval strategy adapter. Implementations are read-only
// and surface failures as errors, never panics.
type Backend interface {
	// Name returns the backend tag.
	Name() config.Backend

	// Search returns candidates for the query. An empty result is success;
	// an error means the backend contributed nothing.
	Search(ctx context.Context, query *Query, limit int) ([]*Candidate, error)
}

// Classifier determines the query type.
type Classifier interface {
	Classify(ctx context.Context, query string) (QueryType, error)
}

// Reranker reorders merged results. The default implementation keeps the
// combined-score order; a cross-encoder can be slotted in here.
type Reranker interface {
	Rerank(ctx context.Context, query *Query, results []*MergedResult) ([]*MergedResult, error)
}

// ErrAllBackendsFailed is returned when every routed backend failed.
// Distinct from a successful search with zero results.
var ErrAllBackendsFailed = errors.New(errors.ErrCodeAllBackendsFailed,
	"all retrieval backends failed", nil)
