package retrieval

import (
	"context"
	"strings"
	"unicode"

	"github.com/trident-search/trident/internal/config"
	"github.com/trident-search/trident/internal/embed"
	"github.com/trident-search/trident/internal/errors"
	"github.com/trident-search/trident/internal/store"
)

// graphMaxHops bounds knowledge graph traversal from seed entities.
const graphMaxHops = 2

// GraphBackend retrieves candidates by extracting probable entity names
// from the query and traversing the knowledge graph around them.
type GraphBackend struct {
	graph store.GraphStore
	docs  store.DocumentStore
}

// NewGraphBackend creates a graph retrieval adapter.
func NewGraphBackend(graph store.GraphStore, docs store.DocumentStore) *GraphBackend {
	return &GraphBackend{graph: graph, docs: docs}
}

var _ Backend = (*GraphBackend)(nil)

func (g *GraphBackend) Name() config.Backend { return config.BackendGraph }

// Search finds entities named in the query, walks their neighborhood, and
// returns the chunks those entities were mentioned in. Traversal depth
// discounts the score so distant entities rank below direct matches.
func (g *GraphBackend) Search(ctx context.Context, query *Query, limit int) ([]*Candidate, error) {
	terms := extractEntityTerms(query.Cleaned)
	if len(terms) == 0 {
		return []*Candidate{}, nil
	}

	seeds, err := g.graph.FindByName(ctx, terms)
	if err != nil {
		return nil, errors.BackendError("graph entity lookup failed", err)
	}
	if len(seeds) == 0 {
		return []*Candidate{}, nil
	}

	seedIDs := make([]string, len(seeds))
	for i, e := range seeds {
		seedIDs[i] = e.ID
	}

	related, err := g.graph.FindRelated(ctx, seedIDs, graphMaxHops)
	if err != nil {
		return nil, errors.BackendError("graph traversal failed", err)
	}

	// Resolve mention chunks for content and provenance.
	chunkIDs := make([]string, 0, len(related))
	for _, re := range related {
		if re.Entity.ChunkID != "" {
			chunkIDs = append(chunkIDs, re.Entity.ChunkID)
		}
	}
	chunks, err := g.docs.GetMany(ctx, chunkIDs)
	if err != nil {
		return nil, errors.BackendError("graph chunk enrichment failed", err)
	}

	candidates := make([]*Candidate, 0, len(related))
	for _, re := range related {
		// Score decays with traversal depth, scaled by path strength.
		score := re.PathWeight / float64(1+re.Hops)

		cand := &Candidate{
			Backend:  config.BackendGraph,
			RawScore: score,
			Content:  re.Entity.Name,
			Provenance: Provenance{
				NodeID: re.Entity.ID,
			},
		}

		if chunk, ok := chunks[re.Entity.ChunkID]; ok {
			cand.ID = chunk.ID
			cand.Content = chunk.Content
			cand.Provenance.SourceFile = chunk.Source
			cand.Provenance.StartOffset = chunk.StartOffset
			cand.Provenance.EndOffset = chunk.EndOffset
			cand.Provenance.Modality = chunk.Metadata["modality"]
		} else {
			cand.ID = re.Entity.ID
		}

		if !matchesFilters(cand, chunks[re.Entity.ChunkID], query.Filters) {
			continue
		}
		candidates = append(candidates, cand)
	}

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// extractEntityTerms guesses entity names in a query: capitalized words
// first, else the leading content words.
func extractEntityTerms(query string) []string {
	fields := strings.Fields(query)

	var capitalized []string
	for _, f := range fields {
		trimmed := strings.Trim(f, ".,!?;:'\"()[]")
		if trimmed == "" {
			continue
		}
		// A capitalized question word is sentence casing, not a name.
		if questionWords[strings.ToLower(trimmed)] {
			continue
		}
		if unicode.IsUpper([]rune(trimmed)[0]) {
			capitalized = append(capitalized, trimmed)
		}
	}
	if len(capitalized) > 0 {
		return capitalized
	}

	var leading []string
	for _, f := range fields {
		trimmed := strings.Trim(strings.ToLower(f), ".,!?;:'\"()[]")
		if trimmed == "" || questionWords[trimmed] {
			continue
		}
		leading = append(leading, trimmed)
		if len(leading) == 3 {
			break
		}
	}
	return leading
}

// VectorBackend retrieves candidates by embedding the query and running
// nearest-neighbor search.
type VectorBackend struct {
	embedder embed.Embedder
	vectors  store.VectorStore
	docs     store.DocumentStore
}

// NewVectorBackend creates a vector retrieval adapter.
func NewVectorBackend(embedder embed.Embedder, vectors store.VectorStore, docs store.DocumentStore) *VectorBackend {
	return &VectorBackend{embedder: embedder, vectors: vectors, docs: docs}
}

var _ Backend = (*VectorBackend)(nil)

func (v *VectorBackend) Name() config.Backend { return config.BackendVector }

// Search embeds the cleaned query and returns the nearest chunks.
func (v *VectorBackend) Search(ctx context.Context, query *Query, limit int) ([]*Candidate, error) {
	embedding, err := v.embedder.Embed(ctx, query.Cleaned)
	if err != nil {
		return nil, errors.BackendError("query embedding failed", err)
	}

	matches, err := v.vectors.Search(ctx, embedding, limit)
	if err != nil {
		return nil, errors.BackendError("vector search failed", err)
	}
	if len(matches) == 0 {
		return []*Candidate{}, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	chunks, err := v.docs.GetMany(ctx, ids)
	if err != nil {
		return nil, errors.BackendError("vector chunk enrichment failed", err)
	}

	candidates := make([]*Candidate, 0, len(matches))
	for _, m := range matches {
		cand := &Candidate{
			ID:       m.ID,
			Backend:  config.BackendVector,
			RawScore: float64(m.Score),
		}
		chunk := chunks[m.ID]
		if chunk != nil {
			cand.Content = chunk.Content
			cand.Provenance = Provenance{
				SourceFile:  chunk.Source,
				StartOffset: chunk.StartOffset,
				EndOffset:   chunk.EndOffset,
				NodeID:      chunk.NodeID,
				Modality:    chunk.Metadata["modality"],
			}
		}
		if !matchesFilters(cand, chunk, query.Filters) {
			continue
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// KeywordBackend retrieves candidates through the full-text index, using
// the expander to bridge vocabulary gaps.
type KeywordBackend struct {
	index    store.KeywordIndex
	docs     store.DocumentStore
	expander *Expander
}

// NewKeywordBackend creates a keyword retrieval adapter.
func NewKeywordBackend(index store.KeywordIndex, docs store.DocumentStore, expander *Expander) *KeywordBackend {
	if expander == nil {
		expander = NewExpander()
	}
	return &KeywordBackend{index: index, docs: docs, expander: expander}
}

var _ Backend = (*KeywordBackend)(nil)

func (k *KeywordBackend) Name() config.Backend { return config.BackendKeyword }

// Search runs the type-aware expanded query against the keyword index.
func (k *KeywordBackend) Search(ctx context.Context, query *Query, limit int) ([]*Candidate, error) {
	expanded := k.expander.Expand(query.Cleaned, query.Type)

	matches, err := k.index.Search(ctx, expanded, limit)
	if err != nil {
		return nil, errors.BackendError("keyword search failed", err)
	}
	if len(matches) == 0 {
		return []*Candidate{}, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	chunks, err := k.docs.GetMany(ctx, ids)
	if err != nil {
		return nil, errors.BackendError("keyword chunk enrichment failed", err)
	}

	candidates := make([]*Candidate, 0, len(matches))
	for _, m := range matches {
		cand := &Candidate{
			ID:       m.ID,
			Backend:  config.BackendKeyword,
			RawScore: m.Score,
		}
		chunk := chunks[m.ID]
		if chunk != nil {
			cand.Content = chunk.Content
			cand.Provenance = Provenance{
				SourceFile:  chunk.Source,
				StartOffset: chunk.StartOffset,
				EndOffset:   chunk.EndOffset,
				NodeID:      chunk.NodeID,
				Modality:    chunk.Metadata["modality"],
			}
		}
		if !matchesFilters(cand, chunk, query.Filters) {
			continue
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// matchesFilters applies metadata filters a backend can honor. A filter a
// candidate has no data for is ignored rather than failing the candidate.
func matchesFilters(cand *Candidate, chunk *store.Chunk, filters map[string]string) bool {
	for key, want := range filters {
		switch key {
		case "source":
			if cand.Provenance.SourceFile != "" && cand.Provenance.SourceFile != want {
				return false
			}
		case "modality":
			if cand.Provenance.Modality != "" && cand.Provenance.Modality != want {
				return false
			}
		default:
			if chunk != nil {
				if got, ok := chunk.Metadata[key]; ok && got != want {
					return false
				}
			}
		}
	}
	return true
}
