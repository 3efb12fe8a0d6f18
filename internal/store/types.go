// Package store provides the persistence layer for Trident: a SQLite-backed
// knowledge graph and document store, an HNSW vector index, and a Bleve
// keyword index. Each store is safe for concurrent use.
package store

import (
	"context"
	"fmt"
	"time"
)

// Chunk is a unit of indexed content with its provenance.
type Chunk struct {
	// ID uniquely identifies the chunk across all stores.
	ID string `json:"id"`

	// Content is the chunk text.
	Content string `json:"content"`

	// Source is the originating document path or URI.
	Source string `json:"source"`

	// StartOffset and EndOffset locate the chunk within Source.
	StartOffset int `json:"start_offset"`
	EndOffset   int `json:"end_offset"`

	// NodeID links this chunk to a graph entity when the chunk was the
	// mention that produced the entity. Empty when unlinked.
	NodeID string `json:"node_id,omitempty"`

	// Metadata holds provider-specific fields (title, section, language).
	Metadata map[string]string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Overlaps reports whether two chunks from the same source cover
// overlapping byte ranges.
func (c *Chunk) Overlaps(other *Chunk) bool {
	if c.Source == "" || c.Source != other.Source {
		return false
	}
	return c.StartOffset < other.EndOffset && other.StartOffset < c.EndOffset
}

// Entity is a named node in the knowledge graph.
type Entity struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Kind      string            `json:"kind,omitempty"`
	ChunkID   string            `json:"chunk_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Relationship is a weighted directed edge between two entities.
type Relationship struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	Relation  string    `json:"relation,omitempty"`
	Weight    float64   `json:"weight"`
	CreatedAt time.Time `json:"created_at"`
}

// RelatedEntity is an entity reached by graph traversal, annotated with
// how it was reached.
type RelatedEntity struct {
	Entity *Entity

	// Hops is the traversal depth at which the entity was first reached
	// (0 for seed entities).
	Hops int

	// PathWeight is the product of edge weights along the discovery path.
	PathWeight float64
}

// GraphStore persists entities and relationships and supports bounded
// traversal from seed entities.
type GraphStore interface {
	UpsertEntity(ctx context.Context, entity *Entity) error
	UpsertRelationship(ctx context.Context, rel *Relationship) error

	// GetEntity returns the entity with the given ID, or nil if absent.
	GetEntity(ctx context.Context, id string) (*Entity, error)

	// FindByName returns entities whose names match any of the given
	// terms, case-insensitively.
	FindByName(ctx context.Context, names []string) ([]*Entity, error)

	// FindRelated performs breadth-first traversal from the seed entity
	// IDs up to maxHops edges away. Seeds appear in the result at hop 0.
	FindRelated(ctx context.Context, seedIDs []string, maxHops int) ([]*RelatedEntity, error)

	Stats(ctx context.Context) (*GraphStats, error)
	Close() error
}

// GraphStats reports graph store sizes.
type GraphStats struct {
	EntityCount       int `json:"entity_count"`
	RelationshipCount int `json:"relationship_count"`
}

// VectorResult is a nearest-neighbor match from the vector store.
type VectorResult struct {
	ID       string
	Distance float32
	Score    float32
}

// VectorStore indexes embeddings and finds nearest neighbors.
type VectorStore interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Delete(ctx context.Context, ids []string) error
	Count() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// VectorStoreConfig configures the HNSW vector store.
type VectorStoreConfig struct {
	Dimensions int    `json:"dimensions"`
	Metric     string `json:"metric"` // "cos" or "l2"
	M          int    `json:"m"`
	EfSearch   int    `json:"ef_search"`
}

// KeywordResult is a keyword index match.
type KeywordResult struct {
	ID           string
	Score        float64
	MatchedTerms []string
}

// KeywordIndex provides full-text matching over chunk content.
type KeywordIndex interface {
	Index(ctx context.Context, chunks []*Chunk) error
	Search(ctx context.Context, query string, limit int) ([]*KeywordResult, error)
	Delete(ctx context.Context, ids []string) error
	DocCount() (int, error)
	Close() error
}

// DocumentStore holds chunk payloads for result enrichment. Backends
// return bare IDs and scores; the pipeline resolves them here.
type DocumentStore interface {
	Put(ctx context.Context, chunks []*Chunk) error
	Get(ctx context.Context, id string) (*Chunk, error)
	GetMany(ctx context.Context, ids []string) (map[string]*Chunk, error)
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// ErrDimensionMismatch is returned when a vector's dimensionality does not
// match the store's configuration.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
