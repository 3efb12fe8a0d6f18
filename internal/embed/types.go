// Package embed generates vector embeddings for queries and chunks.
// Two providers are available: Ollama (HTTP API, semantic quality) and
// a static hash-based embedder (deterministic, offline).
package embed

import "context"

// Embedder generates vector embeddings from text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimensionality.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Close releases resources.
	Close() error
}

// Defaults shared by the providers.
const (
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"
	DefaultBatchSize   = 32

	// StaticDimensions is the fixed dimensionality of the static embedder.
	StaticDimensions = 256
)
