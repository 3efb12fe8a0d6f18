package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/trident-search/trident/internal/config"
	"github.com/trident-search/trident/internal/embed"
	"github.com/trident-search/trident/internal/retrieval"
	"github.com/trident-search/trident/internal/store"
)

// Store file names inside the data directory.
const (
	graphDBFile    = "graph.db"
	chunksDBFile   = "chunks.db"
	keywordDirName = "keyword.bleve"
	vectorsFile    = "vectors.hnsw"
)

// loadConfig loads configuration from the working directory and applies
// the --data-dir override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}
	return cfg, nil
}

// stores bundles the opened storage layers behind the pipeline.
type stores struct {
	graph    store.GraphStore
	docs     store.DocumentStore
	keywords store.KeywordIndex
	vectors  *store.HNSWVectorStore
	embedder embed.Embedder
}

// Close closes every opened store. Safe to call on a partially opened
// bundle.
func (s *stores) Close() {
	if s.embedder != nil {
		_ = s.embedder.Close()
	}
	if s.vectors != nil {
		_ = s.vectors.Close()
	}
	if s.keywords != nil {
		_ = s.keywords.Close()
	}
	if s.docs != nil {
		_ = s.docs.Close()
	}
	if s.graph != nil {
		_ = s.graph.Close()
	}
}

// openStores opens all storage layers under the configured data
// directory.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	dataDir := cfg.DataDir
	s := &stores{}

	var err error
	s.graph, err = store.NewSQLiteGraphStore(filepath.Join(dataDir, graphDBFile))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open graph store: %w", err)
	}

	s.docs, err = store.NewSQLiteDocumentStore(filepath.Join(dataDir, chunksDBFile))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}

	s.keywords, err = store.NewBleveKeywordIndex(filepath.Join(dataDir, keywordDirName))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open keyword index: %w", err)
	}

	s.embedder, err = embed.New(ctx, cfg.Embeddings)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	s.vectors, err = store.NewHNSWVectorStore(store.VectorStoreConfig{
		Dimensions: s.embedder.Dimensions(),
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}

	vectorPath := filepath.Join(dataDir, vectorsFile)
	if _, statErr := os.Stat(vectorPath); statErr == nil {
		if loadErr := s.vectors.Load(vectorPath); loadErr != nil {
			slog.Debug("vector_load_failed", slog.String("error", loadErr.Error()))
		}
	}

	return s, nil
}

// buildPipeline wires the retrieval pipeline over opened stores.
func buildPipeline(cfg *config.Config, s *stores, opts ...retrieval.PipelineOption) (*retrieval.Pipeline, error) {
	backends := []retrieval.Backend{
		retrieval.NewGraphBackend(s.graph, s.docs),
		retrieval.NewVectorBackend(s.embedder, s.vectors, s.docs),
		retrieval.NewKeywordBackend(s.keywords, s.docs, retrieval.NewExpander()),
	}
	return retrieval.NewPipeline(cfg, backends, opts...)
}
