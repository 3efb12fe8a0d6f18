package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trident-search/trident/internal/output"
)

// statsOutput is the JSON output shape for stats.
type statsOutput struct {
	DataDir       string `json:"data_dir"`
	Entities      int    `json:"entities"`
	Relationships int    `json:"relationships"`
	Chunks        int    `json:"chunks"`
	KeywordDocs   int    `json:"keyword_docs"`
	Vectors       int    `json:"vectors"`
	Embedder      string `json:"embedder"`
	Dimensions    int    `json:"dimensions"`
}

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		Long:  `Display counts for the graph, document, keyword, and vector stores.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	stores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	graphStats, err := stores.graph.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read graph stats: %w", err)
	}
	chunkCount, err := stores.docs.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count chunks: %w", err)
	}
	keywordDocs, err := stores.keywords.DocCount()
	if err != nil {
		return fmt.Errorf("failed to count keyword documents: %w", err)
	}

	stats := statsOutput{
		DataDir:       cfg.DataDir,
		Entities:      graphStats.EntityCount,
		Relationships: graphStats.RelationshipCount,
		Chunks:        chunkCount,
		KeywordDocs:   keywordDocs,
		Vectors:       stores.vectors.Count(),
		Embedder:      stores.embedder.ModelName(),
		Dimensions:    stores.embedder.Dimensions(),
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	out := output.New(cmd.OutOrStdout())
	out.Section("Stores")
	out.KV("Data directory", stats.DataDir)
	out.KVf("Entities", "%d", stats.Entities)
	out.KVf("Relationships", "%d", stats.Relationships)
	out.KVf("Chunks", "%d", stats.Chunks)
	out.KVf("Keyword documents", "%d", stats.KeywordDocs)
	out.KVf("Vectors", "%d", stats.Vectors)

	out.Section("Embeddings")
	out.KV("Model", stats.Embedder)
	out.KVf("Dimensions", "%d", stats.Dimensions)

	return nil
}
