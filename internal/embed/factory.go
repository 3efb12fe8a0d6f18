package embed

import (
	"context"
	"fmt"
	"strings"

	"github.com/trident-search/trident/internal/config"
	"github.com/trident-search/trident/internal/errors"
)

// New constructs the embedder selected by the configuration.
func New(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "static", "":
		return NewStaticEmbedder(), nil
	case "ollama":
		return NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.OllamaHost,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout.Std(),
			BatchSize:  cfg.BatchSize,
		})
	default:
		return nil, errors.ConfigError(
			fmt.Sprintf("unknown embeddings provider %q", cfg.Provider), nil)
	}
}
