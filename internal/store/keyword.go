package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"

	"github.com/trident-search/trident/internal/errors"
)

// textAnalyzerName is the registered name of the chunk content analyzer.
const textAnalyzerName = "trident_text"

// BleveKeywordIndex implements KeywordIndex on Bleve with BM25 scoring.
type BleveKeywordIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// bleveChunk is the document shape handed to Bleve. Only searchable
// fields are indexed; full payloads live in the document store.
type bleveChunk struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// NewBleveKeywordIndex opens (or creates) a keyword index at path.
// An empty path creates an in-memory index. A corrupted on-disk index is
// cleared and recreated; the caller must reindex afterwards.
func NewBleveKeywordIndex(path string) (*BleveKeywordIndex, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreOpen, "failed to create index mapping", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, errors.New(errors.ErrCodeStoreOpen,
				fmt.Sprintf("failed to create directory for %s", path), mkErr)
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("keyword_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, errors.New(errors.ErrCodeStoreCorrupt,
					fmt.Sprintf("keyword index corrupted at %s and cannot be removed", path), removeErr)
			}
			slog.Info("keyword_index_cleared", slog.String("path", path))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("keyword_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, errors.New(errors.ErrCodeStoreCorrupt,
					"keyword index corrupted and cannot be cleared", removeErr)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreOpen, "failed to open keyword index", err)
	}

	return &BleveKeywordIndex{index: idx, path: path}, nil
}

// createIndexMapping builds the Bleve mapping: unicode tokenization,
// lowercasing, and English stop word removal.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(textAnalyzerName, map[string]any{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
			en.StopName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	indexMapping.DefaultAnalyzer = textAnalyzerName
	return indexMapping, nil
}

// validateIndexIntegrity checks a Bleve index directory before opening.
// Returns nil when the index is absent or healthy.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// isCorruptionError reports whether an error indicates Bleve index corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// Index adds chunks to the index in a single batch.
func (b *BleveKeywordIndex) Index(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New(errors.ErrCodeStoreClosed, "keyword index is closed", nil)
	}

	batch := b.index.NewBatch()
	for _, chunk := range chunks {
		doc := bleveChunk{Content: chunk.Content, Source: chunk.Source}
		if err := batch.Index(chunk.ID, doc); err != nil {
			return errors.New(errors.ErrCodeStoreQuery,
				fmt.Sprintf("failed to index chunk %s", chunk.ID), err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return errors.New(errors.ErrCodeStoreQuery, "failed to execute index batch", err)
	}
	return nil
}

// Search returns chunks matching the query, scored by BM25.
func (b *BleveKeywordIndex) Search(ctx context.Context, query string, limit int) ([]*KeywordResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errors.New(errors.ErrCodeStoreClosed, "keyword index is closed", nil)
	}

	if strings.TrimSpace(query) == "" {
		return []*KeywordResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("content")

	searchRequest := bleve.NewSearchRequest(matchQuery)
	searchRequest.Size = limit
	searchRequest.IncludeLocations = true

	result, err := b.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreQuery, "keyword search failed", err)
	}

	results := make([]*KeywordResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &KeywordResult{
			ID:           hit.ID,
			Score:        hit.Score,
			MatchedTerms: extractMatchedTerms(hit),
		})
	}
	return results, nil
}

// Delete removes chunks from the index.
func (b *BleveKeywordIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New(errors.ErrCodeStoreClosed, "keyword index is closed", nil)
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return errors.New(errors.ErrCodeStoreQuery, "failed to delete chunks", err)
	}
	return nil
}

// DocCount returns the number of indexed chunks.
func (b *BleveKeywordIndex) DocCount() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, errors.New(errors.ErrCodeStoreClosed, "keyword index is closed", nil)
	}

	count, err := b.index.DocCount()
	if err != nil {
		return 0, errors.New(errors.ErrCodeStoreQuery, "failed to count documents", err)
	}
	return int(count), nil
}

// Close closes the index. Bleve persists disk-based indexes automatically.
func (b *BleveKeywordIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

// extractMatchedTerms pulls the matched content terms out of a search hit.
func extractMatchedTerms(hit *search.DocumentMatch) []string {
	terms := make(map[string]struct{})
	for field, locations := range hit.Locations {
		if field == "content" {
			for term := range locations {
				terms[term] = struct{}{}
			}
		}
	}

	result := make([]string, 0, len(terms))
	for term := range terms {
		result = append(result, term)
	}
	return result
}

var _ KeywordIndex = (*BleveKeywordIndex)(nil)
