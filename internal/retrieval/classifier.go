package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/trident-search/trident/internal/config"
	"github.com/trident-search/trident/internal/errors"
)

// Default classifier configuration values.
const (
	DefaultClassifierModel     = "llama3.2:1b"
	DefaultClassifierTimeout   = 2 * time.Second
	DefaultClassifierCacheSize = 10000
	DefaultOllamaHost          = "http://localhost:11434"
)

// ClassifierConfig configures the LLM classifier.
type ClassifierConfig struct {
	Model      string
	Timeout    time.Duration
	CacheSize  int
	OllamaHost string
}

// DefaultClassifierConfig returns classifier defaults.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		Model:      DefaultClassifierModel,
		Timeout:    DefaultClassifierTimeout,
		CacheSize:  DefaultClassifierCacheSize,
		OllamaHost: DefaultOllamaHost,
	}
}

// HybridClassifier tries LLM classification first and falls back to
// patterns. Results are cached in an LRU cache keyed by the normalized
// query.
type HybridClassifier struct {
	llm      *LLMClassifier
	patterns *PatternClassifier
	cache    *lru.Cache[string, QueryType]
}

var _ Classifier = (*HybridClassifier)(nil)

// NewHybridClassifier creates a classifier that tries llm first, then
// patterns. A nil llm makes it pattern-only with caching.
func NewHybridClassifier(llm *LLMClassifier, cacheSize int) *HybridClassifier {
	if cacheSize <= 0 {
		cacheSize = DefaultClassifierCacheSize
	}
	cache, _ := lru.New[string, QueryType](cacheSize)
	return &HybridClassifier{
		llm:      llm,
		patterns: NewPatternClassifier(),
		cache:    cache,
	}
}

// Classify determines the query type, consulting the cache first.
func (h *HybridClassifier) Classify(ctx context.Context, query string) (QueryType, error) {
	cacheKey := strings.ToLower(strings.TrimSpace(query))
	if cacheKey == "" {
		return QueryTypeFactual, nil
	}

	if qt, ok := h.cache.Get(cacheKey); ok {
		return qt, nil
	}

	if h.llm != nil {
		qt, err := h.llm.Classify(ctx, query)
		if err == nil {
			h.cache.Add(cacheKey, qt)
			return qt, nil
		}
		slog.Debug("llm_classification_failed",
			slog.String("error", err.Error()))
	}

	qt, err := h.patterns.Classify(ctx, query)
	if err == nil {
		h.cache.Add(cacheKey, qt)
	}
	return qt, err
}

// LLMClassifier classifies queries through Ollama's /api/generate.
// A circuit breaker stops it from hammering an unreachable daemon;
// while the circuit is open every call fails fast.
type LLMClassifier struct {
	client  *http.Client
	config  ClassifierConfig
	breaker *errors.CircuitBreaker
}

var _ Classifier = (*LLMClassifier)(nil)

// generateRequest is the Ollama /api/generate request body.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// generateResponse is the Ollama /api/generate response body.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewLLMClassifier creates an LLM-based classifier.
func NewLLMClassifier(cfg ClassifierConfig) *LLMClassifier {
	if cfg.Model == "" {
		cfg.Model = DefaultClassifierModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultClassifierTimeout
	}
	if cfg.OllamaHost == "" {
		cfg.OllamaHost = DefaultOllamaHost
	}
	return &LLMClassifier{
		client:  &http.Client{Timeout: cfg.Timeout},
		config:  cfg,
		breaker: errors.NewCircuitBreaker("ollama-classifier"),
	}
}

const classificationPrompt = `You are a search query classifier. Classify the given query into exactly ONE of these categories:

FACTUAL - A direct question about facts. Examples: "who founded the company", "when was the treaty signed"

LOOKUP - A request to retrieve specific items. Examples: "find all invoices from March", "list the project milestones"

SUMMARIZATION - A request to condense content. Examples: "summarize the quarterly report", "give me an overview of the incident"

SEMANTIC_LINKAGE - A request to connect information across sources. Examples: "how does the budget relate to the hiring plan", "link the meeting notes to the roadmap"

REASONING - A multi-step analytical question. Examples: "why did revenue drop after the migration", "explain the tradeoffs in the design"

Respond with ONLY one word: FACTUAL, LOOKUP, SUMMARIZATION, SEMANTIC_LINKAGE, or REASONING.

Query: %s

Classification:`

// Classify asks the LLM for a query type. Any failure returns an error so
// the hybrid wrapper can fall back to patterns.
func (l *LLMClassifier) Classify(ctx context.Context, query string) (QueryType, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return QueryTypeFactual, nil
	}

	if !l.breaker.Allow() {
		return QueryTypeFactual, fmt.Errorf("classifier unavailable: %w", errors.ErrCircuitOpen)
	}

	body, err := json.Marshal(generateRequest{
		Model:  l.config.Model,
		Prompt: fmt.Sprintf(classificationPrompt, query),
		Stream: false,
	})
	if err != nil {
		return QueryTypeFactual, fmt.Errorf("failed to marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		l.config.OllamaHost+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return QueryTypeFactual, fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		l.breaker.RecordFailure()
		return QueryTypeFactual, fmt.Errorf("classification request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		l.breaker.RecordFailure()
		respBody, _ := io.ReadAll(resp.Body)
		return QueryTypeFactual, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		l.breaker.RecordFailure()
		return QueryTypeFactual, fmt.Errorf("failed to decode generate response: %w", err)
	}

	l.breaker.RecordSuccess()
	return parseClassificationResponse(result.Response), nil
}

// parseClassificationResponse maps the LLM's answer to a query type,
// tolerating surrounding prose. Unrecognized answers default to factual.
func parseClassificationResponse(response string) QueryType {
	normalized := strings.ToUpper(strings.TrimSpace(response))

	// Order matters: SEMANTIC_LINKAGE must be checked before substring
	// matches that could shadow it.
	for _, pair := range []struct {
		label string
		qt    QueryType
	}{
		{"SEMANTIC_LINKAGE", QueryTypeSemanticLinkage},
		{"SUMMARIZATION", QueryTypeSummarization},
		{"REASONING", QueryTypeReasoning},
		{"LOOKUP", QueryTypeLookup},
		{"FACTUAL", QueryTypeFactual},
	} {
		if strings.Contains(normalized, pair.label) {
			return pair.qt
		}
	}
	return QueryTypeFactual
}

// NewClassifierFromConfig builds the classifier selected by the
// configuration: "pattern", "ollama", or "hybrid".
func NewClassifierFromConfig(cfg config.ClassifierConfig) Classifier {
	llmCfg := ClassifierConfig{
		Model:      cfg.Model,
		Timeout:    cfg.Timeout.Std(),
		CacheSize:  cfg.CacheSize,
		OllamaHost: cfg.OllamaHost,
	}

	switch strings.ToLower(cfg.Provider) {
	case "ollama":
		return NewLLMClassifier(llmCfg)
	case "hybrid":
		return NewHybridClassifier(NewLLMClassifier(llmCfg), cfg.CacheSize)
	default:
		return NewPatternClassifier()
	}
}
