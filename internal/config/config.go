// Package config loads and validates Trident configuration.
//
// Configuration precedence, lowest to highest:
//  1. Built-in defaults
//  2. .trident.yaml (or .trident.yml) in the working directory
//  3. TRIDENT_* environment variables
//
// Validation is fail-fast: a pipeline is never constructed from a config
// whose backend weights do not sum to 1.0 or that enables zero backends.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/trident-search/trident/internal/errors"
)

// Duration wraps time.Duration so YAML configs can write values like "2s".
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML accepts either a duration string ("500ms", "2s") or an
// integer nanosecond count.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}

	return fmt.Errorf("invalid duration value at line %d", value.Line)
}

// MarshalYAML emits the duration in string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Backend identifies one of the three retrieval strategies.
type Backend string

const (
	BackendGraph   Backend = "graph"
	BackendVector  Backend = "vector"
	BackendKeyword Backend = "keyword"
)

// AllBackends lists every known backend in stable order.
func AllBackends() []Backend {
	return []Backend{BackendGraph, BackendVector, BackendKeyword}
}

// Query type names used as routing table keys.
const (
	QueryTypeFactual         = "factual"
	QueryTypeLookup          = "lookup"
	QueryTypeSummarization   = "summarization"
	QueryTypeSemanticLinkage = "semantic_linkage"
	QueryTypeReasoning       = "reasoning"
)

// Config is the complete Trident configuration.
type Config struct {
	Version    int                    `yaml:"version" json:"version"`
	DataDir    string                 `yaml:"data_dir" json:"data_dir"`
	Search     SearchConfig           `yaml:"search" json:"search"`
	Backends   BackendsConfig         `yaml:"backends" json:"backends"`
	Routing    map[string]RoutingRule `yaml:"routing" json:"routing"`
	Embeddings EmbeddingsConfig       `yaml:"embeddings" json:"embeddings"`
	Classifier ClassifierConfig       `yaml:"classifier" json:"classifier"`
	LogLevel   string                 `yaml:"log_level" json:"log_level"`
}

// SearchConfig configures result limits and score normalization.
type SearchConfig struct {
	// DefaultLimit is the result count when the caller does not specify one.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`

	// MaxLimit caps the result count regardless of what the caller asks for.
	MaxLimit int `yaml:"max_limit" json:"max_limit"`

	// Normalization selects the score normalization strategy:
	// "minmax" (rescale each backend's result set to 0-1, default) or
	// "identity" (backend scores are already comparable 0-1 values).
	Normalization string `yaml:"normalization" json:"normalization"`
}

// BackendsConfig holds per-backend settings.
type BackendsConfig struct {
	Graph   BackendConfig `yaml:"graph" json:"graph"`
	Vector  BackendConfig `yaml:"vector" json:"vector"`
	Keyword BackendConfig `yaml:"keyword" json:"keyword"`
}

// BackendConfig configures a single retrieval backend.
type BackendConfig struct {
	// Enabled controls whether this backend participates in searches.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Weight is this backend's share of the combined score (0.0-1.0).
	// Weights of enabled backends must sum to 1.0.
	Weight float64 `yaml:"weight" json:"weight"`

	// Timeout is the per-request deadline for this backend. A backend that
	// exceeds it is treated as failed for that request.
	Timeout Duration `yaml:"timeout" json:"timeout"`

	// Which keys a YAML section actually wrote. Merging consults these so
	// a partial section only overrides the fields it mentions.
	enabledSet bool
	weightSet  bool
	timeoutSet bool
}

// UnmarshalYAML decodes a backend section and records which keys were
// present, so `enabled: false` alone disables a backend and a weight-only
// section leaves the enable flag untouched.
func (b *BackendConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Enabled *bool     `yaml:"enabled"`
		Weight  *float64  `yaml:"weight"`
		Timeout *Duration `yaml:"timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.Enabled != nil {
		b.Enabled = *raw.Enabled
		b.enabledSet = true
	}
	if raw.Weight != nil {
		b.Weight = *raw.Weight
		b.weightSet = true
	}
	if raw.Timeout != nil {
		b.Timeout = *raw.Timeout
		b.timeoutSet = true
	}
	return nil
}

// Get returns the configuration for the named backend.
func (b BackendsConfig) Get(backend Backend) BackendConfig {
	switch backend {
	case BackendGraph:
		return b.Graph
	case BackendVector:
		return b.Vector
	case BackendKeyword:
		return b.Keyword
	default:
		return BackendConfig{}
	}
}

// RoutingRule adjusts backend emphasis for one query type.
// Multipliers scale the static backend weights before merging; a multiplier
// of zero removes the backend from the routing plan for that query type.
type RoutingRule struct {
	Graph      float64 `yaml:"graph" json:"graph"`
	Vector     float64 `yaml:"vector" json:"vector"`
	Keyword    float64 `yaml:"keyword" json:"keyword"`
	CrossModal bool    `yaml:"cross_modal" json:"cross_modal"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "ollama" or "static" (deterministic offline embeddings).
	Provider   string   `yaml:"provider" json:"provider"`
	Model      string   `yaml:"model" json:"model"`
	Dimensions int      `yaml:"dimensions" json:"dimensions"`
	OllamaHost string   `yaml:"ollama_host" json:"ollama_host"`
	Timeout    Duration `yaml:"timeout" json:"timeout"`
	BatchSize  int      `yaml:"batch_size" json:"batch_size"`
}

// ClassifierConfig configures query type classification.
type ClassifierConfig struct {
	// Provider is "pattern" (deterministic, default), "ollama", or "hybrid"
	// (ollama with pattern fallback).
	Provider   string   `yaml:"provider" json:"provider"`
	Model      string   `yaml:"model" json:"model"`
	OllamaHost string   `yaml:"ollama_host" json:"ollama_host"`
	Timeout    Duration `yaml:"timeout" json:"timeout"`
	CacheSize  int      `yaml:"cache_size" json:"cache_size"`
}

// Default configuration values.
const (
	DefaultGraphWeight   = 0.30
	DefaultVectorWeight  = 0.50
	DefaultKeywordWeight = 0.20

	DefaultLimit = 10
	MaxLimit     = 100

	// weightSumTolerance allows for float representation error when
	// checking that weights sum to 1.0.
	weightSumTolerance = 0.01
)

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		DataDir: defaultDataDir(),
		Search: SearchConfig{
			DefaultLimit:  DefaultLimit,
			MaxLimit:      MaxLimit,
			Normalization: "minmax",
		},
		Backends: BackendsConfig{
			Graph:   BackendConfig{Enabled: true, Weight: DefaultGraphWeight, Timeout: Duration(2 * time.Second)},
			Vector:  BackendConfig{Enabled: true, Weight: DefaultVectorWeight, Timeout: Duration(2 * time.Second)},
			Keyword: BackendConfig{Enabled: true, Weight: DefaultKeywordWeight, Timeout: Duration(1 * time.Second)},
		},
		Routing: DefaultRouting(),
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			Model:      "nomic-embed-text",
			Dimensions: 256,
			OllamaHost: "http://localhost:11434",
			Timeout:    Duration(30 * time.Second),
			BatchSize:  32,
		},
		Classifier: ClassifierConfig{
			Provider:   "pattern",
			Model:      "llama3.2:1b",
			OllamaHost: "http://localhost:11434",
			Timeout:    Duration(2 * time.Second),
			CacheSize:  10000,
		},
		LogLevel: "info",
	}
}

// DefaultRouting returns the default query-type-to-routing-plan table.
// Lookup queries lean on keyword and graph; summarization and reasoning lean
// on vector and graph; semantic linkage invokes all three with cross-modal
// filters enabled.
func DefaultRouting() map[string]RoutingRule {
	return map[string]RoutingRule{
		QueryTypeFactual:         {Graph: 1.0, Vector: 1.0, Keyword: 1.0},
		QueryTypeLookup:          {Graph: 1.2, Vector: 0.8, Keyword: 1.5},
		QueryTypeSummarization:   {Graph: 1.1, Vector: 1.3, Keyword: 0.6},
		QueryTypeSemanticLinkage: {Graph: 1.0, Vector: 1.0, Keyword: 1.0, CrossModal: true},
		QueryTypeReasoning:       {Graph: 1.2, Vector: 1.3, Keyword: 0.5},
	}
}

// defaultDataDir returns ~/.trident, falling back to a temp directory.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".trident")
	}
	return filepath.Join(home, ".trident")
}

// Load builds the effective configuration for the given directory:
// defaults, then .trident.yaml, then TRIDENT_* environment overrides,
// then validation.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .trident.yaml or .trident.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".trident.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".trident.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults.
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}

	if other.Search.DefaultLimit != 0 {
		c.Search.DefaultLimit = other.Search.DefaultLimit
	}
	if other.Search.MaxLimit != 0 {
		c.Search.MaxLimit = other.Search.MaxLimit
	}
	if other.Search.Normalization != "" {
		c.Search.Normalization = other.Search.Normalization
	}

	c.Backends.Graph = mergeBackend(c.Backends.Graph, other.Backends.Graph)
	c.Backends.Vector = mergeBackend(c.Backends.Vector, other.Backends.Vector)
	c.Backends.Keyword = mergeBackend(c.Backends.Keyword, other.Backends.Keyword)

	for qt, rule := range other.Routing {
		c.Routing[qt] = rule
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.Timeout != 0 {
		c.Embeddings.Timeout = other.Embeddings.Timeout
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}

	if other.Classifier.Provider != "" {
		c.Classifier.Provider = other.Classifier.Provider
	}
	if other.Classifier.Model != "" {
		c.Classifier.Model = other.Classifier.Model
	}
	if other.Classifier.OllamaHost != "" {
		c.Classifier.OllamaHost = other.Classifier.OllamaHost
	}
	if other.Classifier.Timeout != 0 {
		c.Classifier.Timeout = other.Classifier.Timeout
	}
	if other.Classifier.CacheSize != 0 {
		c.Classifier.CacheSize = other.Classifier.CacheSize
	}

	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

// mergeBackend overlays onto base exactly the fields the file wrote.
func mergeBackend(base, other BackendConfig) BackendConfig {
	if other.enabledSet {
		base.Enabled = other.Enabled
	}
	if other.weightSet {
		base.Weight = other.Weight
	}
	if other.timeoutSet {
		base.Timeout = other.Timeout
	}
	return base
}

// applyEnvOverrides applies TRIDENT_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TRIDENT_GRAPH_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w >= 0 && w <= 1 {
			c.Backends.Graph.Weight = w
		}
	}
	if v := os.Getenv("TRIDENT_VECTOR_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w >= 0 && w <= 1 {
			c.Backends.Vector.Weight = w
		}
	}
	if v := os.Getenv("TRIDENT_KEYWORD_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w >= 0 && w <= 1 {
			c.Backends.Keyword.Weight = w
		}
	}
	if v := os.Getenv("TRIDENT_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("TRIDENT_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
		c.Classifier.OllamaHost = v
	}
	if v := os.Getenv("TRIDENT_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("TRIDENT_CLASSIFIER_PROVIDER"); v != "" {
		c.Classifier.Provider = v
	}
	if v := os.Getenv("TRIDENT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// EnabledBackends returns the backends enabled in this configuration.
func (c *Config) EnabledBackends() []Backend {
	var enabled []Backend
	for _, b := range AllBackends() {
		if c.Backends.Get(b).Enabled {
			enabled = append(enabled, b)
		}
	}
	return enabled
}

// Validate checks the configuration, returning a fatal error on the first
// violation. Called once at startup; request handling never revalidates.
func (c *Config) Validate() error {
	for _, b := range AllBackends() {
		bc := c.Backends.Get(b)
		if bc.Weight < 0 || bc.Weight > 1 {
			return errors.New(errors.ErrCodeWeightsInvalid,
				fmt.Sprintf("%s weight must be between 0 and 1, got %f", b, bc.Weight), nil)
		}
		if bc.Enabled && bc.Timeout <= 0 {
			return errors.ConfigError(
				fmt.Sprintf("%s timeout must be positive, got %s", b, bc.Timeout), nil)
		}
	}

	enabled := c.EnabledBackends()
	if len(enabled) == 0 {
		return errors.New(errors.ErrCodeNoBackendsEnabled,
			"at least one retrieval backend must be enabled", nil)
	}

	var sum float64
	for _, b := range enabled {
		sum += c.Backends.Get(b).Weight
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return errors.New(errors.ErrCodeWeightsInvalid,
			fmt.Sprintf("weights of enabled backends must sum to 1.0, got %.2f", sum), nil)
	}

	if c.Search.DefaultLimit <= 0 {
		return errors.ConfigError(
			fmt.Sprintf("search.default_limit must be positive, got %d", c.Search.DefaultLimit), nil)
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return errors.ConfigError(
			fmt.Sprintf("search.max_limit (%d) must be >= default_limit (%d)",
				c.Search.MaxLimit, c.Search.DefaultLimit), nil)
	}

	switch c.Search.Normalization {
	case "minmax", "identity":
	default:
		return errors.ConfigError(
			fmt.Sprintf("search.normalization must be 'minmax' or 'identity', got %q", c.Search.Normalization), nil)
	}

	validTypes := map[string]bool{
		QueryTypeFactual:         true,
		QueryTypeLookup:          true,
		QueryTypeSummarization:   true,
		QueryTypeSemanticLinkage: true,
		QueryTypeReasoning:       true,
	}
	for qt, rule := range c.Routing {
		if !validTypes[qt] {
			return errors.ConfigError(fmt.Sprintf("routing table has unknown query type %q", qt), nil)
		}
		if rule.Graph < 0 || rule.Vector < 0 || rule.Keyword < 0 {
			return errors.ConfigError(
				fmt.Sprintf("routing multipliers for %q must be non-negative", qt), nil)
		}
	}

	validProviders := map[string]bool{"ollama": true, "static": true}
	if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
		return errors.ConfigError(
			fmt.Sprintf("embeddings.provider must be 'ollama' or 'static', got %q", c.Embeddings.Provider), nil)
	}

	validClassifiers := map[string]bool{"pattern": true, "ollama": true, "hybrid": true}
	if !validClassifiers[strings.ToLower(c.Classifier.Provider)] {
		return errors.ConfigError(
			fmt.Sprintf("classifier.provider must be 'pattern', 'ollama', or 'hybrid', got %q", c.Classifier.Provider), nil)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return errors.ConfigError(
			fmt.Sprintf("log_level must be 'debug', 'info', 'warn', or 'error', got %q", c.LogLevel), nil)
	}

	return nil
}

// Save writes the configuration to a .trident.yaml file in dir.
func (c *Config) Save(dir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(dir, ".trident.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}
