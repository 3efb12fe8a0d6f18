package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/trident-search/trident/internal/errors"
)

// Query length bounds in characters, measured after cleaning.
const (
	MinQueryLength = 3
	MaxQueryLength = 500
)

// Processor validates, cleans, and classifies raw query text.
type Processor struct {
	classifier Classifier
}

// NewProcessor creates a query processor. A nil classifier defaults to
// pattern classification.
func NewProcessor(classifier Classifier) *Processor {
	if classifier == nil {
		classifier = NewPatternClassifier()
	}
	return &Processor{classifier: classifier}
}

// ProcessOptions carries caller-supplied query parameters.
type ProcessOptions struct {
	// TypeHint bypasses classification when set to a valid query type.
	TypeHint QueryType

	// Filters are metadata constraints passed through to the backends.
	Filters map[string]string

	// Limit is the requested result count; the pipeline clamps it.
	Limit int
}

// Process validates and cleans raw text and determines its query type.
// Validation happens before any backend work.
func (p *Processor) Process(ctx context.Context, raw string, opts ProcessOptions) (*Query, error) {
	cleaned := cleanQuery(raw)

	if cleaned == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "query is empty", nil)
	}
	if len(cleaned) < MinQueryLength {
		return nil, errors.New(errors.ErrCodeQueryTooShort,
			fmt.Sprintf("query must be at least %d characters, got %d", MinQueryLength, len(cleaned)), nil)
	}
	if len(cleaned) > MaxQueryLength {
		return nil, errors.New(errors.ErrCodeQueryTooLong,
			fmt.Sprintf("query must be at most %d characters, got %d", MaxQueryLength, len(cleaned)), nil)
	}

	queryType := opts.TypeHint
	if !queryType.Valid() {
		var err error
		queryType, err = p.classifier.Classify(ctx, cleaned)
		if err != nil {
			// Classification is advisory; fall back to the default type
			// rather than failing the search.
			queryType = QueryTypeFactual
		}
	}

	return &Query{
		Raw:     raw,
		Cleaned: cleaned,
		Type:    queryType,
		Filters: opts.Filters,
		Limit:   opts.Limit,
	}, nil
}

// cleanQuery trims and collapses internal whitespace.
func cleanQuery(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
