package retrieval

import (
	"context"
	"strings"
)

// PatternClassifier classifies queries with keyword cues. Deterministic,
// no network, used standalone or as the fallback behind the LLM path.
type PatternClassifier struct{}

// NewPatternClassifier creates a pattern-based classifier.
func NewPatternClassifier() *PatternClassifier {
	return &PatternClassifier{}
}

var _ Classifier = (*PatternClassifier)(nil)

// Cue words checked in priority order. Summarization and linkage cues are
// checked before factual so "summarize what happened" classifies as
// summarization rather than factual.
var (
	summarizationCues = []string{"summarize", "summary", "overview"}
	linkageCues       = []string{"connect", "link", "relate", "relationship", "between"}
	reasoningCues     = []string{"why", "how", "explain", "analyze"}
	lookupCues        = []string{"find", "list", "show", "get"}
	factualCues       = []string{"who", "what", "when", "where"}
)

// Classify assigns a query type from keyword cues, defaulting to factual.
func (p *PatternClassifier) Classify(ctx context.Context, query string) (QueryType, error) {
	words := queryWords(query)

	switch {
	case containsAny(words, summarizationCues):
		return QueryTypeSummarization, nil
	case containsAny(words, linkageCues):
		return QueryTypeSemanticLinkage, nil
	case containsAny(words, reasoningCues):
		return QueryTypeReasoning, nil
	case containsAny(words, lookupCues):
		return QueryTypeLookup, nil
	case containsAny(words, factualCues):
		return QueryTypeFactual, nil
	}
	return QueryTypeFactual, nil
}

// queryWords lowercases and splits a query, stripping punctuation from
// word edges so "Why?" matches the "why" cue.
func queryWords(query string) map[string]bool {
	words := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(query)) {
		word := strings.Trim(field, ".,!?;:'\"()[]")
		if word != "" {
			words[word] = true
		}
	}
	return words
}

func containsAny(words map[string]bool, cues []string) bool {
	for _, cue := range cues {
		if words[cue] {
			return true
		}
	}
	return false
}
