package retrieval

import (
	"strings"
)

// Expander rewrites queries for the keyword backend to bridge vocabulary
// gaps. Exact-match retrieval benefits from synonyms and from stripping
// question scaffolding; the vector backend always receives the original
// query because the embedding model handles semantic similarity itself.
type Expander struct {
	synonyms map[string][]string
}

// defaultSynonyms maps common query terms to corpus-side variants.
var defaultSynonyms = map[string][]string{
	"document": {"file", "record"},
	"picture":  {"image", "photo"},
	"meeting":  {"call", "discussion"},
	"error":    {"failure", "issue"},
	"person":   {"people", "contact"},
	"money":    {"cost", "payment", "price"},
	"company":  {"organization", "business"},
}

// questionWords are stripped during keyword extraction and factual rewrites.
var questionWords = map[string]bool{
	"who": true, "what": true, "when": true, "where": true,
	"why": true, "how": true, "which": true, "whose": true,
	"is": true, "are": true, "was": true, "were": true,
	"do": true, "does": true, "did": true, "can": true,
	"the": true, "a": true, "an": true, "of": true, "in": true,
	"on": true, "to": true, "for": true, "about": true,
	"me": true, "my": true, "i": true, "you": true, "please": true,
}

// summarizationWords are dropped from summarization queries so keyword
// matching targets the subject, not the instruction.
var summarizationWords = map[string]bool{
	"summarize": true, "summary": true, "overview": true, "give": true,
}

// NewExpander creates an expander with the default synonym table.
func NewExpander() *Expander {
	return &Expander{synonyms: defaultSynonyms}
}

// Expand produces the keyword-backend form of a query: a type-aware
// rewrite with synonyms appended. The result is never empty; when the
// rewrite strips everything, the original query is returned.
func (e *Expander) Expand(query string, queryType QueryType) string {
	words := strings.Fields(strings.ToLower(query))

	var kept []string
	switch queryType {
	case QueryTypeFactual, QueryTypeReasoning:
		for _, w := range words {
			if !questionWords[strings.Trim(w, ".,!?;:")] {
				kept = append(kept, w)
			}
		}
	case QueryTypeSummarization:
		for _, w := range words {
			trimmed := strings.Trim(w, ".,!?;:")
			if !summarizationWords[trimmed] && !questionWords[trimmed] {
				kept = append(kept, w)
			}
		}
	default:
		kept = words
	}

	if len(kept) == 0 {
		kept = words
	}

	// Append synonyms for kept terms, each at most once.
	seen := make(map[string]bool, len(kept))
	for _, w := range kept {
		seen[strings.Trim(w, ".,!?;:")] = true
	}
	expanded := kept
	for _, w := range kept {
		for _, syn := range e.synonyms[strings.Trim(w, ".,!?;:")] {
			if !seen[syn] {
				seen[syn] = true
				expanded = append(expanded, syn)
			}
		}
	}

	return strings.Join(expanded, " ")
}

// Keywords extracts the content-bearing terms of a query: lowercased,
// punctuation-trimmed, question and stop words removed. Falls back to all
// terms when filtering would leave nothing.
func (e *Expander) Keywords(query string) []string {
	words := strings.Fields(strings.ToLower(query))

	keywords := make([]string, 0, len(words))
	for _, w := range words {
		trimmed := strings.Trim(w, ".,!?;:'\"()[]")
		if trimmed == "" || questionWords[trimmed] {
			continue
		}
		keywords = append(keywords, trimmed)
	}

	if len(keywords) == 0 {
		for _, w := range words {
			if trimmed := strings.Trim(w, ".,!?;:'\"()[]"); trimmed != "" {
				keywords = append(keywords, trimmed)
			}
		}
	}
	return keywords
}
