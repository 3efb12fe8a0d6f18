package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpander_Expand(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		queryType QueryType
		want      string
	}{
		{
			name:      "factual strips question words",
			query:     "who is the project lead",
			queryType: QueryTypeFactual,
			want:      "project lead",
		},
		{
			name:      "reasoning strips question words",
			query:     "why did the deploy fail",
			queryType: QueryTypeReasoning,
			want:      "deploy fail",
		},
		{
			name:      "summarization strips instruction words",
			query:     "summarize the billing meeting",
			queryType: QueryTypeSummarization,
			want:      "billing meeting call discussion",
		},
		{
			name:      "lookup kept verbatim",
			query:     "find the quarterly report",
			queryType: QueryTypeLookup,
			want:      "find the quarterly report",
		},
		{
			name:      "synonyms appended once",
			query:     "document error",
			queryType: QueryTypeLookup,
			want:      "document error file record failure issue",
		},
		{
			name:      "all stripped falls back to original",
			query:     "who is",
			queryType: QueryTypeFactual,
			want:      "who is",
		},
	}

	e := NewExpander()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Expand(tt.query, tt.queryType))
		})
	}
}

func TestExpander_ExpandLowercases(t *testing.T) {
	e := NewExpander()
	assert.Equal(t, "alice berlin", e.Expand("Alice Berlin", QueryTypeLookup))
}

func TestExpander_Keywords(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"strips question words", "who is Alice in Berlin", []string{"alice", "berlin"}},
		{"strips punctuation", "What is caching?", []string{"caching"}},
		{"fallback keeps all terms", "what is the", []string{"what", "is", "the"}},
		{"plain terms pass through", "vector index latency", []string{"vector", "index", "latency"}},
	}

	e := NewExpander()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Keywords(tt.query))
		})
	}
}
