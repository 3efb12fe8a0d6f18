package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternClassifier_Classify(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  QueryType
	}{
		{"who question", "who is the project lead", QueryTypeFactual},
		{"what question", "what happened in March", QueryTypeFactual},
		{"when question", "when was the library released", QueryTypeFactual},
		{"lookup find", "find all mentions of caching", QueryTypeLookup},
		{"lookup list", "list the open incidents", QueryTypeLookup},
		{"lookup show", "show recent deployments", QueryTypeLookup},
		{"summarize", "summarize the design meeting", QueryTypeSummarization},
		{"summary noun", "give me a summary of chapter two", QueryTypeSummarization},
		{"overview", "overview of the billing service", QueryTypeSummarization},
		{"linkage connect", "connect the incident to the deploy", QueryTypeSemanticLinkage},
		{"linkage between", "relationship between Alice and Bob", QueryTypeSemanticLinkage},
		{"reasoning why", "why did the migration fail", QueryTypeReasoning},
		{"reasoning how", "how does the scheduler pick nodes", QueryTypeReasoning},
		{"reasoning explain", "explain the retry policy", QueryTypeReasoning},
		{"no cue defaults to factual", "latest quarterly revenue figures", QueryTypeFactual},
		{"punctuation stripped", "Why?", QueryTypeReasoning},
		{"case insensitive", "SUMMARIZE the notes", QueryTypeSummarization},
	}

	c := NewPatternClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Summarization and linkage cues outrank the question words that often
// appear in the same query.
func TestPatternClassifier_CuePriority(t *testing.T) {
	c := NewPatternClassifier()

	got, err := c.Classify(context.Background(), "summarize what happened last week")
	require.NoError(t, err)
	assert.Equal(t, QueryTypeSummarization, got)

	got, err = c.Classify(context.Background(), "what is the link between the outages")
	require.NoError(t, err)
	assert.Equal(t, QueryTypeSemanticLinkage, got)

	got, err = c.Classify(context.Background(), "why does the report show duplicates")
	require.NoError(t, err)
	assert.Equal(t, QueryTypeReasoning, got)
}

func TestPatternClassifier_Deterministic(t *testing.T) {
	c := NewPatternClassifier()
	for i := 0; i < 10; i++ {
		got, err := c.Classify(context.Background(), "find the relationship why")
		require.NoError(t, err)
		assert.Equal(t, QueryTypeSemanticLinkage, got)
	}
}
