package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsCmd_JSONOutput(t *testing.T) {
	dataDir := seedDataDir(t)

	out, err := runCLI(t, "stats", "--data-dir", dataDir, "--json")
	require.NoError(t, err)

	var stats statsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, dataDir, stats.DataDir)
	assert.Equal(t, 1, stats.Entities)
	assert.Equal(t, 2, stats.Chunks)
	assert.Equal(t, 2, stats.KeywordDocs)
	assert.Equal(t, 2, stats.Vectors)
	assert.Equal(t, "static-fnv", stats.Embedder)
	assert.Positive(t, stats.Dimensions)
}

func TestStatsCmd_TextOutput(t *testing.T) {
	dataDir := seedDataDir(t)

	out, err := runCLI(t, "stats", "--data-dir", dataDir)
	require.NoError(t, err)

	assert.Contains(t, out, "Stores")
	assert.Contains(t, out, "Entities:")
	assert.Contains(t, out, "Chunks:")
	assert.Contains(t, out, "Embeddings")
}

func TestStatsCmd_EmptyDataDir(t *testing.T) {
	out, err := runCLI(t, "stats", "--data-dir", t.TempDir(), "--json")
	require.NoError(t, err)

	var stats statsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Zero(t, stats.Entities)
	assert.Zero(t, stats.Chunks)
}
