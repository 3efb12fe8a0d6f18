package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trident-search/trident/internal/embed"
	"github.com/trident-search/trident/internal/store"
)

// seedDataDir builds a populated data directory the CLI can search.
func seedDataDir(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	dataDir := t.TempDir()

	graph, err := store.NewSQLiteGraphStore(filepath.Join(dataDir, graphDBFile))
	require.NoError(t, err)
	docs, err := store.NewSQLiteDocumentStore(filepath.Join(dataDir, chunksDBFile))
	require.NoError(t, err)
	keywords, err := store.NewBleveKeywordIndex(filepath.Join(dataDir, keywordDirName))
	require.NoError(t, err)
	embedder := embed.NewStaticEmbedder()
	vectors, err := store.NewHNSWVectorStore(store.VectorStoreConfig{
		Dimensions: embedder.Dimensions(),
	})
	require.NoError(t, err)

	chunks := []*store.Chunk{
		{
			ID: "chunk-alice", Source: "docs/people.md",
			Content:     "Alice leads the platform team and owns the incident process.",
			StartOffset: 0, EndOffset: 61,
			NodeID:   "ent-alice",
			Metadata: map[string]string{"modality": "text"},
		},
		{
			ID: "chunk-roadmap", Source: "docs/roadmap.md",
			Content:     "The roadmap prioritizes storage reliability over new features.",
			StartOffset: 0, EndOffset: 62,
			Metadata: map[string]string{"modality": "text"},
		},
	}
	require.NoError(t, docs.Put(ctx, chunks))
	require.NoError(t, keywords.Index(ctx, chunks))

	ids := make([]string, len(chunks))
	vecs := make([][]float32, len(chunks))
	for i, c := range chunks {
		vec, err := embedder.Embed(ctx, c.Content)
		require.NoError(t, err)
		ids[i] = c.ID
		vecs[i] = vec
	}
	require.NoError(t, vectors.Add(ctx, ids, vecs))
	require.NoError(t, vectors.Save(filepath.Join(dataDir, vectorsFile)))

	require.NoError(t, graph.UpsertEntity(ctx, &store.Entity{
		ID: "ent-alice", Name: "Alice", Kind: "person", ChunkID: "chunk-alice",
	}))

	require.NoError(t, vectors.Close())
	require.NoError(t, keywords.Close())
	require.NoError(t, docs.Close())
	require.NoError(t, graph.Close())

	return dataDir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestSearchCmd_TextOutput(t *testing.T) {
	dataDir := seedDataDir(t)

	out, err := runCLI(t, "search", "who leads the platform team", "--data-dir", dataDir)
	require.NoError(t, err)

	assert.Contains(t, out, "Found")
	assert.Contains(t, out, "docs/people.md")
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	dataDir := seedDataDir(t)

	out, err := runCLI(t, "search", "platform team incident", "--data-dir", dataDir, "--format", "json")
	require.NoError(t, err)

	var result searchJSONOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "platform team incident", result.Query)
	assert.NotEmpty(t, result.Results)
	assert.Len(t, result.Backends, 3)
	assert.False(t, result.Degraded)
}

func TestSearchCmd_TelemetryJSON(t *testing.T) {
	dataDir := seedDataDir(t)

	out, err := runCLI(t, "search", "platform team incident", "--data-dir", dataDir,
		"--format", "json", "--telemetry")
	require.NoError(t, err)

	var result searchJSONOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.NotNil(t, result.Telemetry)
	assert.Equal(t, int64(1), result.Telemetry.TotalQueries)
	assert.Len(t, result.Telemetry.BackendStats, 3)
}

func TestSearchCmd_TelemetryOmittedByDefault(t *testing.T) {
	dataDir := seedDataDir(t)

	out, err := runCLI(t, "search", "platform team incident", "--data-dir", dataDir, "--format", "json")
	require.NoError(t, err)

	var result searchJSONOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Nil(t, result.Telemetry)
}

func TestSearchCmd_TelemetryText(t *testing.T) {
	dataDir := seedDataDir(t)

	out, err := runCLI(t, "search", "platform team incident", "--data-dir", dataDir, "--telemetry")
	require.NoError(t, err)

	assert.Contains(t, out, "Telemetry")
	assert.Contains(t, out, "Queries:")
	assert.Contains(t, out, "attempts")
}

func TestSearchCmd_TypeHint(t *testing.T) {
	dataDir := seedDataDir(t)

	out, err := runCLI(t, "search", "storage reliability", "--data-dir", dataDir,
		"--type", "lookup", "--format", "json")
	require.NoError(t, err)

	var result searchJSONOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "lookup", result.QueryType)
}

func TestSearchCmd_BackendSubset(t *testing.T) {
	dataDir := seedDataDir(t)

	out, err := runCLI(t, "search", "storage reliability", "--data-dir", dataDir,
		"--backends", "keyword", "--format", "json")
	require.NoError(t, err)

	var result searchJSONOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Len(t, result.Backends, 1)
	assert.Contains(t, result.Backends, "keyword")
}

func TestSearchCmd_NoResults(t *testing.T) {
	dataDir := seedDataDir(t)

	out, err := runCLI(t, "search", "zxqv nothing matches this", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "No results found")
}

func TestSearchCmd_QueryTooShort(t *testing.T) {
	dataDir := seedDataDir(t)

	_, err := runCLI(t, "search", "ab", "--data-dir", dataDir)
	assert.Error(t, err)
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	_, err := runCLI(t, "search")
	assert.Error(t, err)
}

func TestParseFilters(t *testing.T) {
	filters, err := parseFilters([]string{"modality=text", "source=docs/a.md"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"modality": "text", "source": "docs/a.md"}, filters)

	_, err = parseFilters([]string{"notapair"})
	assert.Error(t, err)

	_, err = parseFilters([]string{"=value"})
	assert.Error(t, err)

	filters, err = parseFilters(nil)
	require.NoError(t, err)
	assert.Nil(t, filters)
}

func TestParseBackends(t *testing.T) {
	backends, err := parseBackends([]string{"keyword", " Vector "})
	require.NoError(t, err)
	assert.Len(t, backends, 2)

	_, err = parseBackends([]string{"bogus"})
	assert.Error(t, err)

	backends, err = parseBackends(nil)
	require.NoError(t, err)
	assert.Nil(t, backends)
}
