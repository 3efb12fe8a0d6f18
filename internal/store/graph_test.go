package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGraph(t *testing.T) *SQLiteGraphStore {
	t.Helper()
	g, err := NewSQLiteGraphStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

// seedChain builds a linear graph a-b-c-d with unit edge weights.
func seedChain(t *testing.T, g *SQLiteGraphStore) {
	t.Helper()
	ctx := context.Background()

	for _, e := range []*Entity{
		{ID: "a", Name: "Alice", Kind: "person", ChunkID: "chunk-a"},
		{ID: "b", Name: "Berlin", Kind: "place", ChunkID: "chunk-b"},
		{ID: "c", Name: "Chess", Kind: "topic", ChunkID: "chunk-c"},
		{ID: "d", Name: "Dynamo", Kind: "org", ChunkID: "chunk-d"},
	} {
		require.NoError(t, g.UpsertEntity(ctx, e))
	}

	for _, r := range []*Relationship{
		{ID: "r1", SourceID: "a", TargetID: "b", Relation: "lives_in"},
		{ID: "r2", SourceID: "b", TargetID: "c", Relation: "hosts"},
		{ID: "r3", SourceID: "c", TargetID: "d", Relation: "played_by"},
	} {
		require.NoError(t, g.UpsertRelationship(ctx, r))
	}
}

func TestGraphStore_UpsertAndGet(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	entity := &Entity{
		ID:       "e1",
		Name:     "Kubernetes",
		Kind:     "technology",
		ChunkID:  "chunk-17",
		Metadata: map[string]string{"source": "docs/intro.md"},
	}
	require.NoError(t, g.UpsertEntity(ctx, entity))

	got, err := g.GetEntity(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Kubernetes", got.Name)
	assert.Equal(t, "technology", got.Kind)
	assert.Equal(t, "chunk-17", got.ChunkID)
	assert.Equal(t, "docs/intro.md", got.Metadata["source"])
}

func TestGraphStore_UpsertReplacesExisting(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	require.NoError(t, g.UpsertEntity(ctx, &Entity{ID: "e1", Name: "Old Name"}))
	require.NoError(t, g.UpsertEntity(ctx, &Entity{ID: "e1", Name: "New Name"}))

	got, err := g.GetEntity(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "New Name", got.Name)

	stats, err := g.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EntityCount)
}

func TestGraphStore_GetMissingEntity(t *testing.T) {
	g := newTestGraph(t)

	got, err := g.GetEntity(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGraphStore_UpsertValidation(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	assert.Error(t, g.UpsertEntity(ctx, &Entity{Name: "no id"}))
	assert.Error(t, g.UpsertEntity(ctx, &Entity{ID: "no-name"}))
	assert.Error(t, g.UpsertRelationship(ctx, &Relationship{ID: "r", SourceID: "a"}))
}

func TestGraphStore_FindByName(t *testing.T) {
	g := newTestGraph(t)
	seedChain(t, g)
	ctx := context.Background()

	entities, err := g.FindByName(ctx, []string{"alice", "CHESS"})
	require.NoError(t, err)
	require.Len(t, entities, 2)

	names := []string{entities[0].Name, entities[1].Name}
	assert.Contains(t, names, "Alice")
	assert.Contains(t, names, "Chess")

	entities, err = g.FindByName(ctx, []string{"unknown"})
	require.NoError(t, err)
	assert.Empty(t, entities)

	entities, err = g.FindByName(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestGraphStore_FindRelated(t *testing.T) {
	g := newTestGraph(t)
	seedChain(t, g)
	ctx := context.Background()

	tests := []struct {
		name    string
		seeds   []string
		maxHops int
		wantIDs []string
	}{
		{"zero hops returns seeds only", []string{"a"}, 0, []string{"a"}},
		{"one hop", []string{"a"}, 1, []string{"a", "b"}},
		{"two hops", []string{"a"}, 2, []string{"a", "b", "c"}},
		{"traversal follows edges backwards", []string{"d"}, 1, []string{"c", "d"}},
		{"unknown seed yields nothing", []string{"zzz"}, 2, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			related, err := g.FindRelated(ctx, tt.seeds, tt.maxHops)
			require.NoError(t, err)

			ids := make([]string, 0, len(related))
			for _, re := range related {
				ids = append(ids, re.Entity.ID)
			}
			assert.ElementsMatch(t, tt.wantIDs, ids)
		})
	}
}

func TestGraphStore_FindRelatedHopsAndWeights(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	require.NoError(t, g.UpsertEntity(ctx, &Entity{ID: "x", Name: "X"}))
	require.NoError(t, g.UpsertEntity(ctx, &Entity{ID: "y", Name: "Y"}))
	require.NoError(t, g.UpsertRelationship(ctx, &Relationship{
		ID: "r", SourceID: "x", TargetID: "y", Weight: 0.5,
	}))

	related, err := g.FindRelated(ctx, []string{"x"}, 2)
	require.NoError(t, err)
	require.Len(t, related, 2)

	byID := make(map[string]*RelatedEntity)
	for _, re := range related {
		byID[re.Entity.ID] = re
	}
	assert.Equal(t, 0, byID["x"].Hops)
	assert.InDelta(t, 1.0, byID["x"].PathWeight, 0.001)
	assert.Equal(t, 1, byID["y"].Hops)
	assert.InDelta(t, 0.5, byID["y"].PathWeight, 0.001)
}

func TestGraphStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")

	g, err := NewSQLiteGraphStore(path)
	require.NoError(t, err)
	require.NoError(t, g.UpsertEntity(context.Background(), &Entity{ID: "e1", Name: "Persisted"}))
	require.NoError(t, g.Close())

	reopened, err := NewSQLiteGraphStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetEntity(context.Background(), "e1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Persisted", got.Name)
}

func TestGraphStore_ClosedErrors(t *testing.T) {
	g := newTestGraph(t)
	require.NoError(t, g.Close())

	_, err := g.GetEntity(context.Background(), "e1")
	assert.Error(t, err)
	assert.Error(t, g.UpsertEntity(context.Background(), &Entity{ID: "e", Name: "E"}))

	// Double close is a no-op.
	assert.NoError(t, g.Close())
}
