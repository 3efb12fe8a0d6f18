package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/trident-search/trident/internal/errors"
)

// SQLiteGraphStore implements GraphStore on SQLite via the pure Go
// modernc.org/sqlite driver.
type SQLiteGraphStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

const graphSchema = `
CREATE TABLE IF NOT EXISTS entities (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	kind TEXT,
	chunk_id TEXT,
	metadata TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS relationships (
	id TEXT PRIMARY KEY,
	source_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	relation TEXT,
	weight REAL DEFAULT 1.0,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (source_id) REFERENCES entities(id) ON DELETE CASCADE,
	FOREIGN KEY (target_id) REFERENCES entities(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_id);
CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_id);
`

// NewSQLiteGraphStore opens (or creates) a graph store at path.
// An empty path creates an in-memory store.
func NewSQLiteGraphStore(path string) (*SQLiteGraphStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.New(errors.ErrCodeStoreOpen,
				fmt.Sprintf("failed to create directory for %s", path), err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreOpen, "failed to open graph database", err)
	}

	// SQLite allows one writer; serialize access through a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(graphSchema); err != nil {
		_ = db.Close()
		return nil, errors.New(errors.ErrCodeStoreOpen, "failed to initialize graph schema", err)
	}

	return &SQLiteGraphStore{db: db}, nil
}

// UpsertEntity inserts or updates an entity.
func (s *SQLiteGraphStore) UpsertEntity(ctx context.Context, entity *Entity) error {
	if entity == nil || entity.ID == "" {
		return errors.ValidationError("entity must have an ID", nil)
	}
	if entity.Name == "" {
		return errors.ValidationError("entity must have a name", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New(errors.ErrCodeStoreClosed, "graph store is closed", nil)
	}

	var metadataJSON []byte
	if entity.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entity.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode entity metadata: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entities (id, name, kind, chunk_id, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			chunk_id = excluded.chunk_id,
			metadata = excluded.metadata
	`, entity.ID, entity.Name, entity.Kind, entity.ChunkID, string(metadataJSON))
	if err != nil {
		return errors.New(errors.ErrCodeStoreQuery, "failed to upsert entity", err)
	}
	return nil
}

// UpsertRelationship inserts or updates a relationship. An empty ID gets
// a generated one; a zero weight is stored as 1.0.
func (s *SQLiteGraphStore) UpsertRelationship(ctx context.Context, rel *Relationship) error {
	if rel == nil {
		return errors.ValidationError("relationship must not be nil", nil)
	}
	if rel.SourceID == "" || rel.TargetID == "" {
		return errors.ValidationError("relationship must have source and target entity IDs", nil)
	}
	if rel.ID == "" {
		rel.ID = uuid.NewString()
	}

	weight := rel.Weight
	if weight == 0 {
		weight = 1.0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New(errors.ErrCodeStoreClosed, "graph store is closed", nil)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relationships (id, source_id, target_id, relation, weight)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_id = excluded.source_id,
			target_id = excluded.target_id,
			relation = excluded.relation,
			weight = excluded.weight
	`, rel.ID, rel.SourceID, rel.TargetID, rel.Relation, weight)
	if err != nil {
		return errors.New(errors.ErrCodeStoreQuery, "failed to upsert relationship", err)
	}
	return nil
}

// GetEntity returns the entity with the given ID, or nil if absent.
func (s *SQLiteGraphStore) GetEntity(ctx context.Context, id string) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New(errors.ErrCodeStoreClosed, "graph store is closed", nil)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, kind, chunk_id, metadata, created_at
		FROM entities WHERE id = ?
	`, id)

	entity, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreQuery, "failed to get entity", err)
	}
	return entity, nil
}

// FindByName returns entities whose names match any of the given terms,
// case-insensitively.
func (s *SQLiteGraphStore) FindByName(ctx context.Context, names []string) ([]*Entity, error) {
	if len(names) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New(errors.ErrCodeStoreClosed, "graph store is closed", nil)
	}

	placeholders := make([]string, len(names))
	args := make([]any, len(names))
	for i, name := range names {
		placeholders[i] = "?"
		args[i] = strings.ToLower(name)
	}

	query := fmt.Sprintf(`
		SELECT id, name, kind, chunk_id, metadata, created_at
		FROM entities
		WHERE lower(name) IN (%s)
		ORDER BY name, id
	`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreQuery, "failed to find entities by name", err)
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, errors.New(errors.ErrCodeStoreQuery, "failed to scan entity", err)
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

// FindRelated performs breadth-first traversal from the seed entities up to
// maxHops edges away. Edges are followed in both directions. Each entity
// appears once, at the depth it was first reached, with PathWeight the
// product of edge weights along that path.
func (s *SQLiteGraphStore) FindRelated(ctx context.Context, seedIDs []string, maxHops int) ([]*RelatedEntity, error) {
	if len(seedIDs) == 0 {
		return nil, nil
	}
	if maxHops < 0 {
		maxHops = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New(errors.ErrCodeStoreClosed, "graph store is closed", nil)
	}

	visited := make(map[string]*RelatedEntity)
	frontier := make(map[string]float64)

	for _, id := range seedIDs {
		entity, err := s.getEntityLocked(ctx, id)
		if err != nil {
			return nil, err
		}
		if entity == nil {
			continue
		}
		visited[id] = &RelatedEntity{Entity: entity, Hops: 0, PathWeight: 1.0}
		frontier[id] = 1.0
	}

	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		neighbors, err := s.neighborsLocked(ctx, frontier)
		if err != nil {
			return nil, err
		}

		next := make(map[string]float64)
		for id, weight := range neighbors {
			if _, seen := visited[id]; seen {
				continue
			}
			entity, err := s.getEntityLocked(ctx, id)
			if err != nil {
				return nil, err
			}
			if entity == nil {
				continue
			}
			visited[id] = &RelatedEntity{Entity: entity, Hops: hop, PathWeight: weight}
			next[id] = weight
		}
		frontier = next
	}

	results := make([]*RelatedEntity, 0, len(visited))
	for _, re := range visited {
		results = append(results, re)
	}
	return results, nil
}

// neighborsLocked returns the IDs adjacent to the frontier with accumulated
// path weights. When multiple edges reach the same node, the strongest path
// wins.
func (s *SQLiteGraphStore) neighborsLocked(ctx context.Context, frontier map[string]float64) (map[string]float64, error) {
	placeholders := make([]string, 0, len(frontier))
	args := make([]any, 0, len(frontier)*2)
	for id := range frontier {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	in := strings.Join(placeholders, ", ")

	// Duplicate args for the reverse-direction IN clause.
	args = append(args, args...)

	query := fmt.Sprintf(`
		SELECT source_id, target_id, weight FROM relationships WHERE source_id IN (%s)
		UNION ALL
		SELECT source_id, target_id, weight FROM relationships WHERE target_id IN (%s)
	`, in, in)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreQuery, "failed to query relationships", err)
	}
	defer rows.Close()

	neighbors := make(map[string]float64)
	for rows.Next() {
		var sourceID, targetID string
		var weight float64
		if err := rows.Scan(&sourceID, &targetID, &weight); err != nil {
			return nil, errors.New(errors.ErrCodeStoreQuery, "failed to scan relationship", err)
		}

		if base, ok := frontier[sourceID]; ok {
			if w := base * weight; w > neighbors[targetID] {
				neighbors[targetID] = w
			}
		}
		if base, ok := frontier[targetID]; ok {
			if w := base * weight; w > neighbors[sourceID] {
				neighbors[sourceID] = w
			}
		}
	}
	return neighbors, rows.Err()
}

func (s *SQLiteGraphStore) getEntityLocked(ctx context.Context, id string) (*Entity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, kind, chunk_id, metadata, created_at
		FROM entities WHERE id = ?
	`, id)

	entity, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreQuery, "failed to get entity", err)
	}
	return entity, nil
}

// Stats returns entity and relationship counts.
func (s *SQLiteGraphStore) Stats(ctx context.Context) (*GraphStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New(errors.ErrCodeStoreClosed, "graph store is closed", nil)
	}

	stats := &GraphStats{}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities`).Scan(&stats.EntityCount); err != nil {
		return nil, errors.New(errors.ErrCodeStoreQuery, "failed to count entities", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM relationships`).Scan(&stats.RelationshipCount); err != nil {
		return nil, errors.New(errors.ErrCodeStoreQuery, "failed to count relationships", err)
	}
	return stats, nil
}

// Close releases the underlying database.
func (s *SQLiteGraphStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*Entity, error) {
	var entity Entity
	var kind, chunkID, metadataJSON, createdAt sql.NullString

	if err := row.Scan(&entity.ID, &entity.Name, &kind, &chunkID, &metadataJSON, &createdAt); err != nil {
		return nil, err
	}

	entity.Kind = kind.String
	entity.ChunkID = chunkID.String
	entity.CreatedAt = parseSQLiteTime(createdAt.String)

	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &entity.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode entity metadata: %w", err)
		}
	}
	return &entity, nil
}

// parseSQLiteTime parses the text form SQLite uses for CURRENT_TIMESTAMP.
// Returns the zero time on malformed input.
func parseSQLiteTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

var _ GraphStore = (*SQLiteGraphStore)(nil)
