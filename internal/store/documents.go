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

	"github.com/trident-search/trident/internal/errors"
)

// SQLiteDocumentStore implements DocumentStore on SQLite.
type SQLiteDocumentStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

const documentSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	source TEXT NOT NULL,
	start_offset INTEGER NOT NULL DEFAULT 0,
	end_offset INTEGER NOT NULL DEFAULT 0,
	node_id TEXT,
	metadata TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
CREATE INDEX IF NOT EXISTS idx_chunks_node ON chunks(node_id);
`

// NewSQLiteDocumentStore opens (or creates) a document store at path.
// An empty path creates an in-memory store.
func NewSQLiteDocumentStore(path string) (*SQLiteDocumentStore, error) {
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
		return nil, errors.New(errors.ErrCodeStoreOpen, "failed to open document database", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(documentSchema); err != nil {
		_ = db.Close()
		return nil, errors.New(errors.ErrCodeStoreOpen, "failed to initialize document schema", err)
	}

	return &SQLiteDocumentStore{db: db}, nil
}

// Put inserts or updates chunks in a single transaction.
func (s *SQLiteDocumentStore) Put(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New(errors.ErrCodeStoreClosed, "document store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(errors.ErrCodeStoreQuery, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, content, source, start_offset, end_offset, node_id, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			source = excluded.source,
			start_offset = excluded.start_offset,
			end_offset = excluded.end_offset,
			node_id = excluded.node_id,
			metadata = excluded.metadata
	`)
	if err != nil {
		return errors.New(errors.ErrCodeStoreQuery, "failed to prepare upsert", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if chunk.ID == "" {
			return errors.ValidationError("chunk must have an ID", nil)
		}

		var metadataJSON []byte
		if chunk.Metadata != nil {
			metadataJSON, err = json.Marshal(chunk.Metadata)
			if err != nil {
				return fmt.Errorf("failed to encode chunk metadata: %w", err)
			}
		}

		if _, err := stmt.ExecContext(ctx,
			chunk.ID, chunk.Content, chunk.Source,
			chunk.StartOffset, chunk.EndOffset, chunk.NodeID,
			string(metadataJSON)); err != nil {
			return errors.New(errors.ErrCodeStoreQuery,
				fmt.Sprintf("failed to upsert chunk %s", chunk.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.New(errors.ErrCodeStoreQuery, "failed to commit chunks", err)
	}
	return nil
}

// Get returns the chunk with the given ID, or nil if absent.
func (s *SQLiteDocumentStore) Get(ctx context.Context, id string) (*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New(errors.ErrCodeStoreClosed, "document store is closed", nil)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, source, start_offset, end_offset, node_id, metadata, created_at
		FROM chunks WHERE id = ?
	`, id)

	chunk, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreQuery, "failed to get chunk", err)
	}
	return chunk, nil
}

// GetMany returns the chunks for the given IDs, keyed by ID. Missing IDs
// are simply absent from the map.
func (s *SQLiteDocumentStore) GetMany(ctx context.Context, ids []string) (map[string]*Chunk, error) {
	if len(ids) == 0 {
		return map[string]*Chunk{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New(errors.ErrCodeStoreClosed, "document store is closed", nil)
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT id, content, source, start_offset, end_offset, node_id, metadata, created_at
		FROM chunks WHERE id IN (%s)
	`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreQuery, "failed to get chunks", err)
	}
	defer rows.Close()

	chunks := make(map[string]*Chunk, len(ids))
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, errors.New(errors.ErrCodeStoreQuery, "failed to scan chunk", err)
		}
		chunks[chunk.ID] = chunk
	}
	return chunks, rows.Err()
}

// Delete removes chunks by ID.
func (s *SQLiteDocumentStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New(errors.ErrCodeStoreClosed, "document store is closed", nil)
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`DELETE FROM chunks WHERE id IN (%s)`, strings.Join(placeholders, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errors.New(errors.ErrCodeStoreQuery, "failed to delete chunks", err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (s *SQLiteDocumentStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, errors.New(errors.ErrCodeStoreClosed, "document store is closed", nil)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return 0, errors.New(errors.ErrCodeStoreQuery, "failed to count chunks", err)
	}
	return count, nil
}

// Close releases the underlying database.
func (s *SQLiteDocumentStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func scanChunk(row rowScanner) (*Chunk, error) {
	var chunk Chunk
	var nodeID, metadataJSON, createdAt sql.NullString

	if err := row.Scan(&chunk.ID, &chunk.Content, &chunk.Source,
		&chunk.StartOffset, &chunk.EndOffset, &nodeID, &metadataJSON, &createdAt); err != nil {
		return nil, err
	}

	chunk.NodeID = nodeID.String
	chunk.CreatedAt = parseSQLiteTime(createdAt.String)

	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode chunk metadata: %w", err)
		}
	}
	return &chunk, nil
}

var _ DocumentStore = (*SQLiteDocumentStore)(nil)
