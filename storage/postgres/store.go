// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
)

// Store implements storage.DocumentStore on PostgreSQL with pgvector.
// Similarity search uses the ivfflat cosine index, so it scales past the
// linear-scan limits of the embedded backend.
type Store struct {
	pool      *pgxpool.Pool
	dimension int
	logger    *slog.Logger
}

var _ storage.DocumentStore = (*Store)(nil)

// Open connects to PostgreSQL and ensures the schema exists.
// dimension fixes the embedding column width.
func Open(ctx context.Context, dsn string, dimension int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	s := &Store{
		pool:      pool,
		dimension: dimension,
		logger:    slog.Default().With("component", "postgres-store"),
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const insertSQL = `
INSERT INTO documents (title, content, document_type, source_file, metadata, embedding, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`

// Insert stores a batch of documents in a single transaction.
func (s *Store) Insert(ctx context.Context, docs []*core.Document) ([]string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		id, err := insertInTx(ctx, tx, doc)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

// InsertOne stores a single document and returns its id.
func (s *Store) InsertOne(ctx context.Context, doc *core.Document) (string, error) {
	ids, err := s.Insert(ctx, []*core.Document{doc})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

type execer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertInTx(ctx context.Context, tx execer, doc *core.Document) (string, error) {
	if err := core.ValidateDocument(doc); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	metadata, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return "", err
	}

	var id string
	err = tx.QueryRow(ctx, insertSQL,
		doc.Title, doc.Content, doc.DocumentType, doc.SourceFile,
		metadata, pgvector.NewVector(doc.Embedding),
		doc.CreatedAt, doc.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	doc.Id = id
	return id, nil
}

const updateSQL = `
UPDATE documents
SET title = $2, content = $3, document_type = $4, source_file = $5,
    metadata = $6, embedding = $7, updated_at = $8
WHERE id = $1`

// Update replaces the document stored under id, preserving created_at.
func (s *Store) Update(ctx context.Context, id string, doc *core.Document) error {
	if err := core.ValidateDocument(doc); err != nil {
		return err
	}

	metadata, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return err
	}

	doc.Id = id
	doc.UpdatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx, updateSQL,
		id, doc.Title, doc.Content, doc.DocumentType, doc.SourceFile,
		metadata, pgvector.NewVector(doc.Embedding), doc.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const selectColumns = `id, title, content, document_type, COALESCE(source_file, ''), metadata, embedding, created_at, updated_at`

// Get retrieves a document by id.
func (s *Store) Get(ctx context.Context, id string) (*core.Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return doc, err
}

// VectorQuery finds documents by cosine similarity using the pgvector
// <=> distance operator: similarity = 1 - distance.
func (s *Store) VectorQuery(ctx context.Context, embedding []float32, threshold float32, limit int, filters storage.Filters) ([]*core.Match, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}
	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, index has %d",
			core.ErrDimensionMismatch, len(embedding), s.dimension)
	}
	where, args := buildFilterClause(filters, 3)
	query := fmt.Sprintf(`
SELECT %s, 1 - (embedding <=> $1) AS similarity
FROM documents
WHERE embedding IS NOT NULL AND 1 - (embedding <=> $1) > $2%s
ORDER BY embedding <=> $1
LIMIT %d`, selectColumns, where, limit)

	queryArgs := append([]any{pgvector.NewVector(embedding), threshold}, args...)
	rows, err := s.pool.Query(ctx, query, queryArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*core.Match
	for rows.Next() {
		doc := &core.Document{}
		var metadata []byte
		var vec pgvector.Vector
		var similarity float64
		if err := rows.Scan(&doc.Id, &doc.Title, &doc.Content, &doc.DocumentType,
			&doc.SourceFile, &metadata, &vec, &doc.CreatedAt, &doc.UpdatedAt, &similarity); err != nil {
			return nil, err
		}
		doc.Embedding = vec.Slice()
		if err := unmarshalMetadata(metadata, doc); err != nil {
			return nil, err
		}
		matches = append(matches, &core.Match{Document: doc, Similarity: float32(similarity)})
	}
	return matches, rows.Err()
}

// AttributeQuery retrieves documents matching the filters, newest first.
func (s *Store) AttributeQuery(ctx context.Context, filters storage.Filters, limit int) ([]*core.Document, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}
	where, args := buildFilterClause(filters, 1)
	if where != "" {
		where = " WHERE " + strings.TrimPrefix(where, " AND ")
	}
	query := fmt.Sprintf(`SELECT %s FROM documents%s ORDER BY created_at DESC LIMIT %d`,
		selectColumns, where, limit)
	return s.queryDocuments(ctx, query, args...)
}

// ScanBy retrieves documents whose indexed attribute equals value.
func (s *Store) ScanBy(ctx context.Context, key, value string) ([]*core.Document, error) {
	var query string
	switch key {
	case storage.IndexContentHash, storage.IndexFileHash:
		query = fmt.Sprintf(`SELECT %s FROM documents WHERE metadata->>'%s' = $1`, selectColumns, key)
	case storage.IndexSourceFile:
		query = `SELECT ` + selectColumns + ` FROM documents WHERE source_file = $1`
	default:
		return nil, storage.ErrInvalidQuery
	}
	return s.queryDocuments(ctx, query, value)
}

// ListCreatedSince retrieves documents created at or after since.
func (s *Store) ListCreatedSince(ctx context.Context, since time.Time) ([]*core.Document, error) {
	return s.queryDocuments(ctx,
		`SELECT `+selectColumns+` FROM documents WHERE created_at >= $1 ORDER BY created_at ASC`,
		since)
}

// Count returns the total number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

func (s *Store) queryDocuments(ctx context.Context, query string, args ...any) ([]*core.Document, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*core.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*core.Document, error) {
	doc := &core.Document{}
	var metadata []byte
	var vec *pgvector.Vector
	if err := row.Scan(&doc.Id, &doc.Title, &doc.Content, &doc.DocumentType,
		&doc.SourceFile, &metadata, &vec, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	if vec != nil {
		doc.Embedding = vec.Slice()
	}
	if err := unmarshalMetadata(metadata, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func validateFilters(filters storage.Filters) error {
	for key := range filters {
		if key != "document_type" && key != "source_file" {
			return storage.ErrInvalidQuery
		}
	}
	return nil
}

// buildFilterClause renders filters as AND conditions starting at the
// given placeholder index.
func buildFilterClause(filters storage.Filters, firstArg int) (string, []any) {
	var clauses []string
	var args []any
	n := firstArg

	if v, ok := filters["document_type"]; ok {
		clauses = append(clauses, fmt.Sprintf(" AND document_type = $%d", n))
		args = append(args, v)
		n++
	}
	if v, ok := filters["source_file"]; ok {
		clauses = append(clauses, fmt.Sprintf(" AND source_file = $%d", n))
		args = append(args, v)
	}
	return strings.Join(clauses, ""), args
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	data, err := sonic.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return data, nil
}

func unmarshalMetadata(data []byte, doc *core.Document) error {
	if len(data) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(data, &doc.Metadata); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return nil
}
