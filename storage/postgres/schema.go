package postgres

import (
	"context"
	"fmt"
)

// Schema statements. The embedding column dimension is fixed at table
// creation; changing the embedding model requires a new table.
const (
	enableVectorSQL = `CREATE EXTENSION IF NOT EXISTS vector`

	createTableSQL = `
CREATE TABLE IF NOT EXISTS documents (
    id UUID DEFAULT gen_random_uuid() PRIMARY KEY,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    document_type VARCHAR(50) DEFAULT 'general',
    source_file VARCHAR(255),
    metadata JSONB DEFAULT '{}',
    embedding VECTOR(%d),
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
)`
)

var indexSQL = []string{
	`CREATE INDEX IF NOT EXISTS documents_embedding_idx ON documents USING ivfflat (embedding vector_cosine_ops)`,
	`CREATE INDEX IF NOT EXISTS documents_created_at_idx ON documents (created_at)`,
	`CREATE INDEX IF NOT EXISTS documents_type_idx ON documents (document_type)`,
	`CREATE INDEX IF NOT EXISTS documents_metadata_idx ON documents USING gin (metadata)`,
}

// EnsureSchema creates the documents table and its indexes if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, enableVectorSQL); err != nil {
		return fmt.Errorf("enable pgvector: %w", err)
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(createTableSQL, s.dimension)); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	for _, stmt := range indexSQL {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
