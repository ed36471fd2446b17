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


package storage

import (
	"context"
	"time"

	"github.com/poiesic/corpus/core"
)

// Filters restricts queries to documents matching attribute equality.
// Recognized keys are "document_type" and "source_file"; unknown keys
// cause ErrInvalidQuery.
type Filters map[string]string

// Indexed attribute names accepted by DocumentStore.ScanBy.
const (
	IndexContentHash = "content_hash"
	IndexFileHash    = "file_hash"
	IndexSourceFile  = "source_file"
)

// DocumentStore provides persistence for documents and their embeddings.
// Implementations must be thread-safe and support concurrent access.
type DocumentStore interface {
	// Insert stores a batch of documents atomically. Documents with an
	// empty Id get a generated one; a zero CreatedAt is set to now.
	// Returns the ids in input order. On error nothing is stored.
	Insert(ctx context.Context, docs []*core.Document) ([]string, error)

	// InsertOne stores a single document and returns its id.
	InsertOne(ctx context.Context, doc *core.Document) (string, error)

	// Update replaces the document stored under id. The original
	// CreatedAt is preserved and UpdatedAt is set to now.
	// Returns ErrNotFound if no document exists under id.
	Update(ctx context.Context, id string, doc *core.Document) error

	// Get retrieves a document by id.
	// Returns ErrNotFound if the document doesn't exist.
	Get(ctx context.Context, id string) (*core.Document, error)

	// VectorQuery finds documents whose embedding has cosine similarity
	// strictly greater than threshold with the query vector, up to limit
	// results ordered by similarity descending. Filters, when non-empty,
	// are applied before scoring.
	VectorQuery(ctx context.Context, embedding []float32, threshold float32, limit int, filters Filters) ([]*core.Match, error)

	// AttributeQuery retrieves documents matching the filters, ordered
	// by creation time descending, up to limit results.
	AttributeQuery(ctx context.Context, filters Filters, limit int) ([]*core.Document, error)

	// ScanBy retrieves documents whose indexed attribute equals value.
	// key must be one of the Index* constants.
	ScanBy(ctx context.Context, key, value string) ([]*core.Document, error)

	// ListCreatedSince retrieves documents created at or after since,
	// ordered by creation time ascending. A zero since returns all
	// documents.
	ListCreatedSince(ctx context.Context, since time.Time) ([]*core.Document, error)

	// Count returns the total number of stored documents.
	Count(ctx context.Context) (int, error)

	// Close closes the storage backend and releases resources.
	Close() error
}
