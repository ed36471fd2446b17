package badger

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
)

// Store implements storage.DocumentStore for BadgerDB.
//
// Similarity search is a linear scan over all stored embeddings. That is
// adequate up to tens of thousands of documents; beyond that, use the
// postgres backend.
type Store struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.DocumentStore = (*Store)(nil)

// NewStore creates a document store on top of an open backend.
func NewStore(backend *Backend) *Store {
	return &Store{
		backend: backend,
		logger:  slog.Default().With("component", "badger-store"),
	}
}

// Close closes the underlying backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Insert stores a batch of documents atomically.
func (s *Store) Insert(ctx context.Context, docs []*core.Document) ([]string, error) {
	ids := make([]string, 0, len(docs))
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, doc := range docs {
			if err := s.insertInTx(tx, doc); err != nil {
				return err
			}
			ids = append(ids, doc.Id)
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// InsertOne stores a single document and returns its id.
func (s *Store) InsertOne(ctx context.Context, doc *core.Document) (string, error) {
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if err := s.insertInTx(tx, doc); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return "", err
	}
	return doc.Id, nil
}

func (s *Store) insertInTx(tx *badger.Txn, doc *core.Document) error {
	if err := core.ValidateDocument(doc); err != nil {
		return err
	}

	if doc.Id == "" {
		doc.Id = uuid.NewString()
	}

	now := time.Now().UTC()
	// A caller-provided CreatedAt survives; versioned re-ingests rely on it.
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	value, err := storage.MarshalDocument(doc)
	if err != nil {
		return err
	}
	if err := tx.Set(makeDocumentKey(doc.Id), value); err != nil {
		return err
	}

	return s.writeIndexes(tx, doc)
}

// Update replaces the document stored under id.
func (s *Store) Update(ctx context.Context, id string, doc *core.Document) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(id)
		old, err := readDocument(tx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		doc.Id = id
		doc.CreatedAt = old.CreatedAt
		doc.UpdatedAt = time.Now().UTC()

		if err := core.ValidateDocument(doc); err != nil {
			return err
		}

		if err := s.deleteIndexes(tx, old); err != nil {
			return err
		}

		value, err := storage.MarshalDocument(doc)
		if err != nil {
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}
		if err := s.writeIndexes(tx, doc); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Get retrieves a document by id.
func (s *Store) Get(ctx context.Context, id string) (*core.Document, error) {
	var result *core.Document
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDocument(tx, makeDocumentKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// VectorQuery finds documents by cosine similarity against the query
// vector.
func (s *Store) VectorQuery(ctx context.Context, embedding []float32, threshold float32, limit int, filters storage.Filters) ([]*core.Match, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	var matches []*core.Match
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var doc *core.Document
			err := iter.Item().Value(func(val []byte) error {
				var err error
				doc, err = storage.UnmarshalDocument(val)
				return err
			})
			if err != nil {
				return err
			}
			if doc == nil || !matchesFilters(doc, filters) {
				continue
			}
			if len(doc.Embedding) == 0 {
				continue
			}

			similarity := cosineSimilarity(embedding, doc.Embedding)
			if similarity > threshold {
				matches = append(matches, &core.Match{
					Document:   doc,
					Similarity: similarity,
				})
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortFunc(matches, func(a, b *core.Match) int {
		if a.Similarity > b.Similarity {
			return -1
		}
		if a.Similarity < b.Similarity {
			return 1
		}
		return 0
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// AttributeQuery retrieves documents matching the filters, newest first.
func (s *Store) AttributeQuery(ctx context.Context, filters storage.Filters, limit int) ([]*core.Document, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	var results []*core.Document
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek past the last possible date key, then walk backwards.
		startKey := makePartialDateKey(time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC))
		prefix := []byte(datePrefix + ":")

		for iter.Seek(startKey); iter.Valid() && len(results) < limit; iter.Next() {
			key := iter.Item().Key()
			if len(key) < len(prefix) || !slices.Equal(key[:len(prefix)], prefix) {
				break
			}

			id := string(key[len(prefix)+8:])
			doc, err := readDocument(tx, makeDocumentKey(id))
			if err != nil {
				return err
			}
			if doc != nil && matchesFilters(doc, filters) {
				results = append(results, doc)
			}
		}
		return nil
	}, false)
	return results, err
}

// ScanBy retrieves documents whose indexed attribute equals value.
func (s *Store) ScanBy(ctx context.Context, key, value string) ([]*core.Document, error) {
	var prefix string
	switch key {
	case storage.IndexContentHash:
		prefix = contentHashPrefix
	case storage.IndexFileHash:
		prefix = fileHashPrefix
	case storage.IndexSourceFile:
		prefix = sourcePathPrefix
	default:
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.Document
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		partial := makePartialAttrKey(prefix, value)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = partial
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			indexKey := iter.Item().Key()
			id := string(indexKey[len(partial):])
			doc, err := readDocument(tx, makeDocumentKey(id))
			if err != nil {
				return err
			}
			if doc != nil {
				results = append(results, doc)
			}
		}
		return nil
	}, false)
	return results, err
}

// ListCreatedSince retrieves documents created at or after since, oldest
// first.
func (s *Store) ListCreatedSince(ctx context.Context, since time.Time) ([]*core.Document, error) {
	prefix := []byte(datePrefix + ":")
	startKey := prefix
	if !since.IsZero() && since.After(time.Unix(0, 0)) {
		startKey = makePartialDateKey(since)
	}

	var results []*core.Document
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(startKey); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if len(key) < len(prefix)+8 || !slices.Equal(key[:len(prefix)], prefix) {
				break
			}

			id := string(key[len(prefix)+8:])
			doc, err := readDocument(tx, makeDocumentKey(id))
			if err != nil {
				return err
			}
			if doc != nil {
				results = append(results, doc)
			}
		}
		return nil
	}, false)
	return results, err
}

// Count returns the total number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// Helper methods

// readDocument reads a document from the transaction. Returns nil, nil
// when the key doesn't exist.
func readDocument(tx *badger.Txn, key []byte) (*core.Document, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var doc *core.Document
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		doc, unmarshalErr = storage.UnmarshalDocument(val)
		return unmarshalErr
	})
	return doc, err
}

// writeIndexes adds secondary index entries for a document.
func (s *Store) writeIndexes(tx *badger.Txn, doc *core.Document) error {
	empty := []byte{}

	if hash := doc.MetadataString(core.MetaContentHash); hash != "" {
		if err := tx.Set(makeAttrKey(contentHashPrefix, hash, doc.Id), empty); err != nil {
			return err
		}
	}
	if hash := doc.MetadataString(core.MetaFileHash); hash != "" {
		if err := tx.Set(makeAttrKey(fileHashPrefix, hash, doc.Id), empty); err != nil {
			return err
		}
	}
	if doc.SourceFile != "" {
		if err := tx.Set(makeAttrKey(sourcePathPrefix, doc.SourceFile, doc.Id), empty); err != nil {
			return err
		}
	}
	return tx.Set(makeDateKey(doc.CreatedAt, doc.Id), empty)
}

// deleteIndexes removes secondary index entries for a document.
func (s *Store) deleteIndexes(tx *badger.Txn, doc *core.Document) error {
	if hash := doc.MetadataString(core.MetaContentHash); hash != "" {
		if err := tx.Delete(makeAttrKey(contentHashPrefix, hash, doc.Id)); err != nil {
			return err
		}
	}
	if hash := doc.MetadataString(core.MetaFileHash); hash != "" {
		if err := tx.Delete(makeAttrKey(fileHashPrefix, hash, doc.Id)); err != nil {
			return err
		}
	}
	if doc.SourceFile != "" {
		if err := tx.Delete(makeAttrKey(sourcePathPrefix, doc.SourceFile, doc.Id)); err != nil {
			return err
		}
	}
	return tx.Delete(makeDateKey(doc.CreatedAt, doc.Id))
}

func validateFilters(filters storage.Filters) error {
	for key := range filters {
		if key != "document_type" && key != "source_file" {
			return storage.ErrInvalidQuery
		}
	}
	return nil
}

func matchesFilters(doc *core.Document, filters storage.Filters) bool {
	for key, want := range filters {
		switch key {
		case "document_type":
			if doc.DocumentType != want {
				return false
			}
		case "source_file":
			if doc.SourceFile != want {
				return false
			}
		}
	}
	return true
}

// cosineSimilarity computes cosine similarity between two vectors.
// Mismatched dimensions and zero vectors score 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
