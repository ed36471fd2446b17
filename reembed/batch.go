package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/corpus/ai"
	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
)

// BatchProcessor regenerates embeddings for batches of documents.
type BatchProcessor struct {
	store          storage.DocumentStore
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of retry attempts for embedding API calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(store storage.DocumentStore, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		store:          store,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process generates embeddings for a batch of documents and rewrites them
// in the store. Vectors are normalized after embedding so cosine ranking
// stays well-conditioned, and the low-confidence flag is cleared on every
// document that now has a real vector.
func (bp *BatchProcessor) Process(ctx context.Context, docs []*core.Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)

	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(docs) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(docs), len(embeddings))
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for i, doc := range docs {
		doc.Embedding = NormalizeVector(embeddings[i])
		if doc.Metadata == nil {
			doc.Metadata = make(map[string]any)
		}
		delete(doc.Metadata, core.MetaLowConfidence)
		doc.Metadata["reembedded_at"] = now

		if err := bp.store.Update(ctx, doc.Id, doc); err != nil {
			return fmt.Errorf("failed to update document %s: %w", doc.Id, err)
		}
	}

	return nil
}
