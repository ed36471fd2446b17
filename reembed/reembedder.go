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


package reembed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/corpus/ai"
	"github.com/poiesic/corpus/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of documents to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// OnlyDegraded restricts the run to documents whose embedding never
	// materialized: zero vectors and the low-confidence flag. This is the
	// recovery path after an embedding service outage during ingestion.
	OnlyDegraded bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder regenerates embeddings for documents already in the store,
// either the whole corpus (after an embedding model change) or only the
// degraded documents left behind by an outage.
type Reembedder struct {
	store     storage.DocumentStore
	embedder  ai.Embedder
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(store storage.DocumentStore, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		store:     store,
		embedder:  embedder,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(store, embedder, config.MaxRetries, config.RetryDelay),
	}, nil
}

// Run executes the reembedding operation and reports progress to the
// configured writer. It returns the number of documents reembedded.
func (r *Reembedder) Run(ctx context.Context) (int, error) {
	docs, err := r.store.ListCreatedSince(ctx, time.Time{})
	if err != nil {
		return 0, fmt.Errorf("failed to list documents: %w", err)
	}

	if r.config.OnlyDegraded {
		degraded := docs[:0]
		for _, doc := range docs {
			if doc.LowConfidence() || isZeroVector(doc.Embedding) {
				degraded = append(degraded, doc)
			}
		}
		docs = degraded
	}

	total := len(docs)
	if total == 0 {
		fmt.Fprintf(r.progress, "No documents to reembed\n")
		return 0, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d documents (batch size: %d)\n",
		total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	for i := 0; i < total; i += r.config.BatchSize {
		select {
		case <-ctx.Done():
			return processed, ctx.Err()
		default:
		}

		end := i + r.config.BatchSize
		if end > total {
			end = total
		}

		if err := r.processor.Process(ctx, docs[i:end]); err != nil {
			return processed, fmt.Errorf("failed to process batch: %w", err)
		}

		processed = end
		tracker.Update(processed)
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d documents in %v (%.1f documents/sec)\n",
		total, elapsed.Round(time.Second), float64(total)/elapsed.Seconds())

	return processed, nil
}
