package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity
// search. Determinism is not required, but stability across calls for
// identical input is assumed so that embeddings and fingerprints correlate.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails; callers degrade
	// per their own policy (the ingestion pipeline substitutes a zero
	// vector, the search engine falls back a tier).
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in
	// a batch. The returned slice contains embeddings in input order.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
