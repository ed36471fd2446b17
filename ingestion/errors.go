package ingestion

import "errors"

var (
	// ErrStoreRequired is returned when a document store is not provided.
	ErrStoreRequired = errors.New("document store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrRegistryRequired is returned when an extractor registry is not provided.
	ErrRegistryRequired = errors.New("extractor registry required")
)
