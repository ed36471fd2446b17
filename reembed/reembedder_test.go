package reembed

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/corpus/ai/mock"
	"github.com/poiesic/corpus/core"
	badgerstore "github.com/poiesic/corpus/storage/badger"
)

func newTestStore(t *testing.T) *badgerstore.Store {
	t.Helper()
	store, cleanup, err := badgerstore.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return store
}

func insertDoc(t *testing.T, store *badgerstore.Store, content string, embedding []float32, metadata map[string]any) string {
	t.Helper()
	id, err := store.InsertOne(context.Background(), &core.Document{
		Title:     "doc",
		Content:   content,
		Metadata:  metadata,
		Embedding: embedding,
	})
	require.NoError(t, err)
	return id
}

func TestReembedder_FullSweep(t *testing.T) {
	store := newTestStore(t)
	embedder := mock.NewMockEmbedder()

	ids := []string{
		insertDoc(t, store, "first document", make([]float32, 384), nil),
		insertDoc(t, store, "second document", make([]float32, 384), nil),
	}

	var out bytes.Buffer
	r, err := NewReembedder(store, embedder, nil, &out)
	require.NoError(t, err)

	processed, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	for _, id := range ids {
		doc, err := store.Get(context.Background(), id)
		require.NoError(t, err)
		assert.False(t, isZeroVector(doc.Embedding), "document %s got a real vector", id)
		assert.Equal(t, "doc", doc.Title)
		assert.NotEmpty(t, doc.MetadataString("reembedded_at"))
	}
	assert.Contains(t, out.String(), "Reembedding complete")
}

func TestReembedder_OnlyDegraded(t *testing.T) {
	store := newTestStore(t)
	embedder := mock.NewMockEmbedder()

	healthyVec, err := embedder.EmbedText(context.Background(), "healthy document")
	require.NoError(t, err)
	healthyID := insertDoc(t, store, "healthy document", healthyVec, nil)
	degradedID := insertDoc(t, store, "degraded document", make([]float32, 384),
		map[string]any{core.MetaLowConfidence: true})

	config := DefaultConfig()
	config.OnlyDegraded = true

	var out bytes.Buffer
	r, err := NewReembedder(store, embedder, config, &out)
	require.NoError(t, err)

	processed, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	degraded, err := store.Get(context.Background(), degradedID)
	require.NoError(t, err)
	assert.False(t, degraded.LowConfidence(), "flag cleared after recovery")
	assert.False(t, isZeroVector(degraded.Embedding))

	healthy, err := store.Get(context.Background(), healthyID)
	require.NoError(t, err)
	assert.Empty(t, healthy.MetadataString("reembedded_at"), "healthy documents untouched")
}

// unloadedVectorStore serves documents without their embeddings, the way
// a projected read path that skips the vector column would.
type unloadedVectorStore struct {
	*badgerstore.Store
}

func (s *unloadedVectorStore) ListCreatedSince(ctx context.Context, since time.Time) ([]*core.Document, error) {
	docs, err := s.Store.ListCreatedSince(ctx, since)
	for _, doc := range docs {
		doc.Embedding = nil
	}
	return docs, err
}

func TestReembedder_OnlyDegradedIgnoresUnloadedVectors(t *testing.T) {
	store := newTestStore(t)
	embedder := mock.NewMockEmbedder()

	vec, err := embedder.EmbedText(context.Background(), "healthy document")
	require.NoError(t, err)
	insertDoc(t, store, "healthy document", vec, nil)

	config := DefaultConfig()
	config.OnlyDegraded = true

	var out bytes.Buffer
	r, err := NewReembedder(&unloadedVectorStore{store}, embedder, config, &out)
	require.NoError(t, err)

	processed, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed, "a missing embedding is not a degraded one")
}

func TestReembedder_NilProgressWriter(t *testing.T) {
	store := newTestStore(t)
	insertDoc(t, store, "quiet run", make([]float32, 384), nil)

	r, err := NewReembedder(store, mock.NewMockEmbedder(), nil, nil)
	require.NoError(t, err)

	processed, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
}

func TestReembedder_EmptyStore(t *testing.T) {
	store := newTestStore(t)

	var out bytes.Buffer
	r, err := NewReembedder(store, mock.NewMockEmbedder(), nil, &out)
	require.NoError(t, err)

	processed, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed)
	assert.Contains(t, out.String(), "No documents to reembed")
}

func TestReembedder_RetriesTransientFailures(t *testing.T) {
	store := newTestStore(t)
	insertDoc(t, store, "flaky service target", make([]float32, 384), nil)

	embedder := mock.NewMockEmbedder()
	attempts := 0
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("transient failure")
		}
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{1, 0, 0}
		}
		return out, nil
	}

	config := DefaultConfig()
	config.RetryDelay = time.Millisecond

	var out bytes.Buffer
	r, err := NewReembedder(store, embedder, config, &out)
	require.NoError(t, err)

	processed, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 3, attempts)
}

func TestReembedder_Validation(t *testing.T) {
	store := newTestStore(t)

	_, err := NewReembedder(nil, mock.NewMockEmbedder(), nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewReembedder(store, nil, nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds first try", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(ctx, func() error { calls++; return nil }, 3, time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		calls := 0
		wantErr := errors.New("always fails")
		err := RetryWithBackoff(ctx, func() error { calls++; return wantErr }, 3, time.Millisecond)
		assert.ErrorIs(t, err, wantErr)
		assert.Equal(t, 3, calls)
	})

	t.Run("invalid attempts", func(t *testing.T) {
		err := RetryWithBackoff(ctx, func() error { return nil }, 0, time.Millisecond)
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
	})

	t.Run("honors cancellation", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := RetryWithBackoff(cancelled, func() error { return errors.New("x") }, 3, time.Millisecond)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestIsZeroVector(t *testing.T) {
	assert.True(t, isZeroVector(make([]float32, 384)))
	assert.False(t, isZeroVector([]float32{0, 0, 1}))
	assert.False(t, isZeroVector(nil))
	assert.False(t, isZeroVector([]float32{}))
}

func TestNormalizeVector(t *testing.T) {
	normalized := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, normalized[0], 0.0001)
	assert.InDelta(t, 0.8, normalized[1], 0.0001)

	zero := NormalizeVector([]float32{0, 0, 0})
	assert.True(t, isZeroVector(zero))

	assert.Empty(t, NormalizeVector(nil))
}
