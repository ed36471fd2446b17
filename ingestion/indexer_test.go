package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/corpus/ai/mock"
	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/extract"
	badgerstore "github.com/poiesic/corpus/storage/badger"
)

func newTestIndexer(t *testing.T, opts ...Option) (*Indexer, *badgerstore.Store, *mock.MockEmbedder) {
	t.Helper()
	store, cleanup, err := badgerstore.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(cleanup)

	embedder := mock.NewMockEmbedder()
	indexer, err := NewIndexer(store, embedder, extract.NewRegistry(), opts...)
	require.NoError(t, err)
	t.Cleanup(indexer.Release)

	return indexer, store, embedder
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIndexer_IngestCreates(t *testing.T) {
	indexer, store, _ := newTestIndexer(t)
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "one.txt", "first document body"),
		writeFile(t, dir, "two.txt", "second document body"),
		writeFile(t, dir, "three.txt", "third document body"),
	}

	report, err := indexer.Ingest(context.Background(), paths, "report", core.PolicySkip)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Created)
	assert.Zero(t, report.Failed)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Provenance metadata lands on every created document.
	doc, err := store.Get(context.Background(), report.Outcomes[0].DocumentID)
	require.NoError(t, err)
	assert.NotEmpty(t, doc.MetadataString(core.MetaContentHash))
	assert.NotEmpty(t, doc.MetadataString(core.MetaFileHash))
	assert.Equal(t, ".txt", doc.MetadataString(core.MetaFileExtension))
	assert.Equal(t, "report", doc.DocumentType)
	assert.Len(t, doc.Embedding, 384)
	assert.False(t, doc.LowConfidence())
}

func TestIndexer_SkipIsIdempotent(t *testing.T) {
	indexer, store, _ := newTestIndexer(t)
	dir := t.TempDir()
	paths := []string{writeFile(t, dir, "memo.txt", "the memo body")}
	ctx := context.Background()

	first, err := indexer.Ingest(ctx, paths, "memo", core.PolicySkip)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := indexer.Ingest(ctx, paths, "memo", core.PolicySkip)
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, 1, second.Skipped)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "re-ingesting under skip must not change the corpus")
}

func TestIndexer_UpdateOnlyWhenFileNewer(t *testing.T) {
	indexer, store, _ := newTestIndexer(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "plan.txt", "original plan")
	ctx := context.Background()

	first, err := indexer.Ingest(ctx, []string{path}, "plan", core.PolicySkip)
	require.NoError(t, err)
	originalID := first.Outcomes[0].DocumentID

	// Unchanged file: its mtime predates the stored document.
	second, err := indexer.Ingest(ctx, []string{path}, "plan", core.PolicyUpdate)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Skipped)
	assert.Zero(t, second.Updated)

	// Touch the file with new content after ingestion.
	time.Sleep(20 * time.Millisecond)
	writeFile(t, dir, "plan.txt", "revised plan")

	third, err := indexer.Ingest(ctx, []string{path}, "plan", core.PolicyUpdate)
	require.NoError(t, err)
	require.Equal(t, 1, third.Updated)
	assert.Equal(t, originalID, third.Outcomes[0].DocumentID, "update rewrites in place")

	doc, err := store.Get(ctx, originalID)
	require.NoError(t, err)
	assert.Equal(t, "revised plan", doc.Content)
	assert.Equal(t, core.ContentHash("original plan"), doc.MetadataString(core.MetaPreviousContentHash))
	assert.Equal(t, "file_modification", doc.MetadataString(core.MetaUpdateReason))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIndexer_VersionCreatesNewDocuments(t *testing.T) {
	indexer, store, _ := newTestIndexer(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "spec_sheet.txt", "stable contents")
	ctx := context.Background()

	ids := map[string]bool{}
	for i := 0; i < 3; i++ {
		report, err := indexer.Ingest(ctx, []string{path}, "spec", core.PolicyVersion)
		require.NoError(t, err)
		require.Equal(t, 1, report.Created)
		ids[report.Outcomes[0].DocumentID] = true
	}
	assert.Len(t, ids, 3, "each version run creates a distinct document")

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Later versions carry a version-stamped title, and the stamps stay
	// distinct even when the runs land within the same second.
	docs, err := store.ListCreatedSince(ctx, time.Time{})
	require.NoError(t, err)
	titles := map[string]bool{}
	versioned := 0
	for _, doc := range docs {
		titles[doc.Title] = true
		if doc.Title != "Spec Sheet" {
			assert.Contains(t, doc.Title, "Spec Sheet (v")
			versioned++
		}
	}
	assert.Equal(t, 2, versioned)
	assert.Len(t, titles, 3, "every version gets its own title")
}

func TestIndexer_ForceAlwaysCreates(t *testing.T) {
	indexer, store, _ := newTestIndexer(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "dup.txt", "identical bytes")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		report, err := indexer.Ingest(ctx, []string{path}, "note", core.PolicyForce)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Created)
	}

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestIndexer_DuplicateWithinRun(t *testing.T) {
	indexer, store, _ := newTestIndexer(t)
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "a.txt", "same body"),
		writeFile(t, dir, "b.txt", "same body"),
	}

	report, err := indexer.Ingest(context.Background(), paths, "note", core.PolicySkip)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Skipped)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIndexer_PartialBatchIsolation(t *testing.T) {
	indexer, store, _ := newTestIndexer(t)
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "f1.txt", "document one"),
		writeFile(t, dir, "f2.txt", "document two"),
		writeFile(t, dir, "f3.json", "{broken json"),
		writeFile(t, dir, "f4.txt", "document four"),
		writeFile(t, dir, "f5.txt", "document five"),
	}

	report, err := indexer.Ingest(context.Background(), paths, "note", core.PolicySkip)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Created)
	assert.Equal(t, 1, report.Failed)

	// The failed outcome names the malformed file, not its neighbors.
	var failed []string
	for _, outcome := range report.Outcomes {
		if outcome.Status == core.StatusFailed {
			failed = append(failed, outcome.File)
		}
	}
	assert.Equal(t, []string{"f3.json"}, failed)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestIndexer_BatchInsertFallback(t *testing.T) {
	indexer, store, _ := newTestIndexer(t)
	dir := t.TempDir()
	// An empty file extracts to empty content, which the store rejects.
	paths := []string{
		writeFile(t, dir, "good1.txt", "fine content"),
		writeFile(t, dir, "empty.txt", ""),
		writeFile(t, dir, "good2.txt", "more fine content"),
	}

	report, err := indexer.Ingest(context.Background(), paths, "note", core.PolicySkip)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created, "valid documents survive a failing batch")
	assert.Equal(t, 1, report.Failed)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestIndexer_EmbeddingFailureDegrades(t *testing.T) {
	indexer, store, embedder := newTestIndexer(t)
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("embedding service down")
	}

	dir := t.TempDir()
	path := writeFile(t, dir, "deg.txt", "content without vectors")

	report, err := indexer.Ingest(context.Background(), []string{path}, "note", core.PolicySkip)
	require.NoError(t, err)
	require.Equal(t, 1, report.Created)

	doc, err := store.Get(context.Background(), report.Outcomes[0].DocumentID)
	require.NoError(t, err)
	assert.True(t, doc.LowConfidence())
	assert.Len(t, doc.Embedding, 384)
	for _, v := range doc.Embedding {
		assert.Zero(t, v)
	}
}

func TestIndexer_InvalidPolicy(t *testing.T) {
	indexer, _, _ := newTestIndexer(t)
	_, err := indexer.Ingest(context.Background(), nil, "note", core.IngestionPolicy("merge"))
	assert.ErrorIs(t, err, core.ErrInvalidPolicy)
}

func TestIndexer_CancelledContext(t *testing.T) {
	indexer, store, _ := newTestIndexer(t)
	dir := t.TempDir()
	paths := []string{writeFile(t, dir, "c.txt", "body")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := indexer.Ingest(ctx, paths, "note", core.PolicySkip)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.Failed)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIndexer_IngestDirectory(t *testing.T) {
	indexer, _, _ := newTestIndexer(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha")
	writeFile(t, dir, "b.md", "# Beta\n\nbody")
	writeFile(t, dir, "ignore.bin", "binary junk")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	writeFile(t, filepath.Join(dir, "nested"), "c.txt", "gamma")

	report, err := indexer.IngestDirectory(context.Background(), dir, "docs", core.PolicySkip)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Created, "unsupported extensions are not even attempted")
	assert.Zero(t, report.Failed)
}

func TestResolver_LookupOrder(t *testing.T) {
	store, cleanup, err := badgerstore.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(cleanup)
	ctx := context.Background()

	existing := &core.Document{
		Title:        "Stored",
		Content:      "stored content",
		DocumentType: "note",
		SourceFile:   "/data/stored.txt",
		Metadata: map[string]any{
			core.MetaContentHash: "chash-1",
			core.MetaFileHash:    "fhash-1",
		},
	}
	_, err = store.InsertOne(ctx, existing)
	require.NoError(t, err)

	resolver := NewResolver(store, nil)

	for _, tc := range []struct {
		name string
		fp   core.ContentFingerprint
		kind DuplicateKind
	}{
		{"content match wins", core.ContentFingerprint{ContentHash: "chash-1", FileHash: "fhash-1", SourcePath: "/data/stored.txt"}, ContentDuplicate},
		{"file match second", core.ContentFingerprint{ContentHash: "other", FileHash: "fhash-1", SourcePath: "/data/stored.txt"}, FileDuplicate},
		{"path match last", core.ContentFingerprint{ContentHash: "other", FileHash: "other", SourcePath: "/data/stored.txt"}, PathDuplicate},
	} {
		t.Run(tc.name, func(t *testing.T) {
			doc, kind, err := resolver.FindDuplicate(ctx, tc.fp)
			require.NoError(t, err)
			require.NotNil(t, doc)
			assert.Equal(t, tc.kind, kind)
		})
	}

	doc, _, err := resolver.FindDuplicate(ctx, core.ContentFingerprint{
		ContentHash: "none", FileHash: "none", SourcePath: "/none",
	})
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestResolver_ForceSkipsLookup(t *testing.T) {
	store, cleanup, err := badgerstore.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(cleanup)

	resolver := NewResolver(store, nil)
	decision, err := resolver.Resolve(context.Background(), core.ContentFingerprint{}, time.Now(), core.PolicyForce)
	require.NoError(t, err)
	assert.Equal(t, ActionCreate, decision.Action)
	assert.Nil(t, decision.Existing)
}

func TestNewIndexer_Validation(t *testing.T) {
	store, cleanup, err := badgerstore.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(cleanup)

	_, err = NewIndexer(nil, mock.NewMockEmbedder(), extract.NewRegistry())
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewIndexer(store, nil, extract.NewRegistry())
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewIndexer(store, mock.NewMockEmbedder(), nil)
	assert.ErrorIs(t, err, ErrRegistryRequired)
}
