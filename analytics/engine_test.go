package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/corpus/core"
	badgerstore "github.com/poiesic/corpus/storage/badger"
)

func newTestEngine(t *testing.T) (*Engine, *badgerstore.Store) {
	t.Helper()
	store, cleanup, err := badgerstore.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(cleanup)

	engine, err := NewEngine(store)
	require.NoError(t, err)
	return engine, store
}

func insertDocAt(t *testing.T, store *badgerstore.Store, createdAt time.Time, docType string, metadata map[string]any) {
	t.Helper()
	_, err := store.InsertOne(context.Background(), &core.Document{
		Title:        "doc",
		Content:      "analytics fixture content",
		DocumentType: docType,
		Metadata:     metadata,
		CreatedAt:    createdAt,
	})
	require.NoError(t, err)
}

func daysAgo(n int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -n)
}

func buckets(counts ...int) []core.TemporalBucket {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	out := make([]core.TemporalBucket, len(counts))
	for i, c := range counts {
		out[i] = core.TemporalBucket{Date: base.AddDate(0, 0, i), Count: c}
	}
	return out
}

func TestClassifyTrend(t *testing.T) {
	for _, tc := range []struct {
		name      string
		buckets   []core.TemporalBucket
		direction core.TrendDirection
		magnitude float64
	}{
		{"ramp up", buckets(1, 1, 1, 10, 10, 10), core.TrendUp, 9.0},
		{"flat", buckets(5, 5, 5, 5, 5, 5), core.TrendStable, 0},
		{"ramp down", buckets(10, 10, 10, 1, 1, 1), core.TrendDown, 0.9},
		{"inside dead zone", buckets(10, 10, 11, 11), core.TrendStable, 0},
		{"single day", buckets(7), core.TrendStable, 0},
		{"no days", nil, core.TrendStable, 0},
		{"silent first half", buckets(0, 0, 3, 3), core.TrendUp, 1.0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			verdict := classifyTrend(tc.buckets)
			assert.Equal(t, tc.direction, verdict.Direction)
			assert.InDelta(t, tc.magnitude, verdict.Magnitude, 0.0001)
		})
	}
}

func TestTemporalAnalysis(t *testing.T) {
	engine, store := newTestEngine(t)

	insertDocAt(t, store, daysAgo(2), "report", nil)
	insertDocAt(t, store, daysAgo(1), "report", nil)
	insertDocAt(t, store, daysAgo(1), "note", nil)
	insertDocAt(t, store, daysAgo(0), "note", nil)

	report, err := engine.TemporalAnalysis(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 7, report.WindowDays)
	assert.Equal(t, 4, report.TotalDocuments)
	assert.Equal(t, map[string]int{"report": 2, "note": 2}, report.TypeDistribution)

	require.Len(t, report.Buckets, 3)
	for i := 1; i < len(report.Buckets); i++ {
		assert.True(t, report.Buckets[i-1].Date.Before(report.Buckets[i].Date), "buckets sorted ascending")
	}
	assert.Equal(t, 1, report.Buckets[0].Count)
	assert.Equal(t, 2, report.Buckets[1].Count)
	assert.Equal(t, 1, report.Buckets[2].Count)
}

func TestTemporalAnalysis_WindowExcludesOldDocuments(t *testing.T) {
	engine, store := newTestEngine(t)

	insertDocAt(t, store, daysAgo(40), "report", nil)
	insertDocAt(t, store, daysAgo(1), "report", nil)

	report, err := engine.TemporalAnalysis(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalDocuments)
}

func TestTemporalAnalysis_EmptyCorpus(t *testing.T) {
	engine, _ := newTestEngine(t)

	report, err := engine.TemporalAnalysis(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, defaultWindowDays, report.WindowDays)
	assert.Zero(t, report.TotalDocuments)
	assert.Empty(t, report.Buckets)
	assert.Equal(t, core.TrendStable, report.Trend.Direction)
}

func TestMetadataIntelligence(t *testing.T) {
	engine, store := newTestEngine(t)

	insertDocAt(t, store, daysAgo(3), "report", map[string]any{"author": "kim", "word_count": 120})
	insertDocAt(t, store, daysAgo(2), "report", map[string]any{"author": "lee"})
	insertDocAt(t, store, daysAgo(1), "note", nil)

	report, err := engine.MetadataIntelligence(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalDocuments)
	assert.Equal(t, 2, report.DocumentsWithMetadata)
	assert.Equal(t, []string{"author", "word_count"}, report.MetadataKeys)
	assert.Equal(t, map[string]int{"report": 2, "note": 1}, report.TypeDistribution)
	assert.InDelta(t, 2.0/3.0, report.Coverage, 0.0001)
}

func TestMetadataIntelligence_EmptyCorpus(t *testing.T) {
	engine, _ := newTestEngine(t)

	report, err := engine.MetadataIntelligence(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.TotalDocuments)
	assert.Zero(t, report.Coverage)
	assert.Empty(t, report.MetadataKeys)
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(nil)
	assert.ErrorIs(t, err, ErrStoreRequired)
}
