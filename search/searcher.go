package search

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/poiesic/corpus/ai"
	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
)

const (
	// matchThreshold is the minimum similarity for a vector-tier hit.
	matchThreshold = 0.1

	// defaultLimit applies when the caller passes a non-positive limit.
	defaultLimit = 10

	// advancedFetchLimit is how many candidates AdvancedSearch pulls
	// before post-filtering; advancedResultLimit is what it returns.
	advancedFetchLimit  = 50
	advancedResultLimit = 20
)

// Searcher provides tiered search over the document store. Vector
// similarity is the primary tier; when embedding or the vector index is
// unavailable it degrades to an attribute scan, and finally to an empty
// result set. Callers always get a usable (possibly empty) slice, never
// an error; the Tier tag on each result records which stage answered.
type Searcher struct {
	store    storage.DocumentStore
	embedder ai.Embedder
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "search")
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(store storage.DocumentStore, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		store:    store,
		embedder: embedder,
		logger:   slog.Default().With("component", "search"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// AdvancedFilters are applied after retrieval, against the candidate set
// the store already returned. Zero values mean "no constraint".
type AdvancedFilters struct {
	CreatedAfter  time.Time
	CreatedBefore time.Time

	// Metadata requires exact string equality per key.
	Metadata map[string]string
}

// Search returns up to limit documents relevant to query, most similar
// first. It never returns an error: tier 1 runs vector similarity, any
// tier-1 failure falls back to an attribute scan, and any tier-2 failure
// yields an empty slice.
func (s *Searcher) Search(ctx context.Context, query string, filters storage.Filters, limit int) []*core.SearchResult {
	return s.SearchWithMonitor(ctx, query, filters, limit, nil)
}

// SearchWithMonitor is Search with per-stage observation hooks.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, filters storage.Filters, limit int, monitor SearchMonitor) []*core.SearchResult {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	monitor.Start(query)

	results, err := s.vectorTier(ctx, query, filters, limit, monitor)
	if err == nil {
		monitor.Finish(results)
		return results
	}
	s.logger.Warn("vector search unavailable, degrading to attribute scan", "err", err)
	monitor.Degraded(core.TierVector, err)

	results, err = s.attributeTier(ctx, query, filters, limit, monitor)
	if err == nil {
		monitor.Finish(results)
		return results
	}
	s.logger.Warn("attribute scan unavailable, returning empty result set", "err", err)
	monitor.Degraded(core.TierAttribute, err)

	results = []*core.SearchResult{}
	monitor.Finish(results)
	return results
}

// AdvancedSearch runs a tiered search with a widened candidate set, then
// applies date-range and metadata-equality filters to what came back. It
// never re-queries the store; post-filtering only narrows.
func (s *Searcher) AdvancedSearch(ctx context.Context, query string, filters storage.Filters, post AdvancedFilters) []*core.SearchResult {
	candidates := s.Search(ctx, query, filters, advancedFetchLimit)

	results := make([]*core.SearchResult, 0, len(candidates))
	for _, r := range candidates {
		if !matchesAdvanced(r.Document, post) {
			continue
		}
		results = append(results, r)
		if len(results) == advancedResultLimit {
			break
		}
	}
	return results
}

// vectorTier embeds the query and ranks documents by cosine similarity.
func (s *Searcher) vectorTier(ctx context.Context, query string, filters storage.Filters, limit int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := s.store.VectorQuery(ctx, embedding, matchThreshold, limit, filters)
	if err != nil {
		return nil, err
	}
	monitor.AfterVectorSearch(matches)

	results := make([]*core.SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, &core.SearchResult{
			Document:   m.Document,
			Similarity: m.Similarity,
			Tier:       core.TierVector,
		})
	}
	return results, nil
}

// attributeTier scans by typed filters alone. Scores are not available
// here, so documents containing every query word sort ahead of the rest
// and order is otherwise preserved.
func (s *Searcher) attributeTier(ctx context.Context, query string, filters storage.Filters, limit int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	docs, err := s.store.AttributeQuery(ctx, filters, limit)
	if err != nil {
		return nil, err
	}
	monitor.AfterAttributeSearch(docs)

	results := make([]*core.SearchResult, 0, len(docs))
	for _, doc := range docs {
		results = append(results, &core.SearchResult{
			Document: doc,
			Tier:     core.TierAttribute,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return containsAllQueryWords(results[i].Document, query) &&
			!containsAllQueryWords(results[j].Document, query)
	})
	return results, nil
}

func matchesAdvanced(doc *core.Document, post AdvancedFilters) bool {
	if !post.CreatedAfter.IsZero() && doc.CreatedAt.Before(post.CreatedAfter) {
		return false
	}
	if !post.CreatedBefore.IsZero() && doc.CreatedAt.After(post.CreatedBefore) {
		return false
	}
	for key, want := range post.Metadata {
		if doc.MetadataString(key) != want {
			return false
		}
	}
	return true
}
