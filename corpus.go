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


package corpus

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/corpus/ai"
	"github.com/poiesic/corpus/ai/openai"
	"github.com/poiesic/corpus/analytics"
	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/extract"
	"github.com/poiesic/corpus/ingestion"
	"github.com/poiesic/corpus/reembed"
	"github.com/poiesic/corpus/search"
	"github.com/poiesic/corpus/storage"
	"github.com/poiesic/corpus/storage/badger"
	"github.com/poiesic/corpus/storage/postgres"
)

const recentActivityDays = 7

// Config selects the storage backend and embedding service for a System.
type Config struct {
	// StorePath is the badger database directory. Ignored when
	// PostgresDSN is set.
	StorePath string

	// InMemory runs the badger store without persistence, for tests.
	InMemory bool

	// PostgresDSN switches storage to postgres with pgvector.
	PostgresDSN string

	// AI configures the embedding service. Nil means ai.DefaultConfig().
	AI *ai.Config

	// BatchSize is the embedding/insert batch size. Zero keeps the default.
	BatchSize int

	// PoolSize is the extraction worker pool size. Zero keeps the default.
	PoolSize int
}

// System wires the full document pipeline behind one handle: storage,
// extraction, ingestion, search and analytics.
type System struct {
	store    storage.DocumentStore
	embedder ai.Embedder
	registry *extract.Registry
	indexer  *ingestion.Indexer
	searcher *search.Searcher
	engine   *analytics.Engine
	logger   *slog.Logger
}

// Open builds a System from config. The zero config opens an in-memory
// badger store with the default embedding service.
func Open(ctx context.Context, config *Config) (*System, error) {
	if config == nil {
		config = &Config{InMemory: true}
	}

	aiConfig := config.AI
	if aiConfig == nil {
		aiConfig = ai.DefaultConfig()
	}

	embedder, err := openai.NewEmbedder(aiConfig)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, config, aiConfig.Dimension)
	if err != nil {
		return nil, err
	}

	return NewSystem(store, embedder, config)
}

// NewSystem assembles a System over an existing store and embedder.
// Callers that need a custom store implementation or a test embedder use
// this instead of Open.
func NewSystem(store storage.DocumentStore, embedder ai.Embedder, config *Config) (*System, error) {
	if config == nil {
		config = &Config{}
	}

	registry := extract.NewRegistry()

	var ingestOpts []ingestion.Option
	if config.BatchSize > 0 {
		ingestOpts = append(ingestOpts, ingestion.WithBatchSize(config.BatchSize))
	}
	if config.PoolSize > 0 {
		ingestOpts = append(ingestOpts, ingestion.WithPoolSize(config.PoolSize))
	}
	if config.AI != nil && config.AI.Dimension > 0 {
		ingestOpts = append(ingestOpts, ingestion.WithDimension(config.AI.Dimension))
	}

	indexer, err := ingestion.NewIndexer(store, embedder, registry, ingestOpts...)
	if err != nil {
		store.Close()
		return nil, err
	}

	searcher, err := search.NewSearcher(store, embedder)
	if err != nil {
		indexer.Release()
		store.Close()
		return nil, err
	}

	engine, err := analytics.NewEngine(store)
	if err != nil {
		indexer.Release()
		store.Close()
		return nil, err
	}

	return &System{
		store:    store,
		embedder: embedder,
		registry: registry,
		indexer:  indexer,
		searcher: searcher,
		engine:   engine,
		logger:   slog.Default(),
	}, nil
}

func openStore(ctx context.Context, config *Config, dimension int) (storage.DocumentStore, error) {
	if config.PostgresDSN != "" {
		return postgres.Open(ctx, config.PostgresDSN, dimension)
	}

	backend, err := badger.OpenBackend(config.StorePath, config.InMemory)
	if err != nil {
		return nil, err
	}
	return badger.NewStore(backend), nil
}

// Close releases the worker pool and closes the store.
func (s *System) Close() error {
	s.indexer.Release()
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing document store", "err", err)
		return err
	}
	return nil
}

// Store exposes the underlying document store.
func (s *System) Store() storage.DocumentStore {
	return s.store
}

// Ingest processes the given files under the policy.
func (s *System) Ingest(ctx context.Context, paths []string, documentType string, policy core.IngestionPolicy) (*core.IngestionReport, error) {
	return s.indexer.Ingest(ctx, paths, documentType, policy)
}

// IngestDirectory recursively ingests every supported file under root.
func (s *System) IngestDirectory(ctx context.Context, root, documentType string, policy core.IngestionPolicy) (*core.IngestionReport, error) {
	return s.indexer.IngestDirectory(ctx, root, documentType, policy)
}

// Search runs a tiered search. It never returns an error; degraded tiers
// are visible on each result's Tier field.
func (s *System) Search(ctx context.Context, query string, filters storage.Filters, limit int) []*core.SearchResult {
	return s.searcher.Search(ctx, query, filters, limit)
}

// AdvancedSearch runs a tiered search and post-filters by date range and
// metadata equality.
func (s *System) AdvancedSearch(ctx context.Context, query string, filters storage.Filters, post search.AdvancedFilters) []*core.SearchResult {
	return s.searcher.AdvancedSearch(ctx, query, filters, post)
}

// Analytics combines temporal analysis, metadata coverage and corpus
// vitals over the trailing week.
func (s *System) Analytics(ctx context.Context, windowDays int) (*core.AnalyticsReport, error) {
	temporal, err := s.engine.TemporalAnalysis(ctx, windowDays)
	if err != nil {
		return nil, err
	}

	coverage, err := s.engine.MetadataIntelligence(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -recentActivityDays)
	recent, err := s.store.ListCreatedSince(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	health := "needs_data"
	if coverage.TotalDocuments > 0 {
		health = "healthy"
	}

	return &core.AnalyticsReport{
		Temporal:       temporal,
		Coverage:       coverage,
		RecentActivity: len(recent),
		AvgDocsPerDay:  float64(len(recent)) / float64(recentActivityDays),
		Health:         health,
	}, nil
}

// Reembed regenerates stored embeddings, either for the whole corpus or
// only for degraded documents. Progress goes to the given writer.
func (s *System) Reembed(ctx context.Context, onlyDegraded bool, progress io.Writer) (int, error) {
	config := reembed.DefaultConfig()
	config.OnlyDegraded = onlyDegraded

	r, err := reembed.NewReembedder(s.store, s.embedder, config, progress)
	if err != nil {
		return 0, err
	}
	return r.Run(ctx)
}
