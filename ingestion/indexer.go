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


package ingestion

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/corpus/ai"
	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/extract"
	"github.com/poiesic/corpus/storage"
)

const defaultBatchSize = 10

// Indexer orchestrates file ingestion: extraction, deduplication,
// embedding and storage. Extraction and dedup resolution run concurrently
// on a worker pool; commits happen sequentially in input order so results
// are deterministic.
type Indexer struct {
	store     storage.DocumentStore
	embedder  ai.Embedder
	registry  *extract.Registry
	resolver  *Resolver
	pool      *ants.Pool
	batchSize int
	dimension int
	logger    *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer) error

// WithPoolSize sets the worker pool size for concurrent file preparation.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(x *Indexer) error {
		if size < 1 {
			size = 1
		}
		if x.pool != nil {
			x.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		x.pool = pool
		return nil
	}
}

// WithBatchSize sets how many new documents are embedded and inserted per
// storage batch. Default is 10.
func WithBatchSize(size int) Option {
	return func(x *Indexer) error {
		if size < 1 {
			size = 1
		}
		x.batchSize = size
		return nil
	}
}

// WithDimension sets the expected embedding vector length. Default is 384.
func WithDimension(dim int) Option {
	return func(x *Indexer) error {
		x.dimension = dim
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(x *Indexer) error {
		if logger == nil {
			logger = slog.Default()
		}
		x.logger = logger.With("component", "ingestion")
		return nil
	}
}

// NewIndexer creates an ingestion indexer.
func NewIndexer(store storage.DocumentStore, embedder ai.Embedder, registry *extract.Registry, opts ...Option) (*Indexer, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if registry == nil {
		return nil, ErrRegistryRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	x := &Indexer{
		store:     store,
		embedder:  embedder,
		registry:  registry,
		pool:      pool,
		batchSize: defaultBatchSize,
		dimension: 384,
		logger:    slog.Default().With("component", "ingestion"),
	}
	x.resolver = NewResolver(store, x.logger)

	for _, opt := range opts {
		if optErr := opt(x); optErr != nil {
			x.Release()
			return nil, optErr
		}
	}
	return x, nil
}

// Release releases the worker pool. The indexer should not be used after
// calling Release.
func (x *Indexer) Release() {
	if x.pool != nil {
		x.pool.Release()
	}
}

// prepared holds the per-file result of the concurrent preparation phase.
type prepared struct {
	path     string
	ref      core.FileRef
	fp       core.ContentFingerprint
	decision *Decision
	doc      *core.Document
	err      error
}

// IngestDirectory walks root recursively, collects every file with a
// supported extension and ingests them.
func (x *Indexer) IngestDirectory(ctx context.Context, root, documentType string, policy core.IngestionPolicy) (*core.IngestionReport, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ref := core.FileRef{Path: path}
		if x.registry.Supported(ref.Ext()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	x.logger.Info("scanned directory", "root", root, "supported_files", len(paths))
	return x.Ingest(ctx, paths, documentType, policy)
}

// Ingest processes files under the given policy and returns a per-file
// report. Preparation (extraction, fingerprinting, dedup resolution) runs
// concurrently; embedding and storage commits run in input order, batching
// new documents. A failed batch insert falls back to per-document inserts
// so one bad document cannot sink its batch.
func (x *Indexer) Ingest(ctx context.Context, paths []string, documentType string, policy core.IngestionPolicy) (*core.IngestionReport, error) {
	if _, err := core.ParsePolicy(string(policy)); err != nil {
		return nil, err
	}

	x.logger.Info("ingesting files", "count", len(paths), "type", documentType, "policy", policy)

	items := make([]*prepared, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		submitErr := x.pool.Submit(func() {
			defer wg.Done()
			items[i] = x.prepare(ctx, path, documentType, policy)
		})
		if submitErr != nil {
			wg.Done()
			items[i] = &prepared{path: path, err: submitErr}
		}
	}
	wg.Wait()

	return x.commit(ctx, items, policy)
}

// prepare extracts one file, fingerprints it and resolves the dedup
// decision. It never writes to the store.
func (x *Indexer) prepare(ctx context.Context, path, documentType string, policy core.IngestionPolicy) *prepared {
	p := &prepared{path: path}

	ref, err := core.Stat(path)
	if err != nil {
		p.err = err
		return p
	}
	p.ref = ref

	result, err := x.registry.Extract(ctx, ref)
	if err != nil {
		p.err = err
		return p
	}

	p.fp = core.Fingerprint(result.Content, ref)

	decision, err := x.resolver.Resolve(ctx, p.fp, ref.ModTime, policy)
	if err != nil {
		p.err = err
		return p
	}
	p.decision = decision

	switch decision.Action {
	case ActionSkip:
		// No document to build.
	case ActionUpdate:
		p.doc = x.buildUpdate(decision.Existing, result, ref, p.fp)
	case ActionCreate, ActionVersion:
		p.doc = x.buildCreate(result, ref, p.fp, documentType)
		if decision.Action == ActionVersion {
			// Microsecond resolution keeps titles distinct when versions
			// of the same file land within one second.
			p.doc.Title = fmt.Sprintf("%s (v%s)", p.doc.Title, time.Now().Format("20060102_150405.000000"))
		}
	}
	return p
}

// buildCreate assembles a new document with provenance metadata.
func (x *Indexer) buildCreate(result *extract.Result, ref core.FileRef, fp core.ContentFingerprint, documentType string) *core.Document {
	metadata := make(map[string]any, len(result.Metadata)+6)
	for k, v := range result.Metadata {
		metadata[k] = v
	}
	metadata[core.MetaContentHash] = fp.ContentHash
	metadata[core.MetaFileHash] = fp.FileHash
	metadata[core.MetaFileSize] = ref.Size
	metadata[core.MetaFileModified] = ref.ModTime.UTC().Format(time.RFC3339)
	metadata[core.MetaFileExtension] = ref.Ext()
	metadata[core.MetaIngestionTimestamp] = time.Now().UTC().Format(time.RFC3339)

	return &core.Document{
		Title:        result.Title,
		Content:      result.Content,
		DocumentType: documentType,
		SourceFile:   ref.Path,
		Metadata:     metadata,
	}
}

// buildUpdate assembles the replacement for an existing document. The
// previous content hash is retained so document lineage stays traceable.
func (x *Indexer) buildUpdate(existing *core.Document, result *extract.Result, ref core.FileRef, fp core.ContentFingerprint) *core.Document {
	metadata := make(map[string]any, len(existing.Metadata)+len(result.Metadata)+5)
	for k, v := range existing.Metadata {
		metadata[k] = v
	}
	previousHash := existing.MetadataString(core.MetaContentHash)
	for k, v := range result.Metadata {
		metadata[k] = v
	}
	metadata[core.MetaContentHash] = fp.ContentHash
	metadata[core.MetaFileHash] = fp.FileHash
	metadata[core.MetaPreviousContentHash] = previousHash
	metadata[core.MetaUpdateReason] = "file_modification"
	metadata["last_updated"] = time.Now().UTC().Format(time.RFC3339)

	return &core.Document{
		Title:        result.Title,
		Content:      result.Content,
		DocumentType: existing.DocumentType,
		SourceFile:   existing.SourceFile,
		Metadata:     metadata,
	}
}

// commit walks prepared items in input order, batching creates and
// applying updates and skips as they appear.
func (x *Indexer) commit(ctx context.Context, items []*prepared, policy core.IngestionPolicy) (*core.IngestionReport, error) {
	report := &core.IngestionReport{}

	// Fingerprints committed during this run. Concurrent preparation
	// resolves against the store as it was before the run, so files that
	// duplicate each other within one batch are caught here.
	seen := map[string]bool{}

	var batch []*prepared
	for i := 0; i < len(items); i++ {
		p := items[i]

		if ctx.Err() != nil {
			for _, pending := range batch {
				report.Add(failedOutcome(pending, ctx.Err()))
			}
			for ; i < len(items); i++ {
				report.Add(failedOutcome(items[i], ctx.Err()))
			}
			return report, ctx.Err()
		}

		if p.err != nil {
			report.Add(failedOutcome(p, p.err))
			continue
		}

		switch p.decision.Action {
		case ActionSkip:
			report.Add(core.IngestionOutcome{
				File:       p.ref.Name(),
				Status:     core.StatusSkipped,
				DocumentID: p.decision.Existing.Id,
				Message:    p.decision.Reason,
			})

		case ActionUpdate:
			x.flushBatch(ctx, &batch, report)
			x.commitUpdate(ctx, p, report)

		case ActionCreate, ActionVersion:
			if p.decision.Action == ActionCreate && x.duplicateInRun(seen, p, policy) {
				report.Add(core.IngestionOutcome{
					File:    p.ref.Name(),
					Status:  core.StatusSkipped,
					Message: "document already ingested in this run",
				})
				continue
			}
			x.markSeen(seen, p)
			batch = append(batch, p)
			if len(batch) >= x.batchSize {
				x.flushBatch(ctx, &batch, report)
			}
		}
	}
	x.flushBatch(ctx, &batch, report)

	x.logger.Info("ingestion complete",
		"created", report.Created, "updated", report.Updated,
		"skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

// duplicateInRun reports whether an equivalent document was already
// committed during this run. Only skip and update policies suppress such
// duplicates; version and force create regardless.
func (x *Indexer) duplicateInRun(seen map[string]bool, p *prepared, policy core.IngestionPolicy) bool {
	if policy != core.PolicySkip && policy != core.PolicyUpdate {
		return false
	}
	return seen["c:"+p.fp.ContentHash] || seen["f:"+p.fp.FileHash] || seen["p:"+p.fp.SourcePath]
}

func (x *Indexer) markSeen(seen map[string]bool, p *prepared) {
	seen["c:"+p.fp.ContentHash] = true
	seen["f:"+p.fp.FileHash] = true
	seen["p:"+p.fp.SourcePath] = true
}

// commitUpdate embeds and rewrites an existing document in place.
func (x *Indexer) commitUpdate(ctx context.Context, p *prepared, report *core.IngestionReport) {
	vector, err := x.embedder.EmbedText(ctx, p.doc.Content)
	if err != nil {
		x.logger.Warn("embedding failed, storing degraded document", "file", p.ref.Name(), "err", err)
	} else {
		p.doc.Embedding = vector
	}
	core.EnsureDimension(p.doc, x.dimension)

	if err := x.store.Update(ctx, p.decision.Existing.Id, p.doc); err != nil {
		report.Add(failedOutcome(p, err))
		return
	}
	report.Add(core.IngestionOutcome{
		File:       p.ref.Name(),
		Status:     core.StatusUpdated,
		DocumentID: p.decision.Existing.Id,
		Message:    fmt.Sprintf("successfully updated document %s", p.decision.Existing.Id),
	})
}

// flushBatch embeds and inserts the pending new documents. On batch
// failure it retries each document alone so an unrelated bad document
// cannot fail its neighbors.
func (x *Indexer) flushBatch(ctx context.Context, batch *[]*prepared, report *core.IngestionReport) {
	pending := *batch
	if len(pending) == 0 {
		return
	}
	*batch = (*batch)[:0]

	texts := make([]string, len(pending))
	for i, p := range pending {
		texts[i] = p.doc.Content
	}

	embeddings, err := x.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		x.logger.Warn("batch embedding failed, storing degraded documents", "count", len(pending), "err", err)
		embeddings = nil
	}
	for i, p := range pending {
		if embeddings != nil && i < len(embeddings) {
			p.doc.Embedding = embeddings[i]
		}
		core.EnsureDimension(p.doc, x.dimension)
	}

	docs := make([]*core.Document, len(pending))
	for i, p := range pending {
		docs[i] = p.doc
	}

	ids, err := x.store.Insert(ctx, docs)
	if err == nil {
		for i, p := range pending {
			report.Add(core.IngestionOutcome{
				File:       p.ref.Name(),
				Status:     core.StatusCreated,
				DocumentID: ids[i],
				Message:    fmt.Sprintf("successfully created document %s", ids[i]),
			})
		}
		return
	}

	x.logger.Warn("batch insert failed, retrying documents individually", "count", len(pending), "err", err)
	for _, p := range pending {
		id, itemErr := x.store.InsertOne(ctx, p.doc)
		if itemErr != nil {
			report.Add(failedOutcome(p, itemErr))
			continue
		}
		report.Add(core.IngestionOutcome{
			File:       p.ref.Name(),
			Status:     core.StatusCreated,
			DocumentID: id,
			Message:    fmt.Sprintf("successfully created document %s", id),
		})
	}
}

func failedOutcome(p *prepared, err error) core.IngestionOutcome {
	return core.IngestionOutcome{
		File:    core.FileRef{Path: p.path}.Name(),
		Status:  core.StatusFailed,
		Message: err.Error(),
	}
}
