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
	"log/slog"
	"time"

	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
)

// DuplicateKind identifies which fingerprint matched an existing document.
type DuplicateKind string

const (
	ContentDuplicate DuplicateKind = "content_duplicate"
	FileDuplicate    DuplicateKind = "file_duplicate"
	PathDuplicate    DuplicateKind = "path_duplicate"
)

// Action is the resolved outcome for one incoming file.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionSkip    Action = "skip"
	ActionVersion Action = "version"
)

// Decision is the result of resolving a fingerprint against the store
// under a policy.
type Decision struct {
	Action   Action
	Existing *core.Document
	Kind     DuplicateKind
	Reason   string
}

// Resolver checks incoming fingerprints against stored documents and
// applies the ingestion policy.
type Resolver struct {
	store  storage.DocumentStore
	logger *slog.Logger
}

// NewResolver creates a deduplication resolver over the given store.
func NewResolver(store storage.DocumentStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:  store,
		logger: logger.With("component", "dedup"),
	}
}

// FindDuplicate looks up an existing document matching the fingerprint.
// Lookup order is fixed: content hash, then file hash, then source path.
// The first match wins and determines the duplicate kind.
func (r *Resolver) FindDuplicate(ctx context.Context, fp core.ContentFingerprint) (*core.Document, DuplicateKind, error) {
	lookups := []struct {
		index string
		value string
		kind  DuplicateKind
	}{
		{storage.IndexContentHash, fp.ContentHash, ContentDuplicate},
		{storage.IndexFileHash, fp.FileHash, FileDuplicate},
		{storage.IndexSourceFile, fp.SourcePath, PathDuplicate},
	}

	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		docs, err := r.store.ScanBy(ctx, l.index, l.value)
		if err != nil {
			return nil, "", err
		}
		if len(docs) > 0 {
			return docs[0], l.kind, nil
		}
	}
	return nil, "", nil
}

// Resolve decides what to do with a file given its fingerprint, its
// modification time and the active policy.
//
// Policy semantics:
//   - force: always create, duplicates are not even looked up
//   - skip: any duplicate means the file is skipped
//   - update: rewrite the existing document, but only when the file was
//     modified after the stored document was created
//   - version: create a new document alongside the duplicate; the caller
//     stamps the title with a version suffix
func (r *Resolver) Resolve(ctx context.Context, fp core.ContentFingerprint, modTime time.Time, policy core.IngestionPolicy) (*Decision, error) {
	if policy == core.PolicyForce {
		return &Decision{Action: ActionCreate}, nil
	}

	existing, kind, err := r.FindDuplicate(ctx, fp)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return &Decision{Action: ActionCreate}, nil
	}

	r.logger.Debug("found duplicate", "kind", kind, "title", existing.Title, "path", fp.SourcePath)

	switch policy {
	case core.PolicySkip:
		return &Decision{
			Action:   ActionSkip,
			Existing: existing,
			Kind:     kind,
			Reason:   "document already exists (policy: skip)",
		}, nil

	case core.PolicyUpdate:
		if !modTime.After(existing.CreatedAt) {
			return &Decision{
				Action:   ActionSkip,
				Existing: existing,
				Kind:     kind,
				Reason:   "existing document is newer (policy: update)",
			}, nil
		}
		return &Decision{Action: ActionUpdate, Existing: existing, Kind: kind}, nil

	case core.PolicyVersion:
		return &Decision{Action: ActionVersion, Existing: existing, Kind: kind}, nil
	}

	return nil, core.ErrInvalidPolicy
}
