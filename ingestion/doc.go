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


// Package ingestion implements the document ingestion pipeline:
// extraction, fingerprint deduplication, embedding and batched storage.
//
// The Indexer splits ingestion into two phases. Preparation (file I/O,
// format extraction, fingerprinting, dedup resolution) runs concurrently
// on a worker pool. Commits run sequentially in input order: new
// documents are embedded and inserted in batches, updates and skips are
// applied inline. Sequential commits keep reports deterministic and make
// the duplicate-within-one-run case resolvable.
//
// Failure isolation is per document. A file that cannot be extracted, a
// document a batch insert rejects, or an embedding service outage each
// degrade only the affected documents; embedding failures store the
// document with a zero vector and a low-confidence flag instead of
// dropping it.
//
// Deduplication matches three fingerprints in priority order: normalized
// content hash, file identity hash (name, size, mtime) and source path.
// The Resolver applies one of four policies to a match: skip, update,
// version or force.
package ingestion
