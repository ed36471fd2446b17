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


// Package storage defines the persistence interfaces for Corpus.
//
// The DocumentStore interface covers document CRUD, similarity search over
// embeddings and the secondary lookups the deduplication and analytics
// layers need (fingerprint indexes, creation-time ranges).
//
// Two backends implement it:
//
//   - storage/badger: embedded BadgerDB, zero external services, linear
//     scan similarity. The default for local single-node deployments.
//   - storage/postgres: PostgreSQL with pgvector, index-accelerated
//     similarity for larger corpora.
//
// Serialization of stored documents is JSON; the storedDocument shape in
// serialization.go is the compatibility contract between releases.
package storage
