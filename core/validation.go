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


package core

import "fmt"

// ValidateDocument validates a Document before it is written to the store.
//
// Validation rules:
//   - Title must not be empty
//   - Content must not be empty
//
// NOT validated (populated by the pipeline):
//   - Id (empty until assigned by the store)
//   - Embedding (a wrong-length vector flags the document low-confidence
//     rather than rejecting it; see EnsureDimension)
//   - Timestamps (set by the store on write)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.Title == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyTitle)
	}

	if doc.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyContent)
	}

	return nil
}

// EnsureDimension enforces the embedding-length invariant: a document whose
// embedding is not exactly dim floats long gets a zero vector of the right
// dimension and the low-confidence flag. The document is never rejected;
// the pipeline prefers a recoverable degraded record over dropped data.
func EnsureDimension(doc *Document, dim int) {
	if len(doc.Embedding) == dim {
		return
	}
	doc.Embedding = make([]float32, dim)
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	doc.Metadata[MetaLowConfidence] = true
}
