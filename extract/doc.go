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


// Package extract turns files of many formats into a uniform text
// representation for embedding and indexing.
//
// A Registry maps file extensions to Extractor implementations. Every
// extractor produces a Result carrying extracted text, a best-effort
// title and format-specific metadata. Failures are classified so batch
// ingestion can report unsupported formats, missing backends and
// malformed files distinctly:
//
//   - ErrUnsupportedFormat: nothing claims the extension
//   - ErrBackendUnavailable: the format is recognized but its extractor
//     is not registered (legacy office formats, ebooks)
//   - ErrMalformedInput: the extractor rejected the file contents
//
// Title resolution follows a fixed priority: embedded document title
// (frontmatter, core properties, <title>), then a structural heading or
// first paragraph, then the filename with separators replaced and words
// title-cased.
package extract
