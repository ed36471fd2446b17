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


package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/poiesic/corpus/core"
)

// Result is the format-agnostic output of a single file extraction.
// Title may be empty when the format carries no embedded title; the
// Registry fills it from the filename before returning.
type Result struct {
	Title    string
	Content  string
	Metadata map[string]any
}

// Extractor converts one file format into a Result.
// Implementations receive the raw file bytes and must not touch the
// filesystem themselves.
type Extractor interface {
	// Extensions returns the lowercase file extensions this extractor
	// claims, including the leading dot.
	Extensions() []string

	// Extract parses data into a Result. Parse errors are returned as-is;
	// the Registry wraps them with failure classification.
	Extract(ctx context.Context, ref core.FileRef, data []byte) (*Result, error)
}

// knownExtensions lists formats the pipeline recognizes but ships no
// extractor for. Files with these extensions fail with a
// backend-unavailable error instead of unsupported-format, so operators
// can distinguish "install a backend" from "wrong file".
var knownExtensions = map[string]bool{
	".doc":  true,
	".xls":  true,
	".ppt":  true,
	".rtf":  true,
	".epub": true,
	".mobi": true,
}

// Registry dispatches files to format extractors by extension.
type Registry struct {
	extractors map[string]Extractor
	logger     *slog.Logger
}

// Option is a functional option for configuring a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for extraction diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger.With("component", "extract")
	}
}

// WithExtractor registers an additional extractor, overriding any default
// claiming the same extensions.
func WithExtractor(e Extractor) Option {
	return func(r *Registry) {
		r.Register(e)
	}
}

// WithoutFormat removes a default extractor binding for the given
// extension. The extension becomes unsupported unless it is a known
// legacy format.
func WithoutFormat(ext string) Option {
	return func(r *Registry) {
		delete(r.extractors, strings.ToLower(ext))
	}
}

// NewRegistry creates a Registry with all built-in extractors registered.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		extractors: make(map[string]Extractor),
		logger:     slog.Default().With("component", "extract"),
	}

	r.Register(&TextExtractor{})
	r.Register(&MarkdownExtractor{})
	r.Register(&HTMLExtractor{})
	r.Register(&WordExtractor{})
	r.Register(&PowerPointExtractor{})
	r.Register(&ExcelExtractor{})
	r.Register(&PDFExtractor{})
	r.Register(&CSVExtractor{})
	r.Register(&JSONExtractor{})
	r.Register(&CodeExtractor{})

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds an extractor to every extension it claims.
func (r *Registry) Register(e Extractor) {
	for _, ext := range e.Extensions() {
		r.extractors[strings.ToLower(ext)] = e
	}
}

// Supported reports whether an extractor is registered for the extension.
func (r *Registry) Supported(ext string) bool {
	_, ok := r.extractors[strings.ToLower(ext)]
	return ok
}

// Extensions returns all registered extensions, sorted.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract reads the file behind ref and dispatches it to the extractor
// registered for its extension. The returned Result always has a non-empty
// Title and non-nil Metadata including word_count and extraction_method.
func (r *Registry) Extract(ctx context.Context, ref core.FileRef) (*Result, error) {
	ext := ref.Ext()

	e, ok := r.extractors[ext]
	if !ok {
		if knownExtensions[ext] {
			return nil, &Failure{
				Kind: BackendUnavailable,
				Path: ref.Path,
				Err:  fmt.Errorf("no extractor registered for %s", ext),
			}
		}
		return nil, &Failure{
			Kind: UnsupportedFormat,
			Path: ref.Path,
			Err:  fmt.Errorf("unsupported file type %q", ext),
		}
	}

	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref.Path, err)
	}

	result, err := e.Extract(ctx, ref, data)
	if err != nil {
		var failure *Failure
		if errors.As(err, &failure) {
			return nil, err
		}
		return nil, &Failure{Kind: MalformedInput, Path: ref.Path, Err: err}
	}

	if result.Metadata == nil {
		result.Metadata = make(map[string]any)
	}
	if result.Title == "" {
		result.Title = TitleFromFilename(ref)
	}
	if _, ok := result.Metadata["word_count"]; !ok {
		result.Metadata["word_count"] = len(strings.Fields(result.Content))
	}

	r.logger.Debug("extracted file", "path", ref.Path, "title", result.Title, "ext", ext)
	return result, nil
}

// TitleFromFilename derives a human-readable title from the file name:
// extension stripped, separators replaced with spaces, words title-cased.
func TitleFromFilename(ref core.FileRef) string {
	name := ref.Name()
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	stem = strings.ReplaceAll(stem, "_", " ")
	stem = strings.ReplaceAll(stem, "-", " ")
	return cases.Title(language.English).String(stem)
}
