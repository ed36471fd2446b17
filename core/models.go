package core

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Document is the canonical persisted record. The Document Store owns it;
// pipeline components never hold one beyond the scope of a single operation.
type Document struct {
	Id           string // Store-assigned UUID
	Title        string
	Content      string
	DocumentType string         // Free-form tag, e.g. "strategic", "report"
	SourceFile   string         // Originating path, empty for synthetic documents
	Metadata     map[string]any // Open-ended; includes fingerprint and extraction fields
	Embedding    []float32      // Fixed dimension, zero vector when low-confidence
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Well-known metadata keys written by the ingestion pipeline.
const (
	MetaContentHash         = "content_hash"
	MetaFileHash            = "file_hash"
	MetaPreviousContentHash = "previous_content_hash"
	MetaLowConfidence       = "low_confidence"
	MetaFileSize            = "file_size"
	MetaFileModified        = "file_modified"
	MetaFileExtension       = "file_extension"
	MetaIngestionTimestamp  = "ingestion_timestamp"
	MetaUpdateReason        = "update_reason"
)

// HasMetadata reports whether the document carries any metadata at all.
func (d *Document) HasMetadata() bool {
	return len(d.Metadata) > 0
}

// MetadataString returns the named metadata value as a string, or "".
func (d *Document) MetadataString(key string) string {
	if d.Metadata == nil {
		return ""
	}
	if s, ok := d.Metadata[key].(string); ok {
		return s
	}
	return ""
}

// LowConfidence reports whether the document was flagged during ingestion
// because its embedding could not be computed.
func (d *Document) LowConfidence() bool {
	if d.Metadata == nil {
		return false
	}
	b, ok := d.Metadata[MetaLowConfidence].(bool)
	return ok && b
}

// FileRef identifies a source file by path and filesystem attributes.
// Size and ModTime feed the file fingerprint; Path is the dispatch input.
type FileRef struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Name returns the base name of the referenced file.
func (r FileRef) Name() string {
	return filepath.Base(r.Path)
}

// Ext returns the lowercased extension including the leading dot.
func (r FileRef) Ext() string {
	return strings.ToLower(filepath.Ext(r.Path))
}

// Stat builds a FileRef from the filesystem.
func Stat(path string) (FileRef, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileRef{}, err
	}
	return FileRef{Path: path, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// IngestionPolicy selects how duplicates are resolved during ingestion.
// Supplied per ingestion call, not per document.
type IngestionPolicy string

const (
	// PolicySkip leaves any existing duplicate untouched.
	PolicySkip IngestionPolicy = "skip"
	// PolicyUpdate replaces an existing duplicate when the file is newer.
	PolicyUpdate IngestionPolicy = "update"
	// PolicyVersion always creates, disambiguating the title with a timestamp.
	PolicyVersion IngestionPolicy = "version"
	// PolicyForce always creates, bypassing the duplicate check entirely.
	PolicyForce IngestionPolicy = "force"
)

// ParsePolicy validates a policy string from configuration or CLI input.
func ParsePolicy(s string) (IngestionPolicy, error) {
	switch p := IngestionPolicy(s); p {
	case PolicySkip, PolicyUpdate, PolicyVersion, PolicyForce:
		return p, nil
	}
	return "", ErrInvalidPolicy
}

// IngestionStatus is the terminal state of one ingested file.
type IngestionStatus string

const (
	StatusCreated IngestionStatus = "created"
	StatusUpdated IngestionStatus = "updated"
	StatusSkipped IngestionStatus = "skipped"
	StatusFailed  IngestionStatus = "failed"
)

// IngestionOutcome records what happened to a single input file.
// Created at the end of processing one file, immutable thereafter.
type IngestionOutcome struct {
	File       string
	Status     IngestionStatus
	DocumentID string // Set for created/updated outcomes
	Message    string
}

// IngestionReport aggregates the outcomes of one ingestion batch.
type IngestionReport struct {
	Outcomes []IngestionOutcome
	Created  int
	Updated  int
	Skipped  int
	Failed   int
}

// Add appends an outcome and updates the per-status tallies.
func (r *IngestionReport) Add(o IngestionOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case StatusCreated:
		r.Created++
	case StatusUpdated:
		r.Updated++
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
	}
}

// Total returns the number of files processed.
func (r *IngestionReport) Total() int {
	return len(r.Outcomes)
}

// SuccessRate is (created+updated)/total, 0 for an empty report.
func (r *IngestionReport) SuccessRate() float64 {
	if len(r.Outcomes) == 0 {
		return 0
	}
	return float64(r.Created+r.Updated) / float64(len(r.Outcomes))
}

// Match is a raw row from a store vector query: a document and its
// similarity (1 - cosine distance) to the query embedding.
type Match struct {
	Document   *Document
	Similarity float32
}

// SearchTier identifies which fallback stage produced a search result,
// ordered from most precise to most degraded.
type SearchTier int

const (
	// TierVector is a vector-similarity match.
	TierVector SearchTier = 1
	// TierAttribute is a best-effort attribute-scan fallback.
	TierAttribute SearchTier = 2
)

// SearchResult is one ranked search hit. Similarity is meaningful only
// when Tier is TierVector. Ephemeral, never persisted.
type SearchResult struct {
	Document   *Document
	Similarity float32
	Tier       SearchTier
}

// TemporalBucket is a per-day document count.
type TemporalBucket struct {
	Date  time.Time
	Count int
}

// TrendDirection classifies corpus growth over an analysis window.
type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// TrendVerdict compares the second half of the window against the first.
// Magnitude is the relative change, 0 when stable.
type TrendVerdict struct {
	Direction TrendDirection
	Magnitude float64
}

// TemporalReport summarizes document creation over a window.
type TemporalReport struct {
	WindowDays       int
	TotalDocuments   int
	Buckets          []TemporalBucket // Sorted by date ascending
	TypeDistribution map[string]int
	Trend            TrendVerdict
}

// CoverageReport summarizes metadata presence across the corpus.
type CoverageReport struct {
	TotalDocuments        int
	DocumentsWithMetadata int
	MetadataKeys          []string // Distinct keys, sorted
	TypeDistribution      map[string]int
	Coverage              float64 // DocumentsWithMetadata / TotalDocuments
}

// AnalyticsReport is the combined analytics payload exposed to callers.
type AnalyticsReport struct {
	Temporal *TemporalReport
	Coverage *CoverageReport

	// Corpus vitals over the trailing week.
	RecentActivity int
	AvgDocsPerDay  float64
	Health         string // "healthy" once the corpus is non-empty
}
