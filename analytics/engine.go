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


package analytics

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
)

const defaultWindowDays = 30

// Trend dead zone: second-half volume must move more than 20% against the
// first half before the verdict leaves "stable".
const (
	trendUpFactor   = 1.2
	trendDownFactor = 0.8
)

// Engine computes corpus-level analytics from the document store.
type Engine struct {
	store  storage.DocumentStore
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger.With("component", "analytics")
		return nil
	}
}

// NewEngine creates an analytics engine over the given store.
func NewEngine(store storage.DocumentStore, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	e := &Engine{
		store:  store,
		logger: slog.Default().With("component", "analytics"),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// TemporalAnalysis buckets document creation per day over the trailing
// window and classifies the growth trend. A non-positive windowDays uses
// the 30-day default.
func (e *Engine) TemporalAnalysis(ctx context.Context, windowDays int) (*core.TemporalReport, error) {
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -windowDays)

	docs, err := e.store.ListCreatedSince(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	counts := make(map[time.Time]int)
	types := make(map[string]int)
	for _, doc := range docs {
		day := doc.CreatedAt.UTC().Truncate(24 * time.Hour)
		counts[day]++
		types[doc.DocumentType]++
	}

	days := make([]time.Time, 0, len(counts))
	for day := range counts {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	buckets := make([]core.TemporalBucket, 0, len(days))
	for _, day := range days {
		buckets = append(buckets, core.TemporalBucket{Date: day, Count: counts[day]})
	}

	report := &core.TemporalReport{
		WindowDays:       windowDays,
		TotalDocuments:   len(docs),
		Buckets:          buckets,
		TypeDistribution: types,
		Trend:            classifyTrend(buckets),
	}

	e.logger.Debug("temporal analysis complete",
		"window_days", windowDays, "documents", len(docs),
		"active_days", len(buckets), "trend", report.Trend.Direction)
	return report, nil
}

// MetadataIntelligence reports metadata coverage across the whole corpus:
// how many documents carry metadata at all, which keys occur, and the
// per-type distribution.
func (e *Engine) MetadataIntelligence(ctx context.Context) (*core.CoverageReport, error) {
	docs, err := e.store.ListCreatedSince(ctx, time.Time{})
	if err != nil {
		return nil, err
	}

	withMetadata := 0
	keys := make(map[string]bool)
	types := make(map[string]int)
	for _, doc := range docs {
		types[doc.DocumentType]++
		if !doc.HasMetadata() {
			continue
		}
		withMetadata++
		for key := range doc.Metadata {
			keys[key] = true
		}
	}

	sortedKeys := make([]string, 0, len(keys))
	for key := range keys {
		sortedKeys = append(sortedKeys, key)
	}
	sort.Strings(sortedKeys)

	coverage := 0.0
	if len(docs) > 0 {
		coverage = float64(withMetadata) / float64(len(docs))
	}

	return &core.CoverageReport{
		TotalDocuments:        len(docs),
		DocumentsWithMetadata: withMetadata,
		MetadataKeys:          sortedKeys,
		TypeDistribution:      types,
		Coverage:              coverage,
	}, nil
}

// classifyTrend compares the second half of the active days against the
// first half. Movement inside the 20% dead zone reads as stable, so noisy
// but flat corpora do not flap between verdicts.
func classifyTrend(buckets []core.TemporalBucket) core.TrendVerdict {
	if len(buckets) < 2 {
		return core.TrendVerdict{Direction: core.TrendStable}
	}

	mid := len(buckets) / 2
	var early, late float64
	for _, b := range buckets[:mid] {
		early += float64(b.Count)
	}
	for _, b := range buckets[mid:] {
		late += float64(b.Count)
	}

	if early == 0 {
		if late > 0 {
			return core.TrendVerdict{Direction: core.TrendUp, Magnitude: 1}
		}
		return core.TrendVerdict{Direction: core.TrendStable}
	}

	switch {
	case late > early*trendUpFactor:
		return core.TrendVerdict{Direction: core.TrendUp, Magnitude: (late - early) / early}
	case late < early*trendDownFactor:
		return core.TrendVerdict{Direction: core.TrendDown, Magnitude: (early - late) / early}
	}
	return core.TrendVerdict{Direction: core.TrendStable}
}
