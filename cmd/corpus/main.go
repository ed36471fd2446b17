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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/corpus"
	"github.com/poiesic/corpus/ai"
	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/search"
	"github.com/poiesic/corpus/storage"
)

func main() {
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "corpus",
		Usage: "Document intelligence pipeline: ingest, search and analyze a document corpus",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"CORPUS_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				Value:   "./corpus_db",
				EnvVars: []string{"CORPUS_DB"},
			},
			&cli.StringFlag{
				Name:    "postgres-dsn",
				Usage:   "Postgres DSN; switches storage from BadgerDB to postgres/pgvector",
				EnvVars: []string{"CORPUS_POSTGRES_DSN"},
			},
			&cli.StringFlag{
				Name:    "embedding-host",
				Usage:   "Embedding service host URL",
				Value:   "http://localhost:11434/v1",
				EnvVars: []string{"CORPUS_EMBEDDING_HOST"},
			},
			&cli.StringFlag{
				Name:    "embedding-model",
				Usage:   "Embedding model name",
				Value:   "embeddinggemma",
				EnvVars: []string{"CORPUS_EMBEDDING_MODEL"},
			},
			&cli.IntFlag{
				Name:    "dimension",
				Usage:   "Embedding vector dimension",
				Value:   384,
				EnvVars: []string{"CORPUS_DIMENSION"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest files or directories into the corpus",
				ArgsUsage: "PATH [PATH...]",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "type",
						Aliases: []string{"t"},
						Usage:   "Document type tag applied to every ingested file",
						Value:   "general",
					},
					&cli.StringFlag{
						Name:    "policy",
						Aliases: []string{"p"},
						Usage:   "Duplicate policy (skip, update, version, force)",
						Value:   "skip",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of documents to embed and insert per batch",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Extraction worker pool size (0 = half the CPUs)",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search the corpus",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "type",
						Aliases: []string{"t"},
						Usage:   "Restrict results to one document type",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
					&cli.StringSliceFlag{
						Name:  "meta",
						Usage: "Metadata equality post-filter, key=value (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print results as JSON",
					},
				},
			},
			{
				Name:   "analytics",
				Usage:  "Report corpus analytics",
				Action: analyticsCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "days",
						Usage: "Temporal analysis window in days",
						Value: 30,
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Regenerate stored document embeddings",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "only-degraded",
						Usage: "Only reembed documents with missing or low-confidence vectors",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// buildConfig assembles the system config from global flags.
func buildConfig(c *cli.Context) *corpus.Config {
	return &corpus.Config{
		StorePath:   c.String("db"),
		PostgresDSN: c.String("postgres-dsn"),
		AI: ai.NewConfig(
			ai.WithEmbeddingHost(c.String("embedding-host")),
			ai.WithEmbeddingModel(c.String("embedding-model")),
			ai.WithDimension(c.Int("dimension")),
		),
		BatchSize: c.Int("batch-size"),
		PoolSize:  c.Int("pool-size"),
	}
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file or directory is required")
	}

	policy, err := core.ParsePolicy(c.String("policy"))
	if err != nil {
		return fmt.Errorf("invalid policy %q: must be one of skip, update, version, force", c.String("policy"))
	}

	system, err := corpus.Open(context.Background(), buildConfig(c))
	if err != nil {
		return fmt.Errorf("failed to open corpus: %w", err)
	}
	defer system.Close()

	ctx := context.Background()
	total := &core.IngestionReport{}

	for _, path := range c.Args().Slice() {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("cannot stat %s: %w", path, err)
		}

		var report *core.IngestionReport
		if info.IsDir() {
			report, err = system.IngestDirectory(ctx, path, c.String("type"), policy)
		} else {
			report, err = system.Ingest(ctx, []string{path}, c.String("type"), policy)
		}
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}

		for _, outcome := range report.Outcomes {
			total.Add(outcome)
		}
	}

	for _, outcome := range total.Outcomes {
		fmt.Printf("%-8s %s", outcome.Status, outcome.File)
		if outcome.Status == core.StatusFailed || outcome.Status == core.StatusSkipped {
			fmt.Printf("  (%s)", outcome.Message)
		}
		fmt.Println()
	}
	fmt.Printf("\n%d files: %d created, %d updated, %d skipped, %d failed (%.0f%% success)\n",
		total.Total(), total.Created, total.Updated, total.Skipped, total.Failed,
		total.SuccessRate()*100)

	return nil
}

func searchCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("a search query is required")
	}
	query := strings.Join(c.Args().Slice(), " ")

	system, err := corpus.Open(context.Background(), buildConfig(c))
	if err != nil {
		return fmt.Errorf("failed to open corpus: %w", err)
	}
	defer system.Close()

	var filters storage.Filters
	if docType := c.String("type"); docType != "" {
		filters = storage.Filters{"document_type": docType}
	}

	ctx := context.Background()
	var results []*core.SearchResult

	if meta := parseMetaFilters(c.StringSlice("meta")); len(meta) > 0 {
		results = system.AdvancedSearch(ctx, query, filters, search.AdvancedFilters{Metadata: meta})
	} else {
		results = system.Search(ctx, query, filters, c.Int("limit"))
	}

	if c.Bool("json") {
		return printJSON(results)
	}

	fmt.Printf("Found %d hits\n", len(results))
	for i, hit := range results {
		fmt.Printf("%d: %q [%s] tier=%d similarity=%.3f\n",
			i+1, hit.Document.Title, hit.Document.DocumentType, hit.Tier, hit.Similarity)
	}
	return nil
}

func analyticsCommand(c *cli.Context) error {
	system, err := corpus.Open(context.Background(), buildConfig(c))
	if err != nil {
		return fmt.Errorf("failed to open corpus: %w", err)
	}
	defer system.Close()

	report, err := system.Analytics(context.Background(), c.Int("days"))
	if err != nil {
		return fmt.Errorf("analytics failed: %w", err)
	}
	return printJSON(report)
}

func reembedCommand(c *cli.Context) error {
	system, err := corpus.Open(context.Background(), buildConfig(c))
	if err != nil {
		return fmt.Errorf("failed to open corpus: %w", err)
	}
	defer system.Close()

	processed, err := system.Reembed(context.Background(), c.Bool("only-degraded"), os.Stderr)
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	fmt.Printf("Reembedded %d documents\n", processed)
	return nil
}

// parseMetaFilters converts repeated key=value flags into a map. Entries
// without an equals sign are ignored.
func parseMetaFilters(pairs []string) map[string]string {
	meta := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			continue
		}
		meta[key] = value
	}
	return meta
}

func printJSON(v any) error {
	out, err := sonic.ConfigDefault.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
