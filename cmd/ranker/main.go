// Command ranker ranks every query of a queries file against a saved index
// snapshot and writes a TREC run file, optionally mirroring the rows into
// PostgreSQL.
//
// Usage:
//
//	go run ./cmd/ranker -i data/index.fsdm -q data/queries.txt -o runs/ -p all
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/run"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/postgres"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file")
	snapshotPath := pflag.StringP("index", "i", "", "snapshot path (overrides indexer.snapshotPath)")
	queriesPath := pflag.StringP("queries", "q", "", "queries file, one \"id<TAB>text\" per line (overrides run.queriesPath)")
	outputPath := pflag.StringP("output", "o", "", "run file or directory (overrides run.outputPath)")
	runID := pflag.String("run-id", "", "run identifier written on every line (overrides run.runId)")
	profile := pflag.StringP("profile", "p", "", "field weight profile (overrides search.profile)")
	nHits := pflag.IntP("hits", "n", 0, "results per query (overrides search.nHits)")
	store := pflag.Bool("store", false, "also store results in PostgreSQL")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *snapshotPath != "" {
		cfg.Indexer.SnapshotPath = *snapshotPath
	}
	if *queriesPath != "" {
		cfg.Run.QueriesPath = *queriesPath
	}
	if *outputPath != "" {
		cfg.Run.OutputPath = *outputPath
	}
	if *runID != "" {
		cfg.Run.RunID = *runID
	}
	if *profile != "" {
		cfg.Search.Profile = *profile
	}
	if *nHits > 0 {
		cfg.Search.NHits = *nHits
	}
	if *store {
		cfg.Run.StoreResults = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	if strings.TrimSpace(cfg.Run.QueriesPath) == "" || strings.TrimSpace(cfg.Run.OutputPath) == "" {
		fmt.Fprintln(os.Stderr, "invalid config: run.queriesPath and run.outputPath must not be empty")
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profiles, err := ranker.NewRegistry(cfg.Profiles)
	if err != nil {
		slog.Error("invalid field weight profiles", "error", err)
		os.Exit(1)
	}
	if _, err := profiles.Get(cfg.Search.Profile); err != nil {
		slog.Error("invalid search profile", "error", err)
		os.Exit(1)
	}
	if cfg.Run.RunID == "" {
		cfg.Run.RunID = fmt.Sprintf("FSDM[%s]-%s", cfg.Search.Profile, uuid.NewString()[:8])
	}

	m := metrics.New(nil)
	metricsServer, err := metrics.Serve(cfg.Metrics, "ranker")
	if err != nil {
		slog.Error("failed to start metrics server", "error", err)
		os.Exit(1)
	}
	defer metricsServer.Shutdown(context.Background())

	engine, err := indexer.NewEngine(cfg.Indexer, nil, indexer.WithMetrics(m))
	if err != nil {
		slog.Error("failed to create engine", "error", err)
		os.Exit(1)
	}
	info, err := engine.Load()
	if err != nil {
		slog.Error("failed to load snapshot", "path", cfg.Indexer.SnapshotPath, "error", err)
		os.Exit(1)
	}

	analyzer, err := tokenizer.NewFromConfig(cfg.Analysis)
	if err != nil {
		slog.Error("failed to build analyzer", "error", err)
		os.Exit(1)
	}
	p := parser.New(analyzer)
	queries, err := readQueries(p, cfg.Run.QueriesPath)
	if err != nil {
		slog.Error("failed to read queries", "error", err)
		os.Exit(1)
	}

	target := cfg.Run.OutputPath
	if fi, err := os.Stat(target); (err == nil && fi.IsDir()) || filepath.Ext(target) == "" {
		target = filepath.Join(target, cfg.Run.RunID+".txt")
	}
	runFile, err := run.CreateRunFile(target, cfg.Run.RunID)
	if err != nil {
		slog.Error("failed to create run file", "error", err)
		os.Exit(1)
	}
	sinks := run.MultiSink{runFile}

	if cfg.Run.StoreResults {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			runFile.Abort()
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pgStore := run.NewPostgresStore(db, cfg.Run.RunID)
		if err := pgStore.Migrate(ctx); err != nil {
			runFile.Abort()
			slog.Error("failed to migrate run store", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, pgStore)
	}

	slog.Info("starting run",
		"run_id", cfg.Run.RunID,
		"snapshot_id", info.ID,
		"docs", info.Docs,
		"queries", len(queries),
		"profile", cfg.Search.Profile,
		"n_hits", cfg.Search.NHits,
	)

	exec := executor.New(engine, profiles, cfg.Search, m)
	report, err := exec.RunBatch(ctx, queries, executor.Options{}, sinks)
	if err != nil {
		runFile.Abort()
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
	if err := runFile.Commit(); err != nil {
		slog.Error("failed to write run file", "error", err)
		os.Exit(1)
	}

	slog.Info("run finished",
		"run_id", cfg.Run.RunID,
		"output", target,
		"lines", runFile.Lines(),
		"written", report.Written,
		"failed", report.Failed,
	)
}

func readQueries(p *parser.Parser, path string) ([]parser.Query, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening queries %s: %w", path, err)
	}
	defer f.Close()
	return p.ReadQueries(f)
}
