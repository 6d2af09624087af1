package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/metrics"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file")
	corpusPath := pflag.String("corpus", "", "JSON-lines corpus file (overrides corpus.path)")
	source := pflag.String("source", "", "corpus source: file or kafka (overrides corpus.source)")
	snapshotPath := pflag.StringP("output", "o", "", "snapshot path (overrides indexer.snapshotPath)")
	kafkaIdle := pflag.Duration("kafka-idle", 10*time.Second, "stop consuming once the ingest topic is idle this long")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *corpusPath != "" {
		cfg.Corpus.Path = *corpusPath
	}
	if *source != "" {
		cfg.Corpus.Source = *source
	}
	if *snapshotPath != "" {
		cfg.Indexer.SnapshotPath = *snapshotPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer",
		"source", cfg.Corpus.Source,
		"snapshot", cfg.Indexer.SnapshotPath,
		"workers", cfg.Indexer.Workers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	metricsServer, err := metrics.Serve(cfg.Metrics, "indexer")
	if err != nil {
		slog.Error("failed to start metrics server", "error", err)
		os.Exit(1)
	}
	defer metricsServer.Shutdown(context.Background())

	analyzer, err := tokenizer.NewFromConfig(cfg.Analysis)
	if err != nil {
		slog.Error("failed to build analyzer", "error", err)
		os.Exit(1)
	}
	schema := document.DefaultSchema()
	if cfg.Corpus.PositionalContent {
		schema = document.PositionalContentSchema()
	}
	builder, err := document.NewBuilder(analyzer, schema, document.BuildConfig{
		IncludeClasses:     cfg.Corpus.IncludeClasses,
		DeduplicateClasses: cfg.Corpus.DeduplicateClasses,
		ContentSources:     cfg.Corpus.ContentSources,
		MaxContentValues:   cfg.Corpus.MaxContentValues,
	})
	if err != nil {
		slog.Error("failed to create document builder", "error", err)
		os.Exit(1)
	}

	opts := []indexer.Option{indexer.WithMetrics(m)}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		opts = append(opts, indexer.WithPublisher(producer))
	}
	engine, err := indexer.NewEngine(cfg.Indexer, builder, opts...)
	if err != nil {
		slog.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	var records []document.Record
	switch cfg.Corpus.Source {
	case "kafka":
		records, err = collectFromKafka(ctx, cfg, *kafkaIdle)
	default:
		records, err = readCorpusFile(cfg.Corpus.Path, cfg.Corpus.MaxRecords)
	}
	if err != nil {
		slog.Error("failed to read corpus", "error", err)
		os.Exit(1)
	}
	slog.Info("corpus loaded", "records", len(records))

	stats, report, err := engine.Build(ctx, records)
	if err != nil {
		slog.Error("index build failed", "error", err)
		os.Exit(1)
	}
	info, err := engine.Save(ctx, stats)
	if err != nil {
		slog.Error("saving snapshot failed", "error", err)
		os.Exit(1)
	}

	slog.Info("indexer finished",
		"snapshot_id", info.ID,
		"path", info.Path,
		"docs", info.Docs,
		"skipped", report.SkippedBy(),
		"bytes", info.Bytes,
		"duration", report.Duration,
	)
}

var errRecordLimit = errors.New("record limit reached")

func readCorpusFile(path string, maxRecords int) ([]document.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus %s: %w", path, err)
	}
	defer f.Close()

	var records []document.Record
	err = document.ReadRecords(f, func(rec document.Record) error {
		if maxRecords > 0 && len(records) >= maxRecords {
			return errRecordLimit
		}
		records = append(records, rec)
		return nil
	})
	if err != nil && !errors.Is(err, errRecordLimit) {
		return nil, fmt.Errorf("reading corpus %s: %w", path, err)
	}
	return records, nil
}

func collectFromKafka(ctx context.Context, cfg *config.Config, idle time.Duration) ([]document.Record, error) {
	collector := consumer.NewCorpusCollector(cfg.Corpus.MaxRecords)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handle := collector.Handler()
	c := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DatasetIngest, true, func(ctx context.Context, key, value []byte) error {
		err := handle(ctx, key, value)
		if collector.Full() {
			cancel()
		}
		return err
	})
	defer c.Close()

	slog.Info("collecting corpus from kafka",
		"topic", cfg.Kafka.Topics.DatasetIngest,
		"group", cfg.Kafka.ConsumerGroup,
		"max_records", cfg.Corpus.MaxRecords,
	)
	if err := c.RunUntilIdle(ctx, idle); err != nil {
		return nil, err
	}
	if n := collector.DecodeErrors(); n > 0 {
		slog.Warn("skipped undecodable records", "count", n)
	}
	return collector.Records(), nil
}
