// Command ingestion publishes dataset records to the dataset-ingest Kafka
// topic that `indexer --source kafka` builds from.
//
// With --corpus it publishes a JSON-lines file and exits. Otherwise it serves
// POST /api/v1/datasets until interrupted.
//
// Usage:
//
//	go run ./cmd/ingestion [-c configs/development.yaml] [--corpus data/corpus.jsonl]
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/middleware"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file")
	corpusPath := pflag.String("corpus", "", "publish this JSON-lines corpus and exit")
	batchSize := pflag.Int("batch-size", 100, "records per Kafka write")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if len(cfg.Kafka.Brokers) == 0 {
		slog.Error("kafka.brokers must be set for ingestion")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DatasetIngest)
	defer producer.Close()
	pub := ingestion.NewPublisher(producer, *batchSize)
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.DatasetIngest)

	if *corpusPath != "" {
		if err := publishFile(ctx, pub, *corpusPath); err != nil {
			slog.Error("publishing corpus failed", "path", *corpusPath, "error", err)
			os.Exit(1)
		}
		return
	}

	m := metrics.New(nil)
	metricsServer, err := metrics.Serve(cfg.Metrics, "ingestion")
	if err != nil {
		slog.Error("failed to start metrics server", "error", err)
		os.Exit(1)
	}
	defer metricsServer.Shutdown(context.Background())

	checker := health.NewChecker()
	mux := http.NewServeMux()
	ingestion.NewHandler(pub).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, middleware.RequestID, middleware.Metrics(m)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()
	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}

func publishFile(ctx context.Context, pub *ingestion.Publisher, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	report, err := pub.PublishStream(ctx, f)
	for _, rejected := range report.Rejected {
		slog.Warn("record rejected", "dataset_id", rejected.DatasetID, "reason", rejected.Error())
	}
	return err
}
