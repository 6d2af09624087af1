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

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/resilience"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file")
	snapshotPath := pflag.StringP("index", "i", "", "snapshot path (overrides indexer.snapshotPath)")
	port := pflag.IntP("port", "p", 0, "listen port (overrides server.port)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *snapshotPath != "" {
		cfg.Indexer.SnapshotPath = *snapshotPath
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "snapshot", cfg.Indexer.SnapshotPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	metricsServer, err := metrics.Serve(cfg.Metrics, "searcher")
	if err != nil {
		slog.Error("failed to start metrics server", "error", err)
		os.Exit(1)
	}
	defer metricsServer.Shutdown(context.Background())

	profiles, err := ranker.NewRegistry(cfg.Profiles)
	if err != nil {
		slog.Error("invalid field weight profiles", "error", err)
		os.Exit(1)
	}
	if _, err := profiles.Get(cfg.Search.Profile); err != nil {
		slog.Error("invalid search profile", "error", err)
		os.Exit(1)
	}
	analyzer, err := tokenizer.NewFromConfig(cfg.Analysis)
	if err != nil {
		slog.Error("failed to build analyzer", "error", err)
		os.Exit(1)
	}

	engine, err := indexer.NewEngine(cfg.Indexer, nil, indexer.WithMetrics(m))
	if err != nil {
		slog.Error("failed to create engine", "error", err)
		os.Exit(1)
	}
	if info, err := engine.Load(); err != nil {
		slog.Warn("no snapshot loaded, serving not ready until one is published", "error", err)
	} else {
		slog.Info("snapshot loaded", "snapshot_id", info.ID, "docs", info.Docs)
	}

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			breaker := resilience.NewBreaker("redis", resilience.BreakerConfig{})
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m, cache.WithBreaker(breaker))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	if cfg.Kafka.Enabled {
		var invalidator consumer.Invalidator
		if queryCache != nil {
			invalidator = queryCache
		}
		reloads := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, false,
			consumer.ReloadHandler(engine, invalidator))
		defer reloads.Close()
		go func() {
			if err := reloads.Start(ctx); err != nil {
				slog.Error("snapshot reload consumer error", "error", err)
			}
		}()
		slog.Info("listening for snapshot updates", "topic", cfg.Kafka.Topics.IndexComplete)
	}

	checker := health.NewChecker()
	checker.Register("index_snapshot", health.SnapshotCheck(engine.Ready, engine.Describe))
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient.Ping))
	}

	exec := executor.New(engine, profiles, cfg.Search, m)
	h := handler.New(exec, parser.New(analyzer), profiles, queryCache, m)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := middleware.Chain(mux,
		middleware.RequestID,
		middleware.Metrics(m),
		middleware.Timeout(cfg.Server.WriteTimeout),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
