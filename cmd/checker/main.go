// The checker service exposes the public article-verification API. It loads
// the latest index snapshot, serves POST /api/v1/check against it, and
// reloads whenever the indexer publishes a fresh snapshot over Kafka.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/EgorSmi/hack-fake-news/internal/checker"
	"github.com/EgorSmi/hack-fake-news/internal/ingest"
	"github.com/EgorSmi/hack-fake-news/internal/nlp"
	"github.com/EgorSmi/hack-fake-news/internal/pipeline"
	"github.com/EgorSmi/hack-fake-news/internal/search/lexical"
	"github.com/EgorSmi/hack-fake-news/pkg/config"
	"github.com/EgorSmi/hack-fake-news/pkg/health"
	"github.com/EgorSmi/hack-fake-news/pkg/kafka"
	"github.com/EgorSmi/hack-fake-news/pkg/logger"
	"github.com/EgorSmi/hack-fake-news/pkg/metrics"
	"github.com/EgorSmi/hack-fake-news/pkg/middleware"
	"github.com/EgorSmi/hack-fake-news/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.WithComponent("checker-main")

	if err := run(cfg, log); err != nil {
		log.Error("checker terminated", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	mode, err := lexical.ParseMode(cfg.Pipeline.ScoringMode)
	if err != nil {
		return err
	}
	params := pipeline.Params{
		Mode:          mode,
		PrefilterK:    cfg.Pipeline.PrefilterK,
		TopK:          cfg.Pipeline.TopK,
		HighlightTopN: cfg.Pipeline.HighlightTopN,
	}

	service := checker.NewService(
		nlp.NewExtractorClient(cfg.Collaborators.EntityExtractor).WithMetrics(m),
		nlp.NewLemmatizerClient(cfg.Collaborators.Lemmatizer).WithMetrics(m),
		nlp.NewEmbedderClient(cfg.Collaborators.Embedder, cfg.Collaborators.EmbeddingDim).WithMetrics(m),
		nlp.NewSentimentClient(cfg.Collaborators.Sentiment).WithMetrics(m),
		params,
		cfg.Collaborators.LemmatizerVersion,
		m,
	)
	if err := service.LoadSnapshot(cfg.Snapshot.Path); err != nil {
		// Not fatal: the service stays unready until the indexer publishes
		// a snapshot, and the readiness probe keeps traffic away.
		log.Warn("no serving snapshot yet", "path", cfg.Snapshot.Path, "error", err)
	}

	var redisClient *redis.Client
	if rc, err := redis.NewClient(cfg.Redis); err != nil {
		log.Warn("redis unavailable, verdict cache disabled", "error", err)
	} else {
		redisClient = rc
		defer redisClient.Close()
	}
	cache := checker.NewVerdictCache(redisClient, cfg.Redis.CacheTTL, m)

	// Reload on snapshot announcements.
	snapshotConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SnapshotPublish,
		func(ctx context.Context, key, value []byte) error {
			event, err := kafka.DecodeJSON[ingest.SnapshotEvent](value)
			if err != nil {
				log.Warn("dropping undecodable snapshot event", "error", err)
				return nil
			}
			if err := service.LoadSnapshot(event.Path); err != nil {
				return err
			}
			if err := cache.Invalidate(ctx); err != nil {
				log.Warn("verdict cache invalidation failed", "error", err)
			}
			log.Info("snapshot reloaded", "path", event.Path, "documents", event.Documents)
			return nil
		})
	go func() {
		if err := snapshotConsumer.Start(ctx); err != nil {
			log.Error("snapshot consumer stopped", "error", err)
		}
	}()

	checks := health.NewChecker()
	checks.Register("index_ready", func(ctx context.Context) health.ComponentHealth {
		if !service.Ready() {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no index snapshot loaded"}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	if redisClient != nil {
		checks.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if err := redisClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	mux := http.NewServeMux()
	checker.NewHandler(service, cache, m).Register(mux)
	mux.HandleFunc("GET /healthz", checks.LiveHandler())
	mux.HandleFunc("GET /readyz", checks.ReadyHandler())

	var handler http.Handler = mux
	handler = middleware.Timeout(cfg.Server.WriteTimeout)(handler)
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Info("checker listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	if metricsShutdown != nil {
		if err := metricsShutdown(shutdownCtx); err != nil {
			log.Warn("metrics server shutdown failed", "error", err)
		}
	}
	return nil
}
