// The indexer service builds the serving index: it reads the crawled
// trusted-article corpus from Postgres, analyzes it across parallel shards,
// writes a versioned snapshot, and announces it over Kafka. It then keeps
// consuming article events and rebuilds periodically as new articles
// accumulate.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EgorSmi/hack-fake-news/internal/index"
	"github.com/EgorSmi/hack-fake-news/internal/ingest"
	"github.com/EgorSmi/hack-fake-news/internal/nlp"
	"github.com/EgorSmi/hack-fake-news/pkg/config"
	"github.com/EgorSmi/hack-fake-news/pkg/kafka"
	"github.com/EgorSmi/hack-fake-news/pkg/logger"
	"github.com/EgorSmi/hack-fake-news/pkg/metrics"
	"github.com/EgorSmi/hack-fake-news/pkg/postgres"
)

// rebuildInterval is how often buffered Kafka arrivals are folded into a
// fresh snapshot. Rebuilds are skipped when nothing new arrived.
const rebuildInterval = 10 * time.Minute

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	once := flag.Bool("once", false, "build a single snapshot and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.WithComponent("indexer-main")

	if err := run(cfg, log, *once); err != nil {
		log.Error("indexer terminated", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger, once bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connecting to corpus database: %w", err)
	}
	defer pg.Close()
	repo := ingest.NewRepository(pg, cfg.Postgres.ArticlesTable)

	sources, err := repo.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("fetching corpus: %w", err)
	}

	builder := index.NewBuilder(
		nlp.NewLemmatizerClient(cfg.Collaborators.Lemmatizer).WithMetrics(m),
		cfg.Pipeline.BuildShards,
	)
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SnapshotPublish)
	defer producer.Close()

	if err := rebuild(ctx, cfg, builder, producer, sources, m, log); err != nil {
		return err
	}
	if once {
		return nil
	}

	buffer := ingest.NewArticleBuffer()
	consumer := ingest.NewArticleConsumer(cfg.Kafka, buffer)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Error("article consumer stopped", "error", err)
		}
	}()

	ticker := time.NewTicker(rebuildInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			if metricsShutdown != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := metricsShutdown(shutdownCtx); err != nil {
					log.Warn("metrics server shutdown failed", "error", err)
				}
			}
			return nil
		case <-ticker.C:
			if buffer.Len() == 0 {
				continue
			}
			sources = append(sources, buffer.Drain()...)
			if err := rebuild(ctx, cfg, builder, producer, sources, m, log); err != nil {
				log.Error("rebuild failed", "error", err)
			}
		}
	}
}

// rebuild runs one bulk build over sources, writes the snapshot, and
// announces it.
func rebuild(
	ctx context.Context,
	cfg *config.Config,
	builder *index.Builder,
	producer *kafka.Producer,
	sources []index.SourceDocument,
	m *metrics.Metrics,
	log *slog.Logger,
) error {
	start := time.Now()
	_, ix, report, err := builder.Build(ctx, sources)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	if report.Indexed == 0 {
		// Announcing an empty snapshot would swap serving checkers onto an
		// empty corpus and turn every verdict into a silent no-match.
		return fmt.Errorf("refusing to publish empty index: %d sources, %d skipped", len(sources), report.Skipped)
	}
	if err := index.WriteSnapshot(cfg.Snapshot.Path, ix, cfg.Collaborators.LemmatizerVersion); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	m.DocsIndexedTotal.Add(float64(report.Indexed))
	m.DocsSkippedTotal.Add(float64(report.Skipped))
	m.IndexedDocuments.Set(float64(report.Indexed))

	event := ingest.SnapshotEvent{
		Path:              cfg.Snapshot.Path,
		Documents:         report.Indexed,
		Skipped:           report.Skipped,
		LemmatizerVersion: cfg.Collaborators.LemmatizerVersion,
	}
	if err := ingest.PublishSnapshot(ctx, producer, event); err != nil {
		return fmt.Errorf("announcing snapshot: %w", err)
	}
	log.Info("snapshot published",
		"path", cfg.Snapshot.Path,
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"elapsed", time.Since(start),
	)
	return nil
}
