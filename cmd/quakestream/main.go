// quakestream runs either a per-source ingestion service or the
// deduplication service, selected by SOURCE_NAME.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/quake-stream/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/quake-stream/internal/adapter/kafka"
	"github.com/couchcryptid/quake-stream/internal/adapter/postgres"
	"github.com/couchcryptid/quake-stream/internal/config"
	"github.com/couchcryptid/quake-stream/internal/dedup"
	"github.com/couchcryptid/quake-stream/internal/domain"
	"github.com/couchcryptid/quake-stream/internal/ingest"
	"github.com/couchcryptid/quake-stream/internal/observability"
	"github.com/couchcryptid/quake-stream/internal/parser"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	var srv *httpadapter.Server
	var publisher *kafkaadapter.Publisher

	if cfg.IsIngester() {
		source := domain.Source(cfg.SourceName)
		p, ok := parser.ForSource(source, cfg.Source.ReviewedCatalogList())
		if !ok {
			logger.Error("no parser registered", "source", source)
			os.Exit(1)
		}

		fetcher := ingest.NewFetcher(source, cfg.Source.BaseURL, parser.FormatFor[source],
			cfg.Source.Timeout(), cfg.Source.MaxRetries, cfg.Source.RetryBackoffBase,
			logger, metrics)
		pipeline := ingest.NewPipeline(source, fetcher, p, store, logger, metrics)

		srv = httpadapter.NewIngestServer(cfg.HTTPAddr, pipeline, store, logger)
		logger.Info("ingester starting", "source", source, "endpoint", cfg.Source.BaseURL)
	} else {
		var enginePublisher dedup.Publisher
		if cfg.KafkaEnabled {
			publisher = kafkaadapter.NewPublisher(cfg.Brokers(), cfg.KafkaTopic, logger)
			enginePublisher = publisher
			logger.Info("unified event publishing enabled",
				"brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		}

		engine := dedup.NewEngine(store, store, enginePublisher, logger, metrics,
			cfg.Lookback(), dedup.Strategy(cfg.DedupStrategy))

		srv = httpadapter.NewDedupServer(cfg.HTTPAddr, engine, store, logger)
		logger.Info("dedup service starting",
			"lookback", cfg.Lookback(), "strategy", cfg.DedupStrategy)
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}
	logger.Info("shutdown complete")
}
