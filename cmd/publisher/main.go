package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/model-imagery-service/internal/adapter/catalog"
	"github.com/couchcryptid/model-imagery-service/internal/adapter/httpapi"
	kafkaadapter "github.com/couchcryptid/model-imagery-service/internal/adapter/kafka"
	"github.com/couchcryptid/model-imagery-service/internal/adapter/noaa"
	"github.com/couchcryptid/model-imagery-service/internal/adapter/nomads"
	"github.com/couchcryptid/model-imagery-service/internal/config"
	"github.com/couchcryptid/model-imagery-service/internal/observability"
	"github.com/couchcryptid/model-imagery-service/internal/pipeline"
	"github.com/couchcryptid/model-imagery-service/internal/publish"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s3Source, err := noaa.NewClient(ctx, cfg.S3Region, logger)
	if err != nil {
		logger.Error("failed to build s3 source", "error", err)
		os.Exit(1)
	}
	nomadsSource := nomads.NewClient(cfg.NOMADSBase, cfg.FetchTimeout, logger)

	publisher, err := publish.NewPublisher(cfg.SiteDir)
	if err != nil {
		logger.Error("failed to prepare site directory", "error", err)
		os.Exit(1)
	}

	cat, err := catalog.Open(cfg.CatalogPath, logger)
	if err != nil {
		logger.Error("failed to open catalog", "error", err)
		os.Exit(1)
	}

	// Kafka notifications are feature-flagged via KAFKA_BROKERS / KAFKA_ENABLED.
	var notifier pipeline.Notifier
	var kafkaNotifier *kafkaadapter.Notifier
	if cfg.KafkaEnabled {
		kafkaNotifier = kafkaadapter.NewNotifier(cfg, logger)
		notifier = kafkaNotifier
		logger.Info("kafka notifications enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka notifications disabled")
	}

	p := pipeline.New(
		[]pipeline.RunSource{s3Source, nomadsSource},
		cat,
		publisher,
		notifier,
		logger,
		metrics,
		pipeline.Options{
			RefreshInterval: cfg.RefreshInterval,
			LookbackHours:   cfg.LookbackHours,
			RenderWidth:     cfg.RenderWidth,
		},
	)

	srv := httpapi.NewServer(cfg.HTTPAddr, cfg.SiteDir, p, cat, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start publish pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaNotifier != nil {
		if err := kafkaNotifier.Close(); err != nil {
			logger.Error("kafka notifier close error", "error", err)
		}
	}
	if err := cat.Close(); err != nil {
		logger.Error("catalog close error", "error", err)
	}

	logger.Info("shutdown complete")
}
