package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"bnka/portal/internal/cache"
	"bnka/portal/internal/config"
	"bnka/portal/internal/database"
	"bnka/portal/internal/log"
	"bnka/portal/internal/queue"
	"bnka/portal/internal/repository"
	"bnka/portal/internal/storage"
	"bnka/portal/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBuckets(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure buckets failed")
	}

	var cleaner tasks.SessionCleaner
	if cfg.Session.Backend == "postgres" {
		dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect postgres")
		}
		defer dbPool.Close()
		cleaner = repository.NewSessionRepository(dbPool)
	}

	processor := tasks.NewProcessor(logger, cleaner, objectStore, client, tasks.ProcessorConfig{
		AnalyticsStream: cfg.Analytics.Stream,
		BatchSize:       cfg.Analytics.ArchiveBatch,
	})
	consumer := queue.NewConsumer(
		client,
		cfg.Jobs.Stream,
		cfg.Worker.Group,
		cfg.Worker.Consumer,
		cfg.Worker.ClaimInterval,
		logger,
		processor,
	)
	if err := consumer.EnsureGroup(ctx); err != nil {
		logger.Fatal().Err(err).Msg("create consumer group failed")
	}

	go func() {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	time.Sleep(500 * time.Millisecond)
}
