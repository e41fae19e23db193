package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"bnka/portal/internal/analytics"
	"bnka/portal/internal/cache"
	"bnka/portal/internal/config"
	"bnka/portal/internal/consent"
	"bnka/portal/internal/database"
	"bnka/portal/internal/handlers"
	"bnka/portal/internal/jobs"
	"bnka/portal/internal/log"
	"bnka/portal/internal/middleware"
	"bnka/portal/internal/repository"
	"bnka/portal/internal/security"
	"bnka/portal/internal/server"
	"bnka/portal/internal/service"
	"bnka/portal/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, dbPool); err != nil {
			logger.Fatal().Err(err).Msg("migrations failed")
		}
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	hasher, err := security.NewHasher(cfg.Security.HashConcurrency)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid hash settings")
	}

	users := repository.NewUserRepository(dbPool)
	var sessions service.SessionStore = repository.NewSessionRepository(dbPool)
	if cfg.Session.Backend == "redis" {
		sessions = repository.NewRedisSessionStore(redisClient)
	}
	authService := service.NewAuthService(users, sessions, hasher, cfg.Session.TTL, logger)

	healthChecks := map[string]handlers.HealthCheck{
		"postgres": dbPool.Ping,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}
	if objectStore, err := storage.NewObjectStore(cfg.Storage); err != nil {
		logger.Warn().Err(err).Msg("object store unavailable, skipping health check")
	} else {
		healthChecks["storage"] = objectStore.Ping
	}

	secure, sameSite := cfg.CookieSecurity()
	handlerSet := handlers.NewHandlerSet(handlers.Deps{
		Log:          logger,
		Auth:         authService,
		Users:        users,
		HealthChecks: healthChecks,
		NewTracker: func(ctx context.Context, visitorID string) consent.Tracker {
			return analytics.NewStreamTracker(ctx, redisClient, cfg.Analytics.Stream, visitorID, logger)
		},
		SessionCookie: middleware.SessionCookie{
			Name:     cfg.Session.CookieName,
			Secret:   cfg.Session.Secret,
			MaxAge:   cfg.Session.TTL,
			Secure:   secure,
			SameSite: sameSite,
		},
		Consent: handlers.ConsentSettings{
			Cookie: consent.CookieOptions{
				Secret:   cfg.Consent.Secret,
				MaxAge:   cfg.Consent.MaxAge,
				Secure:   secure,
				SameSite: sameSite,
			},
			PromptDelay:       cfg.Consent.PromptDelay,
			RespectDoNotTrack: cfg.Analytics.RespectDNT,
			OptOutByDefault:   cfg.Analytics.OptOutInDev && !cfg.IsProduction(),
		},
		LoginRate:  cfg.Security.LoginRate,
		LoginBurst: cfg.Security.LoginBurst,
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(redisClient, cfg.Jobs, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop()

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
