package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/abd0-omar/newzletter/internal/config"
	"github.com/abd0-omar/newzletter/internal/handler"
	"github.com/abd0-omar/newzletter/internal/idempotency"
	"github.com/abd0-omar/newzletter/internal/infra/postgresql"
	"github.com/abd0-omar/newzletter/internal/infra/postgresql/migrations"
	infraredis "github.com/abd0-omar/newzletter/internal/infra/redis"
	"github.com/abd0-omar/newzletter/internal/observability"
	"github.com/abd0-omar/newzletter/internal/provider"
	"github.com/abd0-omar/newzletter/internal/repository"
	"github.com/abd0-omar/newzletter/internal/service"
	"github.com/abd0-omar/newzletter/internal/transport"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	metrics := observability.NewMetrics()

	idempotencyStore, err := idempotency.NewStore(db)
	if err != nil {
		logger.Fatal("idempotency store initialization failed", zap.Error(err))
	}
	issueRepo := repository.NewGormIssueRepo(db)
	queueRepo := repository.NewGormQueueRepo(db)
	subscriberRepo := repository.NewGormSubscriberRepo(db)

	publishService, err := service.NewPublishService(idempotencyStore, issueRepo, logger)
	if err != nil {
		logger.Fatal("publish service initialization failed", zap.Error(err))
	}
	publishService.SetMetrics(metrics)

	subscriptionService, err := service.NewSubscriptionService(subscriberRepo, logger)
	if err != nil {
		logger.Fatal("subscription service initialization failed", zap.Error(err))
	}

	emailClient, err := provider.NewPostmarkClient(cfg.EmailServiceURL, cfg.EmailServiceToken, cfg.SenderEmail)
	if err != nil {
		logger.Fatal("email client initialization failed", zap.Error(err))
	}

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.SendRatePerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	worker, err := service.NewDeliveryWorker(queueRepo, emailClient, rateLimiter, logger)
	if err != nil {
		logger.Fatal("delivery worker initialization failed", zap.Error(err))
	}
	worker.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(transport.RequestID())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(metrics.Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metricsHandler(c.Context())
		return nil
	})

	if err := handler.RegisterNewsletterRoutes(app, publishService); err != nil {
		logger.Fatal("newsletter route registration failed", zap.Error(err))
	}
	if err := handler.RegisterSubscriptionRoutes(app, subscriptionService); err != nil {
		logger.Fatal("subscription route registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return worker.Run(groupCtx)
	})
	g.Go(func() error {
		logger.Info("newzletter api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})
	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.Shutdown()
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("shutdown with error", zap.Error(err))
	}
}
