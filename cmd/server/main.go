package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bookwise/webhook-service/internal/api"
	"github.com/bookwise/webhook-service/internal/config"
	"github.com/bookwise/webhook-service/internal/engine"
	"github.com/bookwise/webhook-service/internal/metrics"
	"github.com/bookwise/webhook-service/internal/store"
	ws "github.com/bookwise/webhook-service/internal/websocket"
	"github.com/bookwise/webhook-service/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := pgStore.RunMigrations(ctx, "migrations"); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Initialize Redis
	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	logger.Info("connected to Redis")

	metrics.Register()

	// Live delivery feed
	hub := ws.NewHub(logger)
	go hub.Run()

	// Delivery pipeline
	breaker := engine.NewCircuitBreaker(redisStore.Client(), logger)
	limiter := engine.NewRateLimiter(redisStore.Client(), logger)

	deliverer := worker.NewDeliverer(pgStore, breaker, hub, cfg.DeliveryTimeout, logger)
	pool := worker.NewPool(cfg.NumWorkers, deliverer, logger)
	pool.Start(ctx)
	logger.Info("worker pool started", "workers", cfg.NumWorkers)

	scheduler := worker.NewScheduler(pgStore, pgStore, pool, cfg.RetryPollEvery, cfg.RetryBatchSize, logger)
	schedulerDone := make(chan struct{})
	go func() {
		scheduler.Start(ctx)
		close(schedulerDone)
	}()

	// Fan-out
	matcher := engine.NewMatcher(pgStore, pgStore, logger)
	builder := engine.NewPayloadBuilder(nil)
	publisher := engine.NewPublisher(matcher, builder, pool, logger)

	router := api.NewRouter(cfg, pgStore, publisher, builder, deliverer, breaker, limiter, hub, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// The scheduler must finish its loop before the pool's queue closes,
	// otherwise a re-drive could land on a closed channel.
	cancel()
	<-schedulerDone
	pool.Stop()

	logger.Info("server stopped")
}
