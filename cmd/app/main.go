// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"imagine-service/internal/config"
	pg "imagine-service/internal/infra/db/postgres"
	"imagine-service/internal/infra/generation"
	"imagine-service/internal/infra/logging"
	"imagine-service/internal/infra/metrics"
	rq "imagine-service/internal/infra/queue"
	red "imagine-service/internal/infra/redis"
	"imagine-service/internal/infra/sched"
	"imagine-service/internal/infra/storage"
	"imagine-service/internal/infra/web"
	"imagine-service/internal/infra/worker"
	"imagine-service/internal/usecase"

	"github.com/joho/godotenv"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = godotenv.Load()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()

	// ---- Repositories & adapters ----
	jobRepo := pg.NewJobRepo(pool)
	correlationRepo := red.NewCorrelationRepo(redisClient)
	limiter := red.NewRateLimiter(redisClient)
	tasks := rq.NewRedisQueue(redisClient, cfg.Queue.Name, logger)

	files, err := storage.NewFileStore(cfg.Storage.BasePath, cfg.Server.PublicBaseURL, cfg.Auth.JWTSecret)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	genClient := generation.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Timeout)
	fetcher := generation.NewHTTPFetcher(cfg.Provider.Timeout)

	webhookURL := strings.TrimRight(cfg.Server.PublicBaseURL, "/") + cfg.Provider.WebhookPath

	// ---- Use cases ----
	imagineUC := usecase.NewImagineUseCase(jobRepo, files, tasks, cfg.Storage.URLTTL, logger)
	dispatchUC := usecase.NewDispatchUseCase(jobRepo, correlationRepo, genClient, webhookURL, cfg.Correlation.TTL, logger)
	webhookUC := usecase.NewWebhookUseCase(jobRepo, correlationRepo, files, fetcher, logger)
	jobUC := usecase.NewJobUseCase(jobRepo, files, cfg.Storage.URLTTL)

	// ---- Metrics ----
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Dispatch workers ----
	// Requeue tasks parked by a previous run before any consumer starts.
	if n, err := tasks.Recover(ctx); err != nil {
		logger.Error().Err(err).Msg("queue recovery failed")
	} else if n > 0 {
		logger.Info().Int("count", n).Msg("recovered parked dispatch tasks")
	}

	wp := worker.NewPool(cfg.Queue.Workers, logger)
	wp.Start(ctx)
	dispatchWorker := worker.NewDispatchWorker(tasks, dispatchUC, logger)
	go dispatchWorker.Start(ctx, wp)

	// ---- Reconciler ----
	reconciler := sched.NewReconciler(cfg.Reconciler, jobRepo, logger)
	go func() {
		if err := reconciler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("reconciler stopped")
		}
	}()

	// ---- HTTP server ----
	srv := web.NewServer(imagineUC, jobUC, webhookUC, files, limiter, cfg, logger)
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Routes(),
	}
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Wait for shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("shutting down")
	case <-ctx.Done():
	}

	cancel()
	wp.Stop()

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	if err := httpSrv.Shutdown(shCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if err := tasks.Close(); err != nil {
		logger.Error().Err(err).Msg("queue close")
	}
	logger.Info().Msg("bye")
}
