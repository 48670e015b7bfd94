// Package main is the entry point for the job worker process.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sendloop/wa-platform/internal/config"
	"github.com/sendloop/wa-platform/internal/metrics"
	"github.com/sendloop/wa-platform/internal/queue"
	"github.com/sendloop/wa-platform/internal/repository"
	"github.com/sendloop/wa-platform/internal/whatsapp"
	"github.com/sendloop/wa-platform/internal/worker"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	metrics.MustRegister()

	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}()

	repo := repository.NewRepository(db)
	jobQueue := queue.NewQueue(redisClient, &cfg.Queue, logger)
	waClient := whatsapp.NewClient(&cfg.WhatsApp, logger)

	w := worker.NewWorker(cfg, repo, jobQueue, waClient, logger)

	// Liveness endpoint plus Prometheus metrics on a side port.
	srv := &http.Server{
		Addr:    ":" + cfg.Worker.HealthPort,
		Handler: healthRouter(w),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Worker health server failed", zap.Error(err))
		}
	}()

	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Worker stopped with error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Health server forced to shutdown", zap.Error(err))
	}

	logger.Info("Worker exited")
}

func healthRouter(w *worker.Worker) http.Handler {
	r := chi.NewRouter()

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(rw http.ResponseWriter, _ *http.Request) {
		healthy, err := w.Healthy()

		rw.Header().Set("Content-Type", "application/json")
		body := map[string]string{"status": "healthy"}
		if !healthy {
			rw.WriteHeader(http.StatusServiceUnavailable)
			body["status"] = "unhealthy"
			if err != nil {
				body["error"] = err.Error()
			}
		}
		_ = json.NewEncoder(rw).Encode(body)
	})

	return r
}

func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "config.yaml"
}
