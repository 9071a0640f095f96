package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/pdfocr/internal/config"
	"github.com/nikhilbhutani/pdfocr/internal/database"
	"github.com/nikhilbhutani/pdfocr/internal/jobs"
	"github.com/nikhilbhutani/pdfocr/internal/ocr"
	"github.com/nikhilbhutani/pdfocr/internal/queue"
	"github.com/nikhilbhutani/pdfocr/internal/queue/workers"
	"github.com/nikhilbhutani/pdfocr/internal/webhook"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("worker requires a database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db, cfg.Database.MigrationsPath); err != nil {
		slog.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	ocrSvc := ocr.NewServiceFromConfig(cfg.OCR)
	jobSvc, q, err := jobs.NewServiceFromConfig(cfg, db, rdb, ocrSvc)
	if err != nil {
		slog.Error("failed to set up jobs", "error", err)
		os.Exit(1)
	}
	defer q.Close()

	dispatcher := webhook.NewDispatcher(cfg.Webhook)
	defer dispatcher.Close()
	jobSvc.WithNotifier(dispatcher)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				queue.QueueOCR: 1,
			},
		},
	)

	registry := queue.NewHandlersRegistry()
	registry.Register(queue.TypeOCRProcess, asynq.HandlerFunc(workers.NewOCRWorker(jobSvc).ProcessTask))

	slog.Info("starting worker", "concurrency", cfg.Worker.Concurrency)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
