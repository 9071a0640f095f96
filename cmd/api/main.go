package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/pdfocr/internal/api"
	"github.com/nikhilbhutani/pdfocr/internal/api/handlers"
	"github.com/nikhilbhutani/pdfocr/internal/config"
	"github.com/nikhilbhutani/pdfocr/internal/database"
	"github.com/nikhilbhutani/pdfocr/internal/jobs"
	"github.com/nikhilbhutani/pdfocr/internal/ocr"
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

	ocrSvc := ocr.NewServiceFromConfig(cfg.OCR)
	if langs, err := ocrSvc.Languages(); err != nil {
		slog.Warn("OCR language data unavailable", "dir", cfg.OCR.TessdataDir, "error", err)
	} else {
		slog.Info("OCR languages available", "count", len(langs))
	}

	// Database and Redis are optional; together they enable asynchronous jobs.
	var (
		rdb    *redis.Client
		jobSvc handlers.JobService
	)
	db, err := database.NewPool(ctx, cfg.Database)
	switch {
	case errors.Is(err, database.ErrNotConfigured):
		slog.Info("DATABASE_URL not set, asynchronous jobs disabled")
	case err != nil:
		slog.Warn("database unavailable, asynchronous jobs disabled", "error", err)
		db = nil
	default:
		defer db.Close()

		if err := database.RunMigrations(ctx, db, cfg.Database.MigrationsPath); err != nil {
			slog.Error("migrations failed", "error", err)
			os.Exit(1)
		}

		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unavailable, jobs will fail to queue", "error", err)
		}

		svc, q, err := jobs.NewServiceFromConfig(cfg, db, rdb, ocrSvc)
		if err != nil {
			slog.Error("failed to set up jobs", "error", err)
			os.Exit(1)
		}
		defer q.Close()
		jobSvc = svc
	}

	router := api.NewRouter(db, rdb, cfg, ocrSvc, jobSvc)
	handler := router.Setup()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		// OCR of a large scan runs inside the request.
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
