package jobs

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/pdfocr/internal/cache"
	"github.com/nikhilbhutani/pdfocr/internal/config"
	"github.com/nikhilbhutani/pdfocr/internal/ocr"
	"github.com/nikhilbhutani/pdfocr/internal/queue"
	"github.com/nikhilbhutani/pdfocr/internal/storage"
)

// cachePrefix namespaces this service's keys in a shared Redis.
const cachePrefix = "pdfocr:"

// NewServiceFromConfig wires the job service against Postgres, Redis and the
// configured storage backend. The returned queue client must be closed.
func NewServiceFromConfig(cfg *config.Config, db *pgxpool.Pool, rdb redis.UniversalClient, ocrSvc *ocr.Service) (*Service, *queue.Client, error) {
	store, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}

	q := queue.NewClient(cfg.Redis, cfg.Worker)
	idem := cache.NewIdempotencyKeys(cache.NewCache(rdb, cachePrefix))

	return NewService(NewPostgresRepository(db), store, q, idem, ocrSvc), q, nil
}
