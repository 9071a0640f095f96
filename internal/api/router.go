package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/pdfocr/internal/api/handlers"
	"github.com/nikhilbhutani/pdfocr/internal/api/middleware"
	"github.com/nikhilbhutani/pdfocr/internal/auth"
	"github.com/nikhilbhutani/pdfocr/internal/config"
	"github.com/nikhilbhutani/pdfocr/internal/ocr"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
	ocr   *ocr.Service
	jobs  handlers.JobService
}

// NewRouter wires the HTTP surface. jobSvc may be nil, in which case the
// asynchronous job routes are not mounted.
func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config, ocrSvc *ocr.Service, jobSvc handlers.JobService) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
		ocr:   ocrSvc,
		jobs:  jobSvc,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.AllowedOrigins))

	health := handlers.NewHealthHandler(rt.db, rt.redis, rt.ocr, rt.cfg.OCR.OCRmyPDFBin, rt.cfg.OCR.GhostscriptBin)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	maxUpload := int64(rt.cfg.Server.MaxUploadMB) << 20
	ocrH := handlers.NewOCRHandler(rt.ocr, maxUpload)
	rl := middleware.NewRateLimiter(rt.cfg.Server.RateLimitRPS, rt.cfg.Server.RateLimitBurst)

	protected := func(r chi.Router) {
		r.Use(rl.Limit)
		if rt.cfg.Auth.JWTSecret != "" {
			r.Use(auth.NewJWTMiddleware(rt.cfg.Auth.JWTSecret).Authenticate)
		}
	}

	r.Route("/api/v1", func(r chi.Router) {
		protected(r)

		r.Route("/ocr-pdf", func(r chi.Router) {
			r.Post("/", ocrH.Process)
			r.Get("/languages", ocrH.Languages)

			if rt.jobs != nil {
				jobH := handlers.NewJobHandler(rt.jobs, maxUpload)
				r.Post("/jobs", jobH.Submit)
				r.Get("/jobs/{id}", jobH.Get)
				r.Get("/jobs/{id}/result", jobH.Result)
			}
		})
	})

	// Unversioned path kept for existing clients.
	r.Group(func(r chi.Router) {
		protected(r)
		r.Post("/ocr-pdf", ocrH.Process)
	})

	return r
}
