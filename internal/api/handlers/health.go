package handlers

import (
	"net/http"
	"os/exec"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikhilbhutani/pdfocr/internal/ocr"
	"github.com/redis/go-redis/v9"
)

type HealthHandler struct {
	db    *pgxpool.Pool
	redis *redis.Client
	ocr   *ocr.Service
	tools []string
}

// NewHealthHandler checks db and rdb when non-nil, plus the OCR language data
// and that every binary in tools is on PATH.
func NewHealthHandler(db *pgxpool.Pool, rdb *redis.Client, ocrSvc *ocr.Service, tools ...string) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb, ocr: ocrSvc, tools: tools}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}

	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			checks["database"] = "unhealthy: " + err.Error()
		} else {
			checks["database"] = "ok"
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(r.Context()).Err(); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	if h.ocr != nil {
		langs, err := h.ocr.Languages()
		switch {
		case err != nil:
			checks["tessdata"] = "unhealthy: " + err.Error()
		case len(langs) == 0:
			checks["tessdata"] = "unhealthy: no languages installed"
		default:
			checks["tessdata"] = "ok"
		}
	}

	for _, tool := range h.tools {
		if _, err := exec.LookPath(tool); err != nil {
			checks[tool] = "unhealthy: " + err.Error()
		} else {
			checks[tool] = "ok"
		}
	}

	status := http.StatusOK
	for _, v := range checks {
		if v != "ok" {
			status = http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, status, map[string]interface{}{"status": statusStr(status), "checks": checks})
}

func statusStr(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "unhealthy"
}
