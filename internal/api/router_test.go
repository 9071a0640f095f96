package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/pdfocr/internal/config"
	"github.com/nikhilbhutani/pdfocr/internal/ocr"
)

type noopExecutor struct{}

func (noopExecutor) Run(context.Context, ocr.Category, []string) (*ocr.ProcessResult, error) {
	return &ocr.ProcessResult{}, nil
}

func testConfig(secret string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			MaxUploadMB:    1,
			RateLimitRPS:   100,
			RateLimitBurst: 100,
			AllowedOrigins: []string{"*"},
		},
		Auth: config.AuthConfig{JWTSecret: secret},
		OCR:  config.OCRConfig{OCRmyPDFBin: "ocrmypdf", GhostscriptBin: "gs"},
	}
}

func newTestRouter(t *testing.T, secret string) http.Handler {
	t.Helper()
	tessdata := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tessdata, "eng.traineddata"), nil, 0o644))

	svc := ocr.NewService(ocr.NewLanguageResolver(tessdata, false), noopExecutor{}, ocr.Options{})
	return NewRouter(nil, nil, testConfig(secret), svc, nil).Setup()
}

func get(h http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouterOpenRoutes(t *testing.T) {
	h := newTestRouter(t, "")

	assert.Equal(t, http.StatusOK, get(h, "/healthz", "").Code)

	w := get(h, "/api/v1/ocr-pdf/languages", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Languages []string `json:"languages"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, []string{"eng"}, body.Languages)
}

func TestRouterJobsDisabledWithoutDatabase(t *testing.T) {
	h := newTestRouter(t, "")
	assert.Equal(t, http.StatusNotFound, get(h, "/api/v1/ocr-pdf/jobs/00000000-0000-0000-0000-000000000000", "").Code)
}

func TestRouterRequiresTokenWhenSecretSet(t *testing.T) {
	const secret = "test-secret"
	h := newTestRouter(t, secret)

	assert.Equal(t, http.StatusOK, get(h, "/healthz", "").Code, "health stays public")
	assert.Equal(t, http.StatusUnauthorized, get(h, "/api/v1/ocr-pdf/languages", "").Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, get(h, "/api/v1/ocr-pdf/languages", token).Code)

	req := httptest.NewRequest(http.MethodPost, "/ocr-pdf", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "unversioned alias is protected too")
}
