package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Storage  StorageConfig
	OCR      OCRConfig
	Worker   WorkerConfig
	Webhook  WebhookConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	MaxUploadMB    int
	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string // empty disables authentication
}

type StorageConfig struct {
	Backend     string // "local" or "supabase"
	LocalDir    string
	SupabaseURL string
	SupabaseKey string
	Bucket      string
}

// OCRConfig controls how the external tools are located and invoked.
type OCRConfig struct {
	TessdataDir       string
	TessdataLenient   bool // unreadable tessdata dir yields no languages instead of an error
	OCRmyPDFBin       string
	GhostscriptBin    string
	TempDir           string
	ProcessTimeout    time.Duration // zero means no limit beyond the request context
	MaxOCRmyPDF       int
	MaxGhostscript    int
	TolerateToolFails bool
}

type WorkerConfig struct {
	Concurrency int
	JobTimeout  time.Duration
	MaxRetry    int
}

// WebhookConfig controls job completion callbacks.
type WebhookConfig struct {
	Secret      string // empty sends unsigned callbacks
	Timeout     time.Duration
	MaxAttempts int
}

// Load reads configuration from the environment, after merging an optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to read .env file", "error", err)
	}

	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxUpload, err := getEnvInt("OCR_MAX_UPLOAD_MB", 100)
	if err != nil {
		return nil, fmt.Errorf("invalid OCR_MAX_UPLOAD_MB: %w", err)
	}

	rps, err := getEnvFloat("RATE_LIMIT_RPS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	burst, err := getEnvInt("RATE_LIMIT_BURST", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	lenient, err := getEnvBool("OCR_TESSDATA_LENIENT", false)
	if err != nil {
		return nil, fmt.Errorf("invalid OCR_TESSDATA_LENIENT: %w", err)
	}

	tolerate, err := getEnvBool("OCR_TOLERATE_TOOL_FAILURE", false)
	if err != nil {
		return nil, fmt.Errorf("invalid OCR_TOLERATE_TOOL_FAILURE: %w", err)
	}

	procTimeout, err := getEnvDuration("OCR_PROCESS_TIMEOUT", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid OCR_PROCESS_TIMEOUT: %w", err)
	}

	maxOCR, err := getEnvInt("OCR_MAX_CONCURRENT_OCRMYPDF", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid OCR_MAX_CONCURRENT_OCRMYPDF: %w", err)
	}

	maxGS, err := getEnvInt("OCR_MAX_CONCURRENT_GHOSTSCRIPT", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid OCR_MAX_CONCURRENT_GHOSTSCRIPT: %w", err)
	}

	workerConc, err := getEnvInt("WORKER_CONCURRENCY", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	jobTimeout, err := getEnvDuration("WORKER_JOB_TIMEOUT", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_JOB_TIMEOUT: %w", err)
	}

	maxRetry, err := getEnvInt("WORKER_MAX_RETRY", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_MAX_RETRY: %w", err)
	}

	hookTimeout, err := getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_TIMEOUT: %w", err)
	}

	hookAttempts, err := getEnvInt("WEBHOOK_MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_MAX_ATTEMPTS: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           port,
			MaxUploadMB:    maxUpload,
			RateLimitRPS:   rps,
			RateLimitBurst: burst,
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		Storage: StorageConfig{
			Backend:     getEnv("STORAGE_BACKEND", "local"),
			LocalDir:    getEnv("STORAGE_LOCAL_DIR", "data"),
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			SupabaseKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:      getEnv("STORAGE_BUCKET", "ocr"),
		},
		OCR: OCRConfig{
			TessdataDir:       getEnv("OCR_TESSDATA_DIR", "/usr/share/tesseract-ocr/4.00/tessdata"),
			TessdataLenient:   lenient,
			OCRmyPDFBin:       getEnv("OCR_OCRMYPDF_BIN", "ocrmypdf"),
			GhostscriptBin:    getEnv("OCR_GHOSTSCRIPT_BIN", "gs"),
			TempDir:           getEnv("OCR_TEMP_DIR", ""),
			ProcessTimeout:    procTimeout,
			MaxOCRmyPDF:       maxOCR,
			MaxGhostscript:    maxGS,
			TolerateToolFails: tolerate,
		},
		Worker: WorkerConfig{
			Concurrency: workerConc,
			JobTimeout:  jobTimeout,
			MaxRetry:    maxRetry,
		},
		Webhook: WebhookConfig{
			Secret:      getEnv("WEBHOOK_SECRET", ""),
			Timeout:     hookTimeout,
			MaxAttempts: hookAttempts,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var problems []string
	if c.OCR.MaxOCRmyPDF < 1 {
		problems = append(problems, "OCR_MAX_CONCURRENT_OCRMYPDF must be at least 1")
	}
	if c.OCR.MaxGhostscript < 1 {
		problems = append(problems, "OCR_MAX_CONCURRENT_GHOSTSCRIPT must be at least 1")
	}
	if c.Server.MaxUploadMB < 1 {
		problems = append(problems, "OCR_MAX_UPLOAD_MB must be at least 1")
	}
	switch c.Storage.Backend {
	case "local":
	case "supabase":
		if c.Storage.SupabaseURL == "" || c.Storage.SupabaseKey == "" {
			problems = append(problems, "SUPABASE_URL and SUPABASE_SERVICE_KEY are required for supabase storage")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
