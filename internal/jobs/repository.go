package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikhilbhutani/pdfocr/internal/models"
)

var ErrJobNotFound = errors.New("job not found")

type Repository interface {
	Create(ctx context.Context, job *models.OCRJob) error
	Get(ctx context.Context, id uuid.UUID) (*models.OCRJob, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, result Completion) error
	// MarkFailed records errMsg. With final unset the job goes back to
	// pending because the queue will retry it.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, final bool) error
}

// Completion describes the stored result of a finished job.
type Completion struct {
	ResultPath  string
	Filename    string
	ContentType string
	Pages       int
}

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const jobColumns = `id, status, filename, options, input_path, result_path, result_filename,
	result_content_type, pages, attempts, error, callback_url, created_at, updated_at, completed_at`

func (r *PostgresRepository) Create(ctx context.Context, job *models.OCRJob) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO ocr_jobs (id, status, filename, options, input_path, callback_url)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		job.ID, job.Status, job.Filename, job.Options, job.InputPath, job.CallbackURL,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert ocr job: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*models.OCRJob, error) {
	var j models.OCRJob
	err := r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM ocr_jobs WHERE id = $1`, id).Scan(
		&j.ID, &j.Status, &j.Filename, &j.Options, &j.InputPath, &j.ResultPath, &j.ResultFilename,
		&j.ResultContentType, &j.Pages, &j.Attempts, &j.Error, &j.CallbackURL, &j.CreatedAt, &j.UpdatedAt, &j.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ocr job: %w", err)
	}
	return &j, nil
}

func (r *PostgresRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, "mark job processing",
		`UPDATE ocr_jobs SET status = $2, attempts = attempts + 1, updated_at = now() WHERE id = $1`,
		id, models.JobStatusProcessing)
}

func (r *PostgresRepository) MarkCompleted(ctx context.Context, id uuid.UUID, c Completion) error {
	return r.exec(ctx, "mark job completed",
		`UPDATE ocr_jobs
		 SET status = $2, result_path = $3, result_filename = $4, result_content_type = $5,
		     pages = $6, error = '', updated_at = now(), completed_at = now()
		 WHERE id = $1`,
		id, models.JobStatusCompleted, c.ResultPath, c.Filename, c.ContentType, c.Pages)
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, final bool) error {
	status := models.JobStatusPending
	if final {
		status = models.JobStatusFailed
	}
	return r.exec(ctx, "mark job failed",
		`UPDATE ocr_jobs SET status = $2, error = $3, updated_at = now() WHERE id = $1`,
		id, status, errMsg)
}

func (r *PostgresRepository) exec(ctx context.Context, what, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}
