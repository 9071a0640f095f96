package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/pdfocr/internal/jobs"
	"github.com/nikhilbhutani/pdfocr/internal/ocr"
	"github.com/nikhilbhutani/pdfocr/internal/queue"
)

type JobExecutor interface {
	Execute(ctx context.Context, id uuid.UUID, lastAttempt bool) error
}

type OCRWorker struct {
	jobs JobExecutor
}

func NewOCRWorker(j JobExecutor) *OCRWorker {
	return &OCRWorker{jobs: j}
}

func (w *OCRWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.OCRProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return fmt.Errorf("parse job ID: %w: %w", err, asynq.SkipRetry)
	}

	err = w.jobs.Execute(ctx, jobID, isLastAttempt(ctx))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ocr.ErrInvalidRequest), errors.Is(err, jobs.ErrJobNotFound):
		return fmt.Errorf("ocr job %s: %w: %w", jobID, err, asynq.SkipRetry)
	default:
		return fmt.Errorf("ocr job %s: %w", jobID, err)
	}
}

func isLastAttempt(ctx context.Context) bool {
	retry, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return false
	}
	return retry >= maxRetry
}
