package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/pdfocr/internal/models"
	"github.com/nikhilbhutani/pdfocr/internal/ocr"
	"github.com/nikhilbhutani/pdfocr/internal/queue"
	"github.com/nikhilbhutani/pdfocr/internal/storage"
	"github.com/nikhilbhutani/pdfocr/internal/webhook"
)

// ErrNotReady is returned when a result is requested before the job completed.
var ErrNotReady = errors.New("job result not ready")

// ErrSubmissionInProgress is returned for a replayed idempotency key whose
// first submission has not stored its job yet.
var ErrSubmissionInProgress = errors.New("submission with this idempotency key is still in progress")

// maxErrorOutput bounds how much tool output is kept on a failed job.
const maxErrorOutput = 4000

type Enqueuer interface {
	EnqueueOCRProcess(ctx context.Context, payload queue.OCRProcessPayload) error
}

// IdempotencyStore maps client supplied keys to the job they created.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string, jobID uuid.UUID) (existing uuid.UUID, reserved bool, err error)
	Release(ctx context.Context, key string) error
}

// Notifier is told about jobs that reached a final state.
type Notifier interface {
	Notify(ctx context.Context, event string, job *models.OCRJob)
}

type Service struct {
	repo   Repository
	store  storage.Storage
	queue  Enqueuer
	idem   IdempotencyStore
	ocr    *ocr.Service
	notify Notifier
}

// NewService builds the job service. idem may be nil, which disables
// idempotency keys.
func NewService(repo Repository, store storage.Storage, q Enqueuer, idem IdempotencyStore, ocrSvc *ocr.Service) *Service {
	return &Service{repo: repo, store: store, queue: q, idem: idem, ocr: ocrSvc}
}

// WithNotifier enables completion callbacks for jobs that set a callback URL.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notify = n
	return s
}

type SubmitRequest struct {
	Request        ocr.Request
	Data           io.Reader
	IdempotencyKey string
	CallbackURL    string
}

// Submit validates the request, stores the upload and queues it. created is
// false when an earlier submission with the same idempotency key is returned.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (job *models.OCRJob, created bool, err error) {
	prepared, err := s.ocr.Prepare(req.Request)
	if err != nil {
		return nil, false, err
	}
	if err := validateCallback(req.CallbackURL); err != nil {
		return nil, false, err
	}

	jobID := uuid.New()

	if req.IdempotencyKey != "" && s.idem != nil {
		var existing uuid.UUID
		var reserved bool
		existing, reserved, err = s.idem.Reserve(ctx, req.IdempotencyKey, jobID)
		if err != nil {
			return nil, false, fmt.Errorf("reserve idempotency key: %w", err)
		}
		if !reserved {
			job, err := s.repo.Get(ctx, existing)
			if errors.Is(err, ErrJobNotFound) {
				return nil, false, ErrSubmissionInProgress
			}
			if err != nil {
				return nil, false, err
			}
			return job, false, nil
		}
		defer func() {
			if err != nil {
				if relErr := s.idem.Release(context.WithoutCancel(ctx), req.IdempotencyKey); relErr != nil {
					slog.Warn("failed to release idempotency key", "error", relErr)
				}
			}
		}()
	}

	job = &models.OCRJob{
		ID:          jobID,
		Status:      models.JobStatusPending,
		Filename:    prepared.Filename,
		Options:     prepared,
		InputPath:   fmt.Sprintf("jobs/%s/input.pdf", jobID),
		CallbackURL: req.CallbackURL,
	}

	if err := s.store.Upload(ctx, job.InputPath, req.Data, ocr.ContentTypePDF); err != nil {
		return nil, false, fmt.Errorf("store upload: %w", err)
	}

	if err := s.repo.Create(ctx, job); err != nil {
		s.discard(ctx, job.InputPath)
		return nil, false, err
	}

	if err := s.queue.EnqueueOCRProcess(ctx, queue.OCRProcessPayload{JobID: jobID.String()}); err != nil {
		if markErr := s.repo.MarkFailed(ctx, jobID, "could not queue job", true); markErr != nil {
			slog.Error("failed to mark unqueued job", "job_id", jobID, "error", markErr)
		}
		return nil, false, fmt.Errorf("queue job: %w", err)
	}

	slog.Info("ocr job submitted", "job_id", jobID, "filename", job.Filename, "languages", prepared.Languages)
	return job, true, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.OCRJob, error) {
	return s.repo.Get(ctx, id)
}

// OpenResult returns the job and a reader over its stored result.
func (s *Service) OpenResult(ctx context.Context, id uuid.UUID) (*models.OCRJob, io.ReadCloser, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != models.JobStatusCompleted {
		return job, nil, ErrNotReady
	}

	rc, err := s.store.Download(ctx, job.ResultPath)
	if err != nil {
		return job, nil, fmt.Errorf("open result: %w", err)
	}
	return job, rc, nil
}

// Execute runs OCR for a queued job. lastAttempt tells it whether a failure
// is final; invalid requests are always final.
func (s *Service) Execute(ctx context.Context, id uuid.UUID, lastAttempt bool) error {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status == models.JobStatusCompleted || job.Status == models.JobStatusFailed {
		slog.Info("skipping finished job", "job_id", id, "status", job.Status)
		return nil
	}

	if err := s.repo.MarkProcessing(ctx, id); err != nil {
		return err
	}

	res, err := s.run(ctx, job)
	if err != nil {
		s.fail(ctx, job, failureMessage(err), lastAttempt || errors.Is(err, ocr.ErrInvalidRequest))
		return err
	}

	resultPath := fmt.Sprintf("jobs/%s/%s", id, res.Filename)
	if err := s.store.Upload(ctx, resultPath, bytes.NewReader(res.Data), res.ContentType); err != nil {
		s.fail(ctx, job, "could not store result", lastAttempt)
		return fmt.Errorf("store result: %w", err)
	}

	done := Completion{
		ResultPath:  resultPath,
		Filename:    res.Filename,
		ContentType: res.ContentType,
		Pages:       res.Pages,
	}
	if err := s.repo.MarkCompleted(ctx, id, done); err != nil {
		return err
	}

	s.discard(ctx, job.InputPath)
	slog.Info("ocr job completed", "job_id", id, "result", res.Filename, "bytes", len(res.Data))

	job.Status = models.JobStatusCompleted
	job.ResultFilename = done.Filename
	job.ResultContentType = done.ContentType
	job.Pages = done.Pages
	s.emit(ctx, webhook.EventJobCompleted, job)
	return nil
}

func (s *Service) fail(ctx context.Context, job *models.OCRJob, msg string, final bool) {
	if err := s.repo.MarkFailed(context.WithoutCancel(ctx), job.ID, msg, final); err != nil {
		slog.Error("failed to record job failure", "job_id", job.ID, "error", err)
	}
	if !final {
		return
	}
	job.Status = models.JobStatusFailed
	job.Error = msg
	s.emit(ctx, webhook.EventJobFailed, job)
}

func (s *Service) emit(ctx context.Context, event string, job *models.OCRJob) {
	if s.notify != nil && job.CallbackURL != "" {
		s.notify.Notify(context.WithoutCancel(ctx), event, job)
	}
}

func (s *Service) run(ctx context.Context, job *models.OCRJob) (*ocr.Result, error) {
	rc, err := s.store.Download(ctx, job.InputPath)
	if err != nil {
		return nil, fmt.Errorf("fetch input: %w", err)
	}
	defer rc.Close()

	return s.ocr.Process(ctx, job.Options, rc)
}

func (s *Service) discard(ctx context.Context, path string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), path); err != nil {
		slog.Warn("failed to delete stored object", "path", path, "error", err)
	}
}

func validateCallback(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ocr.InvalidRequestError{Reason: "callbackUrl must be an absolute http or https URL"}
	}
	return nil
}

func failureMessage(err error) string {
	msg := err.Error()
	var pe *ocr.ProcessError
	if errors.As(err, &pe) && pe.Output != "" {
		out := pe.Output
		if len(out) > maxErrorOutput {
			out = out[len(out)-maxErrorOutput:]
		}
		msg += "\n" + out
	}
	return msg
}
