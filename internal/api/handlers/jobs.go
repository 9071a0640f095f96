package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nikhilbhutani/pdfocr/internal/jobs"
	"github.com/nikhilbhutani/pdfocr/internal/models"
	"github.com/nikhilbhutani/pdfocr/internal/storage"
)

type JobService interface {
	Submit(ctx context.Context, req jobs.SubmitRequest) (*models.OCRJob, bool, error)
	Get(ctx context.Context, id uuid.UUID) (*models.OCRJob, error)
	OpenResult(ctx context.Context, id uuid.UUID) (*models.OCRJob, io.ReadCloser, error)
}

type JobHandler struct {
	svc       JobService
	maxUpload int64
}

func NewJobHandler(svc JobService, maxUploadBytes int64) *JobHandler {
	return &JobHandler{svc: svc, maxUpload: maxUploadBytes}
}

func (h *JobHandler) Submit(w http.ResponseWriter, r *http.Request) {
	req, file, err := parseOCRForm(w, r, h.maxUpload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer file.Close()

	job, created, err := h.svc.Submit(r.Context(), jobs.SubmitRequest{
		Request:        req,
		Data:           file,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		CallbackURL:    r.FormValue("callbackUrl"),
	})
	if errors.Is(err, jobs.ErrSubmissionInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeOCRError(w, r, err)
		return
	}

	status := http.StatusAccepted
	if !created {
		status = http.StatusOK
	}
	writeJSON(w, status, job)
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job ID")
		return
	}

	job, err := h.svc.Get(r.Context(), id)
	if errors.Is(err, jobs.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeOCRError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (h *JobHandler) Result(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job ID")
		return
	}

	job, rc, err := h.svc.OpenResult(r.Context(), id)
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found")
		return
	case errors.Is(err, jobs.ErrNotReady):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "job not completed", "status": job.Status})
		return
	case errors.Is(err, storage.ErrNotFound):
		slog.Warn("completed job has no stored result", "job_id", id, "path", job.ResultPath)
		writeError(w, http.StatusGone, "job result is no longer available")
		return
	case err != nil:
		writeOCRError(w, r, err)
		return
	}
	defer rc.Close()

	setAttachment(w, job.ResultFilename, job.ResultContentType)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, rc)
}
