package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nikhilbhutani/pdfocr/internal/jobs"
	"github.com/nikhilbhutani/pdfocr/internal/models"
	"github.com/nikhilbhutani/pdfocr/internal/ocr"
	"github.com/nikhilbhutani/pdfocr/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// toolStub writes a fixed PDF (and sidecar text when asked) where ocrmypdf would.
type toolStub struct {
	calls  [][]string
	result *ocr.ProcessResult
}

func (s *toolStub) Run(_ context.Context, _ ocr.Category, argv []string) (*ocr.ProcessResult, error) {
	s.calls = append(s.calls, slices.Clone(argv))
	if err := os.WriteFile(argv[len(argv)-1], []byte("%PDF-ocr"), 0o644); err != nil {
		return nil, err
	}
	if i := slices.Index(argv, "--sidecar"); i >= 0 {
		if err := os.WriteFile(argv[i+1], []byte("text"), 0o644); err != nil {
			return nil, err
		}
	}
	if s.result != nil {
		return s.result, nil
	}
	return &ocr.ProcessResult{}, nil
}

func newOCRService(t *testing.T, stub *toolStub) *ocr.Service {
	t.Helper()
	tessdata := t.TempDir()
	for _, lang := range []string{"eng", "fra", "osd"} {
		require.NoError(t, os.WriteFile(filepath.Join(tessdata, lang+".traineddata"), nil, 0o644))
	}
	return ocr.NewService(ocr.NewLanguageResolver(tessdata, false), stub, ocr.Options{TempDir: t.TempDir()})
}

type formField struct{ name, value string }

func multipartRequest(t *testing.T, target, filename string, fields ...formField) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("fileInput", filename)
		require.NoError(t, err)
		fw.Write([]byte("%PDF-1.4 scanned"))
	}
	for _, f := range fields {
		require.NoError(t, mw.WriteField(f.name, f.value))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	msg, _ := body["error"].(string)
	return msg
}

func dispositionFilename(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	_, params, err := mime.ParseMediaType(w.Header().Get("Content-Disposition"))
	require.NoError(t, err)
	return params["filename"]
}

func TestOCRProcessPDF(t *testing.T) {
	stub := &toolStub{}
	h := NewOCRHandler(newOCRService(t, stub), 10<<20)

	req := multipartRequest(t, "/api/v1/ocr-pdf", "report.scan.pdf",
		formField{"languages", "eng"},
		formField{"deskew", "true"},
		formField{"ocrType", "force-ocr"},
	)
	w := httptest.NewRecorder()
	h.Process(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "report.scan_OCR.pdf", dispositionFilename(t, w))
	assert.Equal(t, "%PDF-ocr", w.Body.String())

	require.Len(t, stub.calls, 1)
	argv := stub.calls[0]
	assert.Equal(t, "hocr", argv[6], "render type defaults to hocr")
	assert.Contains(t, argv, "--deskew")
	assert.Contains(t, argv, "--force-ocr")
	assert.NotContains(t, argv, "--clean")
}

func TestOCRProcessSidecarZip(t *testing.T) {
	h := NewOCRHandler(newOCRService(t, &toolStub{}), 10<<20)

	req := multipartRequest(t, "/api/v1/ocr-pdf", "doc",
		formField{"languages", "eng"},
		formField{"languages", "fra"},
		formField{"sidecar", "true"},
	)
	w := httptest.NewRecorder()
	h.Process(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "doc_OCR.zip", dispositionFilename(t, w))

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"doc_OCR.pdf", "doc_OCR.txt"}, names)
}

func TestOCRProcessCommaSeparatedLanguages(t *testing.T) {
	stub := &toolStub{}
	h := NewOCRHandler(newOCRService(t, stub), 10<<20)

	w := httptest.NewRecorder()
	h.Process(w, multipartRequest(t, "/api/v1/ocr-pdf", "a.pdf", formField{"languages", "fra, eng"}))

	require.Equal(t, http.StatusOK, w.Code)
	argv := stub.calls[0]
	assert.Equal(t, "fra+eng", argv[len(argv)-3])
}

func TestOCRProcessBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		req    func(t *testing.T) *http.Request
		reason string
	}{
		{
			name:   "no file",
			req:    func(t *testing.T) *http.Request { return multipartRequest(t, "/", "", formField{"languages", "eng"}) },
			reason: "fileInput required",
		},
		{
			name:   "no languages",
			req:    func(t *testing.T) *http.Request { return multipartRequest(t, "/", "a.pdf") },
			reason: "Please select at least one language.",
		},
		{
			name: "bad render type",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/", "a.pdf", formField{"languages", "eng"}, formField{"ocrRenderType", "pdf"})
			},
			reason: "ocrRenderType wrong",
		},
		{
			name: "unknown languages",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/", "a.pdf", formField{"languages", "xxx"}, formField{"languages", "osd"})
			},
			reason: "None of the selected languages are valid.",
		},
		{
			name: "bad boolean",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/", "a.pdf", formField{"languages", "eng"}, formField{"sidecar", "maybe"})
			},
			reason: "invalid value for sidecar",
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
			},
			reason: "invalid multipart form",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &toolStub{}
			h := NewOCRHandler(newOCRService(t, stub), 10<<20)

			w := httptest.NewRecorder()
			h.Process(w, tt.req(t))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.reason, decodeError(t, w))
			assert.Empty(t, stub.calls, "no tool may run for a rejected request")
		})
	}
}

func TestOCRProcessToolFailure(t *testing.T) {
	stub := &toolStub{result: &ocr.ProcessResult{ExitCode: 2, Output: "InputFileError"}}
	h := NewOCRHandler(newOCRService(t, stub), 10<<20)

	w := httptest.NewRecorder()
	h.Process(w, multipartRequest(t, "/", "a.pdf", formField{"languages", "eng"}))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ocrmypdf", body["tool"])
	assert.Equal(t, "InputFileError", body["output"])
}

func TestOCRProcessUploadLimit(t *testing.T) {
	h := NewOCRHandler(newOCRService(t, &toolStub{}), 64)

	w := httptest.NewRecorder()
	h.Process(w, multipartRequest(t, "/", "a.pdf", formField{"languages", strings.Repeat("eng,", 50)}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOCRLanguages(t *testing.T) {
	h := NewOCRHandler(newOCRService(t, &toolStub{}), 10<<20)

	w := httptest.NewRecorder()
	h.Languages(w, httptest.NewRequest(http.MethodGet, "/api/v1/ocr-pdf/languages", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Languages []string `json:"languages"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, []string{"eng", "fra"}, body.Languages)
}

func TestFormBool(t *testing.T) {
	for _, v := range []string{"true", "TRUE", "1", "on", "yes"} {
		got, err := formBool(v)
		require.NoError(t, err, v)
		assert.True(t, got, v)
	}
	for _, v := range []string{"", "false", "0", "off", "no"} {
		got, err := formBool(v)
		require.NoError(t, err, v)
		assert.False(t, got, v)
	}
	_, err := formBool("perhaps")
	assert.Error(t, err)
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	NewHealthHandler(nil, nil, nil).Healthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadyzReportsMissingTool(t *testing.T) {
	h := NewHealthHandler(nil, nil, newOCRService(t, &toolStub{}), "definitely-not-installed-ocr-tool")

	w := httptest.NewRecorder()
	h.Readyz(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body struct {
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body.Checks["tessdata"])
	assert.Contains(t, body.Checks["definitely-not-installed-ocr-tool"], "unhealthy")
}


type stubJobs struct {
	job       *models.OCRJob
	created   bool
	err       error
	result    string
	resultErr error
	got       jobs.SubmitRequest
}

func (s *stubJobs) Submit(_ context.Context, req jobs.SubmitRequest) (*models.OCRJob, bool, error) {
	s.got = req
	return s.job, s.created, s.err
}

func (s *stubJobs) Get(_ context.Context, id uuid.UUID) (*models.OCRJob, error) {
	if s.job == nil || s.job.ID != id {
		return nil, jobs.ErrJobNotFound
	}
	return s.job, nil
}

func (s *stubJobs) OpenResult(ctx context.Context, id uuid.UUID) (*models.OCRJob, io.ReadCloser, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != models.JobStatusCompleted {
		return job, nil, jobs.ErrNotReady
	}
	if s.resultErr != nil {
		return job, nil, s.resultErr
	}
	return job, io.NopCloser(strings.NewReader(s.result)), nil
}

func jobRouter(svc JobService) http.Handler {
	h := NewJobHandler(svc, 10<<20)
	r := chi.NewRouter()
	r.Post("/jobs", h.Submit)
	r.Get("/jobs/{id}", h.Get)
	r.Get("/jobs/{id}/result", h.Result)
	return r
}

func TestJobSubmit(t *testing.T) {
	svc := &stubJobs{job: &models.OCRJob{ID: uuid.New(), Status: models.JobStatusPending}, created: true}
	router := jobRouter(svc)

	req := multipartRequest(t, "/jobs", "scan.pdf",
		formField{"languages", "eng"},
		formField{"callbackUrl", "https://client.example/hook"},
	)
	req.Header.Set("Idempotency-Key", "upload-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "upload-42", svc.got.IdempotencyKey)
	assert.Equal(t, "https://client.example/hook", svc.got.CallbackURL)
	assert.Equal(t, []string{"eng"}, svc.got.Request.Languages)

	svc.created = false
	w = httptest.NewRecorder()
	router.ServeHTTP(w, multipartRequest(t, "/jobs", "scan.pdf", formField{"languages", "eng"}))
	assert.Equal(t, http.StatusOK, w.Code, "replayed idempotency key")
}

func TestJobSubmitInvalid(t *testing.T) {
	svc := &stubJobs{err: &ocr.InvalidRequestError{Reason: "None of the selected languages are valid."}}

	w := httptest.NewRecorder()
	jobRouter(svc).ServeHTTP(w, multipartRequest(t, "/jobs", "scan.pdf", formField{"languages", "xx"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "None of the selected languages are valid.", decodeError(t, w))
}

func TestJobGetAndResult(t *testing.T) {
	job := &models.OCRJob{ID: uuid.New(), Status: models.JobStatusProcessing}
	svc := &stubJobs{job: job, result: "%PDF-done"}
	router := jobRouter(svc)

	do := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	assert.Equal(t, http.StatusBadRequest, do("/jobs/not-a-uuid").Code)
	assert.Equal(t, http.StatusNotFound, do("/jobs/"+uuid.NewString()).Code)
	assert.Equal(t, http.StatusOK, do("/jobs/"+job.ID.String()).Code)
	assert.Equal(t, http.StatusConflict, do("/jobs/"+job.ID.String()+"/result").Code)

	job.Status = models.JobStatusCompleted
	job.ResultFilename = "scan_OCR.pdf"
	job.ResultContentType = ocr.ContentTypePDF

	w := do("/jobs/" + job.ID.String() + "/result")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "scan_OCR.pdf", dispositionFilename(t, w))
	assert.Equal(t, "%PDF-done", w.Body.String())
}

func TestJobSubmitInProgress(t *testing.T) {
	svc := &stubJobs{err: jobs.ErrSubmissionInProgress}

	req := multipartRequest(t, "/jobs", "scan.pdf", formField{"languages", "eng"})
	req.Header.Set("Idempotency-Key", "upload-42")
	w := httptest.NewRecorder()
	jobRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, jobs.ErrSubmissionInProgress.Error(), decodeError(t, w))
}

func TestJobResultMissingObject(t *testing.T) {
	job := &models.OCRJob{ID: uuid.New(), Status: models.JobStatusCompleted, ResultPath: "jobs/x/scan_OCR.pdf"}
	svc := &stubJobs{job: job, resultErr: fmt.Errorf("open result: %w", storage.ErrNotFound)}

	w := httptest.NewRecorder()
	jobRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID.String()+"/result", nil))

	assert.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, "job result is no longer available", decodeError(t, w))
}
