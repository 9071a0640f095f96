package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/pdfocr/internal/ocr"
)

type OCRHandler struct {
	svc       *ocr.Service
	maxUpload int64
}

func NewOCRHandler(svc *ocr.Service, maxUploadBytes int64) *OCRHandler {
	return &OCRHandler{svc: svc, maxUpload: maxUploadBytes}
}

// Process runs OCR on the uploaded PDF and returns the result as a download.
func (h *OCRHandler) Process(w http.ResponseWriter, r *http.Request) {
	req, file, err := parseOCRForm(w, r, h.maxUpload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer file.Close()

	res, err := h.svc.Process(r.Context(), req, file)
	if err != nil {
		writeOCRError(w, r, err)
		return
	}

	writeFile(w, res.Filename, res.ContentType, res.Data)
}

func (h *OCRHandler) Languages(w http.ResponseWriter, r *http.Request) {
	langs, err := h.svc.Languages()
	if err != nil {
		writeOCRError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"languages": langs, "count": len(langs)})
}
