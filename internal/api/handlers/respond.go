package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/nikhilbhutani/pdfocr/internal/ocr"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func setAttachment(w http.ResponseWriter, filename, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
}

func writeFile(w http.ResponseWriter, filename, contentType string, data []byte) {
	setAttachment(w, filename, contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// writeOCRError maps OCR failures to responses: validation problems are the
// client's fault, everything else is ours.
func writeOCRError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *ocr.InvalidRequestError
	if errors.As(err, &invalid) {
		writeError(w, http.StatusBadRequest, invalid.Reason)
		return
	}

	var pe *ocr.ProcessError
	if errors.As(err, &pe) {
		slog.Error("external tool failed", "tool", pe.Tool, "exit_code", pe.ExitCode, "output", pe.Output)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":     err.Error(),
			"tool":      pe.Tool,
			"exit_code": pe.ExitCode,
			"output":    pe.Output,
		})
		return
	}

	slog.Error("ocr request failed", "path", r.URL.Path, "error", err)
	if errors.Is(err, ocr.ErrLanguageDataUnavailable) {
		writeError(w, http.StatusInternalServerError, "OCR language data is not available on this server")
		return
	}
	writeError(w, http.StatusInternalServerError, "OCR processing failed")
}
