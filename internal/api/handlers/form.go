package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/nikhilbhutani/pdfocr/internal/ocr"
)

const multipartMemory = 32 << 20

// parseOCRForm reads the multipart OCR form. The caller must close the
// returned file.
func parseOCRForm(w http.ResponseWriter, r *http.Request, maxBytes int64) (ocr.Request, multipart.File, error) {
	var req ocr.Request

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return req, nil, fmt.Errorf("upload exceeds %d bytes", tooBig.Limit)
		}
		return req, nil, errors.New("invalid multipart form")
	}

	file, header, err := r.FormFile("fileInput")
	if err != nil {
		return req, nil, errors.New("fileInput required")
	}

	req = ocr.Request{
		Filename:   header.Filename,
		Languages:  formList(r.Form["languages"]),
		OCRType:    ocr.OCRType(r.FormValue("ocrType")),
		RenderType: ocr.RenderType(r.FormValue("ocrRenderType")),
	}
	if req.RenderType == "" {
		req.RenderType = ocr.RenderHOCR
	}

	flags := []struct {
		name string
		dst  *bool
	}{
		{"sidecar", &req.Sidecar},
		{"deskew", &req.Deskew},
		{"clean", &req.Clean},
		{"clean-final", &req.CleanFinal},
		{"removeImagesAfter", &req.RemoveImagesAfter},
	}
	for _, f := range flags {
		v, err := formBool(r.FormValue(f.name))
		if err != nil {
			file.Close()
			return req, nil, fmt.Errorf("invalid value for %s", f.name)
		}
		*f.dst = v
	}

	return req, file, nil
}

// formList flattens repeated and comma separated values.
func formList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func formBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		return false, nil
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	return strconv.ParseBool(v)
}
