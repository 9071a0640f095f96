package ocr

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

const (
	ContentTypePDF    = "application/pdf"
	ContentTypeBinary = "application/octet-stream"
)

var trailingExt = regexp.MustCompile(`[.][^.]+$`)

// Result is the payload returned to the client.
type Result struct {
	Filename    string
	ContentType string
	Data        []byte
	Pages       int // pages in the uploaded file, 0 when unknown
}

// BaseName strips the last extension from an uploaded filename.
// "report.scan.pdf" becomes "report.scan"; "doc" stays "doc".
func BaseName(filename string) string {
	return trailingExt.ReplaceAllString(filename, "")
}

// OutputName is the filename of the processed PDF for an upload.
func OutputName(filename string) string {
	return BaseName(filename) + "_OCR.pdf"
}

func pdfResult(filename, pdfPath string) (*Result, error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("read OCR output: %w", err)
	}
	return &Result{Filename: OutputName(filename), ContentType: ContentTypePDF, Data: data}, nil
}

// zipResult bundles the PDF and its sidecar transcript.
func zipResult(filename, pdfPath, sidecarPath string) (*Result, error) {
	pdfName := OutputName(filename)
	txtName := strings.TrimSuffix(pdfName, ".pdf") + ".txt"

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if err := addZipEntry(zw, pdfName, pdfPath); err != nil {
		return nil, err
	}
	if err := addZipEntry(zw, txtName, sidecarPath); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish zip: %w", err)
	}

	return &Result{
		Filename:    BaseName(filename) + "_OCR.zip",
		ContentType: ContentTypeBinary,
		Data:        buf.Bytes(),
	}, nil
}

func addZipEntry(zw *zip.Writer, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s for zip: %w", name, err)
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("write zip entry %s: %w", name, err)
	}
	return nil
}
