package ocr

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// InspectPDF returns the page count of the PDF at path.
func InspectPDF(path string) (pages int, err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse PDF: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()

	return reader.NumPage(), nil
}
