package ocr

// OCRType selects how ocrmypdf treats pages that already contain text.
type OCRType string

const (
	OCRTypeUnset    OCRType = ""
	OCRTypeSkipText OCRType = "skip-text"
	OCRTypeForceOCR OCRType = "force-ocr"
	OCRTypeNormal   OCRType = "Normal"
)

// RenderType is the ocrmypdf PDF renderer.
type RenderType string

const (
	RenderHOCR     RenderType = "hocr"
	RenderSandwich RenderType = "sandwich"
)

// Request is one OCR invocation as submitted by a client.
type Request struct {
	Filename          string     `json:"filename"`
	Languages         []string   `json:"languages"`
	Sidecar           bool       `json:"sidecar"`
	Deskew            bool       `json:"deskew"`
	Clean             bool       `json:"clean"`
	CleanFinal        bool       `json:"clean_final"`
	RemoveImagesAfter bool       `json:"remove_images_after"`
	OCRType           OCRType    `json:"ocr_type,omitempty"`
	RenderType        RenderType `json:"render_type"`
}

// Validate applies the checks that need no filesystem access. An empty
// render type is not defaulted here; callers decide the default.
func (r Request) Validate() error {
	if len(r.Languages) == 0 {
		return invalid("Please select at least one language.")
	}
	if r.RenderType != RenderHOCR && r.RenderType != RenderSandwich {
		return invalid("ocrRenderType wrong")
	}
	return nil
}

// modeFlag returns the ocrmypdf flag for the OCR type, or "" when none applies.
// Unrecognised values are treated like Normal.
func (t OCRType) modeFlag() string {
	switch t {
	case OCRTypeSkipText:
		return "--skip-text"
	case OCRTypeForceOCR:
		return "--force-ocr"
	default:
		return ""
	}
}
