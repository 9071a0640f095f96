package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testPaths = CommandPaths{Input: "/tmp/in.pdf", Output: "/tmp/out.pdf", Sidecar: "/tmp/side.txt"}

func TestBuildCommandMinimal(t *testing.T) {
	req := Request{Languages: []string{"eng"}, RenderType: RenderHOCR}

	got := BuildCommand("ocrmypdf", req, testPaths)

	assert.Equal(t, []string{
		"ocrmypdf", "--verbose", "2", "--output-type", "pdf", "--pdf-renderer", "hocr",
		"--language", "eng", "/tmp/in.pdf", "/tmp/out.pdf",
	}, got)
}

func TestBuildCommandAllFlags(t *testing.T) {
	req := Request{
		Languages:  []string{"eng", "fra"},
		Sidecar:    true,
		Deskew:     true,
		Clean:      true,
		CleanFinal: true,
		OCRType:    OCRTypeSkipText,
		RenderType: RenderSandwich,
	}

	got := BuildCommand("ocrmypdf", req, testPaths)

	assert.Equal(t, []string{
		"ocrmypdf", "--verbose", "2", "--output-type", "pdf", "--pdf-renderer", "sandwich",
		"--sidecar", "/tmp/side.txt",
		"--deskew", "--clean", "--clean-final", "--skip-text",
		"--language", "eng+fra", "/tmp/in.pdf", "/tmp/out.pdf",
	}, got)
}

func TestBuildCommandOCRType(t *testing.T) {
	cases := map[OCRType][]string{
		OCRTypeSkipText: {"--skip-text"},
		OCRTypeForceOCR: {"--force-ocr"},
		OCRTypeNormal:   nil,
		OCRTypeUnset:    nil,
		"sideways":      nil,
	}

	for ocrType, want := range cases {
		t.Run(string(ocrType), func(t *testing.T) {
			req := Request{Languages: []string{"eng"}, RenderType: RenderHOCR, OCRType: ocrType}
			got := BuildCommand("ocrmypdf", req, testPaths)

			mid := got[7 : len(got)-4]
			assert.Equal(t, len(want), len(mid))
			for i := range want {
				assert.Equal(t, want[i], mid[i])
			}
		})
	}
}

func TestBuildCommandKeepsLanguageOrderAndDuplicates(t *testing.T) {
	req := Request{Languages: []string{"fra", "eng", "fra"}, RenderType: RenderHOCR}

	got := BuildCommand("ocrmypdf", req, testPaths)

	assert.Equal(t, []string{"--language", "fra+eng+fra", "/tmp/in.pdf", "/tmp/out.pdf"}, got[len(got)-4:])
}

func TestWithSingleJobDoesNotAlias(t *testing.T) {
	base := make([]string, 2, 10)
	base[0], base[1] = "ocrmypdf", "x"

	retry := withSingleJob(base)

	assert.Equal(t, []string{"ocrmypdf", "x", "--jobs", "1"}, retry)
	assert.Len(t, base, 2)
	assert.Empty(t, base[:cap(base)][2], "retry must not write into the original backing array")
}

func TestNeedsSingleJobRetry(t *testing.T) {
	both := "File \"/usr/lib/python3/multiprocessing/synchronize.py\", line 57\nOSError: [Errno 38] Function not implemented"

	assert.True(t, needsSingleJobRetry(&ProcessResult{ExitCode: 2, Output: both}))
	assert.False(t, needsSingleJobRetry(&ProcessResult{ExitCode: 0, Output: both}))
	assert.False(t, needsSingleJobRetry(&ProcessResult{ExitCode: 2, Output: "multiprocessing/synchronize.py"}))
	assert.False(t, needsSingleJobRetry(&ProcessResult{ExitCode: 2, Output: "Function not implemented"}))
}

func TestBuildImageStripCommand(t *testing.T) {
	got := BuildImageStripCommand("gs", "/tmp/out.pdf", "/tmp/out_no_images.pdf")

	assert.Equal(t, []string{"gs", "-sDEVICE=pdfwrite", "-dFILTERIMAGE", "-o", "/tmp/out_no_images.pdf", "/tmp/out.pdf"}, got)
}
