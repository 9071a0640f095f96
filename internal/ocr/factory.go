package ocr

import "github.com/nikhilbhutani/pdfocr/internal/config"

// NewServiceFromConfig wires a Service backed by real processes.
func NewServiceFromConfig(cfg config.OCRConfig) *Service {
	exec := NewExecExecutor(map[Category]int64{
		CategoryOCRmyPDF:    int64(cfg.MaxOCRmyPDF),
		CategoryGhostscript: int64(cfg.MaxGhostscript),
	}, cfg.ProcessTimeout)

	return NewService(NewLanguageResolver(cfg.TessdataDir, cfg.TessdataLenient), exec, Options{
		OCRmyPDFBin:          cfg.OCRmyPDFBin,
		GhostscriptBin:       cfg.GhostscriptBin,
		TempDir:              cfg.TempDir,
		TolerateToolFailures: cfg.TolerateToolFails,
	})
}
