package ocr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Options configures a Service.
type Options struct {
	OCRmyPDFBin    string
	GhostscriptBin string
	// TempDir holds per-request workspaces; empty means os.TempDir().
	TempDir string
	// TolerateToolFailures keeps going after a non-zero exit and returns
	// whatever output file exists instead of failing the request.
	TolerateToolFailures bool
}

// Service turns uploaded PDFs into searchable PDFs using ocrmypdf.
type Service struct {
	langs *LanguageResolver
	exec  Executor
	opts  Options
}

func NewService(langs *LanguageResolver, exec Executor, opts Options) *Service {
	if opts.OCRmyPDFBin == "" {
		opts.OCRmyPDFBin = "ocrmypdf"
	}
	if opts.GhostscriptBin == "" {
		opts.GhostscriptBin = "gs"
	}
	return &Service{langs: langs, exec: exec, opts: opts}
}

// Languages lists the OCR languages installed on this host.
func (s *Service) Languages() ([]string, error) {
	return s.langs.Available()
}

// Prepare validates req and narrows its languages to the installed ones.
// It runs no external process and creates no files.
func (s *Service) Prepare(req Request) (Request, error) {
	if err := req.Validate(); err != nil {
		return req, err
	}

	langs, err := s.langs.Filter(req.Languages)
	if err != nil {
		return req, err
	}
	if len(langs) == 0 {
		return req, invalid("None of the selected languages are valid.")
	}

	req.Languages = langs
	return req, nil
}

// Process runs OCR over input and returns the processed PDF, or a zip with
// the PDF and its transcript when req.Sidecar is set. All temporary files are
// removed before it returns.
func (s *Service) Process(ctx context.Context, req Request, input io.Reader) (*Result, error) {
	req, err := s.Prepare(req)
	if err != nil {
		return nil, err
	}

	ws, err := os.MkdirTemp(s.opts.TempDir, "ocr-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	defer removeWorkspace(ws)

	inputPath, err := stageInput(ws, input)
	if err != nil {
		return nil, err
	}

	pages, err := InspectPDF(inputPath)
	if err != nil {
		slog.Warn("could not inspect upload", "filename", req.Filename, "error", err)
	}

	outputPath, err := reservePath(ws, "output_*.pdf")
	if err != nil {
		return nil, err
	}

	var sidecarPath string
	if req.Sidecar {
		if sidecarPath, err = reservePath(ws, "sidecar*.txt"); err != nil {
			return nil, err
		}
	}

	cmd := BuildCommand(s.opts.OCRmyPDFBin, req, CommandPaths{
		Input:   inputPath,
		Output:  outputPath,
		Sidecar: sidecarPath,
	})

	start := time.Now()
	if err := s.runOCR(ctx, cmd); err != nil {
		return nil, err
	}
	slog.Info("ocr finished",
		"filename", req.Filename,
		"languages", req.Languages,
		"pages", pages,
		"duration", time.Since(start),
	)

	if err := os.Remove(inputPath); err != nil {
		slog.Warn("failed to remove staged input", "path", inputPath, "error", err)
	}

	finalPath := outputPath
	if req.RemoveImagesAfter {
		if finalPath, err = s.stripImages(ctx, ws, outputPath); err != nil {
			return nil, err
		}
	}

	var res *Result
	if req.Sidecar {
		res, err = zipResult(req.Filename, finalPath, sidecarPath)
	} else {
		res, err = pdfResult(req.Filename, finalPath)
	}
	if err != nil {
		return nil, err
	}
	res.Pages = pages
	return res, nil
}

// runOCR executes cmd, retrying once with a single worker when ocrmypdf
// trips over missing POSIX semaphore support.
func (s *Service) runOCR(ctx context.Context, cmd []string) error {
	res, err := s.exec.Run(ctx, CategoryOCRmyPDF, cmd)
	if err != nil {
		return fmt.Errorf("run ocrmypdf: %w", err)
	}

	if needsSingleJobRetry(res) {
		slog.Warn("ocrmypdf cannot use multiprocessing here, retrying with --jobs 1")
		res, err = s.exec.Run(ctx, CategoryOCRmyPDF, withSingleJob(cmd))
		if err != nil {
			return fmt.Errorf("run ocrmypdf: %w", err)
		}
	}

	return s.checkExit("ocrmypdf", res)
}

func (s *Service) stripImages(ctx context.Context, ws, pdfPath string) (string, error) {
	out, err := reservePath(ws, "output_*_no_images.pdf")
	if err != nil {
		return "", err
	}

	res, err := s.exec.Run(ctx, CategoryGhostscript, BuildImageStripCommand(s.opts.GhostscriptBin, pdfPath, out))
	if err != nil {
		return "", fmt.Errorf("run ghostscript: %w", err)
	}
	if err := s.checkExit("ghostscript", res); err != nil {
		return "", err
	}
	return out, nil
}

func (s *Service) checkExit(tool string, res *ProcessResult) error {
	if res.ExitCode == 0 {
		return nil
	}
	if s.opts.TolerateToolFailures {
		slog.Warn("tool failed, continuing with existing output", "tool", tool, "exit_code", res.ExitCode, "output", res.Output)
		return nil
	}
	return &ProcessError{Tool: tool, ExitCode: res.ExitCode, Output: res.Output}
}

func stageInput(ws string, input io.Reader) (string, error) {
	f, err := os.CreateTemp(ws, "input_*.pdf")
	if err != nil {
		return "", fmt.Errorf("create staged input: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, input); err != nil {
		return "", fmt.Errorf("copy upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close staged input: %w", err)
	}
	return f.Name(), nil
}

// reservePath creates an empty file so the name is owned by this request.
func reservePath(ws, pattern string) (string, error) {
	f, err := os.CreateTemp(ws, pattern)
	if err != nil {
		return "", fmt.Errorf("create temp file %s: %w", filepath.Join(ws, pattern), err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), nil
}

func removeWorkspace(ws string) {
	if err := os.RemoveAll(ws); err != nil {
		slog.Warn("failed to remove OCR workspace", "path", ws, "error", err)
	}
}
