package ocr

import (
	"slices"
	"strings"
)

const (
	multiprocessingMarker = "multiprocessing/synchronize.py"
	enosysMarker          = "Function not implemented"
)

// CommandPaths are the files an ocrmypdf run reads and writes. Sidecar is
// empty when no transcript was requested.
type CommandPaths struct {
	Input   string
	Output  string
	Sidecar string
}

// BuildCommand returns the ocrmypdf argv for req. The argument order is what
// ocrmypdf expects and must not change.
func BuildCommand(bin string, req Request, paths CommandPaths) []string {
	cmd := []string{bin, "--verbose", "2", "--output-type", "pdf", "--pdf-renderer", string(req.RenderType)}

	if req.Sidecar {
		cmd = append(cmd, "--sidecar", paths.Sidecar)
	}
	if req.Deskew {
		cmd = append(cmd, "--deskew")
	}
	if req.Clean {
		cmd = append(cmd, "--clean")
	}
	if req.CleanFinal {
		cmd = append(cmd, "--clean-final")
	}
	if flag := req.OCRType.modeFlag(); flag != "" {
		cmd = append(cmd, flag)
	}

	return append(cmd, "--language", strings.Join(req.Languages, "+"), paths.Input, paths.Output)
}

// withSingleJob returns a copy of cmd that forces ocrmypdf to one worker process.
func withSingleJob(cmd []string) []string {
	return append(slices.Clone(cmd), "--jobs", "1")
}

// needsSingleJobRetry reports whether res is the failure ocrmypdf produces on
// hosts without POSIX semaphores.
func needsSingleJobRetry(res *ProcessResult) bool {
	return res.ExitCode != 0 &&
		strings.Contains(res.Output, multiprocessingMarker) &&
		strings.Contains(res.Output, enosysMarker)
}

// BuildImageStripCommand returns the Ghostscript argv that rewrites input
// into output with embedded images filtered out.
func BuildImageStripCommand(bin, input, output string) []string {
	return []string{bin, "-sDEVICE=pdfwrite", "-dFILTERIMAGE", "-o", output, input}
}
