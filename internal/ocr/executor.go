package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"golang.org/x/sync/semaphore"
)

// Category groups external tools that share an admission limit.
type Category string

const (
	CategoryOCRmyPDF    Category = "ocrmypdf"
	CategoryGhostscript Category = "ghostscript"
)

// ProcessResult is the outcome of a process that ran to completion.
type ProcessResult struct {
	ExitCode int
	Output   string // stdout and stderr interleaved
}

// Executor runs an external command. A non-zero exit is reported through
// ProcessResult; the error is reserved for commands that could not run or
// were cancelled.
type Executor interface {
	Run(ctx context.Context, category Category, argv []string) (*ProcessResult, error)
}

// ExecExecutor runs commands with os/exec, admitting at most a configured
// number of concurrent processes per category.
type ExecExecutor struct {
	limits  map[Category]*semaphore.Weighted
	timeout time.Duration
}

// NewExecExecutor builds an executor. Categories missing from limits are
// unbounded. A zero timeout leaves only the caller's context in charge.
func NewExecExecutor(limits map[Category]int64, timeout time.Duration) *ExecExecutor {
	sems := make(map[Category]*semaphore.Weighted, len(limits))
	for cat, n := range limits {
		if n > 0 {
			sems[cat] = semaphore.NewWeighted(n)
		}
	}
	return &ExecExecutor{limits: sems, timeout: timeout}
}

func (e *ExecExecutor) Run(ctx context.Context, category Category, argv []string) (*ProcessResult, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}

	if sem, ok := e.limits[category]; ok {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("wait for %s slot: %w", category, err)
		}
		defer sem.Release(1)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%s interrupted: %w", argv[0], ctxErr)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
	default:
		return nil, fmt.Errorf("run %s: %w", argv[0], err)
	}

	res := &ProcessResult{ExitCode: cmd.ProcessState.ExitCode(), Output: out.String()}
	slog.Debug("process finished", "category", category, "argv", argv, "exit_code", res.ExitCode, "duration", elapsed)
	return res, nil
}
