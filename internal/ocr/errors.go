package ocr

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest is matched by every validation failure. Callers map it to a
// client error.
var ErrInvalidRequest = errors.New("invalid OCR request")

// ErrLanguageDataUnavailable means the tessdata directory could not be listed.
var ErrLanguageDataUnavailable = errors.New("OCR language data unavailable")

// InvalidRequestError carries the user-facing reason a request was rejected.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string { return e.Reason }

func (e *InvalidRequestError) Is(target error) bool { return target == ErrInvalidRequest }

func invalid(reason string) error {
	return &InvalidRequestError{Reason: reason}
}

// ProcessError reports a non-zero exit from an external tool along with
// everything it printed.
type ProcessError struct {
	Tool     string
	ExitCode int
	Output   string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
}
