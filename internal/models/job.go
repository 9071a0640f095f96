package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/pdfocr/internal/ocr"
)

type OCRJob struct {
	ID                uuid.UUID   `json:"id" db:"id"`
	Status            string      `json:"status" db:"status"`
	Filename          string      `json:"filename" db:"filename"`
	Options           ocr.Request `json:"options" db:"options"`
	InputPath         string      `json:"-" db:"input_path"`
	ResultPath        string      `json:"-" db:"result_path"`
	ResultFilename    string      `json:"result_filename,omitempty" db:"result_filename"`
	ResultContentType string      `json:"result_content_type,omitempty" db:"result_content_type"`
	Pages             int         `json:"pages,omitempty" db:"pages"`
	Attempts          int         `json:"attempts" db:"attempts"`
	Error             string      `json:"error,omitempty" db:"error"`
	CallbackURL       string      `json:"callback_url,omitempty" db:"callback_url"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at" db:"updated_at"`
	CompletedAt       *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
}

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)
