package queue

const TypeOCRProcess = "ocr:process"

// QueueOCR is the asynq queue OCR tasks are enqueued on and served from.
const QueueOCR = "ocr"

type OCRProcessPayload struct {
	JobID string `json:"job_id"`
}
