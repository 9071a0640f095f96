package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/pdfocr/internal/config"
	"github.com/nikhilbhutani/pdfocr/internal/models"
)

const (
	EventJobCompleted = "ocr.job.completed"
	EventJobFailed    = "ocr.job.failed"
)

// Event is the JSON body posted to a job's callback URL.
type Event struct {
	Event          string    `json:"event"`
	JobID          uuid.UUID `json:"job_id"`
	Status         string    `json:"status"`
	Filename       string    `json:"filename"`
	ResultFilename string    `json:"result_filename,omitempty"`
	Pages          int       `json:"pages,omitempty"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type DeliveryRequest struct {
	ID      uuid.UUID
	URL     string
	Event   string
	Payload []byte
}

// Dispatcher posts job events in the background. Close waits for queued
// deliveries to finish.
type Dispatcher struct {
	httpClient  *http.Client
	secret      string
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
	deliveries  chan DeliveryRequest
	wg          sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

const defaultTimeout = 10 * time.Second

func NewDispatcher(cfg config.WebhookConfig) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	d := &Dispatcher{
		httpClient:  &http.Client{},
		secret:      cfg.Secret,
		timeout:     timeout,
		maxAttempts: max(cfg.MaxAttempts, 1),
		backoff:     time.Second,
		deliveries:  make(chan DeliveryRequest, 1000),
	}
	d.wg.Add(1)
	go d.processLoop()
	return d
}

// Notify queues event for job when the job has a callback URL.
func (d *Dispatcher) Notify(_ context.Context, event string, job *models.OCRJob) {
	if job.CallbackURL == "" {
		return
	}

	payload, err := json.Marshal(Event{
		Event:          event,
		JobID:          job.ID,
		Status:         job.Status,
		Filename:       job.Filename,
		ResultFilename: job.ResultFilename,
		Pages:          job.Pages,
		Error:          job.Error,
		Timestamp:      time.Now().UTC(),
	})
	if err != nil {
		slog.Error("failed to encode webhook event", "job_id", job.ID, "error", err)
		return
	}

	d.Enqueue(DeliveryRequest{ID: uuid.New(), URL: job.CallbackURL, Event: event, Payload: payload})
}

// Enqueue queues req without blocking. Requests arriving after Close are
// dropped.
func (d *Dispatcher) Enqueue(req DeliveryRequest) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		slog.Warn("webhook dispatcher closed, dropping", "delivery_id", req.ID, "event", req.Event)
		return
	}
	select {
	case d.deliveries <- req:
	default:
		slog.Warn("webhook delivery queue full, dropping", "delivery_id", req.ID, "event", req.Event)
	}
}

func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.deliveries)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) processLoop() {
	defer d.wg.Done()
	for req := range d.deliveries {
		d.deliverWithRetry(req)
	}
}

func (d *Dispatcher) deliverWithRetry(req DeliveryRequest) {
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		status, err := d.deliver(req)
		if err == nil && status < 500 {
			if status >= 400 {
				slog.Warn("webhook rejected", "status", status, "delivery_id", req.ID, "url", req.URL)
			}
			return
		}

		slog.Warn("webhook delivery failed",
			"delivery_id", req.ID,
			"attempt", attempt,
			"status", status,
			"error", err,
		)
		if attempt < d.maxAttempts {
			time.Sleep(d.backoff * time.Duration(attempt))
		}
	}
	slog.Error("webhook delivery abandoned", "delivery_id", req.ID, "url", req.URL, "event", req.Event)
}

func (d *Dispatcher) deliver(req DeliveryRequest) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Payload))
	if err != nil {
		return 0, fmt.Errorf("create webhook request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Webhook-Event", req.Event)
	httpReq.Header.Set("X-Webhook-ID", req.ID.String())
	if d.secret != "" {
		httpReq.Header.Set("X-Webhook-Signature", Sign(req.Payload, d.secret))
	}

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}

// Sign returns the X-Webhook-Signature value for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}
