package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/pdfocr/internal/config"
)

type Client struct {
	client   *asynq.Client
	maxRetry int
	timeout  time.Duration
}

func NewClient(cfg config.RedisConfig, worker config.WorkerConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		maxRetry: worker.MaxRetry,
		timeout:  worker.JobTimeout,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) EnqueueOCRProcess(ctx context.Context, payload OCRProcessPayload) error {
	return c.enqueue(ctx, TypeOCRProcess, payload,
		asynq.MaxRetry(c.maxRetry),
		asynq.Timeout(c.timeout),
		asynq.TaskID(payload.JobID),
		asynq.Queue(QueueOCR),
	)
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	_, err = c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
