// Package jobs contains the background task definitions and the Asynq worker
// that runs them.
package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInvoiceOverdueScan flags unpaid invoices past their due date.
	TaskInvoiceOverdueScan = "invoice:overdue_scan"
	// TaskProcurementReindex refreshes the procurement spend rollup.
	TaskProcurementReindex = "procurement:reindex"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// OverdueScanPayload carries options for the overdue scan.
type OverdueScanPayload struct {
	// GraceDays shifts the cutoff back, giving suppliers a settlement window
	// past the literal due date.
	GraceDays int `json:"graceDays"`
}

// NewOverdueScanTask builds an overdue scan task.
func NewOverdueScanTask(payload OverdueScanPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceOverdueScan, body, asynq.Queue(QueueDefault)), nil
}

// ReindexPayload contains options for the reindex job.
type ReindexPayload struct {
	Force bool `json:"force"`
}

// NewReindexTask builds a reindex task.
func NewReindexTask(force bool) (*asynq.Task, error) {
	body, err := json.Marshal(ReindexPayload{Force: force})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProcurementReindex, body, asynq.Queue(QueueDefault)), nil
}

// CleanupPayload contains options for the idempotency cleanup job.
type CleanupPayload struct {
	OlderThanHours int `json:"olderThanHours"`
}

// NewCleanupTask builds an idempotency cleanup task.
func NewCleanupTask(payload CleanupPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// EnqueueOverdueScan enqueues an on-demand overdue scan.
func (c *Client) EnqueueOverdueScan(ctx context.Context, payload OverdueScanPayload) (*asynq.TaskInfo, error) {
	task, err := NewOverdueScanTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// EnqueueReindex enqueues a procurement reindex.
func (c *Client) EnqueueReindex(ctx context.Context, force bool) (*asynq.TaskInfo, error) {
	task, err := NewReindexTask(force)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
