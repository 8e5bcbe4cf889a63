package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// OverdueMarker is implemented by the invoice service.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
}

// OverdueScanJob walks unpaid invoices past their due date and flags them.
// A redis lock keeps concurrent workers from double-scanning.
type OverdueScanJob struct {
	Invoices OverdueMarker
	Redis    *redis.Client
	Logger   *slog.Logger
	clock    func() time.Time
}

// NewOverdueScanJob initialises the overdue scan handler.
func NewOverdueScanJob(invoices OverdueMarker, rdb *redis.Client, logger *slog.Logger) *OverdueScanJob {
	return &OverdueScanJob{
		Invoices: invoices,
		Redis:    rdb,
		Logger:   logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

const overdueLockKey = "jobs:invoice_overdue_scan:lock"

// Handle executes the overdue scan.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Invoices == nil {
		return errors.New("overdue scan: handler not configured")
	}
	var payload OverdueScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.GraceDays < 0 {
		payload.GraceDays = 0
	}

	if j.Redis != nil {
		ok, err := j.Redis.SetNX(ctx, overdueLockKey, j.now().Format(time.RFC3339), 10*time.Minute).Result()
		if err != nil {
			return err
		}
		if !ok {
			j.logger().Info("overdue scan already running, skipping")
			return nil
		}
		defer j.Redis.Del(context.WithoutCancel(ctx), overdueLockKey)
	}

	start := j.now()
	cutoff := start.AddDate(0, 0, -payload.GraceDays)
	j.logger().Info("starting overdue scan", slog.Time("cutoff", cutoff))

	marked, err := j.Invoices.MarkOverdue(ctx, cutoff)
	if err != nil {
		j.logger().Error("overdue scan failed", slog.Any("error", err), slog.Int("marked", marked))
		return err
	}
	j.logger().Info("completed overdue scan",
		slog.Int("marked", marked),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *OverdueScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *OverdueScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
