package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/procura-erp/procura/internal/shared"
)

// CleanupJob prunes expired idempotency keys.
type CleanupJob struct {
	Store  *shared.IdempotencyStore
	Logger *slog.Logger
}

// NewCleanupJob initialises the cleanup handler.
func NewCleanupJob(store *shared.IdempotencyStore, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{Store: store, Logger: logger}
}

// Handle deletes keys older than the configured window.
func (j *CleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("cleanup: handler not configured")
	}
	var payload CleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.OlderThanHours <= 0 {
		payload.OlderThanHours = 48
	}

	start := time.Now()
	removed, err := j.Store.Cleanup(ctx, time.Duration(payload.OlderThanHours)*time.Hour)
	if err != nil {
		j.logger().Error("idempotency cleanup failed", slog.Any("error", err))
		return err
	}
	j.logger().Info("completed idempotency cleanup",
		slog.Int64("removed", removed),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *CleanupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
