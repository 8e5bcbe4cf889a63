package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReindexJob refreshes the procurement spend rollup used by list dashboards.
type ReindexJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
}

// NewReindexJob initialises the reindex handler.
func NewReindexJob(pool *pgxpool.Pool, logger *slog.Logger) *ReindexJob {
	return &ReindexJob{Pool: pool, Logger: logger}
}

// Handle rebuilds the supplier spend rollup from the document tables.
func (j *ReindexJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("reindex: handler not configured")
	}
	var payload ReindexPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := time.Now()
	const query = `INSERT INTO supplier_spend_rollup (supplier_id, supplier_name, po_count, po_total, invoice_total, refreshed_at)
SELECT po.supplier_id,
       MAX(po.supplier_name),
       COUNT(DISTINCT po.id),
       COALESCE(SUM(po.grand_total), 0),
       COALESCE((SELECT SUM(inv.grand_total) FROM invoices inv WHERE inv.supplier_id = po.supplier_id AND inv.status NOT IN ('CANCELLED','REJECTED')), 0),
       NOW()
FROM purchase_orders po
WHERE po.status NOT IN ('CANCELLED','REJECTED')
GROUP BY po.supplier_id
ON CONFLICT (supplier_id) DO UPDATE SET
  supplier_name = EXCLUDED.supplier_name,
  po_count = EXCLUDED.po_count,
  po_total = EXCLUDED.po_total,
  invoice_total = EXCLUDED.invoice_total,
  refreshed_at = EXCLUDED.refreshed_at`
	tag, err := j.Pool.Exec(ctx, query)
	if err != nil {
		j.logger().Error("reindex failed", slog.Any("error", err))
		return err
	}
	j.logger().Info("completed procurement reindex",
		slog.Int64("suppliers", tag.RowsAffected()),
		slog.Bool("force", payload.Force),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *ReindexJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
