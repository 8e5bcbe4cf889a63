package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarker struct {
	cutoffs []time.Time
	marked  int
	err     error
}

func (f *fakeMarker) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	f.cutoffs = append(f.cutoffs, now)
	return f.marked, f.err
}

func newScanJob(t *testing.T, marker *fakeMarker) (*OverdueScanJob, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	job := NewOverdueScanJob(marker, rdb, nil)
	return job, mr
}

func TestOverdueScanAppliesGracePeriod(t *testing.T) {
	marker := &fakeMarker{marked: 3}
	job, _ := newScanJob(t, marker)
	now := time.Date(2025, 8, 1, 2, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return now }

	task, err := NewOverdueScanTask(OverdueScanPayload{GraceDays: 5})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, marker.cutoffs, 1)
	assert.Equal(t, now.AddDate(0, 0, -5), marker.cutoffs[0])
}

func TestOverdueScanSkipsWhenLockHeld(t *testing.T) {
	marker := &fakeMarker{}
	job, mr := newScanJob(t, marker)
	require.NoError(t, mr.Set("jobs:invoice_overdue_scan:lock", "held"))

	task, err := NewOverdueScanTask(OverdueScanPayload{})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	assert.Empty(t, marker.cutoffs)
}

func TestOverdueScanReleasesLock(t *testing.T) {
	marker := &fakeMarker{}
	job, mr := newScanJob(t, marker)

	task, err := NewOverdueScanTask(OverdueScanPayload{})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	assert.False(t, mr.Exists("jobs:invoice_overdue_scan:lock"))
}

func TestOverdueScanPropagatesMarkerError(t *testing.T) {
	marker := &fakeMarker{err: errors.New("db down")}
	job, _ := newScanJob(t, marker)

	task, err := NewOverdueScanTask(OverdueScanPayload{})
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, marker.err)
}

func TestOverdueScanRejectsBadPayload(t *testing.T) {
	marker := &fakeMarker{}
	job, _ := newScanJob(t, marker)

	err := job.Handle(context.Background(), asynq.NewTask(TaskInvoiceOverdueScan, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
