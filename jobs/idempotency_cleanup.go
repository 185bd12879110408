package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
)

const defaultIdempotencyRetention = 72 * time.Hour

// IdempotencyCleaner is implemented by shared.IdempotencyStore.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyCleanupJob removes expired Idempotency-Key records.
type IdempotencyCleanupJob struct {
	Store   IdempotencyCleaner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

func NewIdempotencyCleanupJob(store IdempotencyCleaner, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdempotencyCleanupJob{Store: store, Logger: logger, Metrics: metrics}
}

func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload IdempotencyCleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("idempotency cleanup payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	retention := payload.Retention
	if retention <= 0 {
		retention = defaultIdempotencyRetention
	}

	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	defer func() {
		err = tracker.End(err)
	}()

	if err := j.Store.Cleanup(ctx, retention); err != nil {
		j.Logger.Error("idempotency cleanup failed", slog.Any("error", err))
		return err
	}
	j.Logger.Info("idempotency cleanup completed", slog.Duration("retention", retention))
	return nil
}
