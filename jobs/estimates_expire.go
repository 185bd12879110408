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

// EstimateExpirer is implemented by estimates.Service.
type EstimateExpirer interface {
	ExpireEstimates(ctx context.Context, asOf time.Time) (int, error)
}

// EstimateExpiryJob expires pending estimates whose validity has ended.
type EstimateExpiryJob struct {
	Expirer EstimateExpirer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

func NewEstimateExpiryJob(expirer EstimateExpirer, logger *slog.Logger, metrics *jobmetrics.Metrics) *EstimateExpiryJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &EstimateExpiryJob{
		Expirer: expirer,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one expiry pass.
func (j *EstimateExpiryJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Expirer == nil {
		return errors.New("estimates expire: handler not configured")
	}
	var payload EstimatesExpirePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("estimates expire payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = j.clock()
	}

	tracker := j.Metrics.Track(TaskEstimatesExpire)
	defer func() {
		err = tracker.End(err)
	}()

	count, err := j.Expirer.ExpireEstimates(ctx, asOf)
	if err != nil {
		j.Logger.Error("estimate expiry failed", slog.Any("error", err))
		return err
	}
	j.Metrics.AddProcessed(TaskEstimatesExpire, count)
	j.Logger.Info("estimate expiry completed",
		slog.String("job", TaskEstimatesExpire),
		slog.Time("as_of", asOf),
		slog.Int("expired", count))
	return nil
}
