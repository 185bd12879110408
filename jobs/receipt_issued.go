package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
)

// ReceiptIssuedJob records the hand-off of an issued receipt. Printing and
// e-mail delivery subscribe to the log line and the task stream.
type ReceiptIssuedJob struct {
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

func NewReceiptIssuedJob(logger *slog.Logger, metrics *jobmetrics.Metrics) *ReceiptIssuedJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReceiptIssuedJob{Logger: logger, Metrics: metrics}
}

func (j *ReceiptIssuedJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	var payload ReceiptIssuedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("receipt issued payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.ReceiptNumber == "" {
		return fmt.Errorf("receipt issued payload without receipt number: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskReceiptIssued)
	defer func() {
		err = tracker.End(err)
	}()

	attrs := []any{
		slog.Int64("receipt_id", payload.ReceiptID),
		slog.String("receipt_number", payload.ReceiptNumber),
		slog.Int64("customer_id", payload.CustomerID),
		slog.String("total", payload.Total),
	}
	if payload.InvoiceID > 0 {
		attrs = append(attrs, slog.Int64("invoice_id", payload.InvoiceID), slog.String("edit_id", payload.EditID))
	}
	j.Logger.InfoContext(ctx, "receipt issued", attrs...)
	j.Metrics.AddProcessed(TaskReceiptIssued, 1)
	return nil
}
