package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskEstimatesExpire moves pending estimates past their validity to expired.
	TaskEstimatesExpire = "estimates:expire"
	// TaskLedgerIntegrity folds every invoice ledger and reports law violations.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskReceiptIssued hands a completed receipt to printing and e-mail.
	TaskReceiptIssued = "receipts:issued"
	// TaskIdempotencyCleanup drops idempotency keys past their retention.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// EstimatesExpirePayload optionally pins the reference date; zero means now.
type EstimatesExpirePayload struct {
	AsOf time.Time `json:"as_of,omitempty"`
}

// LedgerIntegrityPayload bounds one integrity run.
type LedgerIntegrityPayload struct {
	BatchSize int `json:"batch_size,omitempty"`
}

// IdempotencyCleanupPayload sets how long processed keys are kept.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// ReceiptIssuedPayload identifies an issued receipt.
type ReceiptIssuedPayload struct {
	ReceiptID     int64  `json:"receipt_id"`
	ReceiptNumber string `json:"receipt_number"`
	CustomerID    int64  `json:"customer_id"`
	InvoiceID     int64  `json:"invoice_id,omitempty"`
	EditID        string `json:"edit_id,omitempty"`
	Total         string `json:"total"`
}

// NewEstimatesExpireTask constructs the expiry task.
func NewEstimatesExpireTask(payload EstimatesExpirePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEstimatesExpire, data), nil
}

// NewLedgerIntegrityTask constructs the integrity scan task.
func NewLedgerIntegrityTask(payload LedgerIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// NewReceiptIssuedTask constructs the receipt hand-off task. The receipt
// number doubles as task id so a receipt is queued at most once.
func NewReceiptIssuedTask(payload ReceiptIssuedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReceiptIssued, data, asynq.TaskID("receipt:"+payload.ReceiptNumber), asynq.MaxRetry(5)), nil
}

// NewIdempotencyCleanupTask constructs the key retention task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
