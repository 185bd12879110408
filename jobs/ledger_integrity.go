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
	"github.com/odyssey-erp/odyssey-pos/internal/sales/invoices"
)

const defaultIntegrityBatch = 200

// LedgerSource pages through invoices and verifies their ledgers; satisfied
// by invoices.Service.
type LedgerSource interface {
	ListInvoices(ctx context.Context, filter invoices.ListFilter) ([]invoices.Invoice, int, error)
	VerifyInvoice(ctx context.Context, invoiceID int64) ([]invoices.Violation, error)
}

// ViolationRecorder counts violations per law.
type ViolationRecorder interface {
	AddLedgerViolations(law string, count int)
}

// LedgerIntegrityJob re-folds every invoice ledger and reports invoices whose
// stored view disagrees with their edits.
type LedgerIntegrityJob struct {
	Source     LedgerSource
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	Violations ViolationRecorder
}

func NewLedgerIntegrityJob(source LedgerSource, logger *slog.Logger, metrics *jobmetrics.Metrics, violations ViolationRecorder) *LedgerIntegrityJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerIntegrityJob{Source: source, Logger: logger, Metrics: metrics, Violations: violations}
}

// IntegrityReport summarises one run.
type IntegrityReport struct {
	Scanned    int
	Violations []invoices.Violation
}

// Handle executes the integrity scan as an asynq task.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Source == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("ledger integrity payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	tracker := j.Metrics.Track(TaskLedgerIntegrity)
	defer func() {
		err = tracker.End(err)
	}()

	start := time.Now()
	report, err := j.Run(ctx, payload.BatchSize)
	if err != nil {
		j.Logger.Error("ledger integrity scan failed", slog.Int("scanned", report.Scanned), slog.Any("error", err))
		return err
	}
	j.Logger.Info("ledger integrity scan completed",
		slog.String("job", TaskLedgerIntegrity),
		slog.Int("scanned", report.Scanned),
		slog.Int("violations", len(report.Violations)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Run verifies all invoices in batches, newest first, paging by id so that
// invoices created during the scan never shift a page. Violations are logged and counted but
// do not fail the run; a broken ledger needs a human, not a retry.
func (j *LedgerIntegrityJob) Run(ctx context.Context, batch int) (IntegrityReport, error) {
	if batch <= 0 || batch > 200 {
		batch = defaultIntegrityBatch
	}
	var report IntegrityReport
	perLaw := make(map[invoices.Law]int)
	var before int64
	for {
		page, _, err := j.Source.ListInvoices(ctx, invoices.ListFilter{Limit: batch, BeforeID: before})
		if err != nil {
			return report, fmt.Errorf("list invoices before id %d: %w", before, err)
		}
		for _, inv := range page {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			violations, err := j.Source.VerifyInvoice(ctx, inv.ID)
			if err != nil {
				return report, fmt.Errorf("verify invoice %s: %w", inv.Reference, err)
			}
			report.Scanned++
			for _, v := range violations {
				j.Logger.Warn("invoice ledger violation",
					slog.Int64("invoice_id", v.InvoiceID),
					slog.String("reference", inv.Reference),
					slog.Int("seq", v.Seq),
					slog.String("law", string(v.Law)),
					slog.String("detail", v.Detail))
				perLaw[v.Law]++
			}
			report.Violations = append(report.Violations, violations...)
		}
		if len(page) < batch {
			break
		}
		before = page[len(page)-1].ID
	}
	if j.Violations != nil {
		for law, count := range perLaw {
			j.Violations.AddLedgerViolations(string(law), count)
		}
	}
	j.Metrics.AddProcessed(TaskLedgerIntegrity, report.Scanned)
	return report, nil
}
