package receipts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-pos/internal/sales/invoices"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/numbering"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
	core "github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Repository persists receipts.
type Repository interface {
	Get(ctx context.Context, id int64) (Receipt, error)
	List(ctx context.Context, filter ListFilter) ([]Receipt, int, error)
	// FindByEdit returns shared.ErrNotFound when no receipt exists for the pair.
	FindByEdit(ctx context.Context, invoiceID int64, editID uuid.UUID) (Receipt, error)
	// InsertFromEdit stores rec unless a receipt for its (invoice, edit) pair
	// exists, in which case the stored receipt is returned with created=false.
	InsertFromEdit(ctx context.Context, rec Receipt) (stored Receipt, created bool, err error)
	Insert(ctx context.Context, rec Receipt) (int64, error)
	// Complete moves a draft receipt to completed; shared.ErrInvalidStatus
	// when the receipt is no longer a draft.
	Complete(ctx context.Context, rec Receipt) error
}

// InvoiceLedger is the read side of the invoice service used here.
type InvoiceLedger interface {
	GetInvoice(ctx context.Context, id int64) (invoices.Invoice, error)
	GetEdit(ctx context.Context, invoiceID int64, editID uuid.UUID) (invoices.InvoiceEdit, error)
}

// Notifier is told about receipts handed to the customer.
type Notifier interface {
	ReceiptIssued(ctx context.Context, rec Receipt) error
}

// AuditRecorder receives an entry for every new receipt.
type AuditRecorder interface {
	Record(ctx context.Context, log core.AuditLog) error
}

// Metrics observes receipt generation outcomes.
type Metrics interface {
	ObserveDocumentCreated(docType, status string)
	ObserveReceiptFromEdit(created bool)
}

// Service issues receipts.
type Service struct {
	repo     Repository
	ledger   InvoiceLedger
	numbers  *numbering.Generator
	logger   *slog.Logger
	notifier Notifier
	audit    AuditRecorder
	metrics  Metrics
	now      func() time.Time
	inflight singleflight.Group
}

// NewService wires the receipt service.
func NewService(repo Repository, ledger InvoiceLedger, numbers *numbering.Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, numbers: numbers, logger: logger, now: time.Now}
}

func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

func (s *Service) WithAudit(a AuditRecorder) *Service {
	s.audit = a
	return s
}

func (s *Service) WithMetrics(m Metrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type generated struct {
	receipt Receipt
	created bool
	claimed *atomic.Bool
}

// GenerateFromEdit returns the receipt for the deposit recorded by an invoice
// edit, creating it on first call. Repeated or concurrent calls for the same
// pair return the same receipt with alreadyExisted=true; the storage unique
// key on (invoice_id, edit_id) backs this across processes.
func (s *Service) GenerateFromEdit(ctx context.Context, invoiceID int64, editID uuid.UUID) (Receipt, bool, error) {
	key := strconv.FormatInt(invoiceID, 10) + ":" + editID.String()
	ch := s.inflight.DoChan(key, func() (any, error) {
		return s.generateFromEdit(context.WithoutCancel(ctx), invoiceID, editID)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return Receipt{}, false, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return Receipt{}, false, res.Err
	}
	out := res.Val.(generated)
	// Callers sharing one flight see the same result; only one of them may
	// report the receipt as new.
	created := out.created && out.claimed.CompareAndSwap(false, true)
	if s.metrics != nil {
		s.metrics.ObserveReceiptFromEdit(created)
	}
	return out.receipt, !created, nil
}

func (s *Service) generateFromEdit(ctx context.Context, invoiceID int64, editID uuid.UUID) (generated, error) {
	existing, err := s.repo.FindByEdit(ctx, invoiceID, editID)
	if err == nil {
		return generated{receipt: existing}, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return generated{}, err
	}

	edit, err := s.ledger.GetEdit(ctx, invoiceID, editID)
	if err != nil {
		return generated{}, err
	}
	if !edit.DepositAdded.IsPositive() {
		return generated{}, shared.ErrNothingToReceipt
	}
	inv, err := s.ledger.GetInvoice(ctx, invoiceID)
	if err != nil {
		return generated{}, err
	}
	now := s.now()
	rec, err := MirrorEdit(inv, edit, now)
	if err != nil {
		return generated{}, err
	}

	var (
		stored  Receipt
		created bool
	)
	_, err = s.numbers.Assign(ctx, numbering.DocumentReceipt, now.Year(), func(ctx context.Context, ref string) error {
		rec.ReceiptNumber = ref
		var err error
		stored, created, err = s.repo.InsertFromEdit(ctx, rec)
		return err
	})
	if err != nil {
		return generated{}, fmt.Errorf("generate receipt: %w", err)
	}
	if !created {
		return generated{receipt: stored}, nil
	}

	s.logger.Info("receipt generated from invoice edit",
		slog.Int64("receipt_id", stored.ID),
		slog.String("receipt_number", stored.ReceiptNumber),
		slog.Int64("invoice_id", invoiceID),
		slog.String("edit_id", editID.String()),
		slog.String("amount", shared.FormatAmount(stored.Summary.Total)))
	if s.metrics != nil {
		s.metrics.ObserveDocumentCreated(string(numbering.DocumentReceipt), string(stored.Status))
	}
	s.issued(ctx, stored)
	return generated{receipt: stored, created: true, claimed: new(atomic.Bool)}, nil
}

// CreateReceipt stores a standalone draft receipt.
func (s *Service) CreateReceipt(ctx context.Context, in NewReceipt) (Receipt, error) {
	now := s.now()
	rec, err := PlanStandalone(in, now)
	if err != nil {
		return Receipt{}, err
	}
	_, err = s.numbers.Assign(ctx, numbering.DocumentReceipt, now.Year(), func(ctx context.Context, ref string) error {
		rec.ReceiptNumber = ref
		id, err := s.repo.Insert(ctx, rec)
		rec.ID = id
		return err
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("create receipt: %w", err)
	}
	s.logger.Info("receipt created",
		slog.Int64("receipt_id", rec.ID),
		slog.String("receipt_number", rec.ReceiptNumber),
		slog.String("total", shared.FormatAmount(rec.Summary.Total)))
	if s.metrics != nil {
		s.metrics.ObserveDocumentCreated(string(numbering.DocumentReceipt), string(rec.Status))
	}
	s.record(ctx, "receipt.created", rec)
	return rec, nil
}

// CompleteReceipt records full payment of a draft receipt and captures the
// customer's signature.
func (s *Service) CompleteReceipt(ctx context.Context, id int64, signature string) (Receipt, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	if !rec.Status.CanTransition(shared.ReceiptStatusCompleted) {
		return Receipt{}, fmt.Errorf("%w: receipt is %s", shared.ErrInvalidStatus, rec.Status)
	}
	now := s.now()
	rec.Summary = shared.ComputeSummary(rec.Items, rec.Summary.Total, standaloneOptions)
	rec.Status = shared.DeriveReceiptStatus(rec.Summary)
	if rec.Status != shared.ReceiptStatusCompleted {
		return Receipt{}, &shared.ValidationError{Field: "items", Message: "receipt total must be positive to complete"}
	}
	if signature != "" {
		rec.Signature = signature
	}
	rec.CompletedAt = &now
	if err := s.repo.Complete(ctx, rec); err != nil {
		return Receipt{}, err
	}
	s.issued(ctx, rec)
	return rec, nil
}

func (s *Service) GetReceipt(ctx context.Context, id int64) (Receipt, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListReceipts(ctx context.Context, filter ListFilter) ([]Receipt, int, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

// issued runs the side effects of a completed receipt reaching the customer.
func (s *Service) issued(ctx context.Context, rec Receipt) {
	s.record(ctx, "receipt.issued", rec)
	if s.notifier == nil {
		return
	}
	if err := s.notifier.ReceiptIssued(ctx, rec); err != nil {
		s.logger.Warn("receipt issued notification failed",
			slog.Int64("receipt_id", rec.ID),
			slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, action string, rec Receipt) {
	if s.audit == nil {
		return
	}
	meta := map[string]any{
		"receipt_number": rec.ReceiptNumber,
		"status":         rec.Status,
		"total":          shared.FormatAmount(rec.Summary.Total),
	}
	if rec.FromEdit() {
		meta["invoice_id"] = *rec.InvoiceID
		meta["edit_id"] = rec.EditID.String()
	}
	err := s.audit.Record(ctx, core.AuditLog{
		Action:   action,
		Entity:   "receipt",
		EntityID: strconv.FormatInt(rec.ID, 10),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
