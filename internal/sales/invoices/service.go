package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/sales/numbering"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
	core "github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Repository persists invoices and their ledgers.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Invoice, error)
	List(ctx context.Context, filter ListFilter) ([]Invoice, int, error)
	ListEdits(ctx context.Context, invoiceID int64) ([]InvoiceEdit, error)
	GetEdit(ctx context.Context, invoiceID int64, editID uuid.UUID) (InvoiceEdit, error)
}

// TxRepository exposes the write operations available inside a transaction.
type TxRepository interface {
	// Insert stores a new invoice and returns its id. A reference collision
	// must be reported as numbering.ErrDuplicateReference.
	Insert(ctx context.Context, inv Invoice) (int64, error)
	// Get reads the invoice within the transaction's snapshot.
	Get(ctx context.Context, id int64) (Invoice, error)
	// GetForUpdate loads and row-locks the invoice for the rest of the transaction.
	GetForUpdate(ctx context.Context, id int64) (Invoice, error)
	// ListEditsThrough returns the ledger entries with seq <= lastSeq.
	ListEditsThrough(ctx context.Context, invoiceID int64, lastSeq int) ([]InvoiceEdit, error)
	InsertEdit(ctx context.Context, edit InvoiceEdit) error
	UpdateCurrent(ctx context.Context, inv Invoice) error
}

// AuditRecorder receives an entry for every ledger change.
type AuditRecorder interface {
	Record(ctx context.Context, log core.AuditLog) error
}

// Metrics observes ledger activity.
type Metrics interface {
	ObserveDocumentCreated(docType, status string)
	ObserveEditAppended(status string)
	ObserveDepositRejected()
}

// Service implements invoice creation and the edit ledger.
type Service struct {
	repo    Repository
	numbers *numbering.Generator
	policy  shared.DepositPolicy
	logger  *slog.Logger
	audit   AuditRecorder
	metrics Metrics
	now     func() time.Time
	newID   func() uuid.UUID
}

// NewService wires the invoice service.
func NewService(repo Repository, numbers *numbering.Generator, policy shared.DepositPolicy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		numbers: numbers,
		policy:  policy,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.New,
	}
}

// WithAudit attaches an audit recorder.
func (s *Service) WithAudit(audit AuditRecorder) *Service {
	s.audit = audit
	return s
}

// WithMetrics attaches ledger metrics.
func (s *Service) WithMetrics(metrics Metrics) *Service {
	s.metrics = metrics
	return s
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Policy returns the deposit policy in force.
func (s *Service) Policy() shared.DepositPolicy {
	return s.policy
}

// CreateInvoice validates the request, allocates a reference and persists the invoice.
func (s *Service) CreateInvoice(ctx context.Context, in NewInvoice) (Invoice, error) {
	now := s.now()
	inv, err := PlanInvoice(in, s.policy, now)
	if err != nil {
		s.observeRejection(err)
		return Invoice{}, err
	}

	_, err = s.numbers.Assign(ctx, numbering.DocumentInvoice, now.Year(), func(ctx context.Context, ref string) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			inv.Reference = ref
			id, err := tx.Insert(ctx, inv)
			if err != nil {
				return err
			}
			inv.ID = id
			return nil
		})
	})
	if err != nil {
		return Invoice{}, fmt.Errorf("create invoice: %w", err)
	}

	s.logger.Info("invoice created",
		slog.Int64("invoice_id", inv.ID),
		slog.String("reference", inv.Reference),
		slog.String("status", string(inv.Status)),
		slog.String("total", shared.FormatAmount(inv.Summary.Total)))
	if s.metrics != nil {
		s.metrics.ObserveDocumentCreated(string(numbering.DocumentInvoice), string(inv.Status))
	}
	s.record(ctx, "invoice.created", inv.ID, map[string]any{
		"reference": inv.Reference,
		"status":    inv.Status,
		"total":     shared.FormatAmount(inv.Summary.Total),
		"deposit":   shared.FormatAmount(inv.Summary.DepositReceived),
	})
	return inv, nil
}

// GetInvoice returns the invoice with its ledger in append order. Both are
// read from one snapshot and the ledger stops at the invoice's LastSeq, so
// the current view always matches the last edit returned.
func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if inv, err = tx.Get(ctx, id); err != nil {
			return err
		}
		inv.Edits, err = tx.ListEditsThrough(ctx, id, inv.LastSeq)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// ListInvoices returns a page of invoices without their ledgers.
func (s *Service) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.BeforeID < 0 {
		filter.BeforeID = 0
	}
	return s.repo.List(ctx, filter)
}

// AppendEdit records one change to an invoice. The guard runs against the
// row-locked current state; on rejection or any storage failure nothing is
// written and the invoice keeps its previous snapshot.
func (s *Service) AppendEdit(ctx context.Context, invoiceID int64, req EditRequest) (InvoiceEdit, error) {
	var (
		edit    InvoiceEdit
		updated Invoice
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		edit, err = PlanEdit(inv, req, s.policy, s.now(), s.newID())
		if err != nil {
			return err
		}
		if err := tx.InsertEdit(ctx, edit); err != nil {
			return fmt.Errorf("insert edit: %w", err)
		}
		updated = Apply(inv, edit)
		if err := tx.UpdateCurrent(ctx, updated); err != nil {
			return fmt.Errorf("update invoice snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		s.observeRejection(err)
		if shared.IsDepositRejected(err) {
			s.logger.Info("deposit rejected",
				slog.Int64("invoice_id", invoiceID),
				slog.String("deposit_added", shared.FormatAmount(req.DepositAdded)),
				slog.String("reason", err.Error()))
		}
		return InvoiceEdit{}, err
	}

	s.logger.Info("invoice edit appended",
		slog.Int64("invoice_id", invoiceID),
		slog.Int("seq", edit.Seq),
		slog.String("edit_id", edit.ID.String()),
		slog.String("deposit_added", shared.FormatAmount(edit.DepositAdded)),
		slog.String("status", string(edit.Status)))
	if s.metrics != nil {
		s.metrics.ObserveEditAppended(string(edit.Status))
	}
	s.record(ctx, "invoice.edit_appended", invoiceID, map[string]any{
		"edit_id":          edit.ID.String(),
		"seq":              edit.Seq,
		"deposit_added":    shared.FormatAmount(edit.DepositAdded),
		"deposit_received": shared.FormatAmount(edit.DepositReceived),
		"balance_due":      shared.FormatAmount(edit.Summary.BalanceDue),
		"status":           edit.Status,
	})
	return edit, nil
}

// Finalize moves a draft invoice to its money-derived status through a
// zero-deposit ledger entry. The draft check runs against the row-locked
// invoice, so concurrent calls append at most one entry.
func (s *Service) Finalize(ctx context.Context, invoiceID int64, note string) (InvoiceEdit, error) {
	if note == "" {
		note = "finalized"
	}
	return s.AppendEdit(ctx, invoiceID, EditRequest{DepositAdded: decimal.Zero, Note: note, RequireDraft: true})
}

// ListEdits returns the ledger of an invoice in append order.
func (s *Service) ListEdits(ctx context.Context, invoiceID int64) ([]InvoiceEdit, error) {
	if _, err := s.repo.Get(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListEdits(ctx, invoiceID)
}

// GetEdit returns one ledger entry.
func (s *Service) GetEdit(ctx context.Context, invoiceID int64, editID uuid.UUID) (InvoiceEdit, error) {
	return s.repo.GetEdit(ctx, invoiceID, editID)
}

// PreviewSummary runs the calculator without persisting anything.
func (s *Service) PreviewSummary(items []shared.LineItem, deposit decimal.Decimal, applyTax bool) (shared.MoneySummary, shared.InvoiceStatus, error) {
	if err := shared.ValidateItems(items); err != nil {
		return shared.MoneySummary{}, "", err
	}
	summary := shared.ComputeSummary(items, deposit, shared.SummaryOptions{ApplyTax: applyTax})
	return summary, shared.DeriveInvoiceStatus(summary), nil
}

// CheckDeposit is the advisory guard used by clients for instant feedback.
// AppendEdit re-runs the same check authoritatively.
func (s *Service) CheckDeposit(projectedBalance, proposedDeposit, existingDeposit decimal.Decimal) shared.DepositDecision {
	return s.policy.Check(projectedBalance, proposedDeposit, existingDeposit)
}

// CheckEditDeposit previews the guard for a prospective edit of an invoice.
// A nil items keeps the current item set.
func (s *Service) CheckEditDeposit(ctx context.Context, invoiceID int64, items []shared.LineItem, depositAdded decimal.Decimal) (shared.DepositDecision, error) {
	inv, err := s.repo.Get(ctx, invoiceID)
	if err != nil {
		return shared.DepositDecision{}, err
	}
	if items == nil {
		items = inv.CurrentItems
	}
	if err := shared.ValidateItems(items); err != nil {
		return shared.DepositDecision{}, err
	}
	existing := inv.Summary.DepositReceived
	projected := shared.ComputeSummary(items, existing, summaryOptions)
	return s.policy.Check(projected.BalanceDue, existing.Add(shared.Round2(depositAdded)), existing), nil
}

// VerifyInvoice folds the stored ledger of one invoice and reports violations.
func (s *Service) VerifyInvoice(ctx context.Context, invoiceID int64) ([]Violation, error) {
	inv, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return VerifyLedger(inv, inv.Edits), nil
}

func (s *Service) observeRejection(err error) {
	if s.metrics != nil && shared.IsDepositRejected(err) {
		s.metrics.ObserveDepositRejected()
	}
}

func (s *Service) record(ctx context.Context, action string, invoiceID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, core.AuditLog{
		Action:   action,
		Entity:   "invoice",
		EntityID: strconv.FormatInt(invoiceID, 10),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
