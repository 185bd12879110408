package returns

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/sales/invoices"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/numbering"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
	core "github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Repository persists credit notes and refunds. Updates and status changes
// only touch DRAFT rows and return shared.ErrImmutable otherwise.
type Repository interface {
	// WithTx runs fn in one transaction; LockCreditNote inside it holds the
	// note until commit.
	WithTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error

	GetCreditNote(ctx context.Context, id int64) (CreditNote, error)
	LockCreditNote(ctx context.Context, id int64) (CreditNote, error)
	ListCreditNotes(ctx context.Context, filter ListFilter) ([]CreditNote, int, error)
	InsertCreditNote(ctx context.Context, note CreditNote) (int64, error)
	UpdateCreditNote(ctx context.Context, note CreditNote) error
	ApproveCreditNote(ctx context.Context, note CreditNote) error

	GetRefund(ctx context.Context, id int64) (Refund, error)
	ListRefunds(ctx context.Context, filter ListFilter) ([]Refund, int, error)
	InsertRefund(ctx context.Context, refund Refund) (int64, error)
	UpdateRefund(ctx context.Context, refund Refund) error
	MarkRefunded(ctx context.Context, refund Refund) error
	// RefundedTotal sums refunds against the note, skipping excludeID.
	RefundedTotal(ctx context.Context, creditNoteID, excludeID int64) (decimal.Decimal, error)
}

type InvoiceReader interface {
	GetInvoice(ctx context.Context, id int64) (invoices.Invoice, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, log core.AuditLog) error
}

type Metrics interface {
	ObserveDocumentCreated(docType, status string)
}

type Service struct {
	repo     Repository
	invoices InvoiceReader
	numbers  *numbering.Generator
	logger   *slog.Logger
	audit    AuditRecorder
	metrics  Metrics
	now      func() time.Time
}

func NewService(repo Repository, invoices InvoiceReader, numbers *numbering.Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, invoices: invoices, numbers: numbers, logger: logger, now: time.Now}
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

func (s *Service) CreateCreditNote(ctx context.Context, in NewCreditNote) (CreditNote, error) {
	var inv *invoices.Invoice
	if in.Source == CreditNoteFromInvoice && in.InvoiceID != nil {
		found, err := s.invoices.GetInvoice(ctx, *in.InvoiceID)
		if err != nil {
			return CreditNote{}, fmt.Errorf("credited invoice: %w", err)
		}
		inv = &found
	}
	now := s.now()
	note, err := PlanCreditNote(in, inv, now)
	if err != nil {
		return CreditNote{}, err
	}
	_, err = s.numbers.Assign(ctx, numbering.DocumentCreditNote, now.Year(), func(ctx context.Context, ref string) error {
		note.Reference = ref
		id, err := s.repo.InsertCreditNote(ctx, note)
		note.ID = id
		return err
	})
	if err != nil {
		return CreditNote{}, fmt.Errorf("create credit note: %w", err)
	}
	s.logger.Info("credit note created",
		slog.Int64("credit_note_id", note.ID),
		slog.String("reference", note.Reference),
		slog.String("source", string(note.Source)),
		slog.String("total", shared.FormatAmount(note.Summary.Total)))
	s.created(ctx, numbering.DocumentCreditNote, note.ID, string(note.Status), note.Reference)
	return note, nil
}

func (s *Service) UpdateCreditNote(ctx context.Context, id int64, upd DraftUpdate) (CreditNote, error) {
	note, err := s.repo.GetCreditNote(ctx, id)
	if err != nil {
		return CreditNote{}, err
	}
	if note.Status.Final() {
		return CreditNote{}, fmt.Errorf("credit note %s: %w", note.Reference, shared.ErrImmutable)
	}
	if note.Items, note.Summary, err = applyItems(note.Items, upd); err != nil {
		return CreditNote{}, err
	}
	if note.InvoiceID != nil && upd.Items != nil {
		inv, err := s.invoices.GetInvoice(ctx, *note.InvoiceID)
		if err != nil {
			return CreditNote{}, fmt.Errorf("credited invoice: %w", err)
		}
		if note.Summary.Total.GreaterThan(inv.Summary.Total) {
			return CreditNote{}, &shared.ValidationError{
				Field:   "items",
				Message: fmt.Sprintf("credit of %s exceeds invoice total %s", shared.FormatAmount(note.Summary.Total), shared.FormatAmount(inv.Summary.Total)),
			}
		}
	}
	if upd.Signature != nil {
		note.Signature = *upd.Signature
	}
	if upd.Reason != nil {
		note.Reason = *upd.Reason
	}
	note.UpdatedAt = s.now()
	if err := s.repo.UpdateCreditNote(ctx, note); err != nil {
		return CreditNote{}, err
	}
	return note, nil
}

// ApproveCreditNote finalises a draft note; signature, when given, replaces
// the stored one.
func (s *Service) ApproveCreditNote(ctx context.Context, id int64, signature string) (CreditNote, error) {
	note, err := s.repo.GetCreditNote(ctx, id)
	if err != nil {
		return CreditNote{}, err
	}
	if note.Status.Final() {
		return CreditNote{}, fmt.Errorf("credit note %s: %w", note.Reference, shared.ErrImmutable)
	}
	now := s.now()
	if signature != "" {
		note.Signature = signature
	}
	note.Status = shared.CreditNoteStatusApproved
	note.ApprovedAt = &now
	note.UpdatedAt = now
	if err := s.repo.ApproveCreditNote(ctx, note); err != nil {
		return CreditNote{}, err
	}
	s.logger.Info("credit note approved", slog.Int64("credit_note_id", id), slog.String("reference", note.Reference))
	s.record(ctx, "credit_note.approved", "credit_note", id, map[string]any{"reference": note.Reference})
	return note, nil
}

func (s *Service) GetCreditNote(ctx context.Context, id int64) (CreditNote, error) {
	return s.repo.GetCreditNote(ctx, id)
}

func (s *Service) ListCreditNotes(ctx context.Context, filter ListFilter) ([]CreditNote, int, error) {
	return s.repo.ListCreditNotes(ctx, clampFilter(filter))
}

// CreateRefund stores a draft refund. A refund from a credit note is planned
// once up front and again under the note's lock, so invalid input never
// consumes a reference and concurrent refunds cannot exceed the note total.
func (s *Service) CreateRefund(ctx context.Context, in NewRefund) (Refund, error) {
	now := s.now()
	if _, err := s.planRefund(ctx, s.repo, in, now, false); err != nil {
		return Refund{}, err
	}
	var refund Refund
	_, err := s.numbers.Assign(ctx, numbering.DocumentRefund, now.Year(), func(ctx context.Context, ref string) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
			planned, err := s.planRefund(ctx, repo, in, now, true)
			if err != nil {
				return err
			}
			planned.Reference = ref
			if planned.ID, err = repo.InsertRefund(ctx, planned); err != nil {
				return err
			}
			refund = planned
			return nil
		})
	})
	if err != nil {
		return Refund{}, fmt.Errorf("create refund: %w", err)
	}
	s.logger.Info("refund created",
		slog.Int64("refund_id", refund.ID),
		slog.String("reference", refund.Reference),
		slog.String("source", string(refund.Source)),
		slog.String("total", shared.FormatAmount(refund.Summary.Total)))
	s.created(ctx, numbering.DocumentRefund, refund.ID, string(refund.Status), refund.Reference)
	return refund, nil
}

func (s *Service) planRefund(ctx context.Context, repo Repository, in NewRefund, now time.Time, lock bool) (Refund, error) {
	var (
		note     *CreditNote
		refunded decimal.Decimal
	)
	if in.Source == RefundFromCreditNote && in.CreditNoteID != nil {
		read := repo.GetCreditNote
		if lock {
			read = repo.LockCreditNote
		}
		found, err := read(ctx, *in.CreditNoteID)
		if err != nil {
			return Refund{}, fmt.Errorf("credit note: %w", err)
		}
		if refunded, err = repo.RefundedTotal(ctx, found.ID, 0); err != nil {
			return Refund{}, err
		}
		note = &found
	}
	return PlanRefund(in, note, refunded, now)
}

func (s *Service) UpdateRefund(ctx context.Context, id int64, upd DraftUpdate) (Refund, error) {
	var refund Refund
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		current, err := repo.GetRefund(ctx, id)
		if err != nil {
			return err
		}
		if current.Status.Final() {
			return fmt.Errorf("refund %s: %w", current.Reference, shared.ErrImmutable)
		}
		if current.Items, current.Summary, err = applyItems(current.Items, upd); err != nil {
			return err
		}
		if current.CreditNoteID != nil && upd.Items != nil {
			note, err := repo.LockCreditNote(ctx, *current.CreditNoteID)
			if err != nil {
				return err
			}
			refunded, err := repo.RefundedTotal(ctx, note.ID, current.ID)
			if err != nil {
				return err
			}
			if remaining := note.Summary.Total.Sub(refunded); current.Summary.Total.GreaterThan(remaining) {
				return &shared.ValidationError{
					Field:   "items",
					Message: fmt.Sprintf("refund of %s exceeds %s remaining on credit note %s", shared.FormatAmount(current.Summary.Total), shared.FormatAmount(remaining), note.Reference),
				}
			}
		}
		if upd.Signature != nil {
			current.Signature = *upd.Signature
		}
		if upd.Reason != nil {
			current.Reason = *upd.Reason
		}
		current.UpdatedAt = s.now()
		if err := repo.UpdateRefund(ctx, current); err != nil {
			return err
		}
		refund = current
		return nil
	})
	if err != nil {
		return Refund{}, err
	}
	return refund, nil
}

// MarkRefunded records that the money left the till.
func (s *Service) MarkRefunded(ctx context.Context, id int64, signature string) (Refund, error) {
	refund, err := s.repo.GetRefund(ctx, id)
	if err != nil {
		return Refund{}, err
	}
	if refund.Status.Final() {
		return Refund{}, fmt.Errorf("refund %s: %w", refund.Reference, shared.ErrImmutable)
	}
	now := s.now()
	if signature != "" {
		refund.Signature = signature
	}
	refund.Status = shared.RefundStatusRefunded
	refund.RefundedAt = &now
	refund.UpdatedAt = now
	if err := s.repo.MarkRefunded(ctx, refund); err != nil {
		return Refund{}, err
	}
	s.logger.Info("refund paid out",
		slog.Int64("refund_id", id),
		slog.String("reference", refund.Reference),
		slog.String("payment_method", string(refund.PaymentMethod)),
		slog.String("total", shared.FormatAmount(refund.Summary.Total)))
	s.record(ctx, "refund.refunded", "refund", id, map[string]any{"reference": refund.Reference})
	return refund, nil
}

func (s *Service) GetRefund(ctx context.Context, id int64) (Refund, error) {
	return s.repo.GetRefund(ctx, id)
}

func (s *Service) ListRefunds(ctx context.Context, filter ListFilter) ([]Refund, int, error) {
	return s.repo.ListRefunds(ctx, clampFilter(filter))
}

func clampFilter(filter ListFilter) ListFilter {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return filter
}

func (s *Service) created(ctx context.Context, docType numbering.DocumentType, id int64, status, reference string) {
	if s.metrics != nil {
		s.metrics.ObserveDocumentCreated(string(docType), status)
	}
	s.record(ctx, string(docType)+".created", string(docType), id, map[string]any{"reference": reference})
}

func (s *Service) record(ctx context.Context, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, core.AuditLog{
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
