package estimates

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/sales/invoices"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/numbering"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
	core "github.com/odyssey-erp/odyssey-pos/internal/shared"
)

type Repository interface {
	Get(ctx context.Context, id int64) (Estimate, error)
	List(ctx context.Context, filter ListFilter) ([]Estimate, int, error)
	Insert(ctx context.Context, est Estimate) (int64, error)
	// Update rewrites a draft estimate; shared.ErrImmutable once it left draft.
	Update(ctx context.Context, est Estimate) error
	// UpdateStatus moves the estimate from one status to another and returns
	// shared.ErrInvalidStatus when it is no longer in from.
	UpdateStatus(ctx context.Context, id int64, from, to shared.EstimateStatus, at time.Time) error
	LinkInvoice(ctx context.Context, id, invoiceID int64, at time.Time) error
	// ExpirePending marks pending estimates valid before asOf as expired and
	// returns their ids.
	ExpirePending(ctx context.Context, asOf time.Time) ([]int64, error)
}

// InvoiceCreator opens the invoice for a converted estimate.
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, in invoices.NewInvoice) (invoices.Invoice, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, log core.AuditLog) error
}

type Metrics interface {
	ObserveDocumentCreated(docType, status string)
}

type Service struct {
	repo     Repository
	invoices InvoiceCreator
	numbers  *numbering.Generator
	logger   *slog.Logger
	audit    AuditRecorder
	metrics  Metrics
	now      func() time.Time
}

func NewService(repo Repository, invoices InvoiceCreator, numbers *numbering.Generator, logger *slog.Logger) *Service {
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

func (s *Service) CreateEstimate(ctx context.Context, in NewEstimate) (Estimate, error) {
	now := s.now()
	est, err := PlanEstimate(in, now)
	if err != nil {
		return Estimate{}, err
	}
	_, err = s.numbers.Assign(ctx, numbering.DocumentEstimate, now.Year(), func(ctx context.Context, ref string) error {
		est.Reference = ref
		id, err := s.repo.Insert(ctx, est)
		est.ID = id
		return err
	})
	if err != nil {
		return Estimate{}, fmt.Errorf("create estimate: %w", err)
	}
	s.logger.Info("estimate created",
		slog.Int64("estimate_id", est.ID),
		slog.String("reference", est.Reference),
		slog.String("status", string(est.Status)))
	if s.metrics != nil {
		s.metrics.ObserveDocumentCreated(string(numbering.DocumentEstimate), string(est.Status))
	}
	s.record(ctx, "estimate.created", est.ID, map[string]any{"reference": est.Reference, "status": est.Status})
	return est, nil
}

func (s *Service) UpdateEstimate(ctx context.Context, id int64, upd UpdateEstimate) (Estimate, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Estimate{}, err
	}
	est, err := ApplyUpdate(existing, upd, s.now())
	if err != nil {
		return Estimate{}, err
	}
	if err := s.repo.Update(ctx, est); err != nil {
		return Estimate{}, fmt.Errorf("update estimate: %w", err)
	}
	return est, nil
}

// SubmitEstimate sends a draft to the customer.
func (s *Service) SubmitEstimate(ctx context.Context, id int64) (Estimate, error) {
	return s.transition(ctx, id, shared.EstimateStatusPending)
}

// AcceptEstimate records the customer's acceptance of a pending estimate that
// is still valid.
func (s *Service) AcceptEstimate(ctx context.Context, id int64) (Estimate, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Estimate{}, err
	}
	if existing.Status == shared.EstimateStatusPending && existing.Expired(s.now()) {
		return Estimate{}, fmt.Errorf("%w: estimate %s expired on %s",
			shared.ErrInvalidStatus, existing.Reference, existing.ValidUntil.Format(time.DateOnly))
	}
	return s.transition(ctx, id, shared.EstimateStatusAccepted)
}

func (s *Service) transition(ctx context.Context, id int64, next shared.EstimateStatus) (Estimate, error) {
	est, err := s.repo.Get(ctx, id)
	if err != nil {
		return Estimate{}, err
	}
	if !est.Status.CanTransition(next) {
		return Estimate{}, fmt.Errorf("%w: estimate is %s, cannot become %s", shared.ErrInvalidStatus, est.Status, next)
	}
	now := s.now()
	if err := s.repo.UpdateStatus(ctx, id, est.Status, next, now); err != nil {
		return Estimate{}, err
	}
	s.logger.Info("estimate status changed",
		slog.Int64("estimate_id", id),
		slog.String("from", string(est.Status)),
		slog.String("to", string(next)))
	s.record(ctx, "estimate."+string(next), id, map[string]any{"from": est.Status})
	est.Status = next
	est.UpdatedAt = now
	return est, nil
}

// ConvertEstimate opens a pending invoice with the estimate's items and links
// it. The estimate is claimed as converted first so that concurrent
// conversions cannot open two invoices; the claim is released when the
// invoice cannot be created.
func (s *Service) ConvertEstimate(ctx context.Context, id int64, opts ConvertOptions) (Estimate, invoices.Invoice, error) {
	est, err := s.repo.Get(ctx, id)
	if err != nil {
		return Estimate{}, invoices.Invoice{}, err
	}
	if !est.Status.CanTransition(shared.EstimateStatusConverted) {
		return Estimate{}, invoices.Invoice{}, fmt.Errorf("%w: estimate is %s, cannot be converted", shared.ErrInvalidStatus, est.Status)
	}
	method, err := shared.NormalizePaymentMethod(opts.PaymentMethod)
	if err != nil {
		return Estimate{}, invoices.Invoice{}, err
	}

	now := s.now()
	if err := s.repo.UpdateStatus(ctx, id, shared.EstimateStatusAccepted, shared.EstimateStatusConverted, now); err != nil {
		return Estimate{}, invoices.Invoice{}, err
	}
	inv, err := s.invoices.CreateInvoice(ctx, invoices.NewInvoice{
		CustomerID:    est.CustomerID,
		SalesRepID:    est.SalesRepID,
		PaymentTerms:  opts.PaymentTerms,
		Message:       est.Message,
		Signature:     opts.Signature,
		Items:         est.Items,
		Deposit:       opts.Deposit,
		PaymentMethod: method,
	})
	if err != nil {
		release := s.repo.UpdateStatus(context.WithoutCancel(ctx), id, shared.EstimateStatusConverted, shared.EstimateStatusAccepted, now)
		if release != nil {
			s.logger.Error("release estimate conversion claim failed",
				slog.Int64("estimate_id", id),
				slog.Any("error", release))
		}
		return Estimate{}, invoices.Invoice{}, fmt.Errorf("convert estimate: %w", err)
	}
	if err := s.repo.LinkInvoice(ctx, id, inv.ID, now); err != nil {
		return Estimate{}, invoices.Invoice{}, fmt.Errorf("link invoice %s: %w", inv.Reference, err)
	}

	s.logger.Info("estimate converted",
		slog.Int64("estimate_id", id),
		slog.String("reference", est.Reference),
		slog.Int64("invoice_id", inv.ID),
		slog.String("invoice_reference", inv.Reference))
	s.record(ctx, "estimate.converted", id, map[string]any{"invoice_id": inv.ID, "invoice_reference": inv.Reference})

	est.Status = shared.EstimateStatusConverted
	est.InvoiceID = &inv.ID
	est.UpdatedAt = now
	return est, inv, nil
}

// ExpireEstimates marks every pending estimate whose validity ended before
// asOf as expired and returns how many changed.
func (s *Service) ExpireEstimates(ctx context.Context, asOf time.Time) (int, error) {
	ids, err := s.repo.ExpirePending(ctx, truncateDay(asOf))
	if err != nil {
		return 0, fmt.Errorf("expire estimates: %w", err)
	}
	for _, id := range ids {
		s.record(ctx, "estimate.expired", id, map[string]any{"as_of": asOf.Format(time.DateOnly)})
	}
	if len(ids) > 0 {
		s.logger.Info("estimates expired", slog.Int("count", len(ids)), slog.Time("as_of", asOf))
	}
	return len(ids), nil
}

func (s *Service) GetEstimate(ctx context.Context, id int64) (Estimate, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListEstimates(ctx context.Context, filter ListFilter) ([]Estimate, int, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) record(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, core.AuditLog{
		Action:   action,
		Entity:   "estimate",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
