package invoices

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/sales/numbering"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
	core "github.com/odyssey-erp/odyssey-pos/internal/shared"
)

type recordingAudit struct {
	mu      sync.Mutex
	entries []core.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log core.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, log)
	return nil
}

type countingMetrics struct {
	mu         sync.Mutex
	created    int
	edits      map[string]int
	rejections int
}

func (m *countingMetrics) ObserveDocumentCreated(string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
}

func (m *countingMetrics) ObserveEditAppended(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.edits == nil {
		m.edits = make(map[string]int)
	}
	m.edits[status]++
}

func (m *countingMetrics) ObserveDepositRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections++
}

type testService struct {
	*Service
	repo    *memoryRepository
	audit   *recordingAudit
	metrics *countingMetrics
	alloc   *numbering.MemoryAllocator
}

func newTestService() *testService {
	repo := newMemoryRepository()
	alloc := numbering.NewMemoryAllocator()
	audit := &recordingAudit{}
	metrics := &countingMetrics{}
	svc := NewService(repo, numbering.NewGenerator(alloc, 3, nil), shared.DepositPolicy{}, nil).
		WithAudit(audit).
		WithMetrics(metrics).
		WithClock(func() time.Time { return fixedNow })
	return &testService{Service: svc, repo: repo, audit: audit, metrics: metrics, alloc: alloc}
}

func (s *testService) createStandard(t *testing.T) Invoice {
	t.Helper()
	inv, err := s.CreateInvoice(context.Background(), NewInvoice{
		CustomerID: 11,
		SalesRepID: 3,
		Items:      []shared.LineItem{line("SKU-1", "2", "50", "0")},
	})
	require.NoError(t, err)
	return inv
}

func TestCreateInvoiceAssignsReference(t *testing.T) {
	svc := newTestService()

	first := svc.createStandard(t)
	second := svc.createStandard(t)

	assert.Equal(t, "INV-2025-0001", first.Reference)
	assert.Equal(t, "INV-2025-0002", second.Reference)
	assert.Equal(t, shared.InvoiceStatusPending, first.Status)
	assert.Equal(t, "112.50", shared.FormatAmount(first.Summary.BalanceDue))
	assert.Equal(t, 2, svc.metrics.created)
	require.Len(t, svc.audit.entries, 2)
	assert.Equal(t, "invoice.created", svc.audit.entries[0].Action)
}

func TestCreateInvoiceRetriesOnReferenceCollision(t *testing.T) {
	svc := newTestService()
	// An imported invoice already owns the first number of the year.
	svc.repo.refs["INV-2025-0001"] = 99

	inv := svc.createStandard(t)

	assert.Equal(t, "INV-2025-0002", inv.Reference)
}

func TestCreateInvoiceAsDraftThenFinalize(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	inv, err := svc.CreateInvoice(ctx, NewInvoice{
		CustomerID:  11,
		Items:       []shared.LineItem{line("SKU-1", "1", "80", "0")},
		Deposit:     dec("30"),
		SaveAsDraft: true,
	})
	require.NoError(t, err)
	assert.Equal(t, shared.InvoiceStatusDraft, inv.Status)

	edit, err := svc.Finalize(ctx, inv.ID, "")
	require.NoError(t, err)
	assert.Equal(t, shared.InvoiceStatusPartial, edit.Status)
	assert.True(t, edit.DepositAdded.IsZero())
	assert.Equal(t, "finalized", edit.Note)

	_, err = svc.Finalize(ctx, inv.ID, "")
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestFinalizeConcurrentCallsAppendOnce(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	inv, err := svc.CreateInvoice(ctx, NewInvoice{
		CustomerID:  11,
		Items:       []shared.LineItem{line("SKU-1", "1", "80", "0")},
		SaveAsDraft: true,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Finalize(ctx, inv.ID, "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, refused int
	for err := range results {
		if err == nil {
			ok++
		} else if errors.Is(err, shared.ErrInvalidStatus) {
			refused++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 4, refused)

	edits, err := svc.ListEdits(ctx, inv.ID)
	require.NoError(t, err)
	assert.Len(t, edits, 1)
}

func TestFinalizeUnknownInvoice(t *testing.T) {
	svc := newTestService()
	_, err := svc.Finalize(context.Background(), 404, "")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetInvoiceIgnoresEditCommittedDuringRead(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	inv := svc.createStandard(t)

	// A deposit lands between reading the invoice row and reading its ledger.
	svc.repo.afterTxGet = func() {
		edit, err := PlanEdit(inv, EditRequest{DepositAdded: dec("112.5"), PaymentMethod: "cash"},
			shared.DepositPolicy{}, fixedNow, svc.newID())
		require.NoError(t, err)
		svc.repo.commitEdit(Apply(inv, edit), edit)
	}

	got, err := svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.InvoiceStatusPending, got.Status)
	assert.Equal(t, 0, got.LastSeq)
	assert.Empty(t, got.Edits)
	assert.Empty(t, VerifyLedger(got, got.Edits))

	violations, err := svc.VerifyInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Empty(t, violations)

	got, err = svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.InvoiceStatusPaid, got.Status)
	require.Len(t, got.Edits, 1)
	assert.Equal(t, got.LastSeq, got.Edits[0].Seq)
}

func TestAppendEditPaysInvoiceInFull(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	inv := svc.createStandard(t)

	edit, err := svc.AppendEdit(ctx, inv.ID, EditRequest{DepositAdded: dec("112.5"), PaymentMethod: "cash"})
	require.NoError(t, err)

	assert.Equal(t, shared.InvoiceStatusPaid, edit.Status)
	assert.Equal(t, "0.00", shared.FormatAmount(edit.Summary.BalanceDue))

	stored, err := svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.InvoiceStatusPaid, stored.Status)
	assert.Equal(t, 1, stored.LastSeq)
	require.Len(t, stored.Edits, 1)
	assert.Equal(t, edit.ID, stored.Edits[0].ID)
	assert.True(t, stored.Summary.Equal(edit.Summary))
	assert.Equal(t, 1, svc.metrics.edits["paid"])
	assert.Empty(t, VerifyLedger(stored, stored.Edits))
}

func TestAppendEditRejectedDepositLeavesInvoicePending(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	inv := svc.createStandard(t)

	_, err := svc.AppendEdit(ctx, inv.ID, EditRequest{DepositAdded: dec("200")})
	require.Error(t, err)
	assert.True(t, shared.IsDepositRejected(err))

	stored, err := svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.InvoiceStatusPending, stored.Status)
	assert.Empty(t, stored.Edits)
	assert.Equal(t, 1, svc.metrics.rejections)
}

func TestAppendEditStorageFailureIsAtomic(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	inv := svc.createStandard(t)
	svc.repo.failWrite = errors.New("disk full")

	_, err := svc.AppendEdit(ctx, inv.ID, EditRequest{DepositAdded: dec("50")})
	require.Error(t, err)

	svc.repo.failWrite = nil
	stored, err := svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Edits, "edit must be rolled back with the snapshot update")
	assert.Equal(t, 0, stored.LastSeq)
	assert.Equal(t, shared.InvoiceStatusPending, stored.Status)
}

func TestAppendEditUnknownInvoice(t *testing.T) {
	svc := newTestService()
	_, err := svc.AppendEdit(context.Background(), 404, EditRequest{})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAppendEditConcurrentDepositsKeepLedgerConsistent(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	inv := svc.createStandard(t)

	// Ten deposits of 12.50 against 112.50: nine fit, the tenth would overpay.
	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AppendEdit(ctx, inv.ID, EditRequest{DepositAdded: dec("12.50")})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, rejected int
	for err := range results {
		if err == nil {
			ok++
		} else if shared.IsDepositRejected(err) {
			rejected++
		}
	}
	assert.Equal(t, 9, ok)
	assert.Equal(t, 1, rejected)

	stored, err := svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.InvoiceStatusPaid, stored.Status)
	assert.Len(t, stored.Edits, 9)
	assert.Empty(t, VerifyLedger(stored, stored.Edits))
}

func TestListEditsInAppendOrder(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	inv := svc.createStandard(t)

	for _, amount := range []string{"10", "20", "30"} {
		_, err := svc.AppendEdit(ctx, inv.ID, EditRequest{DepositAdded: dec(amount)})
		require.NoError(t, err)
	}

	edits, err := svc.ListEdits(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, edits, 3)
	for i, edit := range edits {
		assert.Equal(t, i+1, edit.Seq)
	}
	assert.Equal(t, "60.00", shared.FormatAmount(edits[2].DepositReceived))

	got, err := svc.GetEdit(ctx, inv.ID, edits[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Seq)

	_, err = svc.ListEdits(ctx, 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListInvoicesFiltersAndClampsLimit(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	inv := svc.createStandard(t)
	svc.createStandard(t)
	_, err := svc.AppendEdit(ctx, inv.ID, EditRequest{DepositAdded: dec("112.50")})
	require.NoError(t, err)

	paid := shared.InvoiceStatusPaid
	list, total, err := svc.ListInvoices(ctx, ListFilter{Status: &paid, Limit: 10000})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, inv.ID, list[0].ID)
}

func TestCheckEditDepositMatchesAppendDecision(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	inv := svc.createStandard(t)

	decision, err := svc.CheckEditDeposit(ctx, inv.ID, nil, dec("200"))
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	decision, err = svc.CheckEditDeposit(ctx, inv.ID, nil, dec("100"))
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, shared.InvoiceStatusPartial, decision.Status)

	raw := svc.CheckDeposit(dec("112.50"), dec("200"), decimal.Zero)
	assert.False(t, raw.Allowed)
}

func TestPreviewSummary(t *testing.T) {
	svc := newTestService()

	summary, status, err := svc.PreviewSummary([]shared.LineItem{line("SKU-1", "2", "50", "0")}, decimal.Zero, true)
	require.NoError(t, err)
	assert.Equal(t, "112.50", shared.FormatAmount(summary.Total))
	assert.Equal(t, shared.InvoiceStatusPending, status)

	_, _, err = svc.PreviewSummary(nil, decimal.Zero, true)
	require.Error(t, err)
}

func TestListInvoicesKeysetPaging(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		svc.createStandard(t)
	}

	first, _, err := svc.ListInvoices(ctx, ListFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, int64(5), first[0].ID)

	// An invoice created between pages does not shift the next page.
	svc.createStandard(t)

	second, _, err := svc.ListInvoices(ctx, ListFilter{Limit: 2, BeforeID: first[1].ID})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, []int64{3, 2}, []int64{second[0].ID, second[1].ID})
}

func TestVerifyInvoice(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	inv := svc.createStandard(t)
	_, err := svc.AppendEdit(ctx, inv.ID, EditRequest{DepositAdded: dec("12.50")})
	require.NoError(t, err)

	violations, err := svc.VerifyInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Empty(t, violations)
}
