package returns

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/sales/numbering"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

var fixedNow = time.Date(2025, time.March, 14, 10, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func line(code, qty, price string) shared.LineItem {
	return shared.LineItem{ProductCode: code, Quantity: dec(qty), UnitPrice: dec(price), DiscountPercent: decimal.Zero}
}

func ptr[T any](v T) *T {
	return &v
}

type testService struct {
	*Service
	repo  *memoryRepository
	alloc *numbering.MemoryAllocator
}

func newTestService() *testService {
	repo := newMemoryRepository()
	alloc := numbering.NewMemoryAllocator()
	ledger := stubInvoices{
		7: {ID: 7, Reference: "INV-2025-0007", CustomerID: 42, Summary: shared.MoneySummary{Total: dec("112.50")}},
	}
	svc := NewService(repo, ledger, numbering.NewGenerator(alloc, 3, nil), nil).
		WithClock(func() time.Time { return fixedNow })
	return &testService{Service: svc, repo: repo, alloc: alloc}
}

func (ts *testService) approvedNote(t *testing.T, items ...shared.LineItem) CreditNote {
	t.Helper()
	ctx := context.Background()
	note, err := ts.CreateCreditNote(ctx, NewCreditNote{
		CustomerID: 42,
		Source:     CreditNoteFromInvoice,
		InvoiceID:  ptr(int64(7)),
		Items:      items,
		Reason:     "damaged",
	})
	require.NoError(t, err)
	note, err = ts.ApproveCreditNote(ctx, note.ID, "manager")
	require.NoError(t, err)
	return note
}

func TestCreditNoteLifecycle(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	note, err := svc.CreateCreditNote(ctx, NewCreditNote{
		CustomerID: 42,
		Source:     CreditNoteFromInvoice,
		InvoiceID:  ptr(int64(7)),
		Items:      []shared.LineItem{line("SKU-1", "1", "50")},
	})
	require.NoError(t, err)
	assert.Equal(t, "CN-2025-0001", note.Reference)
	assert.Equal(t, shared.CreditNoteStatusDraft, note.Status)
	assert.Equal(t, "0.00", shared.FormatAmount(note.Summary.Tax))
	assert.Equal(t, "50.00", shared.FormatAmount(note.Summary.Total))

	note, err = svc.UpdateCreditNote(ctx, note.ID, DraftUpdate{
		Items:  []shared.LineItem{line("SKU-1", "2", "40")},
		Reason: ptr("two damaged units"),
	})
	require.NoError(t, err)
	assert.Equal(t, "80.00", shared.FormatAmount(note.Summary.Total))
	assert.Equal(t, "two damaged units", note.Reason)

	note, err = svc.ApproveCreditNote(ctx, note.ID, "sig")
	require.NoError(t, err)
	assert.Equal(t, shared.CreditNoteStatusApproved, note.Status)
	require.NotNil(t, note.ApprovedAt)

	_, err = svc.UpdateCreditNote(ctx, note.ID, DraftUpdate{Reason: ptr("late")})
	assert.ErrorIs(t, err, shared.ErrImmutable)
	_, err = svc.ApproveCreditNote(ctx, note.ID, "")
	assert.ErrorIs(t, err, shared.ErrImmutable)
}

func TestCreditNoteValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	items := []shared.LineItem{line("SKU-1", "1", "5")}
	var ve *shared.ValidationError

	_, err := svc.CreateCreditNote(ctx, NewCreditNote{CustomerID: 42, Source: CreditNoteFromInvoice, Items: items})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "invoice_id", ve.Field)

	_, err = svc.CreateCreditNote(ctx, NewCreditNote{CustomerID: 42, Source: CreditNoteStandalone, InvoiceID: ptr(int64(7)), Items: items})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "invoice_id", ve.Field)

	_, err = svc.CreateCreditNote(ctx, NewCreditNote{CustomerID: 5, Source: CreditNoteFromInvoice, InvoiceID: ptr(int64(7)), Items: items})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "customer_id", ve.Field)

	_, err = svc.CreateCreditNote(ctx, NewCreditNote{CustomerID: 42, Source: CreditNoteFromInvoice, InvoiceID: ptr(int64(99)), Items: items})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.CreateCreditNote(ctx, NewCreditNote{
		CustomerID: 42,
		Source:     CreditNoteFromInvoice,
		InvoiceID:  ptr(int64(7)),
		Items:      []shared.LineItem{line("SKU-1", "3", "50")},
	})
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Message, "exceeds invoice total 112.50")

	_, err = svc.CreateCreditNote(ctx, NewCreditNote{CustomerID: 42, Source: "OTHER", Items: items})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "source", ve.Field)

	note, err := svc.CreateCreditNote(ctx, NewCreditNote{CustomerID: 42, Source: CreditNoteStandalone, Items: items})
	require.NoError(t, err)
	assert.Equal(t, "CN-2025-0001", note.Reference, "rejected input must not consume references")
}

func TestRefundRequiresApprovedCreditNote(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	draft, err := svc.CreateCreditNote(ctx, NewCreditNote{
		CustomerID: 42,
		Source:     CreditNoteStandalone,
		Items:      []shared.LineItem{line("SKU-1", "1", "30")},
	})
	require.NoError(t, err)

	_, err = svc.CreateRefund(ctx, NewRefund{Source: RefundFromCreditNote, CreditNoteID: &draft.ID})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	approved, err := svc.ApproveCreditNote(ctx, draft.ID, "")
	require.NoError(t, err)

	refund, err := svc.CreateRefund(ctx, NewRefund{Source: RefundFromCreditNote, CreditNoteID: &approved.ID, PaymentMethod: "card"})
	require.NoError(t, err)
	assert.Equal(t, "RF-2025-0001", refund.Reference)
	assert.Equal(t, int64(42), refund.CustomerID)
	assert.Equal(t, "30.00", shared.FormatAmount(refund.Summary.Total))
	assert.Equal(t, shared.PaymentCard, refund.PaymentMethod)
	assert.Equal(t, shared.RefundStatusDraft, refund.Status)

	_, err = svc.CreateRefund(ctx, NewRefund{
		Source:       RefundFromCreditNote,
		CreditNoteID: &approved.ID,
		Items:        []shared.LineItem{line("SKU-1", "1", "0.01")},
	})
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Message, "0.00 remaining")
}

func TestRefundLifecycle(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	note := svc.approvedNote(t, line("SKU-1", "2", "25"))

	refund, err := svc.CreateRefund(ctx, NewRefund{
		Source:       RefundFromCreditNote,
		CreditNoteID: &note.ID,
		Items:        []shared.LineItem{line("SKU-1", "1", "25")},
	})
	require.NoError(t, err)

	_, err = svc.UpdateRefund(ctx, refund.ID, DraftUpdate{Items: []shared.LineItem{line("SKU-1", "3", "25")}})
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)

	refund, err = svc.UpdateRefund(ctx, refund.ID, DraftUpdate{Items: []shared.LineItem{line("SKU-1", "2", "25")}})
	require.NoError(t, err)
	assert.Equal(t, "50.00", shared.FormatAmount(refund.Summary.Total))

	refund, err = svc.MarkRefunded(ctx, refund.ID, "customer")
	require.NoError(t, err)
	assert.Equal(t, shared.RefundStatusRefunded, refund.Status)
	assert.Equal(t, "customer", refund.Signature)
	require.NotNil(t, refund.RefundedAt)

	_, err = svc.MarkRefunded(ctx, refund.ID, "")
	assert.ErrorIs(t, err, shared.ErrImmutable)
	_, err = svc.UpdateRefund(ctx, refund.ID, DraftUpdate{Reason: ptr("x")})
	assert.ErrorIs(t, err, shared.ErrImmutable)
}

func TestStandaloneRefund(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.CreateRefund(ctx, NewRefund{Source: RefundStandalone, Items: []shared.LineItem{line("A", "1", "5")}})
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "customer_id", ve.Field)

	_, err = svc.CreateRefund(ctx, NewRefund{Source: RefundStandalone, CustomerID: 1, CreditNoteID: ptr(int64(3)), Items: []shared.LineItem{line("A", "1", "5")}})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "credit_note_id", ve.Field)

	refund, err := svc.CreateRefund(ctx, NewRefund{Source: RefundStandalone, CustomerID: 1, Items: []shared.LineItem{line("A", "1", "5")}})
	require.NoError(t, err)
	assert.Equal(t, "RF-2025-0001", refund.Reference)
	assert.Equal(t, shared.PaymentCash, refund.PaymentMethod)
}

func TestConcurrentRefundsStayWithinCreditNote(t *testing.T) {
	svc := newTestService()
	note := svc.approvedNote(t, line("SKU-1", "1", "100"))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateRefund(context.Background(), NewRefund{
				Source:       RefundFromCreditNote,
				CreditNoteID: &note.ID,
				Items:        []shared.LineItem{line("SKU-1", "1", "30")},
			})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	refunded, err := svc.repo.RefundedTotal(context.Background(), note.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "90.00", shared.FormatAmount(refunded))
}

func TestListReturns(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	note := svc.approvedNote(t, line("SKU-1", "1", "10"))
	_, err := svc.CreateCreditNote(ctx, NewCreditNote{CustomerID: 3, Source: CreditNoteStandalone, Items: []shared.LineItem{line("A", "1", "1")}})
	require.NoError(t, err)
	_, err = svc.CreateRefund(ctx, NewRefund{Source: RefundFromCreditNote, CreditNoteID: &note.ID})
	require.NoError(t, err)

	notes, total, err := svc.ListCreditNotes(ctx, ListFilter{Status: string(shared.CreditNoteStatusApproved)})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, note.ID, notes[0].ID)

	_, total, err = svc.ListCreditNotes(ctx, ListFilter{CustomerID: ptr(int64(3))})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	refunds, total, err := svc.ListRefunds(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, note.ID, *refunds[0].CreditNoteID)
}
