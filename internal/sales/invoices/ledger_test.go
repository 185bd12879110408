package invoices

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func line(code, qty, price, discount string) shared.LineItem {
	return shared.LineItem{ProductCode: code, Quantity: dec(qty), UnitPrice: dec(price), DiscountPercent: dec(discount)}
}

func planned(t *testing.T, in NewInvoice) Invoice {
	t.Helper()
	inv, err := PlanInvoice(in, shared.DepositPolicy{}, fixedNow)
	require.NoError(t, err)
	inv.ID = 7
	return inv
}

func TestPlanInvoiceOpeningSnapshot(t *testing.T) {
	inv := planned(t, NewInvoice{CustomerID: 1, Items: []shared.LineItem{line("SKU-1", "2", "50", "0")}})

	assert.Equal(t, "112.50", shared.FormatAmount(inv.Summary.Total))
	assert.Equal(t, "112.50", shared.FormatAmount(inv.Summary.BalanceDue))
	assert.Equal(t, shared.InvoiceStatusPending, inv.Status)
	assert.Equal(t, shared.InvoiceStatusPending, inv.InitialStatus)
	assert.Equal(t, inv.Items, inv.CurrentItems)
	assert.Zero(t, inv.LastSeq)
}

func TestPlanInvoiceRejectsOverpayingDeposit(t *testing.T) {
	_, err := PlanInvoice(NewInvoice{
		CustomerID: 1,
		Items:      []shared.LineItem{line("SKU-1", "2", "50", "0")},
		Deposit:    dec("200"),
	}, shared.DepositPolicy{}, fixedNow)

	require.Error(t, err)
	assert.True(t, shared.IsDepositRejected(err))
}

func TestPlanInvoiceRequiresCustomerAndItems(t *testing.T) {
	_, err := PlanInvoice(NewInvoice{Items: []shared.LineItem{line("A", "1", "1", "0")}}, shared.DepositPolicy{}, fixedNow)
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "customer_id", ve.Field)

	_, err = PlanInvoice(NewInvoice{CustomerID: 1}, shared.DepositPolicy{}, fixedNow)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "items", ve.Field)
}

func TestPlanEditPaysInFull(t *testing.T) {
	inv := planned(t, NewInvoice{CustomerID: 1, Items: []shared.LineItem{line("SKU-1", "2", "50", "0")}})
	id := uuid.New()

	edit, err := PlanEdit(inv, EditRequest{DepositAdded: dec("112.5"), PaymentMethod: "card"}, shared.DepositPolicy{}, fixedNow, id)
	require.NoError(t, err)

	assert.Equal(t, id, edit.ID)
	assert.Equal(t, int64(7), edit.InvoiceID)
	assert.Equal(t, 1, edit.Seq)
	assert.Equal(t, "112.50", shared.FormatAmount(edit.DepositAdded))
	assert.Equal(t, "112.50", shared.FormatAmount(edit.DepositReceived))
	assert.Equal(t, "0.00", shared.FormatAmount(edit.Summary.BalanceDue))
	assert.Equal(t, shared.InvoiceStatusPaid, edit.Status)
	assert.Equal(t, shared.PaymentCard, edit.PaymentMethod)
	assert.Equal(t, inv.CurrentItems, edit.Items)
}

func TestPlanEditRejectedDepositLeavesInvoiceUntouched(t *testing.T) {
	inv := planned(t, NewInvoice{CustomerID: 1, Items: []shared.LineItem{line("SKU-1", "2", "50", "0")}})
	before := inv

	_, err := PlanEdit(inv, EditRequest{DepositAdded: dec("200")}, shared.DepositPolicy{}, fixedNow, uuid.New())

	require.Error(t, err)
	assert.True(t, shared.IsDepositRejected(err))
	assert.Equal(t, before, inv)
	assert.Equal(t, shared.InvoiceStatusPending, inv.Status)
}

func TestPlanEditRejectsDepositRemoval(t *testing.T) {
	inv := planned(t, NewInvoice{CustomerID: 1, Items: []shared.LineItem{line("A", "1", "100", "0")}, Deposit: dec("50")})

	_, err := PlanEdit(inv, EditRequest{DepositAdded: dec("-10")}, shared.DepositPolicy{}, fixedNow, uuid.New())

	require.Error(t, err)
	assert.True(t, shared.IsDepositRejected(err))
}

func TestPlanEditValidatesReplacementItems(t *testing.T) {
	inv := planned(t, NewInvoice{CustomerID: 1, Items: []shared.LineItem{line("A", "1", "100", "0")}})

	_, err := PlanEdit(inv, EditRequest{Items: []shared.LineItem{line("A", "-1", "100", "0")}}, shared.DepositPolicy{}, fixedNow, uuid.New())

	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "items[0].quantity", ve.Field)
}

func TestPlanEditRequireDraft(t *testing.T) {
	draft := planned(t, NewInvoice{CustomerID: 1, Items: []shared.LineItem{line("SKU-1", "1", "80", "0")}, SaveAsDraft: true})
	edit, err := PlanEdit(draft, EditRequest{RequireDraft: true}, shared.DepositPolicy{}, fixedNow, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, shared.InvoiceStatusPending, edit.Status)

	pending := Apply(draft, edit)
	_, err = PlanEdit(pending, EditRequest{RequireDraft: true}, shared.DepositPolicy{}, fixedNow, uuid.New())
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestPlanEditCannotReturnToDraft(t *testing.T) {
	inv := planned(t, NewInvoice{CustomerID: 1, Items: []shared.LineItem{line("A", "1", "100", "0")}})

	_, err := PlanEdit(inv, EditRequest{SaveAsDraft: true}, shared.DepositPolicy{}, fixedNow, uuid.New())

	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func buildLedger(t *testing.T) (Invoice, []InvoiceEdit) {
	t.Helper()
	inv := planned(t, NewInvoice{CustomerID: 1, Items: []shared.LineItem{line("SKU-1", "2", "50", "0")}, Deposit: dec("10")})
	requests := []EditRequest{
		{DepositAdded: dec("40"), PaymentMethod: "cash"},
		{Items: []shared.LineItem{line("SKU-1", "2", "50", "0"), line("SKU-2", "1", "20", "10")}},
		{DepositAdded: dec("82.75"), PaymentMethod: "mobile_money", Note: "settled"},
	}
	var edits []InvoiceEdit
	for i, req := range requests {
		edit, err := PlanEdit(inv, req, shared.DepositPolicy{}, fixedNow.Add(time.Duration(i)*time.Minute), uuid.New())
		require.NoError(t, err)
		edits = append(edits, edit)
		inv = Apply(inv, edit)
	}
	return inv, edits
}

func TestLedgerCumulativeDepositLaw(t *testing.T) {
	inv, edits := buildLedger(t)

	require.Len(t, edits, 3)
	prev := inv.InitialDeposit
	for _, edit := range edits {
		assert.True(t, edit.DepositReceived.Equal(prev.Add(edit.DepositAdded)), "seq %d", edit.Seq)
		prev = edit.DepositReceived
	}
	assert.Equal(t, "132.75", shared.FormatAmount(inv.Summary.DepositReceived))
}

func TestLedgerFoldMatchesLatestEdit(t *testing.T) {
	inv, edits := buildLedger(t)

	current := Fold(inv, edits)
	assert.True(t, current.Summary.Equal(edits[2].Summary))
	assert.Equal(t, shared.InvoiceStatusPaid, current.Status)
	assert.Equal(t, 3, current.LastSeq)
	assert.Equal(t, "132.75", shared.FormatAmount(current.Summary.Total))
	assert.Len(t, current.Items, 2)

	opening := Fold(inv, nil)
	assert.Equal(t, "102.50", shared.FormatAmount(opening.Summary.BalanceDue))
	assert.Equal(t, shared.InvoiceStatusPartial, opening.Status)
	assert.Len(t, opening.Items, 1)
}

func TestVerifyLedgerHealthy(t *testing.T) {
	inv, edits := buildLedger(t)
	assert.Empty(t, VerifyLedger(inv, edits))
}

func TestVerifyLedgerDetectsTampering(t *testing.T) {
	inv, edits := buildLedger(t)

	edits[1].DepositReceived = dec("999")
	edits[2].Summary.Tax = dec("0")
	inv.Status = shared.InvoiceStatusPartial

	laws := map[Law]bool{}
	for _, v := range VerifyLedger(inv, edits) {
		laws[v.Law] = true
		assert.NotEmpty(t, v.String())
	}
	assert.True(t, laws[LawCumulative])
	assert.True(t, laws[LawRoundTrip])
	assert.True(t, laws[LawCurrent])
}

func TestVerifyLedgerDetectsGapInSequence(t *testing.T) {
	inv, edits := buildLedger(t)
	edits = append(edits[:1], edits[2:]...)

	var found bool
	for _, v := range VerifyLedger(inv, edits) {
		if v.Law == LawSequence {
			found = true
		}
	}
	assert.True(t, found)
}
