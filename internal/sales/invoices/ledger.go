package invoices

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

// PlanInvoice validates creation input and computes the opening snapshot.
func PlanInvoice(in NewInvoice, policy shared.DepositPolicy, now time.Time) (Invoice, error) {
	if in.CustomerID <= 0 {
		return Invoice{}, &shared.ValidationError{Field: "customer_id", Message: "is required"}
	}
	if err := shared.ValidateItems(in.Items); err != nil {
		return Invoice{}, err
	}

	projected := shared.ComputeSummary(in.Items, decimal.Zero, summaryOptions)
	decision := policy.Check(projected.BalanceDue, in.Deposit, decimal.Zero)
	if err := decision.Err(); err != nil {
		return Invoice{}, err
	}

	summary := shared.ComputeSummary(in.Items, in.Deposit, summaryOptions)
	status, err := shared.NextInvoiceStatus("", summary, in.SaveAsDraft)
	if err != nil {
		return Invoice{}, err
	}

	items := shared.CloneItems(in.Items)
	return Invoice{
		CustomerID:     in.CustomerID,
		SalesRepID:     in.SalesRepID,
		PaymentTerms:   in.PaymentTerms,
		Message:        in.Message,
		Signature:      in.Signature,
		Items:          items,
		InitialDeposit: summary.DepositReceived,
		InitialStatus:  status,
		CurrentItems:   shared.CloneItems(items),
		Summary:        summary,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// PlanEdit turns an edit request into the next ledger entry for inv. It runs
// validation and the deposit guard against the invoice's current state and
// returns a DepositRejectedError or ValidationError without side effects.
func PlanEdit(inv Invoice, req EditRequest, policy shared.DepositPolicy, now time.Time, id uuid.UUID) (InvoiceEdit, error) {
	if req.RequireDraft && inv.Status != shared.InvoiceStatusDraft {
		return InvoiceEdit{}, fmt.Errorf("%w: invoice is %s", shared.ErrInvalidStatus, inv.Status)
	}
	items := req.Items
	if items == nil {
		items = inv.CurrentItems
	}
	if err := shared.ValidateItems(items); err != nil {
		return InvoiceEdit{}, err
	}

	var method shared.PaymentMethod
	if !req.DepositAdded.IsZero() || req.PaymentMethod != "" {
		m, err := shared.NormalizePaymentMethod(req.PaymentMethod)
		if err != nil {
			return InvoiceEdit{}, err
		}
		method = m
	}

	existing := inv.Summary.DepositReceived
	delta := shared.Round2(req.DepositAdded)
	proposed := existing.Add(delta)

	projected := shared.ComputeSummary(items, existing, summaryOptions)
	decision := policy.Check(projected.BalanceDue, proposed, existing)
	if err := decision.Err(); err != nil {
		return InvoiceEdit{}, err
	}

	summary := shared.ComputeSummary(items, proposed, summaryOptions)
	status, err := shared.NextInvoiceStatus(inv.Status, summary, req.SaveAsDraft)
	if err != nil {
		return InvoiceEdit{}, err
	}

	return InvoiceEdit{
		ID:              id,
		InvoiceID:       inv.ID,
		Seq:             inv.LastSeq + 1,
		CreatedAt:       now,
		Items:           shared.CloneItems(items),
		DepositAdded:    delta,
		DepositReceived: summary.DepositReceived,
		PaymentMethod:   method,
		Summary:         summary,
		Status:          status,
		Note:            req.Note,
	}, nil
}

// Apply returns inv with edit folded onto its current view.
func Apply(inv Invoice, edit InvoiceEdit) Invoice {
	inv.CurrentItems = shared.CloneItems(edit.Items)
	inv.Summary = edit.Summary
	inv.Status = edit.Status
	inv.LastSeq = edit.Seq
	inv.UpdatedAt = edit.CreatedAt
	return inv
}

// Current is the derived view of an invoice.
type Current struct {
	Items   []shared.LineItem
	Summary shared.MoneySummary
	Status  shared.InvoiceStatus
	LastSeq int
}

// Fold derives the current view from the creation values and the ordered
// ledger. An invoice without edits shows its creation values.
func Fold(inv Invoice, edits []InvoiceEdit) Current {
	if len(edits) == 0 {
		return Current{
			Items:   shared.CloneItems(inv.Items),
			Summary: shared.ComputeSummary(inv.Items, inv.InitialDeposit, summaryOptions),
			Status:  inv.InitialStatus,
		}
	}
	last := edits[len(edits)-1]
	return Current{
		Items:   shared.CloneItems(last.Items),
		Summary: last.Summary,
		Status:  last.Status,
		LastSeq: last.Seq,
	}
}

// Law names a ledger invariant.
type Law string

const (
	LawSequence   Law = "sequence"
	LawCumulative Law = "cumulative_deposit"
	LawRoundTrip  Law = "round_trip"
	LawStatus     Law = "status"
	LawCurrent    Law = "current_view"
)

// Violation describes one broken ledger invariant.
type Violation struct {
	InvoiceID int64
	Seq       int
	Law       Law
	Detail    string
}

func (v Violation) String() string {
	return fmt.Sprintf("invoice %d seq %d: %s: %s", v.InvoiceID, v.Seq, v.Law, v.Detail)
}

// VerifyLedger re-derives every stored figure of inv and its edits and reports
// each disagreement. A healthy ledger yields no violations.
func VerifyLedger(inv Invoice, edits []InvoiceEdit) []Violation {
	var out []Violation
	report := func(seq int, law Law, format string, args ...any) {
		out = append(out, Violation{InvoiceID: inv.ID, Seq: seq, Law: law, Detail: fmt.Sprintf(format, args...)})
	}

	deposit := shared.Round2(inv.InitialDeposit)
	var prevAt time.Time
	for i, edit := range edits {
		if edit.Seq != i+1 {
			report(edit.Seq, LawSequence, "expected seq %d", i+1)
		}
		if i > 0 && edit.CreatedAt.Before(prevAt) {
			report(edit.Seq, LawSequence, "created before previous edit")
		}
		prevAt = edit.CreatedAt

		deposit = deposit.Add(edit.DepositAdded)
		if !edit.DepositReceived.Equal(deposit) {
			report(edit.Seq, LawCumulative, "deposit_received %s, expected %s",
				shared.FormatAmount(edit.DepositReceived), shared.FormatAmount(deposit))
		}

		fresh := shared.ComputeSummary(edit.Items, edit.DepositReceived, summaryOptions)
		if !fresh.Equal(edit.Summary) {
			report(edit.Seq, LawRoundTrip, "stored total %s balance %s, recomputed total %s balance %s",
				shared.FormatAmount(edit.Summary.Total), shared.FormatAmount(edit.Summary.BalanceDue),
				shared.FormatAmount(fresh.Total), shared.FormatAmount(fresh.BalanceDue))
		}
		if edit.Status != shared.InvoiceStatusDraft && edit.Status != shared.DeriveInvoiceStatus(edit.Summary) {
			report(edit.Seq, LawStatus, "stored %s, derived %s", edit.Status, shared.DeriveInvoiceStatus(edit.Summary))
		}
	}

	current := Fold(inv, edits)
	if !current.Summary.Equal(inv.Summary) {
		report(current.LastSeq, LawCurrent, "invoice total %s balance %s, ledger total %s balance %s",
			shared.FormatAmount(inv.Summary.Total), shared.FormatAmount(inv.Summary.BalanceDue),
			shared.FormatAmount(current.Summary.Total), shared.FormatAmount(current.Summary.BalanceDue))
	}
	if current.Status != inv.Status {
		report(current.LastSeq, LawCurrent, "invoice status %s, ledger status %s", inv.Status, current.Status)
	}
	if current.LastSeq != inv.LastSeq {
		report(current.LastSeq, LawCurrent, "invoice last_seq %d, ledger %d", inv.LastSeq, current.LastSeq)
	}
	return out
}
