package returns

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/sales/invoices"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

// PlanCreditNote validates a new credit note. inv is the credited invoice for
// FROM_INVOICE notes and nil otherwise.
func PlanCreditNote(in NewCreditNote, inv *invoices.Invoice, now time.Time) (CreditNote, error) {
	if in.CustomerID <= 0 {
		return CreditNote{}, &shared.ValidationError{Field: "customer_id", Message: "is required"}
	}
	switch in.Source {
	case CreditNoteFromInvoice:
		if in.InvoiceID == nil || inv == nil {
			return CreditNote{}, &shared.ValidationError{Field: "invoice_id", Message: "is required for FROM_INVOICE credit notes"}
		}
		if inv.CustomerID != in.CustomerID {
			return CreditNote{}, &shared.ValidationError{Field: "customer_id", Message: fmt.Sprintf("does not match invoice %s", inv.Reference)}
		}
	case CreditNoteStandalone:
		if in.InvoiceID != nil {
			return CreditNote{}, &shared.ValidationError{Field: "invoice_id", Message: "must be empty for STANDALONE credit notes"}
		}
	default:
		return CreditNote{}, &shared.ValidationError{Field: "source", Message: "must be FROM_INVOICE or STANDALONE"}
	}
	if err := shared.ValidateItems(in.Items); err != nil {
		return CreditNote{}, err
	}
	summary := shared.ComputeSummary(in.Items, decimal.Zero, summaryOptions)
	if inv != nil && summary.Total.GreaterThan(inv.Summary.Total) {
		return CreditNote{}, &shared.ValidationError{
			Field:   "items",
			Message: fmt.Sprintf("credit of %s exceeds invoice total %s", shared.FormatAmount(summary.Total), shared.FormatAmount(inv.Summary.Total)),
		}
	}
	return CreditNote{
		CustomerID: in.CustomerID,
		SalesRepID: in.SalesRepID,
		Source:     in.Source,
		InvoiceID:  in.InvoiceID,
		Items:      shared.CloneItems(in.Items),
		Summary:    summary,
		Status:     shared.CreditNoteStatusDraft,
		Signature:  in.Signature,
		Reason:     in.Reason,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// PlanRefund validates a new refund. note is the approved credit note for
// FROM_CREDITNOTE refunds and refunded the amount already refunded against it.
func PlanRefund(in NewRefund, note *CreditNote, refunded decimal.Decimal, now time.Time) (Refund, error) {
	method, err := shared.NormalizePaymentMethod(in.PaymentMethod)
	if err != nil {
		return Refund{}, err
	}
	items := in.Items
	customerID := in.CustomerID
	switch in.Source {
	case RefundFromCreditNote:
		if in.CreditNoteID == nil || note == nil {
			return Refund{}, &shared.ValidationError{Field: "credit_note_id", Message: "is required for FROM_CREDITNOTE refunds"}
		}
		if note.Status != shared.CreditNoteStatusApproved {
			return Refund{}, fmt.Errorf("%w: credit note %s is %s, refunds need an APPROVED note",
				shared.ErrInvalidStatus, note.Reference, note.Status)
		}
		if customerID == 0 {
			customerID = note.CustomerID
		}
		if customerID != note.CustomerID {
			return Refund{}, &shared.ValidationError{Field: "customer_id", Message: fmt.Sprintf("does not match credit note %s", note.Reference)}
		}
		if len(items) == 0 {
			items = note.Items
		}
	case RefundStandalone:
		if in.CreditNoteID != nil {
			return Refund{}, &shared.ValidationError{Field: "credit_note_id", Message: "must be empty for STANDALONE refunds"}
		}
	default:
		return Refund{}, &shared.ValidationError{Field: "source", Message: "must be FROM_CREDITNOTE or STANDALONE"}
	}
	if customerID <= 0 {
		return Refund{}, &shared.ValidationError{Field: "customer_id", Message: "is required"}
	}
	if err := shared.ValidateItems(items); err != nil {
		return Refund{}, err
	}
	summary := shared.ComputeSummary(items, decimal.Zero, summaryOptions)
	if note != nil {
		remaining := note.Summary.Total.Sub(refunded)
		if summary.Total.GreaterThan(remaining) {
			return Refund{}, &shared.ValidationError{
				Field:   "items",
				Message: fmt.Sprintf("refund of %s exceeds %s remaining on credit note %s", shared.FormatAmount(summary.Total), shared.FormatAmount(remaining), note.Reference),
			}
		}
	}
	return Refund{
		CustomerID:    customerID,
		SalesRepID:    in.SalesRepID,
		Source:        in.Source,
		CreditNoteID:  in.CreditNoteID,
		Items:         shared.CloneItems(items),
		Summary:       summary,
		Status:        shared.RefundStatusDraft,
		PaymentMethod: method,
		Signature:     in.Signature,
		Reason:        in.Reason,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func applyItems(current []shared.LineItem, upd DraftUpdate) ([]shared.LineItem, shared.MoneySummary, error) {
	items := current
	if upd.Items != nil {
		if err := shared.ValidateItems(upd.Items); err != nil {
			return nil, shared.MoneySummary{}, err
		}
		items = shared.CloneItems(upd.Items)
	}
	return items, shared.ComputeSummary(items, decimal.Zero, summaryOptions), nil
}
