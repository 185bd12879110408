package receipts

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/sales/invoices"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

// MirrorEdit builds the receipt for the deposit recorded by edit. The receipt
// carries one line for the deposit delta, no tax, and is completed at once.
func MirrorEdit(inv invoices.Invoice, edit invoices.InvoiceEdit, now time.Time) (Receipt, error) {
	if !edit.DepositAdded.IsPositive() {
		return Receipt{}, shared.ErrNothingToReceipt
	}
	if edit.InvoiceID != inv.ID {
		return Receipt{}, fmt.Errorf("%w: edit belongs to invoice %d", shared.ErrNotFound, edit.InvoiceID)
	}

	items := []shared.LineItem{{
		ProductCode: depositProductCode,
		Description: fmt.Sprintf("Deposit on %s (edit #%d)", inv.Reference, edit.Seq),
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   edit.DepositAdded,
	}}
	summary := shared.ComputeSummary(items, edit.DepositAdded, shared.SummaryOptions{})

	invoiceID := inv.ID
	editID := edit.ID
	completed := now
	return Receipt{
		InvoiceID:     &invoiceID,
		EditID:        &editID,
		CustomerID:    inv.CustomerID,
		SalesRepID:    inv.SalesRepID,
		Items:         items,
		Summary:       summary,
		Status:        shared.ReceiptStatusCompleted,
		PaymentMethod: edit.PaymentMethod,
		Note:          edit.Note,
		CreatedAt:     now,
		CompletedAt:   &completed,
	}, nil
}

// PlanStandalone validates a standalone receipt and computes its draft summary.
func PlanStandalone(in NewReceipt, now time.Time) (Receipt, error) {
	if in.CustomerID <= 0 {
		return Receipt{}, &shared.ValidationError{Field: "customer_id", Message: "is required"}
	}
	if err := shared.ValidateItems(in.Items); err != nil {
		return Receipt{}, err
	}
	method, err := shared.NormalizePaymentMethod(in.PaymentMethod)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{
		CustomerID:    in.CustomerID,
		SalesRepID:    in.SalesRepID,
		Items:         shared.CloneItems(in.Items),
		Summary:       shared.ComputeSummary(in.Items, decimal.Zero, standaloneOptions),
		Status:        shared.ReceiptStatusDraft,
		PaymentMethod: method,
		Signature:     in.Signature,
		Note:          in.Note,
		CreatedAt:     now,
	}, nil
}
