package shared

import "fmt"

// InvoiceStatus is derived from an invoice's money, except for draft.
type InvoiceStatus string

const (
	InvoiceStatusDraft    InvoiceStatus = "draft"
	InvoiceStatusPending  InvoiceStatus = "pending"
	InvoiceStatusPartial  InvoiceStatus = "partial"
	InvoiceStatusPaid     InvoiceStatus = "paid"
	InvoiceStatusOverpaid InvoiceStatus = "overpaid"
)

// EstimateStatus enumerates estimate workflow states.
type EstimateStatus string

const (
	EstimateStatusDraft     EstimateStatus = "draft"
	EstimateStatusPending   EstimateStatus = "pending"
	EstimateStatusAccepted  EstimateStatus = "accepted"
	EstimateStatusConverted EstimateStatus = "converted"
	EstimateStatusExpired   EstimateStatus = "expired"
)

// ReceiptStatus enumerates receipt states.
type ReceiptStatus string

const (
	ReceiptStatusDraft     ReceiptStatus = "draft"
	ReceiptStatusCompleted ReceiptStatus = "completed"
)

// CreditNoteStatus enumerates credit note states.
type CreditNoteStatus string

const (
	CreditNoteStatusDraft    CreditNoteStatus = "DRAFT"
	CreditNoteStatusApproved CreditNoteStatus = "APPROVED"
)

// RefundStatus enumerates refund states.
type RefundStatus string

const (
	RefundStatusDraft    RefundStatus = "DRAFT"
	RefundStatusRefunded RefundStatus = "REFUNDED"
)

// DeriveInvoiceStatus maps a money summary onto the invoice family states.
func DeriveInvoiceStatus(summary MoneySummary) InvoiceStatus {
	switch summary.BalanceDue.Sign() {
	case 1:
		if summary.DepositReceived.IsPositive() {
			return InvoiceStatusPartial
		}
		return InvoiceStatusPending
	case 0:
		return InvoiceStatusPaid
	default:
		return InvoiceStatusOverpaid
	}
}

// NextInvoiceStatus resolves the status an invoice moves to after a change.
// Draft is kept only on an explicit save-as-draft of a draft invoice.
func NextInvoiceStatus(current InvoiceStatus, summary MoneySummary, saveAsDraft bool) (InvoiceStatus, error) {
	if saveAsDraft {
		if current != "" && current != InvoiceStatusDraft {
			return "", fmt.Errorf("%w: %s invoice cannot return to draft", ErrInvalidStatus, current)
		}
		return InvoiceStatusDraft, nil
	}
	return DeriveInvoiceStatus(summary), nil
}

// Valid reports whether s is a known invoice status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusPending, InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusOverpaid:
		return true
	}
	return false
}

var estimateTransitions = map[EstimateStatus][]EstimateStatus{
	EstimateStatusDraft:    {EstimateStatusPending},
	EstimateStatusPending:  {EstimateStatusAccepted, EstimateStatusExpired},
	EstimateStatusAccepted: {EstimateStatusConverted},
}

// CanTransition reports whether an estimate may move from s to next.
func (s EstimateStatus) CanTransition(next EstimateStatus) bool {
	for _, allowed := range estimateTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// DeriveReceiptStatus maps a receipt summary to its status: a receipt is
// completed once its payment covers its total.
func DeriveReceiptStatus(summary MoneySummary) ReceiptStatus {
	if summary.BalanceDue.Sign() <= 0 && summary.DepositReceived.IsPositive() {
		return ReceiptStatusCompleted
	}
	return ReceiptStatusDraft
}

// CanTransition reports whether a receipt may move from s to next.
func (s ReceiptStatus) CanTransition(next ReceiptStatus) bool {
	return s == ReceiptStatusDraft && next == ReceiptStatusCompleted
}

// Final reports whether the credit note no longer accepts changes.
func (s CreditNoteStatus) Final() bool {
	return s == CreditNoteStatusApproved
}

// Final reports whether the refund no longer accepts changes.
func (s RefundStatus) Final() bool {
	return s == RefundStatusRefunded
}
