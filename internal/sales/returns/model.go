// Package returns records credit notes against sales and the refunds paid
// out of them.
package returns

import (
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

type CreditNoteSource string

const (
	CreditNoteFromInvoice CreditNoteSource = "FROM_INVOICE"
	CreditNoteStandalone  CreditNoteSource = "STANDALONE"
)

type RefundSource string

const (
	RefundFromCreditNote RefundSource = "FROM_CREDITNOTE"
	RefundStandalone     RefundSource = "STANDALONE"
)

// CreditNote acknowledges an amount owed back to a customer. It is editable
// while DRAFT and final once APPROVED.
type CreditNote struct {
	ID         int64
	Reference  string
	CustomerID int64
	SalesRepID int64
	Source     CreditNoteSource
	InvoiceID  *int64
	Items      []shared.LineItem
	Summary    shared.MoneySummary
	Status     shared.CreditNoteStatus
	Signature  string
	Reason     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ApprovedAt *time.Time
}

// Refund pays money back, optionally against an approved credit note.
type Refund struct {
	ID            int64
	Reference     string
	CustomerID    int64
	SalesRepID    int64
	Source        RefundSource
	CreditNoteID  *int64
	Items         []shared.LineItem
	Summary       shared.MoneySummary
	Status        shared.RefundStatus
	PaymentMethod shared.PaymentMethod
	Signature     string
	Reason        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	RefundedAt    *time.Time
}

type NewCreditNote struct {
	CustomerID int64
	SalesRepID int64
	Source     CreditNoteSource
	InvoiceID  *int64
	Items      []shared.LineItem
	Signature  string
	Reason     string
}

// NewRefund creates a refund. Items may be empty for a refund from a credit
// note, in which case the note's items are refunded in full.
type NewRefund struct {
	CustomerID    int64
	SalesRepID    int64
	Source        RefundSource
	CreditNoteID  *int64
	Items         []shared.LineItem
	PaymentMethod string
	Signature     string
	Reason        string
}

// DraftUpdate replaces the editable fields of a draft document. Nil fields
// keep their stored values.
type DraftUpdate struct {
	Items     []shared.LineItem
	Signature *string
	Reason    *string
}

type ListFilter struct {
	CustomerID *int64
	Status     string
	Limit      int
	Offset     int
}

var summaryOptions = shared.SummaryOptions{}
