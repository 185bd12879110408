// Package receipts issues payment receipts, either standalone or mirrored
// from a deposit recorded in an invoice edit.
package receipts

import (
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

// Receipt is a payment document. InvoiceID and EditID are set together for
// receipts generated from an invoice edit; the pair is unique.
type Receipt struct {
	ID            int64
	ReceiptNumber string
	InvoiceID     *int64
	EditID        *uuid.UUID
	CustomerID    int64
	SalesRepID    int64
	Items         []shared.LineItem
	Summary       shared.MoneySummary
	Status        shared.ReceiptStatus
	PaymentMethod shared.PaymentMethod
	Signature     string
	Note          string
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// FromEdit reports whether the receipt mirrors an invoice edit.
func (r Receipt) FromEdit() bool {
	return r.InvoiceID != nil && r.EditID != nil
}

// NewReceipt is the input for a standalone receipt.
type NewReceipt struct {
	CustomerID    int64
	SalesRepID    int64
	Items         []shared.LineItem
	PaymentMethod string
	Signature     string
	Note          string
}

// ListFilter narrows receipt listings.
type ListFilter struct {
	InvoiceID *int64
	Status    *shared.ReceiptStatus
	Limit     int
	Offset    int
}

// standaloneOptions applies the fixed rate to a standalone receipt's own subtotal.
var standaloneOptions = shared.SummaryOptions{ApplyTax: true}

// depositProductCode marks the single line of a receipt mirrored from an edit.
const depositProductCode = "DEPOSIT"
