// Package invoices holds the invoice aggregate and its append-only edit ledger.
package invoices

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

// ErrConcurrentEdit reports a ledger append that lost a race for its sequence.
var ErrConcurrentEdit = fmt.Errorf("invoices: concurrent edit: %w", httpx.ErrConflict)

// Invoice is the aggregate root. Items, InitialDeposit and InitialStatus are
// the creation values and never change; CurrentItems, Summary, Status and
// LastSeq are the fold of the ledger and are persisted alongside it.
type Invoice struct {
	ID             int64
	Reference      string
	CustomerID     int64
	SalesRepID     int64
	PaymentTerms   string
	Message        string
	Signature      string
	Items          []shared.LineItem
	InitialDeposit decimal.Decimal
	InitialStatus  shared.InvoiceStatus
	CurrentItems   []shared.LineItem
	Summary        shared.MoneySummary
	Status         shared.InvoiceStatus
	LastSeq        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Edits          []InvoiceEdit
}

// InvoiceEdit is one immutable ledger entry. DepositReceived is always the
// running cumulative deposit after this edit.
type InvoiceEdit struct {
	ID              uuid.UUID
	InvoiceID       int64
	Seq             int
	CreatedAt       time.Time
	Items           []shared.LineItem
	DepositAdded    decimal.Decimal
	DepositReceived decimal.Decimal
	PaymentMethod   shared.PaymentMethod
	Summary         shared.MoneySummary
	Status          shared.InvoiceStatus
	Note            string
}

// NewInvoice is the validated input for invoice creation.
type NewInvoice struct {
	CustomerID    int64
	SalesRepID    int64
	PaymentTerms  string
	Message       string
	Signature     string
	Items         []shared.LineItem
	Deposit       decimal.Decimal
	PaymentMethod shared.PaymentMethod
	SaveAsDraft   bool
}

// EditRequest describes one change to an existing invoice. A nil Items keeps
// the current item set.
type EditRequest struct {
	Items         []shared.LineItem
	DepositAdded  decimal.Decimal
	PaymentMethod string
	Note          string
	SaveAsDraft   bool
	// RequireDraft rejects the edit unless the locked invoice is still draft.
	RequireDraft bool
}

// ListFilter narrows invoice listings.
type ListFilter struct {
	CustomerID *int64
	Status     *shared.InvoiceStatus
	Limit      int
	Offset     int
	// BeforeID restricts the page to invoices with a smaller id. Zero means
	// no cursor. Scans that must not revisit rows page with it instead of Offset.
	BeforeID int64
}

// summaryOptions is the calculator configuration for the invoice family.
var summaryOptions = shared.SummaryOptions{ApplyTax: true}
