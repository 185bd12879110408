// Package estimates manages price estimates and their conversion into invoices.
package estimates

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

// DefaultValidity applies when an estimate is created without ValidUntil.
const DefaultValidity = 30 * 24 * time.Hour

// Estimate is a priced offer to a customer. Estimates never carry tax or
// deposits; InvoiceID is set once the estimate is converted.
type Estimate struct {
	ID         int64
	Reference  string
	CustomerID int64
	SalesRepID int64
	Items      []shared.LineItem
	Summary    shared.MoneySummary
	Status     shared.EstimateStatus
	ValidUntil time.Time
	Message    string
	InvoiceID  *int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Expired reports whether the estimate's validity ended before asOf.
func (e Estimate) Expired(asOf time.Time) bool {
	return e.ValidUntil.Before(truncateDay(asOf))
}

type NewEstimate struct {
	CustomerID  int64
	SalesRepID  int64
	Items       []shared.LineItem
	ValidUntil  time.Time
	Message     string
	SaveAsDraft bool
}

// UpdateEstimate replaces the editable fields of a draft estimate. Nil Items
// and a zero ValidUntil keep the stored values.
type UpdateEstimate struct {
	Items      []shared.LineItem
	ValidUntil time.Time
	Message    *string
}

// ConvertOptions carries the invoice fields an estimate does not have.
type ConvertOptions struct {
	PaymentTerms  string
	Deposit       decimal.Decimal
	PaymentMethod string
	Signature     string
}

type ListFilter struct {
	CustomerID *int64
	Status     *shared.EstimateStatus
	Limit      int
	Offset     int
}

var summaryOptions = shared.SummaryOptions{}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
