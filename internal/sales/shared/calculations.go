package shared

import (
	"github.com/shopspring/decimal"
)

// TaxRate is the VAT rate applied to invoices and standalone receipts.
var TaxRate = decimal.RequireFromString("0.125")

// LineItem is a single product line on a sales document.
type LineItem struct {
	ProductCode     string          `json:"product_code" validate:"required,max=64"`
	Description     string          `json:"description" validate:"max=500"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// Gross returns quantity × unit price before discount, unrounded.
func (li LineItem) Gross() decimal.Decimal {
	return li.Quantity.Mul(li.UnitPrice)
}

// Amount returns the discounted line amount rounded to currency precision.
func (li LineItem) Amount() decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(li.DiscountPercent.Div(hundred))
	return Round2(li.Gross().Mul(factor))
}

// MoneySummary is the calculator output shared by every sales document.
type MoneySummary struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountTotal   decimal.Decimal `json:"discount_total"`
	Tax             decimal.Decimal `json:"tax"`
	Total           decimal.Decimal `json:"total"`
	DepositReceived decimal.Decimal `json:"deposit_received"`
	BalanceDue      decimal.Decimal `json:"balance_due"`
}

// Equal compares two summaries to the cent.
func (m MoneySummary) Equal(o MoneySummary) bool {
	return m.Subtotal.Equal(o.Subtotal) &&
		m.DiscountTotal.Equal(o.DiscountTotal) &&
		m.Tax.Equal(o.Tax) &&
		m.Total.Equal(o.Total) &&
		m.DepositReceived.Equal(o.DepositReceived) &&
		m.BalanceDue.Equal(o.BalanceDue)
}

// SummaryOptions selects family specific rules.
type SummaryOptions struct {
	ApplyTax bool
}

// ComputeSummary totals a list of line items against a cumulative deposit.
// Every line amount is rounded before summation; document level figures are
// rounded once so client previews and persisted values agree to the cent.
func ComputeSummary(items []LineItem, depositReceived decimal.Decimal, opts SummaryOptions) MoneySummary {
	gross := decimal.Zero
	net := decimal.Zero
	for _, item := range items {
		gross = gross.Add(item.Gross())
		net = net.Add(item.Amount())
	}

	subtotal := Round2(gross)
	discount := subtotal.Sub(net)
	tax := decimal.Zero
	if opts.ApplyTax {
		tax = Round2(subtotal.Sub(discount).Mul(TaxRate))
	}
	total := subtotal.Sub(discount).Add(tax)
	deposit := Round2(depositReceived)

	return MoneySummary{
		Subtotal:        subtotal,
		DiscountTotal:   discount,
		Tax:             tax,
		Total:           total,
		DepositReceived: deposit,
		BalanceDue:      total.Sub(deposit),
	}
}

// CloneItems copies a line item slice so snapshots never alias caller memory.
func CloneItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
