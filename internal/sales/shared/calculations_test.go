package shared

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func item(code, qty, price, discount string) LineItem {
	return LineItem{ProductCode: code, Quantity: dec(qty), UnitPrice: dec(price), DiscountPercent: dec(discount)}
}

func assertAmount(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.Equal(t, expected, FormatAmount(actual))
}

func TestComputeSummarySingleLineWithTax(t *testing.T) {
	summary := ComputeSummary([]LineItem{item("SKU-1", "2", "50", "0")}, decimal.Zero, SummaryOptions{ApplyTax: true})

	assertAmount(t, "100.00", summary.Subtotal)
	assertAmount(t, "0.00", summary.DiscountTotal)
	assertAmount(t, "12.50", summary.Tax)
	assertAmount(t, "112.50", summary.Total)
	assertAmount(t, "0.00", summary.DepositReceived)
	assertAmount(t, "112.50", summary.BalanceDue)
	assert.Equal(t, InvoiceStatusPending, DeriveInvoiceStatus(summary))
}

func TestComputeSummaryWithoutTax(t *testing.T) {
	summary := ComputeSummary([]LineItem{item("SKU-1", "2", "50", "0")}, dec("20"), SummaryOptions{})

	assertAmount(t, "0.00", summary.Tax)
	assertAmount(t, "100.00", summary.Total)
	assertAmount(t, "80.00", summary.BalanceDue)
}

func TestComputeSummaryDiscountsRoundPerLine(t *testing.T) {
	items := []LineItem{
		item("SKU-1", "3", "0.35", "10"),  // 1.05 gross, 0.945 -> 0.95
		item("SKU-2", "1", "19.99", "15"), // 16.9915 -> 16.99
		item("SKU-3", "0.5", "7.25", "0"), // 3.625 gross, amount 3.63
	}
	summary := ComputeSummary(items, decimal.Zero, SummaryOptions{ApplyTax: true})

	assertAmount(t, "24.67", summary.Subtotal) // 1.05 + 19.99 + 3.625 = 24.665
	assertAmount(t, "3.10", summary.DiscountTotal)
	assertAmount(t, "2.70", summary.Tax) // 12.5% of 21.57 = 2.69625
	assertAmount(t, "24.27", summary.Total)
}

func TestComputeSummaryLaws(t *testing.T) {
	items := []LineItem{
		item("A", "4", "12.345", "12.5"),
		item("B", "1", "0.01", "50"),
		item("C", "7", "3.3333", "33.3"),
	}
	summary := ComputeSummary(items, dec("10.005"), SummaryOptions{ApplyTax: true})

	gross := decimal.Zero
	net := decimal.Zero
	for _, it := range items {
		gross = gross.Add(it.Gross())
		net = net.Add(it.Amount())
	}
	assert.True(t, summary.Subtotal.Equal(Round2(gross)))
	assert.True(t, summary.DiscountTotal.Equal(summary.Subtotal.Sub(net)))
	assert.True(t, summary.Total.Equal(summary.Subtotal.Sub(summary.DiscountTotal).Add(summary.Tax)))
	assert.True(t, summary.BalanceDue.Equal(summary.Total.Sub(summary.DepositReceived)))
	assertAmount(t, "10.01", summary.DepositReceived)
}

func TestComputeSummaryIsDeterministic(t *testing.T) {
	items := []LineItem{item("A", "3", "33.335", "7.5"), item("B", "2", "1.115", "0")}
	first := ComputeSummary(items, dec("5"), SummaryOptions{ApplyTax: true})
	second := ComputeSummary(CloneItems(items), dec("5.00"), SummaryOptions{ApplyTax: true})
	require.True(t, first.Equal(second))
}

func TestLineItemAmountFullDiscount(t *testing.T) {
	assertAmount(t, "0.00", item("A", "5", "9.99", "100").Amount())
}

func TestRound2HalfAwayFromZero(t *testing.T) {
	assertAmount(t, "0.13", Round2(dec("0.125")))
	assertAmount(t, "-0.13", Round2(dec("-0.125")))
	assertAmount(t, "2.00", Round2(dec("1.995")))
}

func TestCloneItemsDoesNotAlias(t *testing.T) {
	items := []LineItem{item("A", "1", "1", "0")}
	clone := CloneItems(items)
	clone[0].ProductCode = "B"
	assert.Equal(t, "A", items[0].ProductCode)
	assert.Nil(t, CloneItems(nil))
}

func TestNumericRoundTrip(t *testing.T) {
	n := DecimalToNumeric(dec("112.499"))
	assertAmount(t, "112.50", NumericToDecimal(n))
	assert.Equal(t, int32(-2), n.Exp)
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount("deposit", "12.50")
	require.NoError(t, err)
	assertAmount(t, "12.50", d)

	d, err = ParseAmount("deposit", "")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = ParseAmount("deposit", "twelve")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "deposit", ve.Field)
}
