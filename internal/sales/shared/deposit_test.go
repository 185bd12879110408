package shared

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepositPolicyRejectsOverpaymentBeyondTolerance(t *testing.T) {
	policy := DepositPolicy{OverpaymentTolerance: decimal.Zero}

	decision := policy.Check(dec("112.50"), dec("200"), decimal.Zero)

	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "exceeds balance due 112.50")
	assertAmount(t, "112.50", decision.BalanceDue)

	err := decision.Err()
	require.Error(t, err)
	assert.True(t, IsDepositRejected(err))
}

func TestDepositPolicyAcceptsExactPayment(t *testing.T) {
	policy := DepositPolicy{}

	decision := policy.Check(dec("112.50"), dec("112.50"), decimal.Zero)

	require.True(t, decision.Allowed)
	assert.Equal(t, InvoiceStatusPaid, decision.Status)
	assertAmount(t, "0.00", decision.BalanceDue)
	assert.NoError(t, decision.Err())
}

func TestDepositPolicyPartialPayment(t *testing.T) {
	decision := DepositPolicy{}.Check(dec("62.50"), dec("100"), dec("50"))

	require.True(t, decision.Allowed)
	assert.Equal(t, InvoiceStatusPartial, decision.Status)
	assertAmount(t, "12.50", decision.BalanceDue)
}

func TestDepositPolicyHonoursTolerance(t *testing.T) {
	policy := DepositPolicy{OverpaymentTolerance: dec("5")}

	allowed := policy.Check(dec("112.50"), dec("117.50"), decimal.Zero)
	require.True(t, allowed.Allowed)
	assert.Equal(t, InvoiceStatusOverpaid, allowed.Status)

	rejected := policy.Check(dec("112.50"), dec("117.51"), decimal.Zero)
	assert.False(t, rejected.Allowed)
}

func TestDepositPolicyRejectsNegativeAndReducedDeposits(t *testing.T) {
	policy := DepositPolicy{}

	negative := policy.Check(dec("10"), dec("-1"), decimal.Zero)
	assert.False(t, negative.Allowed)
	assert.Contains(t, negative.Reason, "negative")

	reduced := policy.Check(dec("10"), dec("40"), dec("50"))
	assert.False(t, reduced.Allowed)
	assert.Contains(t, reduced.Reason, "cannot be reduced")
}

func TestDepositPolicyUnchangedDepositAlwaysAllowed(t *testing.T) {
	// Removing items can leave an existing deposit above the new total.
	decision := DepositPolicy{}.Check(dec("-20"), dec("50"), dec("50"))

	require.True(t, decision.Allowed)
	assert.Equal(t, InvoiceStatusOverpaid, decision.Status)
}
