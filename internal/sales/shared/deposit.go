package shared

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DepositPolicy holds the business's overpayment tolerance.
type DepositPolicy struct {
	OverpaymentTolerance decimal.Decimal
}

// DepositDecision is the guard's verdict on a proposed cumulative deposit.
type DepositDecision struct {
	Allowed    bool            `json:"allowed"`
	Reason     string          `json:"reason,omitempty"`
	Status     InvoiceStatus   `json:"status,omitempty"`
	BalanceDue decimal.Decimal `json:"balance_due"`
}

// Err converts a refusal into a DepositRejectedError.
func (d DepositDecision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DepositRejectedError{Reason: d.Reason}
}

// Check decides whether proposedDeposit may replace existingDeposit given the
// balance projected from the new item set with the existing deposit applied.
func (p DepositPolicy) Check(projectedBalance, proposedDeposit, existingDeposit decimal.Decimal) DepositDecision {
	projectedBalance = Round2(projectedBalance)
	proposedDeposit = Round2(proposedDeposit)
	existingDeposit = Round2(existingDeposit)
	tolerance := Round2(decimal.Max(p.OverpaymentTolerance, decimal.Zero))

	if proposedDeposit.IsNegative() {
		return DepositDecision{Reason: "deposit cannot be negative", BalanceDue: projectedBalance}
	}
	if proposedDeposit.LessThan(existingDeposit) {
		return DepositDecision{
			Reason: fmt.Sprintf("deposit cannot be reduced from %s to %s; record a refund instead",
				FormatAmount(existingDeposit), FormatAmount(proposedDeposit)),
			BalanceDue: projectedBalance,
		}
	}

	delta := proposedDeposit.Sub(existingDeposit)
	balance := projectedBalance.Sub(delta)
	if delta.IsPositive() && balance.Neg().GreaterThan(tolerance) {
		return DepositDecision{
			Reason: fmt.Sprintf("deposit of %s exceeds balance due %s by %s (tolerance %s)",
				FormatAmount(delta), FormatAmount(projectedBalance), FormatAmount(balance.Neg()), FormatAmount(tolerance)),
			BalanceDue: projectedBalance,
		}
	}

	return DepositDecision{
		Allowed:    true,
		Status:     DeriveInvoiceStatus(MoneySummary{BalanceDue: balance, DepositReceived: proposedDeposit}),
		BalanceDue: balance,
	}
}
