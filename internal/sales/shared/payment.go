package shared

import "strings"

// PaymentMethod records how a deposit was tendered.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCard         PaymentMethod = "card"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentMobileMoney  PaymentMethod = "mobile_money"
	PaymentCheque       PaymentMethod = "cheque"
)

// NormalizePaymentMethod trims and lowercases raw input, defaulting to cash.
func NormalizePaymentMethod(raw string) (PaymentMethod, error) {
	method := PaymentMethod(strings.ToLower(strings.TrimSpace(raw)))
	if method == "" {
		return PaymentCash, nil
	}
	switch method {
	case PaymentCash, PaymentCard, PaymentBankTransfer, PaymentMobileMoney, PaymentCheque:
		return method, nil
	}
	return "", &ValidationError{Field: "payment_method", Message: "must be one of cash, card, bank_transfer, mobile_money, cheque"}
}
