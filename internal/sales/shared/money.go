package shared

import (
	"math/big"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the number of fractional digits carried by every amount.
const CurrencyPlaces = 2

var hundred = decimal.NewFromInt(100)

// Round2 rounds half away from zero to currency precision.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPlaces)
}

// FormatAmount renders an amount with exactly two fractional digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(CurrencyPlaces)
}

// ParseAmount parses a decimal string as submitted by clients.
func ParseAmount(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: field, Message: "must be a decimal number"}
	}
	return d, nil
}

// NumericToDecimal converts a scanned NUMERIC column.
func NumericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(new(big.Int).Set(n.Int), n.Exp)
}

// DecimalToNumeric converts an amount into a NUMERIC parameter at currency precision.
func DecimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	r := Round2(d)
	return pgtype.Numeric{Int: r.Shift(CurrencyPlaces).BigInt(), Exp: -CurrencyPlaces, Valid: true}
}
