package shared

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

// NumericSummary holds the six NUMERIC(14,2) money columns of a document row.
type NumericSummary struct {
	Subtotal        pgtype.Numeric
	DiscountTotal   pgtype.Numeric
	Tax             pgtype.Numeric
	Total           pgtype.Numeric
	DepositReceived pgtype.Numeric
	BalanceDue      pgtype.Numeric
}

// Targets returns scan destinations in column order.
func (n *NumericSummary) Targets() []any {
	return []any{&n.Subtotal, &n.DiscountTotal, &n.Tax, &n.Total, &n.DepositReceived, &n.BalanceDue}
}

// Summary converts the scanned columns.
func (n NumericSummary) Summary() MoneySummary {
	return MoneySummary{
		Subtotal:        NumericToDecimal(n.Subtotal),
		DiscountTotal:   NumericToDecimal(n.DiscountTotal),
		Tax:             NumericToDecimal(n.Tax),
		Total:           NumericToDecimal(n.Total),
		DepositReceived: NumericToDecimal(n.DepositReceived),
		BalanceDue:      NumericToDecimal(n.BalanceDue),
	}
}

// SummaryArgs returns query arguments in column order.
func SummaryArgs(m MoneySummary) []any {
	return []any{
		DecimalToNumeric(m.Subtotal),
		DecimalToNumeric(m.DiscountTotal),
		DecimalToNumeric(m.Tax),
		DecimalToNumeric(m.Total),
		DecimalToNumeric(m.DepositReceived),
		DecimalToNumeric(m.BalanceDue),
	}
}

// MarshalItems encodes a line item snapshot for a JSONB column.
func MarshalItems(items []LineItem) ([]byte, error) {
	if items == nil {
		items = []LineItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	return raw, nil
}

// UnmarshalItems decodes a JSONB line item snapshot.
func UnmarshalItems(raw []byte) ([]LineItem, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []LineItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return items, nil
}
