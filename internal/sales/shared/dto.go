package shared

// LineItemResponse renders a line item with fixed two-digit money fields.
type LineItemResponse struct {
	ProductCode     string `json:"product_code"`
	Description     string `json:"description,omitempty"`
	Quantity        string `json:"quantity"`
	UnitPrice       string `json:"unit_price"`
	DiscountPercent string `json:"discount_percent"`
	Amount          string `json:"amount"`
}

// SummaryResponse renders a MoneySummary.
type SummaryResponse struct {
	Subtotal        string `json:"subtotal"`
	DiscountTotal   string `json:"discount_total"`
	Tax             string `json:"tax"`
	Total           string `json:"total"`
	DepositReceived string `json:"deposit_received"`
	BalanceDue      string `json:"balance_due"`
}

func NewLineItemResponses(items []LineItem) []LineItemResponse {
	out := make([]LineItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, LineItemResponse{
			ProductCode:     item.ProductCode,
			Description:     item.Description,
			Quantity:        item.Quantity.String(),
			UnitPrice:       FormatAmount(item.UnitPrice),
			DiscountPercent: item.DiscountPercent.String(),
			Amount:          FormatAmount(item.Amount()),
		})
	}
	return out
}

func NewSummaryResponse(m MoneySummary) SummaryResponse {
	return SummaryResponse{
		Subtotal:        FormatAmount(m.Subtotal),
		DiscountTotal:   FormatAmount(m.DiscountTotal),
		Tax:             FormatAmount(m.Tax),
		Total:           FormatAmount(m.Total),
		DepositReceived: FormatAmount(m.DepositReceived),
		BalanceDue:      FormatAmount(m.BalanceDue),
	}
}
