package estimates

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/sales/invoices"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

type CreateEstimateRequest struct {
	CustomerID  int64             `json:"customer_id" validate:"required,gt=0"`
	SalesRepID  int64             `json:"sales_rep_id" validate:"gte=0"`
	Items       []shared.LineItem `json:"items" validate:"required,min=1,dive"`
	ValidUntil  string            `json:"valid_until" validate:"omitempty,datetime=2006-01-02"`
	Message     string            `json:"message" validate:"max=2000"`
	SaveAsDraft bool              `json:"save_as_draft"`
}

type UpdateEstimateRequest struct {
	Items      []shared.LineItem `json:"items,omitempty" validate:"omitempty,min=1,dive"`
	ValidUntil string            `json:"valid_until" validate:"omitempty,datetime=2006-01-02"`
	Message    *string           `json:"message" validate:"omitempty,max=2000"`
}

type ConvertEstimateRequest struct {
	PaymentTerms  string          `json:"payment_terms" validate:"max=120"`
	Deposit       decimal.Decimal `json:"deposit"`
	PaymentMethod string          `json:"payment_method"`
	Signature     string          `json:"signature"`
}

type EstimateResponse struct {
	ID         int64                     `json:"id"`
	Reference  string                    `json:"reference"`
	CustomerID int64                     `json:"customer_id"`
	SalesRepID int64                     `json:"sales_rep_id,omitempty"`
	Items      []shared.LineItemResponse `json:"items"`
	Summary    shared.SummaryResponse    `json:"summary"`
	Status     shared.EstimateStatus     `json:"status"`
	ValidUntil string                    `json:"valid_until"`
	Message    string                    `json:"message,omitempty"`
	InvoiceID  *int64                    `json:"invoice_id,omitempty"`
	CreatedAt  time.Time                 `json:"created_at"`
	UpdatedAt  time.Time                 `json:"updated_at"`
}

type ConvertEstimateResponse struct {
	Estimate EstimateResponse         `json:"estimate"`
	Invoice  invoices.InvoiceResponse `json:"invoice"`
}

type ListEstimatesResponse struct {
	Estimates []EstimateResponse `json:"estimates"`
	Total     int                `json:"total"`
}

func NewEstimateResponse(est Estimate) EstimateResponse {
	return EstimateResponse{
		ID:         est.ID,
		Reference:  est.Reference,
		CustomerID: est.CustomerID,
		SalesRepID: est.SalesRepID,
		Items:      shared.NewLineItemResponses(est.Items),
		Summary:    shared.NewSummaryResponse(est.Summary),
		Status:     est.Status,
		ValidUntil: est.ValidUntil.Format(time.DateOnly),
		Message:    est.Message,
		InvoiceID:  est.InvoiceID,
		CreatedAt:  est.CreatedAt,
		UpdatedAt:  est.UpdatedAt,
	}
}
