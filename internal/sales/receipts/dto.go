package receipts

import (
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

type CreateReceiptRequest struct {
	CustomerID    int64             `json:"customer_id" validate:"required,gt=0"`
	SalesRepID    int64             `json:"sales_rep_id" validate:"gte=0"`
	Items         []shared.LineItem `json:"items" validate:"required,min=1,dive"`
	PaymentMethod string            `json:"payment_method"`
	Signature     string            `json:"signature"`
	Note          string            `json:"note" validate:"max=500"`
}

type CompleteReceiptRequest struct {
	Signature string `json:"signature"`
}

type ReceiptResponse struct {
	ID            int64                     `json:"id"`
	ReceiptNumber string                    `json:"receipt_number"`
	InvoiceID     *int64                    `json:"invoice_id,omitempty"`
	EditID        string                    `json:"edit_id,omitempty"`
	CustomerID    int64                     `json:"customer_id"`
	SalesRepID    int64                     `json:"sales_rep_id,omitempty"`
	Items         []shared.LineItemResponse `json:"items"`
	Summary       shared.SummaryResponse    `json:"summary"`
	Status        shared.ReceiptStatus      `json:"status"`
	PaymentMethod string                    `json:"payment_method"`
	Signature     string                    `json:"signature,omitempty"`
	Note          string                    `json:"note,omitempty"`
	CreatedAt     time.Time                 `json:"created_at"`
	CompletedAt   *time.Time                `json:"completed_at,omitempty"`
}

// GenerateReceiptResponse is returned by the receipt-from-edit endpoint.
type GenerateReceiptResponse struct {
	Receipt        ReceiptResponse `json:"receipt"`
	AlreadyExisted bool            `json:"already_existed"`
}

type ListReceiptsResponse struct {
	Receipts []ReceiptResponse `json:"receipts"`
	Total    int               `json:"total"`
}

func NewReceiptResponse(rec Receipt) ReceiptResponse {
	resp := ReceiptResponse{
		ID:            rec.ID,
		ReceiptNumber: rec.ReceiptNumber,
		InvoiceID:     rec.InvoiceID,
		CustomerID:    rec.CustomerID,
		SalesRepID:    rec.SalesRepID,
		Items:         shared.NewLineItemResponses(rec.Items),
		Summary:       shared.NewSummaryResponse(rec.Summary),
		Status:        rec.Status,
		PaymentMethod: string(rec.PaymentMethod),
		Signature:     rec.Signature,
		Note:          rec.Note,
		CreatedAt:     rec.CreatedAt,
		CompletedAt:   rec.CompletedAt,
	}
	if rec.EditID != nil {
		resp.EditID = rec.EditID.String()
	}
	return resp
}
