package returns

import (
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

type CreateCreditNoteRequest struct {
	CustomerID int64             `json:"customer_id" validate:"required,gt=0"`
	SalesRepID int64             `json:"sales_rep_id" validate:"gte=0"`
	Source     string            `json:"source" validate:"required,oneof=FROM_INVOICE STANDALONE"`
	InvoiceID  *int64            `json:"invoice_id" validate:"omitempty,gt=0"`
	Items      []shared.LineItem `json:"items" validate:"required,min=1,dive"`
	Signature  string            `json:"signature"`
	Reason     string            `json:"reason" validate:"max=500"`
}

type CreateRefundRequest struct {
	CustomerID    int64             `json:"customer_id" validate:"gte=0"`
	SalesRepID    int64             `json:"sales_rep_id" validate:"gte=0"`
	Source        string            `json:"source" validate:"required,oneof=FROM_CREDITNOTE STANDALONE"`
	CreditNoteID  *int64            `json:"credit_note_id" validate:"omitempty,gt=0"`
	Items         []shared.LineItem `json:"items,omitempty" validate:"omitempty,dive"`
	PaymentMethod string            `json:"payment_method"`
	Signature     string            `json:"signature"`
	Reason        string            `json:"reason" validate:"max=500"`
}

type UpdateDraftRequest struct {
	Items     []shared.LineItem `json:"items,omitempty" validate:"omitempty,min=1,dive"`
	Signature *string           `json:"signature"`
	Reason    *string           `json:"reason" validate:"omitempty,max=500"`
}

type FinalizeRequest struct {
	Signature string `json:"signature"`
}

type CreditNoteResponse struct {
	ID         int64                     `json:"id"`
	Reference  string                    `json:"reference"`
	CustomerID int64                     `json:"customer_id"`
	SalesRepID int64                     `json:"sales_rep_id,omitempty"`
	Source     CreditNoteSource          `json:"source"`
	InvoiceID  *int64                    `json:"invoice_id,omitempty"`
	Items      []shared.LineItemResponse `json:"items"`
	Summary    shared.SummaryResponse    `json:"summary"`
	Status     shared.CreditNoteStatus   `json:"status"`
	Signature  string                    `json:"signature,omitempty"`
	Reason     string                    `json:"reason,omitempty"`
	CreatedAt  time.Time                 `json:"created_at"`
	ApprovedAt *time.Time                `json:"approved_at,omitempty"`
}

type RefundResponse struct {
	ID            int64                     `json:"id"`
	Reference     string                    `json:"reference"`
	CustomerID    int64                     `json:"customer_id"`
	SalesRepID    int64                     `json:"sales_rep_id,omitempty"`
	Source        RefundSource              `json:"source"`
	CreditNoteID  *int64                    `json:"credit_note_id,omitempty"`
	Items         []shared.LineItemResponse `json:"items"`
	Summary       shared.SummaryResponse    `json:"summary"`
	Status        shared.RefundStatus       `json:"status"`
	PaymentMethod string                    `json:"payment_method"`
	Signature     string                    `json:"signature,omitempty"`
	Reason        string                    `json:"reason,omitempty"`
	CreatedAt     time.Time                 `json:"created_at"`
	RefundedAt    *time.Time                `json:"refunded_at,omitempty"`
}

type ListCreditNotesResponse struct {
	CreditNotes []CreditNoteResponse `json:"credit_notes"`
	Total       int                  `json:"total"`
}

type ListRefundsResponse struct {
	Refunds []RefundResponse `json:"refunds"`
	Total   int              `json:"total"`
}

func NewCreditNoteResponse(note CreditNote) CreditNoteResponse {
	return CreditNoteResponse{
		ID:         note.ID,
		Reference:  note.Reference,
		CustomerID: note.CustomerID,
		SalesRepID: note.SalesRepID,
		Source:     note.Source,
		InvoiceID:  note.InvoiceID,
		Items:      shared.NewLineItemResponses(note.Items),
		Summary:    shared.NewSummaryResponse(note.Summary),
		Status:     note.Status,
		Signature:  note.Signature,
		Reason:     note.Reason,
		CreatedAt:  note.CreatedAt,
		ApprovedAt: note.ApprovedAt,
	}
}

func NewRefundResponse(refund Refund) RefundResponse {
	return RefundResponse{
		ID:            refund.ID,
		Reference:     refund.Reference,
		CustomerID:    refund.CustomerID,
		SalesRepID:    refund.SalesRepID,
		Source:        refund.Source,
		CreditNoteID:  refund.CreditNoteID,
		Items:         shared.NewLineItemResponses(refund.Items),
		Summary:       shared.NewSummaryResponse(refund.Summary),
		Status:        refund.Status,
		PaymentMethod: string(refund.PaymentMethod),
		Signature:     refund.Signature,
		Reason:        refund.Reason,
		CreatedAt:     refund.CreatedAt,
		RefundedAt:    refund.RefundedAt,
	}
}
