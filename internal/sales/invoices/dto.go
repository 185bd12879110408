package invoices

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

type CreateInvoiceRequest struct {
	CustomerID    int64             `json:"customer_id" validate:"required,gt=0"`
	SalesRepID    int64             `json:"sales_rep_id" validate:"gte=0"`
	PaymentTerms  string            `json:"payment_terms" validate:"max=120"`
	Message       string            `json:"message" validate:"max=2000"`
	Signature     string            `json:"signature"`
	Items         []shared.LineItem `json:"items" validate:"required,min=1,dive"`
	Deposit       decimal.Decimal   `json:"deposit"`
	PaymentMethod string            `json:"payment_method"`
	SaveAsDraft   bool              `json:"save_as_draft"`
}

type AppendEditRequest struct {
	Items         []shared.LineItem `json:"items,omitempty" validate:"omitempty,min=1,dive"`
	DepositAdded  decimal.Decimal   `json:"deposit_added"`
	PaymentMethod string            `json:"payment_method"`
	Note          string            `json:"note" validate:"max=500"`
	SaveAsDraft   bool              `json:"save_as_draft"`
}

type FinalizeRequest struct {
	Note string `json:"note" validate:"max=500"`
}

type PreviewSummaryRequest struct {
	Items    []shared.LineItem `json:"items" validate:"required,min=1,dive"`
	Deposit  decimal.Decimal   `json:"deposit"`
	ApplyTax *bool             `json:"apply_tax"`
}

type PreviewSummaryResponse struct {
	Items   []shared.LineItemResponse `json:"items"`
	Summary shared.SummaryResponse    `json:"summary"`
	Status  shared.InvoiceStatus      `json:"status"`
}

// DepositCheckRequest accepts either an invoice to project against or the
// three raw guard inputs.
type DepositCheckRequest struct {
	InvoiceID        int64             `json:"invoice_id" validate:"gte=0"`
	Items            []shared.LineItem `json:"items,omitempty" validate:"omitempty,dive"`
	DepositAdded     decimal.Decimal   `json:"deposit_added"`
	ProjectedBalance decimal.Decimal   `json:"projected_balance"`
	ProposedDeposit  decimal.Decimal   `json:"proposed_deposit"`
	ExistingDeposit  decimal.Decimal   `json:"existing_deposit"`
}

type DepositCheckResponse struct {
	Allowed    bool                 `json:"allowed"`
	Reason     string               `json:"reason,omitempty"`
	Status     shared.InvoiceStatus `json:"status,omitempty"`
	BalanceDue string               `json:"balance_due"`
}

type EditResponse struct {
	ID              string                    `json:"id"`
	InvoiceID       int64                     `json:"invoice_id"`
	Seq             int                       `json:"seq"`
	CreatedAt       time.Time                 `json:"created_at"`
	Items           []shared.LineItemResponse `json:"items"`
	DepositAdded    string                    `json:"deposit_added"`
	DepositReceived string                    `json:"deposit_received"`
	PaymentMethod   string                    `json:"payment_method,omitempty"`
	Summary         shared.SummaryResponse    `json:"summary"`
	Status          shared.InvoiceStatus      `json:"status"`
	Note            string                    `json:"note,omitempty"`
}

type InvoiceResponse struct {
	ID           int64                     `json:"id"`
	Reference    string                    `json:"reference"`
	CustomerID   int64                     `json:"customer_id"`
	SalesRepID   int64                     `json:"sales_rep_id,omitempty"`
	PaymentTerms string                    `json:"payment_terms,omitempty"`
	Message      string                    `json:"message,omitempty"`
	Signature    string                    `json:"signature,omitempty"`
	Items        []shared.LineItemResponse `json:"items"`
	CurrentItems []shared.LineItemResponse `json:"current_items"`
	Summary      shared.SummaryResponse    `json:"summary"`
	Status       shared.InvoiceStatus      `json:"status"`
	LastSeq      int                       `json:"last_seq"`
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
	Edits        []EditResponse            `json:"edits,omitempty"`
}

type ListInvoicesResponse struct {
	Invoices []InvoiceResponse `json:"invoices"`
	Total    int               `json:"total"`
}

func NewEditResponse(edit InvoiceEdit) EditResponse {
	return EditResponse{
		ID:              edit.ID.String(),
		InvoiceID:       edit.InvoiceID,
		Seq:             edit.Seq,
		CreatedAt:       edit.CreatedAt,
		Items:           shared.NewLineItemResponses(edit.Items),
		DepositAdded:    shared.FormatAmount(edit.DepositAdded),
		DepositReceived: shared.FormatAmount(edit.DepositReceived),
		PaymentMethod:   string(edit.PaymentMethod),
		Summary:         shared.NewSummaryResponse(edit.Summary),
		Status:          edit.Status,
		Note:            edit.Note,
	}
}

func NewInvoiceResponse(inv Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:           inv.ID,
		Reference:    inv.Reference,
		CustomerID:   inv.CustomerID,
		SalesRepID:   inv.SalesRepID,
		PaymentTerms: inv.PaymentTerms,
		Message:      inv.Message,
		Signature:    inv.Signature,
		Items:        shared.NewLineItemResponses(inv.Items),
		CurrentItems: shared.NewLineItemResponses(inv.CurrentItems),
		Summary:      shared.NewSummaryResponse(inv.Summary),
		Status:       inv.Status,
		LastSeq:      inv.LastSeq,
		CreatedAt:    inv.CreatedAt,
		UpdatedAt:    inv.UpdatedAt,
	}
	for _, edit := range inv.Edits {
		resp.Edits = append(resp.Edits, NewEditResponse(edit))
	}
	return resp
}

func newDepositCheckResponse(d shared.DepositDecision) DepositCheckResponse {
	return DepositCheckResponse{
		Allowed:    d.Allowed,
		Reason:     d.Reason,
		Status:     d.Status,
		BalanceDue: shared.FormatAmount(d.BalanceDue),
	}
}
