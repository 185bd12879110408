package invoices

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

// IdempotencyKeyHeader lets clients retry invoice creation safely.
const IdempotencyKeyHeader = "Idempotency-Key"

const idempotencyModule = "sales.invoices.create"

// IdempotencyStore remembers processed creation keys.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Handler serves the invoice JSON API.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency IdempotencyStore
}

// NewHandler constructs the handler. idempotency may be nil.
func NewHandler(logger *slog.Logger, service *Service, idempotency IdempotencyStore) *Handler {
	return &Handler{logger: logger, service: service, idempotency: idempotency}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := shared.ValidateStruct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	method, err := shared.NormalizePaymentMethod(req.PaymentMethod)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	key := r.Header.Get(IdempotencyKeyHeader)
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, idempotencyModule); err != nil {
			h.respond(w, r, err)
			return
		}
	}

	inv, err := h.service.CreateInvoice(r.Context(), NewInvoice{
		CustomerID:    req.CustomerID,
		SalesRepID:    req.SalesRepID,
		PaymentTerms:  req.PaymentTerms,
		Message:       req.Message,
		Signature:     req.Signature,
		Items:         req.Items,
		Deposit:       req.Deposit,
		PaymentMethod: method,
		SaveAsDraft:   req.SaveAsDraft,
	})
	if err != nil {
		if key != "" && h.idempotency != nil {
			if delErr := h.idempotency.Delete(context.WithoutCancel(r.Context()), key); delErr != nil {
				h.logger.Warn("release idempotency key failed", slog.Any("error", delErr))
			}
		}
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, NewInvoiceResponse(inv))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter ListFilter
	if raw := q.Get("customer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, &shared.ValidationError{Field: "customer_id", Message: "must be an integer"})
			return
		}
		filter.CustomerID = &id
	}
	if raw := q.Get("status"); raw != "" {
		status := shared.InvoiceStatus(raw)
		if !status.Valid() {
			httpx.RespondError(w, &shared.ValidationError{Field: "status", Message: "unknown invoice status"})
			return
		}
		filter.Status = &status
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))
	if raw := q.Get("before_id"); raw != "" {
		before, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || before < 0 {
			httpx.RespondError(w, &shared.ValidationError{Field: "before_id", Message: "must be a non-negative integer"})
			return
		}
		filter.BeforeID = before
	}

	invoices, total, err := h.service.ListInvoices(r.Context(), filter)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	resp := ListInvoicesResponse{Invoices: make([]InvoiceResponse, 0, len(invoices)), Total: total}
	for _, inv := range invoices {
		resp.Invoices = append(resp.Invoices, NewInvoiceResponse(inv))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewInvoiceResponse(inv))
}

func (h *Handler) AppendEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}
	var req AppendEditRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := shared.ValidateStruct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	edit, err := h.service.AppendEdit(r.Context(), id, EditRequest{
		Items:         req.Items,
		DepositAdded:  req.DepositAdded,
		PaymentMethod: req.PaymentMethod,
		Note:          req.Note,
		SaveAsDraft:   req.SaveAsDraft,
	})
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, NewEditResponse(edit))
}

func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}
	var req FinalizeRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	edit, err := h.service.Finalize(r.Context(), id, req.Note)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewEditResponse(edit))
}

func (h *Handler) ListEdits(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}
	edits, err := h.service.ListEdits(r.Context(), id)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	resp := make([]EditResponse, 0, len(edits))
	for _, edit := range edits {
		resp = append(resp, NewEditResponse(edit))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) ShowEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}
	editID, err := uuid.Parse(chi.URLParam(r, "editID"))
	if err != nil {
		httpx.RespondError(w, &shared.ValidationError{Field: "edit_id", Message: "must be a UUID"})
		return
	}
	edit, err := h.service.GetEdit(r.Context(), id, editID)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewEditResponse(edit))
}

func (h *Handler) PreviewSummary(w http.ResponseWriter, r *http.Request) {
	var req PreviewSummaryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	applyTax := true
	if req.ApplyTax != nil {
		applyTax = *req.ApplyTax
	}
	summary, status, err := h.service.PreviewSummary(req.Items, req.Deposit, applyTax)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, PreviewSummaryResponse{
		Items:   shared.NewLineItemResponses(req.Items),
		Summary: shared.NewSummaryResponse(summary),
		Status:  status,
	})
}

func (h *Handler) CheckDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositCheckRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.InvoiceID > 0 {
		decision, err := h.service.CheckEditDeposit(r.Context(), req.InvoiceID, req.Items, req.DepositAdded)
		if err != nil {
			h.respond(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, newDepositCheckResponse(decision))
		return
	}
	decision := h.service.CheckDeposit(req.ProjectedBalance, req.ProposedDeposit, req.ExistingDeposit)
	httpx.JSON(w, http.StatusOK, newDepositCheckResponse(decision))
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, err error) {
	var ve *shared.ValidationError
	if !errors.As(err, &ve) && !shared.IsDepositRejected(err) && !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error("invoice request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func invoiceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, &shared.ValidationError{Field: "id", Message: "must be a positive integer"})
		return 0, false
	}
	return id, true
}
