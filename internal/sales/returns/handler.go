package returns

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) CreateCreditNote(w http.ResponseWriter, r *http.Request) {
	var req CreateCreditNoteRequest
	if !decode(w, r, &req) {
		return
	}
	note, err := h.service.CreateCreditNote(r.Context(), NewCreditNote{
		CustomerID: req.CustomerID,
		SalesRepID: req.SalesRepID,
		Source:     CreditNoteSource(req.Source),
		InvoiceID:  req.InvoiceID,
		Items:      req.Items,
		Signature:  req.Signature,
		Reason:     req.Reason,
	})
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, NewCreditNoteResponse(note))
}

func (h *Handler) UpdateCreditNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateDraftRequest
	if !decode(w, r, &req) {
		return
	}
	note, err := h.service.UpdateCreditNote(r.Context(), id, DraftUpdate(req))
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewCreditNoteResponse(note))
}

func (h *Handler) ApproveCreditNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req FinalizeRequest
	if r.ContentLength > 0 && !decode(w, r, &req) {
		return
	}
	note, err := h.service.ApproveCreditNote(r.Context(), id, req.Signature)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewCreditNoteResponse(note))
}

func (h *Handler) ShowCreditNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	note, err := h.service.GetCreditNote(r.Context(), id)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewCreditNoteResponse(note))
}

func (h *Handler) ListCreditNotes(w http.ResponseWriter, r *http.Request) {
	filter, ok := listFilter(w, r, string(shared.CreditNoteStatusDraft), string(shared.CreditNoteStatusApproved))
	if !ok {
		return
	}
	notes, total, err := h.service.ListCreditNotes(r.Context(), filter)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	resp := ListCreditNotesResponse{CreditNotes: make([]CreditNoteResponse, 0, len(notes)), Total: total}
	for _, note := range notes {
		resp.CreditNotes = append(resp.CreditNotes, NewCreditNoteResponse(note))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) CreateRefund(w http.ResponseWriter, r *http.Request) {
	var req CreateRefundRequest
	if !decode(w, r, &req) {
		return
	}
	refund, err := h.service.CreateRefund(r.Context(), NewRefund{
		CustomerID:    req.CustomerID,
		SalesRepID:    req.SalesRepID,
		Source:        RefundSource(req.Source),
		CreditNoteID:  req.CreditNoteID,
		Items:         req.Items,
		PaymentMethod: req.PaymentMethod,
		Signature:     req.Signature,
		Reason:        req.Reason,
	})
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, NewRefundResponse(refund))
}

func (h *Handler) UpdateRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateDraftRequest
	if !decode(w, r, &req) {
		return
	}
	refund, err := h.service.UpdateRefund(r.Context(), id, DraftUpdate(req))
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewRefundResponse(refund))
}

func (h *Handler) MarkRefunded(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req FinalizeRequest
	if r.ContentLength > 0 && !decode(w, r, &req) {
		return
	}
	refund, err := h.service.MarkRefunded(r.Context(), id, req.Signature)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewRefundResponse(refund))
}

func (h *Handler) ShowRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	refund, err := h.service.GetRefund(r.Context(), id)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewRefundResponse(refund))
}

func (h *Handler) ListRefunds(w http.ResponseWriter, r *http.Request) {
	filter, ok := listFilter(w, r, string(shared.RefundStatusDraft), string(shared.RefundStatusRefunded))
	if !ok {
		return
	}
	refunds, total, err := h.service.ListRefunds(r.Context(), filter)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	resp := ListRefundsResponse{Refunds: make([]RefundResponse, 0, len(refunds)), Total: total}
	for _, refund := range refunds {
		resp.Refunds = append(resp.Refunds, NewRefundResponse(refund))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, err error) {
	var ve *shared.ValidationError
	if !errors.As(err, &ve) && !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, httpx.ErrConflict) {
		h.logger.Error("returns request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := shared.ValidateStruct(dst); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	return true
}

func listFilter(w http.ResponseWriter, r *http.Request, statuses ...string) (ListFilter, bool) {
	q := r.URL.Query()
	var filter ListFilter
	if raw := q.Get("customer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, &shared.ValidationError{Field: "customer_id", Message: "must be an integer"})
			return ListFilter{}, false
		}
		filter.CustomerID = &id
	}
	if raw := q.Get("status"); raw != "" {
		known := false
		for _, s := range statuses {
			known = known || s == raw
		}
		if !known {
			httpx.RespondError(w, &shared.ValidationError{Field: "status", Message: "unknown status"})
			return ListFilter{}, false
		}
		filter.Status = raw
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))
	return filter, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, &shared.ValidationError{Field: "id", Message: "must be a positive integer"})
		return 0, false
	}
	return id, true
}
